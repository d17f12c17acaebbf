package handlers

import (
	"bytes"
	"net/http"

	"scrumboard/backend/internal/services"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type ReportHandler struct {
	metricsService  services.MetricsService
	planningService services.PlanningService
	logger          log.FieldLogger
}

func NewReportHandler(metricsService services.MetricsService, planningService services.PlanningService, logger log.FieldLogger) *ReportHandler {
	return &ReportHandler{metricsService: metricsService, planningService: planningService, logger: logger}
}

func (h *ReportHandler) ProjectMetrics(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	metrics, err := h.metricsService.ProjectMetrics(c.Request.Context(), user, projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// GeneratePlan forwards the raw project description to the planning service.
// An empty body reaches the service as a nil payload.
func (h *ReportHandler) GeneratePlan(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	var payload map[string]interface{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := sonic.Unmarshal(raw, &payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
			return
		}
	}

	resp, err := h.planningService.GenerateProjectPlan(c.Request.Context(), user, payload)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
