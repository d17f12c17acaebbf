package handlers

import (
	"net/http"

	"scrumboard/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"
)

type SprintHandler struct {
	sprintService services.SprintService
	logger        log.FieldLogger
}

type AssignStoriesRequest struct {
	Stories []uuid.UUID `json:"stories"`
}

func NewSprintHandler(sprintService services.SprintService, logger log.FieldLogger) *SprintHandler {
	return &SprintHandler{sprintService: sprintService, logger: logger}
}

// sprintParams resolves the caller and the project/sprint path ids, writing
// the error response itself when any is missing.
func sprintParams(c *gin.Context) (projectID, sprintID uuid.UUID, ok bool) {
	if projectID, ok = paramID(c, "projectId"); !ok {
		return
	}
	sprintID, ok = paramID(c, "sprintId")
	return
}

func (h *SprintHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	sprints, err := h.sprintService.List(c.Request.Context(), user, projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sprints)
}

func (h *SprintHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	var req services.CreateSprintRequest
	if !bindJSON(c, &req) {
		return
	}
	sprint, err := h.sprintService.Create(c.Request.Context(), user, projectID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, sprint)
}

func (h *SprintHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, sprintID, ok := sprintParams(c)
	if !ok {
		return
	}
	sprint, err := h.sprintService.Get(c.Request.Context(), user, projectID, sprintID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sprint)
}

func (h *SprintHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, sprintID, ok := sprintParams(c)
	if !ok {
		return
	}
	var req services.UpdateSprintRequest
	if !bindJSON(c, &req) {
		return
	}
	sprint, err := h.sprintService.Update(c.Request.Context(), user, projectID, sprintID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sprint)
}

func (h *SprintHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, sprintID, ok := sprintParams(c)
	if !ok {
		return
	}
	if err := h.sprintService.Delete(c.Request.Context(), user, projectID, sprintID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	message(c, http.StatusOK, "Sprint deleted")
}

func (h *SprintHandler) GetStories(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, sprintID, ok := sprintParams(c)
	if !ok {
		return
	}
	stories, err := h.sprintService.GetStories(c.Request.Context(), user, projectID, sprintID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stories)
}

func (h *SprintHandler) AssignStories(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, sprintID, ok := sprintParams(c)
	if !ok {
		return
	}
	var req AssignStoriesRequest
	if !bindJSON(c, &req) {
		return
	}
	sprint, err := h.sprintService.AssignStories(c.Request.Context(), user, projectID, sprintID, req.Stories)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sprint)
}

func (h *SprintHandler) Burndown(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, sprintID, ok := sprintParams(c)
	if !ok {
		return
	}
	report, err := h.sprintService.Burndown(c.Request.Context(), user, projectID, sprintID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
