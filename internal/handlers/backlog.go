package handlers

import (
	"net/http"

	"scrumboard/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"
)

type BacklogHandler struct {
	backlogService services.BacklogService
	logger         log.FieldLogger
}

// ReorderRequest lists every story of the backlog in its new order.
type ReorderRequest struct {
	Order []uuid.UUID `json:"order"`
}

func NewBacklogHandler(backlogService services.BacklogService, logger log.FieldLogger) *BacklogHandler {
	return &BacklogHandler{backlogService: backlogService, logger: logger}
}

func (h *BacklogHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	items, err := h.backlogService.List(c.Request.Context(), user, projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *BacklogHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	var req services.CreateBacklogItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.backlogService.Create(c.Request.Context(), user, projectID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *BacklogHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	storyID, ok := paramID(c, "storyId")
	if !ok {
		return
	}
	item, err := h.backlogService.Get(c.Request.Context(), user, projectID, storyID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *BacklogHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	storyID, ok := paramID(c, "storyId")
	if !ok {
		return
	}
	var req services.UpdateBacklogItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.backlogService.Update(c.Request.Context(), user, projectID, storyID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *BacklogHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	storyID, ok := paramID(c, "storyId")
	if !ok {
		return
	}
	if err := h.backlogService.Remove(c.Request.Context(), user, projectID, storyID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	message(c, http.StatusOK, "Story deleted")
}

func (h *BacklogHandler) Reorder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	var req ReorderRequest
	if !bindJSON(c, &req) {
		return
	}
	items, err := h.backlogService.Reorder(c.Request.Context(), user, projectID, req.Order)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
