package handlers

import (
	"net/http"

	"scrumboard/backend/internal/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type ProfileHandler struct {
	profileService services.ProfileService
	logger         log.FieldLogger
}

type TechnologyRequest struct {
	Technology string `json:"technology" binding:"required"`
}

func NewProfileHandler(profileService services.ProfileService, logger log.FieldLogger) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, logger: logger}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	me, err := h.profileService.Me(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

func (h *ProfileHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req services.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.profileService.Update(c.Request.Context(), user, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *ProfileHandler) AddTechnology(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req TechnologyRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.profileService.AddTechnology(c.Request.Context(), user, req.Technology)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *ProfileHandler) RemoveTechnology(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	updated, err := h.profileService.RemoveTechnology(c.Request.Context(), user, c.Param("technology"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
