package handlers

import (
	"net/http"

	"scrumboard/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"
)

type ProjectHandler struct {
	projectService services.ProjectService
	logger         log.FieldLogger
}

type MemberRequest struct {
	ID uuid.UUID `json:"id" binding:"required"`
}

func NewProjectHandler(projectService services.ProjectService, logger log.FieldLogger) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, logger: logger}
}

func (h *ProjectHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req services.ProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.projectService.Create(c.Request.Context(), user, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projects, err := h.projectService.List(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	project, err := h.projectService.Get(c.Request.Context(), user, projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	var req services.ProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.projectService.Update(c.Request.Context(), user, projectID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	if err := h.projectService.Delete(c.Request.Context(), user, projectID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	message(c, http.StatusOK, "Project deleted")
}

func (h *ProjectHandler) FindMember(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	member, err := h.projectService.FindMemberByEmail(c.Request.Context(), user, projectID, req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *ProjectHandler) AddMember(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	var req MemberRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.projectService.AddMember(c.Request.Context(), user, projectID, req.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	message(c, http.StatusOK, "Member added")
}

func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	memberID, ok := paramID(c, "memberId")
	if !ok {
		return
	}
	if err := h.projectService.RemoveMember(c.Request.Context(), user, projectID, memberID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	message(c, http.StatusOK, "Member removed")
}

func (h *ProjectHandler) ListMembers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	members, err := h.projectService.ListMembers(c.Request.Context(), user, projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, members)
}
