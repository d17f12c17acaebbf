package services

import (
	"context"

	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

const (
	msgProjectNotFound = "project not found"
	msgManagerOnly     = "only the project manager can perform this action"
)

func IsManager(project *models.Project, user *models.User) bool {
	return project != nil && user != nil && project.Manager == user.ID
}

// IsTeamMember treats the manager as an implicit member.
func IsTeamMember(project *models.Project, user *models.User) bool {
	if project == nil || user == nil {
		return false
	}
	return project.Manager == user.ID || project.HasTeamMember(user.ID)
}

func isMemberID(project *models.Project, id uuid.UUID) bool {
	return project.Manager == id || project.HasTeamMember(id)
}

// visibleProject loads a project the user may see. Projects outside the
// user's reach are reported as not found.
func visibleProject(ctx context.Context, store repositories.Store, projectID uuid.UUID, user *models.User) (*models.Project, error) {
	project, err := store.Projects().FindByID(ctx, projectID)
	if err != nil {
		return nil, storeError(err, msgProjectNotFound)
	}
	if !IsTeamMember(project, user) {
		return nil, NewNotFoundError(msgProjectNotFound)
	}
	return project, nil
}

func managedProject(ctx context.Context, store repositories.Store, projectID uuid.UUID, user *models.User) (*models.Project, error) {
	project, err := visibleProject(ctx, store, projectID, user)
	if err != nil {
		return nil, err
	}
	if !IsManager(project, user) {
		return nil, NewAuthorizationError(msgManagerOnly)
	}
	return project, nil
}
