package services

import (
	"context"
	"errors"
	"strings"

	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

const (
	msgTaskNotFound      = "task not found"
	msgAssigneeNotOnTeam = "the assigned user is not a member of the project team"
)

type TaskRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	AssignedTo  OptionalID `json:"assignedTo"`
	Sprint      OptionalID `json:"sprint"`
	Story       OptionalID `json:"story"`
}

type TaskService interface {
	Create(ctx context.Context, user *models.User, projectID uuid.UUID, req TaskRequest) (*models.Task, error)
	List(ctx context.Context, user *models.User, projectID uuid.UUID) ([]models.Task, error)
	Get(ctx context.Context, user *models.User, projectID, taskID uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, user *models.User, projectID, taskID uuid.UUID, req TaskRequest) (*models.Task, error)
	UpdateStatus(ctx context.Context, user *models.User, projectID, taskID uuid.UUID, status string) (*models.Task, error)
	Delete(ctx context.Context, user *models.User, projectID, taskID uuid.UUID) error
}

type TaskServiceImpl struct {
	store repositories.Store
}

func NewTaskService(store repositories.Store) *TaskServiceImpl {
	return &TaskServiceImpl{store: store}
}

func (s *TaskServiceImpl) Create(ctx context.Context, user *models.User, projectID uuid.UUID, req TaskRequest) (*models.Task, error) {
	project, err := visibleProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}

	name, description, err := requireTaskText(req.Name, req.Description)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:          uuid.Must(uuid.NewV4()),
		ProjectID:   project.ID,
		Name:        name,
		Description: description,
		Status:      models.TaskPending,
	}
	if err := s.applyReferences(ctx, project, task, req); err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return err
		}
		return tx.Projects().AddTask(ctx, project.ID, task.ID)
	})
	if err != nil {
		return nil, storeError(err, msgProjectNotFound)
	}
	return task, nil
}

func (s *TaskServiceImpl) List(ctx context.Context, user *models.User, projectID uuid.UUID) ([]models.Task, error) {
	project, err := visibleProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.Tasks().FindByProject(ctx, project.ID)
	if err != nil {
		return nil, NewInternalError(err)
	}
	return tasks, nil
}

func (s *TaskServiceImpl) Get(ctx context.Context, user *models.User, projectID, taskID uuid.UUID) (*models.Task, error) {
	_, task, err := s.load(ctx, user, projectID, taskID)
	return task, err
}

func (s *TaskServiceImpl) Update(ctx context.Context, user *models.User, projectID, taskID uuid.UUID, req TaskRequest) (*models.Task, error) {
	project, task, err := s.load(ctx, user, projectID, taskID)
	if err != nil {
		return nil, err
	}

	name, description, err := requireTaskText(req.Name, req.Description)
	if err != nil {
		return nil, err
	}
	task.Name = name
	task.Description = description
	if err := s.applyReferences(ctx, project, task, req); err != nil {
		return nil, err
	}

	if err := s.store.Tasks().Update(ctx, task); err != nil {
		return nil, storeError(err, msgTaskNotFound)
	}
	return task, nil
}

func (s *TaskServiceImpl) UpdateStatus(ctx context.Context, user *models.User, projectID, taskID uuid.UUID, status string) (*models.Task, error) {
	next := models.TaskStatus(strings.TrimSpace(status))
	if !next.Valid() {
		return nil, NewValidationError("invalid task status")
	}

	_, task, err := s.load(ctx, user, projectID, taskID)
	if err != nil {
		return nil, err
	}

	task.Status = next
	if err := s.store.Tasks().Update(ctx, task); err != nil {
		return nil, storeError(err, msgTaskNotFound)
	}
	return task, nil
}

func (s *TaskServiceImpl) Delete(ctx context.Context, user *models.User, projectID, taskID uuid.UUID) error {
	project, task, err := s.load(ctx, user, projectID, taskID)
	if err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if err := tx.Tasks().Delete(ctx, task.ID); err != nil {
			return err
		}
		return tx.Projects().RemoveTask(ctx, project.ID, task.ID)
	})
	return storeError(err, msgTaskNotFound)
}

func (s *TaskServiceImpl) load(ctx context.Context, user *models.User, projectID, taskID uuid.UUID) (*models.Project, *models.Task, error) {
	project, err := visibleProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, nil, err
	}
	task, err := s.store.Tasks().FindByID(ctx, taskID)
	if err != nil {
		return nil, nil, storeError(err, msgTaskNotFound)
	}
	if task.ProjectID != project.ID {
		return nil, nil, NewNotFoundError(msgTaskNotFound)
	}
	return project, task, nil
}

// applyReferences validates and sets assignee, sprint and story on task.
// Fields not present in the request are left as they are.
func (s *TaskServiceImpl) applyReferences(ctx context.Context, project *models.Project, task *models.Task, req TaskRequest) error {
	if req.AssignedTo.Set {
		if req.AssignedTo.ID != nil && !isMemberID(project, *req.AssignedTo.ID) {
			return NewValidationError(msgAssigneeNotOnTeam)
		}
		task.AssignedTo = req.AssignedTo.ID
	}

	if req.Sprint.Set {
		if req.Sprint.ID != nil {
			sprint, err := s.store.Sprints().FindByID(ctx, *req.Sprint.ID)
			if err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return NewInternalError(err)
			}
			if sprint == nil || sprint.ProjectID != project.ID {
				return NewValidationError("the sprint does not belong to this project")
			}
		}
		task.SprintID = req.Sprint.ID
	}

	if req.Story.Set {
		if req.Story.ID != nil {
			story, err := s.store.Backlog().FindByID(ctx, *req.Story.ID)
			if err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return NewInternalError(err)
			}
			if story == nil || story.ProjectID != project.ID {
				return NewValidationError("the story does not belong to this project")
			}
		}
		task.StoryID = req.Story.ID
	}
	return nil
}

func requireTaskText(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" || description == "" {
		return "", "", NewValidationError("name and description are required")
	}
	return name, description, nil
}
