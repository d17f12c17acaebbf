package services

import (
	"context"
	"errors"
	"strings"

	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/repositories"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"
)

type ProjectRequest struct {
	ProjectName string `json:"projectName"`
	ClientName  string `json:"clientName"`
	Description string `json:"description"`
}

func (r ProjectRequest) normalize() (ProjectRequest, error) {
	out := ProjectRequest{
		ProjectName: strings.TrimSpace(r.ProjectName),
		ClientName:  strings.TrimSpace(r.ClientName),
		Description: strings.TrimSpace(r.Description),
	}
	var missing []string
	if out.ProjectName == "" {
		missing = append(missing, "projectName")
	}
	if out.ClientName == "" {
		missing = append(missing, "clientName")
	}
	if out.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return out, NewValidationError("missing required fields: " + strings.Join(missing, ", "))
	}
	return out, nil
}

type ProjectService interface {
	Create(ctx context.Context, user *models.User, req ProjectRequest) (*models.Project, error)
	List(ctx context.Context, user *models.User) ([]models.Project, error)
	Get(ctx context.Context, user *models.User, projectID uuid.UUID) (*models.ProjectDetail, error)
	Update(ctx context.Context, user *models.User, projectID uuid.UUID, req ProjectRequest) (*models.Project, error)
	Delete(ctx context.Context, user *models.User, projectID uuid.UUID) error

	FindMemberByEmail(ctx context.Context, user *models.User, projectID uuid.UUID, email string) (*models.PublicUser, error)
	AddMember(ctx context.Context, user *models.User, projectID, memberID uuid.UUID) error
	RemoveMember(ctx context.Context, user *models.User, projectID, memberID uuid.UUID) error
	ListMembers(ctx context.Context, user *models.User, projectID uuid.UUID) ([]models.PublicUser, error)
}

type ProjectServiceImpl struct {
	store  repositories.Store
	logger log.FieldLogger
}

func NewProjectService(store repositories.Store, logger log.FieldLogger) *ProjectServiceImpl {
	return &ProjectServiceImpl{store: store, logger: logger}
}

func (s *ProjectServiceImpl) Create(ctx context.Context, user *models.User, req ProjectRequest) (*models.Project, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		ID:          uuid.Must(uuid.NewV4()),
		ProjectName: req.ProjectName,
		ClientName:  req.ClientName,
		Description: req.Description,
		Manager:     user.ID,
		Team:        []uuid.UUID{},
		Tasks:       []uuid.UUID{},
	}
	if err := s.store.Projects().Create(ctx, project); err != nil {
		return nil, NewInternalError(err)
	}

	s.logger.WithFields(log.Fields{"project_id": project.ID, "user_id": user.ID}).Info("Project created")
	return project, nil
}

func (s *ProjectServiceImpl) List(ctx context.Context, user *models.User) ([]models.Project, error) {
	projects, err := s.store.Projects().FindVisibleTo(ctx, user.ID)
	if err != nil {
		return nil, NewInternalError(err)
	}
	return projects, nil
}

func (s *ProjectServiceImpl) Get(ctx context.Context, user *models.User, projectID uuid.UUID) (*models.ProjectDetail, error) {
	project, err := visibleProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.Tasks().FindByProject(ctx, project.ID)
	if err != nil {
		return nil, NewInternalError(err)
	}

	return &models.ProjectDetail{Project: *project, Tasks: orderTasks(project.Tasks, tasks)}, nil
}

// orderTasks follows the project's task list, appending any stragglers.
func orderTasks(order []uuid.UUID, tasks []models.Task) []models.Task {
	byID := make(map[uuid.UUID]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	out := make([]models.Task, 0, len(tasks))
	for _, id := range order {
		if t, ok := byID[id]; ok {
			out = append(out, t)
			delete(byID, id)
		}
	}
	for _, t := range tasks {
		if _, ok := byID[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (s *ProjectServiceImpl) Update(ctx context.Context, user *models.User, projectID uuid.UUID, req ProjectRequest) (*models.Project, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}

	project, err := managedProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}

	project.ProjectName = req.ProjectName
	project.ClientName = req.ClientName
	project.Description = req.Description
	if err := s.store.Projects().UpdateDetails(ctx, project); err != nil {
		return nil, storeError(err, msgProjectNotFound)
	}
	return project, nil
}

func (s *ProjectServiceImpl) Delete(ctx context.Context, user *models.User, projectID uuid.UUID) error {
	project, err := managedProject(ctx, s.store, projectID, user)
	if err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if err := tx.Tasks().DeleteByProject(ctx, project.ID); err != nil {
			return err
		}
		if err := tx.Backlog().DeleteByProject(ctx, project.ID); err != nil {
			return err
		}
		if err := tx.Sprints().DeleteByProject(ctx, project.ID); err != nil {
			return err
		}
		return tx.Projects().Delete(ctx, project.ID)
	})
	if err != nil {
		return storeError(err, msgProjectNotFound)
	}

	s.logger.WithFields(log.Fields{"project_id": project.ID, "user_id": user.ID}).Info("Project deleted")
	return nil
}

func (s *ProjectServiceImpl) FindMemberByEmail(ctx context.Context, user *models.User, projectID uuid.UUID, email string) (*models.PublicUser, error) {
	if _, err := visibleProject(ctx, s.store, projectID, user); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	if email == "" {
		return nil, NewValidationError("email is required")
	}

	found, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		return nil, storeError(err, "user not found")
	}
	public := found.Public()
	return &public, nil
}

func (s *ProjectServiceImpl) AddMember(ctx context.Context, user *models.User, projectID, memberID uuid.UUID) error {
	project, err := managedProject(ctx, s.store, projectID, user)
	if err != nil {
		return err
	}

	if _, err := s.store.Users().FindByID(ctx, memberID); err != nil {
		return storeError(err, "user not found")
	}
	if memberID == project.Manager {
		return NewConflictError("the manager is already part of the project")
	}

	err = s.store.Projects().AddMember(ctx, project.ID, memberID)
	if errors.Is(err, repositories.ErrDuplicate) {
		return NewConflictError("user is already a member of the project")
	}
	return storeError(err, msgProjectNotFound)
}

func (s *ProjectServiceImpl) RemoveMember(ctx context.Context, user *models.User, projectID, memberID uuid.UUID) error {
	project, err := managedProject(ctx, s.store, projectID, user)
	if err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if err := tx.Projects().RemoveMember(ctx, project.ID, memberID); err != nil {
			return err
		}
		return tx.Tasks().ClearAssignee(ctx, project.ID, memberID)
	})
	return storeError(err, "user is not a member of the project")
}

func (s *ProjectServiceImpl) ListMembers(ctx context.Context, user *models.User, projectID uuid.UUID) ([]models.PublicUser, error) {
	project, err := visibleProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}

	users, err := s.store.Users().FindByIDs(ctx, project.Team)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, NewInternalError(err)
	}
	out := make([]models.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out, nil
}
