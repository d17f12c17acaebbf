package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/reports"
	"scrumboard/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

const (
	msgSprintNotFound  = "sprint not found"
	msgSprintNameTaken = "a sprint with that name already exists in the project"
	msgSprintDates     = "startDate must not be after endDate"
	msgSprintTooLong   = "a sprint may last at most 366 days"
)

// MaxSprintLength bounds a sprint so its daily burndown series stays small.
const MaxSprintLength = 366 * 24 * time.Hour

type CreateSprintRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// UpdateSprintRequest is a partial update. An unrecognised status is ignored.
type UpdateSprintRequest struct {
	Name      *string `json:"name"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
	Status    *string `json:"status"`
}

type SprintService interface {
	List(ctx context.Context, user *models.User, projectID uuid.UUID) ([]models.Sprint, error)
	Get(ctx context.Context, user *models.User, projectID, sprintID uuid.UUID) (*models.Sprint, error)
	Create(ctx context.Context, user *models.User, projectID uuid.UUID, req CreateSprintRequest) (*models.Sprint, error)
	Update(ctx context.Context, user *models.User, projectID, sprintID uuid.UUID, req UpdateSprintRequest) (*models.Sprint, error)
	AssignStories(ctx context.Context, user *models.User, projectID, sprintID uuid.UUID, storyIDs []uuid.UUID) (*models.Sprint, error)
	GetStories(ctx context.Context, user *models.User, projectID, sprintID uuid.UUID) ([]models.StoryView, error)
	Delete(ctx context.Context, user *models.User, projectID, sprintID uuid.UUID) error
	Burndown(ctx context.Context, user *models.User, projectID, sprintID uuid.UUID) (*reports.SprintReport, error)
}

type SprintServiceImpl struct {
	store repositories.Store
	clock Clock
}

func NewSprintService(store repositories.Store, clock Clock) *SprintServiceImpl {
	return &SprintServiceImpl{store: store, clock: clock}
}

// ParseSprintDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func ParseSprintDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, NewValidationError("invalid date: " + value)
}

func validateSprintDates(start, end time.Time) error {
	if start.After(end) {
		return NewValidationError(msgSprintDates)
	}
	if end.Sub(start) > MaxSprintLength {
		return NewValidationError(msgSprintTooLong)
	}
	return nil
}

func (s *SprintServiceImpl) List(ctx context.Context, user *models.User, projectID uuid.UUID) ([]models.Sprint, error) {
	project, err := visibleProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}
	sprints, err := s.store.Sprints().FindByProject(ctx, project.ID)
	if err != nil {
		return nil, NewInternalError(err)
	}
	return sprints, nil
}

func (s *SprintServiceImpl) Get(ctx context.Context, user *models.User, projectID, sprintID uuid.UUID) (*models.Sprint, error) {
	project, err := visibleProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}
	return s.sprint(ctx, s.store, project.ID, sprintID)
}

func (s *SprintServiceImpl) Create(ctx context.Context, user *models.User, projectID uuid.UUID, req CreateSprintRequest) (*models.Sprint, error) {
	project, err := managedProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || strings.TrimSpace(req.StartDate) == "" || strings.TrimSpace(req.EndDate) == "" {
		return nil, NewValidationError("name, startDate and endDate are required")
	}
	start, err := ParseSprintDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := ParseSprintDate(req.EndDate)
	if err != nil {
		return nil, err
	}
	if err := validateSprintDates(start, end); err != nil {
		return nil, err
	}

	if err := s.ensureNameFree(ctx, project.ID, name, uuid.Nil); err != nil {
		return nil, err
	}

	sprint := &models.Sprint{
		ID:        uuid.Must(uuid.NewV4()),
		ProjectID: project.ID,
		Name:      name,
		StartDate: start,
		EndDate:   end,
		Status:    models.SprintPlanned,
		Stories:   []uuid.UUID{},
	}
	if err := s.store.Sprints().Create(ctx, sprint); err != nil {
		return nil, sprintWriteError(err)
	}
	return sprint, nil
}

func (s *SprintServiceImpl) Update(ctx context.Context, user *models.User, projectID, sprintID uuid.UUID, req UpdateSprintRequest) (*models.Sprint, error) {
	project, err := managedProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}
	sprint, err := s.sprint(ctx, s.store, project.ID, sprintID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" && name != sprint.Name {
			if err := s.ensureNameFree(ctx, project.ID, name, sprint.ID); err != nil {
				return nil, err
			}
			sprint.Name = name
		}
	}
	if req.StartDate != nil && strings.TrimSpace(*req.StartDate) != "" {
		if sprint.StartDate, err = ParseSprintDate(*req.StartDate); err != nil {
			return nil, err
		}
	}
	if req.EndDate != nil && strings.TrimSpace(*req.EndDate) != "" {
		if sprint.EndDate, err = ParseSprintDate(*req.EndDate); err != nil {
			return nil, err
		}
	}
	if err := validateSprintDates(sprint.StartDate, sprint.EndDate); err != nil {
		return nil, err
	}
	if req.Status != nil {
		if status := models.SprintStatus(strings.TrimSpace(*req.Status)); status.Valid() {
			sprint.Status = status
		}
	}

	if err := s.store.Sprints().Update(ctx, sprint); err != nil {
		return nil, sprintWriteError(err)
	}
	return sprint, nil
}

func (s *SprintServiceImpl) AssignStories(ctx context.Context, user *models.User, projectID, sprintID uuid.UUID, storyIDs []uuid.UUID) (*models.Sprint, error) {
	project, err := managedProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}
	sprint, err := s.sprint(ctx, s.store, project.ID, sprintID)
	if err != nil {
		return nil, err
	}

	unique := make([]uuid.UUID, 0, len(storyIDs))
	seen := make(map[uuid.UUID]bool, len(storyIDs))
	for _, id := range storyIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	if len(unique) > 0 {
		found, err := s.store.Backlog().FindByIDs(ctx, project.ID, unique)
		if err != nil {
			return nil, NewInternalError(err)
		}
		if len(found) != len(unique) {
			return nil, NewValidationError("some stories do not belong to the project")
		}
	}

	sprint.Stories = unique
	if err := s.store.Sprints().Update(ctx, sprint); err != nil {
		return nil, storeError(err, msgSprintNotFound)
	}
	return sprint, nil
}

// GetStories lists the sprint's stories in backlog order, whatever order
// they were assigned in.
func (s *SprintServiceImpl) GetStories(ctx context.Context, user *models.User, projectID, sprintID uuid.UUID) ([]models.StoryView, error) {
	project, err := visibleProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}
	sprint, err := s.sprint(ctx, s.store, project.ID, sprintID)
	if err != nil {
		return nil, err
	}

	views := make([]models.StoryView, 0, len(sprint.Stories))
	if len(sprint.Stories) == 0 {
		return views, nil
	}
	items, err := s.store.Backlog().FindByIDs(ctx, project.ID, sprint.Stories)
	if err != nil {
		return nil, NewInternalError(err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	for i := range items {
		views = append(views, items[i].View())
	}
	return views, nil
}

func (s *SprintServiceImpl) Delete(ctx context.Context, user *models.User, projectID, sprintID uuid.UUID) error {
	project, err := managedProject(ctx, s.store, projectID, user)
	if err != nil {
		return err
	}
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		sprint, err := s.sprint(ctx, tx, project.ID, sprintID)
		if err != nil {
			return err
		}
		if err := tx.Tasks().ClearSprint(ctx, sprint.ID); err != nil {
			return err
		}
		return tx.Sprints().Delete(ctx, sprint.ID)
	})
	return storeError(err, msgSprintNotFound)
}

func (s *SprintServiceImpl) Burndown(ctx context.Context, user *models.User, projectID, sprintID uuid.UUID) (*reports.SprintReport, error) {
	project, err := visibleProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}
	sprint, err := s.sprint(ctx, s.store, project.ID, sprintID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.Tasks().FindByProject(ctx, project.ID)
	if err != nil {
		return nil, NewInternalError(err)
	}
	report := reports.BuildSprintReport(*sprint, tasks, s.clock.Today())
	return &report, nil
}

func (s *SprintServiceImpl) ensureNameFree(ctx context.Context, projectID uuid.UUID, name string, self uuid.UUID) error {
	existing, err := s.store.Sprints().FindByName(ctx, projectID, name)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil
	case err != nil:
		return NewInternalError(err)
	case existing.ID != self:
		return NewConflictError(msgSprintNameTaken)
	}
	return nil
}

func (s *SprintServiceImpl) sprint(ctx context.Context, store repositories.Store, projectID, sprintID uuid.UUID) (*models.Sprint, error) {
	sprint, err := store.Sprints().FindByID(ctx, sprintID)
	if err != nil {
		return nil, storeError(err, msgSprintNotFound)
	}
	if sprint.ProjectID != projectID {
		return nil, NewNotFoundError(msgSprintNotFound)
	}
	return sprint, nil
}

func sprintWriteError(err error) error {
	if errors.Is(err, repositories.ErrDuplicate) {
		return NewConflictError(msgSprintNameTaken)
	}
	return storeError(err, msgSprintNotFound)
}
