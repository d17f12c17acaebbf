package services

import (
	"context"
	"strings"

	"scrumboard/backend/internal/locks"
	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

const msgStoryNotFound = "story not found"

type CreateBacklogItemRequest struct {
	Persona            string  `json:"persona"`
	Objetivo           string  `json:"objetivo"`
	Beneficio          string  `json:"beneficio"`
	Estimate           float64 `json:"estimate"`
	AcceptanceCriteria string  `json:"acceptanceCriteria"`
}

// UpdateBacklogItemRequest is a partial update; nil fields are kept.
type UpdateBacklogItemRequest struct {
	Persona            *string  `json:"persona"`
	Objetivo           *string  `json:"objetivo"`
	Beneficio          *string  `json:"beneficio"`
	Estimate           *float64 `json:"estimate"`
	AcceptanceCriteria *string  `json:"acceptanceCriteria"`
}

type BacklogService interface {
	List(ctx context.Context, user *models.User, projectID uuid.UUID) ([]models.ProductBacklogItem, error)
	Get(ctx context.Context, user *models.User, projectID, itemID uuid.UUID) (*models.ProductBacklogItem, error)
	Create(ctx context.Context, user *models.User, projectID uuid.UUID, req CreateBacklogItemRequest) (*models.ProductBacklogItem, error)
	Update(ctx context.Context, user *models.User, projectID, itemID uuid.UUID, req UpdateBacklogItemRequest) (*models.ProductBacklogItem, error)
	Remove(ctx context.Context, user *models.User, projectID, itemID uuid.UUID) error
	Reorder(ctx context.Context, user *models.User, projectID uuid.UUID, ids []uuid.UUID) ([]models.ProductBacklogItem, error)
}

type BacklogServiceImpl struct {
	store  repositories.Store
	locker locks.Locker
}

func NewBacklogService(store repositories.Store, locker locks.Locker) *BacklogServiceImpl {
	if locker == nil {
		locker = locks.NewLocalLocker()
	}
	return &BacklogServiceImpl{store: store, locker: locker}
}

func backlogLockKey(projectID uuid.UUID) string {
	return "backlog:" + projectID.String()
}

func (s *BacklogServiceImpl) List(ctx context.Context, user *models.User, projectID uuid.UUID) ([]models.ProductBacklogItem, error) {
	project, err := visibleProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Backlog().FindByProject(ctx, project.ID)
	if err != nil {
		return nil, NewInternalError(err)
	}
	return items, nil
}

func (s *BacklogServiceImpl) Get(ctx context.Context, user *models.User, projectID, itemID uuid.UUID) (*models.ProductBacklogItem, error) {
	project, err := visibleProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}
	return s.item(ctx, s.store, project.ID, itemID)
}

func (s *BacklogServiceImpl) Create(ctx context.Context, user *models.User, projectID uuid.UUID, req CreateBacklogItemRequest) (*models.ProductBacklogItem, error) {
	project, err := managedProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}

	persona := strings.TrimSpace(req.Persona)
	objetivo := strings.TrimSpace(req.Objetivo)
	beneficio := strings.TrimSpace(req.Beneficio)
	if persona == "" || objetivo == "" || beneficio == "" {
		return nil, NewValidationError("persona, objetivo and beneficio are required")
	}
	if req.Estimate < 0 {
		return nil, NewValidationError("estimate must be zero or greater")
	}

	release, err := s.locker.Lock(ctx, backlogLockKey(project.ID))
	if err != nil {
		return nil, NewInternalError(err)
	}
	defer release()

	item := &models.ProductBacklogItem{
		ID:                 uuid.Must(uuid.NewV4()),
		ProjectID:          project.ID,
		Persona:            persona,
		Objetivo:           objetivo,
		Beneficio:          beneficio,
		Estimate:           req.Estimate,
		AcceptanceCriteria: strings.TrimSpace(req.AcceptanceCriteria),
	}
	item.RefreshTitle()

	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		count, err := tx.Backlog().CountByProject(ctx, project.ID)
		if err != nil {
			return err
		}
		item.Order = int(count) + 1
		return tx.Backlog().Create(ctx, item)
	})
	if err != nil {
		return nil, NewInternalError(err)
	}
	return item, nil
}

func (s *BacklogServiceImpl) Update(ctx context.Context, user *models.User, projectID, itemID uuid.UUID, req UpdateBacklogItemRequest) (*models.ProductBacklogItem, error) {
	project, err := managedProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}
	item, err := s.item(ctx, s.store, project.ID, itemID)
	if err != nil {
		return nil, err
	}

	retitle := false
	for _, f := range []struct {
		in  *string
		out *string
	}{
		{req.Persona, &item.Persona},
		{req.Objetivo, &item.Objetivo},
		{req.Beneficio, &item.Beneficio},
	} {
		if f.in == nil {
			continue
		}
		v := strings.TrimSpace(*f.in)
		if v == "" {
			return nil, NewValidationError("persona, objetivo and beneficio cannot be empty")
		}
		*f.out = v
		retitle = true
	}
	if req.Estimate != nil {
		if *req.Estimate < 0 {
			return nil, NewValidationError("estimate must be zero or greater")
		}
		item.Estimate = *req.Estimate
	}
	if req.AcceptanceCriteria != nil {
		item.AcceptanceCriteria = strings.TrimSpace(*req.AcceptanceCriteria)
	}
	if retitle {
		item.RefreshTitle()
	}

	if err := s.store.Backlog().Update(ctx, item); err != nil {
		return nil, storeError(err, msgStoryNotFound)
	}
	return item, nil
}

func (s *BacklogServiceImpl) Remove(ctx context.Context, user *models.User, projectID, itemID uuid.UUID) error {
	project, err := managedProject(ctx, s.store, projectID, user)
	if err != nil {
		return err
	}

	release, err := s.locker.Lock(ctx, backlogLockKey(project.ID))
	if err != nil {
		return NewInternalError(err)
	}
	defer release()

	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		item, err := s.item(ctx, tx, project.ID, itemID)
		if err != nil {
			return err
		}
		if err := tx.Backlog().Delete(ctx, item.ID); err != nil {
			return err
		}
		if err := tx.Tasks().ClearStory(ctx, item.ID); err != nil {
			return err
		}
		if err := tx.Sprints().RemoveStory(ctx, project.ID, item.ID); err != nil {
			return err
		}
		return renumber(ctx, tx, project.ID)
	})
	return storeError(err, msgStoryNotFound)
}

// renumber closes gaps so orders are exactly 1..N. Walking in ascending
// order means each target slot is already free when it is written.
func renumber(ctx context.Context, tx repositories.Store, projectID uuid.UUID) error {
	items, err := tx.Backlog().FindByProject(ctx, projectID)
	if err != nil {
		return err
	}
	for i := range items {
		want := i + 1
		if items[i].Order == want {
			continue
		}
		if err := tx.Backlog().UpdateOrder(ctx, items[i].ID, want); err != nil {
			return err
		}
	}
	return nil
}

func (s *BacklogServiceImpl) Reorder(ctx context.Context, user *models.User, projectID uuid.UUID, ids []uuid.UUID) ([]models.ProductBacklogItem, error) {
	project, err := managedProject(ctx, s.store, projectID, user)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, NewValidationError("order must be a non-empty list of story ids")
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, NewValidationError("order contains duplicate story ids")
		}
		seen[id] = true
	}

	release, err := s.locker.Lock(ctx, backlogLockKey(project.ID))
	if err != nil {
		return nil, NewInternalError(err)
	}
	defer release()

	var result []models.ProductBacklogItem
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		current, err := tx.Backlog().FindByProject(ctx, project.ID)
		if err != nil {
			return err
		}
		if len(current) != len(ids) {
			return NewValidationError("order must list every story of the backlog exactly once")
		}
		for i := range current {
			if !seen[current[i].ID] {
				return NewValidationError("some stories do not belong to the project")
			}
		}

		// Stage into negative slots first so (project, order) stays unique.
		for i, id := range ids {
			if err := tx.Backlog().UpdateOrder(ctx, id, -(i + 1)); err != nil {
				return err
			}
		}
		for i, id := range ids {
			if err := tx.Backlog().UpdateOrder(ctx, id, i+1); err != nil {
				return err
			}
		}

		result, err = tx.Backlog().FindByProject(ctx, project.ID)
		return err
	})
	if err != nil {
		return nil, storeError(err, msgStoryNotFound)
	}
	return result, nil
}

func (s *BacklogServiceImpl) item(ctx context.Context, store repositories.Store, projectID, itemID uuid.UUID) (*models.ProductBacklogItem, error) {
	item, err := store.Backlog().FindByID(ctx, itemID)
	if err != nil {
		return nil, storeError(err, msgStoryNotFound)
	}
	if item.ProjectID != projectID {
		return nil, NewNotFoundError(msgStoryNotFound)
	}
	return item, nil
}
