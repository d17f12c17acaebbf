package repositories

import (
	"context"
	"errors"
	"time"

	"scrumboard/backend/internal/models"

	"github.com/gofrs/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type TokenRepository interface {
	Create(ctx context.Context, token *models.Token) error
	// FindByToken returns the first token with the given code that has not expired at now.
	FindByToken(ctx context.Context, token string, now time.Time) (*models.Token, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// FindVisibleTo returns projects managed by or shared with the user, oldest first.
	FindVisibleTo(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	// UpdateDetails writes the name, client and description only.
	UpdateDetails(ctx context.Context, project *models.Project) error
	// The list methods below change one entry of the stored project, never
	// a copy held by the caller.
	AddTask(ctx context.Context, projectID, taskID uuid.UUID) error
	RemoveTask(ctx context.Context, projectID, taskID uuid.UUID) error
	// AddMember returns ErrDuplicate when the user is already on the team.
	AddMember(ctx context.Context, projectID, userID uuid.UUID) error
	// RemoveMember returns ErrNotFound when the user is not on the team.
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type BacklogRepository interface {
	Create(ctx context.Context, item *models.ProductBacklogItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProductBacklogItem, error)
	// FindByProject returns the backlog sorted by ascending order.
	FindByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProductBacklogItem, error)
	FindByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]models.ProductBacklogItem, error)
	CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
	Update(ctx context.Context, item *models.ProductBacklogItem) error
	UpdateOrder(ctx context.Context, id uuid.UUID, order int) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

type SprintRepository interface {
	Create(ctx context.Context, sprint *models.Sprint) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Sprint, error)
	// FindByProject returns sprints sorted by start date, then creation time.
	FindByProject(ctx context.Context, projectID uuid.UUID) ([]models.Sprint, error)
	FindByName(ctx context.Context, projectID uuid.UUID, name string) (*models.Sprint, error)
	Update(ctx context.Context, sprint *models.Sprint) error
	// RemoveStory drops the story from every sprint of the project.
	RemoveStory(ctx context.Context, projectID, storyID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

// TaskRepository reference-clearing methods leave updatedAt untouched so
// throughput reporting is not skewed by cascades.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	FindByProject(ctx context.Context, projectID uuid.UUID) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	ClearSprint(ctx context.Context, sprintID uuid.UUID) error
	ClearStory(ctx context.Context, storyID uuid.UUID) error
	ClearAssignee(ctx context.Context, projectID, userID uuid.UUID) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

// Store groups the repositories behind one backend. Repositories obtained
// from the Store passed to WithinTx take part in that transaction.
type Store interface {
	Users() UserRepository
	Tokens() TokenRepository
	Projects() ProjectRepository
	Backlog() BacklogRepository
	Sprints() SprintRepository
	Tasks() TaskRepository

	WithinTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

func newID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}
