package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scrumboard/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the relational Store backend used with Postgres and SQLite.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the tables and unique indexes.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Token{},
		&models.Project{},
		&models.ProductBacklogItem{},
		&models.Sprint{},
		&models.Task{},
	)
}

func (s *GormStore) DB() *gorm.DB { return s.db }

func (s *GormStore) Users() UserRepository       { return &gormUsers{db: s.db} }
func (s *GormStore) Tokens() TokenRepository     { return &gormTokens{db: s.db} }
func (s *GormStore) Projects() ProjectRepository { return &gormProjects{db: s.db} }
func (s *GormStore) Backlog() BacklogRepository  { return &gormBacklog{db: s.db} }
func (s *GormStore) Sprints() SprintRepository   { return &gormSprints{db: s.db} }
func (s *GormStore) Tasks() TaskRepository       { return &gormTasks{db: s.db} }

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translateGormError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func updateAll(db *gorm.DB, value interface{}) error {
	result := db.Model(value).Select("*").Updates(value)
	if result.Error != nil {
		return translateGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type gormUsers struct {
	db *gorm.DB
}

func (r *gormUsers) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = newID()
	}
	return translateGormError(r.db.WithContext(ctx).Create(user).Error)
}

func (r *gormUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &user, nil
}

func (r *gormUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &user, nil
}

func (r *gormUsers) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&users).Error; err != nil {
		return nil, translateGormError(err)
	}
	return users, nil
}

func (r *gormUsers) Update(ctx context.Context, user *models.User) error {
	return updateAll(r.db.WithContext(ctx), user)
}

type gormTokens struct {
	db *gorm.DB
}

func (r *gormTokens) Create(ctx context.Context, token *models.Token) error {
	if token.ID == uuid.Nil {
		token.ID = newID()
	}
	return translateGormError(r.db.WithContext(ctx).Create(token).Error)
}

func (r *gormTokens) FindByToken(ctx context.Context, token string, now time.Time) (*models.Token, error) {
	var tokens []models.Token
	if err := r.db.WithContext(ctx).Where("token = ?", token).Order("created_at DESC").Find(&tokens).Error; err != nil {
		return nil, translateGormError(err)
	}
	for i := range tokens {
		if !tokens[i].IsExpired(now) {
			return &tokens[i], nil
		}
	}
	return nil, ErrNotFound
}

func (r *gormTokens) Delete(ctx context.Context, id uuid.UUID) error {
	return translateGormError(r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Token{}).Error)
}

func (r *gormTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&models.Token{})
	return result.RowsAffected, translateGormError(result.Error)
}

type gormProjects struct {
	db *gorm.DB
}

func (r *gormProjects) Create(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = newID()
	}
	return translateGormError(r.db.WithContext(ctx).Create(project).Error)
}

func (r *gormProjects) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &project, nil
}

func (r *gormProjects) FindVisibleTo(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	var candidates []models.Project
	err := r.db.WithContext(ctx).
		Where("manager = ? OR team LIKE ?", userID, "%"+userID.String()+"%").
		Order("created_at ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, translateGormError(err)
	}

	projects := make([]models.Project, 0, len(candidates))
	for _, p := range candidates {
		if p.Manager == userID || p.HasTeamMember(userID) {
			projects = append(projects, p)
		}
	}
	return projects, nil
}

func (r *gormProjects) UpdateDetails(ctx context.Context, project *models.Project) error {
	result := r.db.WithContext(ctx).Model(project).
		Select("project_name", "client_name", "description", "updated_at").
		Updates(project)
	if result.Error != nil {
		return translateGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormProjects) AddTask(ctx context.Context, projectID, taskID uuid.UUID) error {
	return r.modifyList(ctx, projectID, "tasks", func(p *models.Project) error {
		for _, id := range p.Tasks {
			if id == taskID {
				return nil
			}
		}
		p.AddTask(taskID)
		return nil
	})
}

func (r *gormProjects) RemoveTask(ctx context.Context, projectID, taskID uuid.UUID) error {
	return r.modifyList(ctx, projectID, "tasks", func(p *models.Project) error {
		p.RemoveTask(taskID)
		return nil
	})
}

func (r *gormProjects) AddMember(ctx context.Context, projectID, userID uuid.UUID) error {
	return r.modifyList(ctx, projectID, "team", func(p *models.Project) error {
		if p.HasTeamMember(userID) {
			return ErrDuplicate
		}
		p.Team = append(p.Team, userID)
		return nil
	})
}

func (r *gormProjects) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	return r.modifyList(ctx, projectID, "team", func(p *models.Project) error {
		if !p.HasTeamMember(userID) {
			return ErrNotFound
		}
		p.RemoveTeamMember(userID)
		return nil
	})
}

// modifyList re-reads the project under a row lock and writes back only the
// given list column. SQLite ignores the lock clause; its writers are serialized.
func (r *gormProjects) modifyList(ctx context.Context, projectID uuid.UUID, column string, change func(p *models.Project) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", projectID).
			First(&project).Error
		if err != nil {
			return translateGormError(err)
		}
		if err := change(&project); err != nil {
			return err
		}
		return translateGormError(tx.Model(&project).Select(column, "updated_at").Updates(&project).Error)
	})
}

func (r *gormProjects) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Project{})
	if result.Error != nil {
		return translateGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type gormBacklog struct {
	db *gorm.DB
}

func (r *gormBacklog) Create(ctx context.Context, item *models.ProductBacklogItem) error {
	if item.ID == uuid.Nil {
		item.ID = newID()
	}
	return translateGormError(r.db.WithContext(ctx).Create(item).Error)
}

func (r *gormBacklog) FindByID(ctx context.Context, id uuid.UUID) (*models.ProductBacklogItem, error) {
	var item models.ProductBacklogItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &item, nil
}

func (r *gormBacklog) FindByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProductBacklogItem, error) {
	var items []models.ProductBacklogItem
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("position ASC").Find(&items).Error; err != nil {
		return nil, translateGormError(err)
	}
	return items, nil
}

func (r *gormBacklog) FindByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]models.ProductBacklogItem, error) {
	var items []models.ProductBacklogItem
	if len(ids) == 0 {
		return items, nil
	}
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND id IN ?", projectID, ids).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return items, nil
}

func (r *gormBacklog) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProductBacklogItem{}).Where("project_id = ?", projectID).Count(&count).Error
	return count, translateGormError(err)
}

func (r *gormBacklog) Update(ctx context.Context, item *models.ProductBacklogItem) error {
	return updateAll(r.db.WithContext(ctx), item)
}

func (r *gormBacklog) UpdateOrder(ctx context.Context, id uuid.UUID, order int) error {
	result := r.db.WithContext(ctx).Model(&models.ProductBacklogItem{}).Where("id = ?", id).Update("position", order)
	if result.Error != nil {
		return translateGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormBacklog) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ProductBacklogItem{})
	if result.Error != nil {
		return translateGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormBacklog) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	return translateGormError(r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.ProductBacklogItem{}).Error)
}

type gormSprints struct {
	db *gorm.DB
}

func (r *gormSprints) Create(ctx context.Context, sprint *models.Sprint) error {
	if sprint.ID == uuid.Nil {
		sprint.ID = newID()
	}
	return translateGormError(r.db.WithContext(ctx).Create(sprint).Error)
}

func (r *gormSprints) FindByID(ctx context.Context, id uuid.UUID) (*models.Sprint, error) {
	var sprint models.Sprint
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sprint).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &sprint, nil
}

func (r *gormSprints) FindByProject(ctx context.Context, projectID uuid.UUID) ([]models.Sprint, error) {
	var sprints []models.Sprint
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("start_date ASC, created_at ASC").
		Find(&sprints).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	return sprints, nil
}

func (r *gormSprints) FindByName(ctx context.Context, projectID uuid.UUID, name string) (*models.Sprint, error) {
	var sprint models.Sprint
	if err := r.db.WithContext(ctx).Where("project_id = ? AND name = ?", projectID, name).First(&sprint).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &sprint, nil
}

func (r *gormSprints) Update(ctx context.Context, sprint *models.Sprint) error {
	return updateAll(r.db.WithContext(ctx), sprint)
}

func (r *gormSprints) RemoveStory(ctx context.Context, projectID, storyID uuid.UUID) error {
	sprints, err := r.FindByProject(ctx, projectID)
	if err != nil {
		return err
	}
	for i := range sprints {
		if !sprints[i].RemoveStory(storyID) {
			continue
		}
		err := r.db.WithContext(ctx).Model(&sprints[i]).Select("stories").Updates(&sprints[i]).Error
		if err != nil {
			return translateGormError(err)
		}
	}
	return nil
}

func (r *gormSprints) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Sprint{})
	if result.Error != nil {
		return translateGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormSprints) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	return translateGormError(r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.Sprint{}).Error)
}

type gormTasks struct {
	db *gorm.DB
}

func (r *gormTasks) Create(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = newID()
	}
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	return translateGormError(r.db.WithContext(ctx).Create(task).Error)
}

func (r *gormTasks) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &task, nil
}

func (r *gormTasks) FindByProject(ctx context.Context, projectID uuid.UUID) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&tasks).Error; err != nil {
		return nil, translateGormError(err)
	}
	return tasks, nil
}

func (r *gormTasks) Update(ctx context.Context, task *models.Task) error {
	return updateAll(r.db.WithContext(ctx), task)
}

func (r *gormTasks) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Task{})
	if result.Error != nil {
		return translateGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormTasks) ClearSprint(ctx context.Context, sprintID uuid.UUID) error {
	return translateGormError(r.db.WithContext(ctx).Model(&models.Task{}).
		Where("sprint_id = ?", sprintID).UpdateColumn("sprint_id", nil).Error)
}

func (r *gormTasks) ClearStory(ctx context.Context, storyID uuid.UUID) error {
	return translateGormError(r.db.WithContext(ctx).Model(&models.Task{}).
		Where("story_id = ?", storyID).UpdateColumn("story_id", nil).Error)
}

func (r *gormTasks) ClearAssignee(ctx context.Context, projectID, userID uuid.UUID) error {
	return translateGormError(r.db.WithContext(ctx).Model(&models.Task{}).
		Where("project_id = ? AND assigned_to = ?", projectID, userID).UpdateColumn("assigned_to", nil).Error)
}

func (r *gormTasks) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	return translateGormError(r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.Task{}).Error)
}
