package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/repositories"
	"scrumboard/backend/internal/testutil"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, store repositories.Store, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Password: "hash", Name: email, Role: models.RoleScrumTeam}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func newProject(t *testing.T, store repositories.Store, manager uuid.UUID) *models.Project {
	t.Helper()
	project := &models.Project{ProjectName: "Board", ClientName: "Acme", Description: "desc", Manager: manager}
	require.NoError(t, store.Projects().Create(context.Background(), project))
	return project
}

func TestGormStore_UserRoundTrip(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	user := &models.User{
		Email:    "dev@example.com",
		Password: "hash",
		Name:     "Dev",
		Role:     models.RoleScrumTeam,
		DeveloperProfile: models.DeveloperProfile{
			YearsExperience: 3,
			Technologies:    []string{"go", "react"},
			Strengths:       []models.Strength{models.StrengthBackend},
		},
	}
	require.NoError(t, store.Users().Create(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)

	found, err := store.Users().FindByEmail(ctx, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, []string{"go", "react"}, found.DeveloperProfile.Technologies)
	assert.Equal(t, []models.Strength{models.StrengthBackend}, found.DeveloperProfile.Strengths)

	_, err = store.Users().FindByID(ctx, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGormStore_DuplicateEmail(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	newUser(t, store, "dup@example.com")

	err := store.Users().Create(context.Background(), &models.User{Email: "dup@example.com", Password: "x", Name: "Other"})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
}

func TestGormStore_FindVisibleTo(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	manager := newUser(t, store, "pm@example.com")
	member := newUser(t, store, "dev@example.com")
	outsider := newUser(t, store, "out@example.com")

	project := newProject(t, store, manager.ID)
	require.NoError(t, store.Projects().AddMember(ctx, project.ID, member.ID))

	for _, id := range []uuid.UUID{manager.ID, member.ID} {
		projects, err := store.Projects().FindVisibleTo(ctx, id)
		require.NoError(t, err)
		assert.Len(t, projects, 1)
	}

	projects, err := store.Projects().FindVisibleTo(ctx, outsider.ID)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestGormStore_BacklogOrderUnique(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())

	first := &models.ProductBacklogItem{ProjectID: projectID, Persona: "p", Objetivo: "o", Beneficio: "b", Order: 1}
	require.NoError(t, store.Backlog().Create(ctx, first))

	second := &models.ProductBacklogItem{ProjectID: projectID, Persona: "p", Objetivo: "o", Beneficio: "b", Order: 1}
	err := store.Backlog().Create(ctx, second)
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	second.Order = 2
	require.NoError(t, store.Backlog().Create(ctx, second))

	count, err := store.Backlog().CountByProject(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	items, err := store.Backlog().FindByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID)
}

func TestGormStore_WithinTxRollsBack(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repositories.Store) error {
		task := &models.Task{ProjectID: projectID, Name: "t", Description: "d"}
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	tasks, err := store.Tasks().FindByProject(ctx, projectID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestGormStore_ClearReferencesKeepsUpdatedAt(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())
	sprintID := uuid.Must(uuid.NewV4())
	storyID := uuid.Must(uuid.NewV4())
	assignee := uuid.Must(uuid.NewV4())

	task := &models.Task{
		ProjectID:   projectID,
		Name:        "t",
		Description: "d",
		Status:      models.TaskCompleted,
		SprintID:    &sprintID,
		StoryID:     &storyID,
		AssignedTo:  &assignee,
	}
	require.NoError(t, store.Tasks().Create(ctx, task))
	before, err := store.Tasks().FindByID(ctx, task.ID)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Tasks().ClearSprint(ctx, sprintID))
	require.NoError(t, store.Tasks().ClearStory(ctx, storyID))
	require.NoError(t, store.Tasks().ClearAssignee(ctx, projectID, assignee))

	after, err := store.Tasks().FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, after.SprintID)
	assert.Nil(t, after.StoryID)
	assert.Nil(t, after.AssignedTo)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestGormStore_SprintRemoveStory(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV4())
	keep := uuid.Must(uuid.NewV4())
	drop := uuid.Must(uuid.NewV4())

	sprint := &models.Sprint{
		ProjectID: projectID,
		Name:      "Sprint 1",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
		Status:    models.SprintPlanned,
		Stories:   []uuid.UUID{keep, drop},
	}
	require.NoError(t, store.Sprints().Create(ctx, sprint))
	require.NoError(t, store.Sprints().RemoveStory(ctx, projectID, drop))

	found, err := store.Sprints().FindByName(ctx, projectID, "Sprint 1")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{keep}, found.Stories)

	dup := &models.Sprint{ProjectID: projectID, Name: "Sprint 1", StartDate: sprint.StartDate, EndDate: sprint.EndDate}
	assert.ErrorIs(t, store.Sprints().Create(ctx, dup), repositories.ErrDuplicate)
}

func TestGormStore_Tokens(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	userID := uuid.Must(uuid.NewV4())

	expired := &models.Token{Token: "111111", UserID: userID, ExpiresAt: now.Add(-time.Minute)}
	live := &models.Token{Token: "222222", UserID: userID, ExpiresAt: now.Add(models.TokenTTL)}
	require.NoError(t, store.Tokens().Create(ctx, expired))
	require.NoError(t, store.Tokens().Create(ctx, live))

	_, err := store.Tokens().FindByToken(ctx, "111111", now)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	found, err := store.Tokens().FindByToken(ctx, "222222", now)
	require.NoError(t, err)
	assert.Equal(t, live.ID, found.ID)

	n, err := store.Tokens().DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGormStore_ProjectLists(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	ctx := context.Background()

	manager := newUser(t, store, "pm@example.com")
	member := newUser(t, store, "dev@example.com")
	project := newProject(t, store, manager.ID)

	require.NoError(t, store.Projects().AddMember(ctx, project.ID, member.ID))
	assert.ErrorIs(t, store.Projects().AddMember(ctx, project.ID, member.ID), repositories.ErrDuplicate)

	first, second := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	require.NoError(t, store.WithinTx(ctx, func(tx repositories.Store) error {
		if err := tx.Projects().AddTask(ctx, project.ID, first); err != nil {
			return err
		}
		return tx.Projects().AddTask(ctx, project.ID, second)
	}))
	require.NoError(t, store.Projects().AddTask(ctx, project.ID, first))
	require.NoError(t, store.Projects().RemoveTask(ctx, project.ID, first))

	// A stale copy must not bring back removed entries.
	stale := *project
	stale.ProjectName = "Renamed"
	stale.Tasks = []uuid.UUID{first}
	require.NoError(t, store.Projects().UpdateDetails(ctx, &stale))

	got, err := store.Projects().FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.ProjectName)
	assert.Equal(t, []uuid.UUID{second}, got.Tasks)
	assert.Equal(t, []uuid.UUID{member.ID}, got.Team)

	require.NoError(t, store.Projects().RemoveMember(ctx, project.ID, member.ID))
	assert.ErrorIs(t, store.Projects().RemoveMember(ctx, project.ID, member.ID), repositories.ErrNotFound)

	missing := uuid.Must(uuid.NewV4())
	assert.ErrorIs(t, store.Projects().AddTask(ctx, missing, first), repositories.ErrNotFound)
	assert.ErrorIs(t, store.Projects().UpdateDetails(ctx, &models.Project{ID: missing}), repositories.ErrNotFound)
}
