package services_test

import (
	"testing"
	"time"

	"scrumboard/backend/internal/locks"
	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/services"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type SprintServiceTestSuite struct {
	boardSuite
	service *services.SprintServiceImpl
	backlog *services.BacklogServiceImpl
	now     time.Time
}

func TestSprintServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SprintServiceTestSuite))
}

func (s *SprintServiceTestSuite) SetupTest() {
	s.boardSuite.SetupTest()
	s.now = time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC)
	s.service = services.NewSprintService(s.store, fixedClock(s.now))
	s.backlog = services.NewBacklogService(s.store, locks.NewLocalLocker())
}

func (s *SprintServiceTestSuite) createSprint(name, start, end string) *models.Sprint {
	sprint, err := s.service.Create(s.ctx, s.manager, s.project.ID, services.CreateSprintRequest{
		Name: name, StartDate: start, EndDate: end,
	})
	s.Require().NoError(err)
	return sprint
}

func (s *SprintServiceTestSuite) createStory(persona string) *models.ProductBacklogItem {
	item, err := s.backlog.Create(s.ctx, s.manager, s.project.ID, services.CreateBacklogItemRequest{
		Persona: persona, Objetivo: "goal", Beneficio: "value",
	})
	s.Require().NoError(err)
	return item
}

func (s *SprintServiceTestSuite) TestCreate() {
	sprint := s.createSprint("  Sprint 1 ", "2024-01-01", "2024-01-14T18:00:00Z")

	s.Equal("Sprint 1", sprint.Name)
	s.Equal(models.SprintPlanned, sprint.Status)
	s.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), sprint.StartDate.UTC())
	s.Empty(sprint.Stories)
}

func (s *SprintServiceTestSuite) TestCreateValidation() {
	cases := []services.CreateSprintRequest{
		{Name: "", StartDate: "2024-01-01", EndDate: "2024-01-02"},
		{Name: "S", StartDate: "tomorrow", EndDate: "2024-01-02"},
		{Name: "S", StartDate: "2024-01-05", EndDate: "2024-01-02"},
	}
	for _, req := range cases {
		_, err := s.service.Create(s.ctx, s.manager, s.project.ID, req)
		s.requireKind(err, services.KindValidation)
	}

	_, err := s.service.Create(s.ctx, s.member, s.project.ID, services.CreateSprintRequest{
		Name: "S", StartDate: "2024-01-01", EndDate: "2024-01-02",
	})
	s.requireKind(err, services.KindAuthorization)
}

func (s *SprintServiceTestSuite) TestSprintLengthIsBounded() {
	_, err := s.service.Create(s.ctx, s.manager, s.project.ID, services.CreateSprintRequest{
		Name: "Forever", StartDate: "0001-01-01", EndDate: "9999-12-31",
	})
	s.requireKind(err, services.KindValidation)

	_, err = s.service.Create(s.ctx, s.manager, s.project.ID, services.CreateSprintRequest{
		Name: "Too long", StartDate: "2024-01-01", EndDate: "2025-01-02",
	})
	s.requireKind(err, services.KindValidation)

	year := s.createSprint("Leap year", "2024-01-01", "2025-01-01")

	end := "2025-06-30"
	_, err = s.service.Update(s.ctx, s.manager, s.project.ID, year.ID, services.UpdateSprintRequest{EndDate: &end})
	s.requireKind(err, services.KindValidation)

	got, err := s.service.Get(s.ctx, s.manager, s.project.ID, year.ID)
	s.Require().NoError(err)
	s.Equal(2025, got.EndDate.Year())
	s.Equal(time.January, got.EndDate.Month())
}

func (s *SprintServiceTestSuite) TestDuplicateNameIsConflict() {
	s.createSprint("Sprint 1", "2024-01-01", "2024-01-14")

	_, err := s.service.Create(s.ctx, s.manager, s.project.ID, services.CreateSprintRequest{
		Name: "Sprint 1", StartDate: "2024-02-01", EndDate: "2024-02-14",
	})
	s.requireKind(err, services.KindConflict)

	other := createProject(s.T(), s.store, s.manager)
	_, err = s.service.Create(s.ctx, s.manager, other.ID, services.CreateSprintRequest{
		Name: "Sprint 1", StartDate: "2024-02-01", EndDate: "2024-02-14",
	})
	s.NoError(err)
}

func (s *SprintServiceTestSuite) TestUpdate() {
	first := s.createSprint("Sprint 1", "2024-01-01", "2024-01-14")
	second := s.createSprint("Sprint 2", "2024-01-15", "2024-01-28")

	unknown := "paused"
	end := "2024-01-20"
	updated, err := s.service.Update(s.ctx, s.manager, s.project.ID, first.ID, services.UpdateSprintRequest{
		EndDate: &end,
		Status:  &unknown,
	})
	s.Require().NoError(err)
	s.Equal(models.SprintPlanned, updated.Status)
	s.Equal(20, updated.EndDate.Day())

	active := "active"
	updated, err = s.service.Update(s.ctx, s.manager, s.project.ID, first.ID, services.UpdateSprintRequest{Status: &active})
	s.Require().NoError(err)
	s.Equal(models.SprintActive, updated.Status)

	name := "Sprint 2"
	_, err = s.service.Update(s.ctx, s.manager, s.project.ID, first.ID, services.UpdateSprintRequest{Name: &name})
	s.requireKind(err, services.KindConflict)

	start := "2024-02-01"
	_, err = s.service.Update(s.ctx, s.manager, s.project.ID, second.ID, services.UpdateSprintRequest{StartDate: &start})
	s.requireKind(err, services.KindValidation)
}

func (s *SprintServiceTestSuite) TestListSortedByStartDate() {
	late := s.createSprint("Late", "2024-03-01", "2024-03-14")
	early := s.createSprint("Early", "2024-01-01", "2024-01-14")

	list, err := s.service.List(s.ctx, s.member, s.project.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(early.ID, list[0].ID)
	s.Equal(late.ID, list[1].ID)

	_, err = s.service.List(s.ctx, s.outsider, s.project.ID)
	s.requireKind(err, services.KindNotFound)
}

func (s *SprintServiceTestSuite) TestAssignAndGetStories() {
	sprint := s.createSprint("Sprint 1", "2024-01-01", "2024-01-14")
	first := s.createStory("first")
	second := s.createStory("second")

	updated, err := s.service.AssignStories(s.ctx, s.manager, s.project.ID, sprint.ID,
		[]uuid.UUID{second.ID, first.ID, second.ID})
	s.Require().NoError(err)
	s.ElementsMatch([]uuid.UUID{first.ID, second.ID}, updated.Stories)

	views, err := s.service.GetStories(s.ctx, s.member, s.project.ID, sprint.ID)
	s.Require().NoError(err)
	s.Require().Len(views, 2)
	s.Equal(first.ID, views[0].ID)
	s.Equal(s.project.ID, views[0].Project)
	s.Equal(second.ID, views[1].ID)

	foreignProject := createProject(s.T(), s.store, s.manager)
	foreign, err := s.backlog.Create(s.ctx, s.manager, foreignProject.ID, services.CreateBacklogItemRequest{
		Persona: "p", Objetivo: "o", Beneficio: "b",
	})
	s.Require().NoError(err)

	_, err = s.service.AssignStories(s.ctx, s.manager, s.project.ID, sprint.ID, []uuid.UUID{first.ID, foreign.ID})
	s.requireKind(err, services.KindValidation)

	got, err := s.service.Get(s.ctx, s.manager, s.project.ID, sprint.ID)
	s.Require().NoError(err)
	s.Len(got.Stories, 2)
}

func (s *SprintServiceTestSuite) TestDeleteClearsTaskReferences() {
	sprint := s.createSprint("Sprint 1", "2024-01-01", "2024-01-14")
	sprintID := sprint.ID
	task := &models.Task{
		ID:          uuid.Must(uuid.NewV4()),
		ProjectID:   s.project.ID,
		Name:        "task",
		Description: "desc",
		Status:      models.TaskPending,
		SprintID:    &sprintID,
	}
	s.Require().NoError(s.store.Tasks().Create(s.ctx, task))

	s.Require().NoError(s.service.Delete(s.ctx, s.manager, s.project.ID, sprint.ID))

	got, err := s.store.Tasks().FindByID(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Nil(got.SprintID)

	_, err = s.service.Get(s.ctx, s.manager, s.project.ID, sprint.ID)
	s.requireKind(err, services.KindNotFound)
}

func (s *SprintServiceTestSuite) TestBurndown() {
	sprint := s.createSprint("Sprint 1", "2024-01-01", "2024-01-05")
	sprintID := sprint.ID

	for i := 0; i < 10; i++ {
		task := &models.Task{
			ID:          uuid.Must(uuid.NewV4()),
			ProjectID:   s.project.ID,
			Name:        "task",
			Description: "desc",
			Status:      models.TaskPending,
			SprintID:    &sprintID,
			CreatedAt:   time.Date(2023, 12, 30, 9, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2023, 12, 30, 9, 0, 0, 0, time.UTC),
		}
		if i < 3 {
			task.Status = models.TaskCompleted
			task.UpdatedAt = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
		}
		s.Require().NoError(s.store.Tasks().Create(s.ctx, task))
	}

	report, err := s.service.Burndown(s.ctx, s.member, s.project.ID, sprint.ID)
	s.Require().NoError(err)

	s.Equal(10, report.TotalTasks)
	s.Equal(3, report.CompletedTasks)
	s.Equal(30, report.Progress)
	s.Equal(2, report.DaysRemaining)
	s.Equal(models.SprintActive, report.Status)

	s.Require().Len(report.Burndown, 5)
	assert.Equal(s.T(), "2024-01-03", report.Burndown[2].Date)
	s.Equal(5, report.Burndown[2].IdealRemaining)
	s.Equal(10, report.Burndown[0].IdealRemaining)
	s.Equal(0, report.Burndown[4].IdealRemaining)
	s.Equal(10, report.Burndown[0].ActualRemaining)
	s.Equal(7, report.Burndown[1].ActualRemaining)
	s.Equal(3, report.Burndown[4].ActualCompleted)
}
