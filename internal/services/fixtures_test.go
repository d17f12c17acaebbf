package services_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/repositories"
	"scrumboard/backend/internal/services"
	"scrumboard/backend/internal/testutil"

	"github.com/gofrs/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// boardSuite seeds a project with a manager, one team member and one outsider.
type boardSuite struct {
	suite.Suite
	ctx   context.Context
	store *repositories.GormStore

	manager  *models.User
	member   *models.User
	outsider *models.User
	project  *models.Project
}

func (s *boardSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = testutil.NewSQLiteStore(s.T())

	s.manager = createUser(s.T(), s.store, "Maria Manager", models.RoleScrumMaster)
	s.member = createUser(s.T(), s.store, "Dev Member", models.RoleScrumTeam)
	s.outsider = createUser(s.T(), s.store, "Otto Outsider", models.RoleScrumTeam)
	s.project = createProject(s.T(), s.store, s.manager, s.member)
}

func (s *boardSuite) requireKind(err error, kind services.ErrorKind) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(kind, services.KindOf(err), err.Error())
}

func createUser(t *testing.T, store repositories.Store, name string, role models.Role) *models.User {
	t.Helper()
	id := uuid.Must(uuid.NewV4())
	user := &models.User{
		ID:        id,
		Email:     id.String() + "@example.com",
		Password:  "x",
		Name:      name,
		Confirmed: true,
		Role:      role,
	}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func createProject(t *testing.T, store repositories.Store, manager *models.User, team ...*models.User) *models.Project {
	t.Helper()
	project := &models.Project{
		ID:          uuid.Must(uuid.NewV4()),
		ProjectName: "Board",
		ClientName:  "Acme",
		Description: "Scrum board",
		Manager:     manager.ID,
		Team:        []uuid.UUID{},
		Tasks:       []uuid.UUID{},
	}
	for _, u := range team {
		project.Team = append(project.Team, u.ID)
	}
	require.NoError(t, store.Projects().Create(context.Background(), project))
	return project
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fixedClock(now time.Time) services.Clock {
	return services.Clock{Now: func() time.Time { return now }, Location: time.UTC}
}

type sentMail struct {
	kind  string
	email string
	token string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *recordingNotifier) SendConfirmation(_ context.Context, user *models.User, token string) error {
	n.record("confirm", user, token)
	return nil
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, user *models.User, token string) error {
	n.record("reset", user, token)
	return nil
}

func (n *recordingNotifier) record(kind string, user *models.User, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: kind, email: user.Email, token: token})
}

func (n *recordingNotifier) last() sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentMail{}
	}
	return n.sent[len(n.sent)-1]
}
