package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/monitoring"
	"scrumboard/backend/internal/planner"
	"scrumboard/backend/internal/repositories"
	"scrumboard/backend/internal/server"
	"scrumboard/backend/internal/services"
	"scrumboard/backend/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

const frontendOrigin = "http://localhost:5173"

type codeRecorder struct {
	mu    sync.Mutex
	codes map[string]string
}

func (r *codeRecorder) SendConfirmation(_ context.Context, user *models.User, token string) error {
	r.record(user.Email, token)
	return nil
}

func (r *codeRecorder) SendPasswordReset(_ context.Context, user *models.User, token string) error {
	r.record(user.Email, token)
	return nil
}

func (r *codeRecorder) record(email, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[email] = token
}

func (r *codeRecorder) code(email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[email]
}

type stubPlanner struct {
	err error
}

func (p *stubPlanner) GeneratePlan(_ context.Context, payload map[string]interface{}) (interface{}, error) {
	if p.err != nil {
		return nil, p.err
	}
	return map[string]interface{}{"agentes": []interface{}{}}, nil
}

type RouterSuite struct {
	suite.Suite
	store    *repositories.GormStore
	auth     *services.AuthServiceImpl
	codes    *codeRecorder
	planner  *stubPlanner
	monitor  *monitoring.Monitor
	router   *gin.Engine
	manager  *models.User
	member   *models.User
	outsider *models.User
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s.store = testutil.NewSQLiteStore(s.T())
	s.codes = &codeRecorder{codes: make(map[string]string)}
	s.planner = &stubPlanner{}
	s.monitor = monitoring.New()

	clock := services.Clock{
		Now:      func() time.Time { return time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC) },
		Location: time.UTC,
	}
	s.auth = services.NewAuthService(s.store, s.codes, services.AuthOptions{
		JWTSecret:      "test-secret",
		AccessTokenTTL: time.Hour,
		BCryptCost:     bcrypt.MinCost,
	}, logger)

	svc := server.Services{
		Auth:     s.auth,
		Profile:  services.NewProfileService(s.store),
		Projects: services.NewProjectService(s.store, logger),
		Tasks:    services.NewTaskService(s.store),
		Backlog:  services.NewBacklogService(s.store, nil),
		Sprints:  services.NewSprintService(s.store, clock),
		Metrics:  services.NewMetricsService(s.store, clock, nil),
		Planning: services.NewPlanningService(s.planner, logger),
	}
	s.router = server.NewRouter(svc, server.Options{
		Logger:  logger,
		Monitor: s.monitor,
		CORS: server.CORSOptions{
			AllowedOrigins: []string{frontendOrigin},
			AllowNoOrigin:  true,
		},
	})

	s.manager = s.seedUser("manager@example.com", models.RoleScrumMaster)
	s.member = s.seedUser("member@example.com", models.RoleScrumTeam)
	s.outsider = s.seedUser("outsider@example.com", models.RoleScrumTeam)
}

func (s *RouterSuite) seedUser(email string, role models.Role) *models.User {
	user := &models.User{
		ID:        uuid.Must(uuid.NewV4()),
		Email:     email,
		Password:  "x",
		Name:      email,
		Confirmed: true,
		Role:      role,
	}
	s.Require().NoError(s.store.Users().Create(context.Background(), user))
	return user
}

func (s *RouterSuite) token(user *models.User) string {
	token, err := s.auth.GenerateToken(user)
	s.Require().NoError(err)
	return token
}

func (s *RouterSuite) do(method, path string, user *models.User, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(user))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, dest interface{}) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

type idResponse struct {
	ID string `json:"id"`
}

type storyResponse struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

func (s *RouterSuite) createProject() string {
	w := s.do(http.MethodPost, "/api/projects", s.manager, map[string]string{
		"projectName": "Board",
		"clientName":  "Acme",
		"description": "Scrum board",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var project idResponse
	s.decode(w, &project)

	w = s.do(http.MethodPost, "/api/projects/"+project.ID+"/team", s.manager, map[string]string{"id": s.member.ID.String()})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	return project.ID
}

func (s *RouterSuite) TestAccountFlow() {
	w := s.do(http.MethodPost, "/api/auth/create-account", nil, map[string]string{
		"name":                  "Nadia",
		"email":                 "Nadia@Example.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})
	s.Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/create-account", nil, map[string]string{
		"name":                  "Nadia",
		"email":                 "nadia@example.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", nil, map[string]string{"email": "nadia@example.com", "password": "password123"})
	s.Equal(http.StatusForbidden, w.Code, "unconfirmed accounts cannot log in")

	code := s.codes.code("nadia@example.com")
	s.Require().NotEmpty(code)
	w = s.do(http.MethodPost, "/api/auth/confirm-account", nil, map[string]string{"token": code})
	s.Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/login", nil, map[string]string{"email": "nadia@example.com", "password": "wrong-password"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", nil, map[string]string{"email": "nadia@example.com", "password": "password123"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	s.decode(w, &login)
	s.NotEmpty(login.Token)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"email":"nadia@example.com"`)
	s.NotContains(rec.Body.String(), "password123")

	w = s.do(http.MethodGet, "/api/auth/user", nil, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestPasswordReset() {
	w := s.do(http.MethodPost, "/api/auth/forgot-password", nil, map[string]string{"email": s.member.Email})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	code := s.codes.code(s.member.Email)
	w = s.do(http.MethodPost, "/api/auth/validate-token", nil, map[string]string{"token": code})
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/auth/update-password/"+code, nil, map[string]string{
		"password":              "new-password",
		"password_confirmation": "new-password",
	})
	s.Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/login", nil, map[string]string{"email": s.member.Email, "password": "new-password"})
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/auth/validate-token", nil, map[string]string{"token": code})
	s.Equal(http.StatusNotFound, w.Code, "tokens are single use")
}

func (s *RouterSuite) TestProjectVisibilityAndManagerGates() {
	projectID := s.createProject()

	w := s.do(http.MethodGet, "/api/projects/"+projectID, s.outsider, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/projects/"+projectID, s.member, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPut, "/api/projects/"+projectID, s.member, map[string]string{
		"projectName": "Hijacked", "clientName": "Acme", "description": "x",
	})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/projects/"+projectID+"/team", s.manager, map[string]string{"id": s.member.ID.String()})
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/projects/not-a-uuid", s.manager, nil)
	s.Equal(http.StatusBadRequest, w.Code)

	var projects []idResponse
	s.decode(s.do(http.MethodGet, "/api/projects", s.outsider, nil), &projects)
	s.Empty(projects)
}

func (s *RouterSuite) TestTaskAssignmentRequiresTeamMember() {
	projectID := s.createProject()

	w := s.do(http.MethodPost, "/api/projects/"+projectID+"/tasks", s.manager, map[string]string{
		"name": "Login form", "description": "Build it", "assignedTo": s.outsider.ID.String(),
	})
	s.Equal(http.StatusBadRequest, w.Code)

	var tasks []idResponse
	s.decode(s.do(http.MethodGet, "/api/projects/"+projectID+"/tasks", s.manager, nil), &tasks)
	s.Empty(tasks)

	w = s.do(http.MethodPost, "/api/projects/"+projectID+"/tasks", s.manager, map[string]string{
		"name": "Login form", "description": "Build it", "assignedTo": s.member.ID.String(),
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var task idResponse
	s.decode(w, &task)

	w = s.do(http.MethodPost, "/api/projects/"+projectID+"/tasks/"+task.ID+"/status", s.member, map[string]string{"status": "done"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/projects/"+projectID+"/tasks/"+task.ID+"/status", s.member, map[string]string{"status": "completed"})
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"completed"`)
}

func (s *RouterSuite) TestBacklogOrdering() {
	projectID := s.createProject()
	base := "/api/projects/" + projectID + "/backlog"

	var ids []string
	for _, persona := range []string{"admin", "developer", "customer"} {
		w := s.do(http.MethodPost, base, s.manager, map[string]interface{}{
			"persona": persona, "objetivo": "log in", "beneficio": "work", "estimate": 3,
		})
		s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
		var story storyResponse
		s.decode(w, &story)
		ids = append(ids, story.ID)
	}

	w := s.do(http.MethodPost, base, s.member, map[string]interface{}{
		"persona": "x", "objetivo": "y", "beneficio": "z",
	})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, base+"/reorder", s.manager, map[string][]string{"order": {ids[2], ids[0]}})
	s.Equal(http.StatusBadRequest, w.Code, "incomplete order is rejected")

	w = s.do(http.MethodPut, base+"/reorder", s.manager, map[string][]string{"order": {ids[2], ids[0], ids[1]}})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var reordered []storyResponse
	s.decode(w, &reordered)
	s.Require().Len(reordered, 3)
	s.Equal(ids[2], reordered[0].ID)
	s.Equal(1, reordered[0].Order)
	s.Equal(ids[1], reordered[2].ID)

	w = s.do(http.MethodDelete, base+"/"+ids[0], s.manager, nil)
	s.Equal(http.StatusOK, w.Code)

	var remaining []storyResponse
	s.decode(s.do(http.MethodGet, base, s.member, nil), &remaining)
	s.Require().Len(remaining, 2)
	s.Equal(1, remaining[0].Order)
	s.Equal(2, remaining[1].Order)
}

func (s *RouterSuite) TestSprintsAndReports() {
	projectID := s.createProject()
	base := "/api/projects/" + projectID

	w := s.do(http.MethodPost, base+"/backlog", s.manager, map[string]interface{}{
		"persona": "admin", "objetivo": "log in", "beneficio": "work", "estimate": 5,
	})
	s.Require().Equal(http.StatusCreated, w.Code)
	var story storyResponse
	s.decode(w, &story)

	sprintBody := map[string]string{"name": "Sprint 1", "startDate": "2024-01-01", "endDate": "2024-01-05"}
	w = s.do(http.MethodPost, base+"/sprints", s.manager, sprintBody)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var sprint idResponse
	s.decode(w, &sprint)

	w = s.do(http.MethodPost, base+"/sprints", s.manager, sprintBody)
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodPut, base+"/sprints/"+sprint.ID+"/stories", s.manager, map[string][]string{"stories": {story.ID}})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var stories []idResponse
	s.decode(s.do(http.MethodGet, base+"/sprints/"+sprint.ID+"/stories", s.member, nil), &stories)
	s.Require().Len(stories, 1)
	s.Equal(story.ID, stories[0].ID)

	for i := 0; i < 2; i++ {
		w = s.do(http.MethodPost, base+"/tasks", s.manager, map[string]string{
			"name": "Task", "description": "Work", "sprint": sprint.ID, "story": story.ID,
		})
		s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	}

	w = s.do(http.MethodGet, base+"/sprints/"+sprint.ID+"/burndown", s.member, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var report struct {
		TotalTasks int `json:"totalTasks"`
		Burndown   []struct {
			Date           string `json:"date"`
			IdealRemaining int    `json:"idealRemaining"`
		} `json:"burndown"`
	}
	s.decode(w, &report)
	s.Equal(2, report.TotalTasks)
	s.Require().Len(report.Burndown, 5)
	s.Equal(2, report.Burndown[0].IdealRemaining)
	s.Equal(0, report.Burndown[4].IdealRemaining)

	w = s.do(http.MethodGet, base+"/metrics", s.member, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"projectName":"Board"`)

	w = s.do(http.MethodGet, base+"/metrics", s.outsider, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodDelete, base+"/sprints/"+sprint.ID, s.manager, nil)
	s.Equal(http.StatusOK, w.Code)
	w = s.do(http.MethodGet, base+"/sprints/"+sprint.ID, s.manager, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestGeneratePlan() {
	w := s.do(http.MethodPost, "/api/ai/generate-project-plan", s.manager, map[string]interface{}{
		"projectInfo": map[string]string{"name": "Board"},
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "Missing required fields: teamMembers, projectRequirements, sprintConfiguration")

	full := map[string]interface{}{
		"projectInfo":         map[string]string{"name": "Board"},
		"teamMembers":         []string{"Nadia"},
		"projectRequirements": "auth",
		"sprintConfiguration": map[string]int{"weeks": 2},
	}
	w = s.do(http.MethodPost, "/api/ai/generate-project-plan", s.manager, full)
	s.Equal(http.StatusOK, w.Code, w.Body.String())
	s.Contains(w.Body.String(), "Planning generated successfully")

	s.planner.err = planner.ErrTimeout
	w = s.do(http.MethodPost, "/api/ai/generate-project-plan", s.manager, full)
	s.Equal(http.StatusGatewayTimeout, w.Code)

	s.planner.err = planner.ErrUpstream
	w = s.do(http.MethodPost, "/api/ai/generate-project-plan", s.manager, full)
	s.Equal(http.StatusBadGateway, w.Code)
}

func (s *RouterSuite) TestCORS() {
	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", frontendOrigin)
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusNoContent, w.Code)
	s.Equal(frontendOrigin, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RouterSuite) TestRequireOrigin() {
	router := server.NewRouter(server.Services{Auth: s.auth}, server.Options{
		Logger: logrus.New(),
		CORS:   server.CORSOptions{AllowedOrigins: []string{frontendOrigin}},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	s.Equal(http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	s.Equal(http.StatusOK, w.Code, "operational routes do not need an origin")
}

func (s *RouterSuite) TestOperationalRoutes() {
	s.monitor.RegisterHealthCheck("store", s.store.Ping)

	for _, path := range []string{"/healthz", "/readyz", "/livez", "/metrics"} {
		w := s.do(http.MethodGet, path, nil, nil)
		s.Equal(http.StatusOK, w.Code, path)
	}

	w := s.do(http.MethodGet, "/api/nowhere", s.manager, nil)
	s.Equal(http.StatusNotFound, w.Code)
}
