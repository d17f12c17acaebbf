// Package server assembles the gin engine: operational endpoints at the root
// and the JSON API under /api.
package server

import (
	"net/http"
	"time"

	"scrumboard/backend/internal/handlers"
	"scrumboard/backend/internal/middleware"
	"scrumboard/backend/internal/monitoring"
	"scrumboard/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type Services struct {
	Auth     services.AuthService
	Profile  services.ProfileService
	Projects services.ProjectService
	Tasks    services.TaskService
	Backlog  services.BacklogService
	Sprints  services.SprintService
	Metrics  services.MetricsService
	Planning services.PlanningService
}

type CORSOptions struct {
	AllowedOrigins []string
	// AllowNoOrigin lets non-browser clients call the API without an Origin header.
	AllowNoOrigin bool
}

type Options struct {
	Logger      log.FieldLogger
	Monitor     *monitoring.Monitor
	CORS        CORSOptions
	RateLimiter *middleware.IPRateLimiter
}

func NewRouter(svc Services, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Monitor == nil {
		opts.Monitor = monitoring.New()
	}
	logger := opts.Logger

	router := gin.New()
	router.Use(middleware.RecoveryWithLogger(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(opts.Monitor.Middleware())
	router.Use(corsMiddleware(opts.CORS))
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	router.GET("/healthz", opts.Monitor.HealthHandler())
	router.GET("/readyz", opts.Monitor.ReadinessHandler())
	router.GET("/livez", opts.Monitor.LivenessHandler())
	router.GET("/metrics", opts.Monitor.MetricsHandler())

	api := router.Group("/api")
	api.Use(requireOrigin(opts.CORS.AllowNoOrigin))

	authHandler := handlers.NewAuthHandler(svc.Auth, logger)
	authenticate := middleware.Authenticate(svc.Auth)

	auth := api.Group("/auth")
	if opts.RateLimiter != nil {
		auth.Use(middleware.RateLimit(opts.RateLimiter))
	}
	auth.POST("/create-account", authHandler.CreateAccount)
	auth.POST("/confirm-account", authHandler.ConfirmAccount)
	auth.POST("/login", authHandler.Login)
	auth.POST("/request-code", authHandler.RequestConfirmationCode)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/validate-token", authHandler.ValidateToken)
	auth.POST("/update-password/:token", authHandler.UpdatePassword)
	auth.GET("/user", authenticate, authHandler.User)

	protected := api.Group("")
	protected.Use(authenticate)

	profileHandler := handlers.NewProfileHandler(svc.Profile, logger)
	protected.GET("/profile", profileHandler.Get)
	protected.PUT("/profile", profileHandler.Update)
	protected.POST("/profile/technologies", profileHandler.AddTechnology)
	protected.DELETE("/profile/technologies/:technology", profileHandler.RemoveTechnology)

	projectHandler := handlers.NewProjectHandler(svc.Projects, logger)
	protected.POST("/projects", projectHandler.Create)
	protected.GET("/projects", projectHandler.List)

	project := protected.Group("/projects/:projectId")
	project.GET("", projectHandler.Get)
	project.PUT("", projectHandler.Update)
	project.DELETE("", projectHandler.Delete)

	taskHandler := handlers.NewTaskHandler(svc.Tasks, logger)
	project.POST("/tasks", taskHandler.CreateTask)
	project.GET("/tasks", taskHandler.GetTasks)
	project.GET("/tasks/:taskId", taskHandler.GetTaskByID)
	project.PUT("/tasks/:taskId", taskHandler.UpdateTask)
	project.DELETE("/tasks/:taskId", taskHandler.DeleteTask)
	project.POST("/tasks/:taskId/status", taskHandler.UpdateStatus)

	project.POST("/team/find", projectHandler.FindMember)
	project.POST("/team", projectHandler.AddMember)
	project.GET("/team", projectHandler.ListMembers)
	project.DELETE("/team/:memberId", projectHandler.RemoveMember)

	backlogHandler := handlers.NewBacklogHandler(svc.Backlog, logger)
	project.GET("/backlog", backlogHandler.List)
	project.POST("/backlog", backlogHandler.Create)
	project.PUT("/backlog/reorder", backlogHandler.Reorder)
	project.GET("/backlog/:storyId", backlogHandler.Get)
	project.PUT("/backlog/:storyId", backlogHandler.Update)
	project.DELETE("/backlog/:storyId", backlogHandler.Delete)

	sprintHandler := handlers.NewSprintHandler(svc.Sprints, logger)
	project.GET("/sprints", sprintHandler.List)
	project.POST("/sprints", sprintHandler.Create)
	project.GET("/sprints/:sprintId", sprintHandler.Get)
	project.PUT("/sprints/:sprintId", sprintHandler.Update)
	project.DELETE("/sprints/:sprintId", sprintHandler.Delete)
	project.GET("/sprints/:sprintId/stories", sprintHandler.GetStories)
	project.PUT("/sprints/:sprintId/stories", sprintHandler.AssignStories)
	project.GET("/sprints/:sprintId/burndown", sprintHandler.Burndown)

	reportHandler := handlers.NewReportHandler(svc.Metrics, svc.Planning, logger)
	project.GET("/metrics", reportHandler.ProjectMetrics)
	protected.POST("/ai/generate-project-plan", reportHandler.GeneratePlan)

	return router
}

// corsMiddleware answers preflight requests and allows the configured
// origins. It runs on the engine so unmatched OPTIONS requests reach it.
func corsMiddleware(opts CORSOptions) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		allowed[origin] = struct{}{}
	}

	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			_, ok := allowed[origin]
			return ok
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// requireOrigin refuses API calls without an Origin header unless allowNoOrigin is set.
func requireOrigin(allowNoOrigin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Origin") == "" && !allowNoOrigin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CORS error"})
			return
		}
		c.Next()
	}
}
