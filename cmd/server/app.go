package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scrumboard/backend/internal/config"
	"scrumboard/backend/internal/database"
	"scrumboard/backend/internal/locks"
	"scrumboard/backend/internal/middleware"
	"scrumboard/backend/internal/monitoring"
	"scrumboard/backend/internal/notify"
	"scrumboard/backend/internal/planner"
	"scrumboard/backend/internal/repositories"
	"scrumboard/backend/internal/server"
	"scrumboard/backend/internal/services"
	"scrumboard/backend/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   repositories.Store
	redis   *redis.Client
	worker  *worker.Worker
	limiter *middleware.IPRateLimiter
	server  *http.Server
	done    chan struct{}
}

func newLogger(cfg config.LogConfig, production bool) *log.Logger {
	logger := log.New()
	if production || strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func gormLogLevel(level log.Level) gormlogger.LogLevel {
	switch {
	case level >= log.DebugLevel:
		return gormlogger.Info
	case level >= log.WarnLevel:
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (repositories.Store, error) {
	switch cfg.Database.Driver {
	case "mongo":
		client, err := database.NewMongoClient(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		store := repositories.NewMongoStore(client, cfg.Mongo.Database, cfg.Mongo.Transactions)
		if err := store.EnsureIndexes(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		return store, nil
	default:
		pool, err := database.NewDatabasePool(&database.PoolConfig{
			Driver:          cfg.Database.Driver,
			DSN:             cfg.GetDatabaseDSN(),
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			LogLevel:        gormLogLevel(logger.GetLevel()),
		})
		if err != nil {
			return nil, err
		}
		store := repositories.NewGormStore(pool.DB)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return store, nil
	}
}

// connectRedis returns nil when Redis is disabled or unreachable; callers
// fall back to in-process locking and direct email delivery.
func connectRedis(ctx context.Context, cfg *config.Config, logger *log.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := database.NewRedisClient(ctx, &database.RedisConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, using in-process locks and direct email delivery")
		return nil
	}
	return client
}

func newApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*app, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		redis:  connectRedis(ctx, cfg, logger),
		done:   make(chan struct{}),
	}

	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     strconv.Itoa(cfg.Mail.Port),
		Username: cfg.Mail.User,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})

	monitor := monitoring.New()
	monitor.RegisterHealthCheck("store", store.Ping)

	var (
		locker     locks.Locker
		dispatcher notify.Dispatcher
	)
	if a.redis != nil {
		rdb := a.redis
		jobs := worker.NewJobQueue(rdb)
		locker = locks.NewRedisLocker(rdb, locks.RedisLockerConfig{})
		dispatcher = notify.NewQueueDispatcher(jobs, queueName(cfg))
		monitor.RegisterHealthCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		monitor.RegisterGauge("job_queues", func(ctx context.Context) (map[string]int64, error) {
			queues := cfg.Worker.Queues
			if len(queues) == 0 {
				queues = []string{worker.DefaultQueue}
			}
			return jobs.Depths(ctx, queues)
		})
	} else {
		locker = locks.NewLocalLocker()
		dispatcher = notify.NewDirectDispatcher(mailer, cfg.Worker.JobTimeout, logger)
	}
	notifier := notify.NewEmailNotifier(dispatcher, cfg.Mail.FrontendURL, cfg.Mail.AppName, logger)

	clock := services.Clock{Location: loc}
	auth := services.NewAuthService(store, notifier, services.AuthOptions{
		JWTSecret:      cfg.Auth.JWTSecret,
		AccessTokenTTL: cfg.Auth.AccessTokenTTL,
		BCryptCost:     cfg.Auth.BCryptCost,
	}, logger)

	planClient := planner.NewClient(planner.Config{
		WebhookURL: cfg.Planner.WebhookURL,
		Timeout:    cfg.Planner.Timeout,
		Breaker: planner.BreakerConfig{
			MaxFailures:      cfg.Planner.BreakerMaxFailures,
			Timeout:          cfg.Planner.BreakerTimeout,
			HalfOpenMaxCalls: 1,
		},
		Logger: logger,
	})

	if cfg.RateLimit.Enabled {
		a.limiter = middleware.NewIPRateLimiter(middleware.RateLimitConfig{
			RequestsPerMin:  cfg.RateLimit.RequestsPerMin,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		})
	}

	router := server.NewRouter(server.Services{
		Auth:     auth,
		Profile:  services.NewProfileService(store),
		Projects: services.NewProjectService(store, logger),
		Tasks:    services.NewTaskService(store),
		Backlog:  services.NewBacklogService(store, locker),
		Sprints:  services.NewSprintService(store, clock),
		Metrics:  services.NewMetricsService(store, clock, nil),
		Planning: services.NewPlanningService(planClient, logger),
	}, server.Options{
		Logger:      logger,
		Monitor:     monitor,
		RateLimiter: a.limiter,
		CORS: server.CORSOptions{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowNoOrigin:  cfg.CORS.AllowNoOrigin,
		},
	})

	a.server = &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	a.startBackground(auth, mailer)
	return a, nil
}

func queueName(cfg *config.Config) string {
	if len(cfg.Worker.Queues) > 0 {
		return cfg.Worker.Queues[0]
	}
	return worker.DefaultQueue
}

// startBackground runs email delivery and expired-token cleanup on the Redis
// worker when available, otherwise cleanup runs on a local ticker.
func (a *app) startBackground(auth services.AuthService, mailer notify.Mailer) {
	purge := func(ctx context.Context, _ *worker.Job) error {
		_, err := auth.PurgeExpiredTokens(ctx)
		return err
	}

	if a.redis != nil {
		a.worker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  a.redis,
			Concurrency:  a.cfg.Worker.Concurrency,
			PollInterval: a.cfg.Worker.PollInterval,
			Queues:       a.cfg.Worker.Queues,
			RetryBase:    a.cfg.Worker.RetryBase,
			JobTimeout:   a.cfg.Worker.JobTimeout,
			Logger:       a.logger,
		})
		a.worker.RegisterHandler(worker.JobTypeEmailNotification, notify.EmailJobHandler(mailer))
		a.worker.RegisterHandler(worker.JobTypeTokenCleanup, purge)
		a.worker.Schedule(a.cfg.Worker.TokenCleanupInterval, worker.JobTypeTokenCleanup, nil)
		a.worker.Start()
	} else {
		go a.cleanupLoop(purge)
	}

	if a.limiter != nil {
		go a.limiter.Run(a.done)
	}
}

func (a *app) cleanupLoop(purge worker.JobHandler) {
	ticker := time.NewTicker(a.cfg.Worker.TokenCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Worker.JobTimeout)
			if err := purge(ctx, nil); err != nil {
				a.logger.WithError(err).Warn("Token cleanup failed")
			}
			cancel()
		}
	}
}

// run serves until ctx is cancelled, then drains in-flight requests.
func (a *app) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", a.server.Addr).Info("HTTP server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown failed")
	}

	a.close()
	return serveErr
}

func (a *app) close() {
	select {
	case <-a.done:
		return
	default:
		close(a.done)
	}

	if a.worker != nil {
		a.worker.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close redis client")
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close store")
	}
	a.logger.Info("Shutdown complete")
}
