package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"scrumboard/backend/internal/config"

	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	logger := newLogger(cfg.Log, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to start application")
	}

	if err := a.run(ctx); err != nil {
		logger.WithError(err).Fatal("Server stopped with error")
	}
}
