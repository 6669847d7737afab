// Package main is the entry point of the NutriCheck dashboard API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/api"
	"github.com/nutricheck-server/internal/config"
	"github.com/nutricheck-server/internal/database"
	"github.com/nutricheck-server/internal/events"
	"github.com/nutricheck-server/internal/guard"
	"github.com/nutricheck-server/internal/notify"
	"github.com/nutricheck-server/internal/records"
	"github.com/nutricheck-server/internal/repository"
	"github.com/nutricheck-server/internal/scoring"
	"github.com/nutricheck-server/internal/service"
	"github.com/nutricheck-server/internal/session"
	"github.com/nutricheck-server/internal/wizard"
)

var version = "dev"

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"version": version,
	}).Info("Starting NutriCheck server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := database.Migrate(ctx, configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database), logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store, err := records.NewPostgresStoreFromURL(configManager.GetDatabaseURL(), cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to open screening store: %v", err)
	}
	defer store.Close()

	redisClient, err := guard.NewRedisClient(ctx, cfg.Cache)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	practices := repository.NewPracticeRepository(db.Pool, logger)

	auth, err := session.NewJWTProvider(cfg.Auth, cfg.Cache, practices, logger)
	if err != nil {
		logger.Fatalf("Failed to configure authentication: %v", err)
	}

	sender, err := notify.NewSender(cfg.Email, logger)
	if err != nil {
		logger.Fatalf("Failed to configure email: %v", err)
	}

	hub := events.NewHub(cfg.Server.AllowedOrigins, logger)
	scorer := scoring.NewScorer(nil)

	svc := service.NewScreeningService(service.Dependencies{
		Store:      store,
		Practices:  practices,
		Identities: auth,
		Sender:     sender,
		Guard:      guard.NewRedisGuard(redisClient, cfg.Cache.SubmissionTTL),
		Events:     hub,
		Drafts:     wizard.NewManager(cfg.Wizard, scorer, logger),
		Scorer:     scorer,
		Logger:     logger,
	})

	server := api.NewServer(api.Options{
		Config:  cfg.Server,
		Service: svc,
		Auth:    auth,
		Hub:     hub,
		Checks: map[string]api.HealthCheck{
			"database": db.Health,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
		Logger:  logger,
		Version: version,
		Debug:   configManager.IsDevelopment() && cfg.Logging.Level == "debug",
	})

	if err := server.Start(ctx); err != nil {
		logger.Errorf("Server failed: %v", err)
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
