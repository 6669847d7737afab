// Package main runs the NutriCheck MCP server against the shared Postgres database.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/config"
	"github.com/nutricheck-server/internal/database"
	"github.com/nutricheck-server/internal/mcp"
	"github.com/nutricheck-server/internal/records"
	"github.com/nutricheck-server/internal/repository"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	// stdout carries the MCP protocol
	cfg.Logging.Output = "stderr"
	logger := config.NewLogger(cfg.Logging)

	if cfg.MCP.PracticeID == "" {
		logger.Fatal("mcp.practice_id is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database), logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	practice, err := repository.NewPracticeRepository(db.Pool, logger).GetPractice(ctx, cfg.MCP.PracticeID)
	if err != nil {
		logger.Fatalf("Failed to load practice %s: %v", cfg.MCP.PracticeID, err)
	}

	store, err := records.NewPostgresStoreFromURL(configManager.GetDatabaseURL(), cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to open screening store: %v", err)
	}

	server, err := mcp.NewServer(mcp.Options{
		Name:     cfg.MCP.ServerName,
		Version:  cfg.MCP.ServerVersion,
		Store:    store,
		Practice: practice,
		Wizard:   cfg.Wizard,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	if err := server.Start(ctx); err != nil {
		logger.Errorf("MCP server failed: %v", err)
		return
	}

	logger.Info("NutriCheck MCP server stopped")
}
