// Package main provides the standalone NutriCheck MCP server.
// It needs no external services: screenings are kept in a local SQLite file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/config"
	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/mcp"
	"github.com/nutricheck-server/internal/records"
	"github.com/nutricheck-server/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.NewCLI(os.Stdout).Run(os.Args[2:]); err != nil {
			logrus.Fatalf("Setup failed: %v", err)
		}
		return
	}

	cfg := config.LoadLiteConfig()
	logger := config.NewLogger(cfg.Logging())
	logger.WithField("data_dir", cfg.DataDir).Info("Starting NutriCheck MCP server (lite)")

	if err := cfg.EnsureDataDir(); err != nil {
		logger.Fatalf("Failed to create data directory: %v", err)
	}

	store, err := records.NewSQLiteStore(cfg.ScreeningsDBPath())
	if err != nil {
		logger.Fatalf("Failed to open screening store: %v", err)
	}

	server, err := mcp.NewServer(mcp.Options{
		Name:      "nutricheck-mcp-lite",
		Store:     store,
		Practice:  &domain.Practice{ID: cfg.PracticeID, Name: cfg.PracticeID, CreatedAt: time.Now().UTC()},
		Language:  cfg.Language,
		ExportDir: cfg.ExportDir(),
		Wizard:    domain.WizardConfig{DraftTTL: cfg.DraftTTL, MaxDrafts: cfg.DraftMaxItems},
		Logger:    logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		logger.Errorf("MCP server failed: %v", err)
		return
	}

	logger.Info("NutriCheck MCP server (lite) stopped")
}
