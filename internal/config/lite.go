// Package config provides configuration management for the NutriCheck servers.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nutricheck-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for data files

	// Questionnaire drafts
	DraftMaxItems int           // Maximum drafts held in memory
	DraftTTL      time.Duration // Idle drafts expire after this

	// Filing
	PracticeID string          // Practice that saved screenings are filed under
	Language   domain.Language // Default report language

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".nutricheck")

	return &LiteConfig{
		DataDir:       dataDir,
		DraftMaxItems: 100,
		DraftTTL:      2 * time.Hour,
		PracticeID:    "local",
		Language:      domain.DefaultLanguage,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("NUTRICHECK_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("NUTRICHECK_DRAFT_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DraftMaxItems = n
		}
	}
	if v := os.Getenv("NUTRICHECK_DRAFT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.DraftTTL = d
		}
	}

	if v := os.Getenv("NUTRICHECK_PRACTICE_ID"); v != "" {
		cfg.PracticeID = v
	}
	if v := os.Getenv("NUTRICHECK_LANGUAGE"); v != "" {
		cfg.Language = domain.Language(v).OrDefault()
	}

	if v := os.Getenv("NUTRICHECK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("NUTRICHECK_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// ScreeningsDBPath returns the path to the screenings SQLite database.
func (c *LiteConfig) ScreeningsDBPath() string {
	return filepath.Join(c.DataDir, "screenings.db")
}

// ExportDir returns the directory for JSON and spreadsheet exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// Logging returns the logging section in the shape NewLogger expects.
// The lite server speaks MCP over stdout, so logs go to stderr.
func (c *LiteConfig) Logging() domain.LoggingConfig {
	return domain.LoggingConfig{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		Output: "stderr",
	}
}
