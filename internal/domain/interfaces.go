package domain

import (
	"context"
)

// PracticeRepository manages practices, profiles and global settings.
type PracticeRepository interface {
	ListPractices(ctx context.Context) ([]*Practice, error)
	GetPractice(ctx context.Context, id string) (*Practice, error)
	UpdatePractice(ctx context.Context, p *Practice) error
	DeletePractice(ctx context.Context, id string) error
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// SessionProvider resolves the authenticated caller of a request.
type SessionProvider interface {
	Current(ctx context.Context) (*Identity, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
