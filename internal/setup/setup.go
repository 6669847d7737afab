// Package setup registers the standalone NutriCheck MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ServerName is the key the server is registered under in the client configuration.
const ServerName = "nutricheck"

// Environment variables written into the client configuration.
const (
	EnvDataDir    = "NUTRICHECK_DATA_DIR"
	EnvPracticeID = "NUTRICHECK_PRACTICE_ID"
	EnvLanguage   = "NUTRICHECK_LANGUAGE"
)

// ClientConfig is the MCP client configuration file. Unknown top-level keys are kept.
type ClientConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for the setup process.
type Options struct {
	ConfigPath string // client config file; empty means the platform default
	BinaryPath string
	DataDir    string
	PracticeID string
	Language   string
}

// DefaultClientConfigPath returns the platform location of the desktop client's config file.
func DefaultClientConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads the client configuration. A missing file yields an empty one.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: map[string]MCPServerConfig{}, extra: map[string]json.RawMessage{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]MCPServerConfig{}
	}
	return cfg, nil
}

// Save writes the configuration, creating its directory when needed.
func (c *ClientConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(c.extra)+1)
	for k, v := range c.extra {
		out[k] = v
	}
	out["mcpServers"] = c.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the NutriCheck entry in the client configuration and
// returns the path written.
func Register(opts Options) (string, error) {
	path := opts.ConfigPath
	if path == "" {
		var err error
		if path, err = DefaultClientConfigPath(); err != nil {
			return "", err
		}
	}
	if opts.BinaryPath == "" {
		return "", fmt.Errorf("server binary path is required")
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return "", err
	}

	env := map[string]string{}
	if opts.DataDir != "" {
		env[EnvDataDir] = opts.DataDir
	}
	if opts.PracticeID != "" {
		env[EnvPracticeID] = opts.PracticeID
	}
	if opts.Language != "" {
		env[EnvLanguage] = opts.Language
	}
	cfg.MCPServers[ServerName] = MCPServerConfig{Command: opts.BinaryPath, Env: env}

	if err := cfg.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

// Status describes the registration found in a client configuration.
type Status struct {
	ConfigPath string
	Registered bool
	ServerPath string
	DataDir    string
	Issues     []string
}

// GetStatus inspects the client configuration at path (the platform default when empty).
func GetStatus(path string) (*Status, error) {
	if path == "" {
		var err error
		if path, err = DefaultClientConfigPath(); err != nil {
			return nil, err
		}
	}
	status := &Status{ConfigPath: path, DataDir: DefaultDataDir()}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}
	server, ok := cfg.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "NutriCheck is not registered")
		return status, nil
	}

	status.Registered = true
	status.ServerPath = server.Command
	if dir := server.Env[EnvDataDir]; dir != "" {
		status.DataDir = dir
	}
	if _, err := os.Stat(server.Command); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", server.Command))
	}
	if _, err := os.Stat(status.DataDir); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("data directory will be created on first run: %s", status.DataDir))
	}
	return status, nil
}

// DefaultDataDir returns the default data directory path.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nutricheck")
}
