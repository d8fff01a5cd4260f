// Package config loads the runtime configuration from
// .toolforge/config.json in the workspace. Missing files and missing
// fields fall back to defaults; a present file only overrides what it
// sets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"toolforge/internal/primitive"
)

// DataDirName is the per-workspace data directory.
const DataDirName = ".toolforge"

// Config holds all toolforge configuration.
type Config struct {
	// Workspace is the directory the data dir lives under. Not
	// serialized; set by Load.
	Workspace string `json:"-"`

	Database  DatabaseConfig  `json:"database"`
	Execution ExecutionConfig `json:"execution"`
	Logging   LoggingConfig   `json:"logging"`
}

// DatabaseConfig configures the registry store.
type DatabaseConfig struct {
	// Path of the SQLite file, relative to the data dir unless
	// absolute.
	Path string `json:"path"`
}

// ExecutionConfig configures invocation defaults.
type ExecutionConfig struct {
	// DefaultTimeoutMs applies when a primitive declares no timeout.
	DefaultTimeoutMs int `json:"default_timeout_ms"`

	// ApprovalTimeoutMs bounds ask-mode approval waits.
	ApprovalTimeoutMs int `json:"approval_timeout_ms"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// DebugMode is the master toggle: false means console warnings
	// only, true adds a debug-level file log under the data dir.
	DebugMode bool `json:"debug_mode"`

	// Level applies to the console sink: debug, info, warn, error.
	Level string `json:"level"`
}

// Default returns the configuration used when no file exists.
func Default(workspace string) *Config {
	return &Config{
		Workspace: workspace,
		Database:  DatabaseConfig{Path: "registry.db"},
		Execution: ExecutionConfig{
			DefaultTimeoutMs:  primitive.DefaultTimeoutMs,
			ApprovalTimeoutMs: 60000,
		},
		Logging: LoggingConfig{DebugMode: false, Level: "warn"},
	}
}

// Load reads the workspace config, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	cfg := Default(workspace)

	raw, err := os.ReadFile(Path(workspace))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Workspace = workspace
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "registry.db"
	}
	if c.Execution.DefaultTimeoutMs <= 0 {
		c.Execution.DefaultTimeoutMs = primitive.DefaultTimeoutMs
	}
	if c.Execution.ApprovalTimeoutMs <= 0 {
		c.Execution.ApprovalTimeoutMs = 60000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "warn"
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, DataDirName, "config.json")
}

// DataDir returns the data directory for the workspace.
func (c *Config) DataDir() string {
	return filepath.Join(c.Workspace, DataDirName)
}

// DatabasePath resolves the SQLite file location.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Database.Path) {
		return c.Database.Path
	}
	return filepath.Join(c.DataDir(), c.Database.Path)
}
