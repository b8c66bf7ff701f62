// Package config holds knowctx configuration, loaded from
// <workspace>/.knowctx/config.yaml with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"knowctx/internal/logging"
)

// Config holds all knowctx configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Storage StorageConfig `yaml:"storage"`
	Context ContextConfig `yaml:"context"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig configures the SQLite store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ContextConfig configures context assembly.
type ContextConfig struct {
	// DefaultBudget is the token ceiling used when a caller does not supply
	// one. Product defaults observed between 4k and 16k.
	DefaultBudget int `yaml:"default_budget"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	Debug      bool            `yaml:"debug"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// Options converts to the logging package's option struct.
func (lc LoggingConfig) Options() logging.Options {
	return logging.Options{
		Debug:      lc.Debug,
		Level:      lc.Level,
		Categories: lc.Categories,
	}
}

// Default returns the baseline configuration for a workspace.
func Default(workspace string) *Config {
	return &Config{
		Name:    "knowctx",
		Version: "1.0",
		Storage: StorageConfig{
			DatabasePath: filepath.Join(workspace, ".knowctx", "knowctx.db"),
		},
		Context: ContextConfig{
			DefaultBudget: 16000,
		},
		Logging: LoggingConfig{
			Debug: false,
			Level: "info",
		},
	}
}

// Load reads configuration for a workspace. A missing config file is not an
// error; defaults apply. KNOWCTX_DB overrides the database path either way.
func Load(workspace string) (*Config, error) {
	cfg := Default(workspace)

	path := filepath.Join(workspace, ".knowctx", "config.yaml")
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if db := os.Getenv("KNOWCTX_DB"); db != "" {
		cfg.Storage.DatabasePath = db
	}
	if cfg.Context.DefaultBudget <= 0 {
		cfg.Context.DefaultBudget = 16000
	}
	return cfg, nil
}

// Save writes the configuration back to the workspace config file.
func (c *Config) Save(workspace string) error {
	dir := filepath.Join(workspace, ".knowctx")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644)
}
