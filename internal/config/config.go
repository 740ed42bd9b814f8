// Package config loads agentfoundry service configuration from a YAML file
// with environment overrides, and watches the file for runtime changes to
// dynamic fields (currently the log level).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the service configuration.
type Config struct {
	// Listen is the HTTP listen address for the API server.
	Listen string `yaml:"listen"`

	// DatabasePath is the SQLite database file. ":memory:" is accepted for
	// ephemeral runs.
	DatabasePath string `yaml:"database_path"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	JSONFormat bool   `yaml:"json_format"` // production JSON vs console
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Listen:       ":8087",
		DatabasePath: filepath.Join(".foundry", "foundry.db"),
		Logging: LoggingConfig{
			Level:      "info",
			JSONFormat: true,
		},
	}
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. Environment variables override file values:
// FOUNDRY_LISTEN, FOUNDRY_DB, FOUNDRY_LOG_LEVEL.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FOUNDRY_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("FOUNDRY_DB"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("FOUNDRY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks for values that would fail at startup.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}

// Save writes the configuration to path, creating parent directories.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
