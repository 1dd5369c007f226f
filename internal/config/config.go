// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config represents the runner configuration that can be loaded from a
// JSON file. All fields are optional; missing values use defaults, env
// vars, or CLI flags.
type Config struct {
	// Storage
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	Storage     string `json:"storage,omitempty"`      // "postgres" (default) or "memory"
	DataDir     string `json:"data_dir,omitempty"`     // Root for artifacts and payload files

	// Sessions
	TmuxBin        string `json:"tmux_bin,omitempty"`        // tmux binary, default "tmux"
	SessionCommand string `json:"session_command,omitempty"` // Command template run inside a session

	// Orchestration
	Port              int    `json:"port,omitempty"`               // HTTP API port
	SchedulerInterval string `json:"scheduler_interval,omitempty"` // Tick interval, e.g. "1m"
	MinArtifactBytes  int64  `json:"min_artifact_bytes,omitempty"` // Completion threshold
	Verbose           bool   `json:"verbose,omitempty"`            // Print detailed output
}

// Default returns the built-in defaults
func Default() Config {
	return Config{
		Storage:           "postgres",
		DataDir:           "data",
		TmuxBin:           "tmux",
		Port:              8080,
		SchedulerInterval: "1m",
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv fills empty fields from environment variables
func (c *Config) ApplyEnv() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.DataDir == "" {
		c.DataDir = os.Getenv("RUNNER_DATA_DIR")
	}
	if c.SessionCommand == "" {
		c.SessionCommand = os.Getenv("RUNNER_SESSION_COMMAND")
	}
	if c.Port == 0 {
		if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
			c.Port = port
		}
	}
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.Storage == "" {
		result.Storage = defaults.Storage
	}
	if result.DataDir == "" {
		result.DataDir = defaults.DataDir
	}
	if result.TmuxBin == "" {
		result.TmuxBin = defaults.TmuxBin
	}
	if result.SessionCommand == "" {
		result.SessionCommand = defaults.SessionCommand
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.SchedulerInterval == "" {
		result.SchedulerInterval = defaults.SchedulerInterval
	}
	if result.MinArtifactBytes == 0 {
		result.MinArtifactBytes = defaults.MinArtifactBytes
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	switch c.Storage {
	case "", "postgres", "memory":
	default:
		return fmt.Errorf("config error: 'storage' must be \"postgres\" or \"memory\"")
	}
	if c.Storage != "memory" && c.DatabaseURL == "" {
		return fmt.Errorf("config error: 'database_url' is required (or set DATABASE_URL)")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be a valid TCP port")
	}
	if c.MinArtifactBytes < 0 {
		return fmt.Errorf("config error: 'min_artifact_bytes' must be non-negative")
	}
	if c.SchedulerInterval != "" {
		if _, err := time.ParseDuration(c.SchedulerInterval); err != nil {
			return fmt.Errorf("config error: 'scheduler_interval' is not a duration: %w", err)
		}
	}
	return nil
}

// TickInterval returns the parsed scheduler interval
func (c *Config) TickInterval() time.Duration {
	d, err := time.ParseDuration(c.SchedulerInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}
