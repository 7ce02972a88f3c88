// Package config loads quibble configuration: defaults, then the global
// TOML file, then command-line flags on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the review-loop configuration.
type Config struct {
	MaxRounds                int    `toml:"max_rounds"`
	InactivityTimeoutSeconds int    `toml:"inactivity_timeout_seconds"`
	MaxAttempts              int    `toml:"max_attempts"`
	KeepDebugLogs            bool   `toml:"keep_debug_logs"`
	HistoryDSN               string `toml:"history_dsn"` // postgres DSN; empty = local sqlite

	// Agent commands
	CodexCmd  string `toml:"codex_cmd"`
	ClaudeCmd string `toml:"claude_cmd"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRounds:                5,
		InactivityTimeoutSeconds: 300,
		MaxAttempts:              3,
		CodexCmd:                 "codex",
		ClaudeCmd:                "claude",
	}
}

// DataDir returns the quibble data directory. Uses QUIBBLE_DATA_DIR if
// set, otherwise ~/.quibble
func DataDir() string {
	if dir := os.Getenv("QUIBBLE_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".quibble")
}

// SessionsDir is where file-backed session stores live.
func SessionsDir() string {
	return filepath.Join(DataDir(), "sessions")
}

// LogsDir is where per-session debug transcripts live.
func LogsDir() string {
	return filepath.Join(DataDir(), "logs")
}

// HistoryDBPath is the local sqlite history index.
func HistoryDBPath() string {
	return filepath.Join(DataDir(), "history.db")
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// LoadGlobal loads the global configuration from the default path.
func LoadGlobal() (*Config, error) {
	return LoadGlobalFrom(GlobalConfigPath())
}

// LoadGlobalFrom loads configuration from a specific path, falling back
// to defaults when the file does not exist.
func LoadGlobalFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects configurations no session should be created from.
func (c *Config) Validate() error {
	if c.MaxRounds < 1 {
		return fmt.Errorf("max_rounds must be at least 1, got %d", c.MaxRounds)
	}
	if c.InactivityTimeoutSeconds < 1 {
		return fmt.Errorf("inactivity_timeout_seconds must be positive, got %d", c.InactivityTimeoutSeconds)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}
