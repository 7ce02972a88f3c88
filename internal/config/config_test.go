package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRounds != 5 {
		t.Errorf("MaxRounds = %d", cfg.MaxRounds)
	}
	if cfg.CodexCmd != "codex" || cfg.ClaudeCmd != "claude" {
		t.Errorf("agent commands = %q / %q", cfg.CodexCmd, cfg.ClaudeCmd)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadGlobalFromMissingFile(t *testing.T) {
	cfg, err := LoadGlobalFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadGlobalFrom: %v", err)
	}
	if cfg.MaxRounds != DefaultConfig().MaxRounds {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoadGlobalFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "max_rounds = 9\ncodex_cmd = \"my-codex\"\nkeep_debug_logs = true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadGlobalFrom(path)
	if err != nil {
		t.Fatalf("LoadGlobalFrom: %v", err)
	}
	if cfg.MaxRounds != 9 || cfg.CodexCmd != "my-codex" || !cfg.KeepDebugLogs {
		t.Errorf("cfg = %+v", cfg)
	}
	// unset keys keep defaults
	if cfg.ClaudeCmd != "claude" || cfg.MaxAttempts != 3 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadGlobalFromBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("max_rounds = \"not a number"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadGlobalFrom(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rounds", func(c *Config) { c.MaxRounds = 0 }},
		{"negative timeout", func(c *Config) { c.InactivityTimeoutSeconds = -1 }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDataDirEnvOverride(t *testing.T) {
	t.Setenv("QUIBBLE_DATA_DIR", "/custom/dir")
	if got := DataDir(); got != "/custom/dir" {
		t.Errorf("DataDir = %q", got)
	}
	if got := SessionsDir(); got != filepath.Join("/custom/dir", "sessions") {
		t.Errorf("SessionsDir = %q", got)
	}
}
