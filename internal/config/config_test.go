package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vampirenirmal/storyloom/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	cfg.Service.APIKey = "sk-test-0123456789abcdef0123"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Service.APIKey = "sk-test-0123456789abcdef0123"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(c *config.Config) {},
		},
		{
			name: "mock provider needs no key",
			mutate: func(c *config.Config) {
				c.Service.Provider = "mock"
				c.Service.APIKey = ""
			},
		},
		{
			name: "unknown provider",
			mutate: func(c *config.Config) {
				c.Service.Provider = "carrier-pigeon"
			},
			wantErr: true,
		},
		{
			name: "openai without key",
			mutate: func(c *config.Config) {
				c.Service.APIKey = ""
			},
			wantErr: true,
		},
		{
			name: "short key",
			mutate: func(c *config.Config) {
				c.Service.APIKey = "short"
			},
			wantErr: true,
		},
		{
			name: "bad base url",
			mutate: func(c *config.Config) {
				c.Service.BaseURL = "not a url"
			},
			wantErr: true,
		},
		{
			name: "timeout too small",
			mutate: func(c *config.Config) {
				c.Service.TimeoutSeconds = 1
			},
			wantErr: true,
		},
		{
			name: "target score above one",
			mutate: func(c *config.Config) {
				c.Build.TargetScore = 1.5
			},
			wantErr: true,
		},
		{
			name: "zero unit count",
			mutate: func(c *config.Config) {
				c.Build.UnitCount = 0
			},
			wantErr: true,
		},
		{
			name: "bad log level",
			mutate: func(c *config.Config) {
				c.LogLevel = "loud"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
service:
  provider: anthropic
  model: claude-sonnet-4-20250514
  base_url: https://api.anthropic.com
  api_key: sk-ant-REDACTED
build:
  unit_count: 12
log_level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Service.Provider != "anthropic" {
		t.Errorf("Provider = %q, want anthropic", cfg.Service.Provider)
	}
	if cfg.Build.UnitCount != 12 {
		t.Errorf("UnitCount = %d, want 12", cfg.Build.UnitCount)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Build.MaxIterations != config.Default().Build.MaxIterations {
		t.Errorf("MaxIterations = %d, want default %d", cfg.Build.MaxIterations, config.Default().Build.MaxIterations)
	}
	if cfg.Service.RateLimit.RequestsPerMinute != config.Default().Service.RateLimit.RequestsPerMinute {
		t.Errorf("RequestsPerMinute = %d, want default", cfg.Service.RateLimit.RequestsPerMinute)
	}
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
service:
  provider: openai
  api_key: sk-file-0123456789abcdef0123
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("STORYLOOM_API_KEY", "sk-env-0123456789abcdef0123")
	t.Setenv("STORYLOOM_MODEL", "gpt-4o")
	t.Setenv("STORYLOOM_DB", filepath.Join(dir, "env.db"))

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !strings.HasPrefix(cfg.Service.APIKey, "sk-env-") {
		t.Errorf("APIKey = %q, want env override", cfg.Service.APIKey)
	}
	if cfg.Service.Model != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o", cfg.Service.Model)
	}
	if cfg.Paths.DBPath != filepath.Join(dir, "env.db") {
		t.Errorf("DBPath = %q, want env override", cfg.Paths.DBPath)
	}
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadMissingDefaultFallsBackToDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("STORYLOOM_API_KEY", "sk-env-0123456789abcdef0123")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.Provider != "openai" {
		t.Errorf("Provider = %q, want default openai", cfg.Service.Provider)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("service:\n  provider: [not, a, string]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := config.Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
