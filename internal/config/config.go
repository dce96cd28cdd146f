// Package config loads and validates the runtime configuration: a YAML file
// merged over baked-in defaults, .env loading, and STORYLOOM_* environment
// overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables recognized as overrides. They win over both the file
// and the defaults.
const (
	envConfigPath = "STORYLOOM_CONFIG"
	envProvider   = "STORYLOOM_PROVIDER"
	envModel      = "STORYLOOM_MODEL"
	envBaseURL    = "STORYLOOM_BASE_URL"
	envAPIKey     = "STORYLOOM_API_KEY"
	envDBPath     = "STORYLOOM_DB"
	envLogLevel   = "STORYLOOM_LOG_LEVEL"
)

// Config is the full runtime configuration.
type Config struct {
	Service  ServiceConfig `yaml:"service" validate:"required"`
	Build    BuildConfig   `yaml:"build" validate:"required"`
	Paths    PathsConfig   `yaml:"paths" validate:"required"`
	LogLevel string        `yaml:"log_level" validate:"required,oneof=debug info warn error"`
}

// ServiceConfig selects and tunes the generation-service adapter.
type ServiceConfig struct {
	Provider       string          `yaml:"provider" validate:"required,oneof=openai anthropic mock"`
	Model          string          `yaml:"model" validate:"required"`
	BaseURL        string          `yaml:"base_url" validate:"omitempty,url"`
	APIKey         string          `yaml:"api_key" validate:"required_unless=Provider mock,omitempty,min=20"`
	TimeoutSeconds int             `yaml:"timeout_seconds" validate:"required,min=10,max=3600"`
	Temperature    float64         `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens      int             `yaml:"max_tokens" validate:"required,min=256,max=200000"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

// RateLimitConfig throttles the Anthropic adapter. The OpenAI adapter relies
// on endpoint-side limits.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=1000"`
	Burst             int `yaml:"burst" validate:"required,min=1,max=100"`
}

// BuildConfig tunes an auto-build run.
type BuildConfig struct {
	UnitCount     int     `yaml:"unit_count" validate:"required,min=1,max=200"`
	Reflect       bool    `yaml:"reflect"`
	MaxIterations int     `yaml:"max_iterations" validate:"required,min=1,max=10"`
	TargetScore   float64 `yaml:"target_score" validate:"required,gt=0,lte=1"`
}

// PathsConfig locates the database and optional prompt overrides.
type PathsConfig struct {
	DBPath    string `yaml:"db_path" validate:"required"`
	PromptDir string `yaml:"prompt_dir"`
}

// Default returns the baked-in configuration: OpenAI provider, reflective
// drafting off, XDG-placed database.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			BaseURL:        "https://api.openai.com/v1",
			TimeoutSeconds: 900,
			Temperature:    0.8,
			MaxTokens:      4096,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 30,
				Burst:             5,
			},
		},
		Build: BuildConfig{
			UnitCount:     8,
			Reflect:       false,
			MaxIterations: 2,
			TargetScore:   0.85,
		},
		Paths: PathsConfig{
			DBPath: filepath.Join(dataDir(), "storyloom.db"),
		},
		LogLevel: "info",
	}
}

// Load builds the effective configuration. Resolution order: defaults, then
// the YAML file (explicit path, STORYLOOM_CONFIG, or the XDG location), then
// environment overrides. An explicitly named file must exist; the default
// location is optional.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != "" || os.Getenv(envConfigPath) != ""
	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path == "" {
		path = defaultConfigPath()
	}
	path = expandTilde(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Unmarshal over the defaults: keys absent from the file keep
		// their default values.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No file at the default location; defaults stand.
	default:
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.Paths.DBPath = expandTilde(cfg.Paths.DBPath)
	cfg.Paths.PromptDir = expandTilde(cfg.Paths.PromptDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags; it does not touch the filesystem.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envProvider); v != "" {
		c.Service.Provider = v
	}
	if v := os.Getenv(envModel); v != "" {
		c.Service.Model = v
	}
	if v := os.Getenv(envBaseURL); v != "" {
		c.Service.BaseURL = v
	}
	if v := os.Getenv(envAPIKey); v != "" {
		c.Service.APIKey = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		c.Paths.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// defaultConfigPath follows the XDG Base Directory layout.
func defaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "storyloom", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "storyloom", "config.yaml")
}

// dataDir is where generated artifacts (the database) live by default.
func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "storyloom")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "storyloom")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
