package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/plazalab/plaza-insights/internal/report"
)

// Config represents the top-level application config plus loaded report
// definitions.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Backend BackendConfig `koanf:"backend"`
	Reports ReportsConfig `koanf:"reports"`

	// Definitions is populated by Load after parsing definition files.
	Definitions *report.FileSystemRepository `koanf:"-"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

type BackendConfig struct {
	BaseURL        string `koanf:"base_url"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
	TokenEnv       string `koanf:"token_env"` // env var holding the bearer token
}

// Timeout returns the upstream call timeout as a duration.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// Token reads the bearer token from the configured environment variable.
// The token is opaque to this service; an unset variable means
// unauthenticated calls.
func (b BackendConfig) Token() string {
	if b.TokenEnv == "" {
		return ""
	}
	return os.Getenv(b.TokenEnv)
}

type ReportsConfig struct {
	ConfigDir          string `koanf:"config_dir"`
	RequireDefinitions bool   `koanf:"require_definitions"`
	OutputDir          string `koanf:"output_dir"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("backend.base_url %q must be an http(s) URL", c.Backend.BaseURL)
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend.timeout_seconds must be > 0")
	}
	if c.Backend.TimeoutSeconds > 30 {
		return fmt.Errorf("backend.timeout_seconds must be <= 30, got %d", c.Backend.TimeoutSeconds)
	}

	if strings.TrimSpace(c.Reports.ConfigDir) == "" {
		return fmt.Errorf("reports.config_dir is required")
	}
	if strings.TrimSpace(c.Reports.OutputDir) == "" {
		return fmt.Errorf("reports.output_dir is required")
	}

	return nil
}

// Load parses config from file + env, validates it, then loads and
// validates report definitions.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                 8081,
		"server.host":                 "0.0.0.0",
		"server.mode":                 "release",
		"backend.base_url":            "http://localhost:8080",
		"backend.timeout_seconds":     15,
		"backend.token_env":           "INSIGHTS_BACKEND_TOKEN",
		"reports.config_dir":          "./config/reports",
		"reports.require_definitions": true,
		"reports.output_dir":          "./exports",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("INSIGHTS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "INSIGHTS_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := report.NewFileSystemRepository(cfg.Reports.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load report definitions: %w", err)
	}
	if cfg.Reports.RequireDefinitions && len(repo.List()) == 0 {
		return nil, fmt.Errorf("no report definitions found in %q", cfg.Reports.ConfigDir)
	}
	cfg.Definitions = repo

	return &cfg, nil
}
