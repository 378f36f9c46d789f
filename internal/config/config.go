// Package config provides centralized configuration management for the
// application. It loads configuration from CLI flags and environment
// variables, validates required fields, and provides sensible defaults.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kuitang/slugnotes/internal/ratelimit"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr   string
	BaseURL      string
	TemplatesDir string

	// Database
	DataDirectory string

	// Sessions
	SessionDuration time.Duration

	// Rate limiting for credential endpoints
	RateLimitConfig ratelimit.Config
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses CLI flags. Call before LoadConfig.
func ParseFlags() (addr string) {
	flag.StringVar(&addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	flag.Parse()
	return addr
}

// LoadConfig loads configuration from environment variables and CLI flag values.
// The addr flag overrides the LISTEN_ADDR env var if non-empty.
func LoadConfig(addr string) (*Config, error) {
	cfg := &Config{}

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	if addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.BaseURL = strings.TrimSpace(os.Getenv("BASE_URL"))
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}
	cfg.TemplatesDir = getEnvOrDefault("TEMPLATES_DIR", "./web/templates")

	// Database
	cfg.DataDirectory = getEnvOrDefault("DATA_DIR", "./data")

	// Sessions
	cfg.SessionDuration = 30 * 24 * time.Hour
	if raw := strings.TrimSpace(os.Getenv("SESSION_DURATION")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_DURATION %q: %w", raw, err)
		}
		cfg.SessionDuration = d
	}

	cfg.RateLimitConfig = ratelimit.DefaultConfig

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for problems and aggregates them.
func (c *Config) Validate() error {
	var issues []string

	if c.ListenAddr == "" {
		issues = append(issues, "listen address must not be empty")
	}
	if c.TemplatesDir == "" {
		issues = append(issues, "templates directory must not be empty")
	}
	if c.DataDirectory == "" {
		issues = append(issues, "data directory must not be empty")
	}
	if c.SessionDuration <= 0 {
		issues = append(issues, "session duration must be positive")
	}

	if len(issues) > 0 {
		return &ValidationError{Errors: issues}
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
