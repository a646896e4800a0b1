package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultBackendURL matches the development backend of the web app
	DefaultBackendURL = "http://localhost:5000"

	// DefaultTimeout bounds every request sent to the backend
	DefaultTimeout = 15 * time.Second
)

// Config holds all configuration for the application
type Config struct {
	// Backend Configuration
	Backend BackendConfig

	// Logging Configuration
	Logging LoggingConfig
}

// BackendConfig holds the Adrenalink REST backend configuration
type BackendConfig struct {
	URL     string // base URL without trailing slash
	Timeout time.Duration
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	backendURL := NormalizeBaseURL(os.Getenv("ADRENALINK_BACKEND_URL"))
	if backendURL == "" {
		backendURL = DefaultBackendURL
	}

	timeout := DefaultTimeout
	if raw := strings.TrimSpace(os.Getenv("ADRENALINK_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid ADRENALINK_TIMEOUT %q: %w", raw, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("invalid ADRENALINK_TIMEOUT %q: must be positive", raw)
		}
		timeout = parsed
	}

	// Logging configuration - a CLI stays quiet unless something goes wrong
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "warn"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "console"
	}

	return &Config{
		Backend: BackendConfig{
			URL:     backendURL,
			Timeout: timeout,
		},
		Logging: LoggingConfig{
			Level:  logLevel,
			Format: logFormat,
		},
	}, nil
}

// NormalizeBaseURL trims whitespace and a trailing slash from a backend URL
func NormalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
