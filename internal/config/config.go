package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Persist  PersistConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port              string        `env:"PORT" envDefault:"8080"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Addr returns the listen address for the configured port.
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

// Database drivers.
const (
	DriverSQL  = "sql"
	DriverGorm = "gorm"
)

// DatabaseConfig holds storage configuration.
type DatabaseConfig struct {
	Path string `env:"DATABASE_PATH" envDefault:"persist.db"`
	// Driver selects the record store: "sql" (plain database/sql) or "gorm".
	Driver string `env:"DATABASE_DRIVER" envDefault:"sql"`
}

// PersistConfig holds persistence cache configuration.
type PersistConfig struct {
	ReapInterval time.Duration `env:"PERSIST_REAP_INTERVAL" envDefault:"1m"`
	// Codec is "json" or "gob".
	Codec         string `env:"PERSIST_CODEC" envDefault:"json"`
	MaxKeyLength  int    `env:"PERSIST_MAX_KEY_LENGTH" envDefault:"255"`
	MaxValueBytes int64  `env:"PERSIST_MAX_VALUE_BYTES" envDefault:"1048576"`
}

// AuthConfig holds API authentication and rate limiting configuration.
type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET"`
	Required       bool          `env:"AUTH_REQUIRED" envDefault:"true"`
	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst float64       `env:"RATE_LIMIT_BURST" envDefault:"40"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level: "debug", "info", "warn", "error".
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	// Format: "text", "json" or "both" (text to stdout, JSON to stderr).
	Format string `env:"LOG_FORMAT" envDefault:"both"`
	// File enables an additional rotated JSON log file.
	File       string `env:"LOG_FILE"`
	MaxSize    int    `env:"LOG_MAX_SIZE" envDefault:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"7"`
	MaxAge     int    `env:"LOG_MAX_AGE" envDefault:"30"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"METRICS_PATH" envDefault:"/metrics"`
}

// Load reads configuration from the process environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment variables: %w", err)
	}
	return cfg, nil
}

// LoadFrom reads configuration from the given environment map instead of the
// process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment variables: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration. The JWT secret is only checked when
// requireSecret is set, so commands that never touch tokens can run without one.
func (c *Config) Validate(requireSecret bool) error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	switch c.Database.Driver {
	case DriverSQL, DriverGorm:
	default:
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Persist.ReapInterval <= 0 {
		return fmt.Errorf("reap interval must be positive, got %s", c.Persist.ReapInterval)
	}

	switch strings.ToLower(c.Persist.Codec) {
	case "json", "gob":
	default:
		return fmt.Errorf("invalid persist codec: %s", c.Persist.Codec)
	}

	if c.Persist.MaxKeyLength <= 0 || c.Persist.MaxValueBytes <= 0 {
		return fmt.Errorf("persist key and value limits must be positive")
	}

	if requireSecret && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}

	if c.Auth.RateLimitRPS < 0 || c.Auth.RateLimitBurst < 1 {
		return fmt.Errorf("invalid rate limit: rps=%v burst=%v", c.Auth.RateLimitRPS, c.Auth.RateLimitBurst)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
		"both": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}
