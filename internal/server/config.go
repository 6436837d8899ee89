// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the roomchat service.
package server

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"BURST" envDefault:"5"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL" envDefault:"1s"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string          `env:"SERVER_PORT" envDefault:":8080"`
	AllowedOrigins  []string        `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:8080" envSeparator:","`
	MaxMessageSize  int64           `env:"MAX_MESSAGE_SIZE" envDefault:"16384"`
	RateLimit       RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	JWTSecret       string          `env:"JWT_SECRET"`
	JWTIssuer       string          `env:"JWT_ISSUER"`
	DatabasePath    string          `env:"DATABASE_PATH" envDefault:"roomchat.db"`
	ShutdownTimeout time.Duration   `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// ErrMissingSecret is returned when no JWT secret is configured.
var ErrMissingSecret = errors.New("JWT_SECRET is required")

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 16384,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		DatabasePath:    "roomchat.db",
		ShutdownTimeout: 30 * time.Second,
	}
}

func sanitizeConfig(cfg Config) Config {
	defaults := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = defaults.Port
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaults.RateLimit.Burst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaults.RateLimit.RefillInterval
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = defaults.DatabasePath
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Unset variables fall back to their defaults; malformed ones are an error.
func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg = sanitizeConfig(cfg)
	return &cfg, nil
}

// ParseConfig loads the environment and then applies command-line overrides
// from args.
func ParseConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg, err := NewConfigFromEnv()
	if err != nil {
		return nil, err
	}

	origins := strings.Join(cfg.AllowedOrigins, ",")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen address")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path")
	fs.StringVar(&origins, "origins", origins, "comma-separated allowed WebSocket origins")
	fs.StringVar(&cfg.JWTIssuer, "jwt-issuer", cfg.JWTIssuer, "expected JWT issuer (empty accepts any)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.AllowedOrigins = splitOrigins(origins)
	sanitized := sanitizeConfig(*cfg)
	return &sanitized, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingSecret
	}
	return nil
}

func splitOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
