package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const minAdminTokenLength = 16

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	AppURL        string `env:"APP_URL"`
	SessionSecret string `env:"SESSION_SECRET"`
	AdminToken    string `env:"ADMIN_TOKEN"`
	RedisURL      string `env:"REDIS_URL"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days

	SyncQueueCapacity   int           `env:"SYNC_QUEUE_CAPACITY" default:"100"`
	SyncMaxClients      int           `env:"SYNC_MAX_CLIENTS" default:"1000"`
	SyncIdleTimeout     time.Duration `env:"SYNC_IDLE_TIMEOUT" default:"5m"`
	SyncCleanupInterval time.Duration `env:"SYNC_CLEANUP_INTERVAL" default:"60s"`

	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND" default:"5"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" default:"10"`

	MaintenanceCacheTTL time.Duration `env:"MAINTENANCE_CACHE_TTL" default:"5s"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if cfg.AdminToken == "" {
		return errors.New("ADMIN_TOKEN is required")
	}
	if len(cfg.AdminToken) < minAdminTokenLength {
		return fmt.Errorf("ADMIN_TOKEN must be at least %d characters", minAdminTokenLength)
	}
	if cfg.IsProduction() && cfg.AppURL == "" {
		return errors.New("APP_URL is required in production")
	}

	if cfg.SyncQueueCapacity < 1 {
		return errors.New("SYNC_QUEUE_CAPACITY must be positive")
	}
	if cfg.SyncMaxClients < 1 {
		return errors.New("SYNC_MAX_CLIENTS must be positive")
	}
	if cfg.SyncIdleTimeout <= 0 {
		return errors.New("SYNC_IDLE_TIMEOUT must be positive")
	}
	if cfg.SyncCleanupInterval <= 0 {
		return errors.New("SYNC_CLEANUP_INTERVAL must be positive")
	}
	if cfg.RateLimitPerSecond <= 0 || cfg.RateLimitBurst < 1 {
		return errors.New("RATE_LIMIT_PER_SECOND and RATE_LIMIT_BURST must be positive")
	}

	return nil
}
