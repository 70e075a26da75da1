package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	Port             string
	StoreDriver      string
	DatabaseURL      string
	SQLitePath       string
	RedisURL         string
	NumWorkers       int
	PollInterval     time.Duration
	PollTimeout      time.Duration
	MinSyncInterval  time.Duration
	WebhookRateLimit int
	RenderCacheSize  int
	LogLevel         slog.Level
	ConnectorsFile   string
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory if there is one.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SQLitePath:       getEnv("SQLITE_PATH", "proof.db"),
		RedisURL:         getEnv("REDIS_URL", ""),
		NumWorkers:       getEnvInt("NUM_WORKERS", 4),
		PollInterval:     getEnvDuration("POLL_INTERVAL", 5*time.Minute),
		PollTimeout:      getEnvDuration("POLL_TIMEOUT", 30*time.Second),
		MinSyncInterval:  getEnvDuration("MIN_SYNC_INTERVAL", time.Minute),
		WebhookRateLimit: getEnvInt("WEBHOOK_RATE_LIMIT", 50),
		RenderCacheSize:  getEnvInt("RENDER_CACHE_SIZE", 1024),
		ConnectorsFile:   getEnv("CONNECTORS_FILE", ""),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.StoreDriver)
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.NumWorkers < 1 {
		return nil, fmt.Errorf("NUM_WORKERS must be at least 1")
	}
	if cfg.RenderCacheSize < 1 {
		return nil, fmt.Errorf("RENDER_CACHE_SIZE must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil && d >= 0 {
			return d
		}
	}
	return fallback
}
