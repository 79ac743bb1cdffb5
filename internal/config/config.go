package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the résumé engine
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Catalog  CatalogConfig
	Cleanup  CleanupConfig
	Auth     AuthConfig
	Metrics  MetricsConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL configuration.
// An empty DSN selects the in-memory repository and an empty
// MigrationsDir selects the migrations compiled into the binary.
type DatabaseConfig struct {
	DSN           string
	MaxConns      int
	MinConns      int
	MigrationsDir string
}

// RedisConfig holds Redis configuration.
// An empty Address disables result caching.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// CatalogConfig holds sport catalog configuration
type CatalogConfig struct {
	Dir string
}

// CleanupConfig holds retention worker configuration
type CleanupConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// AuthConfig holds API key authentication configuration
type AuthConfig struct {
	Enabled         bool
	BootstrapAPIKey string
}

// MetricsConfig holds telemetry configuration
type MetricsConfig struct {
	Enabled      bool
	ServiceName  string
	OtlpEndpoint string
	OtlpInsecure bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level slog.Level
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	level, err := ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MaxConns:      getEnvAsInt("DATABASE_MAX_CONNS", 25),
			MinConns:      getEnvAsInt("DATABASE_MIN_CONNS", 5),
			MigrationsDir: getEnv("MIGRATIONS_DIR", ""),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		},
		Catalog: CatalogConfig{
			Dir: getEnv("CATALOG_DIR", ""),
		},
		Cleanup: CleanupConfig{
			Interval:  getEnvAsDuration("CLEANUP_INTERVAL", time.Hour),
			Retention: getEnvAsDuration("RETENTION", 30*24*time.Hour),
		},
		Auth: AuthConfig{
			Enabled:         getEnvAsBool("AUTH_ENABLED", true),
			BootstrapAPIKey: getEnv("BOOTSTRAP_API_KEY", ""),
		},
		Metrics: MetricsConfig{
			Enabled:      getEnvAsBool("METRICS_ENABLED", true),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "nextchapter"),
			OtlpEndpoint: getEnv("OTLP_ENDPOINT", ""),
			OtlpInsecure: getEnvAsBool("OTLP_INSECURE", false),
		},
		Log: LogConfig{
			Level: level,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max conns must be positive: %d", c.Database.MaxConns)
	}

	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database min conns must be between 0 and %d: %d", c.Database.MaxConns, c.Database.MinConns)
	}

	if c.Redis.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative: %s", c.Redis.TTL)
	}

	if c.Cleanup.Retention <= 0 {
		return fmt.Errorf("retention must be positive: %s", c.Cleanup.Retention)
	}

	if c.Auth.BootstrapAPIKey != "" && len(c.Auth.BootstrapAPIKey) < 16 {
		return fmt.Errorf("bootstrap api key must be at least 16 characters")
	}

	return nil
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParseLevel converts a level name to slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
