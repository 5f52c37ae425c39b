package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dailyboard/adapters/redis"
	"dailyboard/adapters/sqlx"
	"dailyboard/daykey"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	Environment Environment `json:"environment" env:"ENV"`

	Server      ServerConfig      `json:"server" envPrefix:"SERVER_"`
	Storage     StorageConfig     `json:"storage" envPrefix:"STORAGE_"`
	Leaderboard LeaderboardConfig `json:"leaderboard" envPrefix:"LEADERBOARD_"`
	Realtime    RealtimeConfig    `json:"realtime" envPrefix:"REALTIME_"`
	Logging     LoggingConfig     `json:"logging" envPrefix:"LOG_"`
	Metrics     MetricsConfig     `json:"metrics" envPrefix:"METRICS_"`
	Telemetry   TelemetryConfig   `json:"telemetry" envPrefix:"TELEMETRY_"`
	Security    SecurityConfig    `json:"security" envPrefix:"SECURITY_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" env:"ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty" envPrefix:"REDIS_"`
	SQL     sqlx.Config  `json:"sql,omitempty" envPrefix:"SQL_"`
	File    FileConfig   `json:"file,omitempty" envPrefix:"FILE_"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" env:"PATH"`
}

// LeaderboardConfig tunes ranking, caching and day rollover.
type LeaderboardConfig struct {
	// Timezone is the IANA zone whose midnight starts a new leaderboard day.
	Timezone       string        `json:"timezone" env:"TIMEZONE"`
	DefaultLimit   int           `json:"default_limit" env:"DEFAULT_LIMIT"`
	MaxLimit       int           `json:"max_limit" env:"MAX_LIMIT"`
	BroadcastLimit int           `json:"broadcast_limit" env:"BROADCAST_LIMIT"`
	CacheTTL       time.Duration `json:"cache_ttl" env:"CACHE_TTL"`
	CacheSize      int           `json:"cache_size" env:"CACHE_SIZE"`
	StoreTimeout   time.Duration `json:"store_timeout" env:"STORE_TIMEOUT"`
	PruneInterval  time.Duration `json:"prune_interval" env:"PRUNE_INTERVAL"`
}

// RealtimeConfig holds push delivery configuration.
type RealtimeConfig struct {
	SubscriberBuffer int           `json:"subscriber_buffer" env:"SUBSCRIBER_BUFFER"`
	WriteTimeout     time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT"`
	PingInterval     time.Duration `json:"ping_interval" env:"PING_INTERVAL"`
	WebhookURLs      []string      `json:"webhook_urls,omitempty" env:"WEBHOOK_URLS" envSeparator:","`
	WebhookTimeout   time.Duration `json:"webhook_timeout" env:"WEBHOOK_TIMEOUT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"LEVEL"`
	Format     string            `json:"format" env:"FORMAT"`
	Output     string            `json:"output" env:"OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"ATTRIBUTES" envKeyValSeparator:"="`
}

// MetricsConfig toggles the JSON counters endpoint.
type MetricsConfig struct {
	Enabled bool `json:"enabled" env:"ENABLED"`
}

// TelemetryConfig holds OpenTelemetry tracing configuration. Endpoint is the
// OTLP/HTTP collector URL.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled" env:"ENABLED"`
	Endpoint    string `json:"endpoint" env:"ENDPOINT"`
	ServiceName string `json:"service_name" env:"SERVICE_NAME"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" envPrefix:"RATE_LIMIT_"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" env:"RPM"`
	BurstSize         int           `json:"burst_size" env:"BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" env:"CLEANUP"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return errors.New("config file path cannot contain '..'")
	}

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file. Environment variables
// override file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/dailyboard.json",
			},
		},
		Leaderboard: LeaderboardConfig{
			Timezone:       daykey.DefaultTimezone,
			DefaultLimit:   10,
			MaxLimit:       100,
			BroadcastLimit: 10,
			CacheTTL:       3 * time.Second,
			CacheSize:      100,
			StoreTimeout:   3 * time.Second,
			PruneInterval:  time.Minute,
		},
		Realtime: RealtimeConfig{
			SubscriberBuffer: 256,
			WriteTimeout:     5 * time.Second,
			PingInterval:     30 * time.Second,
			WebhookTimeout:   5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "http://localhost:4318",
			ServiceName: "dailyboard",
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 600,
				BurstSize:         50,
				CleanupInterval:   5 * time.Minute,
			},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	sections := []struct {
		name string
		fn   func() error
	}{
		{"server", c.Server.Validate},
		{"storage", c.Storage.Validate},
		{"leaderboard", c.Leaderboard.Validate},
		{"realtime", c.Realtime.Validate},
		{"logging", c.Logging.Validate},
		{"telemetry", c.Telemetry.Validate},
		{"security", c.Security.Validate},
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", s.name, err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
