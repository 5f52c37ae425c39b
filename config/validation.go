package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}

	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}

	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}

	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	validAdapters := []string{"memory", "redis", "sql", "file"}
	if !slices.Contains(validAdapters, s.Adapter) {
		errs = append(errs, fmt.Sprintf("adapter must be one of: %s", strings.Join(validAdapters, ", ")))
	}

	switch s.Adapter {
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
	case "sql":
		if err := s.SQL.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sql config: %v", err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, l.Level) {
		errs = append(errs, fmt.Sprintf("level must be one of: %s", strings.Join(validLevels, ", ")))
	}

	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, l.Format) {
		errs = append(errs, fmt.Sprintf("format must be one of: %s", strings.Join(validFormats, ", ")))
	}

	validOutputs := []string{"stdout", "stderr"}
	if !slices.Contains(validOutputs, l.Output) {
		errs = append(errs, fmt.Sprintf("output must be one of: %s", strings.Join(validOutputs, ", ")))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates leaderboard tuning.
func (l *LeaderboardConfig) Validate() error {
	var errs []string

	if _, err := time.LoadLocation(l.Timezone); err != nil || l.Timezone == "" {
		errs = append(errs, fmt.Sprintf("timezone %q is not a valid IANA zone", l.Timezone))
	}
	if l.DefaultLimit <= 0 {
		errs = append(errs, "default_limit must be positive")
	}
	if l.MaxLimit < l.DefaultLimit {
		errs = append(errs, "max_limit must be >= default_limit")
	}
	if l.BroadcastLimit <= 0 {
		errs = append(errs, "broadcast_limit must be positive")
	}
	if l.CacheTTL < 0 {
		errs = append(errs, "cache_ttl cannot be negative")
	}
	if l.CacheSize <= 0 {
		errs = append(errs, "cache_size must be positive")
	}
	if l.StoreTimeout <= 0 {
		errs = append(errs, "store_timeout must be positive")
	}
	if l.PruneInterval <= 0 {
		errs = append(errs, "prune_interval must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates push delivery settings.
func (r *RealtimeConfig) Validate() error {
	var errs []string

	if r.SubscriberBuffer <= 0 {
		errs = append(errs, "subscriber_buffer must be positive")
	}
	if r.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}
	if r.PingInterval <= 0 {
		errs = append(errs, "ping_interval must be positive")
	}
	for i, raw := range r.WebhookURLs {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("webhook_urls[%d] must be an http(s) URL", i))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates tracing settings.
func (t *TelemetryConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	var errs []string
	if t.Endpoint == "" {
		errs = append(errs, "endpoint cannot be empty when telemetry is enabled")
	}
	if t.ServiceName == "" {
		errs = append(errs, "service_name cannot be empty when telemetry is enabled")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates security settings.
func (s *SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
