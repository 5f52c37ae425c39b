package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"dailyboard/adapters/jsonfile"
	mem "dailyboard/adapters/memory"
	redisAdapter "dailyboard/adapters/redis"
	sqlxAdapter "dailyboard/adapters/sqlx"
	wsadapter "dailyboard/adapters/websocket"
	"dailyboard/api/httpapi"
	"dailyboard/board"
	"dailyboard/cache"
	"dailyboard/config"
	"dailyboard/daykey"
	"dailyboard/engine"
	"dailyboard/metrics"
	"dailyboard/realtime"
)

// configFileEnv names a JSON config file loaded before environment overrides.
const configFileEnv = "DAILYBOARD_CONFIG_FILE"

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Days    *daykey.Provider
	Metrics *metrics.Registry
	Hub     *realtime.Hub
	Store   engine.RankingStore
	Service *engine.LeaderboardService
	Pruner  *engine.PruneLoop
	Handler http.Handler
	Server  *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	if path := os.Getenv(configFileEnv); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideDayKeys(cfg *config.Config) (*daykey.Provider, error) {
	return daykey.Load(cfg.Leaderboard.Timezone)
}

func provideMetrics() *metrics.Registry {
	return metrics.NewRegistry()
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStorage(ctx context.Context, cfg *config.Config, days *daykey.Provider, logger *slog.Logger) (engine.RankingStore, func(), error) {
	return setupStorage(ctx, cfg, days, logger)
}

func provideCache(cfg *config.Config, reg *metrics.Registry) engine.LeaderboardCache {
	if cfg.Leaderboard.CacheTTL <= 0 {
		return nil
	}
	return cache.New(
		cache.WithTTL(cfg.Leaderboard.CacheTTL),
		cache.WithMaxEntries(cfg.Leaderboard.CacheSize),
		cache.WithMetrics(reg),
	)
}

func provideService(cfg *config.Config, logger *slog.Logger, reg *metrics.Registry, days *daykey.Provider, hub *realtime.Hub, store engine.RankingStore, c engine.LeaderboardCache) (*engine.LeaderboardService, func()) {
	opts := []board.Option{
		board.WithStore(store),
		board.WithDayKeys(days),
		board.WithRealtime(hub),
		board.WithDispatchMode(engine.DispatchAsync),
		board.WithServiceOptions(engine.Options{
			DefaultLimit:   cfg.Leaderboard.DefaultLimit,
			MaxLimit:       cfg.Leaderboard.MaxLimit,
			BroadcastLimit: cfg.Leaderboard.BroadcastLimit,
			StoreTimeout:   cfg.Leaderboard.StoreTimeout,
			Logger:         logger,
			Metrics:        reg,
		}),
	}
	if c == nil {
		opts = append(opts, board.WithoutCache())
	} else {
		opts = append(opts, board.WithCache(c))
	}
	if len(cfg.Realtime.WebhookURLs) > 0 {
		opts = append(opts, board.WithWebhooks(&http.Client{Timeout: cfg.Realtime.WebhookTimeout}, cfg.Realtime.WebhookURLs...))
	}
	svc := board.New(opts...)
	return svc, svc.Close
}

// providePruner returns nil for stores that expire rows on their own.
func providePruner(cfg *config.Config, store engine.RankingStore, logger *slog.Logger, reg *metrics.Registry) *engine.PruneLoop {
	p, ok := store.(engine.Pruner)
	if !ok {
		return nil
	}
	return engine.NewPruneLoop(p, cfg.Leaderboard.PruneInterval, logger, reg)
}

func provideHandler(svc *engine.LeaderboardService, hub *realtime.Hub, cfg *config.Config, reg *metrics.Registry, logger *slog.Logger) http.Handler {
	opts := httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		RateLimitCleanup: cfg.Security.RateLimit.CleanupInterval,
		Socket: wsadapter.Options{
			Buffer:       cfg.Realtime.SubscriberBuffer,
			WriteTimeout: cfg.Realtime.WriteTimeout,
			PingInterval: cfg.Realtime.PingInterval,
		},
		Logger: logger,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = reg
	}
	return httpapi.NewMux(svc, hub, opts)
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the ranking store selected by configuration. The
// returned cleanup releases its connections.
func setupStorage(_ context.Context, cfg *config.Config, days *daykey.Provider, logger *slog.Logger) (engine.RankingStore, func(), error) {
	noop := func() {}
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(days), noop, nil
	case "file":
		s, err := jsonfile.New(cfg.Storage.File.Path, days)
		if err != nil {
			return nil, nil, fmt.Errorf("open file storage: %w", err)
		}
		return s, noop, nil
	case "redis":
		s, err := redisAdapter.New(cfg.Storage.Redis, days)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("closing redis", "error", err)
			}
		}, nil
	case "sql":
		s, err := sqlxAdapter.New(cfg.Storage.SQL, days)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("closing database", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
