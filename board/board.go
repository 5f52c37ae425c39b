// Package board assembles a ready-to-use leaderboard service from optional parts.
package board

import (
	"log/slog"
	"net/http"

	mem "dailyboard/adapters/memory"
	"dailyboard/cache"
	"dailyboard/core"
	"dailyboard/daykey"
	"dailyboard/engine"
	"dailyboard/integrations/webhook"
	"dailyboard/metrics"
	"dailyboard/realtime"
)

// Option configures the leaderboard service builder.
type Option func(*config)

type config struct {
	store        engine.RankingStore
	days         *daykey.Provider
	cache        engine.LeaderboardCache
	noCache      bool
	mode         engine.DispatchMode
	hub          *realtime.Hub
	webhooks     []string
	webhookHTTP  *http.Client
	broadcasters []engine.Broadcaster
	opts         engine.Options
}

// WithStore sets the ranking store.
func WithStore(s engine.RankingStore) Option { return func(c *config) { c.store = s } }

// WithDayKeys sets the provider that decides when a day rolls over.
func WithDayKeys(p *daykey.Provider) Option { return func(c *config) { c.days = p } }

// WithCache replaces the default read cache.
func WithCache(lc engine.LeaderboardCache) Option { return func(c *config) { c.cache = lc } }

// WithoutCache sends every read to the store.
func WithoutCache() Option { return func(c *config) { c.noCache = true } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime forwards leaderboard changes to a realtime hub.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithWebhooks forwards leaderboard changes to HTTP endpoints.
func WithWebhooks(client *http.Client, urls ...string) Option {
	return func(c *config) {
		c.webhooks = append(c.webhooks, urls...)
		c.webhookHTTP = client
	}
}

// WithBroadcaster forwards leaderboard changes to b.
func WithBroadcaster(b engine.Broadcaster) Option {
	return func(c *config) { c.broadcasters = append(c.broadcasters, b) }
}

// WithServiceOptions tunes limits, timeouts, logging and metrics.
func WithServiceOptions(o engine.Options) Option { return func(c *config) { c.opts = o } }

// New builds a configured LeaderboardService. If not provided, defaults are used:
//   - day keys: daykey.Default()
//   - store: in-memory
//   - cache: 3s TTL, 100 entries
//   - dispatch: async
func New(opts ...Option) *engine.LeaderboardService {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.days == nil {
		cfg.days = daykey.Default()
	}
	if cfg.store == nil {
		cfg.store = mem.New(cfg.days)
	}
	if cfg.cache == nil && !cfg.noCache {
		cfg.cache = cache.New(cache.WithMetrics(cfg.opts.Metrics))
	}
	logger := cfg.opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bus := engine.NewEventBus(cfg.mode,
		engine.WithBusLogger(logger),
		engine.WithOnDrop(func() { cfg.opts.Metrics.Inc(metrics.BroadcastDropsTotal) }),
	)
	if cfg.hub != nil {
		bus.Forward(core.EventLeaderboardChanged, cfg.hub)
	}
	if len(cfg.webhooks) > 0 {
		bus.Forward(core.EventLeaderboardChanged, webhook.New(cfg.webhooks,
			webhook.WithClient(cfg.webhookHTTP),
			webhook.WithLogger(logger),
		))
	}
	for _, b := range cfg.broadcasters {
		bus.Forward(core.EventLeaderboardChanged, b)
	}
	return engine.NewLeaderboardService(cfg.store, cfg.cache, cfg.days, bus, cfg.opts)
}
