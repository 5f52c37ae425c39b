package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"dailyboard/cache"
	"dailyboard/core"
	"dailyboard/metrics"
)

const (
	DefaultLimit        = 10
	DefaultMaxLimit     = 100
	DefaultBroadcastTop = 10
	DefaultStoreTimeout = 3 * time.Second
)

// Options tunes a LeaderboardService. Zero values select the defaults.
type Options struct {
	DefaultLimit   int
	MaxLimit       int
	BroadcastLimit int
	StoreTimeout   time.Duration
	Logger         *slog.Logger
	Metrics        *metrics.Registry
}

func (o Options) withDefaults() Options {
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = DefaultLimit
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = DefaultMaxLimit
	}
	if o.DefaultLimit > o.MaxLimit {
		o.DefaultLimit = o.MaxLimit
	}
	if o.BroadcastLimit <= 0 {
		o.BroadcastLimit = DefaultBroadcastTop
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// LeaderboardService wires the ranking store, read cache and event bus into
// the score update and leaderboard read paths.
type LeaderboardService struct {
	store  RankingStore
	cache  LeaderboardCache
	days   DayKeys
	bus    *EventBus
	opts   Options
	log    *slog.Logger
	tracer trace.Tracer
	group  singleflight.Group
}

// NewLeaderboardService panics on a nil store or day provider. A nil cache
// disables caching and a nil bus disables broadcasts.
func NewLeaderboardService(store RankingStore, c LeaderboardCache, days DayKeys, bus *EventBus, opts Options) *LeaderboardService {
	if store == nil || days == nil {
		panic("NewLeaderboardService requires non-nil store and day keys")
	}
	if c == nil {
		c = noopCache{}
	}
	opts = opts.withDefaults()
	return &LeaderboardService{
		store:  store,
		cache:  c,
		days:   days,
		bus:    bus,
		opts:   opts,
		log:    opts.Logger.With("component", "leaderboard"),
		tracer: otel.Tracer("dailyboard/engine"),
	}
}

// Subscribe registers handler on the service's event bus.
func (s *LeaderboardService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	if s.bus == nil {
		return func() {}
	}
	return s.bus.Subscribe(typ, handler)
}

// UpdateScore applies a delta to today's score, refreshes the writer's
// leaderboard view and announces it to subscribers.
func (s *LeaderboardService) UpdateScore(ctx context.Context, u core.ScoreUpdate) (core.UpdateResult, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.UpdateScore")
	defer span.End()

	u, err := core.ValidateUpdate(u)
	if err != nil {
		s.opts.Metrics.Inc(metrics.ValidationErrorsTotal)
		return core.UpdateResult{}, s.fail(span, err)
	}
	span.SetAttributes(
		attribute.String("leaderboard.mode", u.Mode),
		attribute.String("leaderboard.region", u.Region),
		attribute.String("player.id", string(u.PlayerID)),
	)

	rec, err := s.incrementScore(ctx, u)
	if err != nil {
		return core.UpdateResult{}, s.fail(span, err)
	}
	s.opts.Metrics.Inc(metrics.ScoreUpdatesTotal)

	s.cache.Invalidate(u.Mode, u.Region)
	s.cache.Invalidate(u.Mode, "")

	top, err := s.topN(ctx, u.Mode, u.Region, s.opts.BroadcastLimit)
	if err != nil {
		return core.UpdateResult{}, s.fail(span, err)
	}

	view := core.LeaderboardView{Mode: u.Mode, Region: u.Region, DateKey: rec.DayKey, Top: top}
	result := core.UpdateResult{
		Player: core.PlayerStanding{
			PlayerID:   rec.PlayerID,
			PlayerName: rec.PlayerName,
			Score:      rec.Score,
			Rank:       core.RankOf(top, rec.PlayerID),
		},
		Leaderboard: view,
	}

	if s.bus != nil {
		s.bus.Publish(ctx, core.NewLeaderboardChanged(core.OriginFrom(ctx), view))
		s.opts.Metrics.Inc(metrics.BroadcastsTotal)
	}
	return result, nil
}

// GetLeaderboard serves q from the read cache or, on a miss, from the store.
// Concurrent misses for the same view share one store query.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, q core.Query) (core.LeaderboardView, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.GetLeaderboard")
	defer span.End()

	q, err := core.ValidateQuery(q, s.opts.DefaultLimit, s.opts.MaxLimit)
	if err != nil {
		s.opts.Metrics.Inc(metrics.ValidationErrorsTotal)
		return core.LeaderboardView{}, s.fail(span, err)
	}
	span.SetAttributes(
		attribute.String("leaderboard.mode", q.Mode),
		attribute.String("leaderboard.region", q.Region),
		attribute.Int("leaderboard.limit", q.Limit),
	)
	s.opts.Metrics.Inc(metrics.LeaderboardReadsTotal)

	today := s.days.CurrentDayKey()
	if e, ok := s.cache.Get(q.Mode, q.Region, q.Limit); ok && e.DateKey == today {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return s.view(q, e), nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// Flights are keyed by cache generation so a read started after a write
	// never joins a query issued before it.
	version := s.cache.Version(q.Mode, q.Region)
	key := cache.NewKey(q.Mode, q.Region, q.Limit).String() + "@" + strconv.FormatUint(version, 10)
	ch := s.group.DoChan(key, func() (any, error) {
		// Detached so one caller's cancellation does not fail the others.
		fctx := context.WithoutCancel(ctx)
		top, err := s.topN(fctx, q.Mode, q.Region, q.Limit)
		if err != nil {
			return nil, err
		}
		e := cache.Entry{DateKey: s.days.CurrentDayKey(), Top: top}
		s.cache.SetIfVersion(q.Mode, q.Region, q.Limit, version, e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		return core.LeaderboardView{}, s.fail(span, core.NewStorageError("top n", ctx.Err()))
	case res := <-ch:
		if res.Err != nil {
			return core.LeaderboardView{}, s.fail(span, res.Err)
		}
		return s.view(q, res.Val.(cache.Entry)), nil
	}
}

// Stats summarises today's scores for mode and an optional region.
func (s *LeaderboardService) Stats(ctx context.Context, mode, region string) (core.Stats, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.Stats")
	defer span.End()

	q, err := core.ValidateQuery(core.Query{Mode: mode, Region: region}, s.opts.DefaultLimit, s.opts.MaxLimit)
	if err != nil {
		s.opts.Metrics.Inc(metrics.ValidationErrorsTotal)
		return core.Stats{}, s.fail(span, err)
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	st, err := s.store.Stats(sctx, q.Mode, q.Region)
	if err != nil {
		s.opts.Metrics.Inc(metrics.StoreErrorsTotal)
		return core.Stats{}, s.fail(span, core.NewStorageError("stats", err))
	}
	st.Mode = q.Mode
	st.Region = q.Region
	if st.Region == "" {
		st.Region = core.RegionAll
	}
	if st.DateKey == "" {
		st.DateKey = s.days.CurrentDayKey()
	}
	return st, nil
}

// Health pings the ranking store.
func (s *LeaderboardService) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return core.NewStorageError("ping", s.store.Ping(ctx))
}

// Close stops the event bus workers.
func (s *LeaderboardService) Close() {
	if s.bus != nil {
		s.bus.Close()
	}
}

func (s *LeaderboardService) incrementScore(ctx context.Context, u core.ScoreUpdate) (core.ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	rec, err := s.store.IncrementScore(ctx, u)
	if err != nil {
		s.opts.Metrics.Inc(metrics.StoreErrorsTotal)
		s.log.Error("score increment failed", "player", u.PlayerID, "mode", u.Mode, "region", u.Region, "error", err)
		return core.ScoreRecord{}, core.NewStorageError("increment score", err)
	}
	return rec, nil
}

func (s *LeaderboardService) topN(ctx context.Context, mode, region string, limit int) ([]core.Standing, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	top, err := s.store.TopN(ctx, mode, region, limit)
	if err != nil {
		s.opts.Metrics.Inc(metrics.StoreErrorsTotal)
		s.log.Error("top n query failed", "mode", mode, "region", region, "limit", limit, "error", err)
		return nil, core.NewStorageError("top n", err)
	}
	if top == nil {
		top = []core.Standing{}
	}
	return top, nil
}

func (s *LeaderboardService) view(q core.Query, e cache.Entry) core.LeaderboardView {
	region := q.Region
	if region == "" {
		region = core.RegionAll
	}
	return core.LeaderboardView{Mode: q.Mode, Region: region, DateKey: e.DateKey, Top: e.Top}
}

func (s *LeaderboardService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	if !errors.Is(err, core.ErrValidation) {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
