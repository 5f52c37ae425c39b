package engine

import (
	"context"

	"dailyboard/cache"
	"dailyboard/core"
)

// RankingStore persists one score row per (player, mode, day) and answers
// ranked queries for the current day.
type RankingStore interface {
	// IncrementScore atomically adds u.Delta to today's row for (player, mode),
	// creating it when absent, and overwrites name, region and timestamps.
	IncrementScore(ctx context.Context, u core.ScoreUpdate) (core.ScoreRecord, error)
	// TopN returns today's standings for mode ordered by score descending then
	// earlier update. An empty region means every region.
	TopN(ctx context.Context, mode, region string, limit int) ([]core.Standing, error)
	Stats(ctx context.Context, mode, region string) (core.Stats, error)
	Ping(ctx context.Context) error
}

// Pruner is implemented by stores that cannot expire rows on their own.
type Pruner interface {
	RemoveExpired(ctx context.Context) (int, error)
}

// Broadcaster pushes events to live subscribers. Delivery is best-effort.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev core.Event) error
}

// DayKeys reports the ranking day currently in effect.
type DayKeys interface {
	CurrentDayKey() string
}

// LeaderboardCache holds recently computed views. *cache.ReadCache satisfies it.
type LeaderboardCache interface {
	Get(mode, region string, limit int) (cache.Entry, bool)
	Set(mode, region string, limit int, entry cache.Entry)
	Version(mode, region string) uint64
	SetIfVersion(mode, region string, limit int, version uint64, entry cache.Entry) bool
	Invalidate(mode, region string) int
}

var _ LeaderboardCache = (*cache.ReadCache)(nil)

type noopCache struct{}

func (noopCache) Get(string, string, int) (cache.Entry, bool) { return cache.Entry{}, false }
func (noopCache) Set(string, string, int, cache.Entry) {}
func (noopCache) Version(string, string) uint64 { return 0 }
func (noopCache) SetIfVersion(string, string, int, uint64, cache.Entry) bool { return false }
func (noopCache) Invalidate(string, string) int { return 0 }
