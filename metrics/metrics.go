package metrics

import (
	"sync"
	"sync/atomic"
)

// Key is a strongly typed counter identifier.
type Key string

const (
	// Read cache
	CacheHitsTotal          Key = "cache_hits_total"
	CacheMissesTotal        Key = "cache_misses_total"
	CacheSetsTotal          Key = "cache_sets_total"
	CacheEvictionsTotal     Key = "cache_evictions_total"
	CacheExpiredTotal       Key = "cache_expired_total"
	CacheInvalidationsTotal Key = "cache_invalidations_total"

	// Service
	ScoreUpdatesTotal     Key = "score_updates_total"
	LeaderboardReadsTotal Key = "leaderboard_reads_total"
	ValidationErrorsTotal Key = "validation_errors_total"
	StoreErrorsTotal      Key = "store_errors_total"
	BroadcastsTotal       Key = "broadcasts_total"
	BroadcastDropsTotal   Key = "broadcast_drops_total"

	// Store maintenance
	PrunedRecordsTotal Key = "pruned_records_total"
)

// Registry stores counters. A nil *Registry accepts and discards updates so
// components can be built without one.
type Registry struct {
	mu       sync.RWMutex
	counters map[Key]*int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{counters: make(map[Key]*int64)}
}

// Inc increments a counter by 1.
func (r *Registry) Inc(key Key) {
	r.Add(key, 1)
}

// Add increments a counter by delta.
func (r *Registry) Add(key Key, delta int64) {
	if r == nil {
		return
	}
	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()
	if ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// another writer may have created it while we waited
	if ptr, ok = r.counters[key]; ok {
		atomic.AddInt64(ptr, delta)
		return
	}
	val := delta
	r.counters[key] = &val
}

// Get returns the current value of key.
func (r *Registry) Get(key Key) int64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ptr, ok := r.counters[key]; ok {
		return atomic.LoadInt64(ptr)
	}
	return 0
}

// Snapshot returns a copy of all counters.
func (r *Registry) Snapshot() map[string]int64 {
	if r == nil {
		return map[string]int64{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int64, len(r.counters))
	for key, ptr := range r.counters {
		out[string(key)] = atomic.LoadInt64(ptr)
	}
	return out
}
