// Package cache holds recently computed leaderboard views for a short time.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"dailyboard/core"
	"dailyboard/metrics"
)

const (
	DefaultTTL        = 3 * time.Second
	DefaultMaxEntries = 100
)

// Entry is a cached top-N result. Top is shared between readers and must be
// treated as read-only.
type Entry struct {
	DateKey string          `json:"dateKey"`
	Top     []core.Standing `json:"top"`
}

// Key identifies one cached view.
type Key struct {
	Mode   string
	Region string
	Limit  int
}

// NewKey builds a Key, labelling an empty region as core.RegionAll.
func NewKey(mode, region string, limit int) Key {
	return Key{Mode: mode, Region: regionLabel(region), Limit: limit}
}

func (k Key) String() string { return fmt.Sprintf("%s:%s:%d", k.Mode, k.Region, k.Limit) }

func regionLabel(region string) string {
	if region == "" {
		return core.RegionAll
	}
	return region
}

// group is the (mode, region) pair a write invalidates.
type group struct{ mode, region string }

func (k Key) group() group { return group{mode: k.Mode, region: k.Region} }

type item struct {
	key       Key
	entry     Entry
	expiresAt time.Time
}

// ReadCache is a TTL-bounded LRU keyed by (mode, region, limit). A secondary
// index maps each (mode, region) to its live keys so Invalidate touches only
// matching entries. One mutex guards the list, the map and the index together.
//
// Reads do not refresh an entry's TTL: a value is never served later than
// TTL after it was stored. A nil *ReadCache behaves as an always-empty cache.
type ReadCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	max      int
	now      func() time.Time
	ll       *list.List
	items    map[Key]*list.Element
	groups   map[group]map[Key]struct{}
	versions map[group]uint64
	metrics  *metrics.Registry
}

// Option configures a ReadCache.
type Option func(*ReadCache)

// WithTTL sets the entry lifetime.
func WithTTL(d time.Duration) Option {
	return func(c *ReadCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithMaxEntries bounds the number of cached views.
func WithMaxEntries(n int) Option {
	return func(c *ReadCache) {
		if n > 0 {
			c.max = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *ReadCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics records hits, misses and evictions.
func WithMetrics(r *metrics.Registry) Option { return func(c *ReadCache) { c.metrics = r } }

// New builds an empty cache.
func New(opts ...Option) *ReadCache {
	c := &ReadCache{
		ttl:      DefaultTTL,
		max:      DefaultMaxEntries,
		now:      time.Now,
		ll:       list.New(),
		items:    make(map[Key]*list.Element),
		groups:   make(map[group]map[Key]struct{}),
		versions: make(map[group]uint64),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the live entry for (mode, region, limit).
func (c *ReadCache) Get(mode, region string, limit int) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	key := NewKey(mode, region, limit)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.metrics.Inc(metrics.CacheMissesTotal)
		return Entry{}, false
	}
	it := el.Value.(*item)
	if !c.now().Before(it.expiresAt) {
		c.removeElement(el)
		c.metrics.Inc(metrics.CacheExpiredTotal)
		c.metrics.Inc(metrics.CacheMissesTotal)
		return Entry{}, false
	}
	c.ll.MoveToFront(el)
	c.metrics.Inc(metrics.CacheHitsTotal)
	return it.entry, true
}

// Set stores entry, evicting the least recently used views beyond capacity.
func (c *ReadCache) Set(mode, region string, limit int, entry Entry) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(NewKey(mode, region, limit), entry)
}

// Version returns the invalidation generation of (mode, region). Pair it with
// SetIfVersion to avoid caching a result computed before a concurrent write.
func (c *ReadCache) Version(mode, region string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[group{mode: mode, region: regionLabel(region)}]
}

// SetIfVersion stores entry only if (mode, region) has not been invalidated
// since version was read. It reports whether the entry was stored.
func (c *ReadCache) SetIfVersion(mode, region string, limit int, version uint64, entry Entry) bool {
	if c == nil {
		return false
	}
	key := NewKey(mode, region, limit)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[key.group()] != version {
		return false
	}
	c.setLocked(key, entry)
	return true
}

// Invalidate drops every cached limit for (mode, region) and returns how many
// entries were removed.
func (c *ReadCache) Invalidate(mode, region string) int {
	if c == nil {
		return 0
	}
	g := group{mode: mode, region: regionLabel(region)}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.versions[g]++
	keys := c.groups[g]
	removed := 0
	for key := range keys {
		if el, ok := c.items[key]; ok {
			c.removeElement(el)
			removed++
		}
	}
	delete(c.groups, g)
	c.metrics.Inc(metrics.CacheInvalidationsTotal)
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (c *ReadCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Purge removes everything.
func (c *ReadCache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[Key]*list.Element)
	c.groups = make(map[group]map[Key]struct{})
}

func (c *ReadCache) setLocked(key Key, entry Entry) {
	entry.Top = append([]core.Standing(nil), entry.Top...)
	expiresAt := c.now().Add(c.ttl)
	c.metrics.Inc(metrics.CacheSetsTotal)

	if el, ok := c.items[key]; ok {
		it := el.Value.(*item)
		it.entry = entry
		it.expiresAt = expiresAt
		c.ll.MoveToFront(el)
		return
	}

	c.items[key] = c.ll.PushFront(&item{key: key, entry: entry, expiresAt: expiresAt})
	g := key.group()
	if c.groups[g] == nil {
		c.groups[g] = make(map[Key]struct{})
	}
	c.groups[g][key] = struct{}{}

	for c.ll.Len() > c.max {
		c.removeElement(c.ll.Back())
		c.metrics.Inc(metrics.CacheEvictionsTotal)
	}
}

func (c *ReadCache) removeElement(el *list.Element) {
	it := c.ll.Remove(el).(*item)
	delete(c.items, it.key)
	g := it.key.group()
	if keys := c.groups[g]; keys != nil {
		delete(keys, it.key)
		if len(keys) == 0 {
			delete(c.groups, g)
		}
	}
}
