package cache

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Cache is a bounded in-memory key-value store with per-entry TTL.
// A single instance is created at startup and shared by every scan
// worker, so all operations take the mutex.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]entry

	hits    uint64
	misses  uint64
	sets    uint64
	deletes uint64

	logger zerolog.Logger
}

type entry struct {
	value      any
	insertedAt time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Sets          uint64  `json:"sets"`
	Deletes       uint64  `json:"deletes"`
	Size          int     `json:"size"`
	MaxSize       int     `json:"max_size"`
	TTLSeconds    float64 `json:"ttl"`
	HitRate       float64 `json:"hit_rate"`
	TotalRequests uint64  `json:"total_requests"`
}

// New creates a cache holding at most maxSize entries, each expiring
// ttl after insertion.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]entry),
		logger:  log.With().Str("component", "cache").Logger(),
	}
	c.logger.Info().Dur("ttl", ttl).Int("max_size", maxSize).Msg("Cache initialized")
	return c
}

// Get returns the cached value for key. The second return value is false
// when the key is absent or its entry has expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && time.Since(e.insertedAt) >= c.ttl {
		delete(c.entries, key)
		ok = false
	}
	if !ok {
		c.misses++
		c.logger.Debug().Str("key", key).Msg("Cache MISS")
		return nil, false
	}
	c.hits++
	c.logger.Debug().Str("key", key).Msg("Cache HIT")
	return e.value, true
}

// Set stores value under key, evicting the oldest entry when the cache
// is full.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = entry{value: value, insertedAt: time.Now()}
	c.sets++
	c.logger.Debug().Str("key", key).Msg("Cache SET")
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	c.deletes++
	c.logger.Debug().Str("key", key).Msg("Cache DELETE")
	return true
}

// Clear drops every entry. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
	c.logger.Info().Msg("Cache cleared")
}

// Stats returns current counters, including the hit rate as a percentage
// rounded to two decimals (0 before the first lookup).
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = math.Round(float64(c.hits)/float64(total)*100*100) / 100
	}

	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Sets:          c.sets,
		Deletes:       c.deletes,
		Size:          len(c.entries),
		MaxSize:       c.maxSize,
		TTLSeconds:    c.ttl.Seconds(),
		HitRate:       hitRate,
		TotalRequests: total,
	}
}

// evictOldestLocked removes the entry with the earliest insertion time.
// maxSize stays small enough (hundreds to a few thousand) that a linear
// scan on eviction is fine.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.insertedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.insertedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
		c.logger.Debug().Str("key", oldestKey).Msg("Cache evicted oldest entry")
	}
}
