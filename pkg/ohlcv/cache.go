package ohlcv

import (
	"sync"
	"time"
)

// TTLCache is a single-process in-memory key/value store with lazy TTL
// expiry. Instances are owned by the service or an adapter and injected at
// construction; there is no package-level shared state, so tests get fully
// isolated caches.
//
// Misses can be cached too (negative caching) with a separate, shorter TTL
// so repeated lookups for tokens without a pool do not hammer upstreams.
//
// Concurrent callers racing on the same cold key each issue their own
// upstream call; correctness relies on TTL staleness, not coalescing, and a
// duplicate call is wasteful but not wrong.
type TTLCache[V any] struct {
	mu          sync.RWMutex
	entries     map[string]cacheEntry[V]
	ttl         time.Duration
	negativeTTL time.Duration
	now         func() time.Time
}

type cacheEntry[V any] struct {
	value     V
	negative  bool
	expiresAt time.Time
}

// NewTTLCache builds a cache with the given positive and negative TTLs.
func NewTTLCache[V any](ttl, negativeTTL time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		entries:     make(map[string]cacheEntry[V]),
		ttl:         ttl,
		negativeTTL: negativeTTL,
		now:         time.Now,
	}
}

// Get returns the cached value for key. The second return reports whether a
// live entry exists, the third whether that entry is a cached miss.
func (c *TTLCache[V]) Get(key string) (V, bool, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	var zero V
	if !ok {
		return zero, false, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a writer may have refreshed the
		// entry between the two lock sections.
		if current, ok := c.entries[key]; ok && c.now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false, false
	}
	return entry.value, true, entry.negative
}

// Set stores value under key with the cache's default positive TTL.
func (c *TTLCache[V]) Set(key string, value V) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL stores value under key with an explicit TTL, used for candle
// results whose freshness scales with the interval.
func (c *TTLCache[V]) SetTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// SetNegative records that a lookup for key failed, for the negative TTL.
func (c *TTLCache[V]) SetNegative(key string) {
	if c.negativeTTL <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{negative: true, expiresAt: c.now().Add(c.negativeTTL)}
	c.mu.Unlock()
}

// Len counts live entries; expired ones are pruned as a side effect.
func (c *TTLCache[V]) Len() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	return len(c.entries)
}
