package api

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// IdempotencyCache collapses concurrent requests carrying the same
// idempotency key into one execution and replays the stored outcome for
// repeats within the TTL. Concurrent duplicates share the in-flight call
// via singleflight; later duplicates hit the TTL cache.
type IdempotencyCache struct {
	group singleflight.Group
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     any
	err       error
	expiresAt time.Time
}

// NewIdempotencyCache creates a cache with the given replay TTL.
//
// Precondition: ttl > 0.
func NewIdempotencyCache(ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Do executes fn at most once per key within the TTL. Returns the stored
// value, whether the result was replayed from cache, and the error fn
// produced. Errors are cached too, so a failed call is not retried under
// the same key.
func (c *IdempotencyCache) Do(key string, fn func() (any, error)) (any, bool, error) {
	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		if time.Now().Before(entry.expiresAt) {
			c.mu.Unlock()
			return entry.value, true, entry.err
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	value, err, shared := c.group.Do(key, func() (any, error) {
		v, err := fn()
		c.mu.Lock()
		c.entries[key] = cacheEntry{value: v, err: err, expiresAt: time.Now().Add(c.ttl)}
		c.pruneLocked()
		c.mu.Unlock()
		return v, err
	})
	return value, shared, err
}

// pruneLocked drops expired entries. Called with mu held on every store,
// keeping the map bounded without a background sweeper.
func (c *IdempotencyCache) pruneLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
