// Package cache memoizes extraction results with a TTL and single-flight
// computation. It is a pure optimization layer: callers must observe the
// same behavior whether a value was served from cache or recomputed.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const defaultMaxEntries = 128

// Cache is a TTL-expiring keyed store. Concurrent callers for the same
// key share one in-flight computation; late arrivals wait for and reuse
// its result instead of recomputing. A caller that abandons interest
// simply lets the computation finish for the others.
type Cache[V any] struct {
	entries *expirable.LRU[string, V]
	group   singleflight.Group
}

// New creates a cache with the given TTL. A non-positive ttl disables
// expiry; maxEntries <= 0 uses the default bound.
func New[V any](ttl time.Duration, maxEntries int) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Cache[V]{
		entries: expirable.NewLRU[string, V](maxEntries, nil, ttl),
	}
}

// GetOrCompute returns the cached value for key, or runs compute exactly
// once across concurrent callers and stores its result. Lookup and insert
// are atomic with respect to other callers of the same key, and expiry
// cannot race a fresh insert: both happen under the single-flight slot.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error)) (V, error) {
	if v, ok := c.entries.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check: another caller may have populated the key while this
		// one was waiting for the slot.
		if v, ok := c.entries.Get(key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			var zero V
			return zero, err
		}
		c.entries.Add(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// InvalidateAll clears every entry.
func (c *Cache[V]) InvalidateAll() {
	c.entries.Purge()
}

// Len reports the current number of live entries.
func (c *Cache[V]) Len() int { return c.entries.Len() }
