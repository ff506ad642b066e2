// Package cache is a typed TTL cache over ristretto.
package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Cache is a bounded, TTL-aware in-memory cache.
type Cache[K comparable, V any] struct {
	store *ristretto.Cache
	ttl   time.Duration
}

// New creates a cache whose entries expire after defaultTTL unless Set
// receives an explicit ttl.
func New[K comparable, V any](defaultTTL time.Duration) (*Cache[K, V], error) {
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1e4,
		BufferItems: 64,
		Metrics:     false,
	})
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{store: store, ttl: defaultTTL}, nil
}

// Get returns the value for key if present and not expired.
func (c *Cache[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V
	raw, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set stores value. ttl <= 0 uses the default TTL. Writes are made visible
// before Set returns.
func (c *Cache[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.ttl
	}
	ok := c.store.SetWithTTL(key, value, 1, ttl)
	c.store.Wait()
	return ok
}

// Delete removes key.
func (c *Cache[K, V]) Delete(_ context.Context, key K) {
	c.store.Del(key)
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.store.Clear()
}

// Close releases the cache goroutines.
func (c *Cache[K, V]) Close() {
	c.store.Close()
}
