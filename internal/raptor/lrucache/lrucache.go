// Package lrucache wraps hashicorp/golang-lru/v2 with hit/miss counters,
// the small addition every cached-embedder and preload-stats consumer
// in this module needs on top of a bare LRU.
package lrucache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a generic LRU cache over comparable keys, tracking hits and
// misses alongside the wrapped hashicorp/golang-lru store.
type Cache[K comparable, V any] struct {
	inner *lru.Cache[K, V]

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Cache holding at most size entries.
func New[K comparable, V any](size int) *Cache[K, V] {
	inner, _ := lru.New[K, V](size)
	return &Cache[K, V]{inner: inner}
}

// Get returns the value for key, recording a hit or miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.inner.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Peek returns the value for key without affecting recency or counters.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	return c.inner.Peek(key)
}

// Add inserts or updates key's value, evicting the least recently used
// entry if the cache is full.
func (c *Cache[K, V]) Add(key K, value V) {
	c.inner.Add(key, value)
}

// Len returns the number of entries currently cached.
func (c *Cache[K, V]) Len() int {
	return c.inner.Len()
}

// Purge empties the cache and resets the hit/miss counters.
func (c *Cache[K, V]) Purge() {
	c.inner.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats reports the cache's cumulative hit/miss counts and current size.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// HitRate returns the fraction of lookups satisfied from cache, or 0 if
// there have been no lookups yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns the cache's current statistics.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.inner.Len(),
	}
}
