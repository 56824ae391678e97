package lrucache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_AddGet_HitsAndMisses(t *testing.T) {
	c := New[string, int](10)
	c.Add("a", 1)

	_, ok := c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate(), 0.0001)
}

func TestCache_Eviction(t *testing.T) {
	c := New[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	assert.Equal(t, 2, c.Len())
}

func TestCache_Purge_ResetsStats(t *testing.T) {
	c := New[string, int](10)
	c.Add("a", 1)
	c.Get("a")
	c.Get("missing")

	c.Purge()
	assert.Equal(t, 0, c.Len())
	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestCache_Peek_DoesNotAffectStats(t *testing.T) {
	c := New[string, int](10)
	c.Add("a", 1)
	c.Peek("a")
	c.Peek("missing")

	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestStats_HitRate_NoLookups(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.HitRate())
}
