package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/raptorlabs/raptor/internal/raptor/lrucache"
)

// DefaultCacheSize mirrors the teacher's internal/embed.CachedEmbedder
// default: enough entries to cover a typical session's queries without
// meaningful memory pressure.
const DefaultCacheSize = 1000

// CachedEmbedder wraps an Embedder with an LRU cache keyed by
// SHA256(text || model name), following the teacher's
// internal/embed.CachedEmbedder pattern.
type CachedEmbedder struct {
	inner Embedder
	cache *lrucache.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with an LRU cache of the given size.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &CachedEmbedder{inner: inner, cache: lrucache.New[string, []float32](cacheSize)}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(h[:])
}

// Embed returns a cached embedding if present, otherwise computes and
// caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch partitions texts into cached and uncached, embeds the
// uncached remainder in one batch call, and caches the new results.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var uncachedIdx []int
	var uncachedTexts []string

	for i, text := range texts {
		key := c.cacheKey(text)
		if vec, ok := c.cache.Get(key); ok {
			results[i] = vec
			continue
		}
		uncachedIdx = append(uncachedIdx, i)
		uncachedTexts = append(uncachedTexts, text)
	}

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	newEmbeddings, err := c.inner.EmbedBatch(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range uncachedIdx {
		results[idx] = newEmbeddings[j]
		c.cache.Add(c.cacheKey(texts[idx]), newEmbeddings[j])
	}

	return results, nil
}

// Dimensions passes through to the inner embedder.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// ModelName passes through to the inner embedder.
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

// Inner returns the wrapped embedder.
func (c *CachedEmbedder) Inner() Embedder { return c.inner }

// CacheStats summarizes the cache's hit rate and occupancy.
type CacheStats = lrucache.Stats

// Stats returns the current cache statistics.
func (c *CachedEmbedder) Stats() CacheStats {
	return c.cache.Stats()
}

// Clear empties the cache and resets its counters.
func (c *CachedEmbedder) Clear() {
	c.cache.Purge()
}
