package preload

import "container/list"

// embeddingBytesEstimate is the assumed per-embedding footprint used for
// the reported memory estimate: a typical embedding vector plus HashMap
// and Vec overhead in the original, carried forward here as a rough
// sizing signal rather than a precise measurement.
const embeddingBytesEstimate = 6144

// entryBytesEstimate is the assumed overhead per cached key for access
// bookkeeping.
const entryBytesEstimate = 32

// embeddingCache is a small LRU cache over chunk ID -> embedding vector,
// tracking hit/miss counts and a rough memory estimate for reporting.
// Grounded on preloader.rs's EmbeddingCache; it exists alongside the
// generic hashicorp/golang-lru cache in embed.CachedEmbedder because it
// needs hit-rate and memory-estimate reporting the generic cache doesn't
// expose.
type embeddingCache struct {
	maxSize int
	order   *list.List
	items   map[string]*list.Element

	hits   int
	misses int
}

type cacheEntry struct {
	id  string
	vec []float32
}

func newEmbeddingCache(maxSize int) *embeddingCache {
	return &embeddingCache{
		maxSize: maxSize,
		order:   list.New(),
		items:   make(map[string]*list.Element),
	}
}

func (c *embeddingCache) get(id string) ([]float32, bool) {
	el, ok := c.items[id]
	if !ok {
		c.misses++
		return nil, false
	}
	c.order.MoveToBack(el)
	c.hits++
	return el.Value.(*cacheEntry).vec, true
}

func (c *embeddingCache) insert(id string, vec []float32) {
	if el, ok := c.items[id]; ok {
		el.Value.(*cacheEntry).vec = vec
		c.order.MoveToBack(el)
		return
	}

	if c.maxSize > 0 && len(c.items) >= c.maxSize {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).id)
		}
	}

	el := c.order.PushBack(&cacheEntry{id: id, vec: vec})
	c.items[id] = el
}

func (c *embeddingCache) clear() {
	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.hits = 0
	c.misses = 0
}

func (c *embeddingCache) size() int {
	return len(c.items)
}

func (c *embeddingCache) hitRate() float32 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float32(c.hits) / float32(total)
}

func (c *embeddingCache) memoryUsageMB() float32 {
	embeddingBytes := len(c.items) * embeddingBytesEstimate
	orderBytes := c.order.Len() * entryBytesEstimate
	return float32(embeddingBytes+orderBytes) / (1024.0 * 1024.0)
}
