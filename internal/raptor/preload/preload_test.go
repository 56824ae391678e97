package preload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raptorlabs/raptor/internal/raptor/memtier"
	"github.com/raptorlabs/raptor/internal/raptor/store"
)

func newTestStore(t *testing.T, n int) *store.Store {
	t.Helper()
	s := store.New(memtier.Limits{MaxChunks: 10000, MaxNodes: 10000})
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		s.InsertChunk(id, "content "+id, "")
		s.InsertChunkEmbedding(id, []float32{float32(i), 0, 0})
	}
	return s
}

func TestEmbeddingCache_InsertGet(t *testing.T) {
	c := newEmbeddingCache(3)
	c.insert("chunk1", []float32{1, 2, 3})
	c.insert("chunk2", []float32{4, 5, 6})

	assert.Equal(t, 2, c.size())
	v, ok := c.get("chunk1")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)

	_, ok = c.get("chunk3")
	assert.False(t, ok)
}

func TestEmbeddingCache_LRUEviction(t *testing.T) {
	c := newEmbeddingCache(2)
	c.insert("chunk1", []float32{1})
	c.insert("chunk2", []float32{2})
	c.insert("chunk3", []float32{3})

	assert.Equal(t, 2, c.size())
	_, ok := c.get("chunk1")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.get("chunk2")
	assert.True(t, ok)
	_, ok = c.get("chunk3")
	assert.True(t, ok)
}

func TestEmbeddingCache_AccessRefreshesRecency(t *testing.T) {
	c := newEmbeddingCache(2)
	c.insert("chunk1", []float32{1})
	c.insert("chunk2", []float32{2})

	_, _ = c.get("chunk1") // touch chunk1, making chunk2 the oldest

	c.insert("chunk3", []float32{3})
	_, ok := c.get("chunk1")
	assert.True(t, ok, "recently accessed entry should survive eviction")
	_, ok = c.get("chunk2")
	assert.False(t, ok)
}

func TestEmbeddingCache_HitRate(t *testing.T) {
	c := newEmbeddingCache(10)
	c.insert("chunk1", []float32{1})

	c.get("chunk1")
	c.get("chunk1")
	c.get("chunk1")
	c.get("chunk2")
	c.get("chunk3")

	assert.InDelta(t, 0.6, c.hitRate(), 0.0001)
}

func TestPreloader_InitialState(t *testing.T) {
	p := New(newTestStore(t, 0), 100, true, DefaultBatchSize)
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 0, p.Progress())
	assert.False(t, p.IsReady())
}

func TestPreloader_PreloadAsync_ReachesReady(t *testing.T) {
	p := New(newTestStore(t, 250), 1000, true, DefaultBatchSize)
	p.PreloadAsync(context.Background())

	require.Eventually(t, func() bool {
		return p.State() == Ready
	}, time.Second, time.Millisecond)

	assert.Equal(t, 100, p.Progress())
	stats := p.CacheStats()
	assert.Equal(t, 250, stats.ChunksLoaded)
}

func TestPreloader_PreloadAsync_IdempotentWhileLoading(t *testing.T) {
	p := New(newTestStore(t, 10), 100, true, DefaultBatchSize)
	p.PreloadAsync(context.Background())
	firstState := p.State()
	p.PreloadAsync(context.Background())

	require.Eventually(t, func() bool {
		return p.State() == Ready
	}, time.Second, time.Millisecond)
	assert.Contains(t, []State{Loading, Ready}, firstState)
}

func TestPreloader_Cancel_StopsLoadAsFailed(t *testing.T) {
	p := New(newTestStore(t, 10000), 20000, true, DefaultBatchSize)
	p.PreloadAsync(context.Background())
	p.Cancel()

	// Cancel has no effect on a load that already finished, so Ready is
	// accepted too in case all batches ran before the flag was set.
	require.Eventually(t, func() bool {
		return p.State() == Failed || p.State() == Ready
	}, 2*time.Second, time.Millisecond)
}

func TestPreloader_GetEmbedding_FallsBackToStore(t *testing.T) {
	s := newTestStore(t, 1)
	p := New(s, 100, true, DefaultBatchSize)

	emb, ok := p.GetEmbedding("a")
	require.True(t, ok)
	assert.Equal(t, []float32{0, 0, 0}, emb)

	stats := p.CacheStats()
	assert.Equal(t, 1, stats.Size)
}

func TestPreloader_ClearCache_ResetsToIdle(t *testing.T) {
	p := New(newTestStore(t, 50), 1000, true, DefaultBatchSize)
	p.PreloadAsync(context.Background())
	require.Eventually(t, func() bool {
		return p.State() == Ready
	}, time.Second, time.Millisecond)

	p.ClearCache()
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 0, p.Progress())
	stats := p.CacheStats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, 0, stats.ChunksLoaded)
}

func TestStats_Report(t *testing.T) {
	stats := Stats{Size: 2, MaxSize: 100, HitRate: 0.5, MemoryMB: 1.2, ChunksLoaded: 50}
	report := stats.Report()
	assert.Contains(t, report, "2/100")
	assert.Contains(t, report, "50 chunks")
}
