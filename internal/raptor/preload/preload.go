// Package preload warms an embedding cache from a Store in the
// background on startup, so the first query doesn't pay the full cost
// of pulling every embedding off disk or out of cold memory. Grounded
// on the original ContextPreloader: batched background loads with
// cooperative cancellation, an LRU embedding cache, and a state machine
// a caller can poll instead of blocking on.
package preload

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	rerrors "github.com/raptorlabs/raptor/internal/errors"
	"github.com/raptorlabs/raptor/internal/raptor/store"
)

// State is the lifecycle of a Preloader's background load.
type State int

const (
	// Idle means preload has not been started yet.
	Idle State = iota
	// Loading means a background load is in progress.
	Loading
	// Ready means the load finished successfully.
	Ready
	// Failed means the load was cancelled or errored.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultBatchSize is how many chunks are loaded between progress
// updates and cancellation checks, absent a configured override.
const DefaultBatchSize = 100

// DefaultMaxEmbeddings bounds the warm cache at roughly 60MB of typical
// embedding vectors, matching the original's default.
const DefaultMaxEmbeddings = 10000

// Stats reports the embedding cache's current occupancy and
// effectiveness.
type Stats struct {
	Size         int
	MaxSize      int
	HitRate      float32
	MemoryMB     float32
	ChunksLoaded int
}

// Report renders a one-line human-readable summary of Stats.
func (s Stats) Report() string {
	pctFull := 0.0
	if s.MaxSize > 0 {
		pctFull = float64(s.Size) / float64(s.MaxSize) * 100
	}
	return fmt.Sprintf(
		"Cache: %d/%d embeddings (%.1f%% full), %.1fMB RAM, %.1f%% hit rate, %d chunks",
		s.Size, s.MaxSize, pctFull, s.MemoryMB, s.HitRate*100, s.ChunksLoaded,
	)
}

// Preloader warms an embeddingCache from a Store's chunk embeddings in a
// background goroutine, exposing a pollable State and Progress instead
// of blocking the caller until the load finishes.
type Preloader struct {
	store *store.Store

	mu           sync.Mutex
	state        State
	cache        *embeddingCache
	chunkIDs     []string
	chunksLoaded int
	lastUpdated  time.Time

	progress atomic.Int32
	cancel   atomic.Bool

	maxEmbeddings    int
	preloadOnStartup bool
	batchSize        int
}

// New creates a Preloader over s, capping the warm cache at
// maxEmbeddings entries and loading batchSize chunks at a time (a
// non-positive batchSize falls back to DefaultBatchSize).
func New(s *store.Store, maxEmbeddings int, preloadOnStartup bool, batchSize int) *Preloader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Preloader{
		store:            s,
		state:            Idle,
		cache:            newEmbeddingCache(maxEmbeddings),
		maxEmbeddings:    maxEmbeddings,
		preloadOnStartup: preloadOnStartup,
		batchSize:        batchSize,
	}
}

// NewDefault creates a Preloader with the default cache size, batch
// size, and preload-on-startup enabled.
func NewDefault(s *store.Store) *Preloader {
	return New(s, DefaultMaxEmbeddings, true, DefaultBatchSize)
}

// State returns the preloader's current lifecycle state.
func (p *Preloader) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Progress returns load progress in the range [0, 100].
func (p *Preloader) Progress() int {
	return int(p.progress.Load())
}

// IsReady reports whether the preload finished successfully.
func (p *Preloader) IsReady() bool {
	return p.State() == Ready
}

// Cancel requests that an in-progress load stop at the next batch
// boundary. It has no effect once the load has already finished.
func (p *Preloader) Cancel() {
	p.cancel.Store(true)
}

// PreloadAsync starts warming the cache in a background goroutine and
// returns immediately. Calling it while a load is already Loading or
// Ready is a no-op, matching the original's idempotent restart guard.
func (p *Preloader) PreloadAsync(ctx context.Context) {
	p.mu.Lock()
	if p.state == Loading || p.state == Ready {
		p.mu.Unlock()
		return
	}
	p.state = Loading
	p.mu.Unlock()

	p.progress.Store(0)
	p.cancel.Store(false)

	go func() {
		err := p.loadFromStore(ctx)

		p.mu.Lock()
		if err != nil {
			p.state = Failed
		} else {
			p.state = Ready
		}
		p.mu.Unlock()
	}()
}

func (p *Preloader) loadFromStore(ctx context.Context) error {
	chunkIDs := p.store.ChunkIDs()
	total := len(chunkIDs)
	if total == 0 {
		return nil
	}

	for start := 0; start < total; start += p.batchSize {
		if p.cancel.Load() {
			return rerrors.NewRaptorError(rerrors.ErrCodeRaptorCancelled, "preload cancelled", nil)
		}
		select {
		case <-ctx.Done():
			return rerrors.NewRaptorError(rerrors.ErrCodeRaptorCancelled, "preload cancelled", ctx.Err())
		default:
		}

		end := start + p.batchSize
		if end > total {
			end = total
		}

		p.mu.Lock()
		for _, id := range chunkIDs[start:end] {
			if emb, ok := p.store.GetChunkEmbedding(id); ok {
				p.cache.insert(id, emb)
				p.chunksLoaded++
			}
		}
		p.mu.Unlock()

		current := (end * 100) / total
		if current > 100 {
			current = 100
		}
		p.progress.Store(int32(current))
	}

	p.mu.Lock()
	p.chunkIDs = chunkIDs
	p.lastUpdated = time.Now()
	p.mu.Unlock()

	p.progress.Store(100)
	return nil
}

// GetEmbedding returns chunkID's embedding, preferring the warm cache
// and falling back to the backing store (caching the result) on a miss.
func (p *Preloader) GetEmbedding(chunkID string) ([]float32, bool) {
	p.mu.Lock()
	if emb, ok := p.cache.get(chunkID); ok {
		p.mu.Unlock()
		return emb, true
	}
	p.mu.Unlock()

	emb, ok := p.store.GetChunkEmbedding(chunkID)
	if !ok {
		return nil, false
	}

	p.mu.Lock()
	p.cache.insert(chunkID, emb)
	p.mu.Unlock()
	return emb, true
}

// CacheStats reports the embedding cache's current occupancy and hit
// rate.
func (p *Preloader) CacheStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Size:         p.cache.size(),
		MaxSize:      p.maxEmbeddings,
		HitRate:      p.cache.hitRate(),
		MemoryMB:     p.cache.memoryUsageMB(),
		ChunksLoaded: p.chunksLoaded,
	}
}

// ClearCache empties the warm cache and resets the preloader to Idle so
// a subsequent PreloadAsync starts a fresh load.
func (p *Preloader) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.clear()
	p.chunksLoaded = 0
	p.chunkIDs = nil
	p.state = Idle
	p.progress.Store(0)
}
