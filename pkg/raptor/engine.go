package raptor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	rerrors "github.com/raptorlabs/raptor/internal/errors"
	raptorcache "github.com/raptorlabs/raptor/internal/raptor/cache"
	"github.com/raptorlabs/raptor/internal/raptor/embed"
	raptorindex "github.com/raptorlabs/raptor/internal/raptor/index"
	"github.com/raptorlabs/raptor/internal/raptor/memtier"
	"github.com/raptorlabs/raptor/internal/raptor/metadata"
	"github.com/raptorlabs/raptor/internal/raptor/preload"
	"github.com/raptorlabs/raptor/internal/raptor/retrieve"
	"github.com/raptorlabs/raptor/internal/raptor/store"
	"github.com/raptorlabs/raptor/internal/raptor/watch"
	"github.com/raptorlabs/raptor/internal/scanner"
)

// Engine is the public facade over chunking, embedding, clustering, and
// retrieval: Index a project once, then Query it repeatedly.
//
// Engine is safe for concurrent use: Query may be called from multiple
// goroutines while a background Index call is in progress, though
// results will reflect whatever partial state the store holds at query
// time.
type Engine struct {
	mu sync.RWMutex

	store     *store.Store
	embedder  embed.Embedder
	driver    *raptorindex.Driver
	retriever *retrieve.Retriever
	preloader *preload.Preloader
	meta      *metadata.Store

	cacheDir         string
	indexOpts        raptorindex.Options
	projectPath      string
	preloadBatchSize int

	progressSubs []chan raptorindex.ProgressEvent
}

// Option configures an Engine at construction time.
type Option func(*engineConfig)

type engineConfig struct {
	embedder         embed.Embedder
	cacheDir         string
	indexOpts        raptorindex.Options
	memTierGB        uint64
	memLimits        *memtier.Limits
	cacheEnabled     bool
	preloadBatchSize int
}

// WithEmbedder overrides the default static embedder.
func WithEmbedder(e embed.Embedder) Option {
	return func(c *engineConfig) { c.embedder = e }
}

// WithCacheDir enables on-disk snapshot caching under dir. Without this
// option, Index always rebuilds from scratch.
func WithCacheDir(dir string) Option {
	return func(c *engineConfig) { c.cacheDir = dir; c.cacheEnabled = true }
}

// WithIndexOptions overrides the chunking/clustering/embedding tunables
// used by Index.
func WithIndexOptions(opts raptorindex.Options) Option {
	return func(c *engineConfig) { c.indexOpts = opts }
}

// WithMemoryTierOverride forces a specific RAM tier instead of detecting
// the host's total memory, mainly for tests and CI.
func WithMemoryTierOverride(totalGB uint64) Option {
	return func(c *engineConfig) { c.memTierGB = totalGB }
}

// WithCapacityOverride sets the store's chunk and node capacity directly,
// bypassing RAM-tier detection entirely. Takes precedence over
// WithMemoryTierOverride when both are given. Mainly for tests and
// operators who want an exact cap (e.g. max_chunks) rather than a tier.
func WithCapacityOverride(limits memtier.Limits) Option {
	return func(c *engineConfig) { c.memLimits = &limits }
}

// WithPreloadBatchSize overrides how many chunks the startup preloader
// loads per batch between progress updates and cancellation checks.
func WithPreloadBatchSize(n int) Option {
	return func(c *engineConfig) { c.preloadBatchSize = n }
}

// New creates an Engine ready to Index a project.
func New(opts ...Option) (*Engine, error) {
	cfg := engineConfig{
		embedder:         embed.NewDefaultEmbedder(),
		indexOpts:        raptorindex.DefaultOptions(),
		preloadBatchSize: preload.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cached := embed.NewCachedEmbedder(cfg.embedder, embed.DefaultCacheSize)
	limits := memtier.DetectLimits(cfg.memTierGB)
	if cfg.memLimits != nil {
		limits = *cfg.memLimits
	}
	s := store.New(limits)

	sc, err := scanner.New()
	if err != nil {
		return nil, rerrors.NewRaptorError(rerrors.ErrCodeRaptorIOFailure, "create project scanner", err)
	}

	driver := raptorindex.New(s, cached, sc, cfg.indexOpts)

	return &Engine{
		store:            s,
		embedder:         cached,
		driver:           driver,
		retriever:        retrieve.New(cached, s),
		preloader:        preload.New(s, preload.DefaultMaxEmbeddings, true, cfg.preloadBatchSize),
		cacheDir:         cfg.cacheDir,
		indexOpts:        cfg.indexOpts,
		preloadBatchSize: cfg.preloadBatchSize,
	}, nil
}

// Index builds (or rebuilds) the hierarchical index for the project at
// path. It first tries a cached snapshot (if a cache directory was
// configured), then runs a quick chunk-only pass before embedding and
// clustering, so HasQuickIndex becomes true well before HasFullIndex.
// Progress is pushed to any channel registered via SubscribeProgress.
func (e *Engine) Index(ctx context.Context, path string) error {
	e.mu.Lock()
	e.projectPath = path
	e.mu.Unlock()

	if e.cacheDir != "" {
		if loaded, ok := e.tryLoadCache(path); ok {
			e.mu.Lock()
			e.store = loaded
			e.retriever = retrieve.New(e.embedder, loaded)
			e.preloader = preload.New(loaded, preload.DefaultMaxEmbeddings, true, e.preloadBatchSize)
			e.driver = raptorindex.New(loaded, e.embedder, e.driverScanner(), e.indexOpts)
			e.mu.Unlock()
			slog.Info("raptor: loaded index from cache", slog.String("project", path))
		}
		e.ensureMetadataStore()
	}

	progressCh := e.broadcastChannel()
	defer e.closeBroadcastChannel(progressCh)

	if _, err := e.driver.QuickIndex(ctx, path); err != nil {
		return err
	}

	if err := e.driver.BuildFull(ctx, path, progressCh); err != nil {
		return err
	}

	e.mu.RLock()
	retriever := e.retriever
	e.mu.RUnlock()
	if err := retriever.RebuildKeywordIndex(ctx); err != nil {
		slog.Warn("raptor: keyword index rebuild failed", slog.String("error", err.Error()))
	}

	if e.cacheDir != "" {
		if err := raptorcache.Save(e.storeRef(), raptorcache.PathFor(e.cacheDir, path)); err != nil {
			slog.Warn("raptor: failed to save cache", slog.String("error", err.Error()))
		}
		e.syncMetadataStore(path)
	}

	e.preloader.PreloadAsync(ctx)
	return nil
}

func (e *Engine) tryLoadCache(path string) (*store.Store, bool) {
	limits := memtier.DetectLimits(0)
	loaded, found, err := raptorcache.Load(raptorcache.PathFor(e.cacheDir, path), limits)
	if err != nil {
		slog.Warn("raptor: cache load failed, rebuilding", slog.String("error", err.Error()))
		return nil, false
	}
	if !found {
		return nil, false
	}
	if !raptorcache.IsValid(loaded, path, raptorcache.DefaultTTL, e.embedder.ModelName(), e.embedder.Dimensions()) {
		return nil, false
	}
	return loaded, true
}

func (e *Engine) driverScanner() *scanner.Scanner {
	sc, _ := scanner.New()
	return sc
}

// ensureMetadataStore opens the SQLite bookkeeping sibling under
// cacheDir the first time Index runs against a cache-backed Engine.
func (e *Engine) ensureMetadataStore() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.meta != nil {
		return
	}
	m, err := metadata.Open(filepath.Join(e.cacheDir, "metadata.db"))
	if err != nil {
		slog.Warn("raptor: metadata store unavailable", slog.String("error", err.Error()))
		return
	}
	e.meta = m
}

// syncMetadataStore mirrors the in-memory store's file mtimes and
// project identity into the persisted metadata database after a
// successful build, so a separate process can inspect indexing state
// without loading the full binary snapshot.
func (e *Engine) syncMetadataStore(path string) {
	e.mu.RLock()
	m := e.meta
	s := e.store
	e.mu.RUnlock()
	if m == nil {
		return
	}

	if err := m.SetProjectMetadata(path, time.Now().Unix()); err != nil {
		slog.Warn("raptor: metadata project sync failed", slog.String("error", err.Error()))
	}
	for file, mtime := range s.AllIndexedFiles() {
		if err := m.SetFileMtime(file, mtime); err != nil {
			slog.Warn("raptor: metadata mtime sync failed", slog.String("error", err.Error()))
			break
		}
	}
	if err := m.SaveCheckpoint("complete", s.ChunkCount(), s.ChunkCount()); err != nil {
		slog.Warn("raptor: metadata checkpoint sync failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) storeRef() *store.Store {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store
}

// Query returns the top-k chunk hits for a free-text query, found by
// descending the tree (or by a flat scan when no tree exists).
func (e *Engine) Query(ctx context.Context, text string, topK int) ([]retrieve.Hit, error) {
	e.mu.RLock()
	r := e.retriever
	e.mu.RUnlock()
	return r.Retrieve(ctx, text, topK)
}

// QueryWithContext returns summary-node hits plus, when the top summary
// isn't confident enough, chunk-level fallback hits.
func (e *Engine) QueryWithContext(ctx context.Context, text string, topK, expandK int, chunkThreshold float32) (summaries, chunks []retrieve.Hit, err error) {
	e.mu.RLock()
	r := e.retriever
	e.mu.RUnlock()
	return r.RetrieveWithContext(ctx, text, topK, expandK, chunkThreshold)
}

// Stats reports the current index occupancy and the preloader's warm
// embedding cache effectiveness.
type Stats struct {
	ChunkCount   int
	NodeCount    int
	HasQuickIdx  bool
	HasFullIdx   bool
	PreloadState string
	CacheStats   preload.Stats
}

// Stats returns a snapshot of the engine's current state.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		ChunkCount:   e.store.ChunkCount(),
		NodeCount:    e.store.NodeCount(),
		HasQuickIdx:  e.store.HasQuickIndex(),
		HasFullIdx:   e.store.HasFullIndex(),
		PreloadState: e.preloader.State().String(),
		CacheStats:   e.preloader.CacheStats(),
	}
}

// Report renders Stats as a one-line human-readable summary, suitable
// for CLI output.
func (s Stats) Report() string {
	return fmt.Sprintf(
		"%d chunks, %d nodes, quick=%t full=%t, preload=%s, %s",
		s.ChunkCount, s.NodeCount, s.HasQuickIdx, s.HasFullIdx, s.PreloadState, s.CacheStats.Report(),
	)
}

// Clear drops the in-memory index and resets the preloader, leaving any
// on-disk cache file untouched.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Clear()
	e.preloader.ClearCache()
	if e.meta != nil {
		if err := e.meta.Clear(); err != nil {
			slog.Warn("raptor: metadata clear failed", slog.String("error", err.Error()))
		}
	}
}

// Close releases resources held open across Index calls, such as the
// metadata database connection. Safe to call even if Index was never
// invoked.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.meta == nil {
		return nil
	}
	err := e.meta.Close()
	e.meta = nil
	return err
}

// StartWatching begins a live fsnotify watch over path and forgets each
// changed file's recorded mtime as edits land, so the next Index call
// re-chunks it instead of skipping it on a stale mtime match. Returns a
// stop function that cancels the watch; the caller is responsible for
// calling Index again to actually rebuild after changes arrive.
func (e *Engine) StartWatching(ctx context.Context, path string) (stop func(), err error) {
	w, err := watch.New(path, watch.DefaultDebounce)
	if err != nil {
		return nil, rerrors.NewRaptorError(rerrors.ErrCodeRaptorIOFailure, "start file watcher", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	if err := w.Start(watchCtx); err != nil {
		cancel()
		return nil, rerrors.NewRaptorError(rerrors.ErrCodeRaptorIOFailure, "start file watcher", err)
	}

	go func() {
		for changed := range w.Dirty() {
			e.mu.RLock()
			s := e.store
			m := e.meta
			e.mu.RUnlock()
			s.ForgetFile(changed)
			if m != nil {
				if err := m.ForgetFile(changed); err != nil {
					slog.Warn("raptor: metadata forget-file failed", slog.String("error", err.Error()))
				}
			}
			slog.Info("raptor: file changed, marked dirty", slog.String("path", changed))
		}
	}()

	return cancel, nil
}

// SubscribeProgress registers a buffered channel that receives progress
// events from the next Index call. The channel is closed when that
// Index call finishes.
func (e *Engine) SubscribeProgress() <-chan raptorindex.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan raptorindex.ProgressEvent, 64)
	e.progressSubs = append(e.progressSubs, ch)
	return ch
}

func (e *Engine) broadcastChannel() chan raptorindex.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.progressSubs) == 0 {
		return nil
	}
	// Fan the driver's single progress channel out to every subscriber.
	internal := make(chan raptorindex.ProgressEvent, 64)
	subs := append([]chan raptorindex.ProgressEvent(nil), e.progressSubs...)
	go func() {
		for ev := range internal {
			for _, sub := range subs {
				select {
				case sub <- ev:
				default:
				}
			}
		}
		for _, sub := range subs {
			close(sub)
		}
	}()
	return internal
}

func (e *Engine) closeBroadcastChannel(ch chan raptorindex.ProgressEvent) {
	if ch == nil {
		return
	}
	close(ch)
	e.mu.Lock()
	e.progressSubs = nil
	e.mu.Unlock()
}
