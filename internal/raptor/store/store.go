// Package store holds the in-memory RAPTOR index: chunk content and
// embeddings, the clustered tree built on top of them, and the
// bookkeeping needed for incremental re-indexing and on-disk caching.
//
// Inserts past the store's memory-tier capacity are dropped silently
// (the caller decides whether to surface a warning); Store never
// returns an out-of-memory error, matching the "fail open" resource
// model RAPTOR's indexing driver relies on.
package store

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/raptorlabs/raptor/internal/raptor/memtier"
	"github.com/raptorlabs/raptor/internal/raptor/tree"
)

// ScoredID is a single retrieval hit: an opaque ID (chunk or node) with
// its similarity score against the query.
type ScoredID struct {
	ID    string
	Score float32
}

// Store is the in-memory RAPTOR index for a single project.
type Store struct {
	mu sync.RWMutex

	limits memtier.Limits

	chunkContent   map[string]string
	chunkEmbedding map[string][]float32
	chunkPath      map[string]string // chunk id -> source file path, empty if none
	nodes          map[string]*tree.Node
	rootID         string

	indexedFiles map[string]int64 // file path -> unix mtime

	projectPath string
	createdAt   int64

	indexingComplete bool

	modelName string
	dimension int

	ann      *hnsw.Graph[string]
	annDirty bool
}

// New creates an empty store bounded by limits.
func New(limits memtier.Limits) *Store {
	return &Store{
		limits:         limits,
		chunkContent:   make(map[string]string),
		chunkEmbedding: make(map[string][]float32),
		chunkPath:      make(map[string]string),
		nodes:          make(map[string]*tree.Node),
		indexedFiles:   make(map[string]int64),
		ann:            newANNGraph(),
	}
}

// InsertChunk records a chunk's content under id, optionally tagged with
// the source file path it was read from (empty if the caller has none).
// Returns false without inserting if the store is at its chunk capacity.
func (s *Store) InsertChunk(id, content, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunkContent) >= s.limits.MaxChunks {
		return false
	}
	s.chunkContent[id] = content
	if path != "" {
		s.chunkPath[id] = path
	}
	return true
}

// InsertChunkEmbedding records a chunk's embedding under id. Returns
// false without inserting if the store is at its chunk capacity.
func (s *Store) InsertChunkEmbedding(id string, emb []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunkEmbedding) >= s.limits.MaxChunks {
		return false
	}
	s.chunkEmbedding[id] = emb
	s.annDirty = true
	return true
}

// InsertNode records a tree node. Returns false without inserting if
// the store is at its node capacity.
func (s *Store) InsertNode(node *tree.Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.nodes) >= s.limits.MaxNodes {
		return false
	}
	s.nodes[node.ID] = node
	return true
}

// SetTree replaces the store's tree wholesale, as produced by a fresh
// tree.Build - any nodes from a previous build are dropped first so a
// rebuild never leaves stale nodes reachable alongside the new tree.
// Nodes beyond the node capacity are dropped; the root is still
// recorded so hierarchical queries degrade to whatever subset of the
// tree survived.
func (s *Store) SetTree(nodes map[string]*tree.Node, rootID string) (inserted, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]*tree.Node, len(nodes))
	for id, n := range nodes {
		if len(s.nodes) >= s.limits.MaxNodes {
			dropped++
			continue
		}
		s.nodes[id] = n
		inserted++
	}
	s.rootID = rootID
	return inserted, dropped
}

// GetChunk returns a chunk's content by ID.
func (s *Store) GetChunk(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunkContent[id]
	return c, ok
}

// ChunkPath returns the source file path a chunk was read from, if any
// was recorded.
func (s *Store) ChunkPath(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.chunkPath[id]
	return p, ok
}

// RemoveChunksForFile drops every chunk (content, embedding, and path
// tag) previously recorded under path, so a re-chunk of a changed file
// doesn't leave its old chunks' stale content and embeddings behind in
// the store or tree. Returns the number of chunks removed. Does not
// touch the tree itself - the caller is responsible for triggering a
// rebuild so removed chunk IDs stop being reachable from the root.
func (s *Store) RemoveChunksForFile(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, p := range s.chunkPath {
		if p != path {
			continue
		}
		delete(s.chunkContent, id)
		delete(s.chunkEmbedding, id)
		delete(s.chunkPath, id)
		removed++
	}
	if removed > 0 {
		s.annDirty = true
	}
	return removed
}

// PendingEmbeddings returns the content of every chunk that has not yet
// been embedded, keyed by chunk ID - the set of chunks a build pass
// still needs to run through the embedder.
func (s *Store) PendingEmbeddings() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending := make(map[string]string)
	for id, content := range s.chunkContent {
		if _, ok := s.chunkEmbedding[id]; !ok {
			pending[id] = content
		}
	}
	return pending
}

// ChunkIDs returns the IDs of every chunk currently stored, in no
// particular order.
func (s *Store) ChunkIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.chunkContent))
	for id := range s.chunkContent {
		ids = append(ids, id)
	}
	return ids
}

// GetChunkEmbedding returns a chunk's embedding by ID.
func (s *Store) GetChunkEmbedding(id string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emb, ok := s.chunkEmbedding[id]
	return emb, ok
}

// ChunkEmbeddings returns every chunk embedding currently stored, paired
// with its chunk ID, for tree building.
func (s *Store) ChunkEmbeddings() []tree.Embedding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tree.Embedding, 0, len(s.chunkEmbedding))
	for id, vec := range s.chunkEmbedding {
		out = append(out, tree.Embedding{ID: id, Vector: vec})
	}
	return out
}

// ChunkContents returns every chunk's ID and content currently stored.
func (s *Store) ChunkContents() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.chunkContent))
	for id, content := range s.chunkContent {
		out[id] = content
	}
	return out
}

// GetNode returns a tree node by ID.
func (s *Store) GetNode(id string) (*tree.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// RootID returns the current tree root, or "" if no tree has been built.
func (s *Store) RootID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootID
}

// IsAtCapacity reports whether either the chunk or node limit has been
// reached.
func (s *Store) IsAtCapacity() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunkContent) >= s.limits.MaxChunks || len(s.nodes) >= s.limits.MaxNodes
}

// ChunkCount returns the number of chunks currently stored.
func (s *Store) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunkContent)
}

// NodeCount returns the number of tree nodes currently stored.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Clear drops all chunks, embeddings, tree nodes, and file-tracking
// state, freeing the store for reuse or garbage collection of its
// backing maps.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkContent = make(map[string]string)
	s.chunkEmbedding = make(map[string][]float32)
	s.chunkPath = make(map[string]string)
	s.nodes = make(map[string]*tree.Node)
	s.rootID = ""
	s.indexedFiles = make(map[string]int64)
	s.projectPath = ""
	s.createdAt = 0
	s.indexingComplete = false
	s.ann = newANNGraph()
	s.annDirty = false
}

// MarkFileIndexed records the mtime a file was indexed at, for
// incremental-reindex skip decisions.
func (s *Store) MarkFileIndexed(path string, mtime int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexedFiles[path] = mtime
}

// IndexedMtime returns the mtime a file was last indexed at.
func (s *Store) IndexedMtime(path string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mtime, ok := s.indexedFiles[path]
	return mtime, ok
}

// ForgetFile drops a file's recorded mtime, so the next QuickIndex or
// BuildFull pass treats it as never indexed and re-chunks it. Used by
// a live file watcher to mark a changed file dirty between index runs.
func (s *Store) ForgetFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexedFiles, path)
}

// AllIndexedFiles returns a snapshot of every file's recorded mtime, for
// mirroring into a persisted bookkeeping store.
func (s *Store) AllIndexedFiles() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.indexedFiles))
	for path, mtime := range s.indexedFiles {
		out[path] = mtime
	}
	return out
}

// SetProjectMetadata records the project path and creation timestamp
// used to validate the on-disk cache.
func (s *Store) SetProjectMetadata(path string, createdAt int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectPath = path
	s.createdAt = createdAt
}

// ProjectMetadata returns the recorded project path and creation time.
func (s *Store) ProjectMetadata() (path string, createdAt int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectPath, s.createdAt
}

// SetIndexingComplete marks whether a full (embeddings + tree) index
// has finished building.
func (s *Store) SetIndexingComplete(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexingComplete = v
}

// IndexingComplete reports whether a full index has finished building.
func (s *Store) IndexingComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexingComplete
}

// SetModelIdentity records which embedding model and dimension produced
// this store's vectors, so a later cache load can detect a mismatch.
func (s *Store) SetModelIdentity(name string, dimension int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelName = name
	s.dimension = dimension
}

// ModelIdentity returns the recorded embedding model name and dimension.
func (s *Store) ModelIdentity() (name string, dimension int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelName, s.dimension
}

// HasFullIndex reports whether chunk embeddings exist and indexing has
// been marked complete - the signal that a loaded cache can be used
// as-is without rebuilding.
func (s *Store) HasFullIndex() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunkEmbedding) > 0 && s.indexingComplete
}

// HasQuickIndex reports whether chunk content has been read, regardless
// of whether embeddings/tree exist yet.
func (s *Store) HasQuickIndex() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunkContent) > 0
}
