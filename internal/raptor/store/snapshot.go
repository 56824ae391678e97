package store

import (
	"github.com/raptorlabs/raptor/internal/raptor/memtier"
	"github.com/raptorlabs/raptor/internal/raptor/tree"
)

// Snapshot is the gob-encodable image of a Store, used by the on-disk
// cache. All fields are exported so encoding/gob can see them, matching
// the teacher's internal/store/hnsw.go metadata persistence pattern.
type Snapshot struct {
	ChunkContent   map[string]string
	ChunkEmbedding map[string][]float32
	ChunkPath      map[string]string
	Nodes          map[string]*tree.Node
	RootID         string
	IndexedFiles   map[string]int64

	ProjectPath string
	CreatedAt   int64

	IndexingComplete bool

	ModelName string
	Dimension int
}

// ToSnapshot copies the store's state into a Snapshot suitable for
// gob-encoding to disk.
func (s *Store) ToSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunkContent := make(map[string]string, len(s.chunkContent))
	for k, v := range s.chunkContent {
		chunkContent[k] = v
	}
	chunkEmbedding := make(map[string][]float32, len(s.chunkEmbedding))
	for k, v := range s.chunkEmbedding {
		chunkEmbedding[k] = v
	}
	chunkPath := make(map[string]string, len(s.chunkPath))
	for k, v := range s.chunkPath {
		chunkPath[k] = v
	}
	nodes := make(map[string]*tree.Node, len(s.nodes))
	for k, v := range s.nodes {
		nodes[k] = v
	}
	indexedFiles := make(map[string]int64, len(s.indexedFiles))
	for k, v := range s.indexedFiles {
		indexedFiles[k] = v
	}

	return Snapshot{
		ChunkContent:     chunkContent,
		ChunkEmbedding:   chunkEmbedding,
		ChunkPath:        chunkPath,
		Nodes:            nodes,
		RootID:           s.rootID,
		IndexedFiles:     indexedFiles,
		ProjectPath:      s.projectPath,
		CreatedAt:        s.createdAt,
		IndexingComplete: s.indexingComplete,
		ModelName:        s.modelName,
		Dimension:        s.dimension,
	}
}

// FromSnapshot builds a Store from a previously saved Snapshot. The
// snapshot's maps are used as-is and are not trimmed to limits, so a
// snapshot taken under a higher memory tier keeps all of its entries;
// limits only bound inserts made after loading.
func FromSnapshot(snap Snapshot, limits memtier.Limits) *Store {
	s := New(limits)
	if snap.ChunkContent != nil {
		s.chunkContent = snap.ChunkContent
	}
	if snap.ChunkEmbedding != nil {
		s.chunkEmbedding = snap.ChunkEmbedding
	}
	if snap.ChunkPath != nil {
		s.chunkPath = snap.ChunkPath
	}
	if snap.Nodes != nil {
		s.nodes = snap.Nodes
	}
	if snap.IndexedFiles != nil {
		s.indexedFiles = snap.IndexedFiles
	}
	s.rootID = snap.RootID
	s.projectPath = snap.ProjectPath
	s.createdAt = snap.CreatedAt
	s.indexingComplete = snap.IndexingComplete
	s.modelName = snap.ModelName
	s.dimension = snap.Dimension
	return s
}
