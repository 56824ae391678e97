package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raptorlabs/raptor/internal/raptor/memtier"
)

func TestSnapshotRoundTrip_PreservesState(t *testing.T) {
	limits := memtier.Limits{MaxChunks: 100, MaxNodes: 100}
	s := New(limits)
	s.InsertChunk("c1", "hello world", "/repo/a.go")
	s.InsertChunkEmbedding("c1", []float32{1, 2, 3})
	s.SetProjectMetadata("/tmp/project", 42)
	s.SetIndexingComplete(true)
	s.SetModelIdentity("static", 256)

	snap := s.ToSnapshot()
	restored := FromSnapshot(snap, limits)

	content, ok := restored.GetChunk("c1")
	require.True(t, ok)
	assert.Equal(t, "hello world", content)

	path, ok := restored.ChunkPath("c1")
	require.True(t, ok)
	assert.Equal(t, "/repo/a.go", path)

	path, createdAt := restored.ProjectMetadata()
	assert.Equal(t, "/tmp/project", path)
	assert.Equal(t, int64(42), createdAt)
	assert.True(t, restored.IndexingComplete())

	name, dim := restored.ModelIdentity()
	assert.Equal(t, "static", name)
	assert.Equal(t, 256, dim)
}
