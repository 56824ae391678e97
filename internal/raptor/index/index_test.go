package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raptorlabs/raptor/internal/raptor/embed"
	"github.com/raptorlabs/raptor/internal/raptor/memtier"
	"github.com/raptorlabs/raptor/internal/raptor/store"
	"github.com/raptorlabs/raptor/internal/scanner"
)

func newTestDriver(t *testing.T, s *store.Store, opts Options) *Driver {
	t.Helper()
	sc, err := scanner.New()
	require.NoError(t, err)
	return New(s, embed.NewDefaultEmbedder(), sc, opts)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestQuickIndex_EmptyDir_ReturnsZero(t *testing.T) {
	dir := t.TempDir()
	s := store.New(memtier.Limits{MaxChunks: 1000, MaxNodes: 1000})
	d := newTestDriver(t, s, DefaultOptions())

	count, err := d.QuickIndex(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestQuickIndex_IndexesIndexableFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, dir, "notes.txt", "some project notes here")
	writeFile(t, dir, "image.png", "not indexable")

	s := store.New(memtier.Limits{MaxChunks: 1000, MaxNodes: 1000})
	d := newTestDriver(t, s, DefaultOptions())

	count, err := d.QuickIndex(context.Background(), dir)
	require.NoError(t, err)
	assert.Greater(t, count, 0)
	assert.True(t, s.HasQuickIndex())
}

func TestQuickIndex_SkipsFilesAlreadyIndexedAtMtime(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")

	s := store.New(memtier.Limits{MaxChunks: 1000, MaxNodes: 1000})
	d := newTestDriver(t, s, DefaultOptions())

	_, err := d.QuickIndex(context.Background(), dir)
	require.NoError(t, err)
	firstCount := s.ChunkCount()

	count, err := d.QuickIndex(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, firstCount, s.ChunkCount())
}

func TestBuildFull_ProducesTreeAndMarksComplete(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n\nfunc Foo() int { return 1 }\n")
	writeFile(t, dir, "b.go", "package a\n\nfunc Bar() int { return 2 }\n")

	s := store.New(memtier.Limits{MaxChunks: 1000, MaxNodes: 1000})
	d := newTestDriver(t, s, DefaultOptions())

	progressCh := make(chan ProgressEvent, 100)
	err := d.BuildFull(context.Background(), dir, progressCh)
	require.NoError(t, err)

	assert.True(t, s.HasFullIndex())
	assert.NotEmpty(t, s.RootID())

	var sawComplete bool
	close(progressCh)
	for ev := range progressCh {
		if ev.Stage == StageComplete {
			sawComplete = true
		}
	}
	assert.True(t, sawComplete)
}

func TestBuildFull_ReusesQuickIndexChunks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n\nfunc Foo() int { return 1 }\n")

	s := store.New(memtier.Limits{MaxChunks: 1000, MaxNodes: 1000})
	d := newTestDriver(t, s, DefaultOptions())

	_, err := d.QuickIndex(context.Background(), dir)
	require.NoError(t, err)
	quickCount := s.ChunkCount()
	require.Greater(t, quickCount, 0)

	err = d.BuildFull(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, quickCount, s.ChunkCount())
	assert.True(t, s.HasFullIndex())
}

func TestBuildFull_CachedIndexShortCircuits(t *testing.T) {
	dir := t.TempDir()
	s := store.New(memtier.Limits{MaxChunks: 1000, MaxNodes: 1000})
	s.InsertChunk("c1", "content", "")
	s.InsertChunkEmbedding("c1", []float32{1, 2, 3})
	s.SetIndexingComplete(true)

	d := newTestDriver(t, s, DefaultOptions())
	progressCh := make(chan ProgressEvent, 10)
	err := d.BuildFull(context.Background(), dir, progressCh)
	require.NoError(t, err)

	assert.Empty(t, s.RootID(), "cached short-circuit should not build a tree")
}

func TestQuickIndex_ChangedFile_RemovesStaleChunksAndReembeds(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.go")
	writeFile(t, dir, "a.go", "package a\n\nfunc Foo() int { return 1 }\n")

	s := store.New(memtier.Limits{MaxChunks: 1000, MaxNodes: 1000})
	d := newTestDriver(t, s, DefaultOptions())

	require.NoError(t, d.BuildFull(context.Background(), dir, nil))
	require.True(t, s.HasFullIndex())

	oldIDs := s.ChunkIDs()
	require.NotEmpty(t, oldIDs)

	writeFile(t, dir, "a.go", "package a\n\nfunc Quux() int { return 99 }\n")
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(target, future, future))

	count, err := d.QuickIndex(context.Background(), dir)
	require.NoError(t, err)
	assert.Greater(t, count, 0)

	for _, id := range oldIDs {
		_, ok := s.GetChunk(id)
		assert.False(t, ok, "stale chunks from the old file content must be removed on re-chunk")
	}
	assert.False(t, s.HasFullIndex(), "indexing_complete must be false while new chunks await embedding")
	assert.Len(t, s.PendingEmbeddings(), count, "newly inserted chunks must be pending embedding")

	require.NoError(t, d.BuildFull(context.Background(), dir, nil))
	assert.True(t, s.HasFullIndex())
	assert.Empty(t, s.PendingEmbeddings())
}

func TestBuildFull_CancelledContext_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")

	s := store.New(memtier.Limits{MaxChunks: 1000, MaxNodes: 1000})
	d := newTestDriver(t, s, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.BuildFull(ctx, dir, nil)
	require.Error(t, err)
}
