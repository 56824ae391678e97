package raptor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestEngine_Index_BuildsFullIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n\nfunc Foo() int { return 1 }\n")
	writeFile(t, dir, "b.go", "package a\n\nfunc Bar() int { return 2 }\n")

	eng, err := New()
	require.NoError(t, err)

	require.NoError(t, eng.Index(context.Background(), dir))

	stats := eng.Stats()
	assert.True(t, stats.HasQuickIdx)
	assert.True(t, stats.HasFullIdx)
	assert.Greater(t, stats.ChunkCount, 0)
}

func TestEngine_Query_ReturnsHits(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n\nfunc Foo() int { return 1 }\n")

	eng, err := New()
	require.NoError(t, err)
	require.NoError(t, eng.Index(context.Background(), dir))

	hits, err := eng.Query(context.Background(), "Foo", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestEngine_WithCacheDir_SavesAndReloadsAcrossInstances(t *testing.T) {
	projectDir := t.TempDir()
	writeFile(t, projectDir, "a.go", "package a\n\nfunc Foo() int { return 1 }\n")
	cacheDir := t.TempDir()

	eng1, err := New(WithCacheDir(cacheDir))
	require.NoError(t, err)
	require.NoError(t, eng1.Index(context.Background(), projectDir))

	path := filepath.Join(cacheDir)
	entries, err := os.ReadDir(path)
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "expected a cache file to be written")

	eng2, err := New(WithCacheDir(cacheDir))
	require.NoError(t, err)
	require.NoError(t, eng2.Index(context.Background(), projectDir))

	stats := eng2.Stats()
	assert.True(t, stats.HasFullIdx)
}

func TestEngine_Clear_ResetsStats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n\nfunc Foo() int { return 1 }\n")

	eng, err := New()
	require.NoError(t, err)
	require.NoError(t, eng.Index(context.Background(), dir))

	eng.Clear()
	stats := eng.Stats()
	assert.Equal(t, 0, stats.ChunkCount)
	assert.False(t, stats.HasFullIdx)
}

func TestEngine_StartWatching_MarksChangedFileDirty(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.go")
	writeFile(t, dir, "a.go", "package a\n\nfunc Foo() int { return 1 }\n")

	eng, err := New()
	require.NoError(t, err)
	require.NoError(t, eng.Index(context.Background(), dir))

	_, ok := eng.store.IndexedMtime(target)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop, err := eng.StartWatching(ctx, dir)
	require.NoError(t, err)
	defer stop()

	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "a.go", "package a\n\nfunc Foo() int { return 2 }\n")

	require.Eventually(t, func() bool {
		_, ok := eng.store.IndexedMtime(target)
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestEngine_Index_Twice_ReembedsChangedFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.go")
	writeFile(t, dir, "a.go", "package a\n\nfunc Foo() int { return 1 }\n")

	eng, err := New()
	require.NoError(t, err)
	require.NoError(t, eng.Index(context.Background(), dir))

	hits, err := eng.Query(context.Background(), "Foo", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.NotContains(t, hits[0].Text, "Quux")

	writeFile(t, dir, "a.go", "package a\n\nfunc Quux() int { return 99 }\n")
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(target, future, future))

	require.NoError(t, eng.Index(context.Background(), dir))

	stats := eng.Stats()
	assert.True(t, stats.HasFullIdx)

	hits, err = eng.Query(context.Background(), "Quux", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	var found bool
	for _, h := range hits {
		if strings.Contains(h.Text, "Quux") {
			found = true
		}
	}
	assert.True(t, found, "expected the re-indexed file's new content to be embedded and retrievable")
}

func TestStats_Report_ContainsCounts(t *testing.T) {
	s := Stats{ChunkCount: 5, NodeCount: 2, HasQuickIdx: true, HasFullIdx: true, PreloadState: "ready"}
	report := s.Report()
	assert.Contains(t, report, "5 chunks")
	assert.Contains(t, report, "2 nodes")
}
