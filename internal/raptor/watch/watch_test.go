package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DetectsFileWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(target, []byte("package a\n"), 0o644))

	w, err := New(dir, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(target, []byte("package a\n\nfunc Foo() {}\n"), 0o644))

	select {
	case path := <-w.Dirty():
		assert.Equal(t, target, path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dirty notification")
	}
}

func TestWatcher_IgnoresSkippedDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))

	w, err := New(dir, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, w.ignored(filepath.Join(dir, "node_modules", "x.js")))
	assert.False(t, w.ignored(filepath.Join(dir, "a.go")))
}
