// Package watch complements the indexing driver's mtime-based
// incremental skip with a live fsnotify watcher: a changed file is
// marked dirty the moment it's written, rather than waiting for the
// next QuickIndex/BuildFull pass to notice its mtime moved. Grounded on
// the teacher's internal/watcher.HybridWatcher, scaled down to the one
// thing RAPTOR's driver needs - a debounced stream of changed absolute
// paths - instead of the teacher's full create/modify/delete/rename
// event taxonomy.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/raptorlabs/raptor/internal/gitignore"
)

// DefaultDebounce coalesces bursts of writes to the same file (editors
// that save via a temp-file-plus-rename often fire several events per
// save) into a single dirty notification.
const DefaultDebounce = 200 * time.Millisecond

// ignoredDirs mirrors the indexing driver's own skip-dir set; a watcher
// event under one of these is never worth a reindex.
var ignoredDirs = []string{
	".git", "node_modules", "target", "dist", "build", "__pycache__",
	".venv", "venv", ".cache", ".next", "vendor", ".raptor",
}

// Watcher watches a project root recursively and reports changed files
// on Dirty, debounced by window.
type Watcher struct {
	fsw       *fsnotify.Watcher
	gitignore *gitignore.Matcher
	root      string
	window    time.Duration

	dirty chan string

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a Watcher rooted at path. Call Start to begin watching.
func New(path string, window time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		window = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, err
	}

	m := gitignore.New()
	m.AddFromFile(filepath.Join(abs, ".gitignore"), abs)

	return &Watcher{
		fsw:       fsw,
		gitignore: m,
		root:      abs,
		window:    window,
		dirty:     make(chan string, 256),
		pending:   make(map[string]*time.Timer),
	}, nil
}

// Dirty returns the channel of debounced, changed absolute file paths.
// Closed once Start's context is cancelled.
func (w *Watcher) Dirty() <-chan string {
	return w.dirty
}

// Start begins watching w's root recursively until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go func() {
		defer close(w.dirty)
		defer w.fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.handle(ev)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				slog.Warn("raptor: watch error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	if w.ignored(ev.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[ev.Name]; ok {
		t.Stop()
	}
	path := ev.Name
	w.pending[ev.Name] = time.AfterFunc(w.window, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.dirty <- path:
		default:
		}
	})
}

func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	for _, part := range splitPath(rel) {
		for _, d := range ignoredDirs {
			if part == d {
				return true
			}
		}
	}
	return w.gitignore.Match(rel, false)
}

func splitPath(path string) []string {
	var parts []string
	for {
		dir, file := filepath.Split(filepath.Clean(path))
		if file != "" {
			parts = append([]string{file}, parts...)
		}
		if dir == "" || dir == path {
			break
		}
		path = filepath.Clean(dir)
		if path == "." || path == string(filepath.Separator) {
			break
		}
	}
	return parts
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			slog.Warn("raptor: failed to watch directory", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}
