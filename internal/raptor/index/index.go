// Package index drives RAPTOR indexing end to end: a fast chunk-only
// quick index for immediate keyword-style availability, and a slower
// background build that embeds every chunk and clusters it into a
// hierarchical tree. Grounded on the original's quick_index_sync and
// build_tree_with_progress, reusing the teacher's gitignore-aware
// Scanner instead of a second bespoke file walker.
package index

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	rerrors "github.com/raptorlabs/raptor/internal/errors"
	"github.com/raptorlabs/raptor/internal/raptor/chunk"
	"github.com/raptorlabs/raptor/internal/raptor/embed"
	"github.com/raptorlabs/raptor/internal/raptor/store"
	"github.com/raptorlabs/raptor/internal/raptor/tree"
	"github.com/raptorlabs/raptor/internal/scanner"
)

// Options configures a single indexing run.
type Options struct {
	MaxChars                  int
	OverlapChars              int
	ClusterThreshold          float32
	RetryMultiplier           float32
	EmbedBatchSize            int
	MaxConcurrentEmbedBatches int
}

// DefaultOptions mirrors the teacher's RaptorConfig defaults.
func DefaultOptions() Options {
	return Options{
		MaxChars:                  chunk.DefaultMaxChars,
		OverlapChars:              chunk.DefaultOverlapChars,
		ClusterThreshold:          0.75,
		RetryMultiplier:           tree.DefaultRetryMultiplier,
		EmbedBatchSize:            64,
		MaxConcurrentEmbedBatches: 4,
	}
}

// Stage names a phase of a Driver.BuildFull run, matching the original's
// RaptorBuildProgress stage strings.
type Stage string

const (
	StageCache      Stage = "cache"
	StageScanning   Stage = "scanning"
	StageReading    Stage = "reading"
	StageEmbedding  Stage = "embedding"
	StageClustering Stage = "clustering"
	StageComplete   Stage = "complete"
)

// ProgressEvent reports a single step of an indexing run. Drivers push
// these onto a caller-provided buffered channel; a full channel drops
// the event rather than blocking the indexing goroutine (progress
// reporting must never slow down indexing itself).
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Detail  string
}

func emit(ch chan<- ProgressEvent, ev ProgressEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

// Driver orchestrates chunking, embedding, and tree building against a
// single Store.
type Driver struct {
	store    *store.Store
	embedder embed.Embedder
	scanner  *scanner.Scanner
	opts     Options
}

// New creates a Driver over s using embedder for vectorization.
func New(s *store.Store, embedder embed.Embedder, sc *scanner.Scanner, opts Options) *Driver {
	return &Driver{store: s, embedder: embedder, scanner: sc, opts: opts}
}

// QuickIndex reads every indexable file under path into the store as
// unembedded chunks, skipping files already indexed at their current
// mtime. It returns the number of chunks newly inserted. This is the
// fast path meant to make keyword-level context available before the
// slower embedding/clustering build finishes.
func (d *Driver) QuickIndex(ctx context.Context, path string) (int, error) {
	files, err := discoverFiles(ctx, d.scanner, path)
	if err != nil {
		return 0, rerrors.NewRaptorError(rerrors.ErrCodeRaptorPathNotFound, "scan project path", err)
	}

	total := 0
	for _, f := range files {
		select {
		case <-ctx.Done():
			return total, rerrors.NewRaptorError(rerrors.ErrCodeRaptorCancelled, "quick index cancelled", ctx.Err())
		default:
		}

		mtime := f.ModTime.Unix()
		cached, wasIndexed := d.store.IndexedMtime(f.AbsPath)
		if wasIndexed && cached >= mtime {
			continue
		}
		if wasIndexed {
			d.store.RemoveChunksForFile(f.AbsPath)
			d.store.SetIndexingComplete(false)
		}

		text, err := os.ReadFile(f.AbsPath)
		if err != nil {
			continue
		}

		for _, c := range chunk.Chunk(string(text), d.opts.MaxChars, d.opts.OverlapChars) {
			id := "chunk_" + uuid.NewString()
			if !d.store.InsertChunk(id, c, f.AbsPath) {
				break
			}
			total++
		}
		d.store.MarkFileIndexed(f.AbsPath, mtime)
	}

	d.store.SetProjectMetadata(path, time.Now().Unix())
	return total, nil
}
