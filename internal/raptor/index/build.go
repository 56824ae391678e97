package index

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	rerrors "github.com/raptorlabs/raptor/internal/errors"
	"github.com/raptorlabs/raptor/internal/raptor/chunk"
	"github.com/raptorlabs/raptor/internal/raptor/tree"
)

// BuildFull embeds every chunk under path and clusters the result into a
// hierarchical tree, reusing chunks already populated by QuickIndex when
// present instead of re-reading files from disk. Grounded on the
// original's build_tree_with_progress: cache short-circuit, reuse of
// pre-chunked content, batched embedding, then bottom-up clustering.
func (d *Driver) BuildFull(ctx context.Context, path string, progressCh chan<- ProgressEvent) error {
	emit(progressCh, ProgressEvent{Stage: StageCache, Current: 0, Total: 1, Detail: "checking cache"})

	if d.store.HasFullIndex() && len(d.store.PendingEmbeddings()) == 0 {
		emit(progressCh, ProgressEvent{Stage: StageComplete, Current: 1, Total: 1, Detail: "loaded from cache"})
		return nil
	}

	if d.store.ChunkCount() == 0 {
		if _, err := d.readAndChunk(ctx, path, progressCh); err != nil {
			return err
		}
	}

	pending := d.store.PendingEmbeddings()
	emit(progressCh, ProgressEvent{
		Stage: StageReading, Current: len(pending), Total: len(pending),
		Detail: fmt.Sprintf("%d chunks pending embedding", len(pending)),
	})

	total := len(pending)
	if err := d.embedChunks(ctx, pending, total, progressCh); err != nil {
		return err
	}

	emit(progressCh, ProgressEvent{Stage: StageClustering, Current: 0, Total: total, Detail: "building hierarchy"})

	embeddings := d.store.ChunkEmbeddings()
	if len(embeddings) == 0 {
		return rerrors.NewRaptorError(rerrors.ErrCodeRaptorEmptyIndex, "no embeddings to cluster", nil)
	}

	result, err := tree.Build(ctx, embeddings, tree.BuildOptions{
		Threshold:       d.opts.ClusterThreshold,
		RetryMultiplier: d.opts.RetryMultiplier,
	})
	if err != nil {
		return rerrors.NewRaptorError(rerrors.ErrCodeRaptorCancelled, "tree build cancelled", err)
	}

	d.store.SetTree(result.Nodes, result.RootID)
	d.store.SetModelIdentity(d.embedder.ModelName(), d.embedder.Dimensions())
	d.store.SetIndexingComplete(true)
	d.store.SetProjectMetadata(path, time.Now().Unix())

	emit(progressCh, ProgressEvent{
		Stage: StageComplete, Current: 1, Total: 1,
		Detail: fmt.Sprintf("index ready: %d chunks", len(embeddings)),
	})
	return nil
}

// readAndChunk scans path, reads each indexable file not already marked
// with an up-to-date mtime, and chunks it into the store. Used when
// BuildFull is invoked without a prior QuickIndex pass.
func (d *Driver) readAndChunk(ctx context.Context, path string, progressCh chan<- ProgressEvent) (map[string]string, error) {
	files, err := discoverFiles(ctx, d.scanner, path)
	if err != nil {
		return nil, rerrors.NewRaptorError(rerrors.ErrCodeRaptorPathNotFound, "scan project path", err)
	}

	var toRead []int
	for i, f := range files {
		mtime := f.ModTime.Unix()
		cached, wasIndexed := d.store.IndexedMtime(f.AbsPath)
		if wasIndexed && cached >= mtime {
			continue
		}
		if wasIndexed {
			d.store.RemoveChunksForFile(f.AbsPath)
			d.store.SetIndexingComplete(false)
		}
		toRead = append(toRead, i)
	}

	emit(progressCh, ProgressEvent{
		Stage: StageScanning, Current: 0, Total: len(toRead),
		Detail: fmt.Sprintf("%d files to index (%d already cached)", len(toRead), len(files)-len(toRead)),
	})

	chunkTexts := make(map[string]string)
	for n, idx := range toRead {
		select {
		case <-ctx.Done():
			return nil, rerrors.NewRaptorError(rerrors.ErrCodeRaptorCancelled, "indexing cancelled", ctx.Err())
		default:
		}

		f := files[idx]
		emit(progressCh, ProgressEvent{Stage: StageReading, Current: n + 1, Total: len(toRead), Detail: f.Path})

		text, err := os.ReadFile(f.AbsPath)
		if err != nil {
			continue
		}
		for _, c := range chunk.Chunk(string(text), d.opts.MaxChars, d.opts.OverlapChars) {
			id := "chunk_" + uuid.NewString()
			if !d.store.InsertChunk(id, c, f.AbsPath) {
				break
			}
			chunkTexts[id] = c
		}
		d.store.MarkFileIndexed(f.AbsPath, f.ModTime.Unix())
	}

	return chunkTexts, nil
}

// embedChunks embeds chunkTexts in batches of d.opts.EmbedBatchSize,
// running up to d.opts.MaxConcurrentEmbedBatches batches concurrently
// (bounded by a weighted semaphore, grounded on the teacher's
// errgroup+channel-semaphore fan-out in internal/search/multi_query.go)
// and storing each batch's results as soon as it completes so memory is
// freed progressively rather than held until the very end.
func (d *Driver) embedChunks(ctx context.Context, chunkTexts map[string]string, total int, progressCh chan<- ProgressEvent) error {
	ids := make([]string, 0, len(chunkTexts))
	texts := make([]string, 0, len(chunkTexts))
	for id, text := range chunkTexts {
		ids = append(ids, id)
		texts = append(texts, text)
	}

	batchSize := d.opts.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = DefaultOptions().EmbedBatchSize
	}
	maxConcurrent := d.opts.MaxConcurrentEmbedBatches
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultOptions().MaxConcurrentEmbedBatches
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(maxConcurrent))
	var done atomic.Int64

	for i := 0; i < len(ids); i += batchSize {
		i := i
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}

		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			vectors, err := d.embedder.EmbedBatch(gctx, texts[i:end])
			if err != nil {
				return rerrors.NewRaptorError(rerrors.ErrCodeRaptorEmbeddingFailed, "embed chunk batch", err)
			}
			for j, vec := range vectors {
				d.store.InsertChunkEmbedding(ids[i+j], vec)
			}

			n := done.Add(int64(end - i))
			emit(progressCh, ProgressEvent{Stage: StageEmbedding, Current: int(n), Total: total, Detail: fmt.Sprintf("%d/%d", n, total)})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if rerr, ok := err.(*rerrors.RaptorError); ok {
			return rerr
		}
		return rerrors.NewRaptorError(rerrors.ErrCodeRaptorCancelled, "embedding cancelled", err)
	}
	return nil
}
