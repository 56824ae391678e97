// Package keyword provides a BM25 lexical pre-filter over chunk text,
// used alongside vector similarity so a query containing an exact
// identifier or literal (a function name, an error string) scores chunks
// that mention it even when the embedding alone would rank it low.
// Grounded on the teacher's internal/store.BleveBM25Index, trimmed to an
// in-memory index rebuilt from the current chunk set rather than a
// disk-persisted, incrementally-updated one.
package keyword

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// Result is a single BM25 match.
type Result struct {
	ID    string
	Score float64
}

// Index is an in-memory Bleve index over chunk content, keyed by chunk
// ID. Safe for concurrent Search calls; Rebuild takes an exclusive lock.
type Index struct {
	mu    sync.RWMutex
	bleve bleve.Index
}

type document struct {
	Content string `json:"content"`
}

// New creates an empty keyword index. Call Rebuild before Search.
func New() (*Index, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &Index{bleve: idx}, nil
}

// Rebuild replaces the index contents with chunks, keyed by chunk ID.
// Called whenever the underlying chunk set changes; Bleve has no cheap
// in-place "replace everything" operation, so a fresh in-memory index is
// built and swapped in.
func (ix *Index) Rebuild(ctx context.Context, chunks map[string]string) error {
	mapping := bleve.NewIndexMapping()
	fresh, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return fmt.Errorf("rebuild keyword index: %w", err)
	}

	batch := fresh.NewBatch()
	for id, content := range chunks {
		if strings.TrimSpace(content) == "" {
			continue
		}
		if err := batch.Index(id, document{Content: content}); err != nil {
			return fmt.Errorf("index chunk %s: %w", id, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		return fmt.Errorf("commit keyword batch: %w", err)
	}

	ix.mu.Lock()
	old := ix.bleve
	ix.bleve = fresh
	ix.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Search returns the top-limit chunk IDs whose content best matches
// query under BM25 scoring. Returns an empty result for a blank query
// rather than erroring, since callers run this unconditionally
// alongside a vector search.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	ix.mu.RLock()
	idx := ix.bleve
	ix.mu.RUnlock()
	if idx == nil {
		return nil, nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, Result{ID: hit.ID, Score: hit.Score})
	}
	return out, nil
}

// Close releases the underlying index.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.bleve == nil {
		return nil
	}
	return ix.bleve.Close()
}
