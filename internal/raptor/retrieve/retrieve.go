// Package retrieve implements the RAPTOR query path: chunk-level
// hierarchical descent (or a flat-scan fallback with no tree) as the
// default query(), plus a richer summary-then-chunk-expansion mode for
// callers that want the coarse node-level hits too.
package retrieve

import (
	"context"

	"golang.org/x/sync/errgroup"

	rerrors "github.com/raptorlabs/raptor/internal/errors"
	"github.com/raptorlabs/raptor/internal/raptor/embed"
	"github.com/raptorlabs/raptor/internal/raptor/keyword"
	"github.com/raptorlabs/raptor/internal/raptor/store"
)

// Hit is a single scored result paired with its underlying text. FilePath
// is the source file the chunk was read from, empty for chunks with no
// recorded path (e.g. a node summary spanning chunks from several files).
type Hit struct {
	ID       string
	Score    float32
	Text     string
	FilePath string
}

// Retriever answers queries against a Store using an Embedder to embed
// the query text once per call.
type Retriever struct {
	embedder embed.Embedder
	store    *store.Store
	keyword  *keyword.Index
}

// New creates a Retriever over store using embedder for query encoding.
// A Bleve keyword index is created alongside it but stays empty until
// RebuildKeywordIndex is called; until then chunk-level queries fall
// back to vector-only ranking.
func New(embedder embed.Embedder, s *store.Store) *Retriever {
	kw, _ := keyword.New()
	return &Retriever{embedder: embedder, store: s, keyword: kw}
}

// RebuildKeywordIndex re-indexes the current chunk set for lexical
// search. Call after a full index build or load, since chunk content is
// otherwise frozen at construction time.
func (r *Retriever) RebuildKeywordIndex(ctx context.Context) error {
	if r.keyword == nil {
		return nil
	}
	return r.keyword.Rebuild(ctx, r.store.ChunkContents())
}

// Retrieve implements query(): the default chunk-level search over the
// store, descending the tree top-down from the root when one exists
// (QueryTreeHierarchical) and falling back to a flat scan over every
// chunk embedding otherwise. Returns chunk ids, never node ids.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Hit, error) {
	if r.store.ChunkCount() == 0 {
		return nil, rerrors.NewRaptorError(rerrors.ErrCodeRaptorEmptyIndex, "no chunks indexed", nil)
	}

	qEmb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return scoredToHits(r.store, r.store.QueryTopKChunks(qEmb, topK), topK), nil
}

// RetrieveWithContext returns top-k summary-node hits plus, when the
// best summary hit scores below chunkThreshold, up to expandK
// chunk-level fallback hits. A confident top summary skips the chunk
// search entirely, matching the original's "skip chunk search if
// confident" short-circuit.
func (r *Retriever) RetrieveWithContext(ctx context.Context, query string, topK, expandK int, chunkThreshold float32) (summaries []Hit, chunks []Hit, err error) {
	if r.store.ChunkCount() == 0 {
		return nil, nil, rerrors.NewRaptorError(rerrors.ErrCodeRaptorEmptyIndex, "no chunks indexed", nil)
	}

	qEmb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	summaries = r.retrieveSummaryNodes(qEmb, topK)
	if len(summaries) > 0 && summaries[0].Score >= chunkThreshold {
		return summaries, nil, nil
	}

	chunks, err = r.retrieveChunksFused(ctx, query, qEmb, expandK)
	if err != nil {
		return nil, nil, err
	}
	return summaries, chunks, nil
}

// retrieveSummaryNodes scores every tree node's centroid against qEmb,
// pairing each with the concatenation of its leaf chunk text (this
// design has no separate LLM-generated summary, so a node's "summary"
// is its leaves' content).
func (r *Retriever) retrieveSummaryNodes(qEmb []float32, topK int) []Hit {
	scored := r.store.QueryTopKNodes(qEmb, topK)
	hits := make([]Hit, 0, len(scored))
	for _, s := range scored {
		node, ok := r.store.GetNode(s.ID)
		if !ok {
			continue
		}
		var path string
		if len(node.ChunkIDs) == 1 {
			path, _ = r.store.ChunkPath(node.ChunkIDs[0])
		}
		hits = append(hits, Hit{ID: s.ID, Score: s.Score, Text: r.nodeText(node.ChunkIDs), FilePath: path})
	}
	return hits
}

func (r *Retriever) nodeText(chunkIDs []string) string {
	var text string
	for i, id := range chunkIDs {
		content, ok := r.store.GetChunk(id)
		if !ok {
			continue
		}
		if i > 0 {
			text += "\n"
		}
		text += content
	}
	return text
}

// retrieveChunksFused runs the vector chunk search and the keyword
// (BM25) search concurrently and combines them with Reciprocal Rank
// Fusion, so a query containing an exact literal or identifier still
// surfaces the chunk that names it verbatim even when its embedding
// alone would rank it below expandK. Mirrors the teacher's hybrid
// FusionSearcher (pkg/searcher/fusion.go), applied to RAPTOR's
// chunk-level fallback rather than a flat document index.
func (r *Retriever) retrieveChunksFused(ctx context.Context, query string, qEmb []float32, expandK int) ([]Hit, error) {
	fetchLimit := expandK * 2
	if fetchLimit < 20 {
		fetchLimit = 20
	}

	var vectorScored []store.ScoredID
	var bm25Results []keyword.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vectorScored = r.store.QueryTopKChunks(qEmb, fetchLimit)
		return nil
	})
	g.Go(func() error {
		res, err := r.keyword.Search(gctx, query, fetchLimit)
		if err != nil {
			return nil // lexical search is best-effort; vector ranking still applies
		}
		bm25Results = res
		return nil
	})
	_ = g.Wait()

	vectorIDs := make([]string, len(vectorScored))
	vectorScore := make(map[string]float32, len(vectorScored))
	for i, s := range vectorScored {
		vectorIDs[i] = s.ID
		vectorScore[s.ID] = s.Score
	}

	if len(bm25Results) == 0 {
		return scoredToHits(r.store, vectorScored, expandK), nil
	}

	fused := keyword.Fuse(vectorIDs, bm25Results, keyword.DefaultFuseConfig())
	if len(fused) > expandK {
		fused = fused[:expandK]
	}

	hits := make([]Hit, 0, len(fused))
	for _, f := range fused {
		content, ok := r.store.GetChunk(f.ID)
		if !ok {
			continue
		}
		score := vectorScore[f.ID]
		if score == 0 {
			score = float32(f.Score)
		}
		path, _ := r.store.ChunkPath(f.ID)
		hits = append(hits, Hit{ID: f.ID, Score: score, Text: content, FilePath: path})
	}
	return hits, nil
}

func scoredToHits(s *store.Store, scored []store.ScoredID, limit int) []Hit {
	if len(scored) > limit {
		scored = scored[:limit]
	}
	hits := make([]Hit, 0, len(scored))
	for _, sc := range scored {
		content, ok := s.GetChunk(sc.ID)
		if !ok {
			continue
		}
		path, _ := s.ChunkPath(sc.ID)
		hits = append(hits, Hit{ID: sc.ID, Score: sc.Score, Text: content, FilePath: path})
	}
	return hits
}
