package store

import (
	"math"
	"sort"

	"github.com/coder/hnsw"
)

// hnswThreshold is the chunk count above which QueryTopKChunksFlat
// switches from an exact brute-force scan to an approximate coder/hnsw
// graph search, matching the teacher's own HNSWStore tradeoff of
// recall for query speed once a project's chunk set grows large.
// Below this, exactness matters more than the constant-factor savings
// an ANN index would buy.
const hnswThreshold = 2000

// hnswEfSearch is coder/hnsw's search-breadth parameter.
const hnswEfSearch = 64

func newANNGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	g.EfSearch = hnswEfSearch
	return g
}

// queryANN rebuilds the approximate index from the current chunk
// embeddings when it has drifted since the last query, then searches
// it. ok is false when the store is too small to bother, in which case
// the caller should fall back to a brute-force scan.
func (s *Store) queryANN(qEmb []float32, topK int) (hits []ScoredID, ok bool) {
	s.mu.Lock()
	if len(s.chunkEmbedding) < hnswThreshold {
		s.mu.Unlock()
		return nil, false
	}
	if s.annDirty {
		s.ann = newANNGraph()
		for id, vec := range s.chunkEmbedding {
			s.ann.Add(hnsw.MakeNode(id, normalizedCopy(vec)))
		}
		s.annDirty = false
	}
	graph := s.ann
	s.mu.Unlock()

	q := normalizedCopy(qEmb)
	nodes := graph.Search(q, topK)
	out := make([]ScoredID, 0, len(nodes))
	for _, n := range nodes {
		dist := graph.Distance(q, n.Value)
		out = append(out, ScoredID{ID: n.Key, Score: 1 - dist/2})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, true
}

// normalizedCopy returns a unit-length copy of v, since coder/hnsw's
// cosine distance assumes pre-normalized inputs.
func normalizedCopy(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	var sumSquares float64
	for _, x := range out {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sumSquares))
	for i := range out {
		out[i] *= inv
	}
	return out
}
