package keyword

import "sort"

// FuseConfig weights the two ranked lists combined by Fuse. Mirrors the
// teacher's Reciprocal Rank Fusion constants (pkg/searcher.FusionConfig).
type FuseConfig struct {
	VectorWeight float64
	BM25Weight   float64
	RRFConstant  int
}

// DefaultFuseConfig matches the teacher's default hybrid weighting.
func DefaultFuseConfig() FuseConfig {
	return FuseConfig{VectorWeight: 0.6, BM25Weight: 0.4, RRFConstant: 60}
}

// Fused is one ID's combined rank-fusion score.
type Fused struct {
	ID    string
	Score float64
}

// Fuse combines two ranked ID lists (best first) via Reciprocal Rank
// Fusion: score(d) = sum(weight_i / (k + rank_i)), rank 1-indexed. An ID
// present in both lists accumulates both contributions.
func Fuse(vector []string, bm25 []Result, cfg FuseConfig) []Fused {
	scores := make(map[string]float64, len(vector)+len(bm25))

	for rank, id := range vector {
		scores[id] += cfg.VectorWeight / float64(cfg.RRFConstant+rank+1)
	}
	for rank, r := range bm25 {
		scores[r.ID] += cfg.BM25Weight / float64(cfg.RRFConstant+rank+1)
	}

	out := make([]Fused, 0, len(scores))
	for id, score := range scores {
		out = append(out, Fused{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
