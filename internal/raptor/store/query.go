package store

import (
	"sort"

	"github.com/raptorlabs/raptor/internal/raptor/cluster"
)

// childFanout bounds how many of a node's children are explored per
// level during hierarchical descent, keeping the search sublinear in
// tree width even for a wide cluster.
const childFanout = 3

// QueryTopKChunksFlat scores stored chunk embeddings against qEmb and
// returns the top-k by cosine similarity. Below hnswThreshold chunks
// this is an exact brute-force scan; above it, an approximate
// coder/hnsw graph search takes over to keep queries sublinear.
func (s *Store) QueryTopKChunksFlat(qEmb []float32, topK int) []ScoredID {
	if hits, ok := s.queryANN(qEmb, topK); ok {
		return hits
	}

	s.mu.RLock()
	ids := make([]string, 0, len(s.chunkEmbedding))
	vectors := make([][]float32, 0, len(s.chunkEmbedding))
	for id, v := range s.chunkEmbedding {
		ids = append(ids, id)
		vectors = append(vectors, v)
	}
	s.mu.RUnlock()

	scored := topKIndices(func(yield func(index int, score float32)) {
		for i, v := range vectors {
			yield(i, cluster.CosineSimilarity(qEmb, v))
		}
	}, topK)

	return materialize(scored, ids)
}

// QueryTreeHierarchical navigates the tree top-down from rootID,
// exploring the childFanout most-similar children at each level and
// collecting leaf chunk hits, until at least topK*3 candidates have
// been gathered or the frontier is exhausted. It trades exactness for
// speed versus a flat scan, matching the tradeoff the Rust original
// makes for large stores.
func (s *Store) QueryTreeHierarchical(qEmb []float32, rootID string, topK int) []ScoredID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []ScoredID
	frontier := []string{rootID}

	for len(frontier) > 0 && len(candidates) < topK*3 {
		currentID := frontier[0]
		frontier = frontier[1:]

		node, ok := s.nodes[currentID]
		if !ok {
			continue
		}

		for _, chunkID := range node.ChunkIDs {
			if emb, ok := s.chunkEmbedding[chunkID]; ok {
				candidates = append(candidates, ScoredID{
					ID:    chunkID,
					Score: cluster.CosineSimilarity(qEmb, emb),
				})
			}
		}

		if len(node.Children) == 0 {
			continue
		}

		type childSim struct {
			id    string
			score float32
		}
		sims := make([]childSim, 0, len(node.Children))
		for _, childID := range node.Children {
			if child, ok := s.nodes[childID]; ok {
				sims = append(sims, childSim{id: childID, score: cluster.CosineSimilarity(qEmb, child.Centroid)})
			}
		}
		sort.Slice(sims, func(i, j int) bool { return sims[i].score > sims[j].score })

		for i := 0; i < len(sims) && i < childFanout; i++ {
			frontier = append(frontier, sims[i].id)
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// QueryTopKChunks dispatches to hierarchical tree search if a root
// exists, otherwise falls back to a flat scan.
func (s *Store) QueryTopKChunks(qEmb []float32, topK int) []ScoredID {
	root := s.RootID()
	if root != "" {
		return s.QueryTreeHierarchical(qEmb, root, topK)
	}
	return s.QueryTopKChunksFlat(qEmb, topK)
}

// QueryTopKNodes scores every tree node's centroid against qEmb and
// returns the top-k - the "summary" search path for a design with no
// separate text-summary embeddings, since a node's centroid already
// stands in for the semantic content beneath it.
func (s *Store) QueryTopKNodes(qEmb []float32, topK int) []ScoredID {
	s.mu.RLock()
	ids := make([]string, 0, len(s.nodes))
	vectors := make([][]float32, 0, len(s.nodes))
	for id, n := range s.nodes {
		ids = append(ids, id)
		vectors = append(vectors, n.Centroid)
	}
	s.mu.RUnlock()

	scored := topKIndices(func(yield func(index int, score float32)) {
		for i, v := range vectors {
			yield(i, cluster.CosineSimilarity(qEmb, v))
		}
	}, topK)

	return materialize(scored, ids)
}

func materialize(scored []scoredIndex, ids []string) []ScoredID {
	out := make([]ScoredID, len(scored))
	for i, s := range scored {
		out[i] = ScoredID{ID: ids[s.index], Score: s.score}
	}
	return out
}
