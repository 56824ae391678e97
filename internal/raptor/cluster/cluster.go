// Package cluster implements the greedy single-pass cosine-threshold
// clustering RAPTOR uses to build each level of its tree.
package cluster

import "math"

// Item is a single vector to be clustered, addressed by an opaque ID
// (a chunk ID at level 0, a node ID at higher levels).
type Item struct {
	ID     string
	Vector []float32
}

// Cluster is the result of grouping a set of items: a running centroid
// and the IDs assigned to it, in assignment order.
type Cluster struct {
	Centroid []float32
	IDs      []string
}

// CosineSimilarity returns the cosine similarity of a and b, or 0 if
// either vector has zero magnitude. a and b must have equal length;
// callers are expected to only compare vectors from the same embedding
// space.
func CosineSimilarity(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Centroid returns the component-wise mean of vectors. It returns nil
// for an empty input.
func Centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	n := float64(len(vectors))
	centroid := make([]float32, dim)
	for i, s := range sum {
		centroid[i] = float32(s / n)
	}
	return centroid
}

// ByThreshold performs greedy single-pass clustering: items are visited
// in order and assigned to the first existing cluster whose centroid is
// at least threshold similar, recomputing that cluster's centroid over
// its full membership on each admission. An item that fits no cluster
// starts a new singleton cluster. The result is order-sensitive by
// design: different input orderings can produce different clusterings.
func ByThreshold(items []Item, threshold float32) []Cluster {
	var clusters []Cluster
	byID := make(map[string][]float32, len(items))
	for _, it := range items {
		byID[it.ID] = it.Vector
	}

	for _, it := range items {
		placed := false
		for ci := range clusters {
			sim := CosineSimilarity(clusters[ci].Centroid, it.Vector)
			if sim >= threshold {
				clusters[ci].IDs = append(clusters[ci].IDs, it.ID)
				members := make([][]float32, len(clusters[ci].IDs))
				for i, id := range clusters[ci].IDs {
					members[i] = byID[id]
				}
				clusters[ci].Centroid = Centroid(members)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, Cluster{
				Centroid: append([]float32(nil), it.Vector...),
				IDs:      []string{it.ID},
			})
		}
	}

	return clusters
}
