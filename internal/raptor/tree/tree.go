// Package tree builds the RAPTOR hierarchy bottom-up from chunk
// embeddings by repeatedly clustering one level into the next until a
// single root remains.
package tree

import (
	"context"

	"github.com/google/uuid"

	"github.com/raptorlabs/raptor/internal/raptor/cluster"
)

// Node is one node of the hierarchy: a leaf wraps a single chunk, an
// internal node wraps the clustered children beneath it. Centroid is the
// node's own embedding for top-down similarity descent (a leaf's
// centroid is its chunk's embedding).
type Node struct {
	ID       string
	ParentID string
	Children []string
	ChunkIDs []string
	Centroid []float32
	Level    int
}

// NewLeaf creates a level-0 node wrapping a single chunk.
func NewLeaf(id string, chunkID string, embedding []float32) *Node {
	return &Node{
		ID:       id,
		ChunkIDs: []string{chunkID},
		Centroid: embedding,
		Level:    0,
	}
}

// NewInternal creates a node summarizing a cluster of children at the
// given level.
func NewInternal(id string, children []string, centroid []float32, level int) *Node {
	return &Node{
		ID:       id,
		Children: children,
		Centroid: centroid,
		Level:    level,
	}
}

// Embedding pairs an opaque ID (chunk or node) with its vector.
type Embedding struct {
	ID     string
	Vector []float32
}

// BuildOptions configures one hierarchy build.
type BuildOptions struct {
	// Threshold is the cosine similarity required to admit an item into
	// an existing cluster.
	Threshold float32

	// RetryMultiplier scales Threshold for a single retry pass when a
	// clustering round fails to reduce node count (the force-merge
	// divergence: retry once at a looser threshold before giving up and
	// merging everything into one node). 0 disables the retry.
	RetryMultiplier float32
}

// DefaultRetryMultiplier retries a stalled clustering round at 90% of
// the configured threshold before falling back to a force merge.
const DefaultRetryMultiplier = 0.9

// Result is the output of a hierarchy build: every node by ID, plus the
// root ID (empty if the input was empty).
type Result struct {
	Nodes  map[string]*Node
	RootID string
}

// Build constructs the hierarchy for a set of leaf (chunk) embeddings.
// It clusters level 0 into level 1, level 1 into level 2, and so on
// until one node remains, yielding at each step from the caller's
// context between levels so a long build can be cancelled cooperatively.
func Build(ctx context.Context, embeddings []Embedding, opts BuildOptions) (Result, error) {
	if len(embeddings) == 0 {
		return Result{Nodes: map[string]*Node{}}, nil
	}

	nodes := make(map[string]*Node, len(embeddings)*2)
	currentLevel := make([]cluster.Item, 0, len(embeddings))

	for _, e := range embeddings {
		nodeID := "node_" + uuid.NewString()
		nodes[nodeID] = NewLeaf(nodeID, e.ID, e.Vector)
		currentLevel = append(currentLevel, cluster.Item{ID: nodeID, Vector: e.Vector})
	}

	level := 0
	for len(currentLevel) > 1 {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		level++

		clusters := cluster.ByThreshold(currentLevel, opts.Threshold)
		if noReduction(clusters, currentLevel) && opts.RetryMultiplier > 0 {
			clusters = cluster.ByThreshold(currentLevel, opts.Threshold*opts.RetryMultiplier)
		}

		if noReduction(clusters, currentLevel) {
			rootID := "node_" + uuid.NewString()
			vectors := make([][]float32, len(currentLevel))
			children := make([]string, len(currentLevel))
			for i, item := range currentLevel {
				vectors[i] = item.Vector
				children[i] = item.ID
			}
			centroid := cluster.Centroid(vectors)
			nodes[rootID] = NewInternal(rootID, children, centroid, level)
			currentLevel = []cluster.Item{{ID: rootID, Vector: centroid}}
			break
		}

		nextLevel := make([]cluster.Item, 0, len(clusters))
		for _, c := range clusters {
			parentID := "node_" + uuid.NewString()
			nodes[parentID] = NewInternal(parentID, c.IDs, c.Centroid, level)
			nextLevel = append(nextLevel, cluster.Item{ID: parentID, Vector: c.Centroid})
		}
		currentLevel = nextLevel
	}

	for _, node := range nodes {
		for _, childID := range node.Children {
			if child, ok := nodes[childID]; ok {
				child.ParentID = node.ID
			}
		}
	}

	return Result{Nodes: nodes, RootID: currentLevel[0].ID}, nil
}

// noReduction reports whether clustering a level produced no fewer
// groups than items going in - the signal that forces a retry or
// force-merge instead of looping forever.
func noReduction(clusters []cluster.Cluster, level []cluster.Item) bool {
	return len(clusters) == 0 || len(clusters) == len(level)
}
