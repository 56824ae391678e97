package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity_IdenticalVectors_NearOne(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	assert.Greater(t, CosineSimilarity(a, b), float32(0.9))
}

func TestCosineSimilarity_OrthogonalVectors_NearZero(t *testing.T) {
	a := []float32{1, 0, 0}
	c := []float32{0, 1, 0}
	assert.Less(t, CosineSimilarity(a, c), float32(0.1))
}

func TestCosineSimilarity_ZeroVector_ReturnsZero(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	assert.Equal(t, float32(0), CosineSimilarity(a, b))
}

func TestCentroid_EmptyInput_ReturnsNil(t *testing.T) {
	assert.Nil(t, Centroid(nil))
}

func TestCentroid_AveragesComponentwise(t *testing.T) {
	vectors := [][]float32{{1, 1}, {3, 3}}
	got := Centroid(vectors)
	require.Len(t, got, 2)
	assert.InDelta(t, 2.0, got[0], 1e-6)
	assert.InDelta(t, 2.0, got[1], 1e-6)
}

func TestByThreshold_SimilarItemsJoinSameCluster(t *testing.T) {
	items := []Item{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0.99, 0.01}},
		{ID: "c", Vector: []float32{0, 1}},
	}
	clusters := ByThreshold(items, 0.9)
	require.Len(t, clusters, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, clusters[0].IDs)
	assert.ElementsMatch(t, []string{"c"}, clusters[1].IDs)
}

func TestByThreshold_HighThreshold_EverySingleton(t *testing.T) {
	items := []Item{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
	}
	clusters := ByThreshold(items, 0.999)
	assert.Len(t, clusters, 2)
}

func TestByThreshold_LowThreshold_SingleCluster(t *testing.T) {
	items := []Item{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
		{ID: "c", Vector: []float32{1, 1}},
	}
	clusters := ByThreshold(items, -1)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].IDs, 3)
}

func TestByThreshold_EmptyInput_ReturnsNil(t *testing.T) {
	assert.Nil(t, ByThreshold(nil, 0.5))
}
