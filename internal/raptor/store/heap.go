package store

import "container/heap"

// scoredIndex pairs a similarity score with an index into a caller-owned
// ID slice, so a bounded top-k scan never clones a string until the
// final result is materialized.
type scoredIndex struct {
	score float32
	index int
}

// minIndexHeap is a min-heap of scoredIndex ordered by score, used to
// keep only the k highest-scoring entries while scanning a much larger
// candidate set.
type minIndexHeap []scoredIndex

func (h minIndexHeap) Len() int            { return len(h) }
func (h minIndexHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h minIndexHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minIndexHeap) Push(x interface{}) { *h = append(*h, x.(scoredIndex)) }
func (h *minIndexHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topKIndices scans scores, keeping only the k highest via a bounded
// min-heap, and returns them sorted by descending score.
func topKIndices(scores func(yield func(index int, score float32)), k int) []scoredIndex {
	if k <= 0 {
		return nil
	}
	h := &minIndexHeap{}
	heap.Init(h)

	scores(func(index int, score float32) {
		heap.Push(h, scoredIndex{score: score, index: index})
		if h.Len() > k {
			heap.Pop(h)
		}
	})

	result := make([]scoredIndex, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(scoredIndex)
	}
	return result
}
