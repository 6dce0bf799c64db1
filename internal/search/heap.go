package search

import "container/heap"

// candidate pairs a scored entry with everything needed to finish ranking
// after the per-worker heaps are merged.
type candidate struct {
	entryIdx int // index into the engine's snapshot slice
	score    Score
}

// boundedHeap keeps the k best candidates seen so far, evicting the
// current worst (smallest Total) when a better one arrives. Used per
// worker in Engine.Search's parallel scoring pass; the
// final cross-worker merge re-sorts with the full tie-break chain.
type boundedHeap struct {
	cap   int
	items []candidate
}

func newBoundedHeap(cap int) *boundedHeap {
	return &boundedHeap{cap: cap, items: make([]candidate, 0, cap)}
}

func (h *boundedHeap) Len() int { return len(h.items) }
func (h *boundedHeap) Less(i, j int) bool {
	return h.items[i].score.Total < h.items[j].score.Total
}
func (h *boundedHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *boundedHeap) Push(x any)    { h.items = append(h.items, x.(candidate)) }
func (h *boundedHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// Offer inserts c if the heap has room, or if c beats the current worst.
func (h *boundedHeap) Offer(c candidate) {
	if h.cap <= 0 {
		return
	}
	if h.Len() < h.cap {
		heap.Push(h, c)
		return
	}
	if h.Len() > 0 && c.score.Total > h.items[0].score.Total {
		heap.Pop(h)
		heap.Push(h, c)
	}
}
