// Package topk implements the bounded top-k candidate selector the
// query executor uses to reduce a scored candidate set down to the k
// nearest, breaking distance ties by lower id for determinism.
//
// Adapted from the teacher's internal/util/heap.go MinHeap/MaxHeap
// pair: that package exposed two separate unbounded heaps and left
// tie-breaking and the bounded-by-k eviction policy to the caller.
// This package folds both into a single BoundedHeap, since every
// caller in this engine wants exactly "keep the k smallest, evict the
// current worst when a better candidate arrives" — the one query-time
// use case spec §4.5 names.
package topk

import "container/heap"

// Candidate is a scored search result: a vector id and its distance
// from the query.
type Candidate struct {
	ID       uint32
	Distance float32
}

// less defines the ordering used throughout: smaller distance wins;
// ties break by lower id, matching spec §4.5 ("ties break by lower id
// for determinism").
func less(a, b Candidate) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// BoundedHeap retains the k best (smallest-distance) candidates seen
// across any number of Push calls, implemented as a max-heap on the
// retained set so the current worst kept candidate is always at the
// root and can be evicted in O(log k) when a better one arrives.
type BoundedHeap struct {
	k     int
	items []Candidate
}

// NewBoundedHeap creates a heap that retains at most k candidates.
func NewBoundedHeap(k int) *BoundedHeap {
	return &BoundedHeap{k: k, items: make([]Candidate, 0, k)}
}

// Push offers a candidate. If the heap has fewer than k items, it's
// kept unconditionally; otherwise it replaces the current worst kept
// candidate only if it is strictly better.
func (h *BoundedHeap) Push(c Candidate) {
	if len(h.items) < h.k {
		heap.Push((*maxHeapView)(h), c)
		return
	}
	if h.k == 0 {
		return
	}
	worst := h.items[0]
	if less(c, worst) {
		h.items[0] = c
		heap.Fix((*maxHeapView)(h), 0)
	}
}

// Sorted drains the heap into ascending-by-distance order (ties by
// lower id), the ordering spec §4.5 step 6 requires of search results.
func (h *BoundedHeap) Sorted() []Candidate {
	out := make([]Candidate, len(h.items))
	copy(out, h.items)
	// Simple insertion sort is fine: k is small (the query's requested
	// result count), never the candidate-set size.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Len reports how many candidates are currently retained.
func (h *BoundedHeap) Len() int { return len(h.items) }

// maxHeapView adapts BoundedHeap to container/heap.Interface with
// "worst kept candidate first" ordering (the inverse of less), so the
// root is always the eviction candidate.
type maxHeapView BoundedHeap

func (v *maxHeapView) Len() int { return len(v.items) }
func (v *maxHeapView) Less(i, j int) bool {
	// Inverted: the heap root should be the *worst* retained
	// candidate, i.e. the one that sorts last under less().
	return less(v.items[j], v.items[i])
}
func (v *maxHeapView) Swap(i, j int) { v.items[i], v.items[j] = v.items[j], v.items[i] }
func (v *maxHeapView) Push(x interface{}) {
	v.items = append(v.items, x.(Candidate))
}
func (v *maxHeapView) Pop() interface{} {
	old := v.items
	n := len(old)
	item := old[n-1]
	v.items = old[:n-1]
	return item
}
