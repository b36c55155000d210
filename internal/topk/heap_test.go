package topk

import "testing"

func TestKeepsKSmallest(t *testing.T) {
	h := NewBoundedHeap(3)
	for _, c := range []Candidate{
		{ID: 0, Distance: 5},
		{ID: 1, Distance: 1},
		{ID: 2, Distance: 9},
		{ID: 3, Distance: 2},
		{ID: 4, Distance: 0.5},
	} {
		h.Push(c)
	}

	sorted := h.Sorted()
	if len(sorted) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(sorted))
	}
	wantIDs := []uint32{4, 1, 3}
	for i, c := range sorted {
		if c.ID != wantIDs[i] {
			t.Errorf("sorted[%d].ID = %d, want %d", i, c.ID, wantIDs[i])
		}
	}
}

func TestTieBreaksByLowerID(t *testing.T) {
	h := NewBoundedHeap(2)
	h.Push(Candidate{ID: 5, Distance: 1.0})
	h.Push(Candidate{ID: 2, Distance: 1.0})

	sorted := h.Sorted()
	if sorted[0].ID != 2 || sorted[1].ID != 5 {
		t.Fatalf("tie-break order wrong: %+v", sorted)
	}
}

func TestZeroK(t *testing.T) {
	h := NewBoundedHeap(0)
	h.Push(Candidate{ID: 1, Distance: 1})
	if h.Len() != 0 {
		t.Fatalf("expected 0 retained with k=0, got %d", h.Len())
	}
}

func TestFewerThanKCandidates(t *testing.T) {
	h := NewBoundedHeap(10)
	h.Push(Candidate{ID: 1, Distance: 2})
	h.Push(Candidate{ID: 2, Distance: 1})
	sorted := h.Sorted()
	if len(sorted) != 2 {
		t.Fatalf("expected 2, got %d", len(sorted))
	}
	if sorted[0].ID != 2 {
		t.Fatalf("expected id 2 first, got %d", sorted[0].ID)
	}
}
