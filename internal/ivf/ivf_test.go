package ivf

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/xDarkicex/khadb/internal/distance"
)

func syntheticVectors(n, dim int) [][]float32 {
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(math.Sin(float64(i + j)))
		}
		vecs[i] = v
	}
	return vecs
}

func TestPostingListsPartitionIDSpace(t *testing.T) {
	vecs := syntheticVectors(200, 16)
	idx := New(16, 10)
	rng := rand.New(rand.NewSource(5))
	if err := idx.Train(context.Background(), vecs, rng); err != nil {
		t.Fatal(err)
	}

	stats := idx.Stats()
	if stats.TotalVectors != len(vecs) {
		t.Fatalf("total vectors in postings = %d, want %d", stats.TotalVectors, len(vecs))
	}

	seen := make(map[uint32]bool)
	all := idx.Gather(allClusters(idx.NumClusters()))
	for _, id := range all {
		if seen[id] {
			t.Fatalf("id %d appears in more than one posting list", id)
		}
		seen[id] = true
		if int(id) >= len(vecs) {
			t.Fatalf("id %d out of range [0,%d)", id, len(vecs))
		}
	}
	if len(seen) != len(vecs) {
		t.Fatalf("union of posting lists has %d ids, want %d", len(seen), len(vecs))
	}
}

func allClusters(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestProbeClampedToNumClusters(t *testing.T) {
	vecs := syntheticVectors(50, 8)
	idx := New(8, 5)
	rng := rand.New(rand.NewSource(9))
	if err := idx.Train(context.Background(), vecs, rng); err != nil {
		t.Fatal(err)
	}

	idx.SetNumProbe(100)
	if idx.NumProbe() != 5 {
		t.Fatalf("NumProbe = %d, want clamped to 5", idx.NumProbe())
	}

	idx.SetNumProbe(0)
	if idx.NumProbe() != 1 {
		t.Fatalf("NumProbe = %d, want clamped to 1", idx.NumProbe())
	}
}

func TestProbeAscendingByDistance(t *testing.T) {
	vecs := syntheticVectors(100, 8)
	idx := New(8, 8)
	rng := rand.New(rand.NewSource(11))
	if err := idx.Train(context.Background(), vecs, rng); err != nil {
		t.Fatal(err)
	}
	idx.SetNumProbe(idx.NumClusters())

	probed := idx.Probe(vecs[0])
	if len(probed) != idx.NumClusters() {
		t.Fatalf("expected all %d clusters probed, got %d", idx.NumClusters(), len(probed))
	}
	centroids := idx.Centroids()
	for i := 1; i < len(probed); i++ {
		prev := distance.EuclideanFunc(vecs[0], centroids[probed[i-1]])
		cur := distance.EuclideanFunc(vecs[0], centroids[probed[i]])
		if cur < prev {
			t.Fatalf("probe order not ascending at %d: %v after %v", i, cur, prev)
		}
	}
}
