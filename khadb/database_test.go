package khadb

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/xDarkicex/khadb/internal/distance"
	"github.com/xDarkicex/khadb/internal/khaderr"
)

func randVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rng.Float32()
	}
	return v
}

// TestLinearSearchOrdering exercises the S1-style scenario: no PQ, a
// handful of vectors, nearest neighbor first.
func TestLinearSearchOrdering(t *testing.T) {
	db, err := Open(2)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.Insert([]float32{0, 0}, "origin"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Insert([]float32{10, 10}, "far"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Insert([]float32{1, 1}, "near"); err != nil {
		t.Fatal(err)
	}
	if err := db.BuildIndex(context.Background()); err != nil {
		t.Fatal(err)
	}

	results, err := db.Search([]float32{0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != 0 || results[1].ID != 2 {
		t.Fatalf("unexpected order: %+v", results)
	}
	if results[0].Metadata != "origin" {
		t.Fatalf("metadata lost: %+v", results[0])
	}
}

func TestInsertDimensionMismatch(t *testing.T) {
	db, err := Open(3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Insert([]float32{1, 2}, nil); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	if _, err := Open(0); err == nil {
		t.Fatal("expected error for zero dimension")
	}
	if _, err := Open(8, WithProductQuantization(3, 4, 1)); err == nil {
		t.Fatal("expected error for subvectors not dividing dimension")
	}
}

func TestBuildIndexAndPQSearch(t *testing.T) {
	const dim = 8
	db, err := Open(dim, WithMetric(distance.Euclidean), WithProductQuantization(2, 4, 2))
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		if _, err := db.Insert(randVector(rng, dim), i); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.BuildIndex(context.Background()); err != nil {
		t.Fatal(err)
	}

	results, err := db.Search(randVector(rng, dim), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Fatalf("results not ascending: %+v", results)
		}
	}
}

// TestSearchBeforeBuildReturnsIndexNotBuilt exercises B1: a collection
// that has never had a successful BuildIndex call rejects Search with
// IndexNotBuilt rather than silently falling back to linear scan.
func TestSearchBeforeBuildReturnsIndexNotBuilt(t *testing.T) {
	db, err := Open(4, WithProductQuantization(2, 2, 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Insert([]float32{1, 2, 3, 4}, nil); err != nil {
		t.Fatal(err)
	}

	_, err = db.Search([]float32{1, 2, 3, 4}, 1)
	assertIndexNotBuilt(t, err)
}

// TestSearchAfterPostBuildInsertReturnsIndexNotBuilt exercises S6: an
// Insert that lands after a successful BuildIndex marks the index
// stale, so the next Search must fail with IndexNotBuilt until the
// caller rebuilds.
func TestSearchAfterPostBuildInsertReturnsIndexNotBuilt(t *testing.T) {
	db, err := Open(4, WithProductQuantization(2, 2, 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Insert([]float32{1, 2, 3, 4}, nil); err != nil {
		t.Fatal(err)
	}
	if err := db.BuildIndex(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Search([]float32{1, 2, 3, 4}, 1); err != nil {
		t.Fatalf("expected search to succeed right after build, got %v", err)
	}

	if _, err := db.Insert([]float32{4, 3, 2, 1}, nil); err != nil {
		t.Fatal(err)
	}

	_, err = db.Search([]float32{1, 2, 3, 4}, 1)
	assertIndexNotBuilt(t, err)
}

func assertIndexNotBuilt(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected IndexNotBuilt error")
	}
	kerr, ok := err.(*khaderr.Error)
	if !ok || kerr.Code != khaderr.CodeIndexNotBuilt {
		t.Fatalf("expected khaderr.ErrIndexNotBuilt, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	const dim = 6
	db, err := Open(dim, WithProductQuantization(2, 3, 2))
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		if _, err := db.Insert(randVector(rng, dim), nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.BuildIndex(context.Background()); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "db.khdy")
	if err := db.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Open(dim, WithProductQuantization(2, 3, 2))
	if err != nil {
		t.Fatal(err)
	}
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}

	if loaded.Len() != db.Len() {
		t.Fatalf("len mismatch: got %d, want %d", loaded.Len(), db.Len())
	}

	q := randVector(rng, dim)
	want, err := db.Search(q, 3)
	if err != nil {
		t.Fatal(err)
	}
	got, err := loaded.Search(q, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("result count mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("result %d id mismatch: got %d, want %d", i, got[i].ID, want[i].ID)
		}
	}
}

func TestBatchSearchPreservesOrderAndLength(t *testing.T) {
	db, err := Open(2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Insert([]float32{0, 0}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Insert([]float32{5, 5}, nil); err != nil {
		t.Fatal(err)
	}
	if err := db.BuildIndex(context.Background()); err != nil {
		t.Fatal(err)
	}

	queries := [][]float32{{0, 0}, {5, 5}, {2.5, 2.5}}
	results, err := db.BatchSearch(context.Background(), queries, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d result sets, want 3", len(results))
	}
	if results[0][0].ID != 0 {
		t.Fatalf("query 0 should match vector 0, got %d", results[0][0].ID)
	}
	if results[1][0].ID != 1 {
		t.Fatalf("query 1 should match vector 1, got %d", results[1][0].ID)
	}
}
