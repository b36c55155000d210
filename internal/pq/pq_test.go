package pq

import (
	"context"
	"math"
	"math/rand"
	"testing"
)

func trainingSet(n, dim int) [][]float32 {
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

func TestEncodeIdempotence(t *testing.T) {
	const dim, m = 16, 4
	codec := New(dim, m)
	rng := rand.New(rand.NewSource(1))
	if err := codec.Train(context.Background(), trainingSet(300, dim), rng); err != nil {
		t.Fatal(err)
	}

	v := trainingSet(1, dim)[0]
	code1 := codec.Encode(v)
	decoded := codec.Decode(code1)
	code2 := codec.Encode(decoded)

	for i := range code1 {
		if code1[i] != code2[i] {
			t.Fatalf("encode(decode(encode(v))) != encode(v) at subspace %d: %d vs %d", i, code1[i], code2[i])
		}
	}
}

func TestLUTMatchesAsymmetricDistance(t *testing.T) {
	const dim, m = 16, 4
	codec := New(dim, m)
	rng := rand.New(rand.NewSource(2))
	vectors := trainingSet(300, dim)
	if err := codec.Train(context.Background(), vectors, rng); err != nil {
		t.Fatal(err)
	}

	query := vectors[0]
	lut := codec.PrecomputeLUT(query)

	for i := 1; i < 10; i++ {
		code := codec.Encode(vectors[i])
		want := codec.AsymmetricDistance(query, code)
		got := lut.Distance(code)
		if math.Abs(float64(want-got)) > 1e-4 {
			t.Errorf("LUT distance %v != AsymmetricDistance %v for vector %d", got, want, i)
		}
		// P5: the squared forms must match via the exact same ops.
		wantSq := want * want
		gotSq := lut.SquaredDistance(code)
		if math.Abs(float64(wantSq-gotSq)) > 1e-3 {
			t.Errorf("squared distance mismatch at %d: %v vs %v", i, wantSq, gotSq)
		}
	}
}

func TestCodebookShape(t *testing.T) {
	const dim, m = 8, 2
	codec := New(dim, m)
	rng := rand.New(rand.NewSource(3))
	if err := codec.Train(context.Background(), trainingSet(600, dim), rng); err != nil {
		t.Fatal(err)
	}
	for s, cb := range codec.codebooks {
		if len(cb) != centroidsPerCodebook {
			t.Errorf("codebook %d has %d centroids, want %d", s, len(cb), centroidsPerCodebook)
		}
		for _, centroid := range cb {
			if len(centroid) != dim/m {
				t.Errorf("centroid length %d, want %d", len(centroid), dim/m)
			}
		}
	}
}

func TestDimensionMustDivideSubspaces(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-divisible dimension")
		}
	}()
	New(10, 3)
}
