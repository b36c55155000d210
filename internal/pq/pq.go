// Package pq implements Product Quantization: M independent
// per-subspace codebooks of up to 256 centroids each, vector encode/decode,
// and the precomputed lookup table that makes per-query asymmetric
// distance computation a sum of table loads rather than floating
// point arithmetic in the hot loop.
package pq

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/xDarkicex/khadb/internal/distance"
	"github.com/xDarkicex/khadb/internal/kmeans"
)

const centroidsPerCodebook = 256

// Codec holds the M trained codebooks plus the subspace geometry
// derived from dimension and M at training time. Immutable once
// Train succeeds; Train may only be called once per Codec (CORE
// SPEC: "Immutable once trained").
type Codec struct {
	dimension int
	subspaces int // M
	subDim    int // D/M
	codebooks [][][]float32 // [subspace][centroid][subDim]

	trainIterations int // total Lloyd iterations across all M codebook trainings
}

// New constructs an untrained codec for the given dimension and
// subspace count. dimension must be divisible by subspaces; the façade
// config validation rejects a bad pair as a user error before this is
// reached, so New treats a violation as a programmer error and panics.
func New(dimension, subspaces int) *Codec {
	if dimension%subspaces != 0 {
		panic(fmt.Sprintf("pq: dimension %d not divisible by subspaces %d", dimension, subspaces))
	}
	return &Codec{
		dimension: dimension,
		subspaces: subspaces,
		subDim:    dimension / subspaces,
	}
}

// Dimension, Subspaces, SubDim expose the codec's geometry for callers
// that need to size buffers (the query executor's LUT, the storage
// layer's on-disk layout).
func (c *Codec) Dimension() int { return c.dimension }
func (c *Codec) Subspaces() int { return c.subspaces }
func (c *Codec) SubDim() int    { return c.subDim }

// Train runs k-means (k=256, k-means++ init) independently on each of
// the M subspace slices of the training vectors. With fewer than 256
// training vectors, k is the training-set size instead, so each
// codebook then holds fewer than 256 centroids; such a training set is
// not rejected. rng is threaded
// through to the k-means trainer explicitly — Train never touches the
// global math/rand source, so a fixed seed reproduces an identical
// codec.
func (c *Codec) Train(ctx context.Context, vectors [][]float32, rng *rand.Rand) error {
	if len(vectors) == 0 {
		panic("pq: empty training set")
	}
	for i, v := range vectors {
		if len(v) != c.dimension {
			return fmt.Errorf("pq: training vector %d has dimension %d, want %d", i, len(v), c.dimension)
		}
	}

	codebooks := make([][][]float32, c.subspaces)
	for s := 0; s < c.subspaces; s++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sub := make([][]float32, len(vectors))
		start := s * c.subDim
		end := start + c.subDim
		for i, v := range vectors {
			sub[i] = v[start:end]
		}

		k := centroidsPerCodebook
		if k > len(sub) {
			k = len(sub)
		}
		res, err := kmeans.Train(ctx, sub, kmeans.DefaultConfig(k), rng)
		if err != nil {
			return fmt.Errorf("pq: training codebook %d: %w", s, err)
		}
		codebooks[s] = res.Centroids
		c.trainIterations += res.Iterations
	}

	c.codebooks = codebooks
	return nil
}

// TrainIterations reports the total number of Lloyd iterations run
// across all M codebook trainings in the last Train call.
func (c *Codec) TrainIterations() int { return c.trainIterations }

// Trained reports whether Train has completed successfully.
func (c *Codec) Trained() bool {
	return c.codebooks != nil
}

// Codebooks exposes the trained [subspace][centroid][subDim] table for
// persistence (internal/storage serializes it verbatim).
func (c *Codec) Codebooks() [][][]float32 {
	return c.codebooks
}

// FromCodebooks reconstructs an already-trained Codec from
// previously-persisted codebooks, for Database.Load. The subspace
// count is inferred from len(codebooks) rather than re-validated
// against dimension divisibility, since a codebook set that round-trips
// through storage.Save was valid when it was trained.
func FromCodebooks(dimension int, codebooks [][][]float32) *Codec {
	subspaces := len(codebooks)
	return &Codec{
		dimension: dimension,
		subspaces: subspaces,
		subDim:    dimension / subspaces,
		codebooks: codebooks,
	}
}

// Encode quantizes a full-dimension vector into an M-byte code: byte
// j is the index of the codebook-j centroid nearest the vector's j-th
// subvector under squared L2.
func (c *Codec) Encode(v []float32) []byte {
	if !c.Trained() {
		panic("pq: codec not trained")
	}
	if len(v) != c.dimension {
		panic(fmt.Sprintf("pq: vector dimension %d, want %d", len(v), c.dimension))
	}

	code := make([]byte, c.subspaces)
	for s := 0; s < c.subspaces; s++ {
		start := s * c.subDim
		sub := v[start : start+c.subDim]
		code[s] = byte(nearestCentroid(sub, c.codebooks[s]))
	}
	return code
}

// Decode reconstructs a lossy approximation of the original vector by
// concatenating the code's chosen centroids.
func (c *Codec) Decode(code []byte) []float32 {
	if !c.Trained() {
		panic("pq: codec not trained")
	}
	if len(code) != c.subspaces {
		panic(fmt.Sprintf("pq: code length %d, want %d", len(code), c.subspaces))
	}

	v := make([]float32, c.dimension)
	for s := 0; s < c.subspaces; s++ {
		centroid := c.codebooks[s][code[s]]
		copy(v[s*c.subDim:(s+1)*c.subDim], centroid)
	}
	return v
}

// AsymmetricDistance computes the true (unquantized-query) distance
// to a code: √Σ_j ‖query_subvec_j − codebook_j[code[j]]‖². This is
// always an L2-based quantity regardless of the collection's
// configured metric — the spec inherits this from its source and
// flags it as Open Question O1; callers selecting Cosine or
// DotProduct as their primary metric still get an L2 approximation
// whenever PQ scoring is in play.
func (c *Codec) AsymmetricDistance(query []float32, code []byte) float32 {
	if !c.Trained() {
		panic("pq: codec not trained")
	}
	if len(query) != c.dimension {
		panic(fmt.Sprintf("pq: query dimension %d, want %d", len(query), c.dimension))
	}

	var sum float32
	for s := 0; s < c.subspaces; s++ {
		start := s * c.subDim
		sub := query[start : start+c.subDim]
		centroid := c.codebooks[s][code[s]]
		sum += distance.SquaredEuclideanFunc(sub, centroid)
	}
	return float32(math.Sqrt(float64(sum)))
}

// LUT is the M×256 table of squared per-subspace distances from one
// query's subvectors to every centroid in the corresponding codebook.
// table[j][c] is already squared, so summing across subspaces for a
// given code and then taking one final square root reproduces
// AsymmetricDistance exactly (spec invariant P5): the table holds the
// same intermediate values AsymmetricDistance computes, just
// memoized across all 256 centroids instead of one.
type LUT struct {
	codec *Codec
	table [][]float32 // [subspace][centroid]
}

// PrecomputeLUT materializes a LUT for query, amortizing the M×256
// squared-distance computation across every candidate scored against
// this query — the core query-time primitive (§4.3).
func (c *Codec) PrecomputeLUT(query []float32) *LUT {
	if !c.Trained() {
		panic("pq: codec not trained")
	}
	if len(query) != c.dimension {
		panic(fmt.Sprintf("pq: query dimension %d, want %d", len(query), c.dimension))
	}

	table := make([][]float32, c.subspaces)
	for s := 0; s < c.subspaces; s++ {
		start := s * c.subDim
		sub := query[start : start+c.subDim]
		row := make([]float32, len(c.codebooks[s]))
		for ci, centroid := range c.codebooks[s] {
			row[ci] = distance.SquaredEuclideanFunc(sub, centroid)
		}
		table[s] = row
	}
	return &LUT{codec: c, table: table}
}

// SquaredDistance sums the precomputed table entries for code — one
// load and one add per subspace, no multiplications in the hot loop.
func (l *LUT) SquaredDistance(code []byte) float32 {
	var sum float32
	for s, c := range code {
		sum += l.table[s][c]
	}
	return sum
}

// Distance returns √SquaredDistance(code), the same asymmetric
// distance AsymmetricDistance would compute for the query this LUT
// was built from.
func (l *LUT) Distance(code []byte) float32 {
	return float32(math.Sqrt(float64(l.SquaredDistance(code))))
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := distance.SquaredEuclideanFunc(v, centroids[0])
	for i := 1; i < len(centroids); i++ {
		d := distance.SquaredEuclideanFunc(v, centroids[i])
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}
