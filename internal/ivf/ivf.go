// Package ivf implements the Inverted File coarse partitioner: k-means
// training of C coarse centroids, posting-list assignment, and the
// nearest-p-centroid probe the query executor uses to restrict
// scoring to a handful of clusters.
package ivf

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/xDarkicex/khadb/internal/distance"
	"github.com/xDarkicex/khadb/internal/kmeans"
)

// Index holds the trained coarse centroids and posting lists. All
// fields but NumProbe are immutable once Train succeeds.
type Index struct {
	dimension   int
	numClusters int
	centroids   [][]float32
	postings    [][]uint32 // [cluster] -> vector ids
	numProbe    int

	trainIterations int
}

// New constructs an untrained index for the given dimension and
// cluster count.
func New(dimension, numClusters int) *Index {
	return &Index{dimension: dimension, numClusters: numClusters, numProbe: 1}
}

// Trained reports whether Train has completed successfully.
func (idx *Index) Trained() bool {
	return idx.centroids != nil
}

func (idx *Index) NumClusters() int { return idx.numClusters }

// Centroids exposes the trained coarse centroids for persistence.
func (idx *Index) Centroids() [][]float32 { return idx.centroids }

// Postings exposes the trained posting lists for persistence.
func (idx *Index) Postings() [][]uint32 { return idx.postings }

// FromTrained reconstructs an already-trained Index from previously
// persisted centroids and posting lists, for Database.Load.
func FromTrained(dimension int, centroids [][]float32, postings [][]uint32, numProbe int) *Index {
	idx := &Index{
		dimension:   dimension,
		numClusters: len(centroids),
		centroids:   centroids,
		postings:    postings,
	}
	idx.SetNumProbe(numProbe)
	return idx
}

// NumProbe returns the current probe width.
func (idx *Index) NumProbe() int { return idx.numProbe }

// SetNumProbe updates the probe width, clamped to [1, numClusters]
// (spec B4). Safe to call any time after Train; it never touches the
// trained centroids/postings.
func (idx *Index) SetNumProbe(p int) {
	if p < 1 {
		p = 1
	}
	if p > idx.numClusters {
		p = idx.numClusters
	}
	idx.numProbe = p
}

// Train runs k-means (k=numClusters, or len(vectors) when there are
// fewer vectors than clusters, in which case numClusters is lowered to
// match) over the full-dimension vectors and assigns every vector to
// its nearest centroid's posting list.
// vectors[i] is understood to have id uint32(i).
func (idx *Index) Train(ctx context.Context, vectors [][]float32, rng *rand.Rand) error {
	if len(vectors) == 0 {
		return fmt.Errorf("ivf: cannot train on empty vector set")
	}
	for i, v := range vectors {
		if len(v) != idx.dimension {
			return fmt.Errorf("ivf: vector %d has dimension %d, want %d", i, len(v), idx.dimension)
		}
	}

	k := idx.numClusters
	if k > len(vectors) {
		k = len(vectors)
	}

	res, err := kmeans.Train(ctx, vectors, kmeans.DefaultConfig(k), rng)
	if err != nil {
		return fmt.Errorf("ivf: training coarse centroids: %w", err)
	}

	idx.numClusters = k
	idx.centroids = res.Centroids
	idx.trainIterations = res.Iterations
	idx.postings = make([][]uint32, k)
	for id, cluster := range res.Assignments {
		idx.postings[cluster] = append(idx.postings[cluster], uint32(id))
	}

	idx.SetNumProbe(idx.numProbe)
	return nil
}

// TrainIterations reports the number of Lloyd iterations run during
// the last Train call.
func (idx *Index) TrainIterations() int { return idx.trainIterations }

// clusterDist pairs a cluster id with its distance from a query, used
// only while sorting the probe set.
type clusterDist struct {
	id   int
	dist float32
}

// Probe returns the numProbe nearest cluster ids, ascending by
// distance, ties broken by lower cluster id for determinism (spec
// §4.4).
func (idx *Index) Probe(query []float32) []int {
	if !idx.Trained() {
		panic("ivf: index not trained")
	}

	cds := make([]clusterDist, idx.numClusters)
	for c, centroid := range idx.centroids {
		cds[c] = clusterDist{id: c, dist: distance.EuclideanFunc(query, centroid)}
	}
	sort.Slice(cds, func(i, j int) bool {
		if cds[i].dist != cds[j].dist {
			return cds[i].dist < cds[j].dist
		}
		return cds[i].id < cds[j].id
	})

	p := idx.numProbe
	if p > len(cds) {
		p = len(cds)
	}

	out := make([]int, p)
	for i := 0; i < p; i++ {
		out[i] = cds[i].id
	}
	return out
}

// Gather concatenates the posting lists of clusters (in the order
// given, typically Probe's output) with no deduplication — a vector
// belongs to exactly one posting list by construction, so the
// resulting sequence is already duplicate-free; order beyond
// cluster-by-cluster grouping is not guaranteed.
func (idx *Index) Gather(clusters []int) []uint32 {
	var total int
	for _, c := range clusters {
		total += len(idx.postings[c])
	}
	out := make([]uint32, 0, total)
	for _, c := range clusters {
		out = append(out, idx.postings[c]...)
	}
	return out
}

// Stats summarizes posting-list shape for diagnostics only (spec
// §4.4: "Used only for diagnostics").
type Stats struct {
	NumClusters    int
	NonEmpty       int
	TotalVectors   int
	MinPostingLen  int
	MedianPosting  int
	MaxPostingLen  int
}

// Stats computes the current posting-list distribution.
func (idx *Index) Stats() Stats {
	if !idx.Trained() {
		return Stats{}
	}

	lens := make([]int, len(idx.postings))
	total := 0
	nonEmpty := 0
	for i, p := range idx.postings {
		lens[i] = len(p)
		total += len(p)
		if len(p) > 0 {
			nonEmpty++
		}
	}
	sort.Ints(lens)

	min, max := 0, 0
	median := 0
	if len(lens) > 0 {
		min = lens[0]
		max = lens[len(lens)-1]
		median = lens[len(lens)/2]
	}

	return Stats{
		NumClusters:   len(idx.postings),
		NonEmpty:      nonEmpty,
		TotalVectors:  total,
		MinPostingLen: min,
		MedianPosting: median,
		MaxPostingLen: max,
	}
}

// String renders a human-readable one-line summary of Stats,
// supplementing spec.md's bare "expose min/median/max" requirement
// with the formatted presentation the original Rust source's
// Display impl provided but the distillation dropped.
func (s Stats) String() string {
	return fmt.Sprintf(
		"ivf stats: %d/%d clusters non-empty, %d vectors total, posting length min=%d median=%d max=%d",
		s.NonEmpty, s.NumClusters, s.TotalVectors, s.MinPostingLen, s.MedianPosting, s.MaxPostingLen,
	)
}
