// Package kmeans implements the trainer shared by the PQ codec's
// per-subspace codebooks and the IVF coarse partitioner: k-means++
// initialization followed by Lloyd iteration, with an explicitly
// threaded random source so builds are reproducible in tests.
package kmeans

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/xDarkicex/khadb/internal/distance"
)

// Config bounds a training run.
type Config struct {
	K          int     // number of clusters
	MaxIter    int     // default 100
	Tolerance  float64 // default 1e-3, convergence on |Δinertia|
}

// DefaultConfig returns the spec's default iteration bound and
// tolerance for a given k.
func DefaultConfig(k int) Config {
	return Config{K: k, MaxIter: 100, Tolerance: 1e-3}
}

// Result holds the trained centroids, the final assignment of every
// training vector to its nearest centroid, the converged inertia, and
// the number of Lloyd iterations actually run.
type Result struct {
	Centroids   [][]float32
	Assignments []int
	Inertia     float64
	Iterations  int
}

// Train runs k-means++ init followed by Lloyd iteration over vectors
// (dimension d, implied by len(vectors[0])). rng must be non-nil and
// caller-owned: this package never reads or reseeds the global
// math/rand source, so identical (vectors, cfg, rng-state) always
// produces identical centroids.
//
// An empty training set or cfg.K == 0 is a programmer error (the
// caller should have rejected it before reaching here) and panics.
// cfg.K > len(vectors) is a user-facing InvalidConfig at the caller's
// layer; Train itself just refuses by returning an error, since unlike
// the empty-input case this is a plausible result of user-controlled
// config.
func Train(ctx context.Context, vectors [][]float32, cfg Config, rng *rand.Rand) (*Result, error) {
	if len(vectors) == 0 {
		panic("kmeans: empty training set")
	}
	if cfg.K == 0 {
		panic("kmeans: k must be positive")
	}
	if cfg.K > len(vectors) {
		return nil, fmt.Errorf("kmeans: k (%d) exceeds training set size (%d)", cfg.K, len(vectors))
	}
	if rng == nil {
		panic("kmeans: rng must not be nil")
	}

	maxIter := cfg.MaxIter
	if maxIter == 0 {
		maxIter = 100
	}
	tol := cfg.Tolerance
	if tol == 0 {
		tol = 1e-3
	}

	centroids := initPlusPlus(vectors, cfg.K, rng)
	assignments := make([]int, len(vectors))
	prevInertia := -1.0

	for iter := 0; iter < maxIter; iter++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		inertia := assign(vectors, centroids, assignments)

		if prevInertia >= 0 && floatAbs(prevInertia-inertia) < tol {
			return &Result{Centroids: centroids, Assignments: assignments, Inertia: inertia, Iterations: iter + 1}, nil
		}
		prevInertia = inertia

		centroids = update(vectors, assignments, cfg.K, len(vectors[0]), rng)
	}

	// Recompute assignments/inertia once more against the final
	// centroid set so the returned Result is internally consistent
	// with Centroids even when MaxIter was exhausted before the
	// tolerance check fired.
	inertia := assign(vectors, centroids, assignments)
	return &Result{Centroids: centroids, Assignments: assignments, Inertia: inertia, Iterations: maxIter}, nil
}

// initPlusPlus implements k-means++: the first centroid is picked
// uniformly at random, each subsequent one sampled with probability
// proportional to its squared distance from the nearest centroid
// already chosen.
func initPlusPlus(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, 0, k)
	first := rng.Intn(len(vectors))
	centroids = append(centroids, cloneVec(vectors[first]))

	minDist := make([]float64, len(vectors))
	for i, v := range vectors {
		minDist[i] = float64(distance.SquaredEuclideanFunc(v, centroids[0]))
	}

	for len(centroids) < k {
		var total float64
		for _, d := range minDist {
			total += d
		}

		var next int
		if total == 0 {
			// All remaining points coincide with a chosen centroid;
			// any index is as good as any other.
			next = rng.Intn(len(vectors))
		} else {
			target := rng.Float64() * total
			var cum float64
			for i, d := range minDist {
				cum += d
				if cum >= target {
					next = i
					break
				}
			}
		}

		centroids = append(centroids, cloneVec(vectors[next]))
		for i, v := range vectors {
			d := float64(distance.SquaredEuclideanFunc(v, centroids[len(centroids)-1]))
			if d < minDist[i] {
				minDist[i] = d
			}
		}
	}

	return centroids
}

// assign finds each vector's nearest centroid, records it, and
// returns the total inertia (sum of squared distances).
func assign(vectors [][]float32, centroids [][]float32, assignments []int) float64 {
	var inertia float64
	for i, v := range vectors {
		best := 0
		bestDist := distance.SquaredEuclideanFunc(v, centroids[0])
		for c := 1; c < len(centroids); c++ {
			d := distance.SquaredEuclideanFunc(v, centroids[c])
			if d < bestDist {
				bestDist = d
				best = c
			}
		}
		assignments[i] = best
		inertia += float64(bestDist)
	}
	return inertia
}

// update recomputes each cluster's mean; a cluster with zero
// assignments is reinitialized from a uniformly random training
// vector rather than left as a NaN-producing empty mean, so no
// posting list is ever paired with an undefined centroid (spec B5).
func update(vectors [][]float32, assignments []int, k, dim int, rng *rand.Rand) [][]float32 {
	sums := make([][]float32, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float32, dim)
	}

	for i, v := range vectors {
		c := assignments[i]
		counts[c]++
		for d := 0; d < dim; d++ {
			sums[c][d] += v[d]
		}
	}

	centroids := make([][]float32, k)
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			centroids[c] = cloneVec(vectors[rng.Intn(len(vectors))])
			continue
		}
		mean := sums[c]
		for d := 0; d < dim; d++ {
			mean[d] /= float32(counts[c])
		}
		centroids[c] = mean
	}
	return centroids
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

func floatAbs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
