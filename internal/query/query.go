// Package query implements the composition step that turns a raw
// query vector into ranked results: IVF probe, PQ LUT precompute,
// LUT-sum scoring, bounded top-k, metadata attachment — or, when the
// index is built but PQ isn't active, a full linear scan under the
// configured metric. Querying before a successful build is rejected
// outright rather than silently served by linear scan.
package query

import (
	"context"
	"fmt"

	"github.com/xDarkicex/khadb/internal/distance"
	"github.com/xDarkicex/khadb/internal/ivf"
	"github.com/xDarkicex/khadb/internal/khaderr"
	"github.com/xDarkicex/khadb/internal/pq"
	"github.com/xDarkicex/khadb/internal/topk"
	"golang.org/x/sync/errgroup"
)

// Result is one ranked neighbor.
type Result struct {
	ID       uint32
	Distance float32
	Metadata any
}

// Dataset is the read-only view of collection state the executor
// scores against. It is supplied fresh by the façade on every call so
// the executor itself holds no mutable state and is safe to share
// across concurrent readers (spec §5: "Queries are pure reads over
// immutable post-build state").
type Dataset struct {
	Dimension int
	Metric    distance.Metric
	Vectors   [][]float32 // raw vectors, index == id
	Metadata  []any       // parallel to Vectors; nil entries allowed

	UsePQ      bool
	IndexBuilt bool
	Codec      *pq.Codec     // set by a PQ build; may be stale when !IndexBuilt
	Codes      [][]byte      // parallel to Vectors as of the last PQ build
	IVF        *ivf.Index    // set by a PQ build; may be stale when !IndexBuilt
}

// Search answers a single top-k query. A query against a collection
// that has never had a successful BuildIndex call — including one
// that had an index built but has since taken an Insert — is rejected
// with ErrIndexNotBuilt rather than silently served by linear scan
// (spec B1, S6). Only once an index is built does the absence of PQ
// fall back to linear scan.
func Search(ds *Dataset, q []float32, k int) ([]Result, error) {
	if len(q) != ds.Dimension {
		return nil, khaderr.DimensionMismatch(ds.Dimension, len(q))
	}
	if k < 1 {
		return nil, khaderr.InvalidConfig(fmt.Sprintf("k must be positive, got %d", k))
	}
	if !ds.IndexBuilt {
		return nil, khaderr.ErrIndexNotBuilt
	}

	if len(ds.Vectors) == 0 {
		return nil, nil
	}

	if !ds.UsePQ {
		return linearScan(ds, q, k)
	}

	// O3: use_pq=true with no trained IVF cannot happen by
	// construction — BuildIndex always trains IVF whenever PQ is
	// requested. Treat it as an internal invariant violation rather
	// than a reachable user-facing error.
	if ds.IVF == nil || ds.Codec == nil || ds.Codes == nil {
		panic("query: use_pq is set but IVF/PQ structures are missing")
	}

	return pqScan(ds, q, k)
}

// BatchSearch fans Search out across queries in parallel (one
// goroutine per query via errgroup), preserving input order in the
// output and failing the whole batch on the first error — spec §4.5:
// "Any single-query failure fails the batch. There is no partial
// success."
func BatchSearch(ctx context.Context, ds *Dataset, queries [][]float32, k int) ([][]Result, error) {
	results := make([][]Result, len(queries))

	g, _ := errgroup.WithContext(ctx)
	for i, qv := range queries {
		i, qv := i, qv
		g.Go(func() error {
			r, err := Search(ds, qv, k)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func linearScan(ds *Dataset, q []float32, k int) ([]Result, error) {
	distFunc, err := distance.For(ds.Metric)
	if err != nil {
		// The metric was already validated at config time; reaching
		// this means an internal invariant broke, not a user error.
		panic(err)
	}

	heap := topk.NewBoundedHeap(k)
	for id, v := range ds.Vectors {
		d := distFunc(q, v)
		heap.Push(topk.Candidate{ID: uint32(id), Distance: d})
	}

	return attachMetadata(ds, heap.Sorted()), nil
}

func pqScan(ds *Dataset, q []float32, k int) ([]Result, error) {
	clusters := ds.IVF.Probe(q)
	candidates := ds.IVF.Gather(clusters)

	lut := ds.Codec.PrecomputeLUT(q)

	heap := topk.NewBoundedHeap(k)
	for _, id := range candidates {
		d := lut.Distance(ds.Codes[id])
		heap.Push(topk.Candidate{ID: id, Distance: d})
	}

	return attachMetadata(ds, heap.Sorted()), nil
}

func attachMetadata(ds *Dataset, ranked []topk.Candidate) []Result {
	out := make([]Result, len(ranked))
	for i, c := range ranked {
		var md any
		if int(c.ID) < len(ds.Metadata) {
			md = ds.Metadata[c.ID]
		}
		out[i] = Result{ID: c.ID, Distance: c.Distance, Metadata: md}
	}
	return out
}
