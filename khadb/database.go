// Package khadb implements an approximate nearest-neighbor vector
// index: Product Quantization over an Inverted File coarse
// partitioner, with a full linear-scan fallback. It is the façade CORE
// SPEC §6 names, wiring together internal/distance, internal/kmeans,
// internal/pq, internal/ivf, internal/query, internal/storage,
// internal/khaderr and internal/obs behind one API, in the shape
// libravdb/database.go's Database/New(opts ...Option) wires its own
// collections.
package khadb

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xDarkicex/khadb/internal/distance"
	"github.com/xDarkicex/khadb/internal/ivf"
	"github.com/xDarkicex/khadb/internal/khaderr"
	"github.com/xDarkicex/khadb/internal/obs"
	"github.com/xDarkicex/khadb/internal/pq"
	"github.com/xDarkicex/khadb/internal/query"
	"github.com/xDarkicex/khadb/internal/storage"
)

// Database is one vector collection: raw vectors, optional metadata,
// and the trained index state built over them. All exported methods
// are safe for concurrent use; reads (Search, Len) take the read lock,
// mutations (Insert, BuildIndex, Load) take the write lock.
type Database struct {
	mu     sync.RWMutex
	config Config

	vectors  [][]float32
	metadata []any
	nextID   uint32

	indexBuilt bool
	codec      *pq.Codec
	codes      [][]byte
	index      *ivf.Index

	metrics    *obs.Metrics
	breaker    *obs.CircuitBreaker
	quantizers *pq.Registry
	log        zerolog.Logger
}

// Open validates cfg (after applying opts) and returns an empty
// Database ready for Insert. Grounded on libravdb/database.go's New.
func Open(dimension int, opts ...Option) (*Database, error) {
	cfg := DefaultConfig(dimension)
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, khaderr.InvalidConfig(err.Error())
		}
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig validates and opens a Database from an already
// fully-formed Config, bypassing the functional-options builder — the
// entry point AutoTuneConfig's caller uses once it has picked
// num_clusters/num_probe for an expected collection size.
func OpenWithConfig(cfg Config) (*Database, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var metrics *obs.Metrics
	if cfg.MetricsEnabled {
		metrics = obs.NewMetrics()
	}

	db := &Database{
		config:     cfg,
		metrics:    metrics,
		breaker:    obs.NewCircuitBreaker(obs.DefaultCircuitBreakerConfig("build_index")),
		quantizers: pq.NewRegistry(),
		log:        log.With().Str("component", "khadb").Logger(),
	}
	return db, nil
}

// Insert appends vector (and optional metadata) to the collection and
// marks the index stale. Returns the assigned id (CORE SPEC §6).
func (db *Database) Insert(vector []float32, metadata any) (uint32, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(vector) != db.config.Dimension {
		return 0, khaderr.DimensionMismatch(db.config.Dimension, len(vector))
	}

	id := db.nextID
	stored := make([]float32, len(vector))
	copy(stored, vector)
	db.vectors = append(db.vectors, stored)
	db.metadata = append(db.metadata, metadata)
	db.nextID++
	db.indexBuilt = false

	if db.metrics != nil {
		db.metrics.VectorInserts.Inc()
	}
	return id, nil
}

// BuildIndex (re)trains the PQ codec and IVF partitioner over the
// current vector set, guarded by a circuit breaker so repeated
// training failures stop retrying expensive work (CORE SPEC §5,
// grounded on internal/obs/circuit.go). Build is all-or-nothing: on
// failure the previous index state, if any, is left marked stale.
func (db *Database) BuildIndex(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(db.vectors) == 0 {
		return khaderr.InvalidConfig("cannot build index over an empty collection")
	}
	if !db.config.UsePQ {
		db.indexBuilt = true
		return nil
	}

	start := time.Now()
	db.indexBuilt = false

	err := db.breaker.Execute(ctx, func() error {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))

		codec, err := db.quantizers.Create("product", db.config.Dimension, db.config.PQSubvectors)
		if err != nil {
			return fmt.Errorf("constructing pq codec: %w", err)
		}
		if err := codec.Train(ctx, db.vectors, rng); err != nil {
			return fmt.Errorf("training pq codec: %w", err)
		}

		codes := make([][]byte, len(db.vectors))
		for i, v := range db.vectors {
			codes[i] = codec.Encode(v)
		}

		index := ivf.New(db.config.Dimension, db.config.NumClusters)
		if err := index.Train(ctx, db.vectors, rng); err != nil {
			return fmt.Errorf("training ivf index: %w", err)
		}
		index.SetNumProbe(db.config.NumProbe)

		db.codec = codec
		db.codes = codes
		db.index = index
		return nil
	})
	if err != nil {
		db.log.Error().Err(err).Msg("build_index failed")
		return khaderr.InvalidConfig(err.Error())
	}

	db.indexBuilt = true
	if db.metrics != nil {
		db.metrics.BuildDuration.Observe(time.Since(start).Seconds())
		db.metrics.KMeansIterations.Observe(float64(db.codec.TrainIterations()))
		db.metrics.KMeansIterations.Observe(float64(db.index.TrainIterations()))
	}
	db.log.Info().
		Int("vectors", len(db.vectors)).
		Dur("elapsed", time.Since(start)).
		Msg("build_index finished")
	return nil
}

// Search answers one top-k query against the current index. A
// collection with no successful BuildIndex call since the last Insert
// rejects the query with khaderr.ErrIndexNotBuilt; once built, a
// collection with use_pq disabled falls back to a full linear scan
// under the configured metric.
func (db *Database) Search(q []float32, k int) ([]SearchResult, error) {
	db.mu.RLock()
	ds := db.dataset()
	db.mu.RUnlock()

	if db.metrics != nil {
		db.metrics.SearchQueries.Inc()
	}
	start := time.Now()
	results, err := query.Search(ds, q, k)
	if db.metrics != nil {
		db.metrics.SearchLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if db.metrics != nil {
			db.metrics.SearchErrors.Inc()
		}
		return nil, err
	}
	return toSearchResults(results), nil
}

// BatchSearch answers each of queries independently, preserving order,
// failing the whole batch on the first per-query error (CORE SPEC
// §4.5).
func (db *Database) BatchSearch(ctx context.Context, queries [][]float32, k int) ([][]SearchResult, error) {
	db.mu.RLock()
	ds := db.dataset()
	db.mu.RUnlock()

	if db.metrics != nil {
		db.metrics.SearchQueries.Add(float64(len(queries)))
	}
	results, err := query.BatchSearch(ctx, ds, queries, k)
	if err != nil {
		if db.metrics != nil {
			db.metrics.SearchErrors.Inc()
		}
		return nil, err
	}

	out := make([][]SearchResult, len(results))
	for i, r := range results {
		out[i] = toSearchResults(r)
	}
	return out, nil
}

// Len reports the number of vectors currently stored.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.vectors)
}

// IsEmpty reports whether the collection holds no vectors.
func (db *Database) IsEmpty() bool {
	return db.Len() == 0
}

// dataset snapshots the fields the query executor needs. Must be
// called with at least a read lock held; the returned Dataset aliases
// db's slices but is only ever read afterward (spec §5: queries are
// pure reads over immutable post-build state).
func (db *Database) dataset() *query.Dataset {
	return &query.Dataset{
		Dimension:  db.config.Dimension,
		Metric:     db.config.Metric,
		Vectors:    db.vectors,
		Metadata:   db.metadata,
		UsePQ:      db.config.UsePQ,
		IndexBuilt: db.indexBuilt,
		Codec:      db.codec,
		Codes:      db.codes,
		IVF:        db.index,
	}
}

func distanceMetric(m int) distance.Metric {
	return distance.Metric(m)
}

func toSearchResults(results []query.Result) []SearchResult {
	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{ID: r.ID, Distance: r.Distance, Metadata: r.Metadata}
	}
	return out
}

// Save persists the collection (config, raw vectors, PQ/IVF state if
// trained, metadata, next id, build-dirty flag) to path as a single
// framed file (CORE SPEC §6).
func (db *Database) Save(path string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	frame := &storage.Frame{
		Config: storage.Config{
			Dimension:    db.config.Dimension,
			Metric:       int(db.config.Metric),
			UsePQ:        db.config.UsePQ,
			PQSubvectors: db.config.PQSubvectors,
			NumClusters:  db.config.NumClusters,
			NumProbe:     db.config.NumProbe,
		},
		Vectors:    db.vectors,
		Codes:      db.codes,
		Metadata:   db.metadata,
		NextID:     db.nextID,
		IndexBuilt: db.indexBuilt,
	}
	if db.codec != nil && db.codec.Trained() {
		frame.PQ = &storage.PQState{Codebooks: db.codec.Codebooks()}
	}
	if db.index != nil && db.index.Trained() {
		frame.IVF = &storage.IVFState{
			Centroids: db.index.Centroids(),
			Postings:  db.index.Postings(),
		}
	}

	return storage.Save(path, frame)
}

// Load replaces db's in-memory state with the frame persisted at path,
// reconstructing the trained PQ codec and IVF index from their
// serialized centroids/codebooks/postings.
func (db *Database) Load(path string) error {
	frame, err := storage.Load(path)
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.config = Config{
		Dimension:    frame.Config.Dimension,
		Metric:       distanceMetric(frame.Config.Metric),
		UsePQ:        frame.Config.UsePQ,
		PQSubvectors: frame.Config.PQSubvectors,
		NumClusters:  frame.Config.NumClusters,
		NumProbe:     frame.Config.NumProbe,
	}
	db.vectors = frame.Vectors
	db.codes = frame.Codes
	db.metadata = frame.Metadata
	db.nextID = frame.NextID
	db.indexBuilt = frame.IndexBuilt

	db.codec = nil
	db.index = nil
	if frame.PQ != nil {
		db.codec = pq.FromCodebooks(db.config.Dimension, frame.PQ.Codebooks)
	}
	if frame.IVF != nil {
		db.index = ivf.FromTrained(db.config.Dimension, frame.IVF.Centroids, frame.IVF.Postings, db.config.NumProbe)
	}
	return nil
}
