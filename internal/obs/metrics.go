// Package obs provides the engine's observability surface: Prometheus
// metrics and a circuit breaker guarding the one operation expensive
// enough to need one (index training).
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's counters and histograms. Generalized
// from the teacher's insert/search-only set to also cover build and
// training, since those are the engine's other blocking operations
// (spec §5).
type Metrics struct {
	VectorInserts    prometheus.Counter
	SearchQueries    prometheus.Counter
	SearchErrors     prometheus.Counter
	SearchLatency    prometheus.Histogram
	BuildDuration    prometheus.Histogram
	KMeansIterations prometheus.Histogram
}

// NewMetrics registers and returns a fresh metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		VectorInserts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "khadb_vector_inserts_total",
			Help: "Total vector insertions",
		}),
		SearchQueries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "khadb_search_queries_total",
			Help: "Total search queries",
		}),
		SearchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "khadb_search_errors_total",
			Help: "Total search errors",
		}),
		SearchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "khadb_search_latency_seconds",
			Help: "Search latency",
		}),
		BuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "khadb_build_duration_seconds",
			Help:    "build_index duration",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		// Observed twice at the end of each successful BuildIndex call:
		// once with the PQ codec's iterations summed over all codebooks,
		// once with the IVF partitioner's.
		KMeansIterations: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "khadb_kmeans_iterations",
			Help:    "Lloyd iterations per index-training stage (PQ codebooks summed, or IVF)",
			Buckets: prometheus.LinearBuckets(1, 10, 10),
		}),
	}
}
