package khadb

import (
	"fmt"
	"math"

	"github.com/xDarkicex/khadb/internal/distance"
	"github.com/xDarkicex/khadb/internal/khaderr"
)

// Config holds the collection-wide configuration validated once at
// Open time (CORE SPEC §6). Grounded on internal/quant/interfaces.go's
// QuantizationConfig.Validate()/DefaultConfig() pair, generalized here
// to cover the whole collection rather than only the quantizer.
type Config struct {
	Dimension int
	Metric    distance.Metric

	UsePQ        bool
	PQSubvectors int // M

	NumClusters int // C
	NumProbe    int // p

	// MetricsEnabled gates Prometheus registration, grounded on
	// libravdb/options.go's WithMetrics: off by default since
	// promauto registers against the global default registry, and a
	// process opening more than one Database would otherwise hit a
	// duplicate-registration panic.
	MetricsEnabled bool
}

// DefaultConfig returns a Config for the given dimension with PQ/IVF
// disabled and Euclidean distance, mirroring the teacher's
// DefaultConfig() convention of a sane, functional zero-option value.
func DefaultConfig(dimension int) Config {
	return Config{
		Dimension:   dimension,
		Metric:      distance.Euclidean,
		NumClusters: 1,
		NumProbe:    1,
	}
}

// AutoTuneConfig returns a Config with num_clusters picked from
// expectedN by the original Rust source's rule of thumb (num_clusters
// ≈ √expectedN) and num_probe as a tenth of num_clusters, clamped to
// [1, num_clusters]. UsePQ/PQSubvectors are left at their
// DefaultConfig zero values — a caller who wants PQ scoring sets
// UsePQ and PQSubvectors on the returned Config directly before
// passing it to OpenWithConfig, same as any other Config field.
func AutoTuneConfig(dim, expectedN int) Config {
	cfg := DefaultConfig(dim)
	if expectedN < 1 {
		expectedN = 1
	}

	clusters := int(math.Round(math.Sqrt(float64(expectedN))))
	if clusters < 1 {
		clusters = 1
	}
	cfg.NumClusters = clusters

	probe := clusters / 10
	if probe < 1 {
		probe = 1
	}
	if probe > clusters {
		probe = clusters
	}
	cfg.NumProbe = probe

	return cfg
}

// validate checks every invariant CORE SPEC §6 states on configuration,
// returning an *khaderr.Error with Code InvalidConfig on the first
// violation found, and clamps NumProbe into [1, NumClusters].
func (c *Config) validate() error {
	if c.Dimension <= 0 {
		return khaderr.InvalidConfig("dimensions must be positive")
	}
	switch c.Metric {
	case distance.Euclidean, distance.Cosine, distance.DotProduct:
	default:
		return khaderr.InvalidConfig(fmt.Sprintf("unknown metric %d", c.Metric))
	}
	if c.UsePQ {
		if c.PQSubvectors <= 0 {
			return khaderr.InvalidConfig("pq_subvectors must be positive when use_pq is set")
		}
		if c.Dimension%c.PQSubvectors != 0 {
			return khaderr.InvalidConfig(fmt.Sprintf("pq_subvectors %d must divide dimensions %d", c.PQSubvectors, c.Dimension))
		}
		if c.NumClusters <= 0 {
			return khaderr.InvalidConfig("num_clusters must be positive when use_pq is set")
		}
	}
	if c.NumProbe < 1 {
		c.NumProbe = 1
	}
	if c.NumClusters > 0 && c.NumProbe > c.NumClusters {
		c.NumProbe = c.NumClusters
	}
	return nil
}
