package khadb

import (
	"fmt"

	"github.com/xDarkicex/khadb/internal/distance"
)

// Option configures a Config at Open time, grounded directly on
// libravdb/options.go's functional-options idiom (Option func(*Config)
// error) and libravdb/database.go's New(opts ...Option) construction.
type Option func(*Config) error

// WithMetric sets the collection's distance metric. Euclidean is the
// default if this option is never applied.
func WithMetric(m distance.Metric) Option {
	return func(c *Config) error {
		c.Metric = m
		return nil
	}
}

// WithMetrics enables Prometheus counters/histograms for this
// Database. Disabled by default; see Config.MetricsEnabled.
func WithMetrics(enabled bool) Option {
	return func(c *Config) error {
		c.MetricsEnabled = enabled
		return nil
	}
}

// WithProductQuantization enables PQ scoring with M subvectors and C
// coarse IVF clusters, probing p of them per query. BuildIndex trains
// both the PQ codec and the IVF partitioner whenever this is set.
func WithProductQuantization(subvectors, numClusters, numProbe int) Option {
	return func(c *Config) error {
		if subvectors <= 0 || numClusters <= 0 || numProbe <= 0 {
			return fmt.Errorf("khadb: pq/ivf parameters must be positive")
		}
		c.UsePQ = true
		c.PQSubvectors = subvectors
		c.NumClusters = numClusters
		c.NumProbe = numProbe
		return nil
	}
}
