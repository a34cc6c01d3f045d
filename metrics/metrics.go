// Package metrics collects Prometheus counters and histograms for the
// ambient observability named in spec.md section 5's progress-observer
// contract: ingestion stage duration and triple-store write volume.
// There is no HTTP exposition server here (spec.md section 1's non-goal
// "no general-purpose graph database service" keeps this module a
// single process with no server surface), and no command renders the
// collected values either.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds every metric this module records. Grouped by
// concern, following the teacher's tracing.Metrics shape.
type Collectors struct {
	IngestStageDuration *prometheus.HistogramVec
	IngestRunsTotal     *prometheus.CounterVec
	StoreWritesTotal    *prometheus.CounterVec
	StoreTriplesWritten *prometheus.CounterVec
	RepositoriesTracked prometheus.Gauge
}

// New creates a Collectors instance registered against
// prometheus.DefaultRegisterer.
func New() *Collectors {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Collectors instance registered against
// registerer, so tests and repeated CLI invocations within one process
// don't collide on the global default registry.
func NewWithRegistry(registerer prometheus.Registerer) *Collectors {
	c := &Collectors{
		IngestStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "repolex",
				Name:      "ingest_stage_duration_seconds",
				Help:      "Duration of one graph-build pipeline stage in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		IngestRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "repolex",
				Name:      "ingest_runs_total",
				Help:      "Total number of graph add/update runs, by outcome",
			},
			[]string{"outcome"},
		),
		StoreWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "repolex",
				Name:      "store_writes_total",
				Help:      "Total number of triple store graph writes, by operation",
			},
			[]string{"operation"},
		),
		StoreTriplesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "repolex",
				Name:      "store_triples_written_total",
				Help:      "Total number of triples written to the store, by operation",
			},
			[]string{"operation"},
		),
		RepositoriesTracked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "repolex",
				Name:      "repositories_tracked",
				Help:      "Number of repositories currently tracked in the registry",
			},
		),
	}

	registerer.MustRegister(
		c.IngestStageDuration,
		c.IngestRunsTotal,
		c.StoreWritesTotal,
		c.StoreTriplesWritten,
		c.RepositoriesTracked,
	)
	return c
}

// ObserveStage records one progress.Observer Update's stage as a
// duration sample, so a CLI caller can forward progress.Update.Stage
// directly without re-deriving the label.
func (c *Collectors) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.IngestStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordIngestRun tallies one completed Add/Update run by outcome
// ("ready" or "failed").
func (c *Collectors) RecordIngestRun(outcome string) {
	if c == nil {
		return
	}
	c.IngestRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordStoreWrite tallies one store write by operation ("append" or
// "replace") and the number of triples it carried.
func (c *Collectors) RecordStoreWrite(operation string, triples int) {
	if c == nil {
		return
	}
	c.StoreWritesTotal.WithLabelValues(operation).Inc()
	c.StoreTriplesWritten.WithLabelValues(operation).Add(float64(triples))
}

// SetRepositoriesTracked updates the tracked-repository gauge.
func (c *Collectors) SetRepositoriesTracked(n int) {
	if c == nil {
		return
	}
	c.RepositoriesTracked.Set(float64(n))
}
