// Package metrics exposes the engine's internal counters and histograms on
// a private prometheus.Registry. Nothing here is served over HTTP — the
// registry exists so operators can wire an exporter later without touching
// engine code, and so tests can assert on throughput without parsing log
// lines.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is one processing engine's counters and histograms.
type Metrics struct {
	Registry *prometheus.Registry

	RowsProcessedTotal   prometheus.Counter
	ChunksProcessedTotal prometheus.Counter
	RunsTotal            *prometheus.CounterVec
	ProcessingDuration   prometheus.Histogram
}

// New registers a fresh set of metrics on their own private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RowsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tabmod",
			Name:      "rows_processed_total",
			Help:      "Number of input rows consumed across all processing runs.",
		}),
		ChunksProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tabmod",
			Name:      "chunks_processed_total",
			Help:      "Number of input chunks consumed across all processing runs.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabmod",
			Name:      "runs_total",
			Help:      "Number of processing runs by terminal outcome.",
		}, []string{"outcome"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tabmod",
			Name:      "processing_duration_seconds",
			Help:      "Wall-clock duration of a processing run, from start to terminal event.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.RowsProcessedTotal, m.ChunksProcessedTotal, m.RunsTotal, m.ProcessingDuration)
	return m
}

var (
	defaultOnce sync.Once
	defaultM    *Metrics
)

// Default returns the process-wide singleton metrics set.
func Default() *Metrics {
	defaultOnce.Do(func() { defaultM = New() })
	return defaultM
}
