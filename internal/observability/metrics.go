package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sunset_prep"

// Metrics holds the Prometheus counters, histograms, and gauges for catalog
// preparation runs.
type Metrics struct {
	RowsRead        prometheus.Counter
	RowsDropped     prometheus.Counter
	RowsWritten     *prometheus.CounterVec // labels: sink
	LoadErrors      *prometheus.CounterVec // labels: sink
	Runs            *prometheus.CounterVec // labels: outcome={success,error}
	PipelineRunning prometheus.Gauge
	RunDuration     prometheus.Histogram

	// Last successful run.
	CatalogDays prometheus.Gauge
	GHIMean     prometheus.Gauge
	GHIStd      prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsRead,
		m.RowsDropped,
		m.RowsWritten,
		m.LoadErrors,
		m.Runs,
		m.PipelineRunning,
		m.RunDuration,
		m.CatalogDays,
		m.GHIMean,
		m.GHIStd,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Total catalog rows read from the source file.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Total catalog rows dropped for lacking an imagery path.",
		}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Total prepared rows written, by sink.",
		}, []string{"sink"}),
		LoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Total failed writes, by sink.",
		}, []string{"sink"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Preparation runs by outcome.",
		}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the pipeline is active, 0 when shut down.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-preprocess-load run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		CatalogDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_days",
			Help:      "Distinct calendar days in the last prepared catalog.",
		}),
		GHIMean: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ghi_normalization_mean",
			Help:      "Mean of observed GHI used by the last run.",
		}),
		GHIStd: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ghi_normalization_std",
			Help:      "Standard deviation of observed GHI used by the last run.",
		}),
	}
}
