package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "surf_forecast"

// Metrics holds the Prometheus counters, histograms, and gauges for the forecast pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge

	// Fetch metrics.
	FetchTasks    *prometheus.CounterVec   // labels: source, outcome={success,error,empty}
	FetchDuration *prometheus.HistogramVec // labels: source
	FetchBatches  prometheus.Counter

	// Cycle metrics.
	CycleAttempts   prometheus.Counter
	Cycles          *prometheus.CounterVec // labels: outcome={success,no_forecast,load_failed}
	CycleDuration   prometheus.Histogram
	ForecastRecords prometheus.Gauge
	TideEvents      prometheus.Gauge
	SpotRecords     *prometheus.CounterVec // labels: spot

	// Delivery metrics.
	RecordsPublished prometheus.Counter
	Alerts           *prometheus.CounterVec // labels: outcome={sent,failed}

	CacheLookups *prometheus.CounterVec // labels: result={hit,miss,error,invalidated}
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the scheduler is active, 0 when shut down.",
		}),
		FetchTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_tasks_total",
			Help:      "Upstream fetch tasks by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single upstream fetch task.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"source"}),
		FetchBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_batches_total",
			Help:      "Concurrent fetch batches executed.",
		}),
		CycleAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_attempts_total",
			Help:      "Fetch attempts, including retries after an empty result.",
		}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed forecast cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-publish cycle.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		ForecastRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_records",
			Help:      "Rows in the latest canonical forecast table.",
		}),
		TideEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tide_events",
			Help:      "Events in the latest reconstructed tide timeline.",
		}),
		SpotRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classified_records_total",
			Help:      "Forecast rows by classified spot.",
		}, []string{"spot"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Forecast and tide rows written to Kafka.",
		}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Spot alerts by delivery outcome.",
		}, []string{"outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Raw payload cache lookups by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.FetchTasks,
		m.FetchDuration,
		m.FetchBatches,
		m.CycleAttempts,
		m.Cycles,
		m.CycleDuration,
		m.ForecastRecords,
		m.TideEvents,
		m.SpotRecords,
		m.RecordsPublished,
		m.Alerts,
		m.CacheLookups,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
