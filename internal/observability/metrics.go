package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// fetcher, normalizer, clusterer, and event bus.
type Metrics struct {
	FetchTotal    *prometheus.CounterVec // labels: source_id, outcome=success, not_modified, or the errorKind passed to health RecordError (timeout, parse_error, http_429, http_<status>, ...)
	FetchDuration *prometheus.HistogramVec

	SchedulerRunning prometheus.Gauge
	SourcesDue       prometheus.Gauge

	ItemsInserted     prometheus.Counter
	ItemsDeduplicated prometheus.Counter
	NormalizeErrors   *prometheus.CounterVec // labels: source_id

	ClusterMatches  *prometheus.CounterVec // labels: kind={tight,loose,new,merge}
	ClusterDuration prometheus.Histogram

	BusQueueDepth *prometheus.GaugeVec // labels: subscriber
	BusDropped    prometheus.Counter

	StoreWriteDuration prometheus.Histogram
	RetentionRuns      prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchTotal,
		m.FetchDuration,
		m.SchedulerRunning,
		m.SourcesDue,
		m.ItemsInserted,
		m.ItemsDeduplicated,
		m.NormalizeErrors,
		m.ClusterMatches,
		m.ClusterDuration,
		m.BusQueueDepth,
		m.BusDropped,
		m.StoreWriteDuration,
		m.RetentionRuns,
	)
	return m
}

// NewMetricsForTesting builds Metrics without registering them, so package
// tests that construct a fresh Metrics per test don't panic on re-registration.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigwatch",
			Name:      "fetch_total",
			Help:      "Total source fetch attempts by outcome.",
		}, []string{"source_id", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sigwatch",
			Name:      "fetch_duration_seconds",
			Help:      "Source fetch latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"source_id"}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sigwatch",
			Name:      "scheduler_running",
			Help:      "1 while the polling scheduler loop is active.",
		}),
		SourcesDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sigwatch",
			Name:      "sources_due",
			Help:      "Sources due for fetch at the last selection pass.",
		}),
		ItemsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sigwatch",
			Name:      "items_inserted_total",
			Help:      "Total items inserted into the store.",
		}),
		ItemsDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sigwatch",
			Name:      "items_deduplicated_total",
			Help:      "Total items skipped as duplicates on insert.",
		}),
		NormalizeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigwatch",
			Name:      "normalize_errors_total",
			Help:      "Total normalization failures by source.",
		}, []string{"source_id"}),
		ClusterMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigwatch",
			Name:      "cluster_matches_total",
			Help:      "Clustering decisions by kind.",
		}, []string{"kind"}),
		ClusterDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sigwatch",
			Name:      "cluster_duration_seconds",
			Help:      "Duration of a single item's clustering transaction.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		BusQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sigwatch",
			Name:      "bus_queue_depth",
			Help:      "Current queue depth per event-bus subscriber.",
		}, []string{"subscriber"}),
		BusDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sigwatch",
			Name:      "bus_dropped_total",
			Help:      "Total events dropped from a subscriber queue under backpressure.",
		}),
		StoreWriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sigwatch",
			Name:      "store_write_duration_seconds",
			Help:      "Duration of serialized store write transactions.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}),
		RetentionRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sigwatch",
			Name:      "retention_runs_total",
			Help:      "Total retention sweeps executed.",
		}),
	}
}
