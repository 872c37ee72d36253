package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline and the deduplication engine.
type Metrics struct {
	EventsIngested *prometheus.CounterVec // label: source
	DeadLetters    *prometheus.CounterVec // label: source
	FetchRetries   *prometheus.CounterVec // label: source
	IngestDuration *prometheus.HistogramVec

	// Dedup pass metrics.
	DedupDuration       prometheus.Histogram
	ClusteredEvents     prometheus.Gauge
	Clusters            prometheus.Gauge
	MultiSourceClusters prometheus.Gauge
	UnifiedPublished    prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		EventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_stream",
			Name:      "events_ingested_total",
			Help:      "Normalized events accepted into the raw store, by source.",
		}, []string{"source"}),
		DeadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_stream",
			Name:      "dead_letters_total",
			Help:      "Records diverted to the dead-letter table, by source.",
		}, []string{"source"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_stream",
			Name:      "fetch_retries_total",
			Help:      "Feed fetch attempts beyond the first, by source.",
		}, []string{"source"}),
		IngestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quake_stream",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete fetch-parse-validate-store run.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		DedupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_stream",
			Name:      "dedup_duration_seconds",
			Help:      "Duration of a complete deduplication pass.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ClusteredEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_stream",
			Name:      "dedup_events",
			Help:      "Raw events considered in the most recent dedup pass.",
		}),
		Clusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_stream",
			Name:      "dedup_clusters",
			Help:      "Clusters produced by the most recent dedup pass.",
		}),
		MultiSourceClusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_stream",
			Name:      "dedup_multi_source_clusters",
			Help:      "Clusters with more than one distinct source in the most recent pass.",
		}),
		UnifiedPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_stream",
			Name:      "unified_published_total",
			Help:      "Unified events published to the outbound topic.",
		}),
	}

	prometheus.MustRegister(
		m.EventsIngested,
		m.DeadLetters,
		m.FetchRetries,
		m.IngestDuration,
		m.DedupDuration,
		m.ClusteredEvents,
		m.Clusters,
		m.MultiSourceClusters,
		m.UnifiedPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		EventsIngested:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_stream", Name: "events_ingested_total"}, []string{"source"}),
		DeadLetters:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_stream", Name: "dead_letters_total"}, []string{"source"}),
		FetchRetries:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_stream", Name: "fetch_retries_total"}, []string{"source"}),
		IngestDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "quake_stream", Name: "ingest_duration_seconds"}, []string{"source"}),
		DedupDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "quake_stream", Name: "dedup_duration_seconds"}),
		ClusteredEvents:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quake_stream", Name: "dedup_events"}),
		Clusters:            prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quake_stream", Name: "dedup_clusters"}),
		MultiSourceClusters: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quake_stream", Name: "dedup_multi_source_clusters"}),
		UnifiedPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_stream", Name: "unified_published_total"}),
	}
}
