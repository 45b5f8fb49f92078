// Package observability holds the Prometheus instruments of the service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Feed metrics.
	FeedFetches       *prometheus.CounterVec // labels: outcome={success,error}
	FeedFetchDuration prometheus.Histogram
	FeedFeatures      prometheus.Gauge

	// Sync session metrics.
	SessionsActive   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec // labels: type={ready,settle,bar_click,reset,unknown}
	Aggregations     prometheus.Counter
	FilterSelections *prometheus.CounterVec // labels: bucket={4,5,6}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FeedFetches,
		m.FeedFetchDuration,
		m.FeedFeatures,
		m.SessionsActive,
		m.SessionEvents,
		m.Aggregations,
		m.FilterSelections,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakemap",
			Name:      "feed_fetches_total",
			Help:      "Feed load attempts by outcome.",
		}, []string{"outcome"}),
		FeedFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quakemap",
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of the feed request and parse.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FeedFeatures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quakemap",
			Name:      "feed_features",
			Help:      "Number of features in the loaded collection.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quakemap",
			Name:      "sync_sessions_active",
			Help:      "Open map sync sessions.",
		}),
		SessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakemap",
			Name:      "sync_events_total",
			Help:      "Client events received by sync sessions, by type.",
		}, []string{"type"}),
		Aggregations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quakemap",
			Name:      "aggregations_total",
			Help:      "Viewport aggregations computed.",
		}),
		FilterSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakemap",
			Name:      "filter_selections_total",
			Help:      "Chart bar selections by magnitude bucket.",
		}, []string{"bucket"}),
	}
}
