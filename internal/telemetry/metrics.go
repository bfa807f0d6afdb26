package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	FetchSeconds     *prometheus.HistogramVec
	FetchErrorsTotal *prometheus.CounterVec
	BoardsTotal      *prometheus.CounterVec
	RefreshesTotal   prometheus.Counter
	AlertsActive     prometheus.Gauge
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	metrics := &Metrics{
		FetchSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "etaboard_upstream_fetch_seconds",
				Help:    "Latency of upstream prediction fetches, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		FetchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etaboard_upstream_fetch_errors_total",
				Help: "Upstream prediction fetches that failed after retries",
			},
			[]string{"kind"},
		),
		BoardsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etaboard_boards_total",
				Help: "Stop boards served, by state",
			},
			[]string{"state"},
		),
		RefreshesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "etaboard_refreshes_total",
				Help: "Manual refreshes of stop boards",
			},
		),
		AlertsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "etaboard_alerts_active",
				Help: "Active service alerts after the last poll",
			},
		),
	}

	registry.MustRegister(
		metrics.FetchSeconds,
		metrics.FetchErrorsTotal,
		metrics.BoardsTotal,
		metrics.RefreshesTotal,
		metrics.AlertsActive,
	)

	return metrics
}

// ObserveFetch records one upstream fetch
func (m *Metrics) ObserveFetch(kind string, elapsed time.Duration, err error) {
	m.FetchSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
	if err != nil {
		m.FetchErrorsTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveBoard counts a served board by its state
func (m *Metrics) ObserveBoard(state string) {
	m.BoardsTotal.WithLabelValues(state).Inc()
}

// ObserveRefresh counts a manual refresh
func (m *Metrics) ObserveRefresh() {
	m.RefreshesTotal.Inc()
}

// NewRegistry creates a registry with the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Handler serves the registry in the Prometheus exposition format
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
