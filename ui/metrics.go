package ui

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domain "tpower/domain/power"
	"tpower/internal/errors"
	"tpower/ports"
)

// Metrics tracks API traffic and search cost. Each instance owns its registry
// so several servers can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge

	searchesTotal    *prometheus.CounterVec
	searchIterations *prometheus.HistogramVec
	searchDuration   *prometheus.HistogramVec
}

var _ ports.SearchObserver = (*Metrics)(nil)

// NewMetrics creates and registers the API and search collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tpower_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tpower_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tpower_api_active_requests",
				Help: "Number of active API requests",
			},
		),
		searchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tpower_searches_total",
				Help: "Sample-size searches by kind, tail mode and outcome",
			},
			[]string{"kind", "tail", "outcome"},
		),
		searchIterations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tpower_search_iterations",
				Help:    "Candidate sample sizes evaluated per search",
				Buckets: prometheus.ExponentialBuckets(1, 2, 18),
			},
			[]string{"kind"},
		),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tpower_search_duration_seconds",
				Help:    "Wall time per sample-size search",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal, m.requestDuration, m.activeRequests,
		m.searchesTotal, m.searchIterations, m.searchDuration,
	)
	return m
}

// ObserveSearch records one finished search
func (m *Metrics) ObserveSearch(kind ports.SearchKind, tail domain.TailMode, iterations int, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(errors.GetCode(err))
	}
	m.searchesTotal.WithLabelValues(string(kind), string(tail), outcome).Inc()
	m.searchIterations.WithLabelValues(string(kind)).Observe(float64(iterations))
	m.searchDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
