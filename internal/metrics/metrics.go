// Package metrics exposes Prometheus collectors for resolutions and the HTTP API.
//
// All methods are safe on a nil *Metrics, so callers never need to guard.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kwikdl"

// Resolution outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	resolutionsTotal   *prometheus.CounterVec
	resolutionDuration prometheus.Histogram
	stageAttemptsTotal *prometheus.CounterVec
	fetchesTotal       *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Total number of resolutions by outcome.",
			},
			[]string{"outcome"},
		),
		resolutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolution_duration_seconds",
				Help:      "Duration of resolutions in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		stageAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_attempts_total",
				Help:      "Pipeline stage attempts by stage and result.",
			},
			[]string{"stage", "result"},
		),
		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Upstream fetches by method and status class.",
			},
			[]string{"method", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served.",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.resolutionsTotal,
		m.resolutionDuration,
		m.stageAttemptsTotal,
		m.fetchesTotal,
		m.httpRequestsTotal,
		m.httpRequestLatency,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveResolution records one finished resolution.
func (m *Metrics) ObserveResolution(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(outcome).Inc()
	m.resolutionDuration.Observe(d.Seconds())
}

// ObserveAttempt records one stage attempt; a nil err counts as "ok".
func (m *Metrics) ObserveAttempt(stage string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.stageAttemptsTotal.WithLabelValues(stage, result).Inc()
}

// ObserveFetch records one upstream exchange. A zero status means the
// transport failed.
func (m *Metrics) ObserveFetch(method string, status int) {
	if m == nil {
		return
	}
	m.fetchesTotal.WithLabelValues(method, StatusClass(status)).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// StatusClass maps a status code to "2xx".."5xx", or "error" for zero.
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
