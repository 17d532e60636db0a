// Package metrics exposes wutboard's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for wutboard. Each instance owns its
// registry, so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// Backend metrics
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec
	RateLimitWait   prometheus.Histogram

	// Dashboard API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Snapshot metrics
	SnapshotsRecorded *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		BackendRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wutboard_backend_requests_total",
				Help: "Total number of requests sent to the WUT backend",
			},
			[]string{"resource", "outcome"},
		),
		BackendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wutboard_backend_request_duration_seconds",
				Help:    "Latency of WUT backend requests in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"resource"},
		),
		RateLimitWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wutboard_backend_rate_limit_wait_seconds",
				Help:    "Time spent waiting for the client-side rate limiter",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wutboard_http_requests_total",
				Help: "Total number of dashboard API requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wutboard_http_request_duration_seconds",
				Help:    "Dashboard API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		SnapshotsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wutboard_snapshots_recorded_total",
				Help: "Total number of aggregate snapshots recorded",
			},
			[]string{"kind", "result"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordBackendRequest records one backend exchange. A nil receiver is a no-op.
func (m *Metrics) RecordBackendRequest(resource string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "error"
	if success {
		outcome = "success"
	}
	m.BackendRequests.WithLabelValues(resource, outcome).Inc()
	m.BackendLatency.WithLabelValues(resource).Observe(elapsed.Seconds())
}

// RecordRateLimitWait records time spent blocked on the rate limiter.
func (m *Metrics) RecordRateLimitWait(d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitWait.Observe(d.Seconds())
}

// RecordHTTPRequest records a dashboard API request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// RecordSnapshot records a snapshot attempt for kind.
func (m *Metrics) RecordSnapshot(kind string, success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.SnapshotsRecorded.WithLabelValues(kind, result).Inc()
}
