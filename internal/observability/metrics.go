package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of the gateway pipeline.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	rateLimitDecisions *prometheus.CounterVec
	authRejections     *prometheus.CounterVec
	backendDuration    *prometheus.HistogramVec
	buildInfo          *prometheus.GaugeVec
	registry           *prometheus.Registry
}

// NewMetrics creates a Metrics instance on its own registry.
// The Record methods are no-ops on a nil *Metrics.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.rateLimitDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limit decisions by policy and result",
		},
		[]string{"policy", "result"},
	)

	m.authRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rejections_total",
			Help:      "Requests rejected by the authentication gate, by error code",
		},
		[]string{"code"},
	)

	m.backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend call duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend", "outcome"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.rateLimitDecisions,
		m.authRejections,
		m.backendDuration,
		m.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordRequest records a completed HTTP request. route must be a bounded
// label such as the matched route prefix, never the raw path.
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimit records a rate limit decision.
func (m *Metrics) RecordRateLimit(policy string, allowed, failedOpen bool) {
	if m == nil {
		return
	}
	result := "allowed"
	switch {
	case failedOpen:
		result = "fail_open"
	case !allowed:
		result = "denied"
	}
	m.rateLimitDecisions.WithLabelValues(policy, result).Inc()
}

// RecordAuthRejection records a rejection by the authentication gate.
func (m *Metrics) RecordAuthRejection(code string) {
	if m == nil {
		return
	}
	m.authRejections.WithLabelValues(code).Inc()
}

// RecordBackendCall records the duration and outcome of a backend call.
func (m *Metrics) RecordBackendCall(backend, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.backendDuration.WithLabelValues(backend, outcome).Observe(duration.Seconds())
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	if m == nil {
		return
	}
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MustRegisterCollector registers an additional collector with the registry.
func (m *Metrics) MustRegisterCollector(c prometheus.Collector) {
	m.registry.MustRegister(c)
}
