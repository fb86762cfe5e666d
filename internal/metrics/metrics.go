// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	AuthResults *prometheus.CounterVec

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec
	ForwardErrors     *prometheus.CounterVec

	paths map[string]bool
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sub_proxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sub_proxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sub_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		AuthResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sub_proxy_auth_results_total",
			Help: "Shared-secret checks by result.",
		}, []string{"result"}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sub_proxy_upstream_request_duration_seconds",
			Help:    "Upstream call latency in seconds, up to response headers.",
			Buckets: defaultBuckets,
		}, []string{"route"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sub_proxy_upstream_responses_total",
			Help: "Total upstream responses by route and status code.",
		}, []string{"route", "status_code"}),

		ForwardErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sub_proxy_forward_errors_total",
			Help: "Upstream calls that failed before a response was received.",
		}, []string{"route"}),

		paths: map[string]bool{
			"/": true, "/health": true, "/primary": true, "/backup": true,
		},
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.AuthResults,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.ForwardErrors,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// TrackPath adds path to the allowed path label values. It must be called
// before the server starts serving.
func (m *Metrics) TrackPath(path string) {
	m.paths[path] = true
}

// NormalizePath returns a bounded path label for Prometheus metrics.
// Every route is an exact path, so anything else is "other".
func (m *Metrics) NormalizePath(path string) string {
	if m.paths[path] {
		return path
	}
	return "other"
}

// NormalizeRoute returns a bounded upstream route label.
func NormalizeRoute(route string) string {
	switch route {
	case "primary", "backup":
		return route
	default:
		return "other"
	}
}
