// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler is the "handler" label value used to partition metrics by
// the route pattern rather than the raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// queryRequestsTotal counts completed /api/query requests, partitioned
	// by outcome: "ok", "no_results", "empty_collection", "rate_limited",
	// "quota_exceeded", "timeout", or "error".
	queryRequestsTotal *prometheus.CounterVec

	// queryDurationSeconds records the wall-clock duration of each
	// /api/query request, including embedding and generation round trips.
	queryDurationSeconds *prometheus.HistogramVec

	// queryInFlight is the number of /api/query requests currently running.
	queryInFlight prometheus.Gauge

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, route pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		queryRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of /api/query requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		queryDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/query requests including provider round trips.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		queryInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragchat",
			Subsystem: "query",
			Name:      "in_flight",
			Help:      "Number of /api/query requests currently being answered.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}
