// Package metrics exposes Prometheus collectors for the coreapi service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreapi_dispatch_total",
			Help: "Requests dispatched through the routing table, labeled by target and code.",
		},
		[]string{"target", "code"},
	)

	dispatchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coreapi_dispatch_duration_seconds",
			Help:    "Handler latency for dispatched requests, labeled by target.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"target"},
	)

	routeMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreapi_route_misses_total",
			Help: "Requests that matched no routing rule, labeled by method.",
		},
		[]string{"method"},
	)

	dbConnectAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreapi_db_connect_attempts_total",
			Help: "Database connection attempts, labeled by provider and result.",
		},
		[]string{"provider", "result"},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreapi_rate_limited_total",
			Help: "Requests rejected by a per-client rate limiter, labeled by limiter.",
		},
		[]string{"limiter"},
	)
)

// otherMethod labels requests whose method is not a standard HTTP method.
const otherMethod = "OTHER"

// methodLabel bounds the method label to the standard HTTP methods, since
// clients may send arbitrary method tokens.
func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return method
	default:
		return otherMethod
	}
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	method = methodLabel(method)
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveDispatch records a request handled by a routing target.
func ObserveDispatch(target string, code int, duration time.Duration) {
	dispatchTotal.WithLabelValues(target, strconv.Itoa(code)).Inc()
	dispatchDurationSeconds.WithLabelValues(target).Observe(duration.Seconds())
}

// ObserveRouteMiss records a request no rule matched.
func ObserveRouteMiss(method string) {
	routeMissesTotal.WithLabelValues(methodLabel(method)).Inc()
}

// ObserveConnectAttempt records a database dial and whether it succeeded.
func ObserveConnectAttempt(provider string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	dbConnectAttemptsTotal.WithLabelValues(provider, result).Inc()
}

// ObserveRateLimited records a request rejected by the named limiter.
func ObserveRateLimited(limiter string) {
	rateLimitedTotal.WithLabelValues(limiter).Inc()
}
