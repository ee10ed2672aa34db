package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// APIMetrics tracks HTTP handlers of the farming service.
type APIMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	apiMetricsOnce sync.Once
	apiRegistry    *APIMetrics
)

// API returns the lazily-initialised registry used to record API activity.
func API() *APIMetrics {
	apiMetricsOnce.Do(func() {
		apiRegistry = newAPIMetrics()
		prometheus.MustRegister(
			apiRegistry.requests,
			apiRegistry.latency,
			apiRegistry.throttles,
		)
	})
	return apiRegistry
}

func newAPIMetrics() *APIMetrics {
	return &APIMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farm",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests segmented by route, method and status code.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "farm",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for HTTP handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farm",
			Subsystem: "api",
			Name:      "throttles_total",
			Help:      "Requests rejected by throttling policies.",
		}, []string{"reason"}),
	}
}

// Observe records the outcome of a request. The status code should be the
// one ultimately written to the response writer.
func (m *APIMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route = strings.TrimSpace(route); route == "" {
		route = "unknown"
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle counts a throttled request. Reasons should be stable strings
// such as "rate_limit" so dashboards remain consistent.
func (m *APIMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}
