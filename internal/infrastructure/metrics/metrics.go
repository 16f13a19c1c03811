// Package metrics exposes the dashboard's prometheus instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	operationsTotal *prometheus.CounterVec
	pollAttempts    prometheus.Histogram
)

// Register initializes the collectors on the given registerer (default
// registerer when nil) and returns the /metrics handler.
func Register(reg prometheus.Registerer) http.Handler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	once.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynboard_http_requests_total",
			Help: "Dashboard API requests by method, route and status.",
		}, []string{"method", "route", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dynboard_http_request_duration_seconds",
			Help:    "Dashboard API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynboard_operations_total",
			Help: "Submitted dynamic security operations by kind and outcome.",
		}, []string{"operation", "outcome"})

		pollAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dynboard_operation_poll_attempts",
			Help:    "Poll attempts consumed until a queue item turned terminal.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 20, 30},
		})

		reg.MustRegister(httpRequestsTotal, httpRequestDuration, operationsTotal, pollAttempts)
	})

	return promhttp.Handler()
}

func ObserveRequest(method, route string, status int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func ObserveOperation(operation, outcome string, attempts int) {
	if operationsTotal == nil {
		return
	}
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	if attempts > 0 {
		pollAttempts.Observe(float64(attempts))
	}
}
