package as3client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery metrics are process-wide: one set of series regardless of
// how many client instances exist, written by all of them.
var (
	// requestsTotal counts delivery requests per operation.
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "as3_requests_total",
			Help: "Total number of declaration requests sent by the agent",
		},
		[]string{"operation"},
	)

	// requestDuration measures wall-clock duration per operation.
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "as3_request_duration_seconds",
			Help:    "Duration of declaration requests in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 90, 120},
		},
		[]string{"operation"},
	)

	// requestExceptions counts failed delivery requests per operation.
	requestExceptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "as3_request_exceptions_total",
			Help: "Number of exceptions at declaration requests",
		},
		[]string{"operation"},
	)

	// taskPolls counts task status polls.
	taskPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "as3_task_polls_total",
			Help: "Total number of async task status polls",
		},
	)
)

// recordOperation records one delivery operation outcome. It runs in a
// defer around the whole call so the duration covers the full
// wall-clock span, including async task completion waits.
func recordOperation(operation string, start time.Time, err error) {
	requestsTotal.WithLabelValues(operation).Inc()
	requestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		requestExceptions.WithLabelValues(operation).Inc()
	}
}
