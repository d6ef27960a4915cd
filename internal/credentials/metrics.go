package credentials

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Authorization metrics are process-wide: one set of counters no
// matter how many providers exist.
var (
	// authorizationsTotal counts device (re)authorizations.
	authorizationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "as3_authorization",
			Help: "How often the agent had to (re)authorize before performing a request",
		},
	)

	// authorizationDuration measures (re)authorization duration.
	authorizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "as3_authorization_time_seconds",
			Help:    "Time it needs to (re)authorize",
			Buckets: prometheus.DefBuckets,
		},
	)

	// authorizationExceptions counts failed (re)authorizations.
	authorizationExceptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "as3_authorization_exceptions",
			Help: "Number of exceptions at (re)authorization",
		},
	)
)
