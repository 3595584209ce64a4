package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UserStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userstore_operations_total",
			Help: "Total number of user store operations by backend, operation and result",
		},
		[]string{"backend", "operation", "result"},
	)

	UserStoreOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "userstore_operation_duration_seconds",
			Help:    "Duration of user store operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "operation"},
	)

	UserStoreRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userstore_retries_total",
			Help: "Total number of retried storage calls",
		},
		[]string{"backend"},
	)
)
