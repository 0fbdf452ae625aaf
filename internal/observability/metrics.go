package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes reported by the activity service.
const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

var (
	operationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footprint",
		Subsystem: "service",
		Name:      "operations_total",
		Help:      "Activity service operations grouped by operation and outcome.",
	}, []string{"operation", "outcome"})

	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "footprint",
		Subsystem: "service",
		Name:      "operation_duration_seconds",
		Help:      "Time spent in activity service operations, store round-trips included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "footprint",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity write committed to the store.",
	})

	// HTTPDuration is observed by httptransport.Instrument.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "footprint",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by status code and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"code", "method"})
)

func init() {
	prometheus.MustRegister(operationCounter, operationDuration, activityPersistGauge, HTTPDuration)
}

// RecordOperation counts one service call and observes its latency.
func RecordOperation(operation, outcome string, elapsed time.Duration) {
	operationCounter.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// OperationCount exposes the counter for tests.
func OperationCount(operation, outcome string) prometheus.Counter {
	return operationCounter.WithLabelValues(operation, outcome)
}
