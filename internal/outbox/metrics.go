package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for DLQ entries.
const (
	dlqOutcomeReplayed    = "replayed"
	dlqOutcomeQuarantined = "quarantined"
	dlqOutcomeRetry       = "retry_scheduled"
)

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "footprint",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Activity events published to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "footprint",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Activity events whose batch failed to publish.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "footprint",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time from claiming an outbox batch to marking it published.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footprint",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Activity events written to outbox_dlq, by topic.",
	}, []string{"topic"})

	dlqEntriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footprint",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "DLQ entries handled by the manager, by event type and outcome.",
	}, []string{"event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "footprint",
		Subsystem: "dlq",
		Name:      "backlog",
		Help:      "DLQ entries neither replayed nor quarantined.",
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, batchDuration, dlqCounter, dlqEntriesCounter, dlqBacklogGauge)
}

func recordDLQ(entry dlqEntry, outcome string) {
	dlqEntriesCounter.WithLabelValues(entry.EventType, outcome).Inc()
}

func refreshBacklog(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return err
	}
	dlqBacklogGauge.Set(float64(count))
	return nil
}
