package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded per consumed record.
const (
	outcomeHandled     = "handled"
	outcomeFailed      = "handler_error"
	outcomeUndecodable = "undecodable"
)

const unknownEventType = "unknown"

var (
	recordsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footprint",
		Subsystem: "consumer",
		Name:      "records_total",
		Help:      "Activity event records seen by the consumer, by topic, event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	handleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "footprint",
		Subsystem: "consumer",
		Name:      "handle_duration_seconds",
		Help:      "Time spent in the handler for records that were handled.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"topic"})

	eventAgeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "footprint",
		Subsystem: "consumer",
		Name:      "event_age_seconds",
		Help:      "Age of the latest handled record when it was handled, per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(recordsCounter, handleDuration, eventAgeGauge)
}

func observeHandled(msg Message, took time.Duration) {
	recordsCounter.WithLabelValues(msg.Topic, msg.EventType, outcomeHandled).Inc()
	handleDuration.WithLabelValues(msg.Topic).Observe(took.Seconds())
	if !msg.Timestamp.IsZero() {
		eventAgeGauge.WithLabelValues(msg.Topic).Set(time.Since(msg.Timestamp).Seconds())
	}
}

func observeFailed(msg Message) {
	recordsCounter.WithLabelValues(msg.Topic, msg.EventType, outcomeFailed).Inc()
}

func observeUndecodable(topic, eventType string) {
	if eventType == "" {
		eventType = unknownEventType
	}
	recordsCounter.WithLabelValues(topic, eventType, outcomeUndecodable).Inc()
}
