// Package events defines the activity event payloads published to Kafka.
package events

import "time"

// Topic carries every activity event, keyed by owner id.
const Topic = "activity_events"

// Event types written to the outbox.
const (
	TypeActivityCreated = "activity.created"
	TypeActivityUpdated = "activity.updated"
	TypeActivityDeleted = "activity.deleted"
)

// ActivityCreated represents the message emitted when a new activity is logged.
type ActivityCreated struct {
	ActivityID   string     `json:"activity_id"`
	OwnerID      string     `json:"owner_id"`
	ActivityType string     `json:"activity_type"`
	Quantity     float64    `json:"quantity"`
	Unit         string     `json:"unit"`
	Date         *time.Time `json:"date,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// ActivityUpdated carries the full post-update state of an activity.
type ActivityUpdated struct {
	ActivityID   string     `json:"activity_id"`
	OwnerID      string     `json:"owner_id"`
	ActivityType string     `json:"activity_type"`
	Quantity     float64    `json:"quantity"`
	Unit         string     `json:"unit"`
	Date         *time.Time `json:"date,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// ActivityDeleted marks the removal of an activity.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	OwnerID    string    `json:"owner_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
