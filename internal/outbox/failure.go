package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const insertDLQ = `INSERT INTO outbox_dlq
    (owner_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NOW())`

// deadLetter copies a batch that could not be delivered into outbox_dlq and
// marks the originals published. Both writes commit together.
func (d *Dispatcher) deadLetter(ctx context.Context, messages []Message, cause error) error {
	batch := &pgx.Batch{}
	for _, msg := range messages {
		batch.Queue(insertDLQ,
			msg.OwnerID, msg.EventID, msg.EventType, msg.Topic, msg.Payload,
			fmt.Sprintf("%s (topic=%s)", cause, msg.Topic),
			msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey)
	}
	batch.Queue(markPublishedSQL, eventIDs(messages))

	err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("dead-letter %d events: %w", len(messages), err)
	}

	for _, msg := range messages {
		dlqCounter.WithLabelValues(msg.Topic).Inc()
	}
	return nil
}
