package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DLQManager handles retrying failed outbox messages and quarantining exhausted entries.
type DLQManager struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQManager constructs a DLQManager with the provided pool and retry configuration.
func NewDLQManager(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DLQManager{pool: pool, logger: logger, maxRetries: maxRetries, baseDelay: baseDelay}
}

// Run calls RunOnce every interval until ctx is cancelled.
func (m *DLQManager) Run(ctx context.Context, interval time.Duration, batchSize int) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		processed, err := m.RunOnce(ctx, batchSize)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			m.logger.Error("dlq iteration failed", zap.Int("processed", processed), zap.Error(err))
		case processed > 0:
			m.logger.Info("dlq iteration complete", zap.Int("processed", processed))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

const dueEntries = `SELECT dlq_id, owner_id, event_id, event_type, topic, schema_subject, retry_count
FROM outbox_dlq
WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
ORDER BY created_at
LIMIT $1`

// replayEntry moves a DLQ row back into the outbox as a fresh, unclaimed event.
const replayEntry = `WITH moved AS (
    DELETE FROM outbox_dlq WHERE dlq_id = $1
    RETURNING owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
)
INSERT INTO outbox (owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
SELECT owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload FROM moved`

const quarantineEntry = `UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $2 WHERE dlq_id = $1`

const scheduleEntry = `UPDATE outbox_dlq
SET retry_count = retry_count + 1,
    last_attempt_at = NOW(),
    next_retry_at = NOW() + make_interval(secs => $2),
    reason = $3
WHERE dlq_id = $1`

// dlqEntry is the part of an outbox_dlq row the manager decides on.
type dlqEntry struct {
	ID            int64  `db:"dlq_id"`
	OwnerID       string `db:"owner_id"`
	EventID       int64  `db:"event_id"`
	EventType     string `db:"event_type"`
	Topic         string `db:"topic"`
	SchemaSubject string `db:"schema_subject"`
	RetryCount    int    `db:"retry_count"`
}

// RunOnce handles up to batchSize due entries and returns how many were
// replayed, quarantined or rescheduled without error.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	rows, err := m.pool.Query(ctx, dueEntries, batchSize)
	if err != nil {
		return 0, err
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[dlqEntry])
	if err != nil {
		return 0, fmt.Errorf("load dlq entries: %w", err)
	}

	var errs []error
	processed := 0
	for _, entry := range entries {
		if err := m.handleEntry(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("dlq entry %d: %w", entry.ID, err))
			continue
		}
		processed++
	}

	if err := refreshBacklog(ctx, m.pool); err != nil {
		m.logger.Debug("dlq backlog refresh failed", zap.Error(err))
	}
	return processed, errors.Join(errs...)
}

func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) error {
	if entry.RetryCount >= m.maxRetries {
		return m.quarantine(ctx, entry, "retry limit reached")
	}
	if entry.SchemaSubject == "" {
		return m.scheduleRetry(ctx, entry, errors.New("missing schema_subject"))
	}
	if _, err := m.pool.Exec(ctx, replayEntry, entry.ID); err != nil {
		return m.scheduleRetry(ctx, entry, err)
	}
	recordDLQ(entry, dlqOutcomeReplayed)
	m.logger.Debug("dlq entry replayed", zap.Int64("dlq_id", entry.ID), zap.Int64("event_id", entry.EventID))
	return nil
}

func (m *DLQManager) quarantine(ctx context.Context, entry dlqEntry, reason string) error {
	if _, err := m.pool.Exec(ctx, quarantineEntry, entry.ID, reason); err != nil {
		return err
	}
	recordDLQ(entry, dlqOutcomeQuarantined)
	m.logger.Warn("dlq entry quarantined",
		zap.Int64("dlq_id", entry.ID),
		zap.String("event_type", entry.EventType),
		zap.String("owner_id", entry.OwnerID),
		zap.Int("retries", entry.RetryCount))
	return nil
}

func (m *DLQManager) scheduleRetry(ctx context.Context, entry dlqEntry, cause error) error {
	delay := m.backoffDelay(entry.RetryCount + 1)
	if _, err := m.pool.Exec(ctx, scheduleEntry, entry.ID, delay.Seconds(), cause.Error()); err != nil {
		return err
	}
	recordDLQ(entry, dlqOutcomeRetry)
	m.logger.Info("dlq retry scheduled",
		zap.Int64("dlq_id", entry.ID),
		zap.Duration("delay", delay),
		zap.Error(cause))
	return nil
}

// backoffDelay doubles baseDelay per attempt, capped at one hour.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	delay := m.baseDelay
	for i := 1; i < attempt && delay < time.Hour; i++ {
		delay *= 2
	}
	return min(delay, time.Hour)
}
