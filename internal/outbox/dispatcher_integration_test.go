//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/events"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/persistence/postgres"
)

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	ownerID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, ownerID, uuid.NewString(), events.TypeActivityCreated))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, "activity_events", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)
	require.Equal(t, ownerID, string(producer.writes[0].messages[0].Key))
	require.Equal(t, ownerID, headerValue(producer.writes[0].messages[0], HeaderOwnerID))

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1, "published rows are not delivered twice")
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	ownerID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, ownerID, uuid.NewString(), events.TypeActivityUpdated))

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, 10*time.Millisecond, 5)

	beforeFailed := testutil.ToFloat64(failedCounter)
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues("activity_events"))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues("activity_events")), 0.0001)

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE owner_id = $1`, ownerID).Scan(&dlqCount))
	require.Equal(t, 1, dlqCount)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherHonoursClaimLease(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), uuid.NewString(), events.TypeActivityCreated)

	other := NewDispatcher(pool, &stubProducer{}, &stubRegistry{id: 3}, time.Second, 5)
	claimed, err := other.claim(ctx)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, eventID, claimed[0].EventID)

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 3}, time.Second, 5, WithClaimLease(time.Minute))
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Empty(t, producer.writes, "row leased by another dispatcher is skipped")

	_, err = pool.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() - INTERVAL '2 minutes' WHERE event_id = $1`, eventID)
	require.NoError(t, err)
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1, "expired lease is taken over")
}

func TestDispatcherCachesSchemaIDsAcrossBatch(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	ownerID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, ownerID, uuid.NewString(), events.TypeActivityCreated))
	require.NotZero(t, seedOutbox(t, ctx, pool, ownerID, uuid.NewString(), events.TypeActivityCreated))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 21}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Len(t, producer.writes[0].messages, 2)
	require.Len(t, registry.calls, 1, "schema registry should be invoked once due to cache")
	require.InDelta(t, beforeDelivered+2, testutil.ToFloat64(deliveredCounter), 0.0001)
}

func TestDispatcherUnknownSchemaMovesEventsToDLQ(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), uuid.NewString(), "activity.unknown")
	require.NotZero(t, eventID)

	producer := &stubProducer{}
	registry := &stubRegistry{id: 99}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Empty(t, producer.writes, "unknown schema should skip kafka writes")
	require.Empty(t, registry.calls, "schema registry should not be invoked when metadata missing")

	var dlqCount int
	var reason string
	err := pool.QueryRow(ctx, `SELECT COUNT(*), MAX(reason) FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&dlqCount, &reason)
	require.NoError(t, err)
	require.Equal(t, 1, dlqCount)
	require.Contains(t, reason, "no schema metadata for event_type=activity.unknown")

	var publishedAt time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT published_at FROM outbox WHERE event_id = $1`, eventID).Scan(&publishedAt))
	require.False(t, publishedAt.IsZero(), "event should still be marked as published")
}

func TestDLQManagerRequeuesThenQuarantines(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	ownerID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, ownerID, uuid.NewString(), events.TypeActivityDeleted))

	failing := NewDispatcher(pool, &stubProducer{err: errors.New("broker down")}, &stubRegistry{id: 3}, time.Millisecond, 10)
	require.NoError(t, failing.processBatch(ctx))

	replayedBefore := testutil.ToFloat64(dlqEntriesCounter.WithLabelValues(events.TypeActivityDeleted, dlqOutcomeReplayed))
	quarantinedBefore := testutil.ToFloat64(dlqEntriesCounter.WithLabelValues(events.TypeActivityDeleted, dlqOutcomeQuarantined))

	manager := NewDLQManager(pool, 2, time.Second, nil)
	replayed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)
	require.InDelta(t, replayedBefore+1, testutil.ToFloat64(dlqEntriesCounter.WithLabelValues(events.TypeActivityDeleted, dlqOutcomeReplayed)), 0.0001)
	require.Zero(t, testutil.ToFloat64(dlqBacklogGauge))

	var dlqCount, pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount))
	require.Zero(t, dlqCount, "expected DLQ cleared after requeue")
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND owner_id = $1`, ownerID).Scan(&pending))
	require.Equal(t, 1, pending)

	producer := &stubProducer{}
	require.NoError(t, NewDispatcher(pool, producer, &stubRegistry{id: 3}, time.Millisecond, 10).processBatch(ctx))
	require.Len(t, producer.writes, 1)

	_, err = pool.Exec(ctx, `INSERT INTO outbox_dlq (owner_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count)
        VALUES ($1, 0, $2, 'activity_events', '{}', 'seed', 'activity', 'a1', 'activity_deleted-value', $1, 2)`, ownerID, events.TypeActivityDeleted)
	require.NoError(t, err)

	_, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)

	var quarantined int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.Equal(t, 1, quarantined)
	require.InDelta(t, quarantinedBefore+1, testutil.ToFloat64(dlqEntriesCounter.WithLabelValues(events.TypeActivityDeleted, dlqOutcomeQuarantined)), 0.0001)
}

func TestDLQManagerReschedulesEntryWithoutSubject(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	var dlqID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO outbox_dlq (owner_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key)
        VALUES ('u1', 0, $1, 'activity_events', '{}', 'seed', 'activity', 'a1', '', 'u1')
        RETURNING dlq_id`, events.TypeActivityUpdated).Scan(&dlqID))

	retryBefore := testutil.ToFloat64(dlqEntriesCounter.WithLabelValues(events.TypeActivityUpdated, dlqOutcomeRetry))

	manager := NewDLQManager(pool, 3, time.Minute, nil)
	handled, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, handled)
	require.InDelta(t, retryBefore+1, testutil.ToFloat64(dlqEntriesCounter.WithLabelValues(events.TypeActivityUpdated, dlqOutcomeRetry)), 0.0001)
	require.Equal(t, 1.0, testutil.ToFloat64(dlqBacklogGauge))

	var retries int
	var reason string
	var nextRetry time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT retry_count, reason, next_retry_at FROM outbox_dlq WHERE dlq_id = $1`, dlqID).Scan(&retries, &reason, &nextRetry))
	require.Equal(t, 1, retries)
	require.Equal(t, "missing schema_subject", reason)
	require.True(t, nextRetry.After(time.Now()))

	handled, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, handled, "entry is not due before its backoff elapses")
}

func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("footprint"),
		postgrescontainer.WithUsername("footprint"),
		postgrescontainer.WithPassword("footprint"),
	)
	require.NoError(t, err)

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, postgres.EnsureSchema(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pg.Terminate(ctx)
	}
	return pool, cleanup
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, ownerID, aggregateID, eventType string) int64 {
	t.Helper()

	payloadBytes, err := json.Marshal(map[string]any{
		"activity_id": aggregateID,
		"owner_id":    ownerID,
		"occurred_at": time.Now().UTC(),
	})
	require.NoError(t, err)

	var eventID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO outbox (owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
         RETURNING event_id`,
		ownerID,
		"activity",
		aggregateID,
		eventType,
		"activity_events",
		"activity_events-value",
		ownerID,
		payloadBytes,
	).Scan(&eventID)
	require.NoError(t, err)
	return eventID
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
