package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the bootstrap DDL for activities, the outbox, its DLQ and the
// consumer audit log. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS activities (
    activity_id   UUID PRIMARY KEY,
    owner_id      TEXT NOT NULL CHECK (owner_id <> ''),
    activity_type TEXT NOT NULL CHECK (activity_type <> ''),
    quantity      DOUBLE PRECISION NOT NULL,
    unit          TEXT NOT NULL CHECK (unit <> ''),
    activity_date TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_activities_owner ON activities (owner_id, created_at);

CREATE TABLE IF NOT EXISTS outbox (
    event_id       BIGSERIAL PRIMARY KEY,
    owner_id       TEXT NOT NULL,
    aggregate_type TEXT NOT NULL,
    aggregate_id   TEXT NOT NULL,
    event_type     TEXT NOT NULL,
    topic          TEXT NOT NULL,
    schema_subject TEXT NOT NULL,
    partition_key  TEXT NOT NULL,
    payload        JSONB NOT NULL,
    dedupe_key     TEXT UNIQUE,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    claimed_at     TIMESTAMPTZ,
    published_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_unpublished ON outbox (event_id) WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS outbox_dlq (
    dlq_id            BIGSERIAL PRIMARY KEY,
    owner_id          TEXT NOT NULL,
    event_id          BIGINT NOT NULL,
    event_type        TEXT NOT NULL,
    topic             TEXT NOT NULL,
    payload           JSONB NOT NULL,
    reason            TEXT NOT NULL,
    aggregate_type    TEXT NOT NULL,
    aggregate_id      TEXT NOT NULL,
    schema_subject    TEXT NOT NULL,
    partition_key     TEXT NOT NULL,
    retry_count       INTEGER NOT NULL DEFAULT 0,
    last_attempt_at   TIMESTAMPTZ,
    next_retry_at     TIMESTAMPTZ,
    quarantined_at    TIMESTAMPTZ,
    quarantine_reason TEXT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS activity_event_log (
    log_id         BIGSERIAL PRIMARY KEY,
    event_type     TEXT NOT NULL,
    owner_id       TEXT NOT NULL,
    schema_id      INTEGER NOT NULL,
    schema_subject TEXT NOT NULL,
    topic          TEXT NOT NULL,
    partition      INTEGER NOT NULL,
    record_offset  BIGINT NOT NULL,
    payload        JSONB NOT NULL,
    received_at    TIMESTAMPTZ NOT NULL,
    UNIQUE (topic, partition, record_offset)
);
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
