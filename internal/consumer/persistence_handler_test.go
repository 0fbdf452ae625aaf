package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubExecer struct {
	tag  string
	err  error
	sql  string
	args []any
}

func (s *stubExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.sql = sql
	s.args = args
	return pgconn.NewCommandTag(s.tag), s.err
}

func TestPersistenceHandlerBindsRecordFields(t *testing.T) {
	db := &stubExecer{tag: "INSERT 0 1"}
	h := NewPersistenceHandler(db, zaptest.NewLogger(t))

	sent := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	msg := Message{
		Topic:         "activity_events",
		Partition:     2,
		Offset:        17,
		Timestamp:     sent,
		EventType:     "activity.updated",
		OwnerID:       "u1",
		SchemaSubject: "activity_updated-value",
		SchemaID:      4,
		Payload:       json.RawMessage(`{"activity_id":"a1"}`),
	}
	require.NoError(t, h.Handle(context.Background(), msg))

	require.Contains(t, db.sql, "ON CONFLICT (topic, partition, record_offset) DO NOTHING")
	require.Equal(t, []any{
		"activity.updated", "u1", 4, "activity_updated-value",
		"activity_events", 2, int64(17), msg.Payload, sent.UTC(),
	}, db.args)
}

func TestPersistenceHandlerStampsMissingTimestamp(t *testing.T) {
	db := &stubExecer{tag: "INSERT 0 0"}
	h := NewPersistenceHandler(db, nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	require.NoError(t, h.Handle(context.Background(), Message{Topic: "activity_events", EventType: "activity.created", OwnerID: "u1"}))
	require.Equal(t, fixed, db.args[len(db.args)-1])
}

func TestPersistenceHandlerReturnsStoreError(t *testing.T) {
	h := NewPersistenceHandler(&stubExecer{err: errors.New("connection reset")}, nil)
	err := h.Handle(context.Background(), Message{Topic: "activity_events"})
	require.ErrorContains(t, err, "connection reset")
}
