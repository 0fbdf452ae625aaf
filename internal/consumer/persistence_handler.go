package consumer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const insertEventLog = `INSERT INTO activity_event_log
    (event_type, owner_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (topic, partition, record_offset) DO NOTHING`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PersistenceHandler writes consumed activity events to activity_event_log,
// the audit trail of every change to an owner's activities. A record that
// was already stored, for example after a rebalance redelivers it, is skipped.
type PersistenceHandler struct {
	db     execer
	logger *zap.Logger
	now    func() time.Time
}

// NewPersistenceHandler returns a handler writing through db, usually a *pgxpool.Pool.
func NewPersistenceHandler(db execer, logger *zap.Logger) *PersistenceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistenceHandler{db: db, logger: logger, now: time.Now}
}

func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	receivedAt := msg.Timestamp
	if receivedAt.IsZero() {
		receivedAt = h.now()
	}

	tag, err := h.db.Exec(ctx, insertEventLog,
		msg.EventType, msg.OwnerID, msg.SchemaID, msg.SchemaSubject,
		msg.Topic, msg.Partition, msg.Offset, msg.Payload, receivedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		h.logger.Debug("event already logged",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset))
	}
	return nil
}
