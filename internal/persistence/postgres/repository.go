package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/domain"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/events"
)

const activityColumns = `activity_id, owner_id, activity_type, quantity, unit, activity_date, created_at, updated_at`

// Repository provides Postgres-backed persistence for activities and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByOwner returns the owner's activities, oldest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE owner_id=$1 ORDER BY created_at, activity_id`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Create persists the activity and records an outbox event inside a single transaction.
func (r *Repository) Create(ctx context.Context, activity domain.Activity) (created domain.Activity, err error) {
	activity.ID = uuid.NewString()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Activity{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertActivity = `INSERT INTO activities (activity_id, owner_id, activity_type, quantity, unit, activity_date, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, insertActivity,
		activity.ID,
		activity.OwnerID,
		activity.ActivityType,
		activity.Quantity,
		activity.Unit,
		activity.Date,
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		return domain.Activity{}, mapWriteErr(err)
	}

	if err = r.insertOutbox(ctx, tx, activity, events.TypeActivityCreated, events.ActivityCreated{
		ActivityID:   activity.ID,
		OwnerID:      activity.OwnerID,
		ActivityType: activity.ActivityType,
		Quantity:     activity.Quantity,
		Unit:         activity.Unit,
		Date:         activity.Date,
		OccurredAt:   activity.CreatedAt,
	}); err != nil {
		return domain.Activity{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.Activity{}, err
	}
	return activity, nil
}

// Get retrieves an activity by ID. Unknown or malformed ids yield nil, nil.
func (r *Repository) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	if _, err := uuid.Parse(activityID); err != nil {
		return nil, nil
	}

	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id=$1`, activityID)
	a, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// Update overwrites the mutable fields and records an outbox event.
func (r *Repository) Update(ctx context.Context, activity domain.Activity) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE activities SET activity_type=$2, quantity=$3, unit=$4, activity_date=$5, updated_at=$6 WHERE activity_id=$1`,
		activity.ID, activity.ActivityType, activity.Quantity, activity.Unit, activity.Date, activity.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrActivityNotFound
		return err
	}

	if err = r.insertOutbox(ctx, tx, activity, events.TypeActivityUpdated, events.ActivityUpdated{
		ActivityID:   activity.ID,
		OwnerID:      activity.OwnerID,
		ActivityType: activity.ActivityType,
		Quantity:     activity.Quantity,
		Unit:         activity.Unit,
		Date:         activity.Date,
		OccurredAt:   activity.UpdatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete removes the activity and records an outbox event.
func (r *Repository) Delete(ctx context.Context, activity domain.Activity) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var deletedAt time.Time
	err = tx.QueryRow(ctx, `DELETE FROM activities WHERE activity_id=$1 RETURNING NOW()`, activity.ID).Scan(&deletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrActivityNotFound
		}
		return err
	}

	if err = r.insertOutbox(ctx, tx, activity, events.TypeActivityDeleted, events.ActivityDeleted{
		ActivityID: activity.ID,
		OwnerID:    activity.OwnerID,
		OccurredAt: deletedAt.UTC(),
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, activity domain.Activity, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s:%d", activity.ID, eventType, activity.UpdatedAt.UnixNano())

	const stmt = `INSERT INTO outbox (owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		activity.OwnerID,
		"activity",
		activity.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(activity),
		body,
		dedupeKey,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (domain.Activity, error) {
	var a domain.Activity
	if err := row.Scan(&a.ID, &a.OwnerID, &a.ActivityType, &a.Quantity, &a.Unit, &a.Date, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Activity{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if a.Date != nil {
		d := a.Date.UTC()
		a.Date = &d
	}
	return a, nil
}

// mapWriteErr turns not-null and check violations into validation errors.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502", "23514":
			return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.Message)
		}
	}
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.Activity) string
}

func byOwner(a domain.Activity) string {
	return a.OwnerID
}

var eventCatalog = map[string]EventMetadata{
	events.TypeActivityCreated: {
		Topic:          events.Topic,
		SchemaSubject:  "activity_created-value",
		PartitionKeyFn: byOwner,
	},
	events.TypeActivityUpdated: {
		Topic:          events.Topic,
		SchemaSubject:  "activity_updated-value",
		PartitionKeyFn: byOwner,
	},
	events.TypeActivityDeleted: {
		Topic:          events.Topic,
		SchemaSubject:  "activity_deleted-value",
		PartitionKeyFn: byOwner,
	},
}
