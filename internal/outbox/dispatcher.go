// Package outbox delivers activity events written by the postgres store to Kafka.
package outbox

import (
	"cmp"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Kafka headers set on every published record.
const (
	HeaderEventType     = "event_type"
	HeaderOwnerID       = "owner_id"
	HeaderSchemaSubject = "schema_subject"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the dispatcher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithClaimLease sets how long a claimed but unpublished row stays reserved
// for the dispatcher that claimed it before another may take it over.
func WithClaimLease(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.claimLease = d
	}
}

// Dispatcher drains the outbox table and delivers events to Kafka using Schema Registry metadata.
type Dispatcher struct {
	pool             *pgxpool.Pool
	producer         messageWriter
	registry         schemaRegistrar
	logger           *zap.Logger
	pollInterval     time.Duration
	batchSize        int
	claimLease       time.Duration
	schemaIDCache    sync.Map
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int, opts ...Option) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	d := &Dispatcher{
		pool:             pool,
		producer:         producer,
		registry:         registry,
		logger:           zap.NewNop(),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		claimLease:       30 * time.Second,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("outbox dispatcher error", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages, err := d.claim(ctx)
	if err != nil || len(messages) == 0 {
		return err
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	if err := d.deliver(ctx, messages); err != nil {
		d.logger.Warn("outbox delivery failure", zap.Int("batch", len(messages)), zap.Error(err))
		failedCounter.Add(float64(len(messages)))
		return d.deadLetter(ctx, messages, err)
	}

	deliveredCounter.Add(float64(len(messages)))
	return d.markPublished(ctx, messages)
}

const claimBatch = `WITH batch AS (
    SELECT event_id FROM outbox
    WHERE published_at IS NULL
      AND (claimed_at IS NULL OR claimed_at < NOW() - make_interval(secs => $2))
    ORDER BY event_id
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
UPDATE outbox o SET claimed_at = NOW()
FROM batch
WHERE o.event_id = batch.event_id
RETURNING o.event_id, o.owner_id, o.aggregate_type, o.aggregate_id, o.event_type,
          o.topic, o.schema_subject, o.partition_key, o.payload`

// claim reserves up to batchSize unpublished rows, oldest first. Rows claimed
// by another dispatcher are skipped until their lease runs out.
func (d *Dispatcher) claim(ctx context.Context) ([]Message, error) {
	rows, err := d.pool.Query(ctx, claimBatch, d.batchSize, d.claimLease.Seconds())
	if err != nil {
		return nil, err
	}
	messages, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Message])
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	slices.SortFunc(messages, func(a, b Message) int { return cmp.Compare(a.EventID, b.EventID) })
	return messages, nil
}

func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	batches := make(map[string][]kafka.Message)
	topics := make([]string, 0)

	for _, msg := range messages {
		schemaID, err := d.schemaID(ctx, msg)
		if err != nil {
			return err
		}

		record := kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: encodeWireFormat(schemaID, msg.Payload),
			Time:  time.Now().UTC(),
			Headers: []kafka.Header{
				{Key: HeaderEventType, Value: []byte(msg.EventType)},
				{Key: HeaderOwnerID, Value: []byte(msg.OwnerID)},
				{Key: HeaderSchemaSubject, Value: []byte(msg.SchemaSubject)},
			},
		}

		if _, exists := batches[msg.Topic]; !exists {
			topics = append(topics, msg.Topic)
		}
		batches[msg.Topic] = append(batches[msg.Topic], record)
	}

	for _, topic := range topics {
		if err := d.producer.WriteMessages(ctx, topic, batches[topic]...); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) schemaID(ctx context.Context, msg Message) (int, error) {
	schema, ok := schemaCatalog[msg.EventType]
	if !ok {
		return 0, fmt.Errorf("no schema metadata for event_type=%s", msg.EventType)
	}

	cacheKey := msg.SchemaSubject + "::" + schema
	if cached, found := d.schemaIDCache.Load(cacheKey); found {
		return cached.(int), nil
	}

	id, err := d.registry.EnsureSchema(ctx, msg.SchemaSubject, schema)
	if err != nil {
		return 0, err
	}
	d.schemaIDCache.Store(cacheKey, id)
	return id, nil
}

const markPublishedSQL = `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`

func (d *Dispatcher) markPublished(ctx context.Context, messages []Message) error {
	_, err := d.pool.Exec(ctx, markPublishedSQL, eventIDs(messages))
	return err
}

func eventIDs(messages []Message) []int64 {
	ids := make([]int64, len(messages))
	for i, msg := range messages {
		ids[i] = msg.EventID
	}
	return ids
}

// Message is a claimed outbox row. Field order matches the claim query.
type Message struct {
	EventID       int64
	OwnerID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// encodeWireFormat applies Confluent framing for Schema Registry aware payloads.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
