// Package consumer reads activity events from Kafka and hands them to a Handler.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/outbox"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Message is the decoded representation of a Kafka record emitted by the outbox dispatcher.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	OwnerID       string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *zap.Logger
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches and handles records until ctx is cancelled. A record is
// committed once its handler succeeds, or straight away when it cannot be
// decoded; handler failures leave the offset uncommitted for redelivery.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := p.reader.FetchMessage(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			p.logger.Warn("fetch failed", zap.Error(err))
			continue
		}

		if p.process(ctx, record) {
			if err := p.reader.CommitMessages(ctx, record); err != nil {
				p.logger.Warn("commit failed",
					zap.String("topic", record.Topic),
					zap.Int64("offset", record.Offset),
					zap.Error(err))
			}
		}
	}
}

// process reports whether record should be committed.
func (p *Processor) process(ctx context.Context, record kafka.Message) bool {
	msg, err := decodeMessage(record)
	if err != nil {
		eventType, _ := headerValue(record, outbox.HeaderEventType)
		observeUndecodable(record.Topic, string(eventType))
		p.logger.Warn("skipping undecodable record",
			zap.String("topic", record.Topic),
			zap.Int("partition", record.Partition),
			zap.Int64("offset", record.Offset),
			zap.Error(err))
		return true
	}

	start := time.Now()
	if err := p.handler.Handle(ctx, msg); err != nil {
		observeFailed(msg)
		p.logger.Error("handler failed",
			zap.String("event_type", msg.EventType),
			zap.String("owner_id", msg.OwnerID),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return false
	}
	observeHandled(msg, time.Since(start))
	return true
}

func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) < 5 {
		return Message{}, fmt.Errorf("invalid payload length: %d", len(msg.Value))
	}
	if msg.Value[0] != 0 {
		return Message{}, fmt.Errorf("unknown magic byte: %d", msg.Value[0])
	}

	eventType, ok := headerValue(msg, outbox.HeaderEventType)
	if !ok {
		return Message{}, errors.New("missing event_type header")
	}
	ownerID, _ := headerValue(msg, outbox.HeaderOwnerID)
	schemaSubject, _ := headerValue(msg, outbox.HeaderSchemaSubject)

	payload := json.RawMessage(append([]byte(nil), msg.Value[5:]...))
	if !json.Valid(payload) {
		return Message{}, errors.New("payload is not valid JSON")
	}

	owner := string(ownerID)
	if owner == "" {
		var body struct {
			OwnerID string `json:"owner_id"`
		}
		if err := json.Unmarshal(payload, &body); err == nil {
			owner = body.OwnerID
		}
	}
	if owner == "" {
		return Message{}, errors.New("missing owner_id")
	}

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     string(eventType),
		OwnerID:       owner,
		SchemaSubject: string(schemaSubject),
		SchemaID:      int(binary.BigEndian.Uint32(msg.Value[1:5])),
		Payload:       payload,
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
