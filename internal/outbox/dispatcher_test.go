package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/events"
)

func TestEncodeWireFormat(t *testing.T) {
	frame := encodeWireFormat(258, []byte(`{"a":1}`))

	require.Equal(t, byte(0), frame[0])
	require.Equal(t, uint32(258), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, `{"a":1}`, string(frame[5:]))
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	m := NewDLQManager(nil, 3, time.Minute, nil)

	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 2*time.Minute, m.backoffDelay(2))
	require.Equal(t, 8*time.Minute, m.backoffDelay(4))
	require.Equal(t, time.Hour, m.backoffDelay(10))
	require.Equal(t, time.Hour, m.backoffDelay(200))
	require.Equal(t, time.Minute, m.backoffDelay(0))
}

func TestNewDLQManagerDefaults(t *testing.T) {
	m := NewDLQManager(nil, 0, 0, nil)
	require.Equal(t, 5, m.maxRetries)
	require.Equal(t, time.Minute, m.baseDelay)
	require.NotNil(t, m.logger)
}

func TestNewDispatcherReplacesNonPositiveInterval(t *testing.T) {
	require.Equal(t, time.Second, NewDispatcher(nil, &stubProducer{}, &stubRegistry{}, 0, 10).pollInterval)
	require.Equal(t, time.Second, NewDispatcher(nil, &stubProducer{}, &stubRegistry{}, -time.Minute, 10).pollInterval)
	require.Equal(t, 5*time.Second, NewDispatcher(nil, &stubProducer{}, &stubRegistry{}, 5*time.Second, 10).pollInterval)
}

func TestDeliverGroupsByTopicAndSetsHeaders(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 11}
	d := NewDispatcher(nil, producer, registry, time.Second, 10)

	err := d.deliver(context.Background(), []Message{
		{EventID: 1, OwnerID: "u1", EventType: events.TypeActivityCreated, Topic: "activity_events", SchemaSubject: "activity_created-value", PartitionKey: "u1", Payload: []byte(`{}`)},
		{EventID: 2, OwnerID: "u2", EventType: events.TypeActivityDeleted, Topic: "activity_events", SchemaSubject: "activity_deleted-value", PartitionKey: "u2", Payload: []byte(`{}`)},
		{EventID: 3, OwnerID: "u1", EventType: events.TypeActivityCreated, Topic: "audit", SchemaSubject: "activity_created-value", PartitionKey: "u1", Payload: []byte(`{}`)},
	})
	require.NoError(t, err)

	require.Len(t, producer.writes, 2)
	require.Equal(t, "activity_events", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	require.Equal(t, "audit", producer.writes[1].topic)

	first := producer.writes[0].messages[0]
	require.Equal(t, "u1", string(first.Key))
	require.Equal(t, events.TypeActivityCreated, headerValue(first, HeaderEventType))
	require.Equal(t, "u1", headerValue(first, HeaderOwnerID))
	require.Equal(t, "activity_created-value", headerValue(first, HeaderSchemaSubject))
	require.Equal(t, uint32(11), binary.BigEndian.Uint32(first.Value[1:5]))

	// created-value is cached across topics; deleted-value needs its own lookup.
	require.Len(t, registry.calls, 2)
}

func TestDeliverStopsOnRegistryError(t *testing.T) {
	producer := &stubProducer{}
	d := NewDispatcher(nil, producer, &stubRegistry{err: errors.New("registry down")}, time.Second, 10)

	err := d.deliver(context.Background(), []Message{
		{EventType: events.TypeActivityUpdated, Topic: "activity_events", SchemaSubject: "activity_updated-value"},
	})
	require.ErrorContains(t, err, "registry down")
	require.Empty(t, producer.writes)
}

func TestSchemaCatalogCoversEveryEvent(t *testing.T) {
	for _, eventType := range []string{events.TypeActivityCreated, events.TypeActivityUpdated, events.TypeActivityDeleted} {
		require.Contains(t, schemaCatalog, eventType)
	}
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

type schemaCall struct {
	subject string
	schema  string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, schemaCall{subject: subject, schema: schema})
	if s.err != nil {
		return 0, s.err
	}
	if s.id == 0 {
		s.id = 1
	}
	return s.id, nil
}
