package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/events"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []kafka.Message
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakeDLQ struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (d *fakeDLQ) WriteSync(_ context.Context, m kafka.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, m)
	return nil
}

func (d *fakeDLQ) all() []kafka.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]kafka.Message(nil), d.msgs...)
}

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDedup) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id], nil
}

func (d *memDedup) Mark(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = true
	return nil
}

func envelopeMessage(t *testing.T, topic, eventID, key string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(events.Envelope{
		EventID:      eventID,
		EventType:    topic,
		EventVersion: events.EnvelopeVersion,
		Payload:      json.RawMessage(`{"orderId":"` + key + `"}`),
	})
	require.NoError(t, err)
	return kafka.Message{Topic: topic, Key: []byte(key), Value: b}
}

func runConsumer(t *testing.T, c *Consumer, r *fakeReader, want int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return r.commits() == want }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestConsumer_RoutesAndCommits(t *testing.T) {
	r := newFakeReader(
		envelopeMessage(t, events.TopicOrderCreated, "e1", "o1"),
		envelopeMessage(t, events.TopicOrderCancelled, "e2", "o2"),
	)
	var mu sync.Mutex
	got := map[string]string{}
	h := func(_ context.Context, env events.Envelope) error {
		mu.Lock()
		defer mu.Unlock()
		got[env.EventID] = env.EventType
		return nil
	}
	c := newConsumer(r, ConsumerConfig{Workers: 2, MaxAttempts: 3}, Routes{
		events.TopicOrderCreated:   h,
		events.TopicOrderCancelled: h,
	}, &fakeDLQ{}, nil, zaptest.NewLogger(t))

	runConsumer(t, c, r, 2)

	assert.Equal(t, map[string]string{
		"e1": events.TopicOrderCreated,
		"e2": events.TopicOrderCancelled,
	}, got)
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	r := newFakeReader(envelopeMessage(t, events.TopicOrderCreated, "e1", "o1"))
	dlq := &fakeDLQ{}
	var mu sync.Mutex
	calls := 0
	c := newConsumer(r, ConsumerConfig{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond}, Routes{
		events.TopicOrderCreated: func(context.Context, events.Envelope) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return errors.New("db down")
		},
	}, dlq, nil, zaptest.NewLogger(t))

	runConsumer(t, c, r, 1)

	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()
	dead := dlq.all()
	require.Len(t, dead, 1)
	assert.Equal(t, "order.created.dlq", dead[0].Topic)
	assert.Equal(t, []byte("o1"), dead[0].Key)
	h := headerMap(dead[0].Headers)
	assert.Equal(t, "db down", h[HeaderError])
	assert.Equal(t, "3", h[HeaderAttempts])
	assert.Equal(t, events.TopicOrderCreated, h[HeaderOriginalTopic])
}

func TestConsumer_ShutdownDuringHandlerLeavesOffset(t *testing.T) {
	r := newFakeReader(envelopeMessage(t, events.TopicOrderCreated, "e1", "o1"))
	dlq := &fakeDLQ{}
	ctx, cancel := context.WithCancel(context.Background())
	c := newConsumer(r, ConsumerConfig{Workers: 1, MaxAttempts: 1}, Routes{
		events.TopicOrderCreated: func(context.Context, events.Envelope) error {
			cancel()
			return context.Canceled
		},
	}, dlq, nil, zaptest.NewLogger(t))

	require.NoError(t, c.Start(ctx))

	assert.Zero(t, r.commits())
	assert.Empty(t, dlq.all())
}

func TestConsumer_RecoversOnRetry(t *testing.T) {
	r := newFakeReader(envelopeMessage(t, events.TopicOrderCreated, "e1", "o1"))
	dlq := &fakeDLQ{}
	var mu sync.Mutex
	calls := 0
	c := newConsumer(r, ConsumerConfig{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond}, Routes{
		events.TopicOrderCreated: func(context.Context, events.Envelope) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				return errors.New("transient")
			}
			return nil
		},
	}, dlq, nil, zaptest.NewLogger(t))

	runConsumer(t, c, r, 1)

	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
	assert.Empty(t, dlq.all())
}

func TestConsumer_SkipsSeenEvents(t *testing.T) {
	r := newFakeReader(
		envelopeMessage(t, events.TopicOrderCreated, "e1", "o1"),
		envelopeMessage(t, events.TopicOrderCreated, "e1", "o1"),
	)
	var mu sync.Mutex
	calls := 0
	c := newConsumer(r, ConsumerConfig{Workers: 1, MaxAttempts: 1}, Routes{
		events.TopicOrderCreated: func(context.Context, events.Envelope) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return nil
		},
	}, &fakeDLQ{}, &memDedup{seen: map[string]bool{}}, zaptest.NewLogger(t))

	runConsumer(t, c, r, 2)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestConsumer_UndecodableGoesToDeadLetter(t *testing.T) {
	r := newFakeReader(kafka.Message{Topic: events.TopicOrderCreated, Key: []byte("o1"), Value: []byte("{not json")})
	dlq := &fakeDLQ{}
	c := newConsumer(r, ConsumerConfig{Workers: 1, MaxAttempts: 3}, Routes{
		events.TopicOrderCreated: func(context.Context, events.Envelope) error {
			t.Fatal("handler must not run")
			return nil
		},
	}, dlq, nil, zaptest.NewLogger(t))

	runConsumer(t, c, r, 1)

	require.Len(t, dlq.all(), 1)
	assert.Equal(t, "0", headerMap(dlq.all()[0].Headers)[HeaderAttempts])
}
