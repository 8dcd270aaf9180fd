package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/events"
	"github.com/ariefcatur/go-order-saga/internal/telemetry"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messageSink interface {
	Publish(ctx context.Context, m kafka.Message) error
}

// EventPublisher wraps payloads in an envelope, carries the trace context in
// headers and hands the message to the producer.
type EventPublisher struct {
	sink    messageSink
	service string
	now     func() time.Time
}

var _ events.Publisher = (*EventPublisher)(nil)

func NewEventPublisher(p *Producer, service string) *EventPublisher {
	return &EventPublisher{sink: p, service: service, now: time.Now}
}

func (p *EventPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	occurred := p.now().UTC()
	env := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     topic,
		EventVersion:  events.EnvelopeVersion,
		OccurredAt:    occurred,
		Producer:      p.service,
		CorrelationID: key,
		Payload:       body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", topic, err)
	}

	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(topic)},
		{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(events.EnvelopeVersion))},
	}
	for k, v := range telemetry.Inject(ctx) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return p.sink.Publish(ctx, kafka.Message{
		Topic:   topic,
		Key:     events.PartitionKey(key),
		Value:   value,
		Headers: headers,
		Time:    occurred,
	})
}
