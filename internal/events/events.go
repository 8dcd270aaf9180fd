package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const EnvelopeVersion = 1

// Envelope wraps every payload on the wire. EventType carries the topic name.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Publisher emits one event. key is the partition key (the order id, or the
// customer id for notifications).
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type OrderCreated struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	Items      []Item `json:"items"`
}

type OrderCancelled struct {
	OrderID string `json:"orderId"`
	Items   []Item `json:"items"`
}

type OrderCompleted struct {
	OrderID string `json:"orderId"`
}

type OrderRejected struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

type NotificationCreated struct {
	CustomerID string `json:"customerId"`
	Message    string `json:"message"`
}

// Decode unwraps the payload of an envelope into T.
func Decode[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return t, nil
}
