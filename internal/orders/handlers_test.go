package orders

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ariefcatur/go-order-saga/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, topic string, payload any) events.Envelope {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Envelope{EventID: uuid.NewString(), EventType: topic, EventVersion: events.EnvelopeVersion, Payload: b}
}

func TestHandlers(t *testing.T) {
	done, rejected := pendingOrder(), pendingOrder()
	repo := newMemRepo(done, rejected)
	svc, _, _ := newTestService(t, repo)
	routes := svc.Routes()

	require.NoError(t, routes[events.TopicOrderCompleted](context.Background(),
		envelope(t, events.TopicOrderCompleted, events.OrderCompleted{OrderID: done.ID})))
	require.NoError(t, routes[events.TopicOrderRejected](context.Background(),
		envelope(t, events.TopicOrderRejected, events.OrderRejected{OrderID: rejected.ID, Reason: "Insufficient stock: 5 for item: x"})))

	assert.Equal(t, StatusCompleted, repo.status(done.ID))
	assert.Equal(t, StatusRejected, repo.status(rejected.ID))

	// stale redelivery is acknowledged
	assert.NoError(t, svc.HandleOrderRejected(context.Background(),
		envelope(t, events.TopicOrderRejected, events.OrderRejected{OrderID: done.ID})))
	assert.Equal(t, StatusCompleted, repo.status(done.ID))
}

func TestHandlers_MissingOrderFails(t *testing.T) {
	svc, _, _ := newTestService(t, newMemRepo())
	err := svc.HandleOrderCompleted(context.Background(),
		envelope(t, events.TopicOrderCompleted, events.OrderCompleted{OrderID: uuid.NewString()}))
	assert.Error(t, err)
}
