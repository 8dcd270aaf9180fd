package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"
)

// memRepo matches ids the way a uuid column does: any accepted spelling
// finds the row stored under its lowercase form.
type memRepo struct {
	mu     sync.Mutex
	orders map[string]Order
}

func newMemRepo(seed ...Order) *memRepo {
	r := &memRepo{orders: map[string]Order{}}
	for _, o := range seed {
		r.orders[o.ID] = o
	}
	return r
}

func (r *memRepo) Create(_ context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[pgKey(id)]
	if !ok {
		return Order{}, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	return o, nil
}

func (r *memRepo) List(context.Context) ([]Order, error) {
	return r.filter(func(Order) bool { return true }), nil
}

func (r *memRepo) ListByCustomer(_ context.Context, customerID string) ([]Order, error) {
	return r.filter(func(o Order) bool { return o.CustomerID == customerID }), nil
}

func (r *memRepo) filter(keep func(Order) bool) []Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Order{}
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memRepo) Transition(_ context.Context, id string, decide DecideFunc) (Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[pgKey(id)]
	if !ok {
		return Order{}, false, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	next, apply := decide(o)
	if !apply {
		return o, false, nil
	}
	o.Status = next
	r.orders[o.ID] = o
	return o, true, nil
}

func pgKey(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

func (r *memRepo) status(id string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Status
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]Order
}

func newMemCache() *memCache { return &memCache{entries: map[string]Order{}} }

func (c *memCache) Get(_ context.Context, id string) (Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.entries[id]
	return o, ok, nil
}

func (c *memCache) Set(_ context.Context, id string, o Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = o
	return nil
}

func (c *memCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

func (c *memCache) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	args := m.Called(ctx, topic, key, payload)
	return args.Error(0)
}

func newTestService(t *testing.T, repo *memRepo) (*Service, *memCache, *mockPublisher) {
	t.Helper()
	cache := newMemCache()
	pub := &mockPublisher{}
	svc := NewService(repo, cache, pub, zaptest.NewLogger(t))
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { pub.AssertExpectations(t) })
	return svc, cache, pub
}
