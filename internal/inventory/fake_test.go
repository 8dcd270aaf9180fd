package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

// memStore serialises transactions behind one mutex, which stands in for the
// row and claim locks of the postgres repository. A failed fn leaves the
// store untouched. Like the uuid columns it refuses malformed ids and matches
// well-formed ones in any case.
type memStore struct {
	mu     sync.Mutex
	inv    map[string]Inventory
	ops    []Operation
	claims map[string]Outcome

	failAdjust error
	failTx     error
}

func newMemStore(stock ...Inventory) *memStore {
	m := &memStore{inv: map[string]Inventory{}, claims: map[string]Outcome{}}
	for _, inv := range stock {
		m.inv[inv.ID] = inv
	}
	return m
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTx != nil {
		return m.failTx
	}
	tx := &memTx{
		inv:        make(map[string]Inventory, len(m.inv)),
		ops:        append([]Operation(nil), m.ops...),
		claims:     make(map[string]Outcome, len(m.claims)),
		failAdjust: m.failAdjust,
	}
	for k, v := range m.inv {
		tx.inv[k] = v
	}
	for k, v := range m.claims {
		tx.claims[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.inv, m.ops, m.claims = tx.inv, tx.ops, tx.claims
	return nil
}

func (m *memStore) FindByID(_ context.Context, id string) (Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.inv[id]
	if !ok {
		return Inventory{}, fmt.Errorf("inventory %s: %w", id, apperr.ErrNotFound)
	}
	return inv, nil
}

func (m *memStore) Search(_ context.Context, term string) ([]Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	term = strings.ToLower(term)
	var out []Inventory
	for _, inv := range m.inv {
		if term == "" || strings.Contains(strings.ToLower(inv.Name), term) || strings.Contains(strings.ToLower(inv.SKU), term) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) OperationsForProduct(_ context.Context, productID string) ([]Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Operation
	for _, op := range m.ops {
		if op.ProductID == productID {
			out = append(out, op)
		}
	}
	return out, nil
}

func (m *memStore) quantity(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inv[id].Quantity
}

func (m *memStore) orderOps(orderID string) []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Operation
	for _, op := range m.ops {
		if op.OrderID != nil && *op.OrderID == orderID {
			out = append(out, op)
		}
	}
	return out
}

func (m *memStore) claim(orderID string) (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.claims[orderID]
	return o, ok
}

type memTx struct {
	inv        map[string]Inventory
	ops        []Operation
	claims     map[string]Outcome
	failAdjust error
}

// pgUUID mimics postgres reading a uuid column: any accepted spelling comes
// back lowercase, anything else is a syntax error.
func pgUUID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("invalid input syntax for type uuid: %q", id)
	}
	return u.String(), nil
}

func (t *memTx) ClaimOrder(_ context.Context, orderID string) (bool, error) {
	if _, err := pgUUID(orderID); err != nil {
		return false, err
	}
	if _, ok := t.claims[orderID]; ok {
		return false, nil
	}
	t.claims[orderID] = ""
	return true, nil
}

func (t *memTx) LockOrderClaim(_ context.Context, orderID string) (Outcome, error) {
	o, ok := t.claims[orderID]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return o, nil
}

func (t *memTx) ResolveOrderClaim(_ context.Context, orderID string, outcome Outcome) error {
	t.claims[orderID] = outcome
	return nil
}

func (t *memTx) OperationsForOrder(_ context.Context, orderID string) ([]Operation, error) {
	var out []Operation
	for _, op := range t.ops {
		if op.OrderID != nil && *op.OrderID == orderID {
			out = append(out, op)
		}
	}
	return out, nil
}

func (t *memTx) AppendOperations(_ context.Context, ops []Operation) error {
	for _, op := range ops {
		if _, err := pgUUID(op.ProductID); err != nil {
			return err
		}
		if op.OrderID != nil {
			if _, err := pgUUID(*op.OrderID); err != nil {
				return err
			}
		}
	}
	t.ops = append(t.ops, ops...)
	return nil
}

func (t *memTx) LockInventories(_ context.Context, ids []string) (map[string]Inventory, error) {
	out := map[string]Inventory{}
	for _, id := range ids {
		key, err := pgUUID(id)
		if err != nil {
			return nil, err
		}
		if inv, ok := t.inv[key]; ok {
			out[inv.ID] = inv
		}
	}
	return out, nil
}

func (t *memTx) AdjustQuantity(_ context.Context, id string, delta int) (Inventory, error) {
	if t.failAdjust != nil {
		return Inventory{}, t.failAdjust
	}
	key, err := pgUUID(id)
	if err != nil {
		return Inventory{}, err
	}
	inv, ok := t.inv[key]
	if !ok {
		return Inventory{}, apperr.ErrNotFound
	}
	if inv.Quantity+delta < 0 {
		return Inventory{}, apperr.ErrValidation
	}
	inv.Quantity += delta
	t.inv[key] = inv
	return inv, nil
}

func (t *memTx) FindByIDForUpdate(_ context.Context, id string) (Inventory, error) {
	inv, ok := t.inv[id]
	if !ok {
		return Inventory{}, fmt.Errorf("inventory %s: %w", id, apperr.ErrNotFound)
	}
	return inv, nil
}

func (t *memTx) Insert(_ context.Context, inv Inventory) error {
	if err := t.unique(inv); err != nil {
		return err
	}
	t.inv[inv.ID] = inv
	return nil
}

func (t *memTx) Update(_ context.Context, inv Inventory) error {
	if err := t.unique(inv); err != nil {
		return err
	}
	t.inv[inv.ID] = inv
	return nil
}

func (t *memTx) unique(inv Inventory) error {
	for _, other := range t.inv {
		if other.ID != inv.ID && (other.Name == inv.Name || other.SKU == inv.SKU) {
			return apperr.ErrConflict
		}
	}
	return nil
}

type published struct {
	Topic   string
	Key     string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Topic: topic, Key: key, Payload: payload})
	return nil
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

func (p *recordingPublisher) topics() []string {
	var out []string
	for _, e := range p.all() {
		out = append(out, e.Topic)
	}
	return out
}

func newTestService(t *testing.T, store *memStore) (*Service, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	svc := NewService(store, pub, zaptest.NewLogger(t))
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, pub
}

func stock(name string, qty int) Inventory {
	return Inventory{ID: uuid.NewString(), Name: name, SKU: strings.ToUpper(name), Quantity: qty}
}
