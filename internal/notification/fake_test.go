package notification

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"go.uber.org/zap/zaptest"
)

type memRepo struct {
	mu    sync.Mutex
	prefs map[string]Preference
	notes []Notification
}

func newMemRepo(prefs ...Preference) *memRepo {
	r := &memRepo{prefs: map[string]Preference{}}
	for _, p := range prefs {
		r.prefs[p.ID] = p
	}
	return r
}

func (r *memRepo) InsertPreference(_ context.Context, p Preference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.prefs {
		if other.CustomerID == p.CustomerID {
			return apperr.ErrConflict
		}
	}
	r.prefs[p.ID] = p
	return nil
}

func (r *memRepo) UpdatePreference(_ context.Context, p Preference) (Preference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.prefs[p.ID]
	if !ok {
		return Preference{}, apperr.ErrNotFound
	}
	for _, other := range r.prefs {
		if other.ID != p.ID && other.CustomerID == p.CustomerID {
			return Preference{}, apperr.ErrConflict
		}
	}
	p.CreatedAt = cur.CreatedAt
	r.prefs[p.ID] = p
	return p, nil
}

func (r *memRepo) FindPreference(_ context.Context, id string) (Preference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prefs[id]
	if !ok {
		return Preference{}, fmt.Errorf("preference %s: %w", id, apperr.ErrNotFound)
	}
	return p, nil
}

func (r *memRepo) FindPreferenceByCustomer(_ context.Context, customerID string) (Preference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.prefs {
		if p.CustomerID == customerID {
			return p, nil
		}
	}
	return Preference{}, fmt.Errorf("preference for %s: %w", customerID, apperr.ErrNotFound)
}

func (r *memRepo) InsertNotifications(_ context.Context, ns []Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, ns...)
	return nil
}

func (r *memRepo) NotificationsFor(_ context.Context, recipientID string) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notes {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memRepo) Dispatchable(_ context.Context, limit int) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notes {
		if (n.Status == StatusPending || n.Status == StatusFailed) && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notes {
		if r.notes[i].ID == id {
			r.notes[i].Status = status
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (r *memRepo) statuses() map[string]Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]Status{}
	for _, n := range r.notes {
		out[n.ID] = n.Status
	}
	return out
}

func newTestService(t *testing.T, repo *memRepo) *Service {
	t.Helper()
	svc := NewService(repo, zaptest.NewLogger(t))
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func str(s string) *string { return &s }
