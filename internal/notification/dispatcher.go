package notification

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sender delivers one notification over its channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Dispatcher polls PENDING and FAILED notifications and hands them to a
// Sender. Failed rows are picked up again on the next tick.
type Dispatcher struct {
	repo     Repository
	sender   Sender
	interval time.Duration
	batch    int
	log      *zap.Logger
}

func NewDispatcher(repo Repository, sender Sender, interval time.Duration, batch int, log *zap.Logger) *Dispatcher {
	if batch <= 0 {
		batch = 100
	}
	return &Dispatcher{repo: repo, sender: sender, interval: interval, batch: batch, log: log}
}

func (d *Dispatcher) Run(ctx context.Context) {
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				d.log.Error("dispatch failed", zap.Error(err))
			}
		}
	}
}

// DispatchOnce sends one batch and reports how many went out and how many failed.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (sent, failed int, err error) {
	ns, err := d.repo.Dispatchable(ctx, d.batch)
	if err != nil {
		return 0, 0, err
	}
	if len(ns) == 0 {
		return 0, 0, nil
	}
	d.log.Info("dispatching notifications", zap.Int("count", len(ns)))

	for _, n := range ns {
		if ctx.Err() != nil {
			return sent, failed, ctx.Err()
		}
		log := d.log.With(zap.String("notification_id", n.ID), zap.String("customer_id", n.RecipientID), zap.String("type", string(n.Type)))

		status := StatusSent
		if err := d.sender.Send(ctx, n); err != nil {
			status = StatusFailed
			failed++
			log.Warn("notification failed", zap.Error(err))
		} else {
			sent++
			log.Info("notification sent")
		}
		if err := d.repo.UpdateStatus(ctx, n.ID, status); err != nil {
			return sent, failed, err
		}
	}
	return sent, failed, nil
}

var ErrDeliveryFailed = errors.New("delivery failed")

// RandomSender simulates a channel provider that succeeds with the given rate.
type RandomSender struct {
	rate  float64
	delay time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomSender(rate float64, delay time.Duration) *RandomSender {
	return &RandomSender{rate: rate, delay: delay, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *RandomSender) Send(ctx context.Context, _ Notification) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	ok := s.rnd.Float64() < s.rate
	s.mu.Unlock()
	if !ok {
		return ErrDeliveryFailed
	}
	return nil
}
