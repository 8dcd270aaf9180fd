package inventory

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/ariefcatur/go-order-saga/internal/events"
	"github.com/ariefcatur/go-order-saga/internal/kafka"
)

// Routes wires the inventory consumers.
func (s *Service) Routes() kafka.Routes {
	return kafka.Routes{
		events.TopicOrderCreated:   s.HandleOrderCreated,
		events.TopicOrderCancelled: s.HandleOrderCancelled,
	}
}

// HandleOrderCreated acknowledges duplicates and fenced internal faults. An
// interrupted or unfenced reservation left nothing behind and is retried.
func (s *Service) HandleOrderCreated(ctx context.Context, env events.Envelope) error {
	p, err := events.Decode[events.OrderCreated](env)
	if err != nil {
		return err
	}
	_, err = s.Reserve(ctx, ReserveCommand{OrderID: p.OrderID, CustomerID: p.CustomerID, Items: fromEvent(p.Items)})
	if err != nil && !errors.Is(err, apperr.ErrAlreadyProcessed) && !errors.Is(err, apperr.ErrInternal) {
		return err
	}
	return nil
}

// HandleOrderCancelled is safe to retry: a second run finds the CANCELLED
// entries and stops.
func (s *Service) HandleOrderCancelled(ctx context.Context, env events.Envelope) error {
	p, err := events.Decode[events.OrderCancelled](env)
	if err != nil {
		return err
	}
	_, err = s.Compensate(ctx, p.OrderID, fromEvent(p.Items))
	return err
}

func fromEvent(items []events.Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}
