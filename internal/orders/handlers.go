package orders

import (
	"context"

	"github.com/ariefcatur/go-order-saga/internal/events"
	"github.com/ariefcatur/go-order-saga/internal/kafka"
)

func (s *Service) Routes() kafka.Routes {
	return kafka.Routes{
		events.TopicOrderCompleted: s.HandleOrderCompleted,
		events.TopicOrderRejected:  s.HandleOrderRejected,
	}
}

// HandleOrderCompleted acknowledges a stale transition. A missing order is
// returned as an error so it ends up dead-lettered.
func (s *Service) HandleOrderCompleted(ctx context.Context, env events.Envelope) error {
	p, err := events.Decode[events.OrderCompleted](env)
	if err != nil {
		return err
	}
	_, err = s.Complete(ctx, p.OrderID)
	return err
}

func (s *Service) HandleOrderRejected(ctx context.Context, env events.Envelope) error {
	p, err := events.Decode[events.OrderRejected](env)
	if err != nil {
		return err
	}
	_, err = s.Reject(ctx, p.OrderID, p.Reason)
	return err
}
