package notification

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/ariefcatur/go-order-saga/internal/events"
	"github.com/ariefcatur/go-order-saga/internal/kafka"
	"go.uber.org/zap"
)

func (s *Service) Routes() kafka.Routes {
	return kafka.Routes{
		events.TopicNotificationCreated: s.HandleNotificationCreated,
	}
}

// HandleNotificationCreated drops the request when the customer has no
// preference; delivery is best effort.
func (s *Service) HandleNotificationCreated(ctx context.Context, env events.Envelope) error {
	p, err := events.Decode[events.NotificationCreated](env)
	if err != nil {
		return err
	}
	_, err = s.Notify(ctx, p.CustomerID, p.Message)
	if errors.Is(err, apperr.ErrNotFound) {
		s.log.Warn("no notification preference, dropped", zap.String("customer_id", p.CustomerID), zap.String("message", p.Message))
		return nil
	}
	return err
}
