package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Cache holds recently read orders. Misses and cache faults fall through to
// the repository.
type Cache interface {
	Get(ctx context.Context, id string) (Order, bool, error)
	Set(ctx context.Context, id string, o Order) error
	Delete(ctx context.Context, id string) error
}

type Service struct {
	repo   Repository
	cache  Cache
	pub    events.Publisher
	log    *zap.Logger
	tracer trace.Tracer

	now   func() time.Time
	newID func() string
}

func NewService(repo Repository, cache Cache, pub events.Publisher, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		pub:    pub,
		log:    log,
		tracer: otel.Tracer("orders"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Create stores a PENDING order and starts the saga with order.created.
func (s *Service) Create(ctx context.Context, in CreateOrder) (Order, error) {
	if err := in.Validate(); err != nil {
		return Order{}, err
	}
	ctx, span := s.tracer.Start(ctx, "orders.create")
	defer span.End()

	o := Order{
		ID:         s.newID(),
		CustomerID: canonicalID(in.CustomerID),
		Status:     StatusPending,
		CreatedAt:  s.now().UTC(),
		Items:      make([]Item, len(in.Items)),
	}
	for i, it := range in.Items {
		o.Items[i] = Item{ID: s.newID(), ProductID: canonicalID(it.ProductID), Quantity: it.Quantity}
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	if err := s.repo.Create(ctx, o); err != nil {
		return Order{}, fmt.Errorf("service: create order: %w", err)
	}
	s.cachePut(ctx, o)

	err := s.pub.Publish(ctx, events.TopicOrderCreated, o.ID, events.OrderCreated{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Items:      o.eventItems(),
	})
	if err != nil {
		s.log.Error("publish order.created failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	s.log.Info("order created", zap.String("order_id", o.ID), zap.Int("items", len(o.Items)))
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	id = canonicalID(id)
	if s.cache != nil {
		o, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log.Warn("order cache read failed", zap.String("order_id", id), zap.Error(err))
		} else if ok {
			return o, nil
		}
	}
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Order{}, fmt.Errorf("service: get order: %w", err)
	}
	s.cachePut(ctx, o)
	return o, nil
}

func (s *Service) List(ctx context.Context) ([]Order, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: list orders: %w", err)
	}
	return list, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	list, err := s.repo.ListByCustomer(ctx, canonicalID(customerID))
	if err != nil {
		return nil, fmt.Errorf("service: list customer orders: %w", err)
	}
	return list, nil
}

// Cancel moves the order to CANCELLED and emits order.cancelled for
// compensation. An order already CANCELLED or REJECTED comes back unchanged.
func (s *Service) Cancel(ctx context.Context, id string) (Order, error) {
	id = canonicalID(id)
	ctx, span := s.tracer.Start(ctx, "orders.cancel", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	o, changed, err := s.repo.Transition(ctx, id, func(cur Order) (Status, bool) {
		return StatusCancelled, CanTransition(cur.Status, StatusCancelled)
	})
	if err != nil {
		return Order{}, fmt.Errorf("service: cancel order: %w", err)
	}
	if !changed {
		s.log.Info("order already closed", zap.String("order_id", id), zap.String("status", string(o.Status)))
		return o, nil
	}
	s.cacheDrop(ctx, o.ID)

	if err := s.pub.Publish(ctx, events.TopicOrderCancelled, o.ID, events.OrderCancelled{OrderID: o.ID, Items: o.eventItems()}); err != nil {
		s.log.Error("publish order.cancelled failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	s.log.Info("order cancelled", zap.String("order_id", o.ID))
	return o, nil
}

// Complete applies a successful reservation. false means the order had
// already left PENDING. A missing order is an error.
func (s *Service) Complete(ctx context.Context, id string) (bool, error) {
	return s.settle(ctx, id, StatusCompleted, "")
}

func (s *Service) Reject(ctx context.Context, id, reason string) (bool, error) {
	return s.settle(ctx, id, StatusRejected, reason)
}

func (s *Service) settle(ctx context.Context, id string, to Status, reason string) (bool, error) {
	id = canonicalID(id)
	ctx, span := s.tracer.Start(ctx, "orders.settle", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(to)),
	))
	defer span.End()

	log := s.log.With(zap.String("order_id", id), zap.String("to", string(to)))

	o, changed, err := s.repo.Transition(ctx, id, func(cur Order) (Status, bool) {
		return to, CanTransition(cur.Status, to) && cur.Status == StatusPending
	})
	if err != nil {
		span.RecordError(err)
		log.Error("order transition failed", zap.Error(err))
		return false, fmt.Errorf("service: %s order: %w", to, err)
	}
	if !changed {
		log.Warn("order status already changed", zap.String("status", string(o.Status)))
		return false, nil
	}
	s.cacheDrop(ctx, o.ID)
	if reason != "" {
		log = log.With(zap.String("reason", reason))
	}
	log.Info("order status updated")
	return true, nil
}

func (s *Service) cachePut(ctx context.Context, o Order) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, o.ID, o); err != nil {
		s.log.Warn("order cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (s *Service) cacheDrop(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warn("order cache invalidation failed", zap.String("order_id", id), zap.Error(err))
	}
}
