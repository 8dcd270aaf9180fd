package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/ariefcatur/go-order-saga/internal/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type ReserveCommand struct {
	OrderID    string
	CustomerID string
	Items      []Item
}

// Reserve validates the whole order against stock and either takes every item
// out of stock or none of them. The ledger entries and the order claim commit
// with the stock change; events go out afterwards.
//
// A redelivery returns apperr.ErrAlreadyProcessed. A fault inside the
// transaction is fenced with a REJECTED claim, announced, and reported as
// apperr.ErrInternal. Any other error leaves no trace and is safe to retry.
func (s *Service) Reserve(ctx context.Context, cmd ReserveCommand) (ReservationResult, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.reserve")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", cmd.OrderID), attribute.Int("order.items", len(cmd.Items)))

	orderID, ok := canonicalID(cmd.OrderID)
	if !ok {
		return ReservationResult{OrderID: cmd.OrderID}, fmt.Errorf("reserve order %q: %w: malformed order id", cmd.OrderID, apperr.ErrValidation)
	}
	cmd.OrderID = orderID
	if id, ok := canonicalID(cmd.CustomerID); ok {
		cmd.CustomerID = id
	}
	cmd.Items = canonicalItems(cmd.Items)

	log := s.log.With(zap.String("order_id", cmd.OrderID))

	var res ReservationResult
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		claimed, err := tx.ClaimOrder(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if !claimed {
			return apperr.ErrAlreadyProcessed
		}
		res, err = s.reserveClaimed(ctx, tx, cmd)
		return err
	})

	switch {
	case errors.Is(err, apperr.ErrAlreadyProcessed):
		log.Warn("order already processed by inventory")
		return ReservationResult{OrderID: cmd.OrderID}, fmt.Errorf("reserve order %s: %w", cmd.OrderID, apperr.ErrAlreadyProcessed)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			log.Warn("reservation interrupted", zap.Error(err))
			return ReservationResult{OrderID: cmd.OrderID}, fmt.Errorf("reserve order %s: %w", cmd.OrderID, err)
		}
		log.Error("internal error during inventory processing", zap.Error(err))
		return s.rejectAfterFault(ctx, cmd, err)
	}

	span.SetAttributes(attribute.String("reservation.outcome", string(res.Outcome)))
	if res.Outcome == OutcomeCompleted {
		log.Info("order reserved", zap.Int("items", len(cmd.Items)))
		s.publish(ctx, events.TopicOrderCompleted, cmd.OrderID, events.OrderCompleted{OrderID: cmd.OrderID})
		s.notify(ctx, cmd.CustomerID, MsgOrderCompleted)
	} else {
		log.Info("order rejected", zap.String("reason", res.Reason))
		s.publish(ctx, events.TopicOrderRejected, cmd.OrderID, events.OrderRejected{OrderID: cmd.OrderID, Reason: res.Reason})
		s.notify(ctx, cmd.CustomerID, MsgOrderRejected)
	}
	return res, nil
}

func (s *Service) reserveClaimed(ctx context.Context, tx Tx, cmd ReserveCommand) (ReservationResult, error) {
	stock, err := tx.LockInventories(ctx, productIDs(cmd.Items))
	if err != nil {
		return ReservationResult{}, err
	}

	ops, reason := s.validate(cmd, stock)
	res := ReservationResult{OrderID: cmd.OrderID, Outcome: OutcomeCompleted, Reason: reason}
	if reason != "" {
		res.Outcome = OutcomeRejected
		ops = s.entries(cmd.OrderID, OpOrderRejected, cmd.Items)
	} else {
		for _, it := range cmd.Items {
			if _, err := tx.AdjustQuantity(ctx, it.ProductID, -it.Quantity); err != nil {
				return ReservationResult{}, fmt.Errorf("decrement %s: %w", it.ProductID, err)
			}
		}
	}

	if err := tx.AppendOperations(ctx, ops); err != nil {
		return ReservationResult{}, err
	}
	if err := tx.ResolveOrderClaim(ctx, cmd.OrderID, res.Outcome); err != nil {
		return ReservationResult{}, err
	}
	res.Operations = ops
	return res, nil
}

// validate walks items in order and stops at the first failure. Quantity is
// tracked per product so a product listed twice is checked against what the
// earlier lines left over.
func (s *Service) validate(cmd ReserveCommand, stock map[string]Inventory) ([]Operation, string) {
	remaining := make(map[string]int, len(stock))
	for id, inv := range stock {
		remaining[id] = inv.Quantity
	}

	ops := make([]Operation, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		have, ok := remaining[it.ProductID]
		switch {
		case !ok:
			return nil, fmt.Sprintf("Product not found: %s", it.ProductID)
		case it.Quantity <= 0:
			return nil, fmt.Sprintf("Invalid quantity: %d for item: %s", it.Quantity, it.ProductID)
		case have < it.Quantity:
			return nil, fmt.Sprintf("Insufficient stock: %d for item: %s", it.Quantity, it.ProductID)
		}
		remaining[it.ProductID] = have - it.Quantity
		ops = append(ops, Operation{
			ID:          s.newID(),
			Type:        OpOrderCompleted,
			OrderID:     ptr(cmd.OrderID),
			ProductID:   it.ProductID,
			OldQuantity: ptr(have),
			NewQuantity: ptr(have - it.Quantity),
			CreatedAt:   s.now(),
		})
	}
	return ops, ""
}

// rejectAfterFault writes the REJECTED claim in a fresh transaction and only
// then announces the rejection. If the fence cannot be written nothing is
// announced and the returned error is retryable.
func (s *Service) rejectAfterFault(ctx context.Context, cmd ReserveCommand, cause error) (ReservationResult, error) {
	log := s.log.With(zap.String("order_id", cmd.OrderID))

	res := ReservationResult{OrderID: cmd.OrderID, Outcome: OutcomeRejected, Reason: ReasonInternal}
	fenced := false
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		claimed, err := tx.ClaimOrder(ctx, cmd.OrderID)
		if err != nil || !claimed {
			return err
		}
		fenced = true
		res.Operations = s.entries(cmd.OrderID, OpOrderRejected, cmd.Items)
		if err := tx.AppendOperations(ctx, res.Operations); err != nil {
			return err
		}
		return tx.ResolveOrderClaim(ctx, cmd.OrderID, OutcomeRejected)
	})
	switch {
	case err != nil:
		log.Error("fence rejected order failed", zap.Error(err), zap.NamedError("cause", cause))
		return ReservationResult{OrderID: cmd.OrderID}, fmt.Errorf("reserve order %s: fence after %v: %w", cmd.OrderID, cause, err)
	case !fenced:
		log.Warn("order claimed by a concurrent delivery")
		return ReservationResult{OrderID: cmd.OrderID}, fmt.Errorf("reserve order %s: %w", cmd.OrderID, apperr.ErrAlreadyProcessed)
	}

	s.publish(ctx, events.TopicOrderRejected, cmd.OrderID, events.OrderRejected{OrderID: cmd.OrderID, Reason: ReasonInternal})
	s.notify(ctx, cmd.CustomerID, MsgOrderRejected)
	return res, fmt.Errorf("reserve order %s: %w: %w", cmd.OrderID, apperr.ErrInternal, cause)
}

// entries builds one quantity-less entry per item. Items whose product id is
// not a uuid cannot reference a ledger row and are skipped; the order claim
// still fences the order.
func (s *Service) entries(orderID string, typ OperationType, items []Item) []Operation {
	ops := make([]Operation, 0, len(items))
	for _, it := range items {
		if _, ok := canonicalID(it.ProductID); !ok {
			continue
		}
		ops = append(ops, Operation{
			ID:        s.newID(),
			Type:      typ,
			OrderID:   ptr(orderID),
			ProductID: it.ProductID,
			CreatedAt: s.now(),
		})
	}
	return ops
}

func (s *Service) publish(ctx context.Context, topic, key string, payload any) {
	if err := s.pub.Publish(ctx, topic, key, payload); err != nil {
		s.log.Error("publish failed", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, customerID, message string) {
	s.publish(ctx, events.TopicNotificationCreated, customerID, events.NotificationCreated{CustomerID: customerID, Message: message})
}

// productIDs returns the distinct, well-formed product ids in sorted order.
// Malformed ids cannot exist in the store and are left to validation.
func productIDs(items []Item) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		id, ok := canonicalID(it.ProductID)
		if !ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// canonicalID returns id in the lowercase hyphenated form postgres hands
// back for uuid columns. ok is false when id is not a uuid.
func canonicalID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return id, false
	}
	return u.String(), true
}

// canonicalItems rewrites well-formed product ids to their canonical form so
// they match the keys of LockInventories. Malformed ids are kept verbatim for
// the rejection reason.
func canonicalItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it.ProductID, _ = canonicalID(it.ProductID)
		out[i] = it
	}
	return out
}
