package inventory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Compensate reacts to a cancelled order. Without a claim the order is fenced
// with CANCELLED tombstones, so a late order.created is rejected as already
// processed. A claim resolved REJECTED or CANCELLED is left alone. A reserved
// order gets every COMPLETED entry returned to stock under row locks.
// No event follows in any branch.
func (s *Service) Compensate(ctx context.Context, orderID string, items []Item) (CompensationResult, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.compensate")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	id, ok := canonicalID(orderID)
	if !ok {
		return 0, fmt.Errorf("compensate order %q: %w: malformed order id", orderID, apperr.ErrValidation)
	}
	orderID = id
	items = canonicalItems(items)

	log := s.log.With(zap.String("order_id", orderID))

	var res CompensationResult
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		claimed, err := tx.ClaimOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if claimed {
			res = Fenced
			if err := tx.AppendOperations(ctx, s.entries(orderID, OpOrderCancelled, items)); err != nil {
				return err
			}
			return tx.ResolveOrderClaim(ctx, orderID, OutcomeCancelled)
		}

		outcome, err := tx.LockOrderClaim(ctx, orderID)
		if err != nil {
			return err
		}
		if outcome == OutcomeRejected || outcome == OutcomeCancelled {
			res = AlreadySettled
			return nil
		}
		ops, err := tx.OperationsForOrder(ctx, orderID)
		if err != nil {
			return err
		}
		// claims written without an outcome fall back to the ledger
		for _, op := range ops {
			if op.Type.Settles() {
				res = AlreadySettled
				return nil
			}
		}

		res = Restocked
		if err := s.restock(ctx, tx, orderID, ops); err != nil {
			return err
		}
		return tx.ResolveOrderClaim(ctx, orderID, OutcomeCancelled)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("compensation failed", zap.Error(err))
		return 0, fmt.Errorf("compensate order %s: %w", orderID, err)
	}

	span.SetAttributes(attribute.String("compensation.result", res.String()))
	switch res {
	case AlreadySettled:
		log.Warn("order already rejected or cancelled, nothing to compensate")
	default:
		log.Info("order compensated", zap.Stringer("result", res))
	}
	return res, nil
}

// restock returns each reserved delta to stock and records a CANCELLED entry
// with the quantities around the restock.
func (s *Service) restock(ctx context.Context, tx Tx, orderID string, ops []Operation) error {
	var reserved []Operation
	var ids []Item
	for _, op := range ops {
		if op.Type == OpOrderCompleted {
			reserved = append(reserved, op)
			ids = append(ids, Item{ProductID: op.ProductID})
		}
	}
	if _, err := tx.LockInventories(ctx, productIDs(ids)); err != nil {
		return err
	}

	out := make([]Operation, 0, len(reserved))
	for _, op := range reserved {
		inv, err := tx.AdjustQuantity(ctx, op.ProductID, op.Delta())
		if err != nil {
			return fmt.Errorf("restock %s: %w", op.ProductID, err)
		}
		out = append(out, Operation{
			ID:          s.newID(),
			Type:        OpOrderCancelled,
			OrderID:     ptr(orderID),
			ProductID:   op.ProductID,
			OldQuantity: ptr(inv.Quantity - op.Delta()),
			NewQuantity: ptr(inv.Quantity),
			CreatedAt:   s.now(),
		})
	}
	return tx.AppendOperations(ctx, out)
}
