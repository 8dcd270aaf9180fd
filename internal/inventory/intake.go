package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SaveInventory creates a product (no ID) or updates one in place. Only
// quantity-changing saves are ledgered.
type SaveInventory struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

func (in SaveInventory) Validate() error {
	if in.ID != "" {
		if _, err := uuid.Parse(in.ID); err != nil {
			return fmt.Errorf("%w: id must be a uuid", apperr.ErrValidation)
		}
	} else {
		if strings.TrimSpace(in.Name) == "" {
			return fmt.Errorf("%w: name is required when id is not provided", apperr.ErrValidation)
		}
		if strings.TrimSpace(in.SKU) == "" {
			return fmt.Errorf("%w: sku is required when id is not provided", apperr.ErrValidation)
		}
	}
	if in.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", apperr.ErrValidation)
	}
	return nil
}

func (s *Service) SaveInventory(ctx context.Context, in SaveInventory) (Inventory, error) {
	if err := in.Validate(); err != nil {
		return Inventory{}, err
	}

	var saved Inventory
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		if in.ID == "" {
			saved = Inventory{ID: s.newID(), Name: in.Name, SKU: in.SKU, Quantity: in.Quantity}
			if err := tx.Insert(ctx, saved); err != nil {
				return err
			}
			return tx.AppendOperations(ctx, []Operation{s.stockEntry(OpStockCreated, saved.ID, 0, in.Quantity)})
		}

		cur, err := tx.FindByIDForUpdate(ctx, in.ID)
		if err != nil {
			return err
		}
		saved = cur
		if strings.TrimSpace(in.Name) != "" {
			saved.Name = in.Name
		}
		if strings.TrimSpace(in.SKU) != "" {
			saved.SKU = in.SKU
		}
		saved.Quantity = in.Quantity
		if err := tx.Update(ctx, saved); err != nil {
			return err
		}
		if cur.Quantity == in.Quantity {
			return nil
		}
		return tx.AppendOperations(ctx, []Operation{s.stockEntry(OpStockUpdated, saved.ID, cur.Quantity, in.Quantity)})
	})
	if err != nil {
		return Inventory{}, fmt.Errorf("service: save inventory: %w", err)
	}
	s.log.Info("inventory saved", zap.String("product_id", saved.ID), zap.Int("quantity", saved.Quantity))
	return saved, nil
}

func (s *Service) stockEntry(typ OperationType, productID string, old, updated int) Operation {
	return Operation{
		ID:          s.newID(),
		Type:        typ,
		ProductID:   productID,
		OldQuantity: ptr(old),
		NewQuantity: ptr(updated),
		CreatedAt:   s.now(),
	}
}

func (s *Service) Get(ctx context.Context, id string) (Inventory, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Inventory{}, fmt.Errorf("service: get inventory: %w", err)
	}
	return inv, nil
}

// Search matches term case-insensitively against name or sku. An empty term
// lists everything. Results are ordered by name.
func (s *Service) Search(ctx context.Context, term string) ([]Inventory, error) {
	list, err := s.repo.Search(ctx, strings.TrimSpace(term))
	if err != nil {
		return nil, fmt.Errorf("service: search inventories: %w", err)
	}
	return list, nil
}

func (s *Service) History(ctx context.Context, id string) (History, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return History{}, fmt.Errorf("service: inventory history: %w", err)
	}
	ops, err := s.repo.OperationsForProduct(ctx, id)
	if err != nil {
		return History{}, fmt.Errorf("service: inventory history: %w", err)
	}
	if ops == nil {
		ops = []Operation{}
	}
	return History{Inventory: inv, History: ops}, nil
}
