package inventory

import "context"

// Repository is the read side plus a transaction entry point. Every engine
// operation runs inside one WithinTx call.
type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	FindByID(ctx context.Context, id string) (Inventory, error)
	Search(ctx context.Context, term string) ([]Inventory, error)
	OperationsForProduct(ctx context.Context, productID string) ([]Operation, error)
}

type Tx interface {
	// ClaimOrder inserts the claim row for orderID. false means another
	// delivery already claimed it; concurrent callers block on the key.
	ClaimOrder(ctx context.Context, orderID string) (bool, error)
	// LockOrderClaim locks an existing claim row and returns its outcome.
	LockOrderClaim(ctx context.Context, orderID string) (Outcome, error)
	ResolveOrderClaim(ctx context.Context, orderID string, outcome Outcome) error
	OperationsForOrder(ctx context.Context, orderID string) ([]Operation, error)
	AppendOperations(ctx context.Context, ops []Operation) error

	// LockInventories row-locks ids in a stable order. Missing ids are absent
	// from the result.
	LockInventories(ctx context.Context, ids []string) (map[string]Inventory, error)
	// AdjustQuantity adds delta and returns the updated row. It fails with
	// apperr.ErrValidation when the result would be negative.
	AdjustQuantity(ctx context.Context, id string, delta int) (Inventory, error)

	FindByIDForUpdate(ctx context.Context, id string) (Inventory, error)
	Insert(ctx context.Context, inv Inventory) error
	Update(ctx context.Context, inv Inventory) error
}
