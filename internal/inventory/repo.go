package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/ariefcatur/go-order-saga/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

func NewRepo(db *pgxpool.Pool) *Repo { return &Repo{DB: db} }

func (r *Repo) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

const inventoryColumns = `id, name, sku, quantity`

const operationColumns = `id, operation_type, order_id, product_id, old_quantity, new_quantity, created_at`

func (r *Repo) FindByID(ctx context.Context, id string) (Inventory, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Inventory{}, fmt.Errorf("repository: inventory %s: %w", id, apperr.ErrNotFound)
	}
	row := r.DB.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventories WHERE id=$1`, id)
	return scanInventory(row, id)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *Repo) Search(ctx context.Context, term string) ([]Inventory, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if term == "" {
		rows, err = r.DB.Query(ctx, `SELECT `+inventoryColumns+` FROM inventories ORDER BY name`)
	} else {
		pattern := "%" + likeEscaper.Replace(term) + "%"
		rows, err = r.DB.Query(ctx, `SELECT `+inventoryColumns+` FROM inventories
		                             WHERE name ILIKE $1 OR sku ILIKE $1 ORDER BY name`, pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("repository: search inventories: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Inventory])
}

func (r *Repo) OperationsForProduct(ctx context.Context, productID string) ([]Operation, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+operationColumns+` FROM inventory_operations
	                              WHERE product_id=$1 ORDER BY created_at, id`, productID)
	if err != nil {
		return nil, fmt.Errorf("repository: product operations: %w", err)
	}
	return collectOperations(rows)
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) ClaimOrder(ctx context.Context, orderID string) (bool, error) {
	ct, err := t.tx.Exec(ctx, `INSERT INTO order_claims(order_id) VALUES ($1) ON CONFLICT (order_id) DO NOTHING`, orderID)
	if err != nil {
		return false, fmt.Errorf("repository: claim order: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (t *pgTx) LockOrderClaim(ctx context.Context, orderID string) (Outcome, error) {
	var outcome string
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(outcome, '') FROM order_claims WHERE order_id=$1 FOR UPDATE`, orderID).Scan(&outcome)
	if postgres.IsNoRows(err) {
		return "", fmt.Errorf("repository: claim %s: %w", orderID, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("repository: lock claim: %w", err)
	}
	return Outcome(outcome), nil
}

func (t *pgTx) ResolveOrderClaim(ctx context.Context, orderID string, outcome Outcome) error {
	_, err := t.tx.Exec(ctx, `UPDATE order_claims SET outcome=$2, updated_at=now() WHERE order_id=$1`, orderID, string(outcome))
	if err != nil {
		return fmt.Errorf("repository: resolve claim: %w", err)
	}
	return nil
}

func (t *pgTx) OperationsForOrder(ctx context.Context, orderID string) ([]Operation, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+operationColumns+` FROM inventory_operations
	                              WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: order operations: %w", err)
	}
	return collectOperations(rows)
}

func (t *pgTx) AppendOperations(ctx context.Context, ops []Operation) error {
	if len(ops) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, op := range ops {
		b.Queue(`INSERT INTO inventory_operations(`+operationColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			op.ID, string(op.Type), op.OrderID, op.ProductID, op.OldQuantity, op.NewQuantity, op.CreatedAt)
	}
	if err := t.tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("repository: append operations: %w", err)
	}
	return nil
}

func (t *pgTx) LockInventories(ctx context.Context, ids []string) (map[string]Inventory, error) {
	out := make(map[string]Inventory, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := t.tx.Query(ctx, `SELECT `+inventoryColumns+` FROM inventories
	                              WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: lock inventories: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Inventory])
	if err != nil {
		return nil, fmt.Errorf("repository: lock inventories: %w", err)
	}
	for _, inv := range list {
		out[inv.ID] = inv
	}
	return out, nil
}

func (t *pgTx) AdjustQuantity(ctx context.Context, id string, delta int) (Inventory, error) {
	row := t.tx.QueryRow(ctx, `UPDATE inventories SET quantity = quantity + $2, updated_at = now()
	                           WHERE id=$1 AND quantity + $2 >= 0
	                           RETURNING `+inventoryColumns, id, delta)
	inv, err := scanInventory(row, id)
	if !errors.Is(err, apperr.ErrNotFound) {
		return inv, err
	}
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM inventories WHERE id=$1)`, id).Scan(&exists); err != nil {
		return Inventory{}, fmt.Errorf("repository: adjust quantity: %w", err)
	}
	if !exists {
		return Inventory{}, fmt.Errorf("repository: inventory %s: %w", id, apperr.ErrNotFound)
	}
	return Inventory{}, fmt.Errorf("repository: inventory %s would go below zero: %w", id, apperr.ErrValidation)
}

func (t *pgTx) FindByIDForUpdate(ctx context.Context, id string) (Inventory, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventories WHERE id=$1 FOR UPDATE`, id)
	return scanInventory(row, id)
}

func (t *pgTx) Insert(ctx context.Context, inv Inventory) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO inventories(id, name, sku, quantity) VALUES ($1,$2,$3,$4)`,
		inv.ID, inv.Name, inv.SKU, inv.Quantity)
	return mapWriteErr(err)
}

func (t *pgTx) Update(ctx context.Context, inv Inventory) error {
	_, err := t.tx.Exec(ctx, `UPDATE inventories SET name=$2, sku=$3, quantity=$4, updated_at=now() WHERE id=$1`,
		inv.ID, inv.Name, inv.SKU, inv.Quantity)
	return mapWriteErr(err)
}

func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err):
		return fmt.Errorf("repository: duplicate entry, sku or name already exists: %w", apperr.ErrConflict)
	default:
		return fmt.Errorf("repository: save inventory: %w", err)
	}
}

func scanInventory(row pgx.Row, id string) (Inventory, error) {
	var inv Inventory
	err := row.Scan(&inv.ID, &inv.Name, &inv.SKU, &inv.Quantity)
	if postgres.IsNoRows(err) {
		return Inventory{}, fmt.Errorf("repository: inventory %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return Inventory{}, fmt.Errorf("repository: inventory %s: %w", id, err)
	}
	return inv, nil
}

func collectOperations(rows pgx.Rows) ([]Operation, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Operation, error) {
		var (
			op  Operation
			typ string
		)
		err := row.Scan(&op.ID, &typ, &op.OrderID, &op.ProductID, &op.OldQuantity, &op.NewQuantity, &op.CreatedAt)
		op.Type = OperationType(typ)
		return op, err
	})
}
