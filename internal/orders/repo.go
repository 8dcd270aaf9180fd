package orders

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/ariefcatur/go-order-saga/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DecideFunc sees the locked order and returns the status to move to, or
// false to leave it as is.
type DecideFunc func(current Order) (next Status, ok bool)

type Repository interface {
	Create(ctx context.Context, o Order) error
	FindByID(ctx context.Context, id string) (Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	// Transition runs decide under a row lock and persists its answer. The
	// bool reports whether the status changed.
	Transition(ctx context.Context, id string, decide DecideFunc) (Order, bool, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

func NewRepo(db *pgxpool.Pool) *Repo { return &Repo{DB: db} }

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *Repo) Create(ctx context.Context, o Order) error {
	return postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO orders(id, customer_id, status, created_at, updated_at)
		                          VALUES ($1,$2,$3,$4,$4)`, o.ID, o.CustomerID, string(o.Status), o.CreatedAt); err != nil {
			return fmt.Errorf("repository: insert order: %w", err)
		}
		b := &pgx.Batch{}
		for i, it := range o.Items {
			b.Queue(`INSERT INTO order_items(id, order_id, position, product_id, quantity) VALUES ($1,$2,$3,$4,$5)`,
				it.ID, o.ID, i, it.ProductID, it.Quantity)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("repository: insert order items: %w", err)
		}
		return nil
	})
}

func (r *Repo) FindByID(ctx context.Context, id string) (Order, error) {
	return findOrder(ctx, r.DB, id, false)
}

func (r *Repo) List(ctx context.Context) ([]Order, error) {
	return listOrders(ctx, r.DB, `SELECT id, customer_id, status, created_at FROM orders ORDER BY created_at DESC, id`)
}

func (r *Repo) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	if _, err := uuid.Parse(customerID); err != nil {
		return []Order{}, nil
	}
	return listOrders(ctx, r.DB, `SELECT id, customer_id, status, created_at FROM orders
	                              WHERE customer_id=$1 ORDER BY created_at DESC, id`, customerID)
}

func (r *Repo) Transition(ctx context.Context, id string, decide DecideFunc) (Order, bool, error) {
	var (
		out     Order
		changed bool
	)
	err := postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		o, err := findOrder(ctx, tx, id, true)
		if err != nil {
			return err
		}
		out = o
		next, ok := decide(o)
		if !ok {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(next)); err != nil {
			return fmt.Errorf("repository: update order status: %w", err)
		}
		out.Status = next
		changed = true
		return nil
	})
	return out, changed, err
}

func findOrder(ctx context.Context, q querier, id string, forUpdate bool) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, fmt.Errorf("repository: order %s: %w", id, apperr.ErrNotFound)
	}
	sql := `SELECT id, customer_id, status, created_at FROM orders WHERE id=$1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var (
		o      Order
		status string
	)
	err := q.QueryRow(ctx, sql, id).Scan(&o.ID, &o.CustomerID, &status, &o.CreatedAt)
	if postgres.IsNoRows(err) {
		return Order{}, fmt.Errorf("repository: order %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return Order{}, fmt.Errorf("repository: find order: %w", err)
	}
	o.Status = Status(status)

	items, err := loadItems(ctx, q, []string{o.ID})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[o.ID]
	if o.Items == nil {
		o.Items = []Item{}
	}
	return o, nil
}

func listOrders(ctx context.Context, q querier, sql string, args ...any) ([]Order, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: list orders: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Order, error) {
		var (
			o      Order
			status string
		)
		err := row.Scan(&o.ID, &o.CustomerID, &status, &o.CreatedAt)
		o.Status = Status(status)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("repository: list orders: %w", err)
	}

	ids := make([]string, len(list))
	for i, o := range list {
		ids[i] = o.ID
	}
	items, err := loadItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Items = items[list[i].ID]
		if list[i].Items == nil {
			list[i].Items = []Item{}
		}
	}
	return list, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []string) (map[string][]Item, error) {
	out := make(map[string][]Item, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `SELECT order_id, id, product_id, quantity FROM order_items
	                           WHERE order_id = ANY($1) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			it      Item
		)
		if err := rows.Scan(&orderID, &it.ID, &it.ProductID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("repository: scan order item: %w", err)
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}
