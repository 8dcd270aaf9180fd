package orders

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/ariefcatur/go-order-saga/internal/events"
	"github.com/google/uuid"
)

type Order struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	Items      []Item    `json:"items"`
}

// Item belongs to exactly one order and is stored with it.
type Item struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (o Order) eventItems() []events.Item {
	out := make([]events.Item, len(o.Items))
	for i, it := range o.Items {
		out[i] = events.Item{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}

type CreateOrder struct {
	CustomerID string       `json:"customerId"`
	Items      []CreateItem `json:"items"`
}

type CreateItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (c CreateOrder) Validate() error {
	if _, err := uuid.Parse(c.CustomerID); err != nil {
		return fmt.Errorf("%w: customerId must be a uuid", apperr.ErrValidation)
	}
	if len(c.Items) == 0 {
		return fmt.Errorf("%w: at least one order item is required", apperr.ErrValidation)
	}
	for i, it := range c.Items {
		if _, err := uuid.Parse(it.ProductID); err != nil {
			return fmt.Errorf("%w: items[%d].productId must be a uuid", apperr.ErrValidation, i)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("%w: items[%d].quantity must be at least 1", apperr.ErrValidation, i)
		}
	}
	return nil
}

// canonicalID returns id in the lowercase hyphenated form postgres hands back
// for uuid columns, so cache keys and event payloads agree with stored rows.
// Anything uuid.Parse rejects is returned unchanged.
func canonicalID(id string) string {
	u, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return u.String()
}
