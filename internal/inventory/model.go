package inventory

import "time"

type OperationType string

const (
	OpStockCreated   OperationType = "STOCK_CREATED"
	OpStockUpdated   OperationType = "STOCK_UPDATED"
	OpOrderCompleted OperationType = "ORDER_OPERATION_COMPLETED"
	OpOrderRejected  OperationType = "ORDER_OPERATION_REJECTED"
	OpOrderCancelled OperationType = "ORDER_OPERATION_CANCELLED"
)

// Settles reports whether an entry of this type closes an order for good:
// compensation after it has nothing to undo.
func (t OperationType) Settles() bool {
	return t == OpOrderRejected || t == OpOrderCancelled
}

type Inventory struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// Operation is one ledger entry. Entries are appended, never updated.
type Operation struct {
	ID          string        `json:"id"`
	Type        OperationType `json:"operationType"`
	OrderID     *string       `json:"orderId"`
	ProductID   string        `json:"productId"`
	OldQuantity *int          `json:"oldQuantity"`
	NewQuantity *int          `json:"newQuantity"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Delta is the quantity the entry took out of stock (negative for restocks).
func (o Operation) Delta() int {
	if o.OldQuantity == nil || o.NewQuantity == nil {
		return 0
	}
	return *o.OldQuantity - *o.NewQuantity
}

type History struct {
	Inventory
	History []Operation `json:"history"`
}

type Item struct {
	ProductID string
	Quantity  int
}

// Outcome is recorded on the order claim once an engine decided.
type Outcome string

const (
	OutcomeCompleted Outcome = "COMPLETED"
	OutcomeRejected  Outcome = "REJECTED"
	OutcomeCancelled Outcome = "CANCELLED"
)

type ReservationResult struct {
	OrderID    string
	Outcome    Outcome
	Reason     string
	Operations []Operation
}

type CompensationResult int

const (
	// Fenced: no prior entries, the order is tombstoned.
	Fenced CompensationResult = iota + 1
	// AlreadySettled: the order was rejected or cancelled before.
	AlreadySettled
	// Restocked: reserved quantities were returned to stock.
	Restocked
)

func (r CompensationResult) String() string {
	switch r {
	case Fenced:
		return "fenced"
	case AlreadySettled:
		return "already_settled"
	case Restocked:
		return "restocked"
	}
	return "unknown"
}

func ptr[T any](v T) *T { return &v }
