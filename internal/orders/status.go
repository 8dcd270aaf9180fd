package orders

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// COMPLETED -> CANCELLED is a customer cancellation after reservation; it
// triggers compensation in inventory.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusCompleted: true, StatusRejected: true, StatusCancelled: true},
	StatusCompleted: {StatusCancelled: true},
	StatusRejected:  {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
