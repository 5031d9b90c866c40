package orders

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
	StatusReturned   Status = "Returned"
)

// Forward moves may skip steps; Cancelled and Returned are reachable from any
// non-terminal state. Terminal states have no exits.
var validNext = map[Status]map[Status]bool{
	StatusPending: {
		StatusProcessing: true, StatusShipped: true, StatusDelivered: true,
		StatusCancelled: true, StatusReturned: true,
	},
	StatusProcessing: {
		StatusShipped: true, StatusDelivered: true,
		StatusCancelled: true, StatusReturned: true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusCancelled: true, StatusReturned: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
	StatusReturned:  {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

// CanTransition reports whether an order in from may move to to.
// Re-applying the current status is allowed.
func CanTransition(from, to Status) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	return validNext[from][to]
}
