package domain

// TransactionStatus is the order lifecycle state. Pickup orders end at
// PickedUp, delivery orders go through Shipped to Received, and Cancelled
// is reachable only while work has not completed.
type TransactionStatus string

const (
	StatusNew        TransactionStatus = "new"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusPickedUp   TransactionStatus = "picked_up"
	StatusShipped    TransactionStatus = "shipped"
	StatusReceived   TransactionStatus = "received"
	StatusCancelled  TransactionStatus = "cancelled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusNew, StatusProcessing, StatusCompleted, StatusPickedUp, StatusShipped, StatusReceived, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusPickedUp, StatusReceived, StatusCancelled:
		return true
	default:
		return false
	}
}

// NextStatuses lists the states reachable from s. Completed branches on the
// delivery flag: pickup orders hand over at the counter, delivery orders ship.
func (s TransactionStatus) NextStatuses(delivery bool) []TransactionStatus {
	switch s {
	case StatusNew:
		return []TransactionStatus{StatusProcessing, StatusCancelled}
	case StatusProcessing:
		return []TransactionStatus{StatusCompleted, StatusCancelled}
	case StatusCompleted:
		if delivery {
			return []TransactionStatus{StatusShipped}
		}
		return []TransactionStatus{StatusPickedUp}
	case StatusShipped:
		return []TransactionStatus{StatusReceived}
	default:
		return nil
	}
}

func (s TransactionStatus) CanTransition(to TransactionStatus, delivery bool) bool {
	for _, next := range s.NextStatuses(delivery) {
		if next == to {
			return true
		}
	}
	return false
}
