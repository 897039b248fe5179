package action

import "errors"

// Request admission failures. None of these mutate queue state; the worst
// case outcome anywhere in this layer is a cleared queue and an idle entity.
var (
	// ErrUnknownDescriptor marks a request whose id is not in the catalog.
	// The request is logged and dropped.
	ErrUnknownDescriptor = errors.New("unknown descriptor")
	// ErrQueueFull marks a request rejected because the entity's pending
	// queue is at capacity.
	ErrQueueFull = errors.New("queue full")
	// ErrBudgetExceeded marks a request whose blocking duration would push
	// the queued blocking time past the entity's budget.
	ErrBudgetExceeded = errors.New("budget exceeded")
)

// Wire-facing reject reasons paired with the sentinel errors above.
const (
	RejectUnknownDescriptor = "unknown_descriptor"
	RejectQueueFull         = "queue_full"
	RejectBudgetExceeded    = "budget_exceeded"
)

// RejectReason maps an admission error to its wire identifier.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownDescriptor):
		return RejectUnknownDescriptor
	case errors.Is(err, ErrQueueFull):
		return RejectQueueFull
	case errors.Is(err, ErrBudgetExceeded):
		return RejectBudgetExceeded
	default:
		return ""
	}
}
