package action

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// maxSynthesisDepth caps how many times a single originating request may
// spawn budget-exempt synthesized requests (chase prerequisites, chain
// follow-ups). Deeper synthesis re-enters normal budget accounting so a
// chain loop cannot stunlock an entity past its budget.
const maxSynthesisDepth = 3

// Request asks the queue to run one action. Requests are transient: they are
// created on input decode or by an AI decision, consumed at admission, and
// never persisted.
type Request struct {
	Descriptor string
	ActorID    string

	// TargetID and TargetPoint are mutually exclusive per descriptor kind.
	TargetID    string
	TargetPoint mgl64.Vec2
	HasPoint    bool

	// Sequence is the requester's monotonically increasing counter, used
	// for wire de-duplication and client reconciliation.
	Sequence uint64

	// CancelPrevious clears the queue and cancels the active blocking
	// instance before this request is enqueued.
	CancelPrevious bool

	// synthesized requests (chase prerequisites, chain follow-ups) bypass
	// the admission budget while depth stays within maxSynthesisDepth.
	synthesized bool
	synthDepth  int

	// synthCost accumulates the blocking time the synthesis chain has
	// consumed so far; past maxSynthesisDepth it counts against the budget.
	synthCost time.Duration

	// chaseRange carries the originating descriptor's range into a
	// synthesized chase so arrival is judged against the parent action.
	chaseRange float64

	// chaseIssued marks that a chase prerequisite was already synthesized
	// for this request, so out-of-range re-validation happens at Starting
	// instead of spawning another chase.
	chaseIssued bool
}

// Synthesized reports whether the request was generated by the queue itself.
func (r *Request) Synthesized() bool {
	return r != nil && r.synthesized
}

// budgetExempt reports whether admission skips the blocking-time budget.
func (r *Request) budgetExempt() bool {
	return r != nil && r.synthesized && r.synthDepth <= maxSynthesisDepth
}

// synthesize derives a follow-up request from r, inheriting its actor and
// incrementing the synthesis depth.
func (r *Request) synthesize(descriptor string) Request {
	next := Request{
		Descriptor:  descriptor,
		ActorID:     r.ActorID,
		TargetID:    r.TargetID,
		TargetPoint: r.TargetPoint,
		HasPoint:    r.HasPoint,
		Sequence:    r.Sequence,
		synthesized: true,
		synthDepth:  r.synthDepth + 1,
		synthCost:   r.synthCost,
	}
	return next
}
