package action

import "github.com/go-gl/mathgl/mgl64"

// EventKind labels an authoritative lifecycle broadcast.
type EventKind string

const (
	EventStart      EventKind = "start"
	EventCancel     EventKind = "cancel"
	EventEnd        EventKind = "end"
	EventStopCharge EventKind = "stopCharge"
)

// TargetSnapshot is the target as resolved when the instance started. It is
// captured once and broadcast so observers replay against the same target the
// server used, even if the entity has since moved or despawned.
type TargetSnapshot struct {
	EntityID  string
	Point     mgl64.Vec2
	HasEntity bool
	HasPoint  bool
}

// Event is one authoritative outcome broadcast to all observers of an
// entity. Events for a given entity carry a monotonically increasing
// sequence; Cancel and End reuse the sequence assigned at Start so the
// client mirror can match them to its anticipated instance.
type Event struct {
	Kind       EventKind
	Descriptor string
	ActorID    string
	Sequence   uint64
	Target     TargetSnapshot
	Reason     CancelReason
	Tick       uint64

	// Synthesized marks events for requests the queue generated itself
	// (chase prerequisites, chain follow-ups); no client ever predicted
	// them.
	Synthesized bool
}
