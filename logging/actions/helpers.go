package actions

import (
	"context"

	"duskhollow/server/logging"
)

const (
	// EventStarted is emitted when an action instance enters its lifecycle.
	EventStarted logging.EventType = "action.started"
	// EventEnded is emitted on natural completion.
	EventEnded logging.EventType = "action.ended"
	// EventCancelled is emitted when an instance terminates early.
	EventCancelled logging.EventType = "action.cancelled"
	// EventRejected is emitted when admission refuses a request.
	EventRejected logging.EventType = "action.rejected"
	// EventDroppedFrame is emitted when a malformed inbound frame is dropped.
	EventDroppedFrame logging.EventType = "action.dropped_frame"
)

// LifecyclePayload describes a lifecycle transition for one descriptor.
type LifecyclePayload struct {
	Descriptor string `json:"descriptor"`
	Sequence   uint64 `json:"seq"`
	Reason     string `json:"reason,omitempty"`
}

// RejectPayload captures why a request was refused.
type RejectPayload struct {
	Descriptor string `json:"descriptor"`
	Sequence   uint64 `json:"seq"`
	Reason     string `json:"reason"`
}

// Started publishes an action start event.
func Started(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload LifecyclePayload) {
	publish(ctx, pub, EventStarted, tick, actor, payload, logging.SeverityDebug)
}

// Ended publishes a natural completion event.
func Ended(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload LifecyclePayload) {
	publish(ctx, pub, EventEnded, tick, actor, payload, logging.SeverityDebug)
}

// Cancelled publishes an early termination event.
func Cancelled(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload LifecyclePayload) {
	publish(ctx, pub, EventCancelled, tick, actor, payload, logging.SeverityInfo)
}

// Rejected publishes an admission refusal event.
func Rejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RejectPayload) {
	publish(ctx, pub, EventRejected, tick, actor, payload, logging.SeverityInfo)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, actor logging.EntityRef, payload any, severity logging.Severity) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
