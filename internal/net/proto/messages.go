package proto

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"duskhollow/server/internal/action"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// Client message type identifiers.
const (
	TypeAction    = "action"
	TypeHeartbeat = "heartbeat"
)

// Outbound message type identifiers.
const (
	typeActionEvent   = "actionEvent"
	typeRequestAck    = "requestAck"
	typeRequestReject = "requestReject"
	typeHeartbeat     = "heartbeat"
)

// ClientMessage captures an inbound websocket message from the client.
type ClientMessage struct {
	Ver            int     `json:"ver,omitempty"`
	Type           string  `json:"type"`
	Descriptor     string  `json:"descriptorId"`
	TargetID       string  `json:"targetId,omitempty"`
	X              float64 `json:"x,omitempty"`
	Y              float64 `json:"y,omitempty"`
	HasPoint       bool    `json:"hasPoint,omitempty"`
	Sequence       uint64  `json:"seq"`
	CancelPrevious bool    `json:"cancelPrevious,omitempty"`
	SentAt         int64   `json:"sentAt,omitempty"`
}

// DecodeClientMessage converts a raw websocket payload into a structured
// message, rejecting unsupported protocol versions.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// ActionRequest converts an inbound action frame into a queue request. Actor
// identity is stamped by the hub when the frame is accepted.
func ActionRequest(msg ClientMessage) (action.Request, bool) {
	if msg.Type != TypeAction || msg.Descriptor == "" {
		return action.Request{}, false
	}
	req := action.Request{
		Descriptor:     msg.Descriptor,
		TargetID:       msg.TargetID,
		Sequence:       msg.Sequence,
		CancelPrevious: msg.CancelPrevious,
	}
	if msg.TargetID == "" && msg.HasPoint {
		req.TargetPoint = mgl64.Vec2{msg.X, msg.Y}
		req.HasPoint = true
	}
	return req, true
}

// ActionEventV1 is the authoritative lifecycle broadcast sent to every
// observer of an entity.
type ActionEventV1 struct {
	Ver         int     `json:"ver"`
	Type        string  `json:"type"`
	EventKind   string  `json:"eventKind"`
	Descriptor  string  `json:"descriptorId"`
	ActorID     string  `json:"actorId"`
	Sequence    uint64  `json:"seq"`
	TargetID    string  `json:"targetId,omitempty"`
	TargetX     float64 `json:"targetX,omitempty"`
	TargetY     float64 `json:"targetY,omitempty"`
	HasPoint    bool    `json:"hasPoint,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Synthesized bool    `json:"synthesized,omitempty"`
	Tick        uint64  `json:"t"`
	ServerTime  int64   `json:"serverTime,omitempty"`
}

// EncodeActionEvent renders an authoritative action event frame.
func EncodeActionEvent(ev action.Event, serverTime int64) ([]byte, error) {
	frame := ActionEventV1{
		Ver:         Version,
		Type:        typeActionEvent,
		EventKind:   string(ev.Kind),
		Descriptor:  ev.Descriptor,
		ActorID:     ev.ActorID,
		Sequence:    ev.Sequence,
		Reason:      string(ev.Reason),
		Synthesized: ev.Synthesized,
		Tick:        ev.Tick,
		ServerTime:  serverTime,
	}
	if ev.Target.HasEntity {
		frame.TargetID = ev.Target.EntityID
	}
	if ev.Target.HasPoint {
		frame.TargetX = ev.Target.Point.X()
		frame.TargetY = ev.Target.Point.Y()
		frame.HasPoint = true
	}
	return json.Marshal(frame)
}

// DecodeActionEvent parses a broadcast frame back into a queue event; the
// client mirror feeds these into reconciliation.
func DecodeActionEvent(payload []byte) (action.Event, error) {
	var frame ActionEventV1
	if err := json.Unmarshal(payload, &frame); err != nil {
		return action.Event{}, err
	}
	if frame.Ver != 0 && frame.Ver != Version {
		return action.Event{}, fmt.Errorf("unsupported event protocol version %d", frame.Ver)
	}
	ev := action.Event{
		Kind:        action.EventKind(frame.EventKind),
		Descriptor:  frame.Descriptor,
		ActorID:     frame.ActorID,
		Sequence:    frame.Sequence,
		Reason:      action.CancelReason(frame.Reason),
		Synthesized: frame.Synthesized,
		Tick:        frame.Tick,
	}
	if frame.TargetID != "" {
		ev.Target.EntityID = frame.TargetID
		ev.Target.HasEntity = true
	}
	if frame.HasPoint {
		ev.Target.Point = mgl64.Vec2{frame.TargetX, frame.TargetY}
		ev.Target.HasPoint = true
	}
	return ev, nil
}

// RequestAck acknowledges an admitted request.
type RequestAck struct {
	Seq  uint64
	Tick uint64
}

// EncodeRequestAck renders a request acknowledgement frame.
func EncodeRequestAck(msg RequestAck) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		Seq  uint64 `json:"seq"`
		Tick uint64 `json:"tick,omitempty"`
	}{
		Ver:  Version,
		Type: typeRequestAck,
		Seq:  msg.Seq,
		Tick: msg.Tick,
	}
	return json.Marshal(frame)
}

// RequestReject notifies the client that a request was refused with no state
// change server-side.
type RequestReject struct {
	Seq    uint64
	Reason string
	Tick   uint64
}

// EncodeRequestReject renders a request rejection frame.
func EncodeRequestReject(msg RequestReject) ([]byte, error) {
	frame := struct {
		Ver    int    `json:"ver"`
		Type   string `json:"type"`
		Seq    uint64 `json:"seq"`
		Reason string `json:"reason"`
		Tick   uint64 `json:"tick,omitempty"`
	}{
		Ver:    Version,
		Type:   typeRequestReject,
		Seq:    msg.Seq,
		Reason: msg.Reason,
		Tick:   msg.Tick,
	}
	return json.Marshal(frame)
}

// Heartbeat echoes timing metadata back to the client.
type Heartbeat struct {
	ServerTime int64
	ClientTime int64
	RTTMillis  int64
}

// EncodeHeartbeat renders a heartbeat acknowledgement frame.
func EncodeHeartbeat(msg Heartbeat) ([]byte, error) {
	frame := struct {
		Ver        int    `json:"ver"`
		Type       string `json:"type"`
		ServerTime int64  `json:"serverTime"`
		ClientTime int64  `json:"clientTime"`
		RTTMillis  int64  `json:"rtt"`
	}{
		Ver:        Version,
		Type:       typeHeartbeat,
		ServerTime: msg.ServerTime,
		ClientTime: msg.ClientTime,
		RTTMillis:  msg.RTTMillis,
	}
	return json.Marshal(frame)
}
