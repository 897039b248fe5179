package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"duskhollow/server/internal/action"
	"duskhollow/server/internal/net/proto"
	"duskhollow/server/internal/telemetry"
	"duskhollow/server/logging"
	loggingactions "duskhollow/server/logging/actions"
)

// Metrics keys bumped by the intake path.
const (
	metricFramesDropped  = "net.frames_dropped"
	metricStaleSequences = "net.stale_sequences"
	metricRejects        = "net.rejects"
)

// Hub owns the authoritative world and every live connection. Inbound frames
// are validated and deduplicated here before they reach an action queue; the
// simulation loop calls advance once per tick.
type Hub struct {
	mu       sync.Mutex
	world    *World
	sessions map[string]*session

	publisher logging.Publisher
	metrics   telemetry.Metrics
	logger    telemetry.Logger
}

// session tracks connection liveness and request ordering for one player.
type session struct {
	sub           *subscriber
	lastHeartbeat time.Time
	lastRTT       time.Duration
	lastSeq       uint64
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

type joinResponse struct {
	ID       string   `json:"id"`
	Entities []Entity `json:"entities"`
}

type stateMessage struct {
	Ver        int      `json:"ver"`
	Type       string   `json:"type"`
	Entities   []Entity `json:"entities"`
	Tick       uint64   `json:"t"`
	ServerTime int64    `json:"serverTime"`
}

type diagnosticsPlayer struct {
	ID            string `json:"id"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rtt"`
	LastSequence  uint64 `json:"lastSeq"`
}

// newHub wires a hub around an existing world.
func newHub(world *World, publisher logging.Publisher, metrics telemetry.Metrics, logger telemetry.Logger) *Hub {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Hub{
		world:     world,
		sessions:  make(map[string]*session),
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Join spawns a player entity and returns the starting snapshot.
func (h *Hub) Join() joinResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	ent := h.world.SpawnPlayer(factionPlayers)
	h.sessions[ent.ID] = &session{lastHeartbeat: time.Now()}
	return joinResponse{ID: ent.ID, Entities: h.world.Snapshot()}
}

// Subscribe attaches a WebSocket connection to an existing player. A second
// subscription for the same entity replaces the first.
func (h *Hub) Subscribe(playerID string, conn *websocket.Conn) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.sessions[playerID]
	if !ok {
		return nil, false
	}
	if sess.sub != nil {
		sess.sub.conn.Close()
	}
	sub := &subscriber{conn: conn}
	sess.sub = sub
	sess.lastHeartbeat = time.Now()
	return sub, true
}

// Disconnect removes a player, its entity, and any live connection.
func (h *Hub) Disconnect(playerID string) {
	h.mu.Lock()
	sess, ok := h.sessions[playerID]
	if ok {
		delete(h.sessions, playerID)
		h.world.Despawn(playerID)
	}
	h.mu.Unlock()

	if ok && sess.sub != nil {
		sess.sub.conn.Close()
	}
}

// HandleMessage processes one inbound frame from a player connection.
// Malformed frames and stale sequences are dropped without acknowledgement;
// valid action frames are answered with an ack or a reject.
func (h *Hub) HandleMessage(playerID string, payload []byte) {
	msg, err := proto.DecodeClientMessage(payload)
	if err != nil {
		h.dropFrame(playerID, "malformed")
		return
	}

	switch msg.Type {
	case proto.TypeHeartbeat:
		h.handleHeartbeat(playerID, msg.SentAt)
	case proto.TypeAction:
		h.handleAction(playerID, msg)
	default:
		h.dropFrame(playerID, "unknown_type")
	}
}

func (h *Hub) handleHeartbeat(playerID string, sentAt int64) {
	now := time.Now()

	h.mu.Lock()
	sess, ok := h.sessions[playerID]
	if !ok {
		h.mu.Unlock()
		return
	}
	sess.lastHeartbeat = now
	if sentAt > 0 {
		if rtt := now.Sub(time.UnixMilli(sentAt)); rtt >= 0 && rtt < 5*time.Second {
			sess.lastRTT = rtt
		}
	}
	rtt := sess.lastRTT
	sub := sess.sub
	h.mu.Unlock()

	if sub == nil {
		return
	}
	data, err := proto.EncodeHeartbeat(proto.Heartbeat{
		ServerTime: now.UnixMilli(),
		ClientTime: sentAt,
		RTTMillis:  rtt.Milliseconds(),
	})
	if err != nil {
		return
	}
	if err := sub.write(data); err != nil {
		h.logf("heartbeat write to %s failed: %v", playerID, err)
	}
}

func (h *Hub) handleAction(playerID string, msg proto.ClientMessage) {
	req, ok := proto.ActionRequest(msg)
	if !ok {
		h.dropFrame(playerID, "malformed")
		return
	}

	h.mu.Lock()
	sess, live := h.sessions[playerID]
	if !live {
		h.mu.Unlock()
		return
	}
	// Client sequences are strictly increasing per entity. Replays and
	// reordered duplicates are dropped silently.
	if req.Sequence <= sess.lastSeq {
		h.mu.Unlock()
		if h.metrics != nil {
			h.metrics.Add(metricStaleSequences, 1)
		}
		return
	}
	sess.lastSeq = req.Sequence
	sub := sess.sub
	err := h.world.Submit(playerID, req)
	tick := h.world.tick
	h.mu.Unlock()

	if err != nil {
		if h.metrics != nil {
			h.metrics.Add(metricRejects, 1)
		}
		if sub == nil {
			return
		}
		data, encErr := proto.EncodeRequestReject(proto.RequestReject{
			Seq:    req.Sequence,
			Reason: action.RejectReason(err),
			Tick:   tick,
		})
		if encErr == nil {
			if wErr := sub.write(data); wErr != nil {
				h.logf("reject write to %s failed: %v", playerID, wErr)
			}
		}
		return
	}
	if sub == nil {
		return
	}
	data, encErr := proto.EncodeRequestAck(proto.RequestAck{Seq: req.Sequence, Tick: tick})
	if encErr == nil {
		if wErr := sub.write(data); wErr != nil {
			h.logf("ack write to %s failed: %v", playerID, wErr)
		}
	}
}

func (h *Hub) dropFrame(playerID, reason string) {
	if h.metrics != nil {
		h.metrics.Add(metricFramesDropped, 1)
	}
	h.publisher.Publish(context.Background(), logging.Event{
		Type:     loggingactions.EventDroppedFrame,
		Actor:    logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
		Payload:  map[string]string{"reason": reason},
	})
}

// advance runs one world tick under the hub lock and returns the lifecycle
// events, the entity snapshot, and any sessions that timed out.
func (h *Hub) advance(tick uint64, now time.Time, dt float64) ([]action.Event, []Entity, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	timedOut := make([]string, 0)
	for id, sess := range h.sessions {
		if now.Sub(sess.lastHeartbeat) > disconnectAfter {
			timedOut = append(timedOut, id)
			if sess.sub != nil {
				sess.sub.conn.Close()
			}
			delete(h.sessions, id)
			h.world.Despawn(id)
			h.logf("disconnecting %s due to heartbeat timeout", id)
		}
	}

	events := h.world.Step(tick, now, dt)
	return events, h.world.Snapshot(), timedOut
}

// broadcast fans lifecycle events and the state snapshot out to every
// subscriber. Write failures disconnect the offending session.
func (h *Hub) broadcast(events []action.Event, entities []Entity, tick uint64) {
	serverTime := time.Now().UnixMilli()

	frames := make([][]byte, 0, len(events)+1)
	for _, ev := range events {
		data, err := proto.EncodeActionEvent(ev, serverTime)
		if err != nil {
			h.logf("failed to encode action event: %v", err)
			continue
		}
		frames = append(frames, data)
	}
	state, err := json.Marshal(stateMessage{
		Ver:        proto.Version,
		Type:       "state",
		Entities:   entities,
		Tick:       tick,
		ServerTime: serverTime,
	})
	if err != nil {
		h.logf("failed to marshal state message: %v", err)
	} else {
		frames = append(frames, state)
	}

	h.mu.Lock()
	subs := make(map[string]*subscriber, len(h.sessions))
	for id, sess := range h.sessions {
		if sess.sub != nil {
			subs[id] = sess.sub
		}
	}
	h.mu.Unlock()

	for id, sub := range subs {
		for _, data := range frames {
			if err := sub.write(data); err != nil {
				h.logf("failed to send update to %s: %v", id, err)
				h.Disconnect(id)
				break
			}
		}
	}
}

// DiagnosticsSnapshot exposes per-session liveness for the diagnostics endpoint.
func (h *Hub) DiagnosticsSnapshot() []diagnosticsPlayer {
	h.mu.Lock()
	defer h.mu.Unlock()

	players := make([]diagnosticsPlayer, 0, len(h.sessions))
	for id, sess := range h.sessions {
		players = append(players, diagnosticsPlayer{
			ID:            id,
			LastHeartbeat: sess.lastHeartbeat.UnixMilli(),
			RTTMillis:     sess.lastRTT.Milliseconds(),
			LastSequence:  sess.lastSeq,
		})
	}
	return players
}

func (h *Hub) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
