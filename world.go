package main

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"duskhollow/server/internal/action"
	"duskhollow/server/internal/ai"
	"duskhollow/server/internal/telemetry"
	"duskhollow/server/logging"
	loggingactions "duskhollow/server/logging/actions"
)

const reviveDescriptorID = "revive"

// World owns every live entity, its action queue, and the NPC brains. All
// mutation happens on the simulation goroutine; the hub synchronizes inbound
// requests through its own mutex before they reach Submit.
type World struct {
	entities map[string]*entityState
	queues   map[string]*action.Queue
	brains   map[string]*ai.Brain

	catalog   *action.Catalog
	pool      *action.Pool
	publisher logging.Publisher
	metrics   telemetry.Metrics
	rng       *rand.Rand

	queueCfg action.QueueConfig
	tick     uint64
}

// newWorld wires a world around the given descriptor catalog.
func newWorld(catalog *action.Catalog, publisher logging.Publisher, metrics telemetry.Metrics, seed int64) *World {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &World{
		entities:  make(map[string]*entityState),
		queues:    make(map[string]*action.Queue),
		brains:    make(map[string]*ai.Brain),
		catalog:   catalog,
		pool:      action.NewPool(defaultMaxConcurrent),
		publisher: publisher,
		metrics:   metrics,
		rng:       rand.New(rand.NewSource(seed)),
		queueCfg: action.QueueConfig{
			Capacity:        defaultQueueCapacity,
			BlockingBudget:  defaultBlockingBudget,
			MaxConcurrent:   defaultMaxConcurrent,
			ChaseDescriptor: chaseDescriptorID,
		},
	}
}

func (w *World) env() action.Env {
	return action.Env{View: w, Movement: w, Effector: w}
}

// SpawnPlayer registers a player entity and its action queue.
func (w *World) SpawnPlayer(faction string) *entityState {
	return w.spawn(EntityPlayer, faction, mgl64.Vec2{defaultSpawnX, defaultSpawnY}, playerMaxHealth)
}

// SpawnNPC registers an NPC entity with a decision source attached.
func (w *World) SpawnNPC(faction string, pos mgl64.Vec2, cfg ai.Config) *entityState {
	ent := w.spawn(EntityNPC, faction, pos, npcMaxHealth)
	brain := ai.New(ent.ID, faction, cfg, w, w, &queueSubmitter{world: w, actorID: ent.ID}, w.rng)
	w.brains[ent.ID] = brain
	return ent
}

func (w *World) spawn(kind EntityKind, faction string, pos mgl64.Vec2, maxHealth float64) *entityState {
	id := uuid.NewString()
	ent := &entityState{
		Entity: Entity{
			ID:        id,
			Kind:      kind,
			Faction:   faction,
			Health:    maxHealth,
			MaxHealth: maxHealth,
		},
		pos:         clampToWorld(pos),
		lifeState:   action.LifeAlive,
		activeBuffs: make(map[string]float64),
	}
	w.entities[id] = ent
	w.queues[id] = action.NewQueue(id, w.queueCfg, w.catalog, w.pool, w.env())
	return ent
}

// Despawn removes an entity, its queue, and its brain.
func (w *World) Despawn(id string) {
	if queue, ok := w.queues[id]; ok {
		queue.Cancel(nil, action.ReasonOwnerDied)
	}
	delete(w.entities, id)
	delete(w.queues, id)
	delete(w.brains, id)
}

// Submit routes a request into the owning entity's queue. Rejections leave
// the queue untouched and are surfaced to the caller.
func (w *World) Submit(actorID string, req action.Request) error {
	queue, ok := w.queues[actorID]
	if !ok {
		return action.ErrUnknownDescriptor
	}
	err := queue.Submit(req)
	if err != nil {
		loggingactions.Rejected(context.Background(), w.publisher, w.tick, w.entityRef(actorID), loggingactions.RejectPayload{
			Descriptor: req.Descriptor,
			Sequence:   req.Sequence,
			Reason:     action.RejectReason(err),
		})
	}
	return err
}

// Queue exposes an entity's action queue for inspection.
func (w *World) Queue(actorID string) *action.Queue {
	return w.queues[actorID]
}

// Brain exposes an NPC's decision source for inspection.
func (w *World) Brain(actorID string) *ai.Brain {
	return w.brains[actorID]
}

// Step runs one simulation tick: AI evaluation, movement, then every action
// queue. It returns the lifecycle events to broadcast, in a deterministic
// entity order.
func (w *World) Step(tick uint64, now time.Time, dt float64) []action.Event {
	w.tick = tick

	ids := make([]string, 0, len(w.entities))
	for id := range w.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if brain, ok := w.brains[id]; ok && w.entities[id].alive() {
			brain.Evaluate(tick, now)
		}
	}

	w.stepMovement(dt)

	delta := time.Duration(dt * float64(time.Second))
	events := make([]action.Event, 0)
	for _, id := range ids {
		queue := w.queues[id]
		if queue == nil {
			continue
		}
		if ent := w.entities[id]; ent != nil && !ent.alive() {
			// Death clears everything except a queued revive.
			queue.Cancel(func(desc *action.Descriptor) bool {
				return desc == nil || desc.ID != reviveDescriptorID
			}, action.ReasonOwnerDied)
		}
		for _, ev := range queue.Tick(tick, now, delta) {
			events = append(events, ev)
			w.logEvent(ev)
		}
	}
	return events
}

func (w *World) logEvent(ev action.Event) {
	ctx := context.Background()
	actor := w.entityRef(ev.ActorID)
	payload := loggingactions.LifecyclePayload{
		Descriptor: ev.Descriptor,
		Sequence:   ev.Sequence,
		Reason:     string(ev.Reason),
	}
	switch ev.Kind {
	case action.EventStart:
		loggingactions.Started(ctx, w.publisher, ev.Tick, actor, payload)
	case action.EventEnd:
		loggingactions.Ended(ctx, w.publisher, ev.Tick, actor, payload)
	case action.EventCancel, action.EventStopCharge:
		loggingactions.Cancelled(ctx, w.publisher, ev.Tick, actor, payload)
	}
}

func (w *World) entityRef(id string) logging.EntityRef {
	kind := logging.EntityKindUnknown
	if ent, ok := w.entities[id]; ok {
		switch ent.Kind {
		case EntityPlayer:
			kind = logging.EntityKindPlayer
		case EntityNPC:
			kind = logging.EntityKindNPC
		}
	}
	return logging.EntityRef{ID: id, Kind: kind}
}

// Snapshot copies the replicated entity views in a stable order.
func (w *World) Snapshot() []Entity {
	ids := make([]string, 0, len(w.entities))
	for id := range w.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	entities := make([]Entity, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, w.entities[id].snapshot())
	}
	return entities
}

// --- action.View ---

// Position resolves a weak entity handle to its current position.
func (w *World) Position(id string) (mgl64.Vec2, bool) {
	ent, ok := w.entities[id]
	if !ok {
		return mgl64.Vec2{}, false
	}
	return ent.pos, true
}

// Alive reports target liveness at resolution time.
func (w *World) Alive(id string) bool {
	ent, ok := w.entities[id]
	return ok && ent.alive()
}

// --- action.Health ---

// ApplyDamage routes damage through the life collaborator.
func (w *World) ApplyDamage(targetID string, amount float64, sourceID string) {
	ent, ok := w.entities[targetID]
	if !ok || amount <= 0 {
		return
	}
	ent.applyHealthDelta(-amount)
}

// ApplyHeal routes healing through the life collaborator. Fainted entities
// can be healed; only the dead are beyond reach.
func (w *World) ApplyHeal(targetID string, amount float64, sourceID string) {
	ent, ok := w.entities[targetID]
	if !ok || amount <= 0 {
		return
	}
	if ent.lifeState == action.LifeDead {
		return
	}
	ent.applyHealthDelta(amount)
}

// LifeState reports the collaborator's view of an entity.
func (w *World) LifeState(id string) action.LifeState {
	ent, ok := w.entities[id]
	if !ok {
		return action.LifeDead
	}
	return ent.lifeState
}

// --- action.Effector (authoritative role) ---

// Damage applies a real health delta; the mirror's cosmetic twin only
// overlays a prediction.
func (w *World) Damage(targetID string, amount float64, sourceID string) {
	w.ApplyDamage(targetID, amount, sourceID)
}

// Heal applies a real heal.
func (w *World) Heal(targetID string, amount float64, sourceID string) {
	w.ApplyHeal(targetID, amount, sourceID)
}

// Buff records a stat contribution on the target.
func (w *World) Buff(targetID string, grant action.BuffGrant, sourceID string) {
	ent, ok := w.entities[targetID]
	if !ok {
		return
	}
	ent.activeBuffs[grant.Stat] += grant.Amount
}

// --- ai.View ---

// Faction reports the entity's faction for hostility checks.
func (w *World) Faction(id string) string {
	ent, ok := w.entities[id]
	if !ok {
		return ""
	}
	return ent.Faction
}

// Candidates lists every other entity as a detection candidate. Cloaking is
// resolved per-observer here so brains never see through it.
func (w *World) Candidates(observer string) []ai.Candidate {
	candidates := make([]ai.Candidate, 0, len(w.entities))
	for id, ent := range w.entities {
		if id == observer {
			continue
		}
		candidates = append(candidates, ai.Candidate{
			ID:       id,
			Position: ent.pos,
			Alive:    ent.alive(),
			Faction:  ent.Faction,
			Cloaked:  ent.cloaked,
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates
}

// queueSubmitter adapts an entity's queue to the ai.Submitter interface.
type queueSubmitter struct {
	world   *World
	actorID string
}

func (s *queueSubmitter) Submit(req action.Request) error {
	return s.world.Submit(s.actorID, req)
}

func (s *queueSubmitter) Idle() bool {
	queue := s.world.queues[s.actorID]
	return queue == nil || queue.Idle()
}
