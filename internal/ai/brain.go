package ai

import (
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"duskhollow/server/internal/action"
)

// Candidate is one entity visible to a brain during foe detection. Cloaked is
// already resolved per-observer by the world view.
type Candidate struct {
	ID       string
	Position mgl64.Vec2
	Alive    bool
	Faction  string
	Cloaked  bool
}

// View is the world as the decision source sees it.
type View interface {
	Position(id string) (mgl64.Vec2, bool)
	Alive(id string) bool
	Faction(id string) string
	Candidates(observer string) []Candidate
}

// Submitter feeds requests into the entity's action queue. The brain is an
// ordinary request producer, not privileged over client requests.
type Submitter interface {
	Submit(req action.Request) error
	Idle() bool
}

// Config tunes one brain. Evaluation runs on a fixed tick cadence,
// independent of render rate.
type Config struct {
	EvalEveryTicks   uint64
	DetectRange      float64
	WanderRadius     float64
	WanderWaitMin    time.Duration
	WanderWaitMax    time.Duration
	AttackDescriptor string
}

func (cfg Config) normalized() Config {
	if cfg.EvalEveryTicks == 0 {
		cfg.EvalEveryTicks = 5
	}
	if cfg.DetectRange <= 0 {
		cfg.DetectRange = 5
	}
	if cfg.WanderRadius <= 0 {
		cfg.WanderRadius = 10
	}
	if cfg.WanderWaitMin <= 0 {
		cfg.WanderWaitMin = time.Second
	}
	if cfg.WanderWaitMax < cfg.WanderWaitMin {
		cfg.WanderWaitMax = cfg.WanderWaitMin + 2*time.Second
	}
	return cfg
}

// Brain is the per-NPC decision source: it scans for foes, selects the
// highest-priority eligible behavior, and emits action and movement requests.
// Created on NPC spawn, dropped on despawn.
type Brain struct {
	actorID string
	faction string
	cfg     Config

	view   View
	mover  action.Movement
	submit Submitter
	rng    *rand.Rand

	behavior     Kind
	hated        map[string]struct{}
	nextEvalTick uint64
	nextSeq      uint64

	wander wanderState
}

type wanderState struct {
	origin      mgl64.Vec2
	originSet   bool
	outbound    bool
	waitUntil   time.Time
	pendingWait time.Duration
}

// New builds a brain for the given NPC.
func New(actorID, faction string, cfg Config, view View, mover action.Movement, submit Submitter, rng *rand.Rand) *Brain {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Brain{
		actorID:  actorID,
		faction:  faction,
		cfg:      cfg.normalized(),
		view:     view,
		mover:    mover,
		submit:   submit,
		rng:      rng,
		behavior: KindIdle,
		hated:    make(map[string]struct{}),
	}
}

// Behavior returns the currently active behavior variant.
func (b *Brain) Behavior() Kind { return b.behavior }

// Hated returns whether the entity is in the hated set.
func (b *Brain) Hated(id string) bool {
	_, ok := b.hated[id]
	return ok
}

// HatedCount reports the size of the hated set.
func (b *Brain) HatedCount() int { return len(b.hated) }

// Evaluate runs one decision step when the cadence allows. Evaluation is a
// pure function of state: its only side effects are queue submissions and
// movement-target requests.
func (b *Brain) Evaluate(tick uint64, now time.Time) {
	if tick < b.nextEvalTick {
		return
	}
	b.nextEvalTick = tick + b.cfg.EvalEveryTicks

	b.detectFoes()

	next := b.selectBehavior()
	if next != b.behavior {
		b.behavior = next
		variantFor(next).initialize(b, now)
	}
	variantFor(b.behavior).update(b, now)
}

// detectFoes scans candidates within the squared detect range and grows the
// hated set. Repeated evaluation against an unchanged world is a no-op; dead
// or vanished entries are pruned so Attack eligibility decays naturally.
func (b *Brain) detectFoes() {
	for id := range b.hated {
		if !b.view.Alive(id) {
			delete(b.hated, id)
		}
	}

	selfPos, ok := b.view.Position(b.actorID)
	if !ok {
		return
	}
	detectSqr := b.cfg.DetectRange * b.cfg.DetectRange
	for _, cand := range b.view.Candidates(b.actorID) {
		if cand.ID == b.actorID || !cand.Alive || cand.Cloaked {
			continue
		}
		if cand.Faction == b.faction {
			continue
		}
		delta := cand.Position.Sub(selfPos)
		if delta.Dot(delta) > detectSqr {
			continue
		}
		b.hated[cand.ID] = struct{}{}
	}
}

// selectBehavior walks the fixed-priority variant list and returns the first
// eligible behavior.
func (b *Brain) selectBehavior() Kind {
	for _, variant := range priority {
		if variant.eligible(b) {
			return variant.kind
		}
	}
	return KindIdle
}

// nearestHated picks the closest live hated entity.
func (b *Brain) nearestHated() (string, bool) {
	selfPos, ok := b.view.Position(b.actorID)
	if !ok {
		return "", false
	}
	bestID := ""
	bestDistSqr := 0.0
	for id := range b.hated {
		pos, ok := b.view.Position(id)
		if !ok {
			continue
		}
		delta := pos.Sub(selfPos)
		distSqr := delta.Dot(delta)
		if bestID == "" || distSqr < bestDistSqr || (distSqr == bestDistSqr && id < bestID) {
			bestID = id
			bestDistSqr = distSqr
		}
	}
	return bestID, bestID != ""
}
