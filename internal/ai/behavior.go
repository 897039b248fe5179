package ai

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"duskhollow/server/internal/action"
)

// Kind tags a behavior variant. The set is closed: adding a behavior means
// adding a variant and a slot in the priority list, not a new subtype.
type Kind string

const (
	KindIdle   Kind = "idle"
	KindWander Kind = "wander"
	KindAttack Kind = "attack"
)

type variant struct {
	kind       Kind
	eligible   func(*Brain) bool
	initialize func(*Brain, time.Time)
	update     func(*Brain, time.Time)
}

// priority is the fixed evaluation order; the first eligible variant wins.
var priority = []variant{
	{
		kind:       KindAttack,
		eligible:   func(b *Brain) bool { return len(b.hated) > 0 },
		initialize: func(b *Brain, _ time.Time) {},
		update:     (*Brain).updateAttack,
	},
	{
		kind:       KindWander,
		eligible:   func(b *Brain) bool { return len(b.hated) == 0 },
		initialize: (*Brain).initializeWander,
		update:     (*Brain).updateWander,
	},
	{
		kind:       KindIdle,
		eligible:   func(b *Brain) bool { return true },
		initialize: func(b *Brain, _ time.Time) {},
		update:     func(b *Brain, _ time.Time) {},
	},
}

func variantFor(kind Kind) variant {
	for _, v := range priority {
		if v.kind == kind {
			return v
		}
	}
	return priority[len(priority)-1]
}

// initializeWander captures the wander origin once per activation.
func (b *Brain) initializeWander(now time.Time) {
	if pos, ok := b.view.Position(b.actorID); ok {
		b.wander.origin = pos
		b.wander.originSet = true
	}
	b.wander.outbound = false
	b.wander.waitUntil = now
	b.wander.pendingWait = 0
}

// updateWander samples a fresh destination only when the entity is standing
// still and its post-arrival wait has elapsed. Destinations are uniform over
// a disk around the captured origin; the wait after arrival is drawn when the
// leg starts.
func (b *Brain) updateWander(now time.Time) {
	if b.mover.IsMoving(b.actorID) {
		return
	}
	if b.wander.outbound {
		// Arrival: start the wait drawn for this leg.
		b.wander.outbound = false
		b.wander.waitUntil = now.Add(b.wander.pendingWait)
		return
	}
	if now.Before(b.wander.waitUntil) {
		return
	}
	if !b.wander.originSet {
		b.initializeWander(now)
	}

	angle := b.rng.Float64() * 2 * math.Pi
	dist := b.cfg.WanderRadius * math.Sqrt(b.rng.Float64())
	dest := b.wander.origin.Add(mgl64.Vec2{math.Cos(angle) * dist, math.Sin(angle) * dist})

	span := b.cfg.WanderWaitMax - b.cfg.WanderWaitMin
	wait := b.cfg.WanderWaitMin
	if span > 0 {
		wait += time.Duration(b.rng.Int63n(int64(span)))
	}
	b.wander.pendingWait = wait
	b.wander.outbound = true
	b.mover.SetMovementTarget(b.actorID, dest)
}

// updateAttack submits an attack request against the nearest hated foe once
// the queue drains; the queue itself enforces the reuse cooldown at dequeue.
func (b *Brain) updateAttack(_ time.Time) {
	if b.cfg.AttackDescriptor == "" || !b.submit.Idle() {
		return
	}
	target, ok := b.nearestHated()
	if !ok {
		return
	}
	b.nextSeq++
	req := action.Request{
		Descriptor: b.cfg.AttackDescriptor,
		ActorID:    b.actorID,
		TargetID:   target,
		Sequence:   b.nextSeq,
	}
	_ = b.submit.Submit(req)
}
