package action

import "github.com/go-gl/mathgl/mgl64"

// LifeState mirrors the health collaborator's view of an entity.
type LifeState string

const (
	LifeAlive   LifeState = "alive"
	LifeFainted LifeState = "fainted"
	LifeDead    LifeState = "dead"
)

// Movement is the externally owned movement collaborator. The queue uses it
// for chase prerequisites; the AI decision source shares the same interface
// for wander destinations, so server-driven movement is never special-cased.
type Movement interface {
	SetMovementTarget(actorID string, point mgl64.Vec2)
	FollowEntity(actorID, targetID string)
	Stop(actorID string)
	IsMoving(actorID string) bool
}

// Health is the externally owned life collaborator. Action effects call into
// it; nothing in this package mutates health state directly.
type Health interface {
	ApplyDamage(targetID string, amount float64, sourceID string)
	ApplyHeal(targetID string, amount float64, sourceID string)
	LifeState(id string) LifeState
}

// View resolves weak entity handles at the moment they are needed. Targets
// are referenced by id, never owned, since the entity may despawn between
// ticks.
type View interface {
	Position(id string) (mgl64.Vec2, bool)
	Alive(id string) bool
}

// Effector applies an action's side effects. The server wires a real
// implementation (damage, buffs, movement locks); the client predictive
// mirror wires a cosmetic one. Selecting the capability by role keeps the
// lifecycle shape identical on both sides.
type Effector interface {
	Damage(targetID string, amount float64, sourceID string)
	Heal(targetID string, amount float64, sourceID string)
	Buff(targetID string, grant BuffGrant, sourceID string)
}

// NopEffector discards all effects. Useful for emote-like descriptors and
// tests that only exercise lifecycle timing.
type NopEffector struct{}

func (NopEffector) Damage(string, float64, string) {}
func (NopEffector) Heal(string, float64, string) {}
func (NopEffector) Buff(string, BuffGrant, string) {}
