package main

import (
	"github.com/go-gl/mathgl/mgl64"

	"duskhollow/server/internal/action"
)

// EntityKind separates player-controlled entities from NPCs for faction and
// logging purposes.
type EntityKind string

const (
	EntityPlayer EntityKind = "player"
	EntityNPC    EntityKind = "npc"
)

// Entity is the replicated view of an actor.
type Entity struct {
	ID        string     `json:"id"`
	Kind      EntityKind `json:"kind"`
	Faction   string     `json:"faction"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Health    float64    `json:"health"`
	MaxHealth float64    `json:"maxHealth"`
}

// entityState is the server-side mutable actor record. Movement and health
// mutations go through World methods so the action layer only ever touches
// the collaborator interfaces.
type entityState struct {
	Entity
	pos       mgl64.Vec2
	lifeState action.LifeState
	cloaked   bool

	// movement
	moveTarget  mgl64.Vec2
	hasTarget   bool
	followID    string
	activeBuffs map[string]float64
}

func (e *entityState) snapshot() Entity {
	snap := e.Entity
	snap.X = e.pos.X()
	snap.Y = e.pos.Y()
	return snap
}

func (e *entityState) alive() bool {
	return e.lifeState == action.LifeAlive
}

// applyHealthDelta clamps health into [0, max] and derives the life state.
// Crossing zero faints the entity; a heal that lifts a fainted entity above
// zero restores it.
func (e *entityState) applyHealthDelta(delta float64) {
	e.Health += delta
	if e.Health > e.MaxHealth {
		e.Health = e.MaxHealth
	}
	if e.Health <= 0 {
		e.Health = 0
		if e.lifeState == action.LifeAlive {
			e.lifeState = action.LifeFainted
		}
		return
	}
	if e.lifeState == action.LifeFainted {
		e.lifeState = action.LifeAlive
	}
}
