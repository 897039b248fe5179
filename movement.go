package main

import (
	"github.com/go-gl/mathgl/mgl64"
)

// World implements the movement collaborator shared by the action queue
// (chase synthesis) and the AI decision source (wander). Both sides go
// through the same interface; server-driven movement is never special-cased.

// SetMovementTarget points the entity at a fixed destination.
func (w *World) SetMovementTarget(actorID string, point mgl64.Vec2) {
	ent, ok := w.entities[actorID]
	if !ok {
		return
	}
	ent.moveTarget = clampToWorld(point)
	ent.hasTarget = true
	ent.followID = ""
}

// FollowEntity locks the entity's movement onto another entity; the target
// position is re-resolved every tick until the follow is released.
func (w *World) FollowEntity(actorID, targetID string) {
	ent, ok := w.entities[actorID]
	if !ok {
		return
	}
	ent.followID = targetID
	ent.hasTarget = false
}

// Stop clears any movement target or follow lock.
func (w *World) Stop(actorID string) {
	ent, ok := w.entities[actorID]
	if !ok {
		return
	}
	ent.hasTarget = false
	ent.followID = ""
}

// IsMoving reports whether the entity still has an unreached destination.
func (w *World) IsMoving(actorID string) bool {
	ent, ok := w.entities[actorID]
	if !ok {
		return false
	}
	return ent.hasTarget || ent.followID != ""
}

// stepMovement advances every entity toward its destination at moveSpeed.
func (w *World) stepMovement(dt float64) {
	for _, ent := range w.entities {
		if !ent.alive() {
			continue
		}
		target, ok := w.movementGoal(ent)
		if !ok {
			continue
		}
		delta := target.Sub(ent.pos)
		dist := delta.Len()
		if dist <= arriveEpsilon {
			if ent.hasTarget {
				ent.hasTarget = false
			}
			continue
		}
		step := moveSpeed * dt
		if step >= dist {
			ent.pos = target
			if ent.hasTarget {
				ent.hasTarget = false
			}
			continue
		}
		ent.pos = ent.pos.Add(delta.Mul(step / dist))
	}
}

func (w *World) movementGoal(ent *entityState) (mgl64.Vec2, bool) {
	if ent.followID != "" {
		target, ok := w.entities[ent.followID]
		if !ok || !target.alive() {
			ent.followID = ""
			return mgl64.Vec2{}, false
		}
		return target.pos, true
	}
	if ent.hasTarget {
		return ent.moveTarget, true
	}
	return mgl64.Vec2{}, false
}

func clampToWorld(p mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{clamp(p.X(), 0, worldWidth), clamp(p.Y(), 0, worldHeight)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
