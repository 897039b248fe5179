package main

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"duskhollow/server/internal/action"
	"duskhollow/server/internal/ai"
)

func aiTestConfig() ai.Config {
	return ai.Config{
		EvalEveryTicks:   aiEvalEveryTicks,
		DetectRange:      npcDetectRange,
		WanderRadius:     npcWanderRadius,
		WanderWaitMin:    npcWanderWaitMin,
		WanderWaitMax:    npcWanderWaitMax,
		AttackDescriptor: npcAttackDescriptor,
	}
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	catalog, err := action.BuildCatalog(defaultDefinitions)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return newWorld(catalog, nil, nil, 1)
}

// runTicks advances the world at the fixed tick rate and collects events.
func runTicks(w *World, start time.Time, fromTick uint64, count int) ([]action.Event, uint64, time.Time) {
	dt := 1.0 / float64(tickRate)
	step := time.Duration(dt * float64(time.Second))
	events := make([]action.Event, 0)
	now := start
	tick := fromTick
	for i := 0; i < count; i++ {
		tick++
		now = now.Add(step)
		events = append(events, w.Step(tick, now, dt)...)
	}
	return events, tick, now
}

func hasEvent(events []action.Event, kind action.EventKind, descriptor string) bool {
	for _, ev := range events {
		if ev.Kind == kind && ev.Descriptor == descriptor {
			return true
		}
	}
	return false
}

func TestMeleeStrikeDamagesAdjacentTarget(t *testing.T) {
	w := newTestWorld(t)
	attacker := w.SpawnPlayer(factionPlayers)
	victim := w.SpawnPlayer(factionMonsters)
	victim.pos = attacker.pos.Add(mgl64.Vec2{1, 0})

	err := w.Submit(attacker.ID, action.Request{Descriptor: "melee-strike", TargetID: victim.ID, Sequence: 1})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	events, _, _ := runTicks(w, time.Unix(3000, 0), 0, 30)

	if !hasEvent(events, action.EventStart, "melee-strike") || !hasEvent(events, action.EventEnd, "melee-strike") {
		t.Fatalf("expected a full strike lifecycle, events=%v", events)
	}
	if victim.Health != playerMaxHealth-12 {
		t.Fatalf("expected 12 damage, health=%v", victim.Health)
	}
}

func TestChaseDeliversAttackerIntoRange(t *testing.T) {
	w := newTestWorld(t)
	attacker := w.SpawnPlayer(factionPlayers)
	victim := w.SpawnPlayer(factionMonsters)
	victim.pos = attacker.pos.Add(mgl64.Vec2{10, 0})

	err := w.Submit(attacker.ID, action.Request{Descriptor: "melee-strike", TargetID: victim.ID, Sequence: 1})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	events, _, _ := runTicks(w, time.Unix(3000, 0), 0, 100)

	if !hasEvent(events, action.EventStart, "chase") {
		t.Fatalf("expected a synthesized chase before the out-of-range strike")
	}
	if !hasEvent(events, action.EventEnd, "melee-strike") {
		t.Fatalf("expected the strike to land after the chase, events=%v", events)
	}
	if victim.Health != playerMaxHealth-12 {
		t.Fatalf("expected 12 damage after arrival, health=%v", victim.Health)
	}
	if dist := victim.pos.Sub(attacker.pos).Len(); dist > 2 {
		t.Fatalf("attacker should have closed to range, distance=%v", dist)
	}
}

func TestDeathCancelsEverythingButRevive(t *testing.T) {
	w := newTestWorld(t)
	hero := w.SpawnPlayer(factionPlayers)
	ally := w.SpawnPlayer(factionPlayers)
	ally.pos = hero.pos.Add(mgl64.Vec2{1, 0})

	if err := w.Submit(hero.ID, action.Request{Descriptor: "power-charge", Sequence: 1}); err != nil {
		t.Fatalf("submit charge: %v", err)
	}
	events, tick, now := runTicks(w, time.Unix(3000, 0), 0, 2)
	if hasEvent(events, action.EventCancel, "power-charge") {
		t.Fatalf("charge cancelled prematurely")
	}

	if err := w.Submit(hero.ID, action.Request{Descriptor: "revive", TargetID: ally.ID, Sequence: 2}); err != nil {
		t.Fatalf("submit revive: %v", err)
	}

	w.ApplyDamage(hero.ID, playerMaxHealth*2, ally.ID)
	if w.LifeState(hero.ID) != action.LifeFainted {
		t.Fatalf("expected hero fainted, got %s", w.LifeState(hero.ID))
	}

	events, _, _ = runTicks(w, now, tick, 1)
	var cancelled bool
	for _, ev := range events {
		if ev.Kind == action.EventCancel && ev.Descriptor == "power-charge" && ev.Reason == action.ReasonOwnerDied {
			cancelled = true
		}
		if ev.Descriptor == "revive" && ev.Kind == action.EventCancel {
			t.Fatalf("revive must survive death, events=%v", events)
		}
	}
	if !cancelled {
		t.Fatalf("expected the charge cancelled on death, events=%v", events)
	}

	active := w.Queue(hero.ID).Active()
	if active == nil || active.Descriptor().ID != "revive" {
		t.Fatalf("expected the queued revive to start, active=%v", active)
	}
}

func TestNPCDetectsAndAttacksNearbyPlayer(t *testing.T) {
	w := newTestWorld(t)
	npc := w.SpawnNPC(factionMonsters, mgl64.Vec2{50, 50}, aiTestConfig())
	player := w.SpawnPlayer(factionPlayers)
	player.pos = mgl64.Vec2{54, 50}

	// Hatred is asserted during the engagement; the brain prunes the
	// entry once the player faints.
	dt := 1.0 / float64(tickRate)
	step := time.Duration(dt * float64(time.Second))
	now := time.Unix(3000, 0)
	events := make([]action.Event, 0)
	var hatedDuringFight bool
	for tick := uint64(1); tick <= 150; tick++ {
		now = now.Add(step)
		events = append(events, w.Step(tick, now, dt)...)
		if brain := w.Brain(npc.ID); brain != nil && brain.Hated(player.ID) {
			hatedDuringFight = true
		}
	}

	if !hatedDuringFight {
		t.Fatalf("expected the player in the NPC's hated set while engaged")
	}
	if !hasEvent(events, action.EventEnd, "melee-strike") {
		t.Fatalf("expected the NPC to land a strike, events=%v", events)
	}
	if player.Health >= playerMaxHealth {
		t.Fatalf("expected the player to take damage, health=%v", player.Health)
	}
}

func TestReviveRestoresFaintedAlly(t *testing.T) {
	w := newTestWorld(t)
	hero := w.SpawnPlayer(factionPlayers)
	ally := w.SpawnPlayer(factionPlayers)
	ally.pos = hero.pos.Add(mgl64.Vec2{1, 0})

	w.ApplyDamage(ally.ID, playerMaxHealth*2, hero.ID)
	if w.LifeState(ally.ID) != action.LifeFainted {
		t.Fatalf("expected ally fainted, got %s", w.LifeState(ally.ID))
	}

	// An ordinary heal cannot target the fainted ally.
	if err := w.Submit(hero.ID, action.Request{Descriptor: "mend", TargetID: ally.ID, Sequence: 1}); err != nil {
		t.Fatalf("submit mend: %v", err)
	}
	if err := w.Submit(hero.ID, action.Request{Descriptor: "revive", TargetID: ally.ID, Sequence: 2}); err != nil {
		t.Fatalf("submit revive: %v", err)
	}

	events, _, _ := runTicks(w, time.Unix(3000, 0), 0, 90)

	var mendFailed bool
	for _, ev := range events {
		if ev.Kind == action.EventCancel && ev.Descriptor == "mend" && ev.Reason == action.ReasonPreconditionFailed {
			mendFailed = true
		}
	}
	if !mendFailed {
		t.Fatalf("mend must not resolve against a fainted target, events=%v", events)
	}
	if !hasEvent(events, action.EventEnd, "revive") {
		t.Fatalf("expected the revive to complete, events=%v", events)
	}
	if w.LifeState(ally.ID) != action.LifeAlive {
		t.Fatalf("expected ally restored, got %s", w.LifeState(ally.ID))
	}
	if ally.Health != 50 {
		t.Fatalf("expected the revive heal applied, health=%v", ally.Health)
	}
}

func TestWanderingNPCStaysNearOrigin(t *testing.T) {
	w := newTestWorld(t)
	origin := mgl64.Vec2{30, 30}
	npc := w.SpawnNPC(factionMonsters, origin, aiTestConfig())

	runTicks(w, time.Unix(3000, 0), 0, 600)

	if dist := w.entities[npc.ID].pos.Sub(origin).Len(); dist > npcWanderRadius+arriveEpsilon {
		t.Fatalf("wandering NPC drifted %v from origin, radius is %v", dist, npcWanderRadius)
	}
}

func TestDespawnDropsEntityAndQueue(t *testing.T) {
	w := newTestWorld(t)
	player := w.SpawnPlayer(factionPlayers)

	w.Despawn(player.ID)
	if _, ok := w.Position(player.ID); ok {
		t.Fatalf("despawned entity must not resolve")
	}
	if w.Queue(player.ID) != nil {
		t.Fatalf("despawned entity must not keep a queue")
	}
	if err := w.Submit(player.ID, action.Request{Descriptor: "wave", Sequence: 1}); err == nil {
		t.Fatalf("submitting to a despawned entity must fail")
	}
}
