package action

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

func advanceUntilTerminal(t *testing.T, inst *Instance, env Env, dt time.Duration, max int) int {
	t.Helper()
	for i := 0; i < max; i++ {
		if inst.State().Terminal() {
			return i
		}
		inst.advance(env, dt)
	}
	if !inst.State().Terminal() {
		t.Fatalf("instance stuck in %s after %d steps", inst.State(), max)
	}
	return max
}

func TestLifecycleWindows(t *testing.T) {
	desc := &Descriptor{
		ID:     "emote",
		Kind:   KindEmote,
		Timing: Timing{Windup: 100 * time.Millisecond, Execute: 100 * time.Millisecond, Recover: 100 * time.Millisecond},
	}
	pool := NewPool(2)
	inst := pool.Acquire(desc, "actor", TargetSnapshot{}, 1)
	env := Env{Effector: NopEffector{}}

	inst.start(env)
	if inst.State() != StateStarting {
		t.Fatalf("expected Starting, got %s", inst.State())
	}

	inst.advance(env, 50*time.Millisecond)
	if inst.State() != StateStarting {
		t.Fatalf("windup not elapsed, expected Starting, got %s", inst.State())
	}
	inst.advance(env, 50*time.Millisecond)
	if inst.State() != StateExecuting {
		t.Fatalf("expected Executing after windup, got %s", inst.State())
	}
	inst.advance(env, 100*time.Millisecond)
	if inst.State() != StateEnding {
		t.Fatalf("expected Ending after execute window, got %s", inst.State())
	}
	inst.advance(env, 100*time.Millisecond)
	if inst.State() != StateEnded {
		t.Fatalf("expected Ended after recovery, got %s", inst.State())
	}
}

func TestStartCancelsOnDeadTarget(t *testing.T) {
	world := newStubWorld()
	world.positions["actor"] = mgl64.Vec2{0, 0}
	world.positions["foe"] = mgl64.Vec2{1, 0}
	world.dead["foe"] = true

	desc := &Descriptor{ID: "strike", Kind: KindMelee, Range: 2, Damage: 10}
	pool := NewPool(2)
	inst := pool.Acquire(desc, "actor", TargetSnapshot{EntityID: "foe", HasEntity: true}, 1)
	env := Env{View: world, Movement: world, Effector: world}

	inst.start(env)
	if !inst.State().Terminal() {
		t.Fatalf("expected terminal state, got %s", inst.State())
	}
	if inst.CancelReason() != ReasonPreconditionFailed {
		t.Fatalf("expected precondition_failed, got %q", inst.CancelReason())
	}
	if world.damage["foe"] != 0 {
		t.Fatalf("no effects may fire on a failed start")
	}
}

func TestEntryEffectsFireExactlyOnce(t *testing.T) {
	world := newStubWorld()
	world.positions["actor"] = mgl64.Vec2{0, 0}
	world.positions["foe"] = mgl64.Vec2{1, 0}

	desc := &Descriptor{
		ID:     "strike",
		Kind:   KindMelee,
		Timing: Timing{Execute: 200 * time.Millisecond, Recover: 100 * time.Millisecond},
		Range:  2,
		Damage: 10,
	}
	pool := NewPool(2)
	inst := pool.Acquire(desc, "actor", TargetSnapshot{EntityID: "foe", HasEntity: true}, 1)
	env := Env{View: world, Movement: world, Effector: world}

	inst.start(env)
	advanceUntilTerminal(t, inst, env, 50*time.Millisecond, 20)

	if world.damage["foe"] != 10 {
		t.Fatalf("expected the effect point to fire exactly once, damage=%v", world.damage["foe"])
	}
}

func TestContinuousEffectsScaleWithElapsedTime(t *testing.T) {
	world := newStubWorld()
	world.positions["actor"] = mgl64.Vec2{0, 0}
	world.positions["foe"] = mgl64.Vec2{1, 0}

	desc := &Descriptor{
		ID:     "burn",
		Kind:   KindArea,
		Timing: Timing{Execute: time.Second},
		Damage: 10,
	}
	pool := NewPool(2)
	inst := pool.Acquire(desc, "actor", TargetSnapshot{EntityID: "foe", HasEntity: true}, 1)
	env := Env{View: world, Movement: world, Effector: world}

	inst.start(env)
	inst.advance(env, 250*time.Millisecond)
	inst.advance(env, 250*time.Millisecond)

	if got := world.damage["foe"]; got != 5 {
		t.Fatalf("expected half the damage after half the window, got %v", got)
	}
	if inst.State() != StateExecuting {
		t.Fatalf("expected Executing, got %s", inst.State())
	}
}

func TestContinuousEffectsSkipWindupShareOfTransitionTick(t *testing.T) {
	world := newStubWorld()
	world.positions["actor"] = mgl64.Vec2{0, 0}
	world.positions["foe"] = mgl64.Vec2{1, 0}

	desc := &Descriptor{
		ID:     "burn",
		Kind:   KindArea,
		Timing: Timing{Windup: 500 * time.Millisecond, Execute: time.Second},
		Damage: 10,
	}
	pool := NewPool(2)
	inst := pool.Acquire(desc, "actor", TargetSnapshot{EntityID: "foe", HasEntity: true}, 1)
	env := Env{View: world, Movement: world, Effector: world}

	inst.start(env)
	// A 750ms tick crosses the 500ms windup; only the 250ms inside the
	// execute window applies effects.
	inst.advance(env, 750*time.Millisecond)

	if got := world.damage["foe"]; got != 2.5 {
		t.Fatalf("expected damage for the post-windup remainder only, got %v", got)
	}
	if inst.State() != StateExecuting {
		t.Fatalf("expected Executing, got %s", inst.State())
	}
}

func TestCancelReachesEndedSameAdvance(t *testing.T) {
	world := newStubWorld()
	world.positions["actor"] = mgl64.Vec2{0, 0}
	world.positions["foe"] = mgl64.Vec2{5, 0}

	desc := &Descriptor{ID: "run", Kind: KindChase, Timing: Timing{Execute: 5 * time.Second}}
	pool := NewPool(2)
	inst := pool.Acquire(desc, "actor", TargetSnapshot{EntityID: "foe", HasEntity: true}, 1)
	env := Env{View: world, Movement: world, Effector: world}

	inst.start(env)
	if world.follows["actor"] != "foe" {
		t.Fatalf("chase must hold the movement lock")
	}

	inst.RequestCancel(ReasonOwnerDied)
	inst.advance(env, 50*time.Millisecond)

	if !inst.State().Terminal() {
		t.Fatalf("cancel must reach Ended in one advance, got %s", inst.State())
	}
	if world.stops == 0 {
		t.Fatalf("cancel must release the movement lock")
	}
	if inst.CancelReason() != ReasonOwnerDied {
		t.Fatalf("unexpected cancel reason %q", inst.CancelReason())
	}
}

func TestZeroRecoverySkipsEndingWait(t *testing.T) {
	desc := &Descriptor{ID: "jab", Kind: KindEmote, Timing: Timing{Execute: 100 * time.Millisecond}}
	pool := NewPool(2)
	inst := pool.Acquire(desc, "actor", TargetSnapshot{}, 1)
	env := Env{Effector: NopEffector{}}

	inst.start(env)
	inst.advance(env, 100*time.Millisecond)
	if inst.State() != StateEnded {
		t.Fatalf("zero recovery must terminate immediately, got %s", inst.State())
	}
}
