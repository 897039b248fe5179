package action

import "time"

// State is one step of the action lifecycle. The same state shape drives both
// the authoritative server queue and the client predictive mirror; only the
// Effector wired into the environment differs.
type State uint8

const (
	StateUninitialized State = iota
	StateStarting
	StateExecuting
	StateChaining
	StateEnding
	StateCancelled
	StateEnded
)

// String returns the lifecycle state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateStarting:
		return "Starting"
	case StateExecuting:
		return "Executing"
	case StateChaining:
		return "Chaining"
	case StateEnding:
		return "Ending"
	case StateCancelled:
		return "Cancelled"
	case StateEnded:
		return "Ended"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateEnded
}

// CancelReason explains why an instance left the lifecycle early.
type CancelReason string

const (
	ReasonNone               CancelReason = ""
	ReasonPreconditionFailed CancelReason = "precondition_failed"
	ReasonReplaced           CancelReason = "replaced"
	ReasonStopCharge         CancelReason = "stop_charge"
	ReasonOwnerDied          CancelReason = "owner_died"
)

// Env carries the collaborators an instance needs while advancing. The queue
// owns one Env for its entity; the mirror builds a cosmetic one.
type Env struct {
	View     View
	Movement Movement
	Effector Effector
}

// Instance is the pooled runtime state of one action. It is owned exclusively
// by the queue (or mirror) that acquired it and returns to the pool when the
// lifecycle reaches Ended.
type Instance struct {
	desc     *Descriptor
	owner    string
	state    State
	elapsed  time.Duration
	target   TargetSnapshot
	sequence uint64

	// reach overrides the descriptor range for synthesized chases so
	// arrival is judged against the originating action's range.
	reach      float64
	synthDepth int
	synthCost  time.Duration

	cancelRequested bool
	cancelReason    CancelReason

	// entryEffectsDone guards the exactly-once effect point for
	// non-continuous kinds; re-entering Executing never retries it.
	entryEffectsDone bool
	buffsGranted     bool
	chainEmitted     bool
	movementHeld     bool
}

// Descriptor returns the bound definition.
func (in *Instance) Descriptor() *Descriptor { return in.desc }

// Owner returns the entity running the action.
func (in *Instance) Owner() string { return in.owner }

// State returns the current lifecycle state.
func (in *Instance) State() State { return in.state }

// Sequence returns the broadcast sequence assigned at start.
func (in *Instance) Sequence() uint64 { return in.sequence }

// Target returns the snapshot resolved when the instance started.
func (in *Instance) Target() TargetSnapshot { return in.target }

// RequestCancel flags the instance for cooperative cancellation. The flag is
// observed at the next tick boundary, so at most one tick of extra execution
// runs before termination.
func (in *Instance) RequestCancel(reason CancelReason) {
	if in == nil || in.state.Terminal() {
		return
	}
	if !in.cancelRequested {
		in.cancelRequested = true
		in.cancelReason = reason
	}
}

// CancelReason returns the recorded cancellation reason, if any.
func (in *Instance) CancelReason() CancelReason { return in.cancelReason }

// bind prepares a pooled instance for a new run.
func (in *Instance) bind(desc *Descriptor, owner string, target TargetSnapshot, sequence uint64) {
	in.desc = desc
	in.owner = owner
	in.state = StateUninitialized
	in.elapsed = 0
	in.target = target
	in.sequence = sequence
	in.reach = 0
	in.synthDepth = 0
	in.synthCost = 0
	in.cancelRequested = false
	in.cancelReason = ReasonNone
	in.entryEffectsDone = false
	in.buffsGranted = false
	in.chainEmitted = false
	in.movementHeld = false
}

// reset clears all fields before the instance returns to the free list.
func (in *Instance) reset() {
	in.bind(nil, "", TargetSnapshot{}, 0)
}

// start moves the instance into Starting and validates preconditions. A
// failed validation transitions directly to Cancelled with
// ReasonPreconditionFailed.
func (in *Instance) start(env Env) {
	in.state = StateStarting
	in.elapsed = 0
	if !in.validate(env) {
		in.cancel(env, ReasonPreconditionFailed)
		return
	}
	if in.desc.Kind == KindChase && in.target.HasEntity {
		env.Movement.FollowEntity(in.owner, in.target.EntityID)
		in.movementHeld = true
	}
}

// validate checks target liveness and range at the Starting boundary.
func (in *Instance) validate(env Env) bool {
	if in.desc == nil {
		return false
	}
	if !in.desc.RequiresTarget() {
		return true
	}
	if !in.target.HasEntity {
		return in.target.HasPoint
	}
	if env.View == nil {
		return false
	}
	if !env.View.Alive(in.target.EntityID) && !in.desc.Revive {
		return false
	}
	if in.desc.Kind == KindChase || in.desc.Range <= 0 {
		return true
	}
	selfPos, ok := env.View.Position(in.owner)
	if !ok {
		return false
	}
	targetPos, ok := env.View.Position(in.target.EntityID)
	if !ok {
		return false
	}
	return targetPos.Sub(selfPos).Len() <= in.desc.Range
}

// advance drives the lifecycle by dt. The queue inspects state afterwards to
// react to chain emission and terminal transitions.
func (in *Instance) advance(env Env, dt time.Duration) {
	if in == nil || in.state.Terminal() {
		return
	}
	if in.cancelRequested {
		in.cancel(env, in.cancelReason)
		return
	}

	in.elapsed += dt

	switch in.state {
	case StateStarting:
		if in.elapsed < in.desc.Timing.Windup {
			return
		}
		in.elapsed -= in.desc.Timing.Windup
		in.state = StateExecuting
		if !in.desc.ContinuousEffects() {
			in.applyEntryEffects(env)
		}
		// Only the post-windup remainder of this tick falls inside the
		// execute window.
		dt = in.elapsed
		fallthrough
	case StateExecuting:
		if in.desc.ContinuousEffects() {
			in.applyContinuousEffects(env, dt)
		}
		if in.desc.Mode == ModeEndsOnDeselect {
			// Selections have no natural completion; they end only when
			// the selection is replaced or cancelled.
			return
		}
		if in.desc.Kind == KindChase && in.arrived(env) {
			in.finishExecute(env)
			return
		}
		if in.elapsed < in.desc.Timing.Execute {
			return
		}
		in.elapsed -= in.desc.Timing.Execute
		in.finishExecute(env)
	case StateEnding:
		if in.elapsed < in.desc.Timing.Recover {
			return
		}
		in.state = StateEnded
	}
}

// finishExecute leaves the execute window: chain if the descriptor asks for
// it, otherwise run the recovery window.
func (in *Instance) finishExecute(env Env) {
	in.releaseMovement(env)
	if in.desc.ContinuousEffects() {
		in.grantBuffs(env)
	}
	if in.desc.ChainTo != "" {
		in.state = StateChaining
		return
	}
	in.state = StateEnding
	in.elapsed = 0
	if in.desc.Timing.Recover <= 0 {
		in.state = StateEnded
	}
}

// completeChain is called by the queue once the chain request has been
// synthesized; the instance then terminates without a recovery window.
func (in *Instance) completeChain() {
	if in.state == StateChaining {
		in.chainEmitted = true
		in.state = StateEnded
	}
}

// cancel releases exclusive resources and terminates. Cancelled is a
// transient state: the instance reaches Ended within the same advance so the
// blocking slot frees immediately.
func (in *Instance) cancel(env Env, reason CancelReason) {
	if in.state.Terminal() {
		return
	}
	in.releaseMovement(env)
	in.state = StateCancelled
	in.cancelReason = reason
	in.state = StateEnded
}

func (in *Instance) releaseMovement(env Env) {
	if !in.movementHeld {
		return
	}
	in.movementHeld = false
	if env.Movement != nil {
		env.Movement.Stop(in.owner)
	}
}

// arrived reports whether a chase got within its captured range of the
// target. Chase is the one kind that re-resolves its target every tick.
func (in *Instance) arrived(env Env) bool {
	if !in.target.HasEntity || env.View == nil {
		return true
	}
	if !env.View.Alive(in.target.EntityID) {
		return true
	}
	selfPos, ok := env.View.Position(in.owner)
	if !ok {
		return true
	}
	targetPos, ok := env.View.Position(in.target.EntityID)
	if !ok {
		return true
	}
	reach := in.reach
	if reach <= 0 {
		reach = in.desc.Range
	}
	if reach <= 0 {
		reach = 1
	}
	return targetPos.Sub(selfPos).Len() <= reach
}

// applyEntryEffects fires the exactly-once effect point for instant kinds.
func (in *Instance) applyEntryEffects(env Env) {
	if in.entryEffectsDone || env.Effector == nil {
		return
	}
	in.entryEffectsDone = true
	in.applyEffects(env, 1)
}

// applyContinuousEffects scales the descriptor's per-execute effects by the
// fraction of the execute window covered this tick.
func (in *Instance) applyContinuousEffects(env Env, dt time.Duration) {
	if env.Effector == nil || in.desc.Timing.Execute <= 0 {
		return
	}
	fraction := float64(dt) / float64(in.desc.Timing.Execute)
	if fraction > 1 {
		fraction = 1
	}
	in.applyEffects(env, fraction)
}

func (in *Instance) applyEffects(env Env, scale float64) {
	targetID := in.target.EntityID
	if !in.target.HasEntity {
		targetID = in.owner
	}
	if in.desc.Damage > 0 && in.target.HasEntity {
		env.Effector.Damage(targetID, in.desc.Damage*scale, in.owner)
	}
	if in.desc.Healing > 0 {
		env.Effector.Heal(targetID, in.desc.Healing*scale, in.owner)
	}
	if scale >= 1 {
		in.grantBuffs(env)
	}
}

// grantBuffs fires the once-only buff grant. Buffs are discrete, never
// scaled: instant kinds grant with their entry effects, continuous kinds on
// natural completion. A cancelled charge grants nothing.
func (in *Instance) grantBuffs(env Env) {
	if in.buffsGranted || env.Effector == nil {
		return
	}
	in.buffsGranted = true
	targetID := in.target.EntityID
	if !in.target.HasEntity {
		targetID = in.owner
	}
	for _, grant := range in.desc.Buffs {
		env.Effector.Buff(targetID, grant, in.owner)
	}
}
