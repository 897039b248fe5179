package action

import (
	"fmt"
	"time"
)

// QueueConfig tunes per-entity admission control.
type QueueConfig struct {
	// Capacity bounds the pending request queue.
	Capacity int
	// BlockingBudget caps the summed blocking duration of queued requests,
	// preventing unbounded stunlock chains.
	BlockingBudget time.Duration
	// MaxConcurrent bounds simultaneously running non-blocking instances.
	MaxConcurrent int
	// ChaseDescriptor names the catalog entry synthesized ahead of an
	// out-of-range targeted request. Empty disables chase synthesis.
	ChaseDescriptor string
}

func (cfg QueueConfig) normalized() QueueConfig {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 8
	}
	if cfg.BlockingBudget <= 0 {
		cfg.BlockingBudget = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return cfg
}

// Queue is the per-entity ordered action queue: admission control, chase and
// chain synthesis, cooldown tracking, and the per-tick lifecycle update loop.
// All instances it starts are exclusively owned by it until they terminate
// and return to the pool.
type Queue struct {
	actorID string
	cfg     QueueConfig
	pool    *Pool
	catalog *Catalog
	env     Env

	pending    []Request
	active     *Instance
	concurrent []*Instance
	cooldowns  map[string]time.Time

	nextSeq uint64
	events  []Event
	tick    uint64
}

// NewQueue builds a queue for one entity.
func NewQueue(actorID string, cfg QueueConfig, catalog *Catalog, pool *Pool, env Env) *Queue {
	return &Queue{
		actorID:   actorID,
		cfg:       cfg.normalized(),
		pool:      pool,
		catalog:   catalog,
		env:       env,
		pending:   make([]Request, 0, 4),
		cooldowns: make(map[string]time.Time),
	}
}

// ActorID returns the owning entity id.
func (q *Queue) ActorID() string { return q.actorID }

// Submit admits a request or rejects it without any state change. Cooldowns
// are deliberately not checked here: a request submitted while its descriptor
// is cooling down waits in the queue and fires when ready.
func (q *Queue) Submit(req Request) error {
	desc, err := q.catalog.Resolve(req.Descriptor)
	if err != nil {
		return err
	}
	req.ActorID = q.actorID

	// Admission is judged against the queue this request would leave
	// behind; a cancel-previous clear happens only once admission passes.
	pendingLen := len(q.pending)
	queued := q.queuedBlocking()
	if req.CancelPrevious {
		pendingLen = 0
		queued = 0
	}
	if pendingLen >= q.cfg.Capacity {
		return fmt.Errorf("%w: %d pending", ErrQueueFull, pendingLen)
	}
	if !req.budgetExempt() {
		if cost := desc.BlockingDuration(); cost > 0 {
			if queued+cost > q.cfg.BlockingBudget {
				return fmt.Errorf("%w: budget %s", ErrBudgetExceeded, q.cfg.BlockingBudget)
			}
		}
	}

	if req.CancelPrevious {
		q.pending = q.pending[:0]
		if q.active != nil {
			q.active.RequestCancel(ReasonReplaced)
		}
	}

	if desc.Kind == KindSelect {
		// A new selection supersedes the previous one.
		q.Cancel(func(d *Descriptor) bool {
			return d != nil && d.Mode == ModeEndsOnDeselect
		}, ReasonReplaced)
	}

	if desc.Reactive {
		// Reactive requests preempt the FIFO order, and stop the
		// active charge immediately rather than waiting for a slot.
		if q.active != nil && q.active.desc != nil && q.active.desc.Kind == KindCharge {
			q.active.RequestCancel(ReasonStopCharge)
		}
		q.pending = append([]Request{req}, q.pending...)
		return nil
	}

	q.pending = append(q.pending, req)
	return nil
}

// Tick advances every running instance by dt and admits pending requests
// while slots are available. It returns the lifecycle events produced this
// tick, in order.
func (q *Queue) Tick(tick uint64, now time.Time, dt time.Duration) []Event {
	q.tick = tick

	if q.active != nil {
		q.advanceInstance(q.active, dt)
		if q.active.state.Terminal() {
			q.retire(q.active)
			q.active = nil
		}
	}

	kept := q.concurrent[:0]
	for _, inst := range q.concurrent {
		q.advanceInstance(inst, dt)
		if inst.state.Terminal() {
			q.retire(inst)
			continue
		}
		kept = append(kept, inst)
	}
	q.concurrent = kept

	q.admit(now)

	events := q.events
	q.events = nil
	return events
}

// advanceInstance steps one instance and resolves a pending chain.
func (q *Queue) advanceInstance(inst *Instance, dt time.Duration) {
	inst.advance(q.env, dt)
	if inst.state == StateChaining {
		chain := inst.chainRequest()
		// Chain continuations take priority over queued-but-not-yet
		// admitted requests.
		if q.admitSynthesized(chain) {
			q.pending = append([]Request{chain}, q.pending...)
		}
		inst.completeChain()
	}
}

// admitSynthesized applies admission control to a queue-synthesized request.
// Depth within maxSynthesisDepth is exempt; past it, capacity and the
// blocking budget apply, counting the blocking time the synthesis chain has
// already consumed. A chain cycle therefore exhausts the budget and stops.
func (q *Queue) admitSynthesized(req Request) bool {
	if req.budgetExempt() {
		return true
	}
	desc, err := q.catalog.Resolve(req.Descriptor)
	if err != nil {
		return false
	}
	if len(q.pending) >= q.cfg.Capacity {
		return false
	}
	if cost := desc.BlockingDuration(); cost > 0 {
		if req.synthCost+q.queuedBlocking()+cost > q.cfg.BlockingBudget {
			return false
		}
	}
	return true
}

// admit dequeues requests while the head can start. A head on cooldown (or
// waiting for the blocking slot) holds the queue: admission is strict FIFO.
func (q *Queue) admit(now time.Time) {
	for len(q.pending) > 0 {
		head := q.pending[0]
		desc, err := q.catalog.Resolve(head.Descriptor)
		if err != nil {
			// Validated at submit; a miss here means the request was
			// synthesized against a trimmed catalog. Drop it.
			q.pending = q.pending[1:]
			continue
		}

		if expiry, ok := q.cooldowns[desc.ID]; ok && now.Before(expiry) {
			return
		}

		if q.needsChase(desc, head) {
			chase := head.synthesize(q.cfg.ChaseDescriptor)
			chase.chaseRange = desc.Range
			q.pending[0].chaseIssued = true
			if q.admitSynthesized(chase) {
				q.pending = append([]Request{chase}, q.pending...)
			}
			continue
		}

		if desc.Blocking() {
			if q.active != nil {
				return
			}
		} else if len(q.concurrent) >= q.cfg.MaxConcurrent {
			return
		}

		if !desc.AllowStacking && q.descriptorActive(desc.ID) {
			// One instance per descriptor per entity. Dropping keeps
			// the queue flowing instead of deadlocking behind the
			// running twin.
			q.pending = q.pending[1:]
			q.emit(Event{
				Kind:       EventCancel,
				Descriptor: desc.ID,
				ActorID:    q.actorID,
				Reason:     ReasonPreconditionFailed,
				Tick:       q.tick,
			})
			continue
		}

		q.pending = q.pending[1:]
		q.start(desc, head, now)
	}
}

// needsChase reports whether head must be preceded by a synthesized chase.
// At most one chase is synthesized per originating request; afterwards range
// is re-validated at Starting.
func (q *Queue) needsChase(desc *Descriptor, head Request) bool {
	if q.cfg.ChaseDescriptor == "" || head.chaseIssued {
		return false
	}
	if desc.Kind == KindChase || desc.Kind == KindSelect || !desc.RequiresTarget() {
		return false
	}
	if desc.Range <= 0 || head.TargetID == "" || q.env.View == nil {
		return false
	}
	if _, err := q.catalog.Resolve(q.cfg.ChaseDescriptor); err != nil {
		return false
	}
	selfPos, ok := q.env.View.Position(q.actorID)
	if !ok {
		return false
	}
	targetPos, ok := q.env.View.Position(head.TargetID)
	if !ok {
		return false
	}
	return targetPos.Sub(selfPos).Len() > desc.Range
}

// start resolves the target snapshot, acquires a pooled instance, stamps the
// cooldown, and runs the Starting validation.
func (q *Queue) start(desc *Descriptor, req Request, now time.Time) {
	target := TargetSnapshot{}
	if req.TargetID != "" {
		target.EntityID = req.TargetID
		target.HasEntity = true
		if q.env.View != nil {
			if pos, ok := q.env.View.Position(req.TargetID); ok {
				target.Point = pos
				target.HasPoint = true
			}
		}
	} else if req.HasPoint {
		target.Point = req.TargetPoint
		target.HasPoint = true
	}

	q.nextSeq++
	inst := q.pool.Acquire(desc, q.actorID, target, q.nextSeq)
	inst.synthDepth = req.synthDepth
	inst.synthCost = req.synthCost
	if req.chaseRange > 0 {
		inst.reach = req.chaseRange
	}

	if desc.Cooldown > 0 {
		expiry := now.Add(desc.Cooldown)
		// Cooldown expiry never moves backwards.
		if existing, ok := q.cooldowns[desc.ID]; !ok || expiry.After(existing) {
			q.cooldowns[desc.ID] = expiry
		}
	}

	q.emit(Event{
		Kind:        EventStart,
		Descriptor:  desc.ID,
		ActorID:     q.actorID,
		Sequence:    inst.sequence,
		Target:      target,
		Tick:        q.tick,
		Synthesized: req.synthesized,
	})

	inst.start(q.env)
	if inst.state.Terminal() {
		q.retire(inst)
		return
	}

	if desc.Blocking() {
		q.active = inst
	} else {
		q.concurrent = append(q.concurrent, inst)
	}
}

// retire emits the terminal event for inst and returns it to the pool.
func (q *Queue) retire(inst *Instance) {
	ev := Event{
		Kind:        EventEnd,
		Descriptor:  inst.desc.ID,
		ActorID:     q.actorID,
		Sequence:    inst.sequence,
		Target:      inst.target,
		Tick:        q.tick,
		Synthesized: inst.synthDepth > 0,
	}
	if reason := inst.cancelReason; reason != ReasonNone {
		ev.Kind = EventCancel
		ev.Reason = reason
		if reason == ReasonStopCharge {
			ev.Kind = EventStopCharge
		}
	}
	q.emit(ev)
	q.pool.Release(inst)
}

// Cancel cancels the active and concurrent instances matching pred and
// removes matching pending requests. External life-state transitions use it,
// e.g. clearing all non-revive actions on death.
func (q *Queue) Cancel(pred func(*Descriptor) bool, reason CancelReason) {
	if pred == nil {
		pred = func(*Descriptor) bool { return true }
	}
	if q.active != nil && pred(q.active.desc) {
		q.active.RequestCancel(reason)
	}
	for _, inst := range q.concurrent {
		if pred(inst.desc) {
			inst.RequestCancel(reason)
		}
	}
	kept := q.pending[:0]
	for _, req := range q.pending {
		desc, err := q.catalog.Resolve(req.Descriptor)
		if err == nil && pred(desc) {
			continue
		}
		kept = append(kept, req)
	}
	q.pending = kept
}

// chainRequest builds the synthesized continuation for a chaining instance.
func (in *Instance) chainRequest() Request {
	req := Request{
		Descriptor:  in.desc.ChainTo,
		ActorID:     in.owner,
		Sequence:    in.sequence,
		synthesized: true,
		synthDepth:  in.synthDepth + 1,
		synthCost:   in.synthCost + in.desc.BlockingDuration(),
	}
	if in.target.HasEntity {
		req.TargetID = in.target.EntityID
	} else if in.target.HasPoint {
		req.TargetPoint = in.target.Point
		req.HasPoint = true
	}
	return req
}

func (q *Queue) queuedBlocking() time.Duration {
	var total time.Duration
	for _, req := range q.pending {
		if desc, err := q.catalog.Resolve(req.Descriptor); err == nil {
			total += desc.BlockingDuration()
		}
	}
	return total
}

func (q *Queue) descriptorActive(id string) bool {
	if q.active != nil && q.active.desc != nil && q.active.desc.ID == id {
		return true
	}
	for _, inst := range q.concurrent {
		if inst.desc != nil && inst.desc.ID == id {
			return true
		}
	}
	return false
}

func (q *Queue) emit(ev Event) {
	q.events = append(q.events, ev)
}

// Active returns the running blocking instance, if any.
func (q *Queue) Active() *Instance { return q.active }

// PendingLen reports the number of queued requests.
func (q *Queue) PendingLen() int { return len(q.pending) }

// PendingDescriptors lists queued descriptor ids in order.
func (q *Queue) PendingDescriptors() []string {
	ids := make([]string, len(q.pending))
	for i, req := range q.pending {
		ids[i] = req.Descriptor
	}
	return ids
}

// ConcurrentLen reports the number of running non-blocking instances.
func (q *Queue) ConcurrentLen() int { return len(q.concurrent) }

// QueuedBlocking exposes the budget accounting for inspection.
func (q *Queue) QueuedBlocking() time.Duration { return q.queuedBlocking() }

// CooldownExpiry returns the recorded cooldown expiry for a descriptor.
func (q *Queue) CooldownExpiry(id string) (time.Time, bool) {
	expiry, ok := q.cooldowns[id]
	return expiry, ok
}

// Idle reports whether nothing is running or pending.
func (q *Queue) Idle() bool {
	return q.active == nil && len(q.concurrent) == 0 && len(q.pending) == 0
}
