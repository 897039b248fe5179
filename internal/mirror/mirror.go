// Package mirror is the client-side predictive twin of the server action
// queue. It anticipates the visible effects of a submitted request before any
// server acknowledgment arrives, then reconciles against the authoritative
// start/cancel/end broadcast. Reconciliation is idempotent: late or duplicate
// broadcasts are no-ops once local state already matches.
package mirror

import (
	"duskhollow/server/internal/action"
)

// Anticipation tracks one locally predicted action and the cosmetic effects
// it applied, so a server cancel reverts them without residue.
type anticipation struct {
	desc      *action.Descriptor
	localSeq  uint64
	serverSeq uint64
	confirmed bool
	targetID  string
	applied   []appliedEffect
}

type appliedEffect struct {
	targetID string
	damage   float64
	healing  float64
}

// Mirror reconciles one entity's predicted actions with server truth.
type Mirror struct {
	actorID string
	catalog *action.Catalog

	anticipated []*anticipation
	nextLocal   uint64
	lastStart   uint64

	predictedDamage map[string]float64
	predictedHeals  map[string]float64
	mismatches      uint64
}

// New builds a mirror for one entity.
func New(actorID string, catalog *action.Catalog) *Mirror {
	return &Mirror{
		actorID:         actorID,
		catalog:         catalog,
		predictedDamage: make(map[string]float64),
		predictedHeals:  make(map[string]float64),
	}
}

// SubmitLocal anticipates the visible effects of a request the client just
// sent. Selection kinds never anticipate: they carry no visible commitment
// cost and mispredicting a target is jarring.
func (m *Mirror) SubmitLocal(req action.Request) error {
	desc, err := m.catalog.Resolve(req.Descriptor)
	if err != nil {
		return err
	}
	if desc.Kind == action.KindSelect {
		return nil
	}

	m.nextLocal++
	ant := &anticipation{
		desc:     desc,
		localSeq: m.nextLocal,
		targetID: req.TargetID,
	}
	m.applyPrediction(ant)
	m.anticipated = append(m.anticipated, ant)
	return nil
}

// applyPrediction runs the best-effort cosmetic version of the action's
// entry effects.
func (m *Mirror) applyPrediction(ant *anticipation) {
	if ant.targetID == "" {
		return
	}
	effect := appliedEffect{targetID: ant.targetID}
	if ant.desc.Damage > 0 {
		effect.damage = ant.desc.Damage
		m.predictedDamage[ant.targetID] += ant.desc.Damage
	}
	if ant.desc.Healing > 0 {
		effect.healing = ant.desc.Healing
		m.predictedHeals[ant.targetID] += ant.desc.Healing
	}
	if effect.damage > 0 || effect.healing > 0 {
		ant.applied = append(ant.applied, effect)
	}
}

// revert undoes every cosmetic effect an anticipation applied.
func (m *Mirror) revert(ant *anticipation) {
	for _, effect := range ant.applied {
		if effect.damage > 0 {
			m.predictedDamage[effect.targetID] -= effect.damage
			if m.predictedDamage[effect.targetID] <= 0 {
				delete(m.predictedDamage, effect.targetID)
			}
		}
		if effect.healing > 0 {
			m.predictedHeals[effect.targetID] -= effect.healing
			if m.predictedHeals[effect.targetID] <= 0 {
				delete(m.predictedHeals, effect.targetID)
			}
		}
	}
	ant.applied = nil
}

// commit finalizes an anticipation whose action the server completed: the
// authoritative state event supersedes the prediction, so the cosmetic
// overlay is dropped without reverting the world.
func (m *Mirror) commit(ant *anticipation) {
	m.revert(ant)
}

// Observe reconciles one authoritative broadcast.
func (m *Mirror) Observe(ev action.Event) {
	if ev.ActorID != m.actorID {
		return
	}
	switch ev.Kind {
	case action.EventStart:
		m.observeStart(ev)
	case action.EventCancel, action.EventStopCharge:
		m.observeTerminal(ev, true)
	case action.EventEnd:
		m.observeTerminal(ev, false)
	}
}

func (m *Mirror) observeStart(ev action.Event) {
	if ev.Sequence <= m.lastStart {
		// Late or duplicate broadcast; local state already matches.
		return
	}
	m.lastStart = ev.Sequence

	if ev.Synthesized {
		// Chase prerequisites and chain follow-ups originate server-side;
		// no anticipation ever corresponds to them.
		return
	}

	ant := m.oldestUnconfirmed()
	if ant == nil {
		// Not locally predicted; nothing to reconcile.
		return
	}
	if ant.desc.ID != ev.Descriptor {
		// Wrong descriptor: the server ran something other than what we
		// anticipated. Cancel-and-resync.
		m.mismatches++
		m.Resync()
		return
	}
	ant.serverSeq = ev.Sequence
	ant.confirmed = true
}

func (m *Mirror) observeTerminal(ev action.Event, cancelled bool) {
	for i, ant := range m.anticipated {
		if !ant.confirmed || ant.serverSeq != ev.Sequence {
			continue
		}
		if cancelled {
			m.revert(ant)
			m.mismatches++
		} else {
			m.commit(ant)
		}
		m.anticipated = append(m.anticipated[:i], m.anticipated[i+1:]...)
		return
	}
	// No matching anticipation: late, duplicate, or server-synthesized.
}

// oldestUnconfirmed returns the earliest anticipation still waiting for its
// authoritative start.
func (m *Mirror) oldestUnconfirmed() *anticipation {
	for _, ant := range m.anticipated {
		if !ant.confirmed {
			return ant
		}
	}
	return nil
}

// Resync drops every anticipation and reverts their cosmetic effects. Used
// on reconciliation mismatch; never surfaced as a hard error.
func (m *Mirror) Resync() {
	for _, ant := range m.anticipated {
		m.revert(ant)
	}
	m.anticipated = m.anticipated[:0]
}

// PredictedDamage reports the outstanding cosmetic damage overlay on a
// target. Zero means no residual prediction.
func (m *Mirror) PredictedDamage(targetID string) float64 {
	return m.predictedDamage[targetID]
}

// PredictedHealing reports the outstanding cosmetic heal overlay on a target.
func (m *Mirror) PredictedHealing(targetID string) float64 {
	return m.predictedHeals[targetID]
}

// Pending reports how many anticipations are outstanding.
func (m *Mirror) Pending() int { return len(m.anticipated) }

// Mismatches counts reconciliation corrections since start.
func (m *Mirror) Mismatches() uint64 { return m.mismatches }
