package mirror

import (
	"testing"
	"time"

	"duskhollow/server/internal/action"
)

func mirrorCatalog(t *testing.T) *action.Catalog {
	t.Helper()
	catalog, err := action.NewCatalog(
		&action.Descriptor{
			ID:     "strike",
			Kind:   action.KindMelee,
			Timing: action.Timing{Execute: 100 * time.Millisecond},
			Range:  2,
			Damage: 10,
		},
		&action.Descriptor{
			ID:      "mend",
			Kind:    action.KindTargeted,
			Timing:  action.Timing{Execute: 100 * time.Millisecond},
			Range:   8,
			Healing: 20,
		},
		&action.Descriptor{
			ID:     "chase",
			Kind:   action.KindChase,
			Timing: action.Timing{Execute: 5 * time.Second},
			Range:  2,
		},
		&action.Descriptor{
			ID:   "select-target",
			Kind: action.KindSelect,
			Mode: action.ModeEndsOnDeselect,
		},
		&action.Descriptor{
			ID:     "wave",
			Kind:   action.KindEmote,
			Timing: action.Timing{Execute: 100 * time.Millisecond},
		},
	)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return catalog
}

func TestPredictionCommitsOnAuthoritativeEnd(t *testing.T) {
	m := New("hero", mirrorCatalog(t))

	if err := m.SubmitLocal(action.Request{Descriptor: "strike", TargetID: "foe"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := m.PredictedDamage("foe"); got != 10 {
		t.Fatalf("expected anticipated damage overlay, got %v", got)
	}

	m.Observe(action.Event{Kind: action.EventStart, ActorID: "hero", Descriptor: "strike", Sequence: 1})
	m.Observe(action.Event{Kind: action.EventEnd, ActorID: "hero", Descriptor: "strike", Sequence: 1})

	if got := m.PredictedDamage("foe"); got != 0 {
		t.Fatalf("authoritative end must clear the overlay, got %v", got)
	}
	if m.Pending() != 0 {
		t.Fatalf("expected no outstanding anticipations, got %d", m.Pending())
	}
	if m.Mismatches() != 0 {
		t.Fatalf("clean confirmation is not a mismatch, got %d", m.Mismatches())
	}
}

func TestCancelRevertsPredictionWithoutResidue(t *testing.T) {
	m := New("hero", mirrorCatalog(t))

	m.SubmitLocal(action.Request{Descriptor: "mend", TargetID: "ally"})
	if got := m.PredictedHealing("ally"); got != 20 {
		t.Fatalf("expected anticipated healing, got %v", got)
	}

	m.Observe(action.Event{Kind: action.EventStart, ActorID: "hero", Descriptor: "mend", Sequence: 1})
	m.Observe(action.Event{Kind: action.EventCancel, ActorID: "hero", Descriptor: "mend", Sequence: 1, Reason: action.ReasonPreconditionFailed})

	if got := m.PredictedHealing("ally"); got != 0 {
		t.Fatalf("cancel must revert every cosmetic effect, got %v", got)
	}
	if m.Mismatches() != 1 {
		t.Fatalf("a reverted prediction counts as a mismatch, got %d", m.Mismatches())
	}
}

func TestDuplicateBroadcastsAreIdempotent(t *testing.T) {
	m := New("hero", mirrorCatalog(t))

	m.SubmitLocal(action.Request{Descriptor: "strike", TargetID: "foe"})

	start := action.Event{Kind: action.EventStart, ActorID: "hero", Descriptor: "strike", Sequence: 1}
	end := action.Event{Kind: action.EventEnd, ActorID: "hero", Descriptor: "strike", Sequence: 1}

	m.Observe(start)
	m.Observe(start)
	m.Observe(end)
	m.Observe(end)

	if m.Pending() != 0 || m.Mismatches() != 0 {
		t.Fatalf("duplicates must be no-ops: pending=%d mismatches=%d", m.Pending(), m.Mismatches())
	}
	if got := m.PredictedDamage("foe"); got != 0 {
		t.Fatalf("overlay must clear exactly once, got %v", got)
	}
}

func TestSelectionNeverAnticipates(t *testing.T) {
	m := New("hero", mirrorCatalog(t))

	if err := m.SubmitLocal(action.Request{Descriptor: "select-target", TargetID: "foe"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if m.Pending() != 0 {
		t.Fatalf("selection kinds must not anticipate, pending=%d", m.Pending())
	}
}

func TestDescriptorMismatchTriggersResync(t *testing.T) {
	m := New("hero", mirrorCatalog(t))

	m.SubmitLocal(action.Request{Descriptor: "strike", TargetID: "foe"})
	m.Observe(action.Event{Kind: action.EventStart, ActorID: "hero", Descriptor: "wave", Sequence: 1})

	if m.Mismatches() != 1 {
		t.Fatalf("expected a reconciliation mismatch, got %d", m.Mismatches())
	}
	if m.Pending() != 0 {
		t.Fatalf("resync must drop every anticipation, pending=%d", m.Pending())
	}
	if got := m.PredictedDamage("foe"); got != 0 {
		t.Fatalf("resync must revert overlays, got %v", got)
	}
}

func TestEventsForOtherEntitiesAreIgnored(t *testing.T) {
	m := New("hero", mirrorCatalog(t))

	m.SubmitLocal(action.Request{Descriptor: "strike", TargetID: "foe"})
	m.Observe(action.Event{Kind: action.EventStart, ActorID: "someone-else", Descriptor: "strike", Sequence: 1})

	if m.Pending() != 1 {
		t.Fatalf("another entity's events must not confirm our anticipation, pending=%d", m.Pending())
	}
}

func TestSynthesizedChaseKeepsPredictionPending(t *testing.T) {
	m := New("hero", mirrorCatalog(t))

	m.SubmitLocal(action.Request{Descriptor: "strike", TargetID: "foe"})

	// An out-of-range strike makes the server run a chase first; the
	// anticipation must wait for the strike itself rather than resync.
	m.Observe(action.Event{Kind: action.EventStart, ActorID: "hero", Descriptor: "chase", Sequence: 1, Synthesized: true})
	m.Observe(action.Event{Kind: action.EventEnd, ActorID: "hero", Descriptor: "chase", Sequence: 1, Synthesized: true})
	m.Observe(action.Event{Kind: action.EventStart, ActorID: "hero", Descriptor: "strike", Sequence: 2})

	if m.Mismatches() != 0 {
		t.Fatalf("a synthesized chase is not a misprediction, mismatches=%d", m.Mismatches())
	}
	if m.Pending() != 1 {
		t.Fatalf("the strike anticipation must stay confirmed, pending=%d", m.Pending())
	}

	m.Observe(action.Event{Kind: action.EventEnd, ActorID: "hero", Descriptor: "strike", Sequence: 2})
	if m.Pending() != 0 || m.PredictedDamage("foe") != 0 {
		t.Fatalf("confirmed strike must commit on end: pending=%d overlay=%v", m.Pending(), m.PredictedDamage("foe"))
	}
}

func TestServerSynthesizedStartsDoNotDesync(t *testing.T) {
	m := New("hero", mirrorCatalog(t))

	// The server can start actions we never predicted (chase prerequisites,
	// chain follow-ups). Those must flow through without corrupting state.
	m.Observe(action.Event{Kind: action.EventStart, ActorID: "hero", Descriptor: "wave", Sequence: 1})
	m.Observe(action.Event{Kind: action.EventEnd, ActorID: "hero", Descriptor: "wave", Sequence: 1})

	if m.Pending() != 0 || m.Mismatches() != 0 {
		t.Fatalf("unpredicted server actions are not mismatches: pending=%d mismatches=%d", m.Pending(), m.Mismatches())
	}
}
