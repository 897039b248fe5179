package action

import (
	"testing"
	"time"
)

func poolDescriptor() *Descriptor {
	return &Descriptor{
		ID:     "strike",
		Kind:   KindMelee,
		Timing: Timing{Execute: 100 * time.Millisecond},
		Range:  2,
	}
}

func TestPoolRecyclesReleasedInstances(t *testing.T) {
	pool := NewPool(2)
	desc := poolDescriptor()

	first := pool.Acquire(desc, "actor", TargetSnapshot{}, 1)
	if pool.Leased() != 1 {
		t.Fatalf("expected one leased instance, got %d", pool.Leased())
	}
	pool.Release(first)
	if pool.Leased() != 0 || pool.Idle(desc.ID) != 1 {
		t.Fatalf("release should park the instance: leased=%d idle=%d", pool.Leased(), pool.Idle(desc.ID))
	}

	second := pool.Acquire(desc, "other", TargetSnapshot{}, 2)
	if second != first {
		t.Fatalf("expected the parked instance to be reused")
	}
	if second.Owner() != "other" || second.Sequence() != 2 {
		t.Fatalf("reused instance must be rebound: owner=%q seq=%d", second.Owner(), second.Sequence())
	}
	if second.State() != StateUninitialized {
		t.Fatalf("reused instance must start Uninitialized, got %s", second.State())
	}
}

func TestPoolNeverDoubleLeases(t *testing.T) {
	pool := NewPool(2)
	desc := poolDescriptor()

	a := pool.Acquire(desc, "actor", TargetSnapshot{}, 1)
	b := pool.Acquire(desc, "actor", TargetSnapshot{}, 2)
	if a == b {
		t.Fatalf("pool handed the same instance to two owners")
	}
}

func TestPoolIgnoresDoubleRelease(t *testing.T) {
	pool := NewPool(2)
	desc := poolDescriptor()

	inst := pool.Acquire(desc, "actor", TargetSnapshot{}, 1)
	pool.Release(inst)
	pool.Release(inst)
	if pool.Idle(desc.ID) != 1 {
		t.Fatalf("double release must not duplicate the free slot, idle=%d", pool.Idle(desc.ID))
	}

	pool.Release(&Instance{})
	if pool.Leased() != 0 {
		t.Fatalf("releasing a foreign instance must be ignored")
	}
}

func TestPoolCapsFreeList(t *testing.T) {
	pool := NewPool(1)
	desc := poolDescriptor()

	a := pool.Acquire(desc, "actor", TargetSnapshot{}, 1)
	b := pool.Acquire(desc, "actor", TargetSnapshot{}, 2)
	pool.Release(a)
	pool.Release(b)
	if pool.Idle(desc.ID) != 1 {
		t.Fatalf("free list must respect per-descriptor capacity, idle=%d", pool.Idle(desc.ID))
	}
}
