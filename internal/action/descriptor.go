package action

import (
	"fmt"
	"sort"
	"time"
)

// Kind describes how an action resolves its target and applies effects.
type Kind string

const (
	KindMelee      Kind = "melee"
	KindProjectile Kind = "projectile"
	KindArea       Kind = "area"
	KindTargeted   Kind = "targeted"
	KindChase      Kind = "chase"
	KindEmote      Kind = "emote"
	KindCharge     Kind = "charge"
	KindBuff       Kind = "buff"
	KindSelect     Kind = "select"
)

// BlockingMode controls whether an action occupies the entity's exclusive
// action slot while it runs.
type BlockingMode string

const (
	ModeBlocking       BlockingMode = "blocking"
	ModeNonBlocking    BlockingMode = "nonblocking"
	ModeEndsOnDeselect BlockingMode = "endsOnDeselect"
)

// Timing holds the three lifecycle windows of an action.
type Timing struct {
	Windup  time.Duration `json:"windup"`
	Execute time.Duration `json:"execute"`
	Recover time.Duration `json:"recover"`
}

// Total returns the full wall-clock footprint of the action.
func (t Timing) Total() time.Duration {
	return t.Windup + t.Execute + t.Recover
}

// BuffGrant describes a stat contribution applied for a duration.
type BuffGrant struct {
	Stat     string        `json:"stat"`
	Amount   float64       `json:"amount"`
	Duration time.Duration `json:"duration"`
}

// Descriptor is the immutable definition of an action. Descriptors are
// authored once, registered in a Catalog before any request is processed, and
// shared by reference across every instance.
type Descriptor struct {
	ID            string
	Kind          Kind
	Mode          BlockingMode
	Timing        Timing
	Range         float64
	Cooldown      time.Duration
	ChainTo       string
	Damage        float64
	Healing       float64
	Buffs         []BuffGrant
	AllowStacking bool
	// Revive marks a targeted action that may resolve against a fainted
	// entity and restore it to life.
	Revive bool
	// Reactive requests preempt to the front of the queue instead of
	// waiting behind earlier submissions (e.g. stop-charge).
	Reactive bool
}

// Blocking reports whether the descriptor occupies the exclusive slot. An
// EndsOnDeselect action runs independently of the slot until its selection is
// replaced.
func (d *Descriptor) Blocking() bool {
	return d != nil && (d.Mode == ModeBlocking || d.Mode == "")
}

// BlockingDuration returns the time the action will hold the exclusive slot,
// used for queue admission budgeting. Non-blocking actions cost nothing.
func (d *Descriptor) BlockingDuration() time.Duration {
	if d == nil || !d.Blocking() {
		return 0
	}
	return d.Timing.Total()
}

// RequiresTarget reports whether the kind resolves against a live entity.
func (d *Descriptor) RequiresTarget() bool {
	if d == nil {
		return false
	}
	switch d.Kind {
	case KindMelee, KindProjectile, KindTargeted, KindChase, KindSelect:
		return true
	default:
		return false
	}
}

// ContinuousEffects reports whether effects apply per-tick during the execute
// window rather than once on entry.
func (d *Descriptor) ContinuousEffects() bool {
	if d == nil {
		return false
	}
	return d.Kind == KindCharge || d.Kind == KindArea
}

// Catalog is a read-only lookup of descriptors keyed by their stable
// identifier. It must be fully populated before the first request is
// processed; resolution of a missing id fails fast with ErrUnknownDescriptor.
type Catalog struct {
	byID map[string]*Descriptor
}

// NewCatalog builds a catalog from the given descriptors. Duplicate or empty
// identifiers and dangling chain references are authoring errors.
func NewCatalog(descriptors ...*Descriptor) (*Catalog, error) {
	byID := make(map[string]*Descriptor, len(descriptors))
	for _, desc := range descriptors {
		if desc == nil || desc.ID == "" {
			return nil, fmt.Errorf("catalog: descriptor missing id")
		}
		if _, exists := byID[desc.ID]; exists {
			return nil, fmt.Errorf("catalog: duplicate descriptor %q", desc.ID)
		}
		byID[desc.ID] = desc
	}
	for _, desc := range byID {
		if desc.ChainTo == "" {
			continue
		}
		if _, ok := byID[desc.ChainTo]; !ok {
			return nil, fmt.Errorf("catalog: descriptor %q chains to unknown %q", desc.ID, desc.ChainTo)
		}
	}
	return &Catalog{byID: byID}, nil
}

// Resolve returns the descriptor for id or ErrUnknownDescriptor.
func (c *Catalog) Resolve(id string) (*Descriptor, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDescriptor, id)
	}
	desc, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDescriptor, id)
	}
	return desc, nil
}

// IDs returns the registered identifiers in sorted order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports the number of registered descriptors.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byID)
}
