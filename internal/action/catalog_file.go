package action

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DescriptorDocument is a single catalog entry as authored on disk. The
// struct is exported so tooling (the cmd/schema generator) can reflect over
// the configuration contract shared with designers. Durations are authored
// in milliseconds.
type DescriptorDocument struct {
	ID            string         `json:"id" jsonschema:"title=Descriptor id,pattern=^[a-z0-9\\-]+$,minLength=1,required,description=Stable network-safe identifier for the action"`
	Kind          string         `json:"kind" jsonschema:"title=Execution kind,required,enum=melee,enum=projectile,enum=area,enum=targeted,enum=chase,enum=emote,enum=charge,enum=buff,enum=select"`
	Mode          string         `json:"mode,omitempty" jsonschema:"title=Blocking mode,enum=blocking,enum=nonblocking,enum=endsOnDeselect"`
	WindupMS      int            `json:"windupMs,omitempty" jsonschema:"minimum=0,description=Windup window in milliseconds"`
	ExecuteMS     int            `json:"executeMs,omitempty" jsonschema:"minimum=0,description=Execute window in milliseconds"`
	RecoverMS     int            `json:"recoverMs,omitempty" jsonschema:"minimum=0,description=Recovery window in milliseconds"`
	Range         float64        `json:"range,omitempty" jsonschema:"minimum=0"`
	CooldownMS    int            `json:"cooldownMs,omitempty" jsonschema:"minimum=0,description=Reuse cooldown in milliseconds"`
	ChainTo       string         `json:"chainTo,omitempty" jsonschema:"description=Descriptor synthesized as a follow-up on natural completion"`
	Damage        float64        `json:"damage,omitempty"`
	Healing       float64        `json:"healing,omitempty"`
	Buffs         []BuffDocument `json:"buffs,omitempty"`
	AllowStacking bool           `json:"allowStacking,omitempty"`
	Revive        bool           `json:"revive,omitempty" jsonschema:"description=Allows the action to target a fainted entity and restore it"`
	Reactive      bool           `json:"reactive,omitempty"`
}

// BuffDocument is the authored form of a buff contribution.
type BuffDocument struct {
	Stat       string  `json:"stat" jsonschema:"minLength=1,required"`
	Amount     float64 `json:"amount" jsonschema:"required"`
	DurationMS int     `json:"durationMs,omitempty" jsonschema:"minimum=0"`
}

// FileDefinitions represents the contents of config/actions/definitions.json.
type FileDefinitions []DescriptorDocument

// LoadCatalogFile reads and resolves a descriptor catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog resolves a JSON catalog payload into an immutable Catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var docs FileDefinitions
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return BuildCatalog(docs)
}

// BuildCatalog resolves authored documents into an immutable Catalog.
func BuildCatalog(docs FileDefinitions) (*Catalog, error) {
	descriptors := make([]*Descriptor, 0, len(docs))
	for _, doc := range docs {
		desc, err := doc.resolve()
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, desc)
	}
	return NewCatalog(descriptors...)
}

func (doc DescriptorDocument) resolve() (*Descriptor, error) {
	kind := Kind(doc.Kind)
	switch kind {
	case KindMelee, KindProjectile, KindArea, KindTargeted, KindChase, KindEmote, KindCharge, KindBuff, KindSelect:
	default:
		return nil, fmt.Errorf("catalog: descriptor %q has unknown kind %q", doc.ID, doc.Kind)
	}
	mode := BlockingMode(doc.Mode)
	switch mode {
	case ModeBlocking, ModeNonBlocking, ModeEndsOnDeselect:
	case "":
		mode = ModeBlocking
	default:
		return nil, fmt.Errorf("catalog: descriptor %q has unknown mode %q", doc.ID, doc.Mode)
	}
	desc := &Descriptor{
		ID:   doc.ID,
		Kind: kind,
		Mode: mode,
		Timing: Timing{
			Windup:  time.Duration(doc.WindupMS) * time.Millisecond,
			Execute: time.Duration(doc.ExecuteMS) * time.Millisecond,
			Recover: time.Duration(doc.RecoverMS) * time.Millisecond,
		},
		Range:         doc.Range,
		Cooldown:      time.Duration(doc.CooldownMS) * time.Millisecond,
		ChainTo:       doc.ChainTo,
		Damage:        doc.Damage,
		Healing:       doc.Healing,
		AllowStacking: doc.AllowStacking,
		Revive:        doc.Revive,
		Reactive:      doc.Reactive,
	}
	for _, buff := range doc.Buffs {
		desc.Buffs = append(desc.Buffs, BuffGrant{
			Stat:     buff.Stat,
			Amount:   buff.Amount,
			Duration: time.Duration(buff.DurationMS) * time.Millisecond,
		})
	}
	return desc, nil
}
