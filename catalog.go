package main

import (
	"errors"
	"io/fs"

	"duskhollow/server/internal/action"
	"duskhollow/server/internal/telemetry"
)

// defaultDefinitions is the built-in action set used when no catalog file is
// present. It mirrors config/actions/definitions.json; designers override it
// by shipping their own file.
var defaultDefinitions = action.FileDefinitions{
	{
		ID:         "melee-strike",
		Kind:       string(action.KindMelee),
		WindupMS:   250,
		ExecuteMS:  100,
		RecoverMS:  400,
		Range:      1.5,
		CooldownMS: 800,
		Damage:     12,
	},
	{
		ID:        "chase",
		Kind:      string(action.KindChase),
		ExecuteMS: 8000,
		Range:     1.5,
	},
	{
		ID:         "fireball",
		Kind:       string(action.KindProjectile),
		WindupMS:   600,
		ExecuteMS:  150,
		RecoverMS:  500,
		Range:      12,
		CooldownMS: 3000,
		Damage:     25,
		ChainTo:    "scorch",
	},
	{
		ID:        "scorch",
		Kind:      string(action.KindArea),
		ExecuteMS: 2000,
		Range:     2,
		Damage:    6,
	},
	{
		ID:        "power-charge",
		Kind:      string(action.KindCharge),
		ExecuteMS: 3000,
		RecoverMS: 200,
		Buffs: []action.BuffDocument{
			{Stat: "attack", Amount: 10, DurationMS: 5000},
		},
	},
	{
		ID:       "guard-break",
		Kind:     string(action.KindMelee),
		Mode:     string(action.ModeBlocking),
		WindupMS: 100,
		Damage:   4,
		Reactive: true,
	},
	{
		ID:        "mend",
		Kind:      string(action.KindTargeted),
		WindupMS:  800,
		ExecuteMS: 200,
		RecoverMS: 300,
		Range:     8,
		Healing:   20,
	},
	{
		ID:        "revive",
		Kind:      string(action.KindTargeted),
		WindupMS:  3000,
		ExecuteMS: 500,
		Range:     2,
		Healing:   50,
		Revive:    true,
	},
	{
		ID:        "wave",
		Kind:      string(action.KindEmote),
		Mode:      string(action.ModeNonBlocking),
		ExecuteMS: 1200,
	},
	{
		ID:   "select-target",
		Kind: string(action.KindSelect),
		Mode: string(action.ModeEndsOnDeselect),
	},
	{
		ID:        "war-cry",
		Kind:      string(action.KindBuff),
		Mode:      string(action.ModeNonBlocking),
		ExecuteMS: 300,
		Buffs: []action.BuffDocument{
			{Stat: "morale", Amount: 5, DurationMS: 10000},
		},
	},
}

// loadCatalog reads the catalog file when present and falls back to the
// built-in definitions when it is missing.
func loadCatalog(path string, logger telemetry.Logger) (*action.Catalog, error) {
	if path != "" {
		catalog, err := action.LoadCatalogFile(path)
		if err == nil {
			return catalog, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if logger != nil {
			logger.Printf("catalog file %s not found, using built-in definitions", path)
		}
	}
	return action.BuildCatalog(defaultDefinitions)
}
