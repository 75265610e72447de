// Package entity defines the damageable-actor capability the combat core
// works against, and the Combatant that implements it for players and hostiles.
package entity

import (
	"github.com/cory-johannsen/cardcombat/internal/game/geom"
	"github.com/cory-johannsen/cardcombat/internal/game/stat"
)

// ID uniquely identifies an entity within an encounter.
type ID string

// Faction groups entities that do not target each other.
type Faction string

const (
	FactionPlayer  Faction = "player"
	FactionHostile Faction = "hostile"
)

// Hostile reports whether a and b are on opposing sides.
func Hostile(a, b Faction) bool { return a != b }

// DamageResult reports the effect of one TakeDamage call.
type DamageResult struct {
	// Dealt is the health actually removed.
	Dealt float64
	// Killed is true when this call brought health to zero.
	Killed bool
}

// Entity is the "stat holder" seam: the core stays agnostic of whether the
// actor is a player or a hostile unit.
type Entity interface {
	ID() ID
	Faction() Faction
	Position() geom.Vec2
	Facing() geom.Vec2
	// Alive is false once health reaches zero or the entity is destroyed.
	Alive() bool
	Health() float64
	MaxHealth() float64
	// Stat returns the final value of kind from the entity's ledger.
	Stat(kind stat.Kind) float64
	AddModifier(kind stat.Kind, m stat.Modifier)
	RemoveModifiersFromSource(src stat.Source)
	TakeDamage(amount float64) DamageResult
	// Heal restores up to amount health and returns what was restored.
	Heal(amount float64) float64
}

// IsLive reports whether e is a non-nil, living entity. Operations scheduled
// against an entity check this before touching it.
func IsLive(e Entity) bool {
	return e != nil && e.Alive()
}
