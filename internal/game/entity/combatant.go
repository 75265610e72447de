package entity

import (
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/game/geom"
	"github.com/cory-johannsen/cardcombat/internal/game/stat"
)

// Spec describes a combatant to create.
type Spec struct {
	ID       ID
	Name     string
	Faction  Faction
	Position geom.Vec2
	Facing   geom.Vec2
	Base     stat.Values
}

// Combatant is one participant in an encounter: either the player or a hostile unit.
// Its ledger is only mutated through AddModifier and RemoveModifiersFromSource.
//
// It is not safe for concurrent use.
type Combatant struct {
	id        ID
	name      string
	faction   Faction
	position  geom.Vec2
	facing    geom.Vec2
	health    float64
	ledger    *stat.Ledger
	destroyed bool
	logger    *zap.Logger
}

// NewCombatant creates a Combatant at full health.
//
// Precondition: logger must be non-nil.
// Postcondition: Health() == MaxHealth().
func NewCombatant(spec Spec, logger *zap.Logger) *Combatant {
	facing := spec.Facing.Normalize()
	if facing.IsZero() {
		facing = geom.Right
	}
	c := &Combatant{
		id:       spec.ID,
		name:     spec.Name,
		faction:  spec.Faction,
		position: spec.Position,
		facing:   facing,
		ledger:   stat.NewLedger(spec.Base, logger),
		logger:   logger,
	}
	c.health = c.MaxHealth()
	return c
}

func (c *Combatant) ID() ID { return c.id }
func (c *Combatant) Name() string { return c.name }
func (c *Combatant) Faction() Faction { return c.faction }
func (c *Combatant) Position() geom.Vec2 { return c.position }
func (c *Combatant) Facing() geom.Vec2 { return c.facing }
func (c *Combatant) Health() float64 { return c.health }
func (c *Combatant) MaxHealth() float64 { return c.ledger.FinalValue(stat.Health) }
func (c *Combatant) Stat(kind stat.Kind) float64 { return c.ledger.FinalValue(kind) }

// Ledger exposes read access for diagnostics; mutate through AddModifier.
func (c *Combatant) Ledger() *stat.Ledger { return c.ledger }

// Alive reports whether the combatant has health left and has not been destroyed.
func (c *Combatant) Alive() bool { return !c.destroyed && c.health > 0 }

// Destroy removes the combatant from play. Pending effects against it become no-ops.
func (c *Combatant) Destroy() { c.destroyed = true }

// SetPosition moves the combatant.
func (c *Combatant) SetPosition(p geom.Vec2) { c.position = p }

// SetFacing turns the combatant; a zero vector is ignored.
func (c *Combatant) SetFacing(dir geom.Vec2) {
	if d := dir.Normalize(); !d.IsZero() {
		c.facing = d
	}
}

// AddModifier applies m and keeps current health within the new maximum.
func (c *Combatant) AddModifier(kind stat.Kind, m stat.Modifier) {
	c.ledger.AddModifier(kind, m)
	c.clampHealth()
}

// RemoveModifiersFromSource revokes every bonus granted by src.
func (c *Combatant) RemoveModifiersFromSource(src stat.Source) {
	c.ledger.RemoveModifiersFromSource(src)
	c.clampHealth()
}

// TakeDamage reduces health by amount, flooring at zero.
// Negative amounts are clamped to zero and logged.
//
// Postcondition: Health() >= 0; result.Killed iff this call reduced health to zero.
func (c *Combatant) TakeDamage(amount float64) DamageResult {
	if !c.Alive() {
		return DamageResult{}
	}
	if amount < 0 || math.IsNaN(amount) {
		c.logger.Debug("negative damage clamped",
			zap.String("entity", string(c.id)),
			zap.Float64("amount", amount),
		)
		return DamageResult{}
	}
	dealt := math.Min(amount, c.health)
	c.health -= dealt
	return DamageResult{Dealt: dealt, Killed: c.health <= 0}
}

// Heal restores up to amount health without exceeding MaxHealth.
//
// Postcondition: returns the amount actually restored, >= 0.
func (c *Combatant) Heal(amount float64) float64 {
	if !c.Alive() || amount <= 0 || math.IsNaN(amount) {
		return 0
	}
	healed := math.Min(amount, c.MaxHealth()-c.health)
	if healed < 0 {
		healed = 0
	}
	c.health += healed
	return healed
}

func (c *Combatant) clampHealth() {
	if limit := c.MaxHealth(); c.health > limit {
		c.health = limit
	}
}
