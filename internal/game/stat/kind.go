// Package stat holds combatant attributes and the per-entity ledger of
// additive bonuses they are computed from.
package stat

import "fmt"

// Kind is one of the fixed combatant attributes.
type Kind int

const (
	// Attack is the accumulated damage bonus in percent.
	Attack Kind = iota
	// AttackSpeed is attacks per cooldown unit; a ratio stat.
	AttackSpeed
	// MoveSpeed is units per second; a ratio stat.
	MoveSpeed
	// Health is maximum health; a ratio stat.
	Health
	// CritChance is the percent chance a hit is critical.
	CritChance
	// CritMultiplier scales critical damage.
	CritMultiplier
	// KindCount is the number of stat kinds; not a valid Kind.
	KindCount
)

var kindNames = [KindCount]string{
	Attack:         "attack",
	AttackSpeed:    "attack_speed",
	MoveSpeed:      "move_speed",
	Health:         "health",
	CritChance:     "crit_chance",
	CritMultiplier: "crit_multiplier",
}

// String returns the content name of k.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("stat(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k names a real stat.
func (k Kind) Valid() bool {
	return k >= 0 && k < KindCount
}

// ParseKind maps a content name such as "crit_chance" to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown stat kind %q", name)
}

// Kinds returns every valid Kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, KindCount)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Values is a fixed-size table of one number per stat kind.
type Values [KindCount]float64

// accumulation selects how modifiers combine with a base value.
type accumulation uint8

const (
	// ratio: base * (1 + sum/100)
	ratio accumulation = iota
	// flat: base + sum
	flat
)

var accumulationOf = [KindCount]accumulation{
	Attack:         flat,
	AttackSpeed:    ratio,
	MoveSpeed:      ratio,
	Health:         ratio,
	CritChance:     flat,
	CritMultiplier: flat,
}

type bounds struct {
	min, max       float64
	hasMin, hasMax bool
}

// Move speed may legitimately be exactly zero (rooted), so it only floors at 0.
var boundsOf = [KindCount]bounds{
	AttackSpeed:    {min: 0.1, hasMin: true},
	MoveSpeed:      {min: 0, hasMin: true},
	Health:         {min: 1, hasMin: true},
	CritChance:     {min: 0, max: 100, hasMin: true, hasMax: true},
	CritMultiplier: {min: 1, hasMin: true},
}
