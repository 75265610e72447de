// Package target resolves targeting rules against the entities of an encounter.
package target

import (
	"fmt"

	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/geom"
)

// Rule selects one hostile entity for a card or projectile.
type Rule string

const (
	RuleNearest       Rule = "nearest"
	RuleRandom        Rule = "random"
	RuleForward       Rule = "forward"
	RuleHighestHealth Rule = "highest_health"
	RuleLowestHealth  Rule = "lowest_health"
)

// Validate reports whether r is a known rule.
func (r Rule) Validate() error {
	switch r {
	case RuleNearest, RuleRandom, RuleForward, RuleHighestHealth, RuleLowestHealth:
		return nil
	default:
		return fmt.Errorf("unknown targeting rule %q", r)
	}
}

// Origin is where, and on whose behalf, a search happens.
type Origin struct {
	Position geom.Vec2
	Facing   geom.Vec2
	// Faction is the searcher's side; only hostile entities are candidates.
	Faction entity.Faction
}

// ExcludeSet is a set of entity ids a search must skip.
type ExcludeSet map[entity.ID]struct{}

// NewExcludeSet builds a set from ids.
func NewExcludeSet(ids ...entity.ID) ExcludeSet {
	s := make(ExcludeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is excluded. A nil set excludes nothing.
func (s ExcludeSet) Has(id entity.ID) bool {
	_, ok := s[id]
	return ok
}

// Add excludes id.
func (s ExcludeSet) Add(id entity.ID) { s[id] = struct{}{} }

// Clone returns an independent copy of s.
func (s ExcludeSet) Clone() ExcludeSet {
	out := make(ExcludeSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Provider finds targets for the combat core.
type Provider interface {
	// FindTarget returns the entity chosen by rule, or nil when none qualifies.
	FindTarget(rule Rule, origin Origin, exclude ExcludeSet) entity.Entity
	// InRadius returns every living entity hostile to faction within radius of center.
	InRadius(center geom.Vec2, radius float64, faction entity.Faction) []entity.Entity
}
