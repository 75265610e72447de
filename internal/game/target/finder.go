package target

import (
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/game/dice"
	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/geom"
)

// Finder is the Provider over a live entity list. Candidates are visited in
// entity id order, so equidistant or equal-health ties resolve to the lowest id.
type Finder struct {
	list   func() []entity.Entity
	roller *dice.Roller
	logger *zap.Logger
}

// NewFinder creates a Finder that searches the entities returned by list.
//
// Precondition: list, roller and logger must be non-nil.
func NewFinder(list func() []entity.Entity, roller *dice.Roller, logger *zap.Logger) *Finder {
	return &Finder{list: list, roller: roller, logger: logger}
}

// FindTarget implements Provider. RuleForward never selects an entity: the
// caller fires along its facing.
func (f *Finder) FindTarget(rule Rule, origin Origin, exclude ExcludeSet) entity.Entity {
	if rule == RuleForward {
		return nil
	}
	candidates := f.candidates(origin.Faction, exclude)
	if len(candidates) == 0 {
		return nil
	}

	switch rule {
	case RuleNearest:
		return nearest(candidates, origin.Position)
	case RuleRandom:
		return candidates[f.roller.Pick("target.random", len(candidates))]
	case RuleHighestHealth:
		return pickBy(candidates, func(a, b entity.Entity) bool { return a.Health() > b.Health() })
	case RuleLowestHealth:
		return pickBy(candidates, func(a, b entity.Entity) bool { return a.Health() < b.Health() })
	default:
		f.logger.Warn("unknown targeting rule", zap.String("rule", string(rule)))
		return nil
	}
}

// InRadius implements Provider.
func (f *Finder) InRadius(center geom.Vec2, radius float64, faction entity.Faction) []entity.Entity {
	rSq := radius * radius
	var out []entity.Entity
	for _, e := range f.candidates(faction, nil) {
		if e.Position().DistSq(center) <= rSq {
			out = append(out, e)
		}
	}
	return out
}

func (f *Finder) candidates(faction entity.Faction, exclude ExcludeSet) []entity.Entity {
	var out []entity.Entity
	for _, e := range f.list() {
		if !entity.IsLive(e) || !entity.Hostile(faction, e.Faction()) || exclude.Has(e.ID()) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func nearest(candidates []entity.Entity, from geom.Vec2) entity.Entity {
	return pickBy(candidates, func(a, b entity.Entity) bool {
		return a.Position().DistSq(from) < b.Position().DistSq(from)
	})
}

// pickBy returns the first candidate no later candidate strictly beats.
func pickBy(candidates []entity.Entity, better func(a, b entity.Entity) bool) entity.Entity {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best
}
