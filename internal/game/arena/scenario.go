package arena

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/geom"
	"github.com/cory-johannsen/cardcombat/internal/game/stat"
)

// Point is a position or direction as authored in YAML.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Vec converts p to a geom.Vec2.
func (p Point) Vec() geom.Vec2 { return geom.V(p.X, p.Y) }

// CardRef equips a card at an enhancement level.
type CardRef struct {
	ID    string `yaml:"id"`
	Level int    `yaml:"level"`
}

// CombatantSpec describes one combatant of a scenario.
type CombatantSpec struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Faction  string `yaml:"faction"`
	Position Point  `yaml:"position"`
	Facing   Point  `yaml:"facing"`
	// Stats are base values keyed by stat name; missing stats use defaultStats.
	Stats map[string]float64 `yaml:"stats"`
	Cards []CardRef          `yaml:"cards"`
}

// Scenario is an authored encounter.
type Scenario struct {
	Name string `yaml:"name"`
	// Duration is how many seconds the encounter runs when nothing ends it sooner.
	Duration   float64         `yaml:"duration"`
	Combatants []CombatantSpec `yaml:"combatants"`
}

var defaultStats = map[stat.Kind]float64{
	stat.Health:         100,
	stat.AttackSpeed:    1,
	stat.MoveSpeed:      1,
	stat.CritMultiplier: 1.5,
}

// Base returns the combatant's base stat values with defaults filled in.
//
// Precondition: Validate returned nil.
func (c CombatantSpec) Base() stat.Values {
	var base stat.Values
	for k, v := range defaultStats {
		base[k] = v
	}
	for name, v := range c.Stats {
		if k, err := stat.ParseKind(name); err == nil {
			base[k] = v
		}
	}
	return base
}

// Entity converts the spec into an entity.Spec.
func (c CombatantSpec) Entity() entity.Spec {
	return entity.Spec{
		ID:       entity.ID(c.ID),
		Name:     c.Name,
		Faction:  entity.Faction(c.Faction),
		Position: c.Position.Vec(),
		Facing:   c.Facing.Vec(),
		Base:     c.Base(),
	}
}

// Validate checks the scenario's invariants.
//
// Postcondition: Returns nil if valid, or an error naming every violation.
func (s *Scenario) Validate() error {
	var errs []string
	if s.Duration <= 0 {
		errs = append(errs, fmt.Sprintf("duration must be > 0, got %v", s.Duration))
	}
	if len(s.Combatants) == 0 {
		errs = append(errs, "combatants must not be empty")
	}
	seen := make(map[string]bool, len(s.Combatants))
	for i, c := range s.Combatants {
		if c.ID == "" {
			errs = append(errs, fmt.Sprintf("combatants[%d]: id must not be empty", i))
		} else if seen[c.ID] {
			errs = append(errs, fmt.Sprintf("combatants[%d]: duplicate id %q", i, c.ID))
		}
		seen[c.ID] = true
		if c.Faction == "" {
			errs = append(errs, fmt.Sprintf("combatants[%d]: faction must not be empty", i))
		}
		for name := range c.Stats {
			if _, err := stat.ParseKind(name); err != nil {
				errs = append(errs, fmt.Sprintf("combatants[%d]: %v", i, err))
			}
		}
		for j, ref := range c.Cards {
			if ref.ID == "" || ref.Level < 0 {
				errs = append(errs, fmt.Sprintf("combatants[%d].cards[%d]: id required and level must be >= 0", i, j))
			}
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// LoadScenario reads and validates the scenario at path.
//
// Precondition: path must name a readable YAML file.
// Postcondition: Returns a valid Scenario or a non-nil error.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %q: %w", path, err)
	}
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario %q: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validating scenario %q: %w", path, err)
	}
	return &s, nil
}
