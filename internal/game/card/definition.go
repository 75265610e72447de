// Package card turns card definitions into projectiles and effects: the
// action pipeline for one attack, and the per-caster attack timer.
package card

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/cardcombat/internal/game/effect"
	"github.com/cory-johannsen/cardcombat/internal/game/stat"
	"github.com/cory-johannsen/cardcombat/internal/game/target"
)

// EnhancementStep is the base damage gained per enhancement level.
const EnhancementStep = 0.1

// Definition is the authored, static description of a card.
type Definition struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	BaseDamage  float64 `yaml:"base_damage"`
	// Cooldown is seconds between attacks at attack speed 1.
	Cooldown  float64     `yaml:"cooldown"`
	Targeting target.Rule `yaml:"targeting"`
	// Modules are effect catalog keys in execution order.
	Modules []string `yaml:"modules"`
}

// Validate checks the definition's invariants.
//
// Postcondition: Returns nil if valid, or an error naming every violation.
func (d *Definition) Validate() error {
	var errs []string
	if d.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	if d.BaseDamage < 0 {
		errs = append(errs, fmt.Sprintf("base_damage must be >= 0, got %v", d.BaseDamage))
	}
	if d.Cooldown <= 0 {
		errs = append(errs, fmt.Sprintf("cooldown must be > 0, got %v", d.Cooldown))
	}
	if err := d.Targeting.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(d.Modules) == 0 {
		errs = append(errs, "modules must not be empty")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Instance is a card owned by a combatant at an enhancement level.
type Instance struct {
	Def              *Definition
	EnhancementLevel int
}

// Damage returns the card's total damage for a caster with the given
// accumulated damage bonus percent.
func (c *Instance) Damage(bonusPercent float64) float64 {
	enhanced := c.Def.BaseDamage * (1 + float64(c.EnhancementLevel)*EnhancementStep)
	return stat.ScaleDamage(enhanced, bonusPercent)
}

// Registry holds all known card Definitions keyed by ID.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds def, overwriting any existing entry with the same ID.
func (r *Registry) Register(def *Definition) {
	r.defs[def.ID] = def
}

// Get returns the Definition for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns every Definition sorted by ID.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CheckModules verifies every module key of every card resolves through loader.
func (r *Registry) CheckModules(ctx context.Context, loader effect.Loader) error {
	var missing []string
	for _, d := range r.All() {
		for _, key := range d.Modules {
			if _, err := loader.Load(ctx, key); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				missing = append(missing, fmt.Sprintf("%s -> %s", d.ID, key))
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("cards reference unknown modules: %s", strings.Join(missing, ", "))
	}
	return nil
}

// LoadDirectory reads every *.yaml file in dir, parses each as a card
// Definition, validates it, and returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading cards dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def Definition
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		reg.Register(&def)
	}
	return reg, nil
}
