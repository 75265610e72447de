// Package status implements timed status effects: stat bonuses, damage and
// heal over time, and the stacking rules that govern re-application.
package status

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/cardcombat/internal/game/stat"
)

// StackingPolicy decides what happens when an effect is applied to a target
// that already carries an effect with the same ID.
type StackingPolicy string

const (
	// RefreshDuration resets the existing instance's timer; no duplicate is created.
	RefreshDuration StackingPolicy = "refresh_duration"
	// StackEffect adds a fully independent parallel instance.
	StackEffect StackingPolicy = "stack"
	// NoStack ignores the new application.
	NoStack StackingPolicy = "no_stack"
)

// DotScaling selects how DotAmount is interpreted.
type DotScaling string

const (
	// ScalingFlat deals DotAmount per second.
	ScalingFlat DotScaling = "flat"
	// ScalingPercentMaxHealth deals DotAmount percent of the target's max health per second.
	ScalingPercentMaxHealth DotScaling = "percent_max_health"
)

// Descriptor is the static definition of a status effect, loaded from YAML
// or built inline by an effect module. Durations are in seconds.
type Descriptor struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Stacking defaults to refresh_duration when empty.
	Stacking StackingPolicy `yaml:"stacking"`
	Duration float64        `yaml:"duration"`
	// StatBonuses maps stat kind names to percent (ratio stats) or flat amounts.
	StatBonuses           map[string]float64 `yaml:"stat_bonuses"`
	DotAmount             float64            `yaml:"dot_amount"`
	DotScaling            DotScaling         `yaml:"dot_scaling"`
	ScalesWithCasterBonus bool               `yaml:"scales_with_caster_bonus"`
	HotAmount             float64            `yaml:"hot_amount"`
	// HotDuration defaults to Duration when zero.
	HotDuration float64 `yaml:"hot_duration"`
	ApplyVFX    string  `yaml:"apply_vfx"`
	LoopVFX     string  `yaml:"loop_vfx"`
	// OnApply and OnExpire name Lua hook functions; empty means none.
	OnApply  string `yaml:"on_apply"`
	OnExpire string `yaml:"on_expire"`
}

// Policy returns the effective stacking policy.
func (d *Descriptor) Policy() StackingPolicy {
	if d.Stacking == "" {
		return RefreshDuration
	}
	return d.Stacking
}

// Scaling returns the effective DoT scaling mode.
func (d *Descriptor) Scaling() DotScaling {
	if d.DotScaling == "" {
		return ScalingFlat
	}
	return d.DotScaling
}

// HealDuration returns how long the HoT component lasts.
func (d *Descriptor) HealDuration() float64 {
	if d.HotDuration > 0 {
		return d.HotDuration
	}
	return d.Duration
}

// Bonuses returns the stat bonuses keyed by Kind. Unknown names are skipped;
// Validate reports them.
func (d *Descriptor) Bonuses() map[stat.Kind]float64 {
	out := make(map[stat.Kind]float64, len(d.StatBonuses))
	for name, v := range d.StatBonuses {
		k, err := stat.ParseKind(name)
		if err != nil {
			continue
		}
		out[k] += v
	}
	return out
}

// Validate checks the descriptor's invariants.
//
// Postcondition: Returns nil if valid, or an error naming every violation.
func (d *Descriptor) Validate() error {
	var errs []string
	if d.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	switch d.Policy() {
	case RefreshDuration, StackEffect, NoStack:
	default:
		errs = append(errs, fmt.Sprintf("stacking must be one of [refresh_duration, stack, no_stack], got %q", d.Stacking))
	}
	switch d.Scaling() {
	case ScalingFlat, ScalingPercentMaxHealth:
	default:
		errs = append(errs, fmt.Sprintf("dot_scaling must be one of [flat, percent_max_health], got %q", d.DotScaling))
	}
	if d.Duration <= 0 {
		errs = append(errs, fmt.Sprintf("duration must be > 0, got %v", d.Duration))
	}
	if d.DotAmount < 0 {
		errs = append(errs, fmt.Sprintf("dot_amount must be >= 0, got %v", d.DotAmount))
	}
	if d.HotAmount < 0 || d.HotDuration < 0 {
		errs = append(errs, "hot_amount and hot_duration must be >= 0")
	}
	names := make([]string, 0, len(d.StatBonuses))
	for name := range d.StatBonuses {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := stat.ParseKind(name); err != nil {
			errs = append(errs, fmt.Sprintf("stat_bonuses: %v", err))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Registry holds all known Descriptors keyed by ID.
type Registry struct {
	defs map[string]*Descriptor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Descriptor)}
}

// Register adds def to the registry, overwriting any existing entry with the same ID.
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *Descriptor) {
	r.defs[def.ID] = def
}

// Get returns the Descriptor for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Descriptor, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns a snapshot slice of all registered Descriptors sorted by ID.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadDirectory reads every *.yaml file in dir, parses each as a Descriptor,
// validates it, and returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading status dir %q: %w", dir, err)
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
		var def Descriptor
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
