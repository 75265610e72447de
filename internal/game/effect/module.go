// Package effect defines the closed set of combat effect modules and the
// Dispatcher that executes them against an effect Context.
package effect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/geom"
	"github.com/cory-johannsen/cardcombat/internal/game/status"
)

// Trigger is the lifecycle moment at which a module is eligible to run.
type Trigger string

const (
	OnFire            Trigger = "on_fire"
	OnHit             Trigger = "on_hit"
	OnCrit            Trigger = "on_crit"
	OnKill            Trigger = "on_kill"
	OnLastRicochetHit Trigger = "on_last_ricochet_hit"
)

// Validate reports whether t is a known trigger.
func (t Trigger) Validate() error {
	switch t {
	case OnFire, OnHit, OnCrit, OnKill, OnLastRicochetHit:
		return nil
	default:
		return fmt.Errorf("unknown trigger %q", t)
	}
}

// Kind names a module variant in authored content.
type Kind string

const (
	KindApplyStatusToCaster    Kind = "apply_status_to_caster"
	KindApplyStatusToHitTarget Kind = "apply_status_to_hit_target"
	KindAreaBurst              Kind = "area_burst"
	KindProjectile             Kind = "projectile"
	KindConditional            Kind = "conditional"
	KindRandomChoice           Kind = "random_choice"
	KindSplitOnHit             Kind = "split_on_hit"
	KindLifesteal              Kind = "lifesteal"
	KindDetonate               Kind = "detonate"
)

// Module is one reusable combat behavior. The variant set is closed: every
// implementation lives in this package and the Dispatcher switches over all
// of them.
type Module interface {
	Kind() Kind
	// Trigger is the moment the module runs. For Conditional it is the
	// condition guarding the child.
	Trigger() Trigger
	Validate() error
	sealed()
}

// Context is the transient state of one invocation. It is passed by value
// and never shared between invocations.
type Context struct {
	Caster        entity.Entity
	SpawnPoint    geom.Vec2
	InitialTarget entity.Entity
	HitPosition   geom.Vec2
	DamageDealt   float64
	// BaseDamage is the invocation's scaled damage; percent-based modules
	// derive their damage from it.
	BaseDamage       float64
	IsCritical       bool
	IsKill           bool
	LastRicochet     bool
	FiringDirections []geom.Vec2
	ShotID           string
	// HitModules are the card's non-fire modules, carried so spawned
	// projectiles can run them on their own hits.
	HitModules []Module

	depth int
}

// HitTriggers returns every trigger a hit described by ec satisfies.
func HitTriggers(ec Context) []Trigger {
	out := []Trigger{OnHit}
	if ec.IsCritical {
		out = append(out, OnCrit)
	}
	if ec.IsKill {
		out = append(out, OnKill)
	}
	if ec.LastRicochet {
		out = append(out, OnLastRicochetHit)
	}
	return out
}

// holds reports whether condition t is satisfied by ec.
func holds(t Trigger, ec Context) bool {
	switch t {
	case OnFire:
		return true
	case OnHit:
		return ec.InitialTarget != nil
	case OnCrit:
		return ec.IsCritical
	case OnKill:
		return ec.IsKill
	case OnLastRicochetHit:
		return ec.LastRicochet
	default:
		return false
	}
}

// Common carries the fields shared by every variant.
type Common struct {
	// On overrides the variant's default trigger.
	On Trigger `yaml:"trigger"`
}

func (c Common) triggerOr(def Trigger) Trigger {
	if c.On == "" {
		return def
	}
	return c.On
}

func (c Common) validate(errs *[]string) {
	if c.On != "" {
		if err := c.On.Validate(); err != nil {
			*errs = append(*errs, err.Error())
		}
	}
}

// ApplyStatusToCaster grants a status to the invoking caster.
type ApplyStatusToCaster struct {
	Common `yaml:",inline"`
	// Chance is the application chance in percent.
	Chance float64            `yaml:"chance"`
	Status *status.Descriptor `yaml:"status"`
	// StatusRef names a registered status; it is resolved into Status at load.
	StatusRef string `yaml:"status_ref"`
}

// ApplyStatusToHitTarget grants a status to the context's target.
type ApplyStatusToHitTarget struct {
	Common    `yaml:",inline"`
	Chance    float64            `yaml:"chance"`
	Status    *status.Descriptor `yaml:"status"`
	StatusRef string             `yaml:"status_ref"`
}

// ZoneSpec configures a lingering damage zone.
type ZoneSpec struct {
	Duration     float64 `yaml:"duration"`
	Radius       float64 `yaml:"radius"`
	TickDamage   float64 `yaml:"tick_damage"`
	TickInterval float64 `yaml:"tick_interval"`
	PoolKey      string  `yaml:"pool_key"`
}

// AreaBurst damages every hostile entity around the hit position once, and
// may leave a damage zone behind.
type AreaBurst struct {
	Common `yaml:",inline"`
	Radius float64 `yaml:"radius"`
	// DamagePercent is the share of the context's base damage each entity takes.
	DamagePercent float64   `yaml:"damage_percent"`
	Zone          *ZoneSpec `yaml:"zone"`
}

// Payload chains a module to the hit that happens at a given bounce count.
type Payload struct {
	Bounce int    `yaml:"bounce"`
	Module string `yaml:"module"`
}

// Projectile describes the projectiles a card fires. It always runs on fire.
type Projectile struct {
	Count  int     `yaml:"count"`
	Spread float64 `yaml:"spread"`
	Speed  float64 `yaml:"speed"`
	Pierce int     `yaml:"pierce"`
	// Ricochet is the number of retargets after a hit.
	Ricochet                  int     `yaml:"ricochet"`
	AllowRicochetToSameTarget bool    `yaml:"allow_ricochet_to_same_target"`
	Tracking                  bool    `yaml:"tracking"`
	TurnRate                  float64 `yaml:"turn_rate"`
	Lifetime                  float64 `yaml:"lifetime"`
	PoolKey                   string  `yaml:"pool_key"`
	// DamagePercent scales the context's base damage when the module runs
	// as a payload rather than as a card's primary projectile.
	DamagePercent float64   `yaml:"damage_percent"`
	Payloads      []Payload `yaml:"payloads"`
}

// Conditional forwards to Child only when its trigger's condition holds.
type Conditional struct {
	When  Trigger `yaml:"when"`
	Child string  `yaml:"child"`
}

// RandomChoice executes one module picked uniformly from Pool.
type RandomChoice struct {
	Common `yaml:",inline"`
	Pool   []string `yaml:"pool"`
}

// SplitOnHit fans secondary projectiles out of the hit point toward the
// nearest other living target.
type SplitOnHit struct {
	Common        `yaml:",inline"`
	Count         int     `yaml:"count"`
	Spread        float64 `yaml:"spread"`
	Speed         float64 `yaml:"speed"`
	Pierce        int     `yaml:"pierce"`
	Ricochet      int     `yaml:"ricochet"`
	Lifetime      float64 `yaml:"lifetime"`
	DamagePercent float64 `yaml:"damage_percent"`
	PoolKey       string  `yaml:"pool_key"`
}

// Lifesteal heals the caster by a percent of the damage dealt.
type Lifesteal struct {
	Common  `yaml:",inline"`
	Percent float64 `yaml:"percent"`
}

// Detonate cashes in the remaining DoT potential on the hit target.
type Detonate struct {
	Common `yaml:",inline"`
	// Percent multiplies the summed potential; 200 doubles it.
	Percent float64 `yaml:"percent"`
	// StatusIDs limits the DoTs considered; empty means all.
	StatusIDs []string `yaml:"status_ids"`
	Consume   bool     `yaml:"consume"`
}

func (*ApplyStatusToCaster) Kind() Kind { return KindApplyStatusToCaster }
func (*ApplyStatusToHitTarget) Kind() Kind { return KindApplyStatusToHitTarget }
func (*AreaBurst) Kind() Kind { return KindAreaBurst }
func (*Projectile) Kind() Kind { return KindProjectile }
func (*Conditional) Kind() Kind { return KindConditional }
func (*RandomChoice) Kind() Kind { return KindRandomChoice }
func (*SplitOnHit) Kind() Kind { return KindSplitOnHit }
func (*Lifesteal) Kind() Kind { return KindLifesteal }
func (*Detonate) Kind() Kind { return KindDetonate }

func (m *ApplyStatusToCaster) Trigger() Trigger { return m.triggerOr(OnFire) }
func (m *ApplyStatusToHitTarget) Trigger() Trigger { return m.triggerOr(OnHit) }
func (m *AreaBurst) Trigger() Trigger { return m.triggerOr(OnHit) }
func (*Projectile) Trigger() Trigger { return OnFire }
func (m *Conditional) Trigger() Trigger { return m.When }
func (m *RandomChoice) Trigger() Trigger { return m.triggerOr(OnHit) }
func (m *SplitOnHit) Trigger() Trigger { return m.triggerOr(OnHit) }
func (m *Lifesteal) Trigger() Trigger { return m.triggerOr(OnHit) }
func (m *Detonate) Trigger() Trigger { return m.triggerOr(OnHit) }

func (*ApplyStatusToCaster) sealed() {}
func (*ApplyStatusToHitTarget) sealed() {}
func (*AreaBurst) sealed() {}
func (*Projectile) sealed() {}
func (*Conditional) sealed() {}
func (*RandomChoice) sealed() {}
func (*SplitOnHit) sealed() {}
func (*Lifesteal) sealed() {}
func (*Detonate) sealed() {}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

func validateChance(chance float64, errs *[]string) {
	if chance < 0 || chance > 100 {
		*errs = append(*errs, fmt.Sprintf("chance must be in [0, 100], got %v", chance))
	}
}

func validateStatus(desc *status.Descriptor, ref string, errs *[]string) {
	if desc == nil {
		if ref == "" {
			*errs = append(*errs, "status or status_ref is required")
		}
		return
	}
	if err := desc.Validate(); err != nil {
		*errs = append(*errs, fmt.Sprintf("status: %v", err))
	}
}

func (m *ApplyStatusToCaster) Validate() error {
	var errs []string
	m.validate(&errs)
	validateChance(m.Chance, &errs)
	validateStatus(m.Status, m.StatusRef, &errs)
	return joinErrs(errs)
}

func (m *ApplyStatusToHitTarget) Validate() error {
	var errs []string
	m.validate(&errs)
	validateChance(m.Chance, &errs)
	validateStatus(m.Status, m.StatusRef, &errs)
	return joinErrs(errs)
}

func (m *AreaBurst) Validate() error {
	var errs []string
	m.validate(&errs)
	if m.Radius <= 0 {
		errs = append(errs, fmt.Sprintf("radius must be > 0, got %v", m.Radius))
	}
	if m.DamagePercent < 0 {
		errs = append(errs, fmt.Sprintf("damage_percent must be >= 0, got %v", m.DamagePercent))
	}
	if z := m.Zone; z != nil {
		if z.Duration <= 0 || z.Radius <= 0 || z.TickInterval <= 0 {
			errs = append(errs, "zone duration, radius and tick_interval must be > 0")
		}
		if z.PoolKey == "" {
			errs = append(errs, "zone pool_key must not be empty")
		}
	}
	return joinErrs(errs)
}

func (m *Projectile) Validate() error {
	var errs []string
	if m.Count < 1 {
		errs = append(errs, fmt.Sprintf("count must be >= 1, got %d", m.Count))
	}
	if m.Spread < 0 || m.Spread > 360 {
		errs = append(errs, fmt.Sprintf("spread must be in [0, 360], got %v", m.Spread))
	}
	if m.Speed <= 0 {
		errs = append(errs, fmt.Sprintf("speed must be > 0, got %v", m.Speed))
	}
	if m.Pierce < 0 || m.Ricochet < 0 {
		errs = append(errs, "pierce and ricochet must be >= 0")
	}
	if m.TurnRate < 0 || m.Lifetime < 0 {
		errs = append(errs, "turn_rate and lifetime must be >= 0")
	}
	if m.PoolKey == "" {
		errs = append(errs, "pool_key must not be empty")
	}
	for i, p := range m.Payloads {
		if p.Bounce < 0 || p.Module == "" {
			errs = append(errs, fmt.Sprintf("payloads[%d]: bounce must be >= 0 and module set", i))
		}
	}
	return joinErrs(errs)
}

func (m *Conditional) Validate() error {
	var errs []string
	if err := m.When.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if m.Child == "" {
		errs = append(errs, "child must not be empty")
	}
	return joinErrs(errs)
}

func (m *RandomChoice) Validate() error {
	var errs []string
	m.validate(&errs)
	if len(m.Pool) == 0 {
		errs = append(errs, "pool must not be empty")
	}
	return joinErrs(errs)
}

func (m *SplitOnHit) Validate() error {
	var errs []string
	m.validate(&errs)
	if m.Count < 1 {
		errs = append(errs, fmt.Sprintf("count must be >= 1, got %d", m.Count))
	}
	if m.Spread < 0 || m.Spread > 360 {
		errs = append(errs, fmt.Sprintf("spread must be in [0, 360], got %v", m.Spread))
	}
	if m.Speed <= 0 {
		errs = append(errs, fmt.Sprintf("speed must be > 0, got %v", m.Speed))
	}
	if m.Pierce < 0 || m.Ricochet < 0 || m.DamagePercent < 0 {
		errs = append(errs, "pierce, ricochet and damage_percent must be >= 0")
	}
	if m.PoolKey == "" {
		errs = append(errs, "pool_key must not be empty")
	}
	return joinErrs(errs)
}

func (m *Lifesteal) Validate() error {
	var errs []string
	m.validate(&errs)
	if m.Percent < 0 {
		errs = append(errs, fmt.Sprintf("percent must be >= 0, got %v", m.Percent))
	}
	return joinErrs(errs)
}

func (m *Detonate) Validate() error {
	var errs []string
	m.validate(&errs)
	if m.Percent < 0 {
		errs = append(errs, fmt.Sprintf("percent must be >= 0, got %v", m.Percent))
	}
	return joinErrs(errs)
}
