package effect

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/game/dice"
	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/geom"
	"github.com/cory-johannsen/cardcombat/internal/game/status"
	"github.com/cory-johannsen/cardcombat/internal/game/target"
)

// maxDepth bounds Conditional and RandomChoice chains so a cyclic catalog
// cannot recurse forever.
const maxDepth = 8

// ErrUnknownModule is returned by a Loader for a key it does not hold.
var ErrUnknownModule = errors.New("effect: unknown module")

// Loader resolves module keys. Load may block; ctx bounds the wait.
type Loader interface {
	Load(ctx context.Context, key string) (Module, error)
}

// LaunchSpec is everything needed to initialize one projectile.
type LaunchSpec struct {
	Caster                    entity.Entity
	Origin                    geom.Vec2
	Direction                 geom.Vec2
	Speed                     float64
	Damage                    float64
	Pierce                    int
	Ricochet                  int
	AllowRicochetToSameTarget bool
	Tracking                  bool
	TurnRate                  float64
	Lifetime                  float64
	PoolKey                   string
	Payloads                  []Payload
	HitModules                []Module
	// Exclude seeds the projectile's hit set.
	Exclude target.ExcludeSet
}

// Launcher spawns projectiles. Launch may block on the actor pool.
type Launcher interface {
	Launch(ctx context.Context, specs []LaunchSpec) error
}

// ZoneSpawner starts lingering damage zones.
type ZoneSpawner interface {
	SpawnZone(ctx context.Context, spec ZoneSpec, center geom.Vec2, caster entity.Entity) error
}

// Statuses is the part of the status manager modules use.
type Statuses interface {
	ApplyStatusEffect(target, caster entity.Entity, desc *status.Descriptor) (*status.Instance, status.Outcome)
	GetActiveEffectsOn(target entity.Entity) []*status.Instance
	ConsumeEffects(list []*status.Instance) int
}

// Deps are the collaborators a Dispatcher is built from.
type Deps struct {
	Statuses Statuses
	Targets  target.Provider
	Launcher Launcher
	Zones    ZoneSpawner
	Loader   Loader
	Roller   *dice.Roller
	Logger   *zap.Logger
}

// Dispatcher executes modules. Runtime problems such as a missing target,
// descriptor or key are logged and the module is skipped; only context
// cancellation is returned as an error.
type Dispatcher struct {
	statuses Statuses
	targets  target.Provider
	launcher Launcher
	zones    ZoneSpawner
	loader   Loader
	roller   *dice.Roller
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher.
//
// Precondition: every field of deps must be non-nil.
func NewDispatcher(deps Deps) *Dispatcher {
	return &Dispatcher{
		statuses: deps.Statuses,
		targets:  deps.Targets,
		launcher: deps.Launcher,
		zones:    deps.Zones,
		loader:   deps.Loader,
		roller:   deps.Roller,
		logger:   deps.Logger,
	}
}

// Fire executes every module whose trigger is in fired, in list order.
func (d *Dispatcher) Fire(ctx context.Context, fired []Trigger, modules []Module, ec Context) error {
	for _, m := range modules {
		if m == nil || !slices.Contains(fired, m.Trigger()) {
			continue
		}
		if err := d.Execute(ctx, m, ec); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteKey loads key and executes the resulting module.
func (d *Dispatcher) ExecuteKey(ctx context.Context, key string, ec Context) error {
	m, err := d.load(ctx, key)
	if err != nil || m == nil {
		return err
	}
	return d.Execute(ctx, m, ec)
}

// Execute runs m against ec regardless of its trigger.
func (d *Dispatcher) Execute(ctx context.Context, m Module, ec Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil {
		d.logger.Warn("effect skipped: nil module")
		return nil
	}
	if ec.depth >= maxDepth {
		d.logger.Warn("effect skipped: chain too deep", zap.String("kind", string(m.Kind())))
		return nil
	}
	ec.depth++

	switch m := m.(type) {
	case *ApplyStatusToCaster:
		d.applyStatus(m.Kind(), m.Chance, m.Status, ec.Caster, ec.Caster)
	case *ApplyStatusToHitTarget:
		d.applyStatus(m.Kind(), m.Chance, m.Status, ec.InitialTarget, ec.Caster)
	case *AreaBurst:
		return d.areaBurst(ctx, m, ec)
	case *Projectile:
		return d.projectile(ctx, m, ec)
	case *Conditional:
		if !holds(m.When, ec) {
			return nil
		}
		return d.ExecuteKey(ctx, m.Child, ec)
	case *RandomChoice:
		if len(m.Pool) == 0 {
			d.logger.Warn("effect skipped: empty random pool")
			return nil
		}
		return d.ExecuteKey(ctx, m.Pool[d.roller.Pick("effect.random_choice", len(m.Pool))], ec)
	case *SplitOnHit:
		return d.split(ctx, m, ec)
	case *Lifesteal:
		d.lifesteal(m, ec)
	case *Detonate:
		d.detonate(m, ec)
	default:
		d.logger.Warn("effect skipped: unhandled module kind", zap.String("kind", string(m.Kind())))
	}
	return nil
}

func (d *Dispatcher) load(ctx context.Context, key string) (Module, error) {
	if key == "" {
		d.logger.Warn("effect skipped: empty module key")
		return nil, nil
	}
	m, err := d.loader.Load(ctx, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		d.logger.Warn("effect skipped: module not loaded", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return m, nil
}

func (d *Dispatcher) applyStatus(kind Kind, chance float64, desc *status.Descriptor, tgt, caster entity.Entity) {
	if desc == nil {
		d.logger.Warn("effect skipped: missing status descriptor", zap.String("kind", string(kind)))
		return
	}
	if !entity.IsLive(tgt) {
		d.logger.Debug("effect skipped: status target gone",
			zap.String("kind", string(kind)),
			zap.String("status", desc.ID),
		)
		return
	}
	if !d.roller.Chance("effect.apply_status", chance) {
		return
	}
	d.statuses.ApplyStatusEffect(tgt, caster, desc)
}

func (d *Dispatcher) areaBurst(ctx context.Context, m *AreaBurst, ec Context) error {
	if ec.Caster == nil {
		d.logger.Warn("effect skipped: area burst without caster")
		return nil
	}
	damage := ec.BaseDamage * m.DamagePercent / 100
	for _, e := range d.targets.InRadius(ec.HitPosition, m.Radius, ec.Caster.Faction()) {
		e.TakeDamage(damage)
	}
	if m.Zone == nil {
		return nil
	}
	if err := d.zones.SpawnZone(ctx, *m.Zone, ec.HitPosition, ec.Caster); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		d.logger.Warn("damage zone not spawned", zap.String("pool_key", m.Zone.PoolKey), zap.Error(err))
	}
	return nil
}

// projectile runs a Projectile module outside the card pipeline, for example
// as a payload: it fires from the hit point toward the nearest other target.
func (d *Dispatcher) projectile(ctx context.Context, m *Projectile, ec Context) error {
	if !entity.IsLive(ec.Caster) {
		d.logger.Debug("effect skipped: projectile caster gone")
		return nil
	}
	origin, exclude := ec.SpawnPoint, target.ExcludeSet(nil)
	if ec.InitialTarget != nil {
		origin = ec.HitPosition
		exclude = target.NewExcludeSet(ec.InitialTarget.ID())
	}
	dir := d.aim(origin, ec, exclude)
	damage := ec.BaseDamage
	if m.DamagePercent > 0 {
		damage = ec.BaseDamage * m.DamagePercent / 100
	}
	specs := LaunchSpecs(m, ec.Caster, origin, geom.Fan(dir, m.Count, m.Spread), damage, withoutSplits(ec.HitModules), exclude)
	return d.launch(ctx, specs)
}

func (d *Dispatcher) split(ctx context.Context, m *SplitOnHit, ec Context) error {
	if !entity.IsLive(ec.Caster) || ec.InitialTarget == nil {
		d.logger.Debug("effect skipped: split without caster or hit target")
		return nil
	}
	exclude := target.NewExcludeSet(ec.InitialTarget.ID())
	dir := d.aim(ec.HitPosition, ec, exclude)
	specs := make([]LaunchSpec, 0, m.Count)
	for _, fan := range geom.Fan(dir, m.Count, m.Spread) {
		specs = append(specs, LaunchSpec{
			Caster:     ec.Caster,
			Origin:     ec.HitPosition,
			Direction:  fan,
			Speed:      m.Speed,
			Damage:     ec.BaseDamage * m.DamagePercent / 100,
			Pierce:     m.Pierce,
			Ricochet:   m.Ricochet,
			Lifetime:   m.Lifetime,
			PoolKey:    m.PoolKey,
			HitModules: withoutSplits(ec.HitModules),
			Exclude:    exclude.Clone(),
		})
	}
	return d.launch(ctx, specs)
}

// aim points from origin at the nearest living target outside exclude,
// falling back to the first firing direction and then to +X.
func (d *Dispatcher) aim(origin geom.Vec2, ec Context, exclude target.ExcludeSet) geom.Vec2 {
	fallback := geom.Right
	if len(ec.FiringDirections) > 0 && !ec.FiringDirections[0].IsZero() {
		fallback = ec.FiringDirections[0].Normalize()
	}
	next := d.targets.FindTarget(target.RuleNearest, target.Origin{
		Position: origin,
		Facing:   fallback,
		Faction:  ec.Caster.Faction(),
	}, exclude)
	if next == nil {
		return fallback
	}
	return geom.Direction(origin, next.Position(), fallback)
}

func (d *Dispatcher) launch(ctx context.Context, specs []LaunchSpec) error {
	if err := d.launcher.Launch(ctx, specs); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		d.logger.Warn("projectiles not launched", zap.Int("count", len(specs)), zap.Error(err))
	}
	return nil
}

func (d *Dispatcher) lifesteal(m *Lifesteal, ec Context) {
	if !entity.IsLive(ec.Caster) || ec.DamageDealt <= 0 {
		return
	}
	ec.Caster.Heal(ec.DamageDealt * m.Percent / 100)
}

func (d *Dispatcher) detonate(m *Detonate, ec Context) {
	if !entity.IsLive(ec.InitialTarget) {
		d.logger.Debug("effect skipped: detonate target gone")
		return
	}
	var consumed []*status.Instance
	potential := 0.0
	for _, inst := range d.statuses.GetActiveEffectsOn(ec.InitialTarget) {
		if !inst.HasDamageOverTime() {
			continue
		}
		if len(m.StatusIDs) > 0 && !slices.Contains(m.StatusIDs, inst.EffectID()) {
			continue
		}
		potential += inst.DamagePerSecond() * inst.Remaining()
		consumed = append(consumed, inst)
	}
	if len(consumed) == 0 {
		return
	}
	ec.InitialTarget.TakeDamage(potential * m.Percent / 100)
	if m.Consume {
		d.statuses.ConsumeEffects(consumed)
	}
}

// LaunchSpecs builds one LaunchSpec per direction from a Projectile module.
func LaunchSpecs(m *Projectile, caster entity.Entity, origin geom.Vec2, dirs []geom.Vec2, damage float64, hitModules []Module, exclude target.ExcludeSet) []LaunchSpec {
	specs := make([]LaunchSpec, 0, len(dirs))
	for _, dir := range dirs {
		specs = append(specs, LaunchSpec{
			Caster:                    caster,
			Origin:                    origin,
			Direction:                 dir,
			Speed:                     m.Speed,
			Damage:                    damage,
			Pierce:                    m.Pierce,
			Ricochet:                  m.Ricochet,
			AllowRicochetToSameTarget: m.AllowRicochetToSameTarget,
			Tracking:                  m.Tracking,
			TurnRate:                  m.TurnRate,
			Lifetime:                  m.Lifetime,
			PoolKey:                   m.PoolKey,
			Payloads:                  m.Payloads,
			HitModules:                hitModules,
			Exclude:                   exclude.Clone(),
		})
	}
	return specs
}

// withoutSplits drops SplitOnHit modules so secondary projectiles do not
// split again.
func withoutSplits(modules []Module) []Module {
	out := make([]Module, 0, len(modules))
	for _, m := range modules {
		if _, ok := m.(*SplitOnHit); !ok {
			out = append(out, m)
		}
	}
	return out
}
