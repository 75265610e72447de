// Package projectile implements the flying/resolving-hit/expired projectile
// state machine with pierce, ricochet, homing and chained payloads.
package projectile

import (
	"context"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/game/dice"
	"github.com/cory-johannsen/cardcombat/internal/game/effect"
	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/geom"
	"github.com/cory-johannsen/cardcombat/internal/game/stat"
	"github.com/cory-johannsen/cardcombat/internal/game/target"
)

// State is the projectile's lifecycle state.
type State int

const (
	// Idle is a pooled projectile that has not been initialized.
	Idle State = iota
	Flying
	// ResolvingHit is transient and only observable from hit modules.
	ResolvingHit
	Expired
)

func (s State) String() string {
	switch s {
	case Flying:
		return "flying"
	case ResolvingHit:
		return "resolving_hit"
	case Expired:
		return "expired"
	default:
		return "idle"
	}
}

// Tuning holds the encounter-wide projectile settings.
type Tuning struct {
	HitRadius float64
	// DefaultLifetime applies when a spec sets none.
	DefaultLifetime float64
	// HomingTurnRate, in degrees per second, applies when a spec sets none.
	HomingTurnRate float64
}

// Env is what a projectile needs from the encounter while it steps.
type Env struct {
	Targets    target.Provider
	Dispatcher *effect.Dispatcher
	Roller     *dice.Roller
	Tuning     Tuning
	Logger     *zap.Logger
}

// HitEvent records one resolved hit.
type HitEvent struct {
	ShotID   string
	Target   entity.ID
	Damage   float64
	Critical bool
	Killed   bool
}

// Projectile is one pooled projectile actor. The hit set is owned
// exclusively by the projectile and cleared on every Init.
//
// It is not safe for concurrent use.
type Projectile struct {
	id     string
	state  State
	shotID string

	caster         entity.Entity
	faction        entity.Faction
	critChance     float64
	critMultiplier float64

	origin    geom.Vec2
	position  geom.Vec2
	direction geom.Vec2
	speed     float64
	damage    float64

	pierce             int
	ricochet           int
	startedWithBounces bool
	allowSameTarget    bool
	// rehit is the one target a same-target ricochet may hit again.
	rehit entity.ID

	tracking    bool
	turnRate    float64
	trackTarget entity.Entity

	hitSet     target.ExcludeSet
	bounce     int
	payloads   []effect.Payload
	hitModules []effect.Module
	lifetime   float64
	poolKey    string

	hits []HitEvent
}

// New returns an idle projectile for a pool to hand out.
func New() *Projectile {
	return &Projectile{id: uuid.NewString(), hitSet: target.ExcludeSet{}}
}

func (p *Projectile) ID() string { return p.id }
func (p *Projectile) ShotID() string { return p.shotID }
func (p *Projectile) State() State { return p.state }
func (p *Projectile) Position() geom.Vec2 { return p.position }
func (p *Projectile) Direction() geom.Vec2 { return p.direction }
func (p *Projectile) PoolKey() string { return p.poolKey }
func (p *Projectile) PierceRemaining() int { return p.pierce }
func (p *Projectile) RicochetRemaining() int { return p.ricochet }
func (p *Projectile) BounceCount() int { return p.bounce }
func (p *Projectile) Lifetime() float64 { return p.lifetime }

// Hits returns the hits resolved since Init, in order.
func (p *Projectile) Hits() []HitEvent { return append([]HitEvent(nil), p.hits...) }

// HasHit reports whether id is in the hit set.
func (p *Projectile) HasHit(id entity.ID) bool { return p.hitSet.Has(id) }

// Init resets the projectile from spec and puts it in flight with a new shot id.
//
// Precondition: spec.Caster must be non-nil.
// Postcondition: State() == Flying; the hit set holds only spec.Exclude.
func (p *Projectile) Init(spec effect.LaunchSpec, tuning Tuning) {
	dir := spec.Direction.Normalize()
	if dir.IsZero() {
		dir = spec.Caster.Facing()
	}
	lifetime := spec.Lifetime
	if lifetime <= 0 {
		lifetime = tuning.DefaultLifetime
	}
	turnRate := spec.TurnRate
	if turnRate <= 0 {
		turnRate = tuning.HomingTurnRate
	}

	*p = Projectile{
		id:                 p.id,
		state:              Flying,
		shotID:             uuid.NewString(),
		caster:             spec.Caster,
		faction:            spec.Caster.Faction(),
		critChance:         spec.Caster.Stat(stat.CritChance),
		critMultiplier:     spec.Caster.Stat(stat.CritMultiplier),
		origin:             spec.Origin,
		position:           spec.Origin,
		direction:          dir,
		speed:              spec.Speed,
		damage:             spec.Damage,
		pierce:             spec.Pierce,
		ricochet:           spec.Ricochet,
		startedWithBounces: spec.Ricochet > 0,
		allowSameTarget:    spec.AllowRicochetToSameTarget,
		tracking:           spec.Tracking,
		turnRate:           turnRate,
		hitSet:             spec.Exclude.Clone(),
		payloads:           spec.Payloads,
		hitModules:         spec.HitModules,
		lifetime:           lifetime,
		poolKey:            spec.PoolKey,
	}
}

// Expire forces the projectile out of flight.
func (p *Projectile) Expire() { p.state = Expired }

// Step advances the projectile by one physics step of dt seconds: homing,
// lifetime, movement and then collision along the swept segment.
func (p *Projectile) Step(ctx context.Context, dt float64, env Env) error {
	if p.state != Flying || dt <= 0 {
		return nil
	}
	p.lifetime -= dt
	if p.lifetime <= 0 {
		env.Logger.Debug("projectile lifetime elapsed", zap.String("shot", p.shotID))
		p.state = Expired
		return nil
	}
	if p.tracking {
		p.steer(dt, env)
	}

	from := p.position
	to := from.Add(p.direction.Scale(p.speed * dt))
	for p.state == Flying {
		hit, at := p.firstContact(from, to, env)
		if hit == nil {
			break
		}
		dirBefore := p.direction
		if err := p.resolveHit(ctx, hit, at, env); err != nil {
			return err
		}
		if p.state != Flying {
			p.position = at
			return nil
		}
		if !p.direction.Eq(dirBefore, 1e-12) {
			// Ricochet: the rest of this step's travel is dropped; the
			// next step leaves the hit point on the new heading.
			p.position = at
			return nil
		}
		from = at
	}
	p.position = to
	return nil
}

// steer re-acquires a target when the tracked one is gone and turns toward
// it by at most turnRate*dt degrees.
func (p *Projectile) steer(dt float64, env Env) {
	if !entity.IsLive(p.trackTarget) || p.excluded(p.trackTarget.ID()) {
		p.trackTarget = env.Targets.FindTarget(target.RuleNearest, target.Origin{
			Position: p.position,
			Facing:   p.direction,
			Faction:  p.faction,
		}, p.exclusion())
	}
	if p.trackTarget == nil {
		return
	}
	desired := geom.Direction(p.position, p.trackTarget.Position(), p.direction)
	p.direction = geom.RotateTowards(p.direction, desired, p.turnRate*dt)
}

// firstContact returns the eligible entity touched earliest along from->to
// and the point on the segment closest to it.
func (p *Projectile) firstContact(from, to geom.Vec2, env Env) (entity.Entity, geom.Vec2) {
	seg := to.Sub(from)
	segLenSq := seg.Dot(seg)
	mid := from.Add(seg.Scale(0.5))
	radius := math.Sqrt(segLenSq)/2 + env.Tuning.HitRadius

	var best entity.Entity
	bestT := math.Inf(1)
	for _, e := range env.Targets.InRadius(mid, radius, p.faction) {
		if p.excluded(e.ID()) {
			continue
		}
		if geom.SegmentPointDist(from, to, e.Position()) > env.Tuning.HitRadius {
			continue
		}
		t := 0.0
		if segLenSq > 0 {
			t = math.Max(0, math.Min(1, e.Position().Sub(from).Dot(seg)/segLenSq))
		}
		if t < bestT {
			best, bestT = e, t
		}
	}
	if best == nil {
		return nil, geom.Vec2{}
	}
	return best, from.Add(seg.Scale(bestT))
}

func (p *Projectile) excluded(id entity.ID) bool {
	return p.hitSet.Has(id) && id != p.rehit
}

func (p *Projectile) exclusion() target.ExcludeSet {
	if p.rehit == "" {
		return p.hitSet
	}
	ex := p.hitSet.Clone()
	delete(ex, p.rehit)
	return ex
}

// resolveHit applies damage, runs payloads and hit modules, then decides
// between ricochet, pierce and expiry, in that order.
func (p *Projectile) resolveHit(ctx context.Context, hit entity.Entity, at geom.Vec2, env Env) error {
	p.state = ResolvingHit
	if hit.ID() == p.rehit {
		p.rehit = ""
	}

	damage := p.damage
	crit := env.Roller.Chance("projectile.crit", p.critChance)
	if crit {
		damage *= p.critMultiplier
	}
	res := hit.TakeDamage(damage)
	p.hitSet.Add(hit.ID())
	p.hits = append(p.hits, HitEvent{
		ShotID:   p.shotID,
		Target:   hit.ID(),
		Damage:   res.Dealt,
		Critical: crit,
		Killed:   res.Killed,
	})
	env.Logger.Debug("projectile hit",
		zap.String("shot", p.shotID),
		zap.String("target", string(hit.ID())),
		zap.Float64("damage", res.Dealt),
		zap.Bool("critical", crit),
		zap.Int("bounce", p.bounce),
	)

	ec := effect.Context{
		Caster:           p.caster,
		SpawnPoint:       p.origin,
		InitialTarget:    hit,
		HitPosition:      at,
		DamageDealt:      res.Dealt,
		BaseDamage:       p.damage,
		IsCritical:       crit,
		IsKill:           res.Killed,
		LastRicochet:     p.startedWithBounces && p.ricochet == 0,
		FiringDirections: []geom.Vec2{p.direction},
		ShotID:           p.shotID,
		HitModules:       p.hitModules,
	}
	for _, pl := range p.payloads {
		if pl.Bounce != p.bounce {
			continue
		}
		if err := env.Dispatcher.ExecuteKey(ctx, pl.Module, ec); err != nil {
			return err
		}
	}
	if err := env.Dispatcher.Fire(ctx, effect.HitTriggers(ec), p.hitModules, ec); err != nil {
		return err
	}

	if p.ricochet > 0 {
		p.ricochet--
		p.bounce++
		exclude := p.hitSet
		if p.allowSameTarget {
			exclude = p.hitSet.Clone()
			delete(exclude, hit.ID())
		}
		next := env.Targets.FindTarget(target.RuleNearest, target.Origin{
			Position: at,
			Facing:   p.direction,
			Faction:  p.faction,
		}, exclude)
		if next != nil {
			if next.ID() == hit.ID() {
				p.rehit = hit.ID()
			}
			p.direction = geom.Direction(at, next.Position(), p.direction)
			p.trackTarget = next
			p.state = Flying
			return nil
		}
	}
	if p.pierce > 0 {
		p.pierce--
		p.state = Flying
		return nil
	}
	p.state = Expired
	return nil
}
