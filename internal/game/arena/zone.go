package arena

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/game/effect"
	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/geom"
	"github.com/cory-johannsen/cardcombat/internal/game/pool"
	"github.com/cory-johannsen/cardcombat/internal/game/target"
)

// Zone is a lingering damage area left behind by an area burst. Zones are
// pooled by their spec's pool key and reset on every spawn.
type Zone struct {
	id        string
	spec      effect.ZoneSpec
	center    geom.Vec2
	faction   entity.Faction
	remaining float64
	tickTimer float64
	dealt     float64
}

// ID returns the zone's instance id.
func (z *Zone) ID() string { return z.id }

// Center returns where the zone sits.
func (z *Zone) Center() geom.Vec2 { return z.center }

// Remaining returns the zone's remaining lifetime in seconds.
func (z *Zone) Remaining() float64 { return z.remaining }

// Dealt returns the total damage the zone has dealt since it spawned.
func (z *Zone) Dealt() float64 { return z.dealt }

func (z *Zone) reset(spec effect.ZoneSpec, center geom.Vec2, faction entity.Faction) {
	*z = Zone{
		id:        uuid.NewString(),
		spec:      spec,
		center:    center,
		faction:   faction,
		remaining: spec.Duration,
		tickTimer: spec.TickInterval,
	}
}

// tick advances the zone and damages every hostile entity inside it once per
// elapsed tick interval. It reports whether the zone is still active.
func (z *Zone) tick(dt float64, targets target.Provider) bool {
	elapsed := min(dt, z.remaining)
	z.remaining -= elapsed
	z.tickTimer -= elapsed
	for z.tickTimer <= 1e-9 {
		z.tickTimer += z.spec.TickInterval
		for _, e := range targets.InRadius(z.center, z.spec.Radius, z.faction) {
			z.dealt += e.TakeDamage(z.spec.TickDamage).Dealt
		}
	}
	return z.remaining > 1e-9
}

// Zones owns the active damage zones and implements effect.ZoneSpawner.
//
// It is not safe for concurrent use.
type Zones struct {
	pool    pool.Provider[*Zone]
	targets target.Provider
	logger  *zap.Logger
	active  []*Zone
	spawned int
}

// NewZones creates an empty zone set backed by p.
//
// Precondition: all arguments must be non-nil.
func NewZones(p pool.Provider[*Zone], targets target.Provider, logger *zap.Logger) *Zones {
	return &Zones{pool: p, targets: targets, logger: logger}
}

// SpawnZone implements effect.ZoneSpawner.
func (zs *Zones) SpawnZone(ctx context.Context, spec effect.ZoneSpec, center geom.Vec2, caster entity.Entity) error {
	if caster == nil {
		return fmt.Errorf("zone %q: missing caster", spec.PoolKey)
	}
	if spec.Duration <= 0 || spec.TickInterval <= 0 {
		return fmt.Errorf("zone %q: duration and tick_interval must be > 0", spec.PoolKey)
	}
	z, err := zs.pool.Acquire(ctx, spec.PoolKey)
	if err != nil {
		return fmt.Errorf("acquiring zone %q: %w", spec.PoolKey, err)
	}
	z.reset(spec, center, caster.Faction())
	zs.active = append(zs.active, z)
	zs.spawned++
	zs.logger.Debug("zone spawned",
		zap.String("zone", z.id),
		zap.String("pool_key", spec.PoolKey),
		zap.Float64("radius", spec.Radius),
		zap.Float64("duration", spec.Duration),
	)
	return nil
}

// Tick advances every zone by dt and releases the ones that ran out.
func (zs *Zones) Tick(dt float64) {
	kept := zs.active[:0]
	for _, z := range zs.active {
		if z.tick(dt, zs.targets) {
			kept = append(kept, z)
			continue
		}
		zs.logger.Debug("zone expired", zap.String("zone", z.id), zap.Float64("dealt", z.dealt))
		zs.pool.Release(z.spec.PoolKey, z)
	}
	for i := len(kept); i < len(zs.active); i++ {
		zs.active[i] = nil
	}
	zs.active = kept
}

// Active returns the zones still ticking.
func (zs *Zones) Active() []*Zone { return append([]*Zone(nil), zs.active...) }

// Spawned returns how many zones have been spawned in total.
func (zs *Zones) Spawned() int { return zs.spawned }
