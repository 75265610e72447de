package card

import (
	"context"

	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/game/effect"
	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/geom"
	"github.com/cory-johannsen/cardcombat/internal/game/stat"
	"github.com/cory-johannsen/cardcombat/internal/game/target"
)

// Pipeline runs one card invocation: aim, launch, then on-fire modules.
type Pipeline struct {
	loader     effect.Loader
	dispatcher *effect.Dispatcher
	launcher   effect.Launcher
	targets    target.Provider
	logger     *zap.Logger
}

// NewPipeline creates a Pipeline.
//
// Precondition: all arguments must be non-nil.
func NewPipeline(loader effect.Loader, dispatcher *effect.Dispatcher, launcher effect.Launcher, targets target.Provider, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		loader:     loader,
		dispatcher: dispatcher,
		launcher:   launcher,
		targets:    targets,
		logger:     logger,
	}
}

// Result summarizes one invocation.
type Result struct {
	Direction   geom.Vec2
	Target      entity.Entity
	Projectiles int
	Damage      float64
}

// Execute fires card from spawn on behalf of caster. The card's first
// Projectile module spawns the projectiles; other modules tagged on_fire run
// once afterwards, and the remaining modules ride along on every projectile
// to run on its hits.
//
// Postcondition: Returns ctx.Err() on cancellation; every other problem is
// logged and the affected part of the invocation skipped.
func (p *Pipeline) Execute(ctx context.Context, card *Instance, caster entity.Entity, spawn geom.Vec2) (Result, error) {
	var res Result
	if card == nil || card.Def == nil {
		p.logger.Warn("card skipped: missing definition")
		return res, nil
	}
	if !entity.IsLive(caster) {
		p.logger.Debug("card skipped: caster not alive", zap.String("card", card.Def.ID))
		return res, nil
	}

	modules, err := p.resolve(ctx, card.Def)
	if err != nil {
		return res, err
	}

	res.Direction = caster.Facing()
	res.Target = p.targets.FindTarget(card.Def.Targeting, target.Origin{
		Position: spawn,
		Facing:   caster.Facing(),
		Faction:  caster.Faction(),
	}, nil)
	if res.Target != nil {
		res.Direction = geom.Direction(spawn, res.Target.Position(), res.Direction)
	}
	res.Damage = card.Damage(caster.Stat(stat.Attack))

	var launcher *effect.Projectile
	var onFire, onHit []effect.Module
	for _, m := range modules {
		if proj, ok := m.(*effect.Projectile); ok && launcher == nil {
			launcher = proj
			continue
		}
		if m.Trigger() == effect.OnFire {
			onFire = append(onFire, m)
		} else {
			onHit = append(onHit, m)
		}
	}

	directions := []geom.Vec2{res.Direction}
	if launcher != nil {
		directions = geom.Fan(res.Direction, launcher.Count, launcher.Spread)
		damage := res.Damage
		if launcher.DamagePercent > 0 {
			damage = res.Damage * launcher.DamagePercent / 100
		}
		specs := effect.LaunchSpecs(launcher, caster, spawn, directions, damage, onHit, nil)
		if err := p.launcher.Launch(ctx, specs); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			p.logger.Warn("card projectiles not launched", zap.String("card", card.Def.ID), zap.Error(err))
		} else {
			res.Projectiles = len(specs)
		}
	}

	ec := effect.Context{
		Caster:           caster,
		SpawnPoint:       spawn,
		HitPosition:      spawn,
		BaseDamage:       res.Damage,
		FiringDirections: directions,
		HitModules:       onHit,
	}
	for _, m := range onFire {
		if err := p.dispatcher.Execute(ctx, m, ec); err != nil {
			return res, err
		}
	}
	p.logger.Debug("card executed",
		zap.String("card", card.Def.ID),
		zap.String("caster", string(caster.ID())),
		zap.Int("projectiles", res.Projectiles),
		zap.Float64("damage", res.Damage),
	)
	return res, nil
}

// resolve loads the card's modules, skipping keys that fail to load.
func (p *Pipeline) resolve(ctx context.Context, def *Definition) ([]effect.Module, error) {
	modules := make([]effect.Module, 0, len(def.Modules))
	for _, key := range def.Modules {
		m, err := p.loader.Load(ctx, key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			p.logger.Warn("card module skipped", zap.String("card", def.ID), zap.String("key", key), zap.Error(err))
			continue
		}
		if m == nil {
			p.logger.Warn("card module skipped: nil module", zap.String("card", def.ID), zap.String("key", key))
			continue
		}
		modules = append(modules, m)
	}
	return modules, nil
}
