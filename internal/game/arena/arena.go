// Package arena assembles one encounter: the combatants, their equipped
// cards, and every system a frame advances.
package arena

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/game/card"
	"github.com/cory-johannsen/cardcombat/internal/game/dice"
	"github.com/cory-johannsen/cardcombat/internal/game/effect"
	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/pool"
	"github.com/cory-johannsen/cardcombat/internal/game/projectile"
	"github.com/cory-johannsen/cardcombat/internal/game/status"
	"github.com/cory-johannsen/cardcombat/internal/game/target"
	"github.com/cory-johannsen/cardcombat/internal/scripting"
)

// Options tunes the frame loop.
type Options struct {
	Tuning projectile.Tuning
	// MaxFrameDelta caps a single frame's delta in seconds.
	MaxFrameDelta float64
	// Substeps is the number of projectile steps per frame.
	Substeps int
}

// Deps are the loaded content and shared services an arena draws from.
type Deps struct {
	Effects effect.Loader
	Cards   *card.Registry
	// Scripts runs status lifecycle hooks; nil disables them.
	Scripts *scripting.Manager
	Roller  *dice.Roller
	Logger  *zap.Logger
}

// Arena is one running encounter. It is not safe for concurrent use; a
// single loop owns it and calls Tick.
type Arena struct {
	scenario    *Scenario
	opts        Options
	logger      *zap.Logger
	combatants  []*entity.Combatant
	byID        map[entity.ID]*entity.Combatant
	finder      *target.Finder
	statuses    *status.Manager
	presenter   *Presenter
	projectiles *projectile.Set
	zones       *Zones
	casters     []*card.Caster
	env         projectile.Env

	elapsed      float64
	frames       int
	statusTotals status.TickSummary
}

// New builds an arena for scn.
//
// Precondition: scn passed Validate; deps.Effects, deps.Cards, deps.Roller and deps.Logger are non-nil.
// Postcondition: Returns a ready Arena, or an error if a combatant equips an unknown card.
func New(scn *Scenario, opts Options, deps Deps) (*Arena, error) {
	if opts.Substeps < 1 {
		opts.Substeps = 1
	}
	logger := deps.Logger.With(zap.String("scenario", scn.Name))
	a := &Arena{
		scenario: scn,
		opts:     opts,
		logger:   logger,
		byID:     make(map[entity.ID]*entity.Combatant, len(scn.Combatants)),
	}
	for _, spec := range scn.Combatants {
		c := entity.NewCombatant(spec.Entity(), logger)
		a.combatants = append(a.combatants, c)
		a.byID[c.ID()] = c
	}
	a.finder = target.NewFinder(a.entities, deps.Roller, logger)

	a.presenter = NewPresenter(pool.NewGrowing(func(string) (*Cue, error) { return &Cue{}, nil }, logger), logger)
	statusOpts := []status.Option{status.WithCues(a.presenter)}
	if deps.Scripts != nil {
		a.bindScripts(deps.Scripts)
		statusOpts = append(statusOpts, status.WithHooks(scriptHooks{scripts: deps.Scripts, logger: logger}))
	}
	a.statuses = status.NewManager(logger, statusOpts...)

	projectiles := pool.NewGrowing(func(string) (*projectile.Projectile, error) { return projectile.New(), nil }, logger)
	a.projectiles = projectile.NewSet(projectiles, logger)
	spawner := projectile.NewSpawner(projectiles, a.projectiles, opts.Tuning, logger)
	a.zones = NewZones(pool.NewGrowing(func(string) (*Zone, error) { return &Zone{}, nil }, logger), a.finder, logger)

	dispatcher := effect.NewDispatcher(effect.Deps{
		Statuses: a.statuses,
		Targets:  a.finder,
		Launcher: spawner,
		Zones:    a.zones,
		Loader:   deps.Effects,
		Roller:   deps.Roller,
		Logger:   logger,
	})
	a.env = projectile.Env{
		Targets:    a.finder,
		Dispatcher: dispatcher,
		Roller:     deps.Roller,
		Tuning:     opts.Tuning,
		Logger:     logger,
	}
	pipeline := card.NewPipeline(deps.Effects, dispatcher, spawner, a.finder, logger)

	for i, spec := range scn.Combatants {
		if len(spec.Cards) == 0 {
			continue
		}
		cards := make([]*card.Instance, 0, len(spec.Cards))
		for _, ref := range spec.Cards {
			def, ok := deps.Cards.Get(ref.ID)
			if !ok {
				return nil, fmt.Errorf("combatant %q equips unknown card %q", spec.ID, ref.ID)
			}
			cards = append(cards, &card.Instance{Def: def, EnhancementLevel: ref.Level})
		}
		a.casters = append(a.casters, card.NewCaster(a.combatants[i], pipeline, logger, cards...))
	}
	return a, nil
}

// bindScripts points the Lua combat module at this arena's combatants.
func (a *Arena) bindScripts(s *scripting.Manager) {
	s.Damage = func(id string, amount float64) float64 {
		c, ok := a.byID[entity.ID(id)]
		if !ok || !c.Alive() {
			return 0
		}
		return c.TakeDamage(amount).Dealt
	}
	s.Heal = func(id string, amount float64) float64 {
		c, ok := a.byID[entity.ID(id)]
		if !ok || !c.Alive() {
			return 0
		}
		return c.Heal(amount)
	}
	s.Health = func(id string) (float64, float64, bool) {
		c, ok := a.byID[entity.ID(id)]
		if !ok {
			return 0, 0, false
		}
		return c.Health(), c.MaxHealth(), true
	}
}

func (a *Arena) entities() []entity.Entity {
	out := make([]entity.Entity, len(a.combatants))
	for i, c := range a.combatants {
		out[i] = c
	}
	return out
}

// Tick advances the encounter by one frame of dt seconds. Frames longer
// than MaxFrameDelta are clamped. Casters fire first, then projectiles
// move in substeps, then zones, statuses and cues age by the whole frame.
//
// Postcondition: Returns ctx.Err() on cancellation, nil otherwise.
func (a *Arena) Tick(ctx context.Context, dt float64) error {
	if dt <= 0 {
		return nil
	}
	if a.opts.MaxFrameDelta > 0 && dt > a.opts.MaxFrameDelta {
		a.logger.Debug("frame delta clamped", zap.Float64("raw", dt), zap.Float64("clamped", a.opts.MaxFrameDelta))
		dt = a.opts.MaxFrameDelta
	}
	for _, c := range a.casters {
		if err := c.Tick(ctx, dt); err != nil {
			return err
		}
	}
	sub := dt / float64(a.opts.Substeps)
	for range a.opts.Substeps {
		if err := a.projectiles.Step(ctx, sub, a.env); err != nil {
			return err
		}
	}
	a.zones.Tick(dt)
	sum := a.statuses.Tick(dt)
	a.statusTotals.Damage += sum.Damage
	a.statusTotals.Healed += sum.Healed
	a.statusTotals.Expired += sum.Expired
	a.statusTotals.Dropped += sum.Dropped
	a.presenter.Tick(dt)

	a.elapsed += dt
	a.frames++
	return nil
}

// Done reports whether the scenario's duration elapsed or at most one
// faction still has living combatants.
func (a *Arena) Done() bool {
	if a.elapsed >= a.scenario.Duration {
		return true
	}
	alive := make(map[entity.Faction]bool)
	for _, c := range a.combatants {
		if c.Alive() {
			alive[c.Faction()] = true
		}
	}
	return len(alive) < 2
}

// Combatant returns the combatant with id.
func (a *Arena) Combatant(id entity.ID) (*entity.Combatant, bool) {
	c, ok := a.byID[id]
	return c, ok
}

// Combatants returns every combatant in scenario order.
func (a *Arena) Combatants() []*entity.Combatant {
	return append([]*entity.Combatant(nil), a.combatants...)
}

// Statuses returns the arena's status manager.
func (a *Arena) Statuses() *status.Manager { return a.statuses }

// Projectiles returns the in-flight projectile set.
func (a *Arena) Projectiles() *projectile.Set { return a.projectiles }

// Zones returns the active damage zones.
func (a *Arena) Zones() *Zones { return a.zones }

// Cues returns the visual cue presenter.
func (a *Arena) Cues() *Presenter { return a.presenter }

// Elapsed returns the simulated seconds so far.
func (a *Arena) Elapsed() float64 { return a.elapsed }

// CombatantSummary is one combatant's end state.
type CombatantSummary struct {
	ID        entity.ID
	Faction   entity.Faction
	Health    float64
	MaxHealth float64
	Alive     bool
}

// Summary totals an encounter.
type Summary struct {
	Scenario            string
	Elapsed             float64
	Frames              int
	CardsFired          int
	ProjectilesFired    int
	ProjectilesReleased int
	ZonesSpawned        int
	CuesPlayed          int
	StatusDamage        float64
	StatusHealed        float64
	StatusesExpired     int
	Combatants          []CombatantSummary
}

// Summary reports the encounter so far.
func (a *Arena) Summary() Summary {
	s := Summary{
		Scenario:            a.scenario.Name,
		Elapsed:             a.elapsed,
		Frames:              a.frames,
		ProjectilesFired:    a.projectiles.Fired(),
		ProjectilesReleased: a.projectiles.Released(),
		ZonesSpawned:        a.zones.Spawned(),
		CuesPlayed:          a.presenter.Played(),
		StatusDamage:        a.statusTotals.Damage,
		StatusHealed:        a.statusTotals.Healed,
		StatusesExpired:     a.statusTotals.Expired,
	}
	for _, c := range a.casters {
		s.CardsFired += c.Fired()
	}
	for _, c := range a.combatants {
		s.Combatants = append(s.Combatants, CombatantSummary{
			ID:        c.ID(),
			Faction:   c.Faction(),
			Health:    c.Health(),
			MaxHealth: c.MaxHealth(),
			Alive:     c.Alive(),
		})
	}
	sort.Slice(s.Combatants, func(i, j int) bool { return s.Combatants[i].ID < s.Combatants[j].ID })
	return s
}
