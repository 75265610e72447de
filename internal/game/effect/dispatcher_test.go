package effect_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/cardcombat/internal/game/dice"
	"github.com/cory-johannsen/cardcombat/internal/game/effect"
	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/geom"
	"github.com/cory-johannsen/cardcombat/internal/game/stat"
	"github.com/cory-johannsen/cardcombat/internal/game/status"
	"github.com/cory-johannsen/cardcombat/internal/game/target"
)

// fixedSource returns queued values modulo n, cycling when exhausted.
type fixedSource struct {
	values []int
	next   int
}

func (f *fixedSource) Intn(n int) int {
	v := f.values[f.next%len(f.values)]
	f.next++
	return v % n
}

type fakeLauncher struct {
	specs []effect.LaunchSpec
	err   error
}

func (f *fakeLauncher) Launch(_ context.Context, specs []effect.LaunchSpec) error {
	f.specs = append(f.specs, specs...)
	return f.err
}

type zoneCall struct {
	spec   effect.ZoneSpec
	center geom.Vec2
}

type fakeZones struct{ calls []zoneCall }

func (f *fakeZones) SpawnZone(_ context.Context, spec effect.ZoneSpec, center geom.Vec2, _ entity.Entity) error {
	f.calls = append(f.calls, zoneCall{spec: spec, center: center})
	return nil
}

type world struct {
	player   *entity.Combatant
	hostiles []*entity.Combatant
	statuses *status.Manager
	launcher *fakeLauncher
	zones    *fakeZones
	catalog  *effect.Catalog
	src      *fixedSource
	d        *effect.Dispatcher
}

func combatant(id entity.ID, faction entity.Faction, pos geom.Vec2, health float64) *entity.Combatant {
	var base stat.Values
	base[stat.Health] = health
	base[stat.AttackSpeed] = 1
	base[stat.CritMultiplier] = 1.5
	return entity.NewCombatant(entity.Spec{ID: id, Faction: faction, Position: pos, Base: base}, zap.NewNop())
}

func newWorld(t *testing.T, logger *zap.Logger, hostiles ...*entity.Combatant) *world {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &world{
		player:   combatant("player", entity.FactionPlayer, geom.V(0, 0), 100),
		hostiles: hostiles,
		statuses: status.NewManager(logger),
		launcher: &fakeLauncher{},
		zones:    &fakeZones{},
		catalog:  effect.NewCatalog(nil),
		src:      &fixedSource{values: []int{0}},
	}
	roller := dice.NewLoggedRoller(w.src, logger)
	finder := target.NewFinder(func() []entity.Entity {
		out := []entity.Entity{w.player}
		for _, h := range w.hostiles {
			out = append(out, h)
		}
		return out
	}, roller, logger)
	w.d = effect.NewDispatcher(effect.Deps{
		Statuses: w.statuses,
		Targets:  finder,
		Launcher: w.launcher,
		Zones:    w.zones,
		Loader:   w.catalog,
		Roller:   roller,
		Logger:   logger,
	})
	return w
}

func (w *world) hitContext(hit entity.Entity) effect.Context {
	return effect.Context{
		Caster:           w.player,
		InitialTarget:    hit,
		HitPosition:      hit.Position(),
		BaseDamage:       20,
		FiringDirections: []geom.Vec2{geom.Right},
	}
}

func dot(id string, amount, duration float64) *status.Descriptor {
	return &status.Descriptor{ID: id, Stacking: status.StackEffect, Duration: duration, DotAmount: amount}
}

func TestApplyStatusToHitTarget_ChanceRoll(t *testing.T) {
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, nil, orc)
	m := &effect.ApplyStatusToHitTarget{Chance: 50, Status: dot("burning", 3, 2)}

	w.src.values = []int{4999}
	require.NoError(t, w.d.Execute(context.Background(), m, w.hitContext(orc)))
	assert.Len(t, w.statuses.GetActiveEffectsOn(orc), 1)

	w.src.values = []int{5000}
	require.NoError(t, w.d.Execute(context.Background(), m, w.hitContext(orc)))
	assert.Len(t, w.statuses.GetActiveEffectsOn(orc), 1, "failed roll applies nothing")
}

func TestApplyStatusToCaster_TargetsCaster(t *testing.T) {
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, nil, orc)
	m := &effect.ApplyStatusToCaster{Chance: 100, Status: &status.Descriptor{
		ID: "fury", Duration: 3, StatBonuses: map[string]float64{"attack": 25},
	}}

	require.NoError(t, w.d.Execute(context.Background(), m, w.hitContext(orc)))
	assert.Len(t, w.statuses.GetActiveEffectsOn(w.player), 1)
	assert.Empty(t, w.statuses.GetActiveEffectsOn(orc))
	assert.Equal(t, 25.0, w.player.Stat(stat.Attack))
}

func TestApplyStatus_MissingDescriptorLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, zap.New(core), orc)

	err := w.d.Execute(context.Background(), &effect.ApplyStatusToHitTarget{Chance: 100}, w.hitContext(orc))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("effect skipped: missing status descriptor").Len())
}

func TestApplyStatus_DestroyedTargetNoOp(t *testing.T) {
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, nil, orc)
	ec := w.hitContext(orc)
	orc.Destroy()

	m := &effect.ApplyStatusToHitTarget{Chance: 100, Status: dot("burning", 3, 2)}
	require.NoError(t, w.d.Execute(context.Background(), m, ec))
	assert.Equal(t, 0, w.statuses.Count())
}

func TestAreaBurst_DamagesHostilesInRadiusAndSpawnsZone(t *testing.T) {
	near := combatant("near", entity.FactionHostile, geom.V(5, 1), 100)
	far := combatant("far", entity.FactionHostile, geom.V(20, 0), 100)
	w := newWorld(t, nil, near, far)
	hit := combatant("hit", entity.FactionHostile, geom.V(5, 0), 100)
	w.hostiles = append(w.hostiles, hit)

	m := &effect.AreaBurst{
		Radius:        2,
		DamagePercent: 50,
		Zone:          &effect.ZoneSpec{Duration: 3, Radius: 2, TickDamage: 4, TickInterval: 0.5, PoolKey: "zone"},
	}
	require.NoError(t, w.d.Execute(context.Background(), m, w.hitContext(hit)))

	assert.Equal(t, 90.0, near.Health())
	assert.Equal(t, 90.0, hit.Health())
	assert.Equal(t, 100.0, far.Health())
	assert.Equal(t, 100.0, w.player.Health(), "allies are never hit")
	require.Len(t, w.zones.calls, 1)
	assert.Equal(t, geom.V(5, 0), w.zones.calls[0].center)
}

func TestConditional_ForwardsOnlyWhenConditionHolds(t *testing.T) {
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, nil, orc)
	w.catalog.Register("crit_burn", &effect.ApplyStatusToHitTarget{Chance: 100, Status: dot("burning", 3, 2)})
	modules := []effect.Module{&effect.Conditional{When: effect.OnCrit, Child: "crit_burn"}}

	ec := w.hitContext(orc)
	require.NoError(t, w.d.Fire(context.Background(), effect.HitTriggers(ec), modules, ec))
	assert.Equal(t, 0, w.statuses.Count())

	ec.IsCritical = true
	require.NoError(t, w.d.Fire(context.Background(), effect.HitTriggers(ec), modules, ec))
	assert.Equal(t, 1, w.statuses.Count())

	require.NoError(t, w.d.Execute(context.Background(), modules[0], w.hitContext(orc)),
		"direct execution still checks the condition")
	assert.Equal(t, 1, w.statuses.Count())
}

func TestFire_MatchesTriggers(t *testing.T) {
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, nil, orc)
	w.player.TakeDamage(50)
	modules := []effect.Module{
		&effect.Lifesteal{Common: effect.Common{On: effect.OnKill}, Percent: 100},
		&effect.ApplyStatusToCaster{Chance: 100, Status: dot("self_burn", 1, 1)},
	}

	ec := w.hitContext(orc)
	ec.DamageDealt = 10
	require.NoError(t, w.d.Fire(context.Background(), effect.HitTriggers(ec), modules, ec))
	assert.Equal(t, 50.0, w.player.Health(), "on_kill module skipped without a kill")
	assert.Equal(t, 0, w.statuses.Count(), "on_fire module skipped on a hit")

	ec.IsKill = true
	require.NoError(t, w.d.Fire(context.Background(), effect.HitTriggers(ec), modules, ec))
	assert.Equal(t, 60.0, w.player.Health())
}

func TestRandomChoice_ExecutesPickedModule(t *testing.T) {
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, nil, orc)
	w.catalog.Register("burn", &effect.ApplyStatusToHitTarget{Chance: 100, Status: dot("burning", 3, 2)})
	w.catalog.Register("poison", &effect.ApplyStatusToHitTarget{Chance: 100, Status: dot("poison", 2, 2)})
	w.src.values = []int{1}

	m := &effect.RandomChoice{Pool: []string{"burn", "poison"}}
	require.NoError(t, w.d.Execute(context.Background(), m, w.hitContext(orc)))
	active := w.statuses.GetActiveEffectsOn(orc)
	require.Len(t, active, 1)
	assert.Equal(t, "poison", active[0].EffectID())
}

func TestExecuteKey_UnknownKeyLoggedAndSkipped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, zap.New(core), orc)

	require.NoError(t, w.d.ExecuteKey(context.Background(), "nope", w.hitContext(orc)))
	assert.Equal(t, 1, logs.FilterMessage("effect skipped: module not loaded").Len())
}

func TestExecute_SelfReferencingChainTerminates(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, zap.New(core), orc)
	w.catalog.Register("loop", &effect.Conditional{When: effect.OnFire, Child: "loop"})

	require.NoError(t, w.d.ExecuteKey(context.Background(), "loop", w.hitContext(orc)))
	assert.Equal(t, 1, logs.FilterMessage("effect skipped: chain too deep").Len())
}

func TestExecute_CancelledContext(t *testing.T) {
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, nil, orc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.d.Execute(ctx, &effect.Lifesteal{Percent: 10}, w.hitContext(orc))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitOnHit_TenChildrenAcrossFortyFiveDegrees(t *testing.T) {
	hit := combatant("a", entity.FactionHostile, geom.V(5, 0), 100)
	other := combatant("b", entity.FactionHostile, geom.V(5, 5), 100)
	w := newWorld(t, nil, hit, other)
	ec := w.hitContext(hit)
	ec.HitModules = []effect.Module{
		&effect.SplitOnHit{Count: 2, Speed: 1, PoolKey: "p"},
		&effect.Lifesteal{Percent: 5},
	}

	m := &effect.SplitOnHit{Count: 10, Spread: 45, Speed: 12, Pierce: 1, Ricochet: 2, DamagePercent: 50, PoolKey: "shard"}
	require.NoError(t, w.d.Execute(context.Background(), m, ec))

	require.Len(t, w.launcher.specs, 10)
	for i, spec := range w.launcher.specs {
		assert.InDelta(t, 67.5+float64(i)*5, spec.Direction.AngleDeg(), 1e-6, "child %d", i)
		assert.True(t, spec.Exclude.Has("a"), "child %d may not re-hit the original target", i)
		assert.Equal(t, geom.V(5, 0), spec.Origin)
		assert.Equal(t, 1, spec.Pierce)
		assert.Equal(t, 2, spec.Ricochet)
		assert.Equal(t, 10.0, spec.Damage)
		require.Len(t, spec.HitModules, 1, "children do not split again")
	}
	w.launcher.specs[0].Exclude.Add("zzz")
	assert.False(t, w.launcher.specs[1].Exclude.Has("zzz"), "exclusion sets are independent")
}

func TestSplitOnHit_NoOtherTargetFallsBackToFiringDirection(t *testing.T) {
	hit := combatant("a", entity.FactionHostile, geom.V(5, 0), 100)
	w := newWorld(t, nil, hit)
	ec := w.hitContext(hit)
	ec.FiringDirections = []geom.Vec2{geom.V(0, -1)}

	m := &effect.SplitOnHit{Count: 1, Speed: 12, DamagePercent: 50, PoolKey: "shard"}
	require.NoError(t, w.d.Execute(context.Background(), m, ec))
	require.Len(t, w.launcher.specs, 1)
	assert.True(t, w.launcher.specs[0].Direction.Eq(geom.V(0, -1), 1e-9))
}

func TestProjectilePayload_FiresFromHitPoint(t *testing.T) {
	hit := combatant("a", entity.FactionHostile, geom.V(5, 0), 100)
	next := combatant("b", entity.FactionHostile, geom.V(5, -4), 100)
	w := newWorld(t, nil, hit, next)

	m := &effect.Projectile{Count: 1, Speed: 10, PoolKey: "bolt", DamagePercent: 25}
	require.NoError(t, w.d.Execute(context.Background(), m, w.hitContext(hit)))
	require.Len(t, w.launcher.specs, 1)
	spec := w.launcher.specs[0]
	assert.Equal(t, geom.V(5, 0), spec.Origin)
	assert.True(t, spec.Direction.Eq(geom.V(0, -1), 1e-9))
	assert.Equal(t, 5.0, spec.Damage)
	assert.True(t, spec.Exclude.Has("a"))
}

func TestLaunchFailureLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	hit := combatant("a", entity.FactionHostile, geom.V(5, 0), 100)
	w := newWorld(t, zap.New(core), hit)
	w.launcher.err = errors.New("pool exhausted")

	m := &effect.SplitOnHit{Count: 3, Spread: 30, Speed: 12, DamagePercent: 50, PoolKey: "shard"}
	require.NoError(t, w.d.Execute(context.Background(), m, w.hitContext(hit)))
	assert.Equal(t, 1, logs.FilterMessage("projectiles not launched").Len())
}

func TestLifesteal_HealsCasterByDamageDealt(t *testing.T) {
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, nil, orc)
	w.player.TakeDamage(40)
	ec := w.hitContext(orc)
	ec.DamageDealt = 30

	require.NoError(t, w.d.Execute(context.Background(), &effect.Lifesteal{Percent: 20}, ec))
	assert.Equal(t, 66.0, w.player.Health())
}

func TestDetonate_CashesInRemainingDotPotential(t *testing.T) {
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, nil, orc)
	_, _ = w.statuses.ApplyStatusEffect(orc, w.player, dot("bleed", 2, 3))
	_, _ = w.statuses.ApplyStatusEffect(orc, w.player, dot("burning", 5, 1))

	m := &effect.Detonate{Percent: 200, Consume: true}
	require.NoError(t, w.d.Execute(context.Background(), m, w.hitContext(orc)))

	assert.Equal(t, 78.0, orc.Health(), "(2*3 + 5*1) * 2 = 22")
	assert.Empty(t, w.statuses.GetActiveEffectsOn(orc))
}

func TestDetonate_FilterAndKeep(t *testing.T) {
	orc := combatant("orc", entity.FactionHostile, geom.V(3, 0), 100)
	w := newWorld(t, nil, orc)
	_, _ = w.statuses.ApplyStatusEffect(orc, w.player, dot("bleed", 2, 3))
	_, _ = w.statuses.ApplyStatusEffect(orc, w.player, dot("burning", 5, 1))

	m := &effect.Detonate{Percent: 100, StatusIDs: []string{"burning"}}
	require.NoError(t, w.d.Execute(context.Background(), m, w.hitContext(orc)))

	assert.Equal(t, 95.0, orc.Health())
	assert.Len(t, w.statuses.GetActiveEffectsOn(orc), 2, "instances kept without consume")
}

func TestHitTriggers(t *testing.T) {
	assert.Equal(t, []effect.Trigger{effect.OnHit}, effect.HitTriggers(effect.Context{}))
	all := effect.HitTriggers(effect.Context{IsCritical: true, IsKill: true, LastRicochet: true})
	assert.Equal(t, []effect.Trigger{effect.OnHit, effect.OnCrit, effect.OnKill, effect.OnLastRicochetHit}, all)
}

func TestModuleDefaultTriggers(t *testing.T) {
	assert.Equal(t, effect.OnFire, (&effect.ApplyStatusToCaster{}).Trigger())
	assert.Equal(t, effect.OnHit, (&effect.ApplyStatusToHitTarget{}).Trigger())
	assert.Equal(t, effect.OnFire, (&effect.Projectile{}).Trigger())
	assert.Equal(t, effect.OnCrit, (&effect.Detonate{Common: effect.Common{On: effect.OnCrit}}).Trigger())
}

func TestPropertySplitDirectionsWithinSpread(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		hit := combatant("a", entity.FactionHostile, geom.V(0, 0), 100)
		angle := rapid.Float64Range(-180, 180).Draw(rt, "angle")
		other := combatant("b", entity.FactionHostile, geom.FromAngleDeg(angle).Scale(5), 100)
		w := newWorld(t, nil, hit, other)
		count := rapid.IntRange(1, 16).Draw(rt, "count")
		spread := rapid.Float64Range(0, 180).Draw(rt, "spread")

		m := &effect.SplitOnHit{Count: count, Spread: spread, Speed: 5, DamagePercent: 50, PoolKey: "shard"}
		if err := w.d.Execute(context.Background(), m, w.hitContext(hit)); err != nil {
			rt.Fatal(err)
		}
		if len(w.launcher.specs) != count {
			rt.Fatalf("got %d children, want %d", len(w.launcher.specs), count)
		}
		center := geom.FromAngleDeg(angle)
		for _, spec := range w.launcher.specs {
			if off := math.Abs(geom.AngleBetweenDeg(center, spec.Direction)); off > spread/2+1e-6 {
				rt.Fatalf("child %v deg off center, spread %v", off, spread)
			}
			if !spec.Exclude.Has("a") {
				rt.Fatal("child may re-hit original target")
			}
		}
	})
}
