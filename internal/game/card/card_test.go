package card_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/cardcombat/internal/game/card"
	"github.com/cory-johannsen/cardcombat/internal/game/dice"
	"github.com/cory-johannsen/cardcombat/internal/game/effect"
	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/geom"
	"github.com/cory-johannsen/cardcombat/internal/game/stat"
	"github.com/cory-johannsen/cardcombat/internal/game/status"
	"github.com/cory-johannsen/cardcombat/internal/game/target"
)

type zeroSource struct{}

func (zeroSource) Intn(int) int { return 0 }

type fakeLauncher struct {
	specs []effect.LaunchSpec
	calls int
}

func (f *fakeLauncher) Launch(_ context.Context, specs []effect.LaunchSpec) error {
	f.calls++
	f.specs = append(f.specs, specs...)
	return nil
}

type nopZones struct{}

func (nopZones) SpawnZone(context.Context, effect.ZoneSpec, geom.Vec2, entity.Entity) error {
	return nil
}

type bench struct {
	player   *entity.Combatant
	hostiles []*entity.Combatant
	catalog  *effect.Catalog
	statuses *status.Manager
	launcher *fakeLauncher
	pipeline *card.Pipeline
}

func combatant(id entity.ID, faction entity.Faction, pos geom.Vec2, attack float64) *entity.Combatant {
	var base stat.Values
	base[stat.Health] = 100
	base[stat.Attack] = attack
	base[stat.AttackSpeed] = 1
	return entity.NewCombatant(entity.Spec{ID: id, Faction: faction, Position: pos, Facing: geom.V(0, -1), Base: base}, zap.NewNop())
}

func newBench(t *testing.T, logger *zap.Logger, hostiles ...*entity.Combatant) *bench {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &bench{
		player:   combatant("player", entity.FactionPlayer, geom.V(0, 0), 0),
		hostiles: hostiles,
		catalog:  effect.NewCatalog(nil),
		statuses: status.NewManager(logger),
		launcher: &fakeLauncher{},
	}
	roller := dice.NewLoggedRoller(zeroSource{}, logger)
	finder := target.NewFinder(func() []entity.Entity {
		out := []entity.Entity{b.player}
		for _, h := range b.hostiles {
			out = append(out, h)
		}
		return out
	}, roller, logger)
	d := effect.NewDispatcher(effect.Deps{
		Statuses: b.statuses,
		Targets:  finder,
		Launcher: b.launcher,
		Zones:    nopZones{},
		Loader:   b.catalog,
		Roller:   roller,
		Logger:   logger,
	})
	b.pipeline = card.NewPipeline(b.catalog, d, b.launcher, finder, logger)
	return b
}

func instance(modules ...string) *card.Instance {
	return &card.Instance{Def: &card.Definition{
		ID:         "test_card",
		BaseDamage: 10,
		Cooldown:   1,
		Targeting:  target.RuleNearest,
		Modules:    modules,
	}}
}

func TestInstance_DamageScalesWithLevelAndBonus(t *testing.T) {
	c := instance("bolt")
	c.EnhancementLevel = 2
	assert.InDelta(t, 18.0, c.Damage(50), 1e-9)
	assert.InDelta(t, 12.0, c.Damage(0), 1e-9)
	assert.Equal(t, 0.0, c.Damage(-500))
}

func TestDefinition_Validate(t *testing.T) {
	def := instance("bolt").Def
	require.NoError(t, def.Validate())

	bad := &card.Definition{BaseDamage: -1, Targeting: "sideways"}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id must not be empty")
	assert.Contains(t, err.Error(), "base_damage")
	assert.Contains(t, err.Error(), "cooldown")
	assert.Contains(t, err.Error(), "sideways")
	assert.Contains(t, err.Error(), "modules")
}

func TestPipeline_FansProjectilesAtTarget(t *testing.T) {
	b := newBench(t, nil, combatant("orc", entity.FactionHostile, geom.V(0, 5), 0))
	b.catalog.Register("triple", &effect.Projectile{Count: 3, Spread: 30, Speed: 12, PoolKey: "bolt", Pierce: 1})

	res, err := b.pipeline.Execute(context.Background(), instance("triple"), b.player, geom.V(0, 0))
	require.NoError(t, err)
	assert.Equal(t, entity.ID("orc"), res.Target.ID())
	assert.True(t, res.Direction.Eq(geom.V(0, 1), 1e-9))
	assert.Equal(t, 3, res.Projectiles)
	require.Len(t, b.launcher.specs, 3)
	assert.Equal(t, 1, b.launcher.calls)
	for i, want := range []float64{75, 90, 105} {
		spec := b.launcher.specs[i]
		assert.InDelta(t, want, spec.Direction.AngleDeg(), 1e-6)
		assert.Equal(t, 12.0, spec.Speed)
		assert.Equal(t, 1, spec.Pierce)
		assert.Equal(t, "bolt", spec.PoolKey)
		assert.Equal(t, 10.0, spec.Damage)
		assert.Same(t, b.player, spec.Caster)
	}
}

func TestPipeline_NoTargetUsesCasterFacing(t *testing.T) {
	b := newBench(t, nil)
	b.catalog.Register("bolt", &effect.Projectile{Count: 1, Speed: 10, PoolKey: "bolt"})

	res, err := b.pipeline.Execute(context.Background(), instance("bolt"), b.player, geom.V(0, 0))
	require.NoError(t, err)
	assert.Nil(t, res.Target)
	require.Len(t, b.launcher.specs, 1)
	assert.True(t, b.launcher.specs[0].Direction.Eq(geom.V(0, -1), 1e-9))
}

func TestPipeline_RoutesModulesByTrigger(t *testing.T) {
	b := newBench(t, nil, combatant("orc", entity.FactionHostile, geom.V(3, 0), 0))
	haste := &status.Descriptor{ID: "haste", Duration: 3, StatBonuses: map[string]float64{"attack_speed": 50}}
	burn := &status.Descriptor{ID: "burning", Duration: 3, DotAmount: 2}
	b.catalog.Register("bolt", &effect.Projectile{Count: 1, Speed: 10, PoolKey: "bolt"})
	b.catalog.Register("self_haste", &effect.ApplyStatusToCaster{Chance: 100, Status: haste})
	b.catalog.Register("ignite", &effect.ApplyStatusToHitTarget{Chance: 100, Status: burn})

	_, err := b.pipeline.Execute(context.Background(), instance("bolt", "self_haste", "ignite"), b.player, geom.V(0, 0))
	require.NoError(t, err)

	require.Len(t, b.statuses.GetActiveEffectsOn(b.player), 1)
	assert.InDelta(t, 1.5, b.player.Stat(stat.AttackSpeed), 1e-9)
	assert.Empty(t, b.statuses.GetActiveEffectsOn(b.hostiles[0]))
	require.Len(t, b.launcher.specs, 1)
	require.Len(t, b.launcher.specs[0].HitModules, 1)
	assert.Equal(t, effect.KindApplyStatusToHitTarget, b.launcher.specs[0].HitModules[0].Kind())
}

func TestPipeline_ProjectileDamagePercent(t *testing.T) {
	b := newBench(t, nil)
	b.catalog.Register("weak", &effect.Projectile{Count: 1, Speed: 10, PoolKey: "bolt", DamagePercent: 50})
	_, err := b.pipeline.Execute(context.Background(), instance("weak"), b.player, geom.V(0, 0))
	require.NoError(t, err)
	require.Len(t, b.launcher.specs, 1)
	assert.Equal(t, 5.0, b.launcher.specs[0].Damage)
}

func TestPipeline_UnknownModuleLoggedAndSkipped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := newBench(t, zap.New(core))
	b.catalog.Register("bolt", &effect.Projectile{Count: 1, Speed: 10, PoolKey: "bolt"})

	res, err := b.pipeline.Execute(context.Background(), instance("missing", "bolt"), b.player, geom.V(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Projectiles)
	assert.Equal(t, 1, logs.FilterMessage("card module skipped").Len())
}

func TestPipeline_DeadCasterDoesNothing(t *testing.T) {
	b := newBench(t, nil)
	b.catalog.Register("bolt", &effect.Projectile{Count: 1, Speed: 10, PoolKey: "bolt"})
	b.player.Destroy()

	res, err := b.pipeline.Execute(context.Background(), instance("bolt"), b.player, geom.V(0, 0))
	require.NoError(t, err)
	assert.Zero(t, res.Projectiles)
	assert.Empty(t, b.launcher.specs)
}

func TestPipeline_CancelledContext(t *testing.T) {
	b := newBench(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.pipeline.Execute(ctx, instance("bolt"), b.player, geom.V(0, 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCaster_FiresOnCooldownScaledByAttackSpeed(t *testing.T) {
	b := newBench(t, nil)
	b.catalog.Register("bolt", &effect.Projectile{Count: 1, Speed: 10, PoolKey: "bolt"})
	b.player.AddModifier(stat.AttackSpeed, stat.NewModifier(100, "test"))
	c := card.NewCaster(b.player, b.pipeline, zap.NewNop(), instance("bolt"))

	for range 8 {
		require.NoError(t, c.Tick(context.Background(), 0.25))
	}
	// period 0.5s over 2s, counting the shot at t=0
	assert.Equal(t, 5, c.Fired())
	assert.Len(t, b.launcher.specs, 5)
}

func TestCaster_FiresAtMostOncePerTick(t *testing.T) {
	b := newBench(t, nil)
	b.catalog.Register("bolt", &effect.Projectile{Count: 1, Speed: 10, PoolKey: "bolt"})
	c := card.NewCaster(b.player, b.pipeline, zap.NewNop(), instance("bolt"))

	require.NoError(t, c.Tick(context.Background(), 10))
	assert.Equal(t, 1, c.Fired())
}

func TestCaster_DeadOwnerStopsFiring(t *testing.T) {
	b := newBench(t, nil)
	b.catalog.Register("bolt", &effect.Projectile{Count: 1, Speed: 10, PoolKey: "bolt"})
	c := card.NewCaster(b.player, b.pipeline, zap.NewNop(), instance("bolt"))
	b.player.Destroy()

	require.NoError(t, c.Tick(context.Background(), 1))
	assert.Zero(t, c.Fired())
}

func TestCaster_EquipNilSkipped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := newBench(t, nil)
	card.NewCaster(b.player, b.pipeline, zap.New(core), nil)
	assert.Equal(t, 1, logs.FilterMessage("equip skipped: missing card").Len())
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arc.yaml"), []byte(`
id: arc
name: Arc Bolt
base_damage: 12
cooldown: 0.8
targeting: nearest
modules: [arc_bolt, arc_ignite]
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	reg, err := card.LoadDirectory(dir)
	require.NoError(t, err)
	def, ok := reg.Get("arc")
	require.True(t, ok)
	assert.Equal(t, "Arc Bolt", def.Name)
	assert.Equal(t, []string{"arc_bolt", "arc_ignite"}, def.Modules)
	assert.Len(t, reg.All(), 1)

	catalog := effect.NewCatalog(map[string]effect.Module{"arc_bolt": &effect.Projectile{Count: 1}})
	err = reg.CheckModules(context.Background(), catalog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arc -> arc_ignite")
}

func TestLoadDirectory_RejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`
id: bad
base_damage: 1
cooldown: 1
targeting: nearest
modules: [x]
mana: 3
`), 0644))
	_, err := card.LoadDirectory(dir)
	assert.Error(t, err)
}

func TestLoadDirectory_ContentTree(t *testing.T) {
	reg, err := card.LoadDirectory("../../../content/cards")
	require.NoError(t, err)
	assert.NotEmpty(t, reg.All())
}

func TestPropertyFanCountMatchesModule(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 12).Draw(rt, "count")
		spread := rapid.Float64Range(0, 180).Draw(rt, "spread")
		b := newBench(t, nil, combatant("orc", entity.FactionHostile, geom.V(4, 4), 0))
		b.catalog.Register("fan", &effect.Projectile{Count: count, Spread: spread, Speed: 10, PoolKey: "bolt"})

		res, err := b.pipeline.Execute(context.Background(), instance("fan"), b.player, geom.V(0, 0))
		if err != nil {
			rt.Fatalf("execute: %v", err)
		}
		if res.Projectiles != count || len(b.launcher.specs) != count {
			rt.Fatalf("want %d projectiles, got %d", count, len(b.launcher.specs))
		}
		for _, spec := range b.launcher.specs {
			off := geom.AngleBetweenDeg(res.Direction, spec.Direction)
			if off < -spread/2-1e-6 || off > spread/2+1e-6 {
				rt.Fatalf("direction %v outside spread %v", off, spread)
			}
		}
	})
}
