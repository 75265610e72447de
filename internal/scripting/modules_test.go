package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/cardcombat/internal/game/dice"
	"github.com/cory-johannsen/cardcombat/internal/scripting"
)

// zeroSource always rolls 0, so any positive chance succeeds.
type zeroSource struct{}

func (zeroSource) Intn(int) int { return 0 }

type fakeWorld struct {
	health map[string]float64
}

func newScriptedManager(t *testing.T, src string) (*scripting.Manager, *fakeWorld, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	mgr := scripting.NewManager(dice.NewLoggedRoller(zeroSource{}, logger), logger, 0)
	w := &fakeWorld{health: map[string]float64{"orc": 40}}
	mgr.Damage = func(id string, amount float64) float64 {
		cur, ok := w.health[id]
		if !ok {
			return 0
		}
		dealt := min(cur, amount)
		w.health[id] = cur - dealt
		return dealt
	}
	mgr.Heal = func(id string, amount float64) float64 {
		if _, ok := w.health[id]; !ok {
			return 0
		}
		w.health[id] += amount
		return amount
	}
	mgr.Health = func(id string) (float64, float64, bool) {
		cur, ok := w.health[id]
		return cur, 40, ok
	}
	require.NoError(t, mgr.Load(writeTempLua(t, "test.lua", src)))
	return mgr, w, logs
}

func TestCombatDamage(t *testing.T) {
	mgr, w, _ := newScriptedManager(t, `
		function hurt(id) return combat.damage(id, 15) end
	`)
	ret, err := mgr.CallHook("hurt", lua.LString("orc"))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(15), ret)
	assert.Equal(t, 25.0, w.health["orc"])

	ret, _ = mgr.CallHook("hurt", lua.LString("ghost"))
	assert.Equal(t, lua.LNumber(0), ret)
}

func TestCombatHealAndHealth(t *testing.T) {
	mgr, _, _ := newScriptedManager(t, `
		function mend(id)
			combat.damage(id, 30)
			combat.heal(id, 5)
			local cur, max = combat.health(id)
			return cur / max
		end
		function unknown() return combat.health("ghost") end
	`)
	ret, err := mgr.CallHook("mend", lua.LString("orc"))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(15.0/40.0), ret)

	ret, _ = mgr.CallHook("unknown")
	assert.Equal(t, lua.LNil, ret)
}

func TestCombatChance(t *testing.T) {
	mgr, _, _ := newScriptedManager(t, `
		function roll(p) return combat.chance(p) end
	`)
	ret, _ := mgr.CallHook("roll", lua.LNumber(1))
	assert.Equal(t, lua.LTrue, ret)
	ret, _ = mgr.CallHook("roll", lua.LNumber(0))
	assert.Equal(t, lua.LFalse, ret)
}

func TestCombatLog(t *testing.T) {
	mgr, _, logs := newScriptedManager(t, `
		function speak() combat.log("hello from lua") end
	`)
	_, err := mgr.CallHook("speak")
	require.NoError(t, err)
	entries := logs.FilterMessage("lua").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello from lua", entries[0].ContextMap()["msg"])
}

func TestCombatCallbacksUnset_NoOp(t *testing.T) {
	logger := zap.NewNop()
	mgr := scripting.NewManager(dice.NewLoggedRoller(zeroSource{}, logger), logger, 0)
	require.NoError(t, mgr.Load(writeTempLua(t, "t.lua", `
		function hurt() return combat.damage("orc", 5) end
	`)))
	ret, err := mgr.CallHook("hurt")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(0), ret)
}

func TestCombatDamage_BadArgumentIsRuntimeError(t *testing.T) {
	mgr, _, logs := newScriptedManager(t, `
		function bad() return combat.damage() end
	`)
	ret, err := mgr.CallHook("bad")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}
