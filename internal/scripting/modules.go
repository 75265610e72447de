package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the combat Lua table into L:
//
//	combat.damage(id, amount) -> dealt
//	combat.heal(id, amount)   -> healed
//	combat.health(id)         -> current, max (nil when unknown)
//	combat.chance(percent)    -> bool
//	combat.log(msg)
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: combat global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	combat := L.NewTable()
	L.SetField(combat, "damage", L.NewFunction(m.luaDamage))
	L.SetField(combat, "heal", L.NewFunction(m.luaHeal))
	L.SetField(combat, "health", L.NewFunction(m.luaHealth))
	L.SetField(combat, "chance", L.NewFunction(m.luaChance))
	L.SetField(combat, "log", L.NewFunction(m.luaLog))
	L.SetGlobal("combat", combat)
}

func (m *Manager) luaDamage(L *lua.LState) int {
	id := L.CheckString(1)
	amount := float64(L.CheckNumber(2))
	if m.Damage == nil || amount < 0 {
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(lua.LNumber(m.Damage(id, amount)))
	return 1
}

func (m *Manager) luaHeal(L *lua.LState) int {
	id := L.CheckString(1)
	amount := float64(L.CheckNumber(2))
	if m.Heal == nil || amount < 0 {
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(lua.LNumber(m.Heal(id, amount)))
	return 1
}

func (m *Manager) luaHealth(L *lua.LState) int {
	id := L.CheckString(1)
	if m.Health == nil {
		L.Push(lua.LNil)
		return 1
	}
	cur, maxHP, ok := m.Health(id)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(cur))
	L.Push(lua.LNumber(maxHP))
	return 2
}

func (m *Manager) luaChance(L *lua.LState) int {
	percent := float64(L.CheckNumber(1))
	L.Push(lua.LBool(m.roller.Chance("lua.chance", percent)))
	return 1
}

func (m *Manager) luaLog(L *lua.LState) int {
	m.logger.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}
