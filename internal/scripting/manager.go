package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/game/dice"
)

// Manager owns one sandboxed LState holding every loaded hook script.
//
// Manager is safe for concurrent use; calls into the VM are serialized.
type Manager struct {
	mu        sync.Mutex
	L         *lua.LState
	instLimit int
	roller    *dice.Roller
	logger    *zap.Logger

	// Injected after construction. nil = no-op in combat.* functions.
	Damage func(entityID string, amount float64) float64
	Heal   func(entityID string, amount float64) float64
	Health func(entityID string) (current, maximum float64, ok bool)
}

// NewManager creates a Manager with no scripts loaded.
//
// Precondition: roller and logger must be non-nil; instLimit >= 0 (0 uses
// DefaultInstructionLimit).
// Postcondition: Returns a non-nil Manager.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	if roller == nil {
		panic("scripting.NewManager: roller must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{roller: roller, logger: logger, instLimit: instLimit}
}

// Load creates a fresh VM, registers the combat module, then executes every
// *.lua file in scriptDir in lexicographic order. A previously loaded VM is
// replaced only when loading succeeds.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Returns error on directory or Lua load failure.
func (m *Manager) Load(scriptDir string) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}
	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	L := NewSandboxedState()
	m.RegisterModules(L)
	for _, path := range luaFiles {
		if err := Limited(L, m.instLimit, func() error { return L.DoFile(path) }); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L != nil {
		m.L.Close()
	}
	m.L = L
	m.logger.Info("scripts loaded", zap.String("dir", scriptDir), zap.Int("files", len(luaFiles)))
	return nil
}

// CallHook calls the named Lua global function. Returns (LNil, nil) if no
// scripts are loaded or the hook is not defined. Lua runtime errors,
// including an exhausted instruction budget, are logged at Warn level and
// never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callLocked(hook, func(*lua.LState) []lua.LValue { return args })
}

// CallHookTable calls hook with a single table argument built from fields.
// Supported value types are string, float64, int and bool; others are skipped.
func (m *Manager) CallHookTable(hook string, fields map[string]any) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callLocked(hook, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{newTable(L, fields)}
	})
}

// callLocked runs hook. Precondition: m.mu is held.
func (m *Manager) callLocked(hook string, args func(*lua.LState) []lua.LValue) (lua.LValue, error) {
	if m.L == nil {
		m.logger.Debug("scripting: no scripts loaded", zap.String("hook", hook))
		return lua.LNil, nil
	}
	L := m.L
	fn := L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	err := Limited(L, m.instLimit, func() error {
		return L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args(L)...)
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

func newTable(L *lua.LState, fields map[string]any) *lua.LTable {
	t := L.NewTable()
	for k, v := range fields {
		switch v := v.(type) {
		case string:
			t.RawSetString(k, lua.LString(v))
		case float64:
			t.RawSetString(k, lua.LNumber(v))
		case int:
			t.RawSetString(k, lua.LNumber(v))
		case bool:
			t.RawSetString(k, lua.LBool(v))
		}
	}
	return t
}

// Close releases the VM. Subsequent CallHook calls are no-ops.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L != nil {
		m.L.Close()
		m.L = nil
	}
}
