package arena

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/game/status"
	"github.com/cory-johannsen/cardcombat/internal/scripting"
)

// scriptHooks runs status lifecycle hooks as Lua functions. Each hook
// receives a table with target, caster, status and remaining fields.
type scriptHooks struct {
	scripts *scripting.Manager
	logger  *zap.Logger
}

func (h scriptHooks) OnApply(inst *status.Instance) {
	h.call(inst.Descriptor().OnApply, inst)
}

func (h scriptHooks) OnExpire(inst *status.Instance) {
	h.call(inst.Descriptor().OnExpire, inst)
}

func (h scriptHooks) call(hook string, inst *status.Instance) {
	if hook == "" {
		return
	}
	fields := map[string]any{
		"target":    string(inst.Target().ID()),
		"status":    inst.EffectID(),
		"remaining": inst.Remaining(),
	}
	if inst.Caster() != nil {
		fields["caster"] = string(inst.Caster().ID())
	}
	if _, err := h.scripts.CallHookTable(hook, fields); err != nil {
		h.logger.Warn("status hook failed", zap.String("hook", hook), zap.String("status", inst.EffectID()), zap.Error(err))
	}
}
