package status

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/game/entity"
)

// Outcome reports what ApplyStatusEffect did.
type Outcome int

const (
	// Applied means a new instance was created and applied.
	Applied Outcome = iota
	// Refreshed means an existing instance's duration was reset.
	Refreshed
	// Ignored means a NoStack effect was already present.
	Ignored
	// Skipped means the request was invalid or the target is not alive.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Refreshed:
		return "refreshed"
	case Ignored:
		return "ignored"
	default:
		return "skipped"
	}
}

// Hooks receives lifecycle callbacks for instances whose descriptor names a hook.
type Hooks interface {
	OnApply(inst *Instance)
	OnExpire(inst *Instance)
}

// Option configures a Manager.
type Option func(*Manager)

// WithHooks installs lifecycle hooks.
func WithHooks(h Hooks) Option { return func(m *Manager) { m.hooks = h } }

// WithCues installs the visual cue presenter.
func WithCues(c Cues) Option { return func(m *Manager) { m.cues = c } }

// TickSummary totals one Manager.Tick.
type TickSummary struct {
	Damage  float64
	Healed  float64
	Expired int
	Dropped int
}

// Manager tracks every live status instance, grouped by target.
// Targets are visited in the order they first received an effect, and a
// target's instances in application order.
//
// It is not safe for concurrent use.
type Manager struct {
	effects map[entity.ID][]*Instance
	order   []entity.ID
	hooks   Hooks
	cues    Cues
	logger  *zap.Logger
	ticking bool
	dirty   map[entity.ID]struct{}
}

// NewManager creates an empty Manager.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		effects: make(map[entity.ID][]*Instance),
		dirty:   make(map[entity.ID]struct{}),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ApplyStatusEffect applies desc to target on behalf of caster, honoring the
// descriptor's stacking policy.
//
// Precondition: desc should be validated; caster may be nil.
// Postcondition: On Applied the returned instance is live and its bonuses
// are on the target. On Refreshed the existing instance is returned.
func (m *Manager) ApplyStatusEffect(target, caster entity.Entity, desc *Descriptor) (*Instance, Outcome) {
	if desc == nil || target == nil {
		m.logger.Warn("status apply skipped: missing descriptor or target")
		return nil, Skipped
	}
	if !target.Alive() {
		m.logger.Debug("status apply skipped: target not alive",
			zap.String("status", desc.ID),
			zap.String("target", string(target.ID())),
		)
		return nil, Skipped
	}

	existing := m.find(target.ID(), desc.ID)
	switch desc.Policy() {
	case NoStack:
		if existing != nil {
			return existing, Ignored
		}
	case RefreshDuration:
		if existing != nil {
			existing.Refresh(desc.Duration)
			m.logger.Debug("status refreshed",
				zap.String("status", desc.ID),
				zap.String("target", string(target.ID())),
			)
			return existing, Refreshed
		}
	case StackEffect:
	default:
		m.logger.Warn("status apply skipped: unknown stacking policy",
			zap.String("status", desc.ID),
			zap.String("stacking", string(desc.Stacking)),
		)
		return nil, Skipped
	}

	inst := NewInstance(desc, target, caster)
	inst.ApplyEffect(m.cues)
	id := target.ID()
	if _, ok := m.effects[id]; !ok {
		m.order = append(m.order, id)
	}
	m.effects[id] = append(m.effects[id], inst)
	m.logger.Debug("status applied",
		zap.String("status", desc.ID),
		zap.String("instance", inst.ID()),
		zap.String("target", string(id)),
	)
	if m.hooks != nil && desc.OnApply != "" {
		m.hooks.OnApply(inst)
	}
	return inst, Applied
}

// Tick advances every instance by dt. Instances are ticked in a first pass;
// expired ones and those whose target died are collected and removed in a
// second pass, so the live collection never changes while it is iterated.
func (m *Manager) Tick(dt float64) TickSummary {
	var sum TickSummary
	var expired, dropped []*Instance

	m.ticking = true
	for _, id := range m.order {
		for _, inst := range m.effects[id] {
			if inst.Removed() {
				continue
			}
			if !entity.IsLive(inst.Target()) {
				dropped = append(dropped, inst)
				continue
			}
			res := inst.Tick(dt)
			sum.Damage += res.Damage
			sum.Healed += res.Healed
			if res.Killed {
				m.logger.Info("status killed target",
					zap.String("status", inst.EffectID()),
					zap.String("target", string(id)),
				)
			}
			if inst.Expired() {
				expired = append(expired, inst)
			}
		}
	}
	m.ticking = false

	for _, inst := range dropped {
		if inst.RemoveEffect() {
			sum.Dropped++
		}
		m.dirty[inst.Target().ID()] = struct{}{}
	}
	for _, inst := range expired {
		if !inst.RemoveEffect() {
			continue
		}
		sum.Expired++
		m.dirty[inst.Target().ID()] = struct{}{}
		if m.hooks != nil && inst.desc.OnExpire != "" {
			m.hooks.OnExpire(inst)
		}
	}
	m.compact()
	return sum
}

// GetActiveEffectsOn returns a snapshot of target's live instances in
// application order.
func (m *Manager) GetActiveEffectsOn(target entity.Entity) []*Instance {
	if target == nil {
		return nil
	}
	var out []*Instance
	for _, inst := range m.effects[target.ID()] {
		if !inst.Removed() {
			out = append(out, inst)
		}
	}
	return out
}

// ConsumeEffects removes each listed instance immediately, without running
// expiry hooks. Instances already removed are skipped. Storage compaction is
// deferred when called from inside Tick.
//
// Postcondition: Returns the number of instances actually removed.
func (m *Manager) ConsumeEffects(list []*Instance) int {
	n := 0
	for _, inst := range list {
		if inst == nil || !inst.RemoveEffect() {
			continue
		}
		n++
		m.dirty[inst.Target().ID()] = struct{}{}
	}
	if !m.ticking {
		m.compact()
	}
	return n
}

// ClearTarget removes every instance on target.
func (m *Manager) ClearTarget(target entity.Entity) int {
	if target == nil {
		return 0
	}
	return m.ConsumeEffects(m.effects[target.ID()])
}

// Count returns the number of live instances across all targets.
func (m *Manager) Count() int {
	n := 0
	for _, list := range m.effects {
		for _, inst := range list {
			if !inst.Removed() {
				n++
			}
		}
	}
	return n
}

func (m *Manager) find(id entity.ID, effectID string) *Instance {
	for _, inst := range m.effects[id] {
		if !inst.Removed() && inst.EffectID() == effectID {
			return inst
		}
	}
	return nil
}

// compact drops removed instances from every dirty target.
func (m *Manager) compact() {
	if len(m.dirty) == 0 {
		return
	}
	for id := range m.dirty {
		list := m.effects[id]
		kept := list[:0]
		for _, inst := range list {
			if !inst.Removed() {
				kept = append(kept, inst)
			}
		}
		if len(kept) == 0 {
			delete(m.effects, id)
		} else {
			m.effects[id] = kept
		}
	}
	order := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.effects[id]; ok {
			order = append(order, id)
		}
	}
	m.order = order
	clear(m.dirty)
}
