package status

import (
	"math"

	"github.com/google/uuid"

	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/stat"
)

// tickInterval is the spacing of DoT and HoT ticks in seconds.
const tickInterval = 1.0

// tickEpsilon absorbs float drift so an accumulator that has reached the
// interval up to rounding still fires.
const tickEpsilon = 1e-9

// Cues presents visual feedback for status instances. Implementations must
// tolerate unknown keys.
type Cues interface {
	// Play spawns a one-shot cue at target.
	Play(key string, target entity.Entity)
	// Loop attaches a looping cue to target and returns a function that stops it.
	Loop(key string, target entity.Entity) (stop func())
}

// TickResult reports what one instance did during a Tick.
type TickResult struct {
	Damage float64
	Healed float64
	Killed bool
}

// Instance is one live application of a Descriptor to a target. The
// instance itself is the modifier source for every bonus it grants.
//
// It is not safe for concurrent use.
type Instance struct {
	id     string
	desc   *Descriptor
	target entity.Entity
	caster entity.Entity

	remaining    float64
	hotRemaining float64
	dotTimer     float64
	hotTimer     float64
	// casterScale is snapshotted at creation so later caster buffs do not
	// retroactively change the DoT.
	casterScale float64

	applied  bool
	removed  bool
	stopLoop func()
}

// NewInstance creates an unapplied instance of desc on target.
//
// Precondition: desc and target must be non-nil; caster may be nil.
// Postcondition: Remaining() == desc.Duration.
func NewInstance(desc *Descriptor, target, caster entity.Entity) *Instance {
	scale := 1.0
	if desc.ScalesWithCasterBonus && caster != nil {
		scale = math.Max(0, 1+caster.Stat(stat.Attack)/100)
	}
	return &Instance{
		id:           uuid.NewString(),
		desc:         desc,
		target:       target,
		caster:       caster,
		remaining:    desc.Duration,
		hotRemaining: desc.HealDuration(),
		casterScale:  scale,
	}
}

func (i *Instance) ID() string { return i.id }
func (i *Instance) EffectID() string { return i.desc.ID }
func (i *Instance) Descriptor() *Descriptor { return i.desc }
func (i *Instance) Target() entity.Entity { return i.target }
func (i *Instance) Caster() entity.Entity { return i.caster }
func (i *Instance) Remaining() float64 { return i.remaining }
func (i *Instance) Expired() bool { return i.remaining <= 0 }
func (i *Instance) Removed() bool { return i.removed }
func (i *Instance) HasDamageOverTime() bool { return i.desc.DotAmount > 0 }

// DamagePerSecond is the DoT damage one tick deals, including the caster scale.
func (i *Instance) DamagePerSecond() float64 {
	amount := i.desc.DotAmount
	if i.desc.Scaling() == ScalingPercentMaxHealth {
		amount = i.target.MaxHealth() * i.desc.DotAmount / 100
	}
	return amount * i.casterScale
}

// ApplyEffect pushes the stat bonuses onto the target and starts the cues.
// Calling it more than once has no further effect.
func (i *Instance) ApplyEffect(cues Cues) {
	if i.applied || i.removed {
		return
	}
	i.applied = true
	for k, v := range i.desc.Bonuses() {
		i.target.AddModifier(k, stat.NewModifier(v, i))
	}
	if cues == nil {
		return
	}
	if i.desc.ApplyVFX != "" {
		cues.Play(i.desc.ApplyVFX, i.target)
	}
	if i.desc.LoopVFX != "" {
		i.stopLoop = cues.Loop(i.desc.LoopVFX, i.target)
	}
}

// Refresh resets the remaining duration to duration. Tick accumulators are kept.
func (i *Instance) Refresh(duration float64) {
	i.remaining = duration
	i.hotRemaining = i.desc.HealDuration()
}

// Tick advances the instance by dt seconds. Only the time the instance is
// still alive this frame feeds the DoT accumulator, so an instance never
// deals more than DotAmount per whole second of its duration.
//
// Postcondition: Remaining() is decreased by dt and never negative.
func (i *Instance) Tick(dt float64) TickResult {
	var res TickResult
	if i.removed || dt <= 0 || i.remaining <= 0 {
		return res
	}

	if i.desc.DotAmount > 0 {
		i.dotTimer += math.Min(dt, i.remaining)
		for i.dotTimer >= tickInterval-tickEpsilon {
			i.dotTimer -= tickInterval
			if !entity.IsLive(i.target) {
				break
			}
			r := i.target.TakeDamage(i.DamagePerSecond())
			res.Damage += r.Dealt
			res.Killed = res.Killed || r.Killed
		}
	}

	if i.desc.HotAmount > 0 && i.hotRemaining > 0 {
		step := math.Min(dt, i.hotRemaining)
		i.hotRemaining -= step
		i.hotTimer += step
		for i.hotTimer >= tickInterval-tickEpsilon {
			i.hotTimer -= tickInterval
			if !entity.IsLive(i.target) {
				break
			}
			res.Healed += i.target.Heal(i.desc.HotAmount)
		}
	}

	i.remaining -= dt
	if i.remaining < tickEpsilon {
		i.remaining = 0
	}
	return res
}

// RemoveEffect withdraws every modifier this instance granted and stops its
// looping cue. It reports false when the instance was already removed.
func (i *Instance) RemoveEffect() bool {
	if i.removed {
		return false
	}
	i.removed = true
	if i.applied {
		i.target.RemoveModifiersFromSource(i)
	}
	if i.stopLoop != nil {
		i.stopLoop()
		i.stopLoop = nil
	}
	return true
}
