package stat

import (
	"math"
	"reflect"

	"go.uber.org/zap"
)

// Ledger is the per-entity collection of stat modifiers and the final values
// derived from them. Final values are recomputed synchronously on every
// mutation, so FinalValue never observes a stale cache.
//
// It is not safe for concurrent use; the owning entity serialises access.
type Ledger struct {
	base   Values
	mods   [KindCount][]Modifier
	final  Values
	logger *zap.Logger
}

// NewLedger creates a Ledger over base values.
//
// Precondition: logger must be non-nil.
// Postcondition: FinalValue(k) equals the clamped base for every kind.
func NewLedger(base Values, logger *zap.Logger) *Ledger {
	l := &Ledger{base: base, logger: logger}
	l.recompute()
	return l
}

// AddModifier appends m to the kind's list and recomputes. Duplicates are
// allowed. An invalid kind or a missing/non-comparable source is logged and skipped.
func (l *Ledger) AddModifier(k Kind, m Modifier) {
	if !k.Valid() {
		l.logger.Warn("stat modifier skipped: unknown kind", zap.Int("kind", int(k)))
		return
	}
	if m.source == nil {
		l.logger.Warn("stat modifier skipped: missing source", zap.Stringer("kind", k))
		return
	}
	if !reflect.TypeOf(m.source).Comparable() {
		l.logger.Warn("stat modifier skipped: source is not comparable",
			zap.Stringer("kind", k),
			zap.String("source_type", reflect.TypeOf(m.source).String()),
		)
		return
	}
	l.mods[k] = append(l.mods[k], m)
	l.recompute()
}

// RemoveModifiersFromSource removes every modifier granted by src across all
// kinds and returns how many were removed. Absent sources are a no-op.
func (l *Ledger) RemoveModifiersFromSource(src Source) int {
	if src == nil || !reflect.TypeOf(src).Comparable() {
		return 0
	}
	removed := 0
	for k := range l.mods {
		kept := l.mods[k][:0]
		for _, m := range l.mods[k] {
			if m.source == src {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		// clear the tail so removed sources are not retained by the backing array
		for i := len(kept); i < len(l.mods[k]); i++ {
			l.mods[k][i] = Modifier{}
		}
		l.mods[k] = kept
	}
	if removed > 0 {
		l.recompute()
	}
	return removed
}

// FinalValue returns the derived value of k.
func (l *Ledger) FinalValue(k Kind) float64 {
	if !k.Valid() {
		return 0
	}
	return l.final[k]
}

// Base returns the unmodified base value of k.
func (l *Ledger) Base(k Kind) float64 {
	if !k.Valid() {
		return 0
	}
	return l.base[k]
}

// SetBase replaces the base value of k and recomputes.
func (l *Ledger) SetBase(k Kind, v float64) {
	if !k.Valid() {
		return
	}
	l.base[k] = v
	l.recompute()
}

// Modifiers returns a copy of the modifiers currently applied to k.
func (l *Ledger) Modifiers(k Kind) []Modifier {
	if !k.Valid() {
		return nil
	}
	out := make([]Modifier, len(l.mods[k]))
	copy(out, l.mods[k])
	return out
}

// DamageBonusPercent returns the accumulated damage bonus across all buckets.
func (l *Ledger) DamageBonusPercent() float64 {
	return l.final[Attack]
}

// BucketPercent returns the damage bonus contributed by one provenance bucket.
func (l *Ledger) BucketPercent(b Bucket) float64 {
	total := 0.0
	for _, m := range l.mods[Attack] {
		if m.bucket == b {
			total += m.value
		}
	}
	return total
}

func (l *Ledger) recompute() {
	for k := Kind(0); k < KindCount; k++ {
		raw := Compute(k, l.base[k], l.mods[k])
		clamped := Clamp(k, raw)
		if clamped != raw {
			l.logger.Debug("stat clamped",
				zap.Stringer("kind", k),
				zap.Float64("raw", raw),
				zap.Float64("clamped", clamped),
			)
		}
		l.final[k] = clamped
	}
}

// Compute returns the unclamped value of k for base and mods.
// It is a pure function of its inputs.
func Compute(k Kind, base float64, mods []Modifier) float64 {
	sum := 0.0
	for _, m := range mods {
		sum += m.value
	}
	if k.Valid() && accumulationOf[k] == ratio {
		return base * (1 + sum/100)
	}
	return base + sum
}

// Clamp applies the safe floor (and ceiling) of k to v.
func Clamp(k Kind, v float64) float64 {
	if !k.Valid() || math.IsNaN(v) {
		return v
	}
	b := boundsOf[k]
	if b.hasMin && v < b.min {
		return b.min
	}
	if b.hasMax && v > b.max {
		return b.max
	}
	return v
}

// ScaleDamage applies a percent bonus to base damage:
// base * (1 + bonusPercent/100), floored at zero.
func ScaleDamage(base, bonusPercent float64) float64 {
	return math.Max(0, base*(1+bonusPercent/100))
}
