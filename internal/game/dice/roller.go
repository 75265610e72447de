package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged combat rolls.
// All rolls are logged at debug level with their label, input and result.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Chance rolls a percent check labelled for the audit log.
//
// Postcondition: returns false for percent <= 0 and true for percent >= 100.
func (r *Roller) Chance(label string, percent float64) bool {
	ok := Chance(r.src, percent)
	r.logger.Debug("chance roll",
		zap.String("label", label),
		zap.Float64("percent", percent),
		zap.Bool("success", ok),
	)
	return ok
}

// Pick returns a uniform index in [0, n).
//
// Precondition: n > 0.
func (r *Roller) Pick(label string, n int) int {
	idx := r.src.Intn(n)
	r.logger.Debug("pick roll",
		zap.String("label", label),
		zap.Int("options", n),
		zap.Int("index", idx),
	)
	return idx
}
