// Package dice provides the randomness abstraction used by combat rolls:
// percent chances, crit checks and uniform picks.
package dice

// Source is the randomness provider for combat rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// percentResolution is the number of buckets a percent roll is divided into,
// giving two decimal places of precision (12.34%).
const percentResolution = 10000

// Chance reports whether a roll against percent succeeds.
// percent <= 0 never succeeds and percent >= 100 always succeeds without
// consuming randomness.
//
// Precondition: src must be non-nil.
func Chance(src Source, percent float64) bool {
	if percent <= 0 {
		return false
	}
	if percent >= 100 {
		return true
	}
	threshold := int(percent * percentResolution / 100)
	return src.Intn(percentResolution) < threshold
}
