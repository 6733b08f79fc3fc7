// Package indicators provides streaming technical indicators over a price series.
//
// Every indicator exposes its full internal state as a plain struct so that a
// strategy can persist it and resume exactly where it left off.
package indicators

// Indicator computes a single streaming value from prices.
// It is deterministic and safe to use in live, replay, and backtests.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next price.
	Update(v float64)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current indicator value. Callers should check Ready().
	Value() float64
}

// Alpha is the standard exponential smoothing constant 2/(N+1).
func Alpha(period int) float64 {
	if period <= 0 {
		return 1
	}
	return 2.0 / float64(period+1)
}
