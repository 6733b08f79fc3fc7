package risk

import (
	"time"

	"github.com/rustyeddy/papertrader/broker"
)

// DefaultWindow is the span of the trade-rate limit.
const DefaultWindow = 60 * time.Second

// Policy holds the gate's limits. A zero limit disables its check.
type Policy struct {
	// Rate limit on approved entries
	MaxTradesPerWindow int
	Window             time.Duration

	// Circuit breakers
	LossCooldown        time.Duration
	MaxDailyDrawdownPct float64 // 5 means 5%

	// Exposure limits, in quote currency
	MaxNotional   float64
	NotionalLimit map[string]float64 // per-instrument override
}

// Ceiling returns the notional ceiling for instrument.
func (p Policy) Ceiling(instrument string) float64 {
	if v, ok := p.NotionalLimit[instrument]; ok {
		return v
	}
	return p.MaxNotional
}

func (p Policy) window() time.Duration {
	if p.Window <= 0 {
		return DefaultWindow
	}
	return p.Window
}

// Request is a proposed order as the gate sees it. Quantity is unsigned;
// Position is the instrument's current signed position.
type Request struct {
	Instrument string
	Side       broker.Side
	Quantity   float64
	Mark       float64
	Position   float64
	Equity     float64
	Now        time.Time
}
