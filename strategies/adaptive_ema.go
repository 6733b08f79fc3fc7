package strategies

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/papertrader/indicators"
	"github.com/rustyeddy/papertrader/market"
)

const AdaptiveEMAName = "adaptive-ema"

// Regime is the strategy's view of its own exposure.
type Regime string

const (
	Flat  Regime = "flat"
	Long  Regime = "long"
	Short Regime = "short"
)

// Params configures AdaptiveEMA. Thresholds are in basis points of the mark.
type Params struct {
	FastPeriod int
	SlowPeriod int
	VolPeriod  int

	// Entry thresholds are max(base, vol*VolMultiplier); exits use half
	// the multiplier.
	VolMultiplier float64
	EnterBpsLong  float64
	EnterBpsShort float64
	ExitBpsLong   float64
	ExitBpsShort  float64

	AllowShort bool
	Cooldown   time.Duration // since the last exit
	MinHold    time.Duration // since the entry

	// Breakout confirmation; a zero window disables it.
	BreakoutWindow  int
	BreakoutBandBps float64

	// Warmup defaults to SlowPeriod.
	Warmup        int
	EntryNotional float64
}

func DefaultParams() Params {
	return Params{
		FastPeriod:    20,
		SlowPeriod:    60,
		VolPeriod:     30,
		VolMultiplier: 1.5,
		EnterBpsLong:  20,
		EnterBpsShort: 20,
		ExitBpsLong:   10,
		ExitBpsShort:  10,
		Cooldown:      5 * time.Minute,
		MinHold:       2 * time.Minute,
		EntryNotional: 100,
	}
}

func (p Params) Validate() error {
	switch {
	case p.FastPeriod <= 0 || p.SlowPeriod <= 0:
		return fmt.Errorf("%w: periods must be positive", ErrInvalidParams)
	case p.FastPeriod >= p.SlowPeriod:
		return fmt.Errorf("%w: fast period %d must be shorter than slow period %d",
			ErrInvalidParams, p.FastPeriod, p.SlowPeriod)
	case p.VolMultiplier < 0 || p.EnterBpsLong < 0 || p.EnterBpsShort < 0 ||
		p.ExitBpsLong < 0 || p.ExitBpsShort < 0 || p.BreakoutBandBps < 0:
		return fmt.Errorf("%w: thresholds must not be negative", ErrInvalidParams)
	case p.BreakoutWindow < 0 || p.Warmup < 0 || p.VolPeriod < 0:
		return fmt.Errorf("%w: windows must not be negative", ErrInvalidParams)
	case p.Cooldown < 0 || p.MinHold < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidParams)
	}
	return nil
}

// AdaptiveEMA trades fast/slow EMA spread against volatility scaled
// thresholds, gated by the slow slope, an optional breakout window and
// entry/exit timers.
type AdaptiveEMA struct {
	p Params

	fast   *indicators.ExponentialMA
	slow   *indicators.ExponentialMA
	vol    *indicators.Volatility
	window *indicators.Window

	prevSlow float64
	regime   Regime
	entryAt  time.Time
	exitAt   time.Time
	ticks    int
	warmup   int
}

func NewAdaptiveEMA(p Params) (*AdaptiveEMA, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.VolPeriod == 0 {
		p.VolPeriod = p.SlowPeriod
	}
	warmup := p.Warmup
	if warmup == 0 {
		warmup = p.SlowPeriod
	}
	return &AdaptiveEMA{
		p:      p,
		fast:   indicators.NewEMA(p.FastPeriod),
		slow:   indicators.NewEMA(p.SlowPeriod),
		vol:    indicators.NewVolatility(p.VolPeriod),
		window: indicators.NewWindow(p.BreakoutWindow),
		regime: Flat,
		warmup: warmup,
	}, nil
}

func (s *AdaptiveEMA) Name() string { return AdaptiveEMAName }

func (s *AdaptiveEMA) Regime() Regime { return s.regime }

// Ticks returns the number of quotes consumed.
func (s *AdaptiveEMA) Ticks() int { return s.ticks }

// Warm reports whether the warm-up threshold has been reached.
func (s *AdaptiveEMA) Warm() bool { return s.ticks >= s.warmup }

// Levels are the derived values the transition table compares.
type Levels struct {
	SpreadBps     float64
	SlopeBps      float64
	VolBps        float64
	EnterLong     float64
	EnterShort    float64
	ExitLong      float64
	ExitShort     float64
	BreakoutLong  bool
	BreakoutShort bool
}

// Levels computes the current thresholds at mark.
func (s *AdaptiveEMA) Levels(mark float64) Levels {
	vol := s.vol.Value()
	l := Levels{
		SpreadBps:  market.ToBps(s.fast.Value()-s.slow.Value(), mark),
		SlopeBps:   market.ToBps(s.slow.Value()-s.prevSlow, mark),
		VolBps:     vol,
		EnterLong:  math.Max(s.p.EnterBpsLong, vol*s.p.VolMultiplier),
		EnterShort: math.Max(s.p.EnterBpsShort, vol*s.p.VolMultiplier),
		ExitLong:   math.Max(s.p.ExitBpsLong, vol*s.p.VolMultiplier/2),
		ExitShort:  math.Max(s.p.ExitBpsShort, vol*s.p.VolMultiplier/2),
	}
	l.BreakoutLong, l.BreakoutShort = s.breakout(mark)
	return l
}

// breakout reports whether mark is within the band of the window high (long)
// and low (short). Both pass when the window is disabled.
func (s *AdaptiveEMA) breakout(mark float64) (long, short bool) {
	if !s.window.Enabled() {
		return true, true
	}
	if s.window.Len() == 0 {
		return false, false
	}
	long = market.ToBps(s.window.Max()-mark, mark) <= s.p.BreakoutBandBps
	short = market.ToBps(mark-s.window.Min(), mark) <= s.p.BreakoutBandBps
	return long, short
}

func (s *AdaptiveEMA) OnTick(q market.Quote) Signal {
	mark := q.Mark
	if mark <= 0 || math.IsNaN(mark) || math.IsInf(mark, 0) {
		return hold()
	}

	s.vol.Update(mark)
	s.prevSlow = s.slow.Value()
	if s.slow.State().Count == 0 {
		s.prevSlow = mark
	}
	s.fast.Update(mark)
	s.slow.Update(mark)
	s.window.Update(mark)
	s.ticks++

	if s.ticks < s.warmup {
		return hold()
	}

	l := s.Levels(mark)
	now := q.Time

	switch s.regime {
	case Flat:
		if !s.elapsed(s.exitAt, now, s.p.Cooldown) {
			return hold()
		}
		if l.SpreadBps > l.EnterLong && l.SlopeBps > 0 && l.BreakoutLong {
			s.regime = Long
			s.entryAt = now
			return Signal{Action: Buy, Notional: s.p.EntryNotional, Reason: s.reason("enter_long", l)}
		}
		if s.p.AllowShort && l.SpreadBps < -l.EnterShort && l.SlopeBps < 0 && l.BreakoutShort {
			s.regime = Short
			s.entryAt = now
			return Signal{Action: Sell, Notional: s.p.EntryNotional, Reason: s.reason("enter_short", l)}
		}

	case Long:
		if l.SpreadBps < -l.ExitLong && s.elapsed(s.entryAt, now, s.p.MinHold) {
			s.regime = Flat
			s.exitAt = now
			return Signal{Action: Sell, Reason: s.reason("exit_long", l)}
		}

	case Short:
		if l.SpreadBps > l.ExitShort && s.elapsed(s.entryAt, now, s.p.MinHold) {
			s.regime = Flat
			s.exitAt = now
			return Signal{Action: Buy, Reason: s.reason("exit_short", l)}
		}
	}
	return hold()
}

func (s *AdaptiveEMA) elapsed(since, now time.Time, d time.Duration) bool {
	return since.IsZero() || d <= 0 || now.Sub(since) >= d
}

func (s *AdaptiveEMA) reason(what string, l Levels) string {
	return fmt.Sprintf("%s spread=%.1fbps slope=%.2fbps vol=%.1fbps", what, l.SpreadBps, l.SlopeBps, l.VolBps)
}

// Sync realigns the regime with the ledger position. The ledger wins: a
// rejected entry leaves the strategy flat, a position restored without a
// matching snapshot becomes the regime.
func (s *AdaptiveEMA) Sync(position float64) {
	switch {
	case position > 0:
		s.regime = Long
	case position < 0:
		s.regime = Short
	default:
		s.regime = Flat
	}
}

type adaptiveSnapshot struct {
	Fast     indicators.EMAState        `json:"fast"`
	Slow     indicators.EMAState        `json:"slow"`
	PrevSlow float64                    `json:"prev_slow"`
	Vol      indicators.VolatilityState `json:"vol"`
	Regime   Regime                     `json:"regime"`
	EntryAt  time.Time                  `json:"entry_at"`
	ExitAt   time.Time                  `json:"exit_at"`
	Ticks    int                        `json:"ticks"`
	Warmup   int                        `json:"warmup"`
	Window   []float64                  `json:"window,omitempty"`
}

func (s *AdaptiveEMA) Snapshot() (json.RawMessage, error) {
	return json.Marshal(adaptiveSnapshot{
		Fast:     s.fast.State(),
		Slow:     s.slow.State(),
		PrevSlow: s.prevSlow,
		Vol:      s.vol.State(),
		Regime:   s.regime,
		EntryAt:  s.entryAt,
		ExitAt:   s.exitAt,
		Ticks:    s.ticks,
		Warmup:   s.warmup,
		Window:   s.window.Values(),
	})
}

// Restore replaces all state with snap. An empty snapshot leaves the
// strategy untouched.
func (s *AdaptiveEMA) Restore(snap json.RawMessage) error {
	if len(snap) == 0 {
		return nil
	}
	var st adaptiveSnapshot
	if err := json.Unmarshal(snap, &st); err != nil {
		return fmt.Errorf("restore %s: %w", AdaptiveEMAName, err)
	}

	s.fast.SetState(st.Fast)
	s.slow.SetState(st.Slow)
	s.vol.SetState(st.Vol)
	s.window.SetValues(st.Window)
	s.prevSlow = st.PrevSlow
	s.entryAt = st.EntryAt
	s.exitAt = st.ExitAt
	s.ticks = st.Ticks
	if st.Warmup > 0 {
		s.warmup = st.Warmup
	}
	s.regime = st.Regime
	if s.regime == "" {
		s.regime = Flat
	}
	return nil
}
