package risk

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/logger"
	"github.com/rustyeddy/papertrader/store"
	"go.uber.org/zap"
)

// Reason is the code attached to every decision.
type Reason string

const (
	ReasonOK           Reason = "ok"
	ReasonExit         Reason = "exit"
	ReasonCapped       Reason = "capped"
	ReasonInvalid      Reason = "invalid"
	ReasonThrottle     Reason = "throttle"
	ReasonLossCooldown Reason = "loss_cooldown"
	ReasonDrawdown     Reason = "drawdown"
	ReasonNotionalCap  Reason = "notional_cap"
)

// Decision is the gate's verdict. Quantity is the permitted unsigned
// quantity, possibly smaller than requested.
type Decision struct {
	Allowed  bool
	Quantity float64
	Reason   Reason
	Detail   string
}

func reject(r Reason, format string, args ...any) Decision {
	return Decision{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

// dust is the quantity tolerance used when comparing against a position.
const dust = 1e-12

// Gate vets proposed orders. Exits always pass; entries and increases are
// checked against the rate limit, loss cooldown, daily drawdown and the
// notional ceiling. The day-start anchor lives in the ledger so it survives
// restarts.
type Gate struct {
	mu        sync.Mutex
	policy    Policy
	ledger    *store.Ledger
	approvals []time.Time
	lossUntil time.Time
	log       *logger.Logger
}

// NewGate builds a gate over ledger. Pass the ledger of an already loaded
// store.
func NewGate(p Policy, ledger *store.Ledger, log *logger.Logger) *Gate {
	if log == nil {
		log = logger.NewNop()
	}
	if ledger == nil {
		ledger = &store.Ledger{}
	}
	return &Gate{
		policy: p,
		ledger: ledger,
		log:    log.Named("risk"),
	}
}

func (g *Gate) Policy() Policy { return g.policy }

// Evaluate returns the decision for r. Approved entries are recorded in the
// rate window; exits and rejections are not.
func (g *Gate) Evaluate(r Request) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.evaluate(r)
	if !d.Allowed {
		g.log.Debug("order rejected",
			zap.String("instrument", r.Instrument),
			zap.String("side", string(r.Side)),
			zap.Float64("quantity", r.Quantity),
			zap.String("reason", string(d.Reason)),
			zap.String("detail", d.Detail),
		)
	}
	return d
}

func (g *Gate) evaluate(r Request) Decision {
	if r.Quantity <= 0 || math.IsNaN(r.Quantity) || r.Mark <= 0 || !r.Side.Valid() {
		return reject(ReasonInvalid, "quantity %g mark %g side %q", r.Quantity, r.Mark, r.Side)
	}

	g.anchor(r.Now, r.Equity)

	signed := r.Side.Sign() * r.Quantity
	opposes := r.Position != 0 && (signed > 0) != (r.Position > 0)
	if opposes && r.Quantity <= math.Abs(r.Position)+dust {
		return Decision{Allowed: true, Quantity: r.Quantity, Reason: ReasonExit}
	}

	p := g.policy
	g.prune(r.Now)
	if p.MaxTradesPerWindow > 0 && len(g.approvals) >= p.MaxTradesPerWindow {
		return reject(ReasonThrottle, "%d entries in the last %s", len(g.approvals), p.window())
	}
	if p.LossCooldown > 0 && r.Now.Before(g.lossUntil) {
		return reject(ReasonLossCooldown, "cooling down until %s", g.lossUntil.Format(time.RFC3339))
	}
	if p.MaxDailyDrawdownPct > 0 && g.ledger.DayStart.Equity > 0 {
		floor := g.ledger.DayStart.Equity * (1 - p.MaxDailyDrawdownPct/100)
		if r.Equity < floor {
			return reject(ReasonDrawdown, "equity %.2f below %.2f", r.Equity, floor)
		}
	}

	d := Decision{Allowed: true, Quantity: r.Quantity, Reason: ReasonOK}
	if ceiling := p.Ceiling(r.Instrument); ceiling > 0 {
		resulting := math.Abs(r.Position + signed)
		if resulting*r.Mark > ceiling {
			maxQty := ceiling / r.Mark
			var allowed float64
			if opposes {
				allowed = math.Abs(r.Position) + maxQty
			} else {
				allowed = maxQty - math.Abs(r.Position)
			}
			if allowed <= dust {
				return reject(ReasonNotionalCap, "position notional %.2f at ceiling %.2f",
					math.Abs(r.Position)*r.Mark, ceiling)
			}
			d.Quantity = allowed
			d.Reason = ReasonCapped
			d.Detail = fmt.Sprintf("resized %g -> %g", r.Quantity, allowed)
		}
	}

	g.approvals = append(g.approvals, r.Now)
	return d
}

// anchor captures the day-start equity on the first evaluation of each UTC
// calendar day.
func (g *Gate) anchor(now time.Time, equity float64) {
	date := store.DateOf(now)
	if g.ledger.DayStart.Date == date {
		return
	}
	g.ledger.DayStart = store.DayAnchor{Equity: equity, Date: date}
	g.log.Info("day start anchored", zap.String("date", date), zap.Float64("equity", equity))
}

func (g *Gate) prune(now time.Time) {
	cutoff := now.Add(-g.policy.window())
	i := 0
	for i < len(g.approvals) && !g.approvals[i].After(cutoff) {
		i++
	}
	g.approvals = g.approvals[i:]
}

// OnFill updates the loss cooldown from a fill's realized PnL: a loss arms
// it, a profit clears it.
func (g *Gate) OnFill(realized float64, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case realized < 0 && g.policy.LossCooldown > 0:
		g.lossUntil = now.Add(g.policy.LossCooldown)
	case realized > 0:
		g.lossUntil = time.Time{}
	}
}

// Seed rebuilds the in-memory rate window and loss cooldown from the trade
// log of a loaded store, so a restart does not hand out a fresh allowance.
// Entries are found by replaying each book's fills from flat.
func (g *Gate) Seed(s *store.Store, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.approvals = g.approvals[:0]
	g.lossUntil = time.Time{}
	cutoff := now.Add(-g.policy.window())

	var last broker.Trade
	for _, name := range s.Instruments() {
		b, ok := s.Lookup(name)
		if !ok {
			continue
		}
		pos := 0.0
		for _, tr := range b.Trades {
			signed := tr.Side.Sign() * tr.Quantity
			opposes := pos != 0 && (signed > 0) != (pos > 0)
			if !(opposes && tr.Quantity <= math.Abs(pos)+dust) && tr.Time.After(cutoff) {
				g.approvals = append(g.approvals, tr.Time)
			}
			if pos += signed; math.Abs(pos) < dust {
				pos = 0
			}
			if tr.Realized != 0 && !tr.Time.Before(last.Time) {
				last = tr
			}
		}
	}
	sort.Slice(g.approvals, func(i, j int) bool { return g.approvals[i].Before(g.approvals[j]) })

	if last.Realized < 0 && g.policy.LossCooldown > 0 {
		g.lossUntil = last.Time.Add(g.policy.LossCooldown)
	}
	g.log.Info("gate seeded from trade log",
		zap.Int("approvals", len(g.approvals)),
		zap.Time("cooldown_until", g.lossUntil),
	)
}

// CoolingDown reports whether the loss cooldown is active at now.
func (g *Gate) CoolingDown(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return now.Before(g.lossUntil)
}

// Approvals returns the number of entries in the rate window at now.
func (g *Gate) Approvals(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(now)
	return len(g.approvals)
}
