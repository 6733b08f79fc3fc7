package trader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/feed"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/logger"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/store"
	"github.com/rustyeddy/papertrader/strategies"
)

var ErrNoInstruments = errors.New("no instruments to trade")

// Options are the orchestrator's order sizing and scheduling knobs.
type Options struct {
	EntryNotional     float64
	MaxEntryOvershoot float64 // zero disables the check
	MinMoveBps        float64

	Interval    time.Duration
	Jitter      time.Duration
	ReportEvery int
	SaveEvery   int

	Clock func() time.Time
}

// Deps are the collaborators a Trader drives. NewStrategy is called once
// per instrument.
type Deps struct {
	Store       *store.Store
	Gate        *risk.Gate
	Broker      broker.Broker
	Feed        feed.Feed
	Journal     journal.Journal
	Instruments []market.Instrument
	NewStrategy func(inst market.Instrument) (strategies.Strategy, error)
	Log         *logger.Logger
}

// Trader runs the per-tick pipeline: quote, strategy, order translation,
// risk gate, execution, journal. A Trader is driven by a single goroutine.
type Trader struct {
	opts        Options
	store       *store.Store
	gate        *risk.Gate
	broker      broker.Broker
	feed        feed.Feed
	journal     journal.Journal
	instruments []market.Instrument
	strategies  map[string]strategies.Strategy
	log         *logger.Logger

	ticks  int
	jitter func(time.Duration) time.Duration
}

// New wires a Trader and restores each strategy from the store's snapshot,
// then realigns it with the book's position.
func New(opts Options, d Deps) (*Trader, error) {
	if len(d.Instruments) == 0 {
		return nil, ErrNoInstruments
	}
	if d.Store == nil || d.Gate == nil || d.Broker == nil || d.Feed == nil || d.NewStrategy == nil {
		return nil, errors.New("trader: missing dependency")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if d.Journal == nil {
		d.Journal = journal.Nop{}
	}
	if d.Log == nil {
		d.Log = logger.NewNop()
	}

	t := &Trader{
		opts:        opts,
		store:       d.Store,
		gate:        d.Gate,
		broker:      d.Broker,
		feed:        d.Feed,
		journal:     d.Journal,
		instruments: d.Instruments,
		strategies:  make(map[string]strategies.Strategy, len(d.Instruments)),
		log:         d.Log.Named("trader"),
		jitter:      uniformJitter(opts.Clock().UnixNano()),
	}

	for _, inst := range d.Instruments {
		s, err := d.NewStrategy(inst)
		if err != nil {
			return nil, fmt.Errorf("strategy for %s: %w", inst.Symbol, err)
		}
		if snap := t.store.Snapshot(inst.Handle); len(snap) > 0 {
			if err := s.Restore(snap); err != nil {
				t.log.Warn("strategy restore failed, starting fresh",
					zap.String("instrument", inst.Handle), zap.Error(err))
				if s, err = d.NewStrategy(inst); err != nil {
					return nil, fmt.Errorf("strategy for %s: %w", inst.Symbol, err)
				}
			}
		}
		t.strategies[inst.Handle] = s
		t.sync(inst.Handle)
	}

	return t, nil
}

func (t *Trader) Instruments() []market.Instrument { return t.instruments }

func (t *Trader) Ticks() int { return t.ticks }

// Tick runs one pass over every instrument, then the periodic report and
// autosave. Per-instrument failures are logged and do not end the pass.
func (t *Trader) Tick(ctx context.Context) error {
	t.ticks++
	for _, inst := range t.instruments {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.step(ctx, inst)
	}

	if every(t.ticks, t.opts.ReportEvery) {
		t.report()
	}
	if every(t.ticks, t.opts.SaveEvery) {
		if err := t.store.Save(ctx); err != nil {
			t.log.Warn("autosave failed", zap.Error(err))
		}
	}
	return nil
}

func (t *Trader) step(ctx context.Context, inst market.Instrument) {
	h := inst.Handle
	log := t.log.With(zap.String("instrument", h))

	opt, err := t.feed.GetMarkPrice(ctx, h)
	if err != nil {
		log.Warn("mark price", zap.Error(err))
		return
	}
	q, err := opt.Take()
	if err != nil || q.Mark <= 0 {
		log.Debug("no quote")
		return
	}

	book := t.store.Book(h)
	prev := book.LastMark
	book.LastMark = q.Mark
	if t.opts.MinMoveBps > 0 && prev > 0 && market.MoveBps(prev, q.Mark) < t.opts.MinMoveBps {
		return
	}

	s := t.strategies[h]
	sig := s.OnTick(q)
	defer t.checkpoint(h)

	order, ok := t.translate(inst, sig, book.Position, q.Mark)
	if !ok {
		return
	}

	now := t.opts.Clock()
	d := t.gate.Evaluate(risk.Request{
		Instrument: h,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Mark:       q.Mark,
		Position:   book.Position,
		Equity:     t.store.Equity(),
		Now:        now,
	})
	if !d.Allowed {
		return
	}

	order.Quantity = d.Quantity
	if d.Reason == risk.ReasonCapped {
		order.Quantity = risk.RoundStep(d.Quantity, inst.QtyStep)
		if order.Quantity <= 0 || order.Quantity < inst.MinQty {
			log.Debug("capped size below minimum", zap.Float64("quantity", d.Quantity))
			return
		}
	}
	order.Time = now

	fill, err := t.broker.Execute(ctx, order)
	if err != nil {
		log.Warn("execute", zap.Error(err))
		return
	}
	if fill.Empty() {
		return
	}

	t.gate.OnFill(fill.Realized, now)
	if err := t.journal.RecordTrade(journal.NewTradeRecord(fill, book.Position)); err != nil {
		log.Warn("journal trade", zap.Error(err))
	}
}

// translate turns a signal into an order. Exits close the position and never
// flip it; entries are sized from the notional; signals along an existing
// position are ignored.
func (t *Trader) translate(inst market.Instrument, sig strategies.Signal, position, mark float64) (broker.Order, bool) {
	var side broker.Side
	switch sig.Action {
	case strategies.Buy:
		side = broker.Buy
	case strategies.Sell:
		side = broker.Sell
	default:
		return broker.Order{}, false
	}

	o := broker.Order{Instrument: inst.Handle, Side: side, Mark: mark, Reason: sig.Reason}
	if position != 0 {
		if math.Signbit(position) == math.Signbit(side.Sign()) {
			return broker.Order{}, false
		}
		o.Quantity = math.Abs(position)
		if o.Reason == "" {
			o.Reason = "exit"
		}
		return o, true
	}

	notional := sig.Notional
	if notional <= 0 {
		notional = t.opts.EntryNotional
	}
	qty, err := risk.EntryQuantity(notional, mark, inst, t.opts.MaxEntryOvershoot)
	if err != nil {
		t.log.Info("entry skipped", zap.String("instrument", inst.Handle), zap.Error(err))
		return broker.Order{}, false
	}
	o.Quantity = qty
	if o.Reason == "" {
		o.Reason = "entry"
	}
	return o, true
}

// sync hands the ledger's position back to strategies that track their own
// regime.
func (t *Trader) sync(handle string) {
	if s, ok := t.strategies[handle].(strategies.Syncer); ok {
		s.Sync(t.store.Book(handle).Position)
	}
}

// checkpoint realigns the strategy with the book and then stores its
// snapshot, so a saved snapshot never disagrees with the saved position.
func (t *Trader) checkpoint(handle string) {
	t.sync(handle)
	snap, err := t.strategies[handle].Snapshot()
	if err != nil {
		t.log.Warn("strategy snapshot", zap.String("instrument", handle), zap.Error(err))
		return
	}
	t.store.SetSnapshot(handle, snap)
}

// report logs the account totals, journals an equity snapshot and checks
// the ledger identity.
func (t *Trader) report() {
	tot := t.store.Totals()
	t.log.Info("status",
		zap.Int("tick", t.ticks),
		zap.Float64("cash", tot.Cash),
		zap.Float64("equity", tot.Equity),
		zap.Float64("realized", tot.Realized),
		zap.Float64("unrealized", tot.Unrealized),
		zap.Float64("fees", tot.Fees),
		zap.Int("open", tot.Open),
		zap.Int("trades", tot.Trades),
	)

	if err := t.journal.RecordEquity(journal.NewEquitySnapshot(t.opts.Clock(), tot)); err != nil {
		t.log.Warn("journal equity", zap.Error(err))
	}

	tol := 1e-6 * math.Max(1, tot.Deposit)
	if diff := tot.Equity - tot.Expected(); math.Abs(diff) > tol {
		t.log.Warn("equity consistency",
			zap.Float64("equity", tot.Equity),
			zap.Float64("expected", tot.Expected()),
			zap.Float64("diff", diff),
		)
	}
}

func every(n, k int) bool {
	if k <= 0 {
		k = 1
	}
	return n%k == 0
}
