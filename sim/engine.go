package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/logger"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/pkg/id"
	"github.com/rustyeddy/papertrader/store"
	"go.uber.org/zap"
)

var (
	ErrInvalidSide = errors.New("invalid order side")
	ErrInvalidMark = errors.New("mark must be positive")
)

// Engine is the paper broker. It fills market orders at the mark adjusted
// for slippage against the trader, charges a proportional fee and books the
// result into the store.
type Engine struct {
	mu          sync.Mutex
	store       *store.Store
	slippageBps float64
	feeBps      float64
	log         *logger.Logger
}

// Costs are the execution cost parameters, both in basis points.
type Costs struct {
	SlippageBps float64
	FeeBps      float64
}

func NewEngine(s *store.Store, c Costs, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		store:       s,
		slippageBps: c.SlippageBps,
		feeBps:      c.FeeBps,
		log:         log.Named("sim"),
	}
}

// FillPrice returns the execution price for side at mark.
func (e *Engine) FillPrice(side broker.Side, mark float64) float64 {
	return market.AdjustBps(mark, side.Sign()*e.slippageBps)
}

// Fee returns the fee charged on a notional of either sign.
func (e *Engine) Fee(notional float64) float64 {
	return math.Abs(notional) * e.feeBps / market.BPS
}

// Execute fills o in full. A non-positive quantity is a no-op and returns an
// empty fill.
func (e *Engine) Execute(ctx context.Context, o broker.Order) (broker.Fill, error) {
	fill := broker.Fill{Instrument: o.Instrument}
	if o.Quantity <= 0 {
		return fill, nil
	}
	if !o.Side.Valid() {
		return fill, fmt.Errorf("execute %s: %w: %q", o.Instrument, ErrInvalidSide, o.Side)
	}
	if o.Mark <= 0 || math.IsNaN(o.Mark) || math.IsInf(o.Mark, 0) {
		return fill, fmt.Errorf("execute %s: %w", o.Instrument, ErrInvalidMark)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	book := e.store.Book(o.Instrument)
	at := o.Time
	if last := book.LastTradeTime(); !last.IsZero() && at.Before(last) {
		// clock stepped back; keep the log ordered rather than refuse the fill
		e.log.Warn("order time behind trade log, clamped",
			zap.String("instrument", o.Instrument),
			zap.Time("order_time", o.Time),
			zap.Time("last_trade", last),
		)
		at = last
	}

	price := e.FillPrice(o.Side, o.Mark)
	signed := o.SignedQuantity()
	notional := signed * price
	fee := e.Fee(notional)
	next, realized := ApplyFill(book, signed, price)

	trade := broker.Trade{
		ID:       id.At(at),
		Time:     at,
		Side:     o.Side,
		Quantity: o.Quantity,
		Price:    price,
		Notional: notional,
		Fee:      fee,
		Realized: realized,
		Reason:   o.Reason,
	}
	if err := e.store.RecordFill(ctx, o.Instrument, trade, next); err != nil {
		return fill, fmt.Errorf("execute %s: %w", o.Instrument, err)
	}

	e.log.Info("fill",
		zap.String("instrument", o.Instrument),
		zap.String("side", string(o.Side)),
		zap.Float64("quantity", o.Quantity),
		zap.Float64("price", price),
		zap.Float64("fee", fee),
		zap.Float64("realized", realized),
		zap.Float64("position", book.Position),
		zap.Float64("cash", e.store.Ledger().Cash),
		zap.String("reason", o.Reason),
	)

	fill.Trade = trade
	fill.Realized = realized
	return fill, nil
}
