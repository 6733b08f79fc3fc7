// Package journal keeps an append-only audit trail of fills and equity
// snapshots next to the state blob.
package journal

import (
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/store"
)

// TradeRecord is one fill as written to the journal.
type TradeRecord struct {
	TradeID    string
	Instrument string
	Side       string
	Quantity   float64
	Price      float64
	Notional   float64
	Fee        float64
	Realized   float64
	Position   float64 // after the fill
	Time       time.Time
	Reason     string
}

// NewTradeRecord builds the record for fill. position is the instrument's
// position after the fill.
func NewTradeRecord(fill broker.Fill, position float64) TradeRecord {
	t := fill.Trade
	return TradeRecord{
		TradeID:    t.ID,
		Instrument: fill.Instrument,
		Side:       string(t.Side),
		Quantity:   t.Quantity,
		Price:      t.Price,
		Notional:   t.Notional,
		Fee:        t.Fee,
		Realized:   fill.Realized,
		Position:   position,
		Time:       t.Time,
		Reason:     t.Reason,
	}
}

// EquitySnapshot is the account at a reporting tick.
type EquitySnapshot struct {
	Time       time.Time
	Cash       float64
	Equity     float64
	Realized   float64
	Unrealized float64
	Fees       float64
	Open       int
}

// NewEquitySnapshot captures totals at t.
func NewEquitySnapshot(t time.Time, tot store.Totals) EquitySnapshot {
	return EquitySnapshot{
		Time:       t,
		Cash:       tot.Cash,
		Equity:     tot.Equity,
		Realized:   tot.Realized,
		Unrealized: tot.Unrealized,
		Fees:       tot.Fees,
		Open:       tot.Open,
	}
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }
