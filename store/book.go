package store

import (
	"encoding/json"
	"time"

	"github.com/rustyeddy/papertrader/broker"
)

// Book is the per-instrument ledger: position, cost basis, cumulative
// realized PnL and fees, the last observed mark, the trade log and the
// strategy's indicator snapshot.
type Book struct {
	Position    float64         `json:"position"`
	EntryPrice  float64         `json:"entry_price"`
	RealizedPnL float64         `json:"realized_pnl"`
	FeesPaid    float64         `json:"fees_paid"`
	LastMark    float64         `json:"last_mark"`
	Trades      []broker.Trade  `json:"trades"`
	Snapshot    json.RawMessage `json:"snapshot,omitempty"`
}

func newBook() *Book {
	return &Book{Trades: []broker.Trade{}}
}

// Pos returns the book's position for the accounting functions.
func (b *Book) Pos() broker.Position {
	return broker.Position{Quantity: b.Position, EntryPrice: b.EntryPrice}
}

// SetPos stores a position computed by broker.ApplyFill.
func (b *Book) SetPos(p broker.Position) {
	b.Position = p.Quantity
	b.EntryPrice = p.EntryPrice
}

// ValuationMark is the price used to value the position: the last mark, or
// the entry price when no mark has been seen since restart.
func (b *Book) ValuationMark() float64 {
	if b.LastMark > 0 {
		return b.LastMark
	}
	return b.EntryPrice
}

// Unrealized marks the position to ValuationMark.
func (b *Book) Unrealized() float64 {
	return broker.UnrealizedPL(b.Pos(), b.ValuationMark())
}

// MarketValue is the signed value of the position at ValuationMark.
func (b *Book) MarketValue() float64 {
	return b.Position * b.ValuationMark()
}

// LastTradeTime returns the time of the newest trade, zero when empty.
func (b *Book) LastTradeTime() time.Time {
	if len(b.Trades) == 0 {
		return time.Time{}
	}
	return b.Trades[len(b.Trades)-1].Time
}

// DayAnchor is the equity captured on the first risk evaluation of a
// calendar day. Date is formatted as YYYY-MM-DD (UTC).
type DayAnchor struct {
	Equity float64 `json:"equity"`
	Date   string  `json:"date"`
}

const dateLayout = "2006-01-02"

// DateOf formats t as an anchor date.
func DateOf(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// Ledger is the global account state. Cash is spot cash: it moves by
// notional and fees on every fill.
type Ledger struct {
	Deposit  float64
	Cash     float64
	DayStart DayAnchor
}
