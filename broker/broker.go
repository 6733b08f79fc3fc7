package broker

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Side is the direction of an order or fill.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

func (s Side) Opposite() Side {
	if s == Sell {
		return Buy
	}
	return Sell
}

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

func ParseSide(v string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(v))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("unknown side %q", v)
}

// Broker executes approved orders against the ledger.
type Broker interface {
	Execute(ctx context.Context, o Order) (Fill, error)
}

// Order is a market order against the current mark. Quantity is unsigned;
// Side carries the direction.
type Order struct {
	Instrument string
	Side       Side
	Quantity   float64
	Mark       float64
	Time       time.Time
	Reason     string
}

// SignedQuantity returns the quantity with the side's sign applied.
func (o Order) SignedQuantity() float64 {
	return o.Side.Sign() * o.Quantity
}

// Trade is one fill in an instrument's append-only trade log.
// Notional is signed: positive for buys, negative for sells.
type Trade struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Side     Side      `json:"side"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Notional float64   `json:"notional"`
	Fee      float64   `json:"fee"`
	Realized float64   `json:"realized"`
	Reason   string    `json:"reason,omitempty"`
}

// Fill is the result of executing an order: the recorded trade and the
// realized PnL delta it caused.
type Fill struct {
	Instrument string
	Trade      Trade
	Realized   float64
}

// Empty reports whether the order was a no-op.
func (f Fill) Empty() bool {
	return f.Trade.Quantity == 0
}
