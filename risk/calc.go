package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

var (
	ErrZeroQuantity = errors.New("entry size rounds to zero")
	ErrOvershoot    = errors.New("minimum quantity overshoots entry notional")
)

// RoundStep rounds qty down to a multiple of step. A zero step leaves qty
// unchanged.
func RoundStep(qty, step float64) float64 {
	if step <= 0 || qty <= 0 {
		return math.Max(qty, 0)
	}
	q := decimal.NewFromFloat(qty)
	s := decimal.NewFromFloat(step)
	out, _ := q.Div(s).Floor().Mul(s).Float64()
	return out
}

// EntryQuantity sizes an entry worth notional at mark for inst: the raw
// quantity is rounded down to the quantity step and raised to the minimum
// quantity. When maxOvershoot is positive, a result whose notional exceeds
// notional*maxOvershoot is refused with ErrOvershoot.
func EntryQuantity(notional, mark float64, inst market.Instrument, maxOvershoot float64) (float64, error) {
	if notional <= 0 || mark <= 0 {
		return 0, fmt.Errorf("%s: %w", inst.Symbol, ErrZeroQuantity)
	}

	raw, _ := decimal.NewFromFloat(notional).Div(decimal.NewFromFloat(mark)).Float64()
	qty := RoundStep(raw, inst.QtyStep)
	if qty < inst.MinQty {
		qty = inst.MinQty
	}
	if qty <= 0 {
		return 0, fmt.Errorf("%s: %w", inst.Symbol, ErrZeroQuantity)
	}

	if maxOvershoot > 0 && qty*mark > notional*maxOvershoot {
		return 0, fmt.Errorf("%s: %w: %.2f > %.2f", inst.Symbol, ErrOvershoot, qty*mark, notional*maxOvershoot)
	}
	return qty, nil
}
