package broker

import "math"

// zeroQty is the tolerance below which a position is treated as flat.
const zeroQty = 1e-12

// Position is the signed quantity and VWAP entry price of one instrument.
// EntryPrice is zero whenever Quantity is zero.
type Position struct {
	Quantity   float64
	EntryPrice float64
}

// ApplyFill folds a signed fill into p and returns the new position and the
// realized PnL of the closing portion. Increases (including from flat) move
// the entry to the quantity-weighted average; reductions realize PnL on
// min(|prior|, |fill|) and keep the entry; a reversal re-enters the remainder
// at the fill price; an exact close resets the entry to zero.
func ApplyFill(p Position, signedQty, price float64) (Position, float64) {
	if signedQty == 0 {
		return p, 0
	}

	prior := p.Quantity
	next := prior + signedQty
	if math.Abs(next) < zeroQty {
		next = 0
	}

	if prior == 0 || sign(prior) == sign(signedQty) {
		if next == 0 {
			return Position{}, 0
		}
		cost := math.Abs(prior)*p.EntryPrice + math.Abs(signedQty)*price
		return Position{Quantity: next, EntryPrice: cost / math.Abs(next)}, 0
	}

	closed := math.Min(math.Abs(prior), math.Abs(signedQty))
	realized := (price - p.EntryPrice) * sign(prior) * closed

	switch {
	case next == 0:
		return Position{}, realized
	case sign(next) != sign(prior):
		return Position{Quantity: next, EntryPrice: price}, realized
	default:
		return Position{Quantity: next, EntryPrice: p.EntryPrice}, realized
	}
}

// UnrealizedPL marks an open position to mark. Flat positions have none.
func UnrealizedPL(p Position, mark float64) float64 {
	if p.Quantity == 0 {
		return 0
	}
	return (mark - p.EntryPrice) * p.Quantity
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
