package market

import "math"

// BPS is the number of basis points in 1.0.
const BPS = 10_000.0

// MoveBps returns the absolute move from prev to cur in basis points of prev.
func MoveBps(prev, cur float64) float64 {
	if prev <= 0 {
		return 0
	}
	return math.Abs(cur-prev) / prev * BPS
}

// ToBps expresses diff as basis points of ref.
func ToBps(diff, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return diff / ref * BPS
}

// AdjustBps moves price by bps basis points (negative bps lowers it).
func AdjustBps(price, bps float64) float64 {
	return price * (1 + bps/BPS)
}
