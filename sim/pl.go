package sim

import (
	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/store"
)

// ApplyFill returns the book's position after a signed fill at price and the
// realized PnL of the closing portion. The book itself is not modified.
func ApplyFill(b *store.Book, signedQty, price float64) (broker.Position, float64) {
	return broker.ApplyFill(b.Pos(), signedQty, price)
}

// UnrealizedPL marks the book's position to mark.
func UnrealizedPL(b *store.Book, mark float64) float64 {
	return broker.UnrealizedPL(b.Pos(), mark)
}
