// market/instruments.go
package market

import "strings"

// Instrument is a tradable symbol resolved against a venue.
// Symbol is the configured name, Handle the venue's identifier.
type Instrument struct {
	Symbol  string
	Handle  string
	MinQty  float64
	QtyStep float64
	Base    string
	Quote   string
}

// Normalize upper-cases a configured symbol and strips separators so
// "btc/usdt", "BTC-USDT" and "BTCUSDT" compare equal.
func Normalize(symbol string) string {
	r := strings.NewReplacer("/", "", "-", "", "_", "", " ", "")
	return strings.ToUpper(r.Replace(symbol))
}
