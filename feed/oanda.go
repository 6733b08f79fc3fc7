package feed

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/moznion/go-optional"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/oanda"
)

// OANDA polls the v20 pricing endpoint once per call.
type OANDA struct {
	client *oanda.Client
}

func NewOANDA(c *oanda.Client) *OANDA {
	return &OANDA{client: c}
}

func (o *OANDA) GetMarkPrice(ctx context.Context, handle string) (optional.Option[market.Quote], error) {
	prices, err := o.client.GetPricing(ctx, handle)
	if err != nil {
		return none(), fmt.Errorf("oanda pricing %s: %w", handle, err)
	}
	for _, p := range prices {
		if p.Instrument != handle || p.Bid <= 0 || p.Ask <= 0 {
			continue
		}
		return some(market.NewQuote(handle, p.Bid, p.Ask, p.Time)), nil
	}
	return none(), nil
}

func (o *OANDA) Instruments(ctx context.Context) ([]market.Instrument, error) {
	list, err := o.client.GetInstruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("oanda instruments: %w", err)
	}

	out := make([]market.Instrument, 0, len(list))
	for _, in := range list {
		inst := market.Instrument{
			Symbol:  in.Name,
			Handle:  in.Name,
			MinQty:  in.MinimumTradeSize,
			QtyStep: math.Pow(10, -float64(in.TradeUnitsPrecision)),
		}
		if base, quote, ok := strings.Cut(in.Name, "_"); ok {
			inst.Base, inst.Quote = base, quote
		}
		out = append(out, inst)
	}
	return out, nil
}

func (o *OANDA) Close() error { return nil }
