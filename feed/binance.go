package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/moznion/go-optional"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// BinanceAPI is the subset of the Binance REST client the feeds use.
type BinanceAPI interface {
	BookTicker(ctx context.Context, symbol string) (*binance.BookTicker, error)
	ExchangeInfo(ctx context.Context) (*binance.ExchangeInfo, error)
}

type binanceREST struct {
	client *binance.Client
}

// NewBinanceAPI wraps the public Binance spot endpoints. No credentials are
// needed for market data.
func NewBinanceAPI(baseURL string) BinanceAPI {
	c := binance.NewClient("", "")
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	return &binanceREST{client: c}
}

func (b *binanceREST) BookTicker(ctx context.Context, symbol string) (*binance.BookTicker, error) {
	res, err := b.client.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0], nil
}

func (b *binanceREST) ExchangeInfo(ctx context.Context) (*binance.ExchangeInfo, error) {
	return b.client.NewExchangeInfoService().Do(ctx)
}

// Binance polls the REST book ticker once per call.
type Binance struct {
	api        BinanceAPI
	quoteAsset string
	clock      func() time.Time
}

// NewBinance builds the REST feed. quoteAsset, when set, restricts the
// wildcard universe to pairs quoted in that asset.
func NewBinance(api BinanceAPI, quoteAsset string) *Binance {
	return &Binance{
		api:        api,
		quoteAsset: strings.ToUpper(quoteAsset),
		clock:      time.Now,
	}
}

func (b *Binance) GetMarkPrice(ctx context.Context, handle string) (optional.Option[market.Quote], error) {
	t, err := b.api.BookTicker(ctx, handle)
	if err != nil {
		return none(), fmt.Errorf("binance book ticker %s: %w", handle, err)
	}
	if t == nil {
		return none(), nil
	}
	return parseBook(handle, t.BidPrice, t.AskPrice, b.clock())
}

func (b *Binance) Instruments(ctx context.Context) ([]market.Instrument, error) {
	info, err := b.api.ExchangeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance exchange info: %w", err)
	}
	return binanceInstruments(info, b.quoteAsset)
}

func (b *Binance) Close() error { return nil }

func binanceInstruments(info *binance.ExchangeInfo, quoteAsset string) ([]market.Instrument, error) {
	if info == nil {
		return nil, nil
	}
	out := make([]market.Instrument, 0, len(info.Symbols))
	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Status != "TRADING" {
			continue
		}
		if quoteAsset != "" && s.QuoteAsset != quoteAsset {
			continue
		}

		inst := market.Instrument{
			Symbol: s.BaseAsset + "/" + s.QuoteAsset,
			Handle: s.Symbol,
			Base:   s.BaseAsset,
			Quote:  s.QuoteAsset,
		}
		if lot := s.LotSizeFilter(); lot != nil {
			minQty, err := decimal.NewFromString(lot.MinQuantity)
			if err != nil {
				return nil, fmt.Errorf("%s min qty: %w", s.Symbol, err)
			}
			step, err := decimal.NewFromString(lot.StepSize)
			if err != nil {
				return nil, fmt.Errorf("%s step size: %w", s.Symbol, err)
			}
			inst.MinQty = minQty.InexactFloat64()
			inst.QtyStep = step.InexactFloat64()
		}
		out = append(out, inst)
	}
	return out, nil
}

// parseBook turns venue price strings into a quote. Empty or non-positive
// sides mean the book is not usable this tick.
func parseBook(handle, bid, ask string, at time.Time) (optional.Option[market.Quote], error) {
	if bid == "" || ask == "" {
		return none(), nil
	}
	b, err := decimal.NewFromString(bid)
	if err != nil {
		return none(), fmt.Errorf("%s bid %q: %w", handle, bid, err)
	}
	a, err := decimal.NewFromString(ask)
	if err != nil {
		return none(), fmt.Errorf("%s ask %q: %w", handle, ask, err)
	}
	if !b.IsPositive() || !a.IsPositive() {
		return none(), nil
	}
	return some(market.NewQuote(handle, b.InexactFloat64(), a.InexactFloat64(), at)), nil
}
