package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/logger"
	"github.com/rustyeddy/papertrader/oanda"
)

const (
	KindSim           = "sim"
	KindBinance       = "binance"
	KindBinanceStream = "binance-stream"
	KindOANDA         = "oanda"
)

// Options selects and configures a feed.
type Options struct {
	Kind string

	BinanceURL   string
	QuoteAsset   string
	StreamURL    string
	StreamMaxAge time.Duration

	OANDAToken    string
	OANDAAccount  string
	OANDAPractice bool
	OANDAURL      string

	Sim SimOptions
}

// Starter is implemented by feeds that must subscribe to the resolved
// universe before serving quotes.
type Starter interface {
	Start(ctx context.Context, handles []string) error
}

// Open builds the feed named by opts.Kind.
func Open(ctx context.Context, opts Options, log *logger.Logger) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case KindSim, "":
		return NewSim(opts.Sim), nil

	case KindBinance:
		return NewBinance(NewBinanceAPI(opts.BinanceURL), opts.QuoteAsset), nil

	case KindBinanceStream:
		rest := NewBinance(NewBinanceAPI(opts.BinanceURL), opts.QuoteAsset)
		return NewStream(StreamOptions{URL: opts.StreamURL, MaxAge: opts.StreamMaxAge}, rest, log), nil

	case KindOANDA:
		c := oanda.NewClient(opts.OANDAToken, opts.OANDAAccount, opts.OANDAPractice)
		if opts.OANDAURL != "" {
			c.WithBaseURL(opts.OANDAURL)
		}
		return NewOANDA(c), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownFeed, opts.Kind)
}
