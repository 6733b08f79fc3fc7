// Package feed supplies marks for the trading loop and resolves the
// configured universe against a venue.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/moznion/go-optional"
	"github.com/rustyeddy/papertrader/market"
)

var (
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrUnknownFeed       = errors.New("unknown feed")
)

// Wildcard selects every instrument the venue lists.
const Wildcard = "all"

// Feed returns the current quote for a venue handle. A missing quote is
// None, not an error.
type Feed interface {
	GetMarkPrice(ctx context.Context, handle string) (optional.Option[market.Quote], error)
	Close() error
}

// Lister enumerates the instruments a venue offers.
type Lister interface {
	Instruments(ctx context.Context) ([]market.Instrument, error)
}

// Source is a feed that can also resolve its own universe.
type Source interface {
	Feed
	Lister
}

// Resolve maps configured symbols to venue instruments in configured order.
// A symbol equal to Wildcard selects everything listed, sorted by symbol.
// max > 0 clamps the result. Unresolved symbols fail with
// ErrUnknownInstrument.
func Resolve(ctx context.Context, l Lister, symbols []string, max int) ([]market.Instrument, error) {
	listed, err := l.Instruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}

	var out []market.Instrument
	if wantsAll(symbols) {
		out = append(out, listed...)
		sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	} else {
		index := make(map[string]market.Instrument, 2*len(listed))
		for _, inst := range listed {
			index[market.Normalize(inst.Handle)] = inst
			index[market.Normalize(inst.Symbol)] = inst
		}

		seen := map[string]bool{}
		var missing []string
		for _, sym := range symbols {
			inst, ok := index[market.Normalize(sym)]
			if !ok {
				missing = append(missing, sym)
				continue
			}
			if seen[inst.Handle] {
				continue
			}
			seen[inst.Handle] = true
			out = append(out, inst)
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, strings.Join(missing, ", "))
		}
	}

	if max > 0 && len(out) > max {
		out = out[:max]
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty universe", ErrUnknownInstrument)
	}
	return out, nil
}

func wantsAll(symbols []string) bool {
	for _, s := range symbols {
		if strings.EqualFold(strings.TrimSpace(s), Wildcard) {
			return true
		}
	}
	return false
}

func some(q market.Quote) optional.Option[market.Quote] {
	return optional.Some(q)
}

func none() optional.Option[market.Quote] {
	return optional.None[market.Quote]()
}
