package strategies

import (
	"encoding/json"

	"github.com/rustyeddy/papertrader/market"
)

// Noop never trades. It is useful for recording marks without exposure.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnTick(market.Quote) Signal { return hold() }

func (Noop) Snapshot() (json.RawMessage, error) { return nil, nil }

func (Noop) Restore(json.RawMessage) error { return nil }
