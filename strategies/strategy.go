package strategies

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/papertrader/market"
)

// Action is what a strategy asks the orchestrator to do.
type Action string

const (
	None Action = "none"
	Buy  Action = "buy"
	Sell Action = "sell"
)

// Signal is the output of one tick. Notional is the intended entry size in
// quote currency; exits carry no notional and close the whole position.
type Signal struct {
	Action   Action
	Notional float64
	Reason   string
}

func hold() Signal { return Signal{Action: None} }

// Strategy is a per-instrument decision engine. It is a pure function of the
// quotes it has consumed and the state it was restored from.
type Strategy interface {
	Name() string
	OnTick(q market.Quote) Signal
	Snapshot() (json.RawMessage, error)
	Restore(snap json.RawMessage) error
}

// Syncer is implemented by strategies that track their own exposure and can
// realign it with the ledger's position.
type Syncer interface {
	Sync(position float64)
}

// Factory builds a fresh strategy from params.
type Factory func(p Params) (Strategy, error)

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrInvalidParams   = errors.New("invalid strategy parameters")

	registry = map[string]Factory{}
)

func init() {
	Register("noop", func(Params) (Strategy, error) { return Noop{}, nil })
	Register("none", func(Params) (Strategy, error) { return Noop{}, nil })
	Register(AdaptiveEMAName, func(p Params) (Strategy, error) { return NewAdaptiveEMA(p) })
}

// Register makes a strategy available to New under name.
func Register(name string, f Factory) {
	registry[strings.ToLower(strings.TrimSpace(name))] = f
}

// Names lists the registered strategies.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New builds the strategy registered under name.
func New(name string, p Params) (Strategy, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownStrategy, name, strings.Join(Names(), ", "))
	}
	return f(p)
}
