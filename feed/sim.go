package feed

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rustyeddy/papertrader/market"
)

// SimOptions configures the random-walk feed.
type SimOptions struct {
	Seed      int64
	Start     map[string]float64 // handle -> starting mark
	VolBps    float64            // stddev of each step
	DriftBps  float64
	SpreadBps float64
	GapProb   float64 // probability a call returns no quote
	MinQty    float64
	QtyStep   float64
	Clock     func() time.Time
}

// Sim is a seeded geometric random walk per instrument. Each call to
// GetMarkPrice advances that instrument by one step.
type Sim struct {
	mu    sync.Mutex
	opts  SimOptions
	rng   *rand.Rand
	marks map[string]float64
}

func NewSim(opts SimOptions) *Sim {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	marks := make(map[string]float64, len(opts.Start))
	for h, p := range opts.Start {
		marks[h] = p
	}
	return &Sim{
		opts:  opts,
		rng:   rand.New(rand.NewSource(opts.Seed)),
		marks: marks,
	}
}

func (s *Sim) GetMarkPrice(ctx context.Context, handle string) (optional.Option[market.Quote], error) {
	if err := ctx.Err(); err != nil {
		return none(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mark, ok := s.marks[handle]
	if !ok {
		return none(), nil
	}
	if s.opts.GapProb > 0 && s.rng.Float64() < s.opts.GapProb {
		return none(), nil
	}

	step := (s.opts.DriftBps + s.rng.NormFloat64()*s.opts.VolBps) / market.BPS
	mark *= math.Exp(step)
	s.marks[handle] = mark

	half := mark * s.opts.SpreadBps / market.BPS / 2
	return some(market.NewQuote(handle, mark-half, mark+half, s.opts.Clock())), nil
}

func (s *Sim) Instruments(ctx context.Context) ([]market.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]market.Instrument, 0, len(s.marks))
	for h := range s.marks {
		out = append(out, market.Instrument{
			Symbol:  h,
			Handle:  h,
			MinQty:  s.opts.MinQty,
			QtyStep: s.opts.QtyStep,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *Sim) Close() error { return nil }
