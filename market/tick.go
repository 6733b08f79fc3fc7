package market

import (
	"errors"
	"sync"
	"time"
)

var ErrNoQuote = errors.New("quote not found")

// Quote is a single top-of-book observation for one instrument.
type Quote struct {
	Instrument string
	Time       time.Time
	Bid        float64
	Ask        float64
	Mark       float64
}

// Mid returns the bid/ask midpoint, or the mark when a side is missing.
func (q Quote) Mid() float64 {
	if q.Bid <= 0 || q.Ask <= 0 {
		return q.Mark
	}
	return (q.Bid + q.Ask) / 2
}

func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// NewQuote builds a quote whose mark is the bid/ask midpoint.
func NewQuote(instrument string, bid, ask float64, t time.Time) Quote {
	q := Quote{Instrument: instrument, Time: t, Bid: bid, Ask: ask}
	q.Mark = q.Mid()
	return q
}

// QuoteStore keeps the latest quote per instrument. It is safe for
// concurrent use so streaming feeds can write from their reader goroutine.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

func (qs *QuoteStore) Set(q Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[q.Instrument] = q
}

func (qs *QuoteStore) Get(instr string) (Quote, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	q, ok := qs.quotes[instr]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}

func (qs *QuoteStore) Len() int {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	return len(qs.quotes)
}
