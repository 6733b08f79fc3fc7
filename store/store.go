package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/logger"
	"go.uber.org/zap"
)

var ErrOutOfOrder = errors.New("trade is older than the last logged trade")

// Meta describes the persisted state itself.
type Meta struct {
	CreatedAt   time.Time `json:"created_at"`
	Environment string    `json:"environment"`
	SessionID   string    `json:"session_id,omitempty"`
	DayStart    DayAnchor `json:"day_start"`
}

// blob is the persisted layout.
type blob struct {
	Meta    Meta             `json:"meta"`
	Deposit float64          `json:"deposit"`
	Cash    float64          `json:"cash"`
	Books   map[string]*Book `json:"books"`
}

// LoadOptions control how state is initialized at startup.
type LoadOptions struct {
	Deposit     float64
	Environment string
	SessionID   string
	Reset       bool
	Now         time.Time
}

// Store maps instruments to books and owns the global ledger. It is not safe
// for concurrent use; the trading loop is its only writer.
type Store struct {
	persister Persister
	log       *logger.Logger
	meta      Meta
	ledger    *Ledger
	books     map[string]*Book
}

func New(p Persister, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{
		persister: p,
		log:       log.Named("store"),
		ledger:    &Ledger{},
		books:     make(map[string]*Book),
	}
}

// Load initializes state from the persister. A missing or undecodable blob,
// or a requested reset, yields a fresh ledger funded with the deposit.
// Persister read failures are logged and also fall back to fresh state.
func (s *Store) Load(ctx context.Context, opts LoadOptions) error {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	if opts.Reset {
		s.log.Info("state reset requested")
		s.fresh(opts)
		return nil
	}

	data, err := s.persister.Load(ctx)
	if err != nil {
		s.log.Warn("load state failed, starting fresh", zap.Error(err))
		s.fresh(opts)
		return nil
	}
	if len(data) == 0 {
		s.fresh(opts)
		return nil
	}

	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		s.log.Warn("decode state failed, starting fresh", zap.Error(err))
		s.fresh(opts)
		return nil
	}

	s.meta = b.Meta
	if opts.SessionID != "" {
		s.meta.SessionID = opts.SessionID
	}
	s.ledger = &Ledger{Deposit: b.Deposit, Cash: b.Cash, DayStart: b.Meta.DayStart}
	s.books = make(map[string]*Book, len(b.Books))
	for name, book := range b.Books {
		if book == nil {
			book = newBook()
		}
		if book.Trades == nil {
			book.Trades = []broker.Trade{}
		}
		s.books[name] = book
	}

	s.log.Info("state loaded",
		zap.Time("created_at", s.meta.CreatedAt),
		zap.String("environment", s.meta.Environment),
		zap.Float64("cash", s.ledger.Cash),
		zap.Int("books", len(s.books)),
	)
	return nil
}

func (s *Store) fresh(opts LoadOptions) {
	s.meta = Meta{
		CreatedAt:   opts.Now.UTC(),
		Environment: opts.Environment,
		SessionID:   opts.SessionID,
	}
	s.ledger = &Ledger{Deposit: opts.Deposit, Cash: opts.Deposit}
	s.books = make(map[string]*Book)
}

// Save encodes and writes the full state.
func (s *Store) Save(ctx context.Context) error {
	data, err := s.Encode()
	if err != nil {
		return err
	}
	if err := s.persister.Save(ctx, data); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Encode returns the persisted representation of the current state.
func (s *Store) Encode() ([]byte, error) {
	meta := s.meta
	meta.DayStart = s.ledger.DayStart
	return json.MarshalIndent(blob{
		Meta:    meta,
		Deposit: s.ledger.Deposit,
		Cash:    s.ledger.Cash,
		Books:   s.books,
	}, "", "  ")
}

// Book returns the instrument's book, creating an empty one on first use.
func (s *Store) Book(instrument string) *Book {
	b, ok := s.books[instrument]
	if !ok {
		b = newBook()
		s.books[instrument] = b
	}
	return b
}

// Lookup returns the book without creating it.
func (s *Store) Lookup(instrument string) (*Book, bool) {
	b, ok := s.books[instrument]
	return b, ok
}

// Instruments returns the instruments with a book, sorted.
func (s *Store) Instruments() []string {
	out := make([]string, 0, len(s.books))
	for name := range s.books {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Ledger() *Ledger { return s.ledger }

func (s *Store) Meta() Meta {
	m := s.meta
	m.DayStart = s.ledger.DayStart
	return m
}

// AppendTrade appends to the instrument's trade log and saves synchronously.
// A save failure is logged; the in-memory log stays authoritative.
func (s *Store) AppendTrade(ctx context.Context, instrument string, t broker.Trade) error {
	b := s.Book(instrument)
	if last := b.LastTradeTime(); !last.IsZero() && t.Time.Before(last) {
		return fmt.Errorf("%s: %w", instrument, ErrOutOfOrder)
	}
	b.Trades = append(b.Trades, t)
	s.persist(ctx, instrument, t.ID)
	return nil
}

// RecordFill books a fill priced against the instrument's current book.
// next is the position after the fill. The ordering check runs first; on
// success the position, realized PnL, fees, cash and trade log move together
// and the state is saved. Nothing changes when the check fails.
func (s *Store) RecordFill(ctx context.Context, instrument string, t broker.Trade, next broker.Position) error {
	b := s.Book(instrument)
	if last := b.LastTradeTime(); !last.IsZero() && t.Time.Before(last) {
		return fmt.Errorf("%s: %w", instrument, ErrOutOfOrder)
	}

	b.SetPos(next)
	b.RealizedPnL += t.Realized
	b.FeesPaid += t.Fee
	s.ledger.Cash -= t.Notional
	s.ledger.Cash -= t.Fee
	b.Trades = append(b.Trades, t)

	s.persist(ctx, instrument, t.ID)
	return nil
}

func (s *Store) persist(ctx context.Context, instrument, tradeID string) {
	if err := s.Save(ctx); err != nil {
		s.log.Warn("persist after trade failed",
			zap.String("instrument", instrument),
			zap.String("trade_id", tradeID),
			zap.Error(err),
		)
	}
}

func (s *Store) SetSnapshot(instrument string, snap json.RawMessage) {
	s.Book(instrument).Snapshot = snap
}

func (s *Store) Snapshot(instrument string) json.RawMessage {
	b, ok := s.books[instrument]
	if !ok {
		return nil
	}
	return b.Snapshot
}

// Totals aggregates the account across all books.
type Totals struct {
	Deposit     float64
	Cash        float64
	Realized    float64
	Unrealized  float64
	Fees        float64
	MarketValue float64
	Equity      float64
	Open        int
	Trades      int
}

// Expected is the equity implied by the deposit and the PnL/fee totals.
func (t Totals) Expected() float64 {
	return t.Deposit + t.Realized + t.Unrealized - t.Fees
}

// Totals values every book at its valuation mark. Equity is cash plus the
// market value of open positions, which equals cash plus cost basis plus
// unrealized PnL.
func (s *Store) Totals() Totals {
	t := Totals{Deposit: s.ledger.Deposit, Cash: s.ledger.Cash}
	for _, b := range s.books {
		t.Realized += b.RealizedPnL
		t.Unrealized += b.Unrealized()
		t.Fees += b.FeesPaid
		t.MarketValue += b.MarketValue()
		t.Trades += len(b.Trades)
		if b.Position != 0 {
			t.Open++
		}
	}
	t.Equity = t.Cash + t.MarketValue
	return t
}

// Equity is shorthand for Totals().Equity.
func (s *Store) Equity() float64 {
	return s.Totals().Equity
}

func (s *Store) Close() error {
	return s.persister.Close()
}
