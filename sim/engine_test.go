package sim

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/logger"
	"github.com/rustyeddy/papertrader/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, deposit float64, c Costs) (*Engine, *store.Store, *store.MemoryPersister) {
	t.Helper()
	mem := store.NewMemory()
	s := store.New(mem, logger.NewNop())
	require.NoError(t, s.Load(context.Background(), store.LoadOptions{Deposit: deposit, Now: t0}))
	return NewEngine(s, c, logger.NewNop()), s, mem
}

func order(side broker.Side, qty, mark float64, at time.Time) broker.Order {
	return broker.Order{
		Instrument: "BTCUSDT",
		Side:       side,
		Quantity:   qty,
		Mark:       mark,
		Time:       at,
	}
}

func TestExecuteFlipScenario(t *testing.T) {
	e, s, _ := newEngine(t, 10_000, Costs{})
	ctx := context.Background()

	fill, err := e.Execute(ctx, order(broker.Buy, 2, 100, t0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, fill.Realized)
	assert.Equal(t, 200.0, fill.Trade.Notional)

	fill, err = e.Execute(ctx, order(broker.Sell, 3, 110, t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.InDelta(t, 20.0, fill.Realized, 1e-9)
	assert.InDelta(t, -330.0, fill.Trade.Notional, 1e-9)

	b := s.Book("BTCUSDT")
	assert.Equal(t, -1.0, b.Position)
	assert.Equal(t, 110.0, b.EntryPrice)
	assert.InDelta(t, 20.0, b.RealizedPnL, 1e-9)
	assert.InDelta(t, 10_130.0, s.Ledger().Cash, 1e-9)
	require.Len(t, b.Trades, 2)
	assert.Equal(t, 20.0, b.Trades[1].Realized)

	b.LastMark = 110
	tot := s.Totals()
	assert.InDelta(t, 10_020.0, tot.Equity, 1e-9)
	assert.InDelta(t, tot.Expected(), tot.Equity, 1e-9)
}

func TestExecuteSlippageAndFees(t *testing.T) {
	e, s, _ := newEngine(t, 10_000, Costs{SlippageBps: 10, FeeBps: 10})
	ctx := context.Background()

	buy, err := e.Execute(ctx, order(broker.Buy, 1, 100, t0))
	require.NoError(t, err)
	assert.InDelta(t, 100.1, buy.Trade.Price, 1e-9)
	assert.InDelta(t, 0.1001, buy.Trade.Fee, 1e-12)
	assert.InDelta(t, 10_000-100.1-0.1001, s.Ledger().Cash, 1e-9)

	sell, err := e.Execute(ctx, order(broker.Sell, 1, 100, t0.Add(time.Second)))
	require.NoError(t, err)
	assert.InDelta(t, 99.9, sell.Trade.Price, 1e-9)
	assert.InDelta(t, 0.0999, sell.Trade.Fee, 1e-12)
	assert.InDelta(t, -0.2, sell.Realized, 1e-9)

	b := s.Book("BTCUSDT")
	assert.Equal(t, 0.0, b.Position)
	assert.Equal(t, 0.0, b.EntryPrice)
	assert.InDelta(t, 0.2, b.FeesPaid, 1e-12)
	assert.InDelta(t, 10_000-0.2-0.2, s.Ledger().Cash, 1e-9)
}

func TestExecuteZeroQuantityIsNoop(t *testing.T) {
	e, s, mem := newEngine(t, 1_000, Costs{FeeBps: 5})

	for _, qty := range []float64{0, -1} {
		fill, err := e.Execute(context.Background(), order(broker.Buy, qty, 100, t0))
		require.NoError(t, err)
		assert.True(t, fill.Empty())
	}

	assert.Equal(t, 1_000.0, s.Ledger().Cash)
	assert.Empty(t, s.Instruments())
	assert.Equal(t, 0, mem.Saves())
}

func TestExecuteRejectsBadOrders(t *testing.T) {
	e, s, _ := newEngine(t, 1_000, Costs{})
	ctx := context.Background()

	_, err := e.Execute(ctx, order("hold", 1, 100, t0))
	assert.ErrorIs(t, err, ErrInvalidSide)

	_, err = e.Execute(ctx, order(broker.Buy, 1, 0, t0))
	assert.ErrorIs(t, err, ErrInvalidMark)

	assert.Equal(t, 1_000.0, s.Ledger().Cash)
	assert.Empty(t, s.Book("BTCUSDT").Trades)
}

func TestExecuteAfterClockStepBack(t *testing.T) {
	e, s, _ := newEngine(t, 1_000, Costs{})
	ctx := context.Background()

	_, err := e.Execute(ctx, order(broker.Buy, 1, 100, t0))
	require.NoError(t, err)

	// the exit is stamped before the entry; it must still close the position
	fill, err := e.Execute(ctx, order(broker.Sell, 1, 105, t0.Add(-2*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, t0, fill.Trade.Time)
	assert.InDelta(t, 5.0, fill.Realized, 1e-9)

	b := s.Book("BTCUSDT")
	assert.Zero(t, b.Position)
	require.Len(t, b.Trades, 2)
	assert.False(t, b.Trades[1].Time.Before(b.Trades[0].Time))
	assert.Less(t, b.Trades[0].ID, b.Trades[1].ID)
	assert.InDelta(t, 1_005.0, s.Ledger().Cash, 1e-9)
}

func TestExecutePersistsEachFill(t *testing.T) {
	e, _, mem := newEngine(t, 1_000, Costs{})

	_, err := e.Execute(context.Background(), order(broker.Buy, 1, 10, t0))
	require.NoError(t, err)
	assert.Equal(t, 1, mem.Saves())

	data, err := mem.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"BTCUSDT"`)
}

func TestTradeIDsSortWithTime(t *testing.T) {
	e, s, _ := newEngine(t, 10_000, Costs{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := e.Execute(ctx, order(broker.Buy, 0.1, 100, t0.Add(time.Duration(i)*time.Millisecond)))
		require.NoError(t, err)
	}
	trades := s.Book("BTCUSDT").Trades
	for i := 1; i < len(trades); i++ {
		assert.Less(t, trades[i-1].ID, trades[i].ID)
	}
}

// Equity must equal deposit plus realized plus unrealized minus fees after
// any sequence of fills, including reversals.
func TestLedgerIdentityUnderRandomFills(t *testing.T) {
	e, s, _ := newEngine(t, 50_000, Costs{SlippageBps: 3, FeeBps: 7.5})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	instruments := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	marks := map[string]float64{"BTCUSDT": 100, "ETHUSDT": 50, "SOLUSDT": 10}
	at := t0

	for i := 0; i < 500; i++ {
		instr := instruments[rng.Intn(len(instruments))]
		marks[instr] *= 1 + (rng.Float64()-0.5)*0.02
		at = at.Add(time.Second)

		side := broker.Buy
		if rng.Intn(2) == 0 {
			side = broker.Sell
		}
		o := broker.Order{
			Instrument: instr,
			Side:       side,
			Quantity:   math.Round(rng.Float64()*500) / 100,
			Mark:       marks[instr],
			Time:       at,
		}
		_, err := e.Execute(ctx, o)
		require.NoError(t, err)
		s.Book(instr).LastMark = marks[instr]

		tot := s.Totals()
		require.InDelta(t, tot.Expected(), tot.Equity, 1e-6*50_000, "step %d", i)
	}

	for _, instr := range instruments {
		b := s.Book(instr)
		if b.Position == 0 {
			assert.Equal(t, 0.0, b.EntryPrice, instr)
		} else {
			assert.Greater(t, b.EntryPrice, 0.0, instr)
		}
	}
}

func TestUnrealizedPL(t *testing.T) {
	tests := []struct {
		name     string
		book     store.Book
		mark     float64
		expected float64
	}{
		{
			name:     "long_profit",
			book:     store.Book{Position: 2, EntryPrice: 100},
			mark:     105,
			expected: 10,
		},
		{
			name:     "short_profit",
			book:     store.Book{Position: -2, EntryPrice: 100},
			mark:     95,
			expected: 10,
		},
		{
			name:     "short_loss",
			book:     store.Book{Position: -1, EntryPrice: 100},
			mark:     120,
			expected: -20,
		},
		{
			name:     "flat",
			book:     store.Book{},
			mark:     120,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, UnrealizedPL(&tt.book, tt.mark), 1e-9)
		})
	}
}
