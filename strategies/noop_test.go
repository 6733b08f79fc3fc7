package strategies

import (
	"testing"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopStrategy_OnTick(t *testing.T) {
	strat := Noop{}

	sig := strat.OnTick(market.NewQuote("BTCUSDT", 99, 101, time.Now()))
	assert.Equal(t, None, sig.Action)

	snap, err := strat.Snapshot()
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, strat.Restore(snap))
}

func TestNew(t *testing.T) {
	s, err := New(" NOOP ", Params{})
	require.NoError(t, err)
	assert.Equal(t, "noop", s.Name())

	s, err = New("adaptive-ema", DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, AdaptiveEMAName, s.Name())

	_, err = New("martingale", Params{})
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	bad := DefaultParams()
	bad.FastPeriod = bad.SlowPeriod
	_, err = New("adaptive-ema", bad)
	assert.ErrorIs(t, err, ErrInvalidParams)

	assert.Contains(t, Names(), "adaptive-ema")
}
