package risk

import (
	"testing"

	"github.com/rustyeddy/papertrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		qty  float64
		step float64
		want float64
	}{
		{"no_step", 1.23456, 0, 1.23456},
		{"thousandth", 1.23456, 0.001, 1.234},
		{"whole", 7.9, 1, 7},
		{"exact", 0.3, 0.1, 0.3},
		{"below_step", 0.0004, 0.001, 0},
		{"negative", -1, 0.1, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, RoundStep(tt.qty, tt.step), 1e-12)
		})
	}
}

func TestEntryQuantity(t *testing.T) {
	t.Parallel()

	btc := market.Instrument{Symbol: "BTCUSDT", MinQty: 0.0001, QtyStep: 0.0001}

	qty, err := EntryQuantity(100, 60_000, btc, 1.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.0016, qty, 1e-12)

	// 10 / 60000 floors to a single step worth 6, within 1.5x
	qty, err = EntryQuantity(10, 60_000, btc, 1.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.0001, qty, 1e-12)

	// the minimum costs 6, far above 1 * 1.5
	_, err = EntryQuantity(1, 60_000, btc, 1.5)
	assert.ErrorIs(t, err, ErrOvershoot)

	// no overshoot policy accepts the floor
	qty, err = EntryQuantity(1, 60_000, btc, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.0001, qty, 1e-12)

	_, err = EntryQuantity(1, 60_000, market.Instrument{Symbol: "X", QtyStep: 1}, 0)
	assert.ErrorIs(t, err, ErrZeroQuantity)

	_, err = EntryQuantity(0, 100, btc, 0)
	assert.ErrorIs(t, err, ErrZeroQuantity)
}
