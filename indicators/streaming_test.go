package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExponentialMAStreaming(t *testing.T) {
	prices := []float64{102, 105, 106, 108, 110, 111, 113}

	t.Run("basic functionality", func(t *testing.T) {
		ema := NewEMA(3)
		assert.Equal(t, "EMA(3)", ema.Name())
		assert.Equal(t, 3, ema.Warmup())
		assert.False(t, ema.Ready())
		assert.Equal(t, 0.0, ema.Value())

		// Seeded with the first value
		ema.Update(prices[0])
		assert.InDelta(t, 102.0, ema.Value(), 1e-12)
		assert.False(t, ema.Ready())

		// multiplier = 2/(3+1) = 0.5
		ema.Update(prices[1])
		assert.InDelta(t, 103.5, ema.Value(), 1e-12)

		ema.Update(prices[2])
		assert.True(t, ema.Ready())
		assert.InDelta(t, 104.75, ema.Value(), 1e-12)
	})

	t.Run("reset functionality", func(t *testing.T) {
		ema := NewEMA(2)
		ema.Update(prices[0])
		ema.Update(prices[1])
		assert.True(t, ema.Ready())

		ema.Reset()
		assert.False(t, ema.Ready())
		assert.Equal(t, 0.0, ema.Value())
	})

	t.Run("state round trip continues identically", func(t *testing.T) {
		a := NewEMA(5)
		for _, p := range prices[:4] {
			a.Update(p)
		}

		b := NewEMA(5)
		b.SetState(a.State())

		for _, p := range prices[4:] {
			a.Update(p)
			b.Update(p)
		}
		assert.Equal(t, a.State(), b.State())
	})
}

func TestVolatility(t *testing.T) {
	v := NewVolatility(3)
	assert.Equal(t, "EWVOL(3)", v.Name())

	v.Update(100)
	assert.Equal(t, 0.0, v.Value())

	// first return seeds the estimate: 1% = 100bps
	v.Update(101)
	assert.InDelta(t, 100.0, v.Value(), 1e-9)

	// flat tick decays toward zero by alpha = 0.5
	v.Update(101)
	assert.InDelta(t, 50.0, v.Value(), 1e-9)
	assert.False(t, v.Ready())

	v.Update(101)
	assert.True(t, v.Ready())

	restored := NewVolatility(3)
	restored.SetState(v.State())
	v.Update(102)
	restored.Update(102)
	assert.Equal(t, v.State(), restored.State())
}

func TestWindow(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		w := NewWindow(0)
		w.Update(1)
		assert.False(t, w.Enabled())
		assert.False(t, w.Ready())
		assert.Equal(t, 0, w.Len())
	})

	t.Run("slides", func(t *testing.T) {
		w := NewWindow(3)
		for _, v := range []float64{5, 1, 4, 2} {
			w.Update(v)
		}
		assert.True(t, w.Ready())
		assert.Equal(t, []float64{1, 4, 2}, w.Values())
		assert.Equal(t, 4.0, w.Max())
		assert.Equal(t, 1.0, w.Min())
	})

	t.Run("set values keeps newest", func(t *testing.T) {
		w := NewWindow(2)
		w.SetValues([]float64{1, 2, 3})
		assert.Equal(t, []float64{2, 3}, w.Values())
	})
}

func TestIndicatorInterface(t *testing.T) {
	var _ Indicator = &ExponentialMA{}
	var _ Indicator = &Volatility{}

	assert.InDelta(t, 2.0/21.0, Alpha(20), 1e-12)
	assert.Equal(t, 1.0, Alpha(0))
}
