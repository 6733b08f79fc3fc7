package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyFill(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		start        Position
		qty          float64
		price        float64
		want         Position
		wantRealized float64
	}{
		{
			name:  "open long from flat",
			start: Position{},
			qty:   2,
			price: 100,
			want:  Position{Quantity: 2, EntryPrice: 100},
		},
		{
			name:  "increase long averages entry",
			start: Position{Quantity: 2, EntryPrice: 100},
			qty:   2,
			price: 110,
			want:  Position{Quantity: 4, EntryPrice: 105},
		},
		{
			name:         "partial reduce keeps entry",
			start:        Position{Quantity: 4, EntryPrice: 105},
			qty:          -1,
			price:        115,
			want:         Position{Quantity: 3, EntryPrice: 105},
			wantRealized: 10,
		},
		{
			name:         "full close resets entry",
			start:        Position{Quantity: 3, EntryPrice: 105},
			qty:          -3,
			price:        100,
			want:         Position{},
			wantRealized: -15,
		},
		{
			name:         "flip long to short",
			start:        Position{Quantity: 2, EntryPrice: 100},
			qty:          -3,
			price:        110,
			want:         Position{Quantity: -1, EntryPrice: 110},
			wantRealized: 20,
		},
		{
			name:         "flip short to long",
			start:        Position{Quantity: -2, EntryPrice: 50},
			qty:          5,
			price:        40,
			want:         Position{Quantity: 3, EntryPrice: 40},
			wantRealized: 20,
		},
		{
			name:  "increase short averages entry",
			start: Position{Quantity: -1, EntryPrice: 100},
			qty:   -3,
			price: 80,
			want:  Position{Quantity: -4, EntryPrice: 85},
		},
		{
			name:  "zero fill is a no-op",
			start: Position{Quantity: 1, EntryPrice: 10},
			qty:   0,
			price: 99,
			want:  Position{Quantity: 1, EntryPrice: 10},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, realized := ApplyFill(tt.start, tt.qty, tt.price)
			assert.InDelta(t, tt.want.Quantity, got.Quantity, 1e-12)
			assert.InDelta(t, tt.want.EntryPrice, got.EntryPrice, 1e-9)
			assert.InDelta(t, tt.wantRealized, realized, 1e-9)
		})
	}
}

func TestApplyFillSnapsDustToFlat(t *testing.T) {
	p, _ := ApplyFill(Position{Quantity: 0.3, EntryPrice: 10}, -0.1, 10)
	p, _ = ApplyFill(p, -0.2, 10)
	assert.Equal(t, 0.0, p.Quantity)
	assert.Equal(t, 0.0, p.EntryPrice)
}

func TestUnrealizedPL(t *testing.T) {
	assert.Equal(t, 0.0, UnrealizedPL(Position{}, 123))
	assert.InDelta(t, 20.0, UnrealizedPL(Position{Quantity: 2, EntryPrice: 100}, 110), 1e-12)
	assert.InDelta(t, 10.0, UnrealizedPL(Position{Quantity: -1, EntryPrice: 110}, 100), 1e-12)
}
