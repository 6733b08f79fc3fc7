package indicators

import (
	"fmt"
	"math"
)

// VolatilityState is the serializable state of a Volatility estimator.
type VolatilityState struct {
	Bps   float64 `json:"bps"`
	Prev  float64 `json:"prev"`
	Count int     `json:"count"`
}

// Volatility is an exponentially weighted mean of absolute returns,
// expressed in basis points.
type Volatility struct {
	period int
	alpha  float64
	state  VolatilityState
}

func NewVolatility(period int) *Volatility {
	return &Volatility{period: period, alpha: Alpha(period)}
}

func (v *Volatility) Name() string {
	return fmt.Sprintf("EWVOL(%d)", v.period)
}

func (v *Volatility) Warmup() int {
	return v.period + 1
}

func (v *Volatility) Reset() {
	v.state = VolatilityState{}
}

func (v *Volatility) Update(price float64) {
	if v.state.Count > 0 && v.state.Prev > 0 {
		ret := math.Abs(price-v.state.Prev) / v.state.Prev * 10_000
		if v.state.Count == 1 {
			v.state.Bps = ret
		} else {
			v.state.Bps += v.alpha * (ret - v.state.Bps)
		}
	}
	v.state.Prev = price
	v.state.Count++
}

func (v *Volatility) Ready() bool {
	return v.state.Count >= v.Warmup()
}

func (v *Volatility) Value() float64 {
	return v.state.Bps
}

func (v *Volatility) State() VolatilityState {
	return v.state
}

func (v *Volatility) SetState(s VolatilityState) {
	v.state = s
}
