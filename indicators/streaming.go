package indicators

import "fmt"

// EMAState is the serializable state of an ExponentialMA.
type EMAState struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// ExponentialMA is a streaming exponential moving average seeded with the
// first observed value.
type ExponentialMA struct {
	period int
	alpha  float64
	state  EMAState
}

// NewEMA creates a new Exponential Moving Average indicator with the given period
func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{
		period: period,
		alpha:  Alpha(period),
	}
}

func (e *ExponentialMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

func (e *ExponentialMA) Warmup() int {
	return e.period
}

func (e *ExponentialMA) Reset() {
	e.state = EMAState{}
}

func (e *ExponentialMA) Update(v float64) {
	if e.state.Count == 0 {
		e.state.Value = v
	} else {
		e.state.Value += e.alpha * (v - e.state.Value)
	}
	e.state.Count++
}

func (e *ExponentialMA) Ready() bool {
	return e.state.Count >= e.period
}

// Value returns the current average. Unlike a warm-up seeded SMA the value is
// defined from the first update on.
func (e *ExponentialMA) Value() float64 {
	return e.state.Value
}

func (e *ExponentialMA) State() EMAState {
	return e.state
}

func (e *ExponentialMA) SetState(s EMAState) {
	e.state = s
}
