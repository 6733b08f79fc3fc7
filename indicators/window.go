package indicators

// Window is a bounded sliding window over the most recent values.
// A capacity of zero disables it: updates are dropped and Ready is false.
type Window struct {
	size   int
	values []float64
}

func NewWindow(size int) *Window {
	if size < 0 {
		size = 0
	}
	return &Window{size: size, values: make([]float64, 0, size)}
}

func (w *Window) Enabled() bool {
	return w.size > 0
}

func (w *Window) Update(v float64) {
	if w.size == 0 {
		return
	}
	if len(w.values) == w.size {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.size-1]
	}
	w.values = append(w.values, v)
}

func (w *Window) Ready() bool {
	return w.size > 0 && len(w.values) == w.size
}

func (w *Window) Len() int {
	return len(w.values)
}

func (w *Window) Max() float64 {
	if len(w.values) == 0 {
		return 0
	}
	m := w.values[0]
	for _, v := range w.values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func (w *Window) Min() float64 {
	if len(w.values) == 0 {
		return 0
	}
	m := w.values[0]
	for _, v := range w.values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Values returns a copy of the window contents, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}

// SetValues replaces the window contents, keeping only the newest values
// when more than the capacity are supplied.
func (w *Window) SetValues(vs []float64) {
	w.values = w.values[:0]
	if w.size == 0 {
		return
	}
	if len(vs) > w.size {
		vs = vs[len(vs)-w.size:]
	}
	w.values = append(w.values, vs...)
}
