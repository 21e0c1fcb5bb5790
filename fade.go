package cyclelife

import (
	"gonum.org/v1/gonum/floats"
)

// CycleSource hands out normalized cycles and their discharge windows by 1-based
// cycle number.
type CycleSource interface {
	Cycle(index int) (*Cycle, error)
	Discharge(index int) (*Cycle, PhaseWindow, error)
	Len() int
}

// MaxDischargeCapacity is the largest discharge-capacity sample inside the discharge
// window.
func MaxDischargeCapacity(c *Cycle, w PhaseWindow) (float64, error) {
	if c == nil || c.DischargeCapacity == nil {
		return 0, insufficient("max discharge capacity", 0, 1)
	}
	values := w.Take(c.DischargeCapacity)
	best := 0.0
	found := false
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	if !found {
		return 0, insufficient("max discharge capacity", 0, 1)
	}
	return best, nil
}

// DischargeCapacitySeries returns, for cycles from..to inclusive, the maximum
// discharge capacity of each cycle. Cycles without usable data contribute 0, and
// values above ceiling are treated as outliers and clamped to 0.
func DischargeCapacitySeries(src CycleSource, from, to int, ceiling float64) []float64 {
	if to < from {
		return nil
	}
	out := make([]float64, 0, to-from+1)
	for i := from; i <= to; i++ {
		c, w, err := src.Discharge(i)
		if err != nil {
			out = append(out, 0)
			continue
		}
		v, err := MaxDischargeCapacity(c, w)
		if err != nil || (ceiling > 0 && v > ceiling) {
			v = 0
		}
		out = append(out, v)
	}
	return out
}

// CycleNumbers is from, from+1, ..., from+n-1 as floats, the x axis of a fade fit.
func CycleNumbers(from, n int) []float64 {
	if n <= 0 {
		return nil
	}
	return floats.Span(make([]float64, n), float64(from), float64(from+n-1))
}

// LinearTrend fits capacity = slope*cycle + intercept.
func LinearTrend(cycles, series []float64) (slope, intercept float64, err error) {
	return LinearFit(cycles, series)
}

// CycleOfMaximum is the cycle number of the first maximum of series, whose first
// element belongs to cycle firstCycle.
func CycleOfMaximum(series []float64, firstCycle int) (int, error) {
	if len(series) == 0 {
		return 0, insufficient("cycle of maximum", 0, 1)
	}
	clean := make([]float64, len(series))
	for i, v := range series {
		if isFinite(v) {
			clean[i] = v
		}
	}
	return floats.MaxIdx(clean) + firstCycle, nil
}
