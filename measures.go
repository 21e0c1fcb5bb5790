package cyclelife

import (
	"math"
)

const secondsPerHour = 3600.0

// windowDuration is the time between the first and last sample of w.
func windowDuration(c *Cycle, w PhaseWindow) (float64, error) {
	if c.Time == nil || w.Len() < 2 {
		return 0, insufficient("window duration", w.Len(), 2)
	}
	d := c.Time[w.Last()] - c.Time[w.First()]
	if !isFinite(d) {
		return 0, undefinedRange("window duration", "non-finite time")
	}
	return d, nil
}

// cycleDuration is the time spanned by the whole cycle.
func cycleDuration(c *Cycle) (float64, error) {
	n := len(c.Time)
	if n < 2 {
		return 0, insufficient("cycle duration", n, 2)
	}
	d := c.Time[n-1] - c.Time[0]
	if !isFinite(d) || d < 0 {
		return 0, undefinedRange("cycle duration", "time is not increasing")
	}
	return d, nil
}

// phaseEnergy integrates V*|I| over the window with the trapezoid rule, in Wh.
func phaseEnergy(c *Cycle, w PhaseWindow) (float64, error) {
	if c.Voltage == nil || c.Current == nil || c.Time == nil {
		return 0, insufficient("phase energy", 0, 2)
	}
	idx := w.Indices()
	if len(idx) < 2 {
		return 0, insufficient("phase energy", len(idx), 2)
	}
	power := func(i int) float64 { return c.Voltage[i] * math.Abs(c.Current[i]) }
	total := 0.0
	for j := 1; j < len(idx); j++ {
		p0, p1 := power(idx[j-1]), power(idx[j])
		dt := c.Time[idx[j]] - c.Time[idx[j-1]]
		if !isFinite(p0) || !isFinite(p1) || !isFinite(dt) {
			continue
		}
		total += 0.5 * (p0 + p1) * dt
	}
	return total / secondsPerHour, nil
}

// capacityMoved is max-min of a cumulative capacity series inside w.
func capacityMoved(capacity []float64, w PhaseWindow) (float64, error) {
	values := w.Take(capacity)
	lo, hi, ok := finiteRange(values)
	if !ok {
		return 0, insufficient("capacity moved", 0, 1)
	}
	return hi - lo, nil
}

// trapezoid integrates y over t, skipping non-finite segments.
func trapezoid(t, y []float64) float64 {
	total := 0.0
	for i := 1; i < len(t) && i < len(y); i++ {
		dt := t[i] - t[i-1]
		seg := 0.5 * (y[i] + y[i-1]) * dt
		if isFinite(seg) {
			total += seg
		}
	}
	return total
}

// finiteRange is the min and max of the finite values.
func finiteRange(values []float64) (lo, hi float64, ok bool) {
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, ok
}

// finiteValues drops NaN and Inf.
func finiteValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

// slopeOver fits y against time over the given sample indices.
func slopeOver(c *Cycle, y []float64, idx []int) (float64, error) {
	if c.Time == nil || y == nil {
		return 0, insufficient("slope", 0, 2)
	}
	t := make([]float64, 0, len(idx))
	v := make([]float64, 0, len(idx))
	for _, i := range idx {
		if isFinite(c.Time[i]) && isFinite(y[i]) {
			t = append(t, c.Time[i])
			v = append(v, y[i])
		}
	}
	slope, _, err := LinearFit(t, v)
	return slope, err
}

func safeDiv(num, den float64) (float64, error) {
	if den == 0 || !isFinite(den) {
		return 0, undefinedRange("ratio", "zero denominator")
	}
	return num / den, nil
}
