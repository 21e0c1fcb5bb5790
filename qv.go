package cyclelife

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// QVCurve is a discharge capacity-vs-voltage curve sorted by descending voltage.
type QVCurve struct {
	Voltage  []float64
	Capacity []float64
}

// Len is the number of points.
func (q QVCurve) Len() int { return len(q.Voltage) }

// DischargeQVCurve extracts the Q-V curve of the discharge window, keeping samples
// with finite voltage and finite capacity above cfg.MinCapacity.
func DischargeQVCurve(c *Cycle, seg SegmentConfig, cfg QVConfig) (QVCurve, error) {
	if c == nil || c.Voltage == nil || c.DischargeCapacity == nil {
		return QVCurve{}, insufficient("discharge qv curve", 0, cfg.MinPoints)
	}
	w, err := SegmentDischarge(c, seg)
	if err != nil {
		return QVCurve{}, err
	}
	return windowQVCurve(c, w, cfg)
}

// windowQVCurve builds the Q-V curve from an already segmented discharge window.
func windowQVCurve(c *Cycle, w PhaseWindow, cfg QVConfig) (QVCurve, error) {
	if c == nil || c.Voltage == nil || c.DischargeCapacity == nil {
		return QVCurve{}, insufficient("discharge qv curve", 0, cfg.MinPoints)
	}
	type pair struct{ v, q float64 }
	pairs := make([]pair, 0, w.Len())
	for _, i := range w.Indices() {
		v, q := c.Voltage[i], c.DischargeCapacity[i]
		if !isFinite(v) || !isFinite(q) || q <= cfg.MinCapacity {
			continue
		}
		pairs = append(pairs, pair{v, q})
	}
	need := cfg.MinPoints
	if need < 2 {
		need = 2
	}
	if len(pairs) < need {
		return QVCurve{}, insufficient("discharge qv curve", len(pairs), need)
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].v > pairs[j].v })
	out := QVCurve{
		Voltage:  make([]float64, len(pairs)),
		Capacity: make([]float64, len(pairs)),
	}
	for i, p := range pairs {
		out.Voltage[i] = p.v
		out.Capacity[i] = p.q
	}
	return out, nil
}

// DeltaQ is Q_b(V) - Q_a(V) on a cfg.Points grid running from the top to the bottom
// of the common voltage range. Both curves are linearly interpolated and extended
// past their own ends. When both cycles carry Qdlin of equal length and cfg.UseQdlin
// is set, the pre-resampled curves are subtracted directly.
func DeltaQ(a, b *Cycle, seg SegmentConfig, cfg QVConfig) (delta, grid []float64, err error) {
	if delta, grid, ok := qdlinDelta(a, b, cfg); ok {
		return delta, grid, nil
	}

	qa, err := DischargeQVCurve(a, seg, cfg)
	if err != nil {
		return nil, nil, err
	}
	qb, err := DischargeQVCurve(b, seg, cfg)
	if err != nil {
		return nil, nil, err
	}
	return deltaQCurves(qa, qb, cfg)
}

func qdlinDelta(a, b *Cycle, cfg QVConfig) ([]float64, []float64, bool) {
	if !cfg.UseQdlin || a == nil || b == nil || len(a.Qdlin) < 2 || len(a.Qdlin) != len(b.Qdlin) {
		return nil, nil, false
	}
	delta := make([]float64, len(a.Qdlin))
	floats.SubTo(delta, b.Qdlin, a.Qdlin)
	grid := floats.Span(make([]float64, len(a.Qdlin)), cfg.QdlinHigh, cfg.QdlinLow)
	return delta, grid, true
}

func deltaQCurves(qa, qb QVCurve, cfg QVConfig) ([]float64, []float64, error) {
	lo := math.Max(floats.Min(qa.Voltage), floats.Min(qb.Voltage))
	hi := math.Min(floats.Max(qa.Voltage), floats.Max(qb.Voltage))
	if !(hi > lo) {
		return nil, nil, undefinedRange("delta q", "no common voltage range (%.4f..%.4f)", lo, hi)
	}
	if hi-lo < cfg.MinSpan {
		return nil, nil, undefinedRange("delta q", "common voltage span %.4f V below %.4f V", hi-lo, cfg.MinSpan)
	}

	fa, err := ascendingProfile(qa)
	if err != nil {
		return nil, nil, err
	}
	fb, err := ascendingProfile(qb)
	if err != nil {
		return nil, nil, err
	}

	grid := floats.Span(make([]float64, cfg.Points), hi, lo)
	delta := make([]float64, len(grid))
	for i, v := range grid {
		delta[i] = interpolate(fb.Voltage, fb.Capacity, v) - interpolate(fa.Voltage, fa.Capacity, v)
	}
	return delta, grid, nil
}

// ascendingProfile turns a descending Q-V curve into strictly increasing voltage
// knots, averaging the capacity of repeated voltages.
func ascendingProfile(q QVCurve) (QVCurve, error) {
	out := QVCurve{}
	for i := q.Len() - 1; i >= 0; {
		v := q.Voltage[i]
		sum := 0.0
		n := 0
		for i >= 0 && q.Voltage[i] == v {
			sum += q.Capacity[i]
			n++
			i--
		}
		out.Voltage = append(out.Voltage, v)
		out.Capacity = append(out.Capacity, sum/float64(n))
	}
	if out.Len() < 2 {
		return QVCurve{}, &InsufficientDataError{Op: "delta q", Have: out.Len(), Need: 2, Reason: "fewer than two distinct voltages"}
	}
	return out, nil
}

// ValueAtVoltage returns delta at the grid point nearest to v.
func ValueAtVoltage(grid, delta []float64, v float64) (float64, error) {
	if len(grid) == 0 || len(grid) != len(delta) {
		return 0, insufficient("value at voltage", len(grid), 1)
	}
	best := 0
	for i := range grid {
		if math.Abs(grid[i]-v) < math.Abs(grid[best]-v) {
			best = i
		}
	}
	return delta[best], nil
}
