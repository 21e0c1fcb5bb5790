package cyclelife

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// PhaseKind tags a PhaseWindow.
type PhaseKind int

const (
	PhaseCharge PhaseKind = iota
	PhaseCC
	PhaseCV
	PhaseDischarge
	PhaseRest
)

func (k PhaseKind) String() string {
	switch k {
	case PhaseCharge:
		return "charge"
	case PhaseCC:
		return "CC"
	case PhaseCV:
		return "CV"
	case PhaseDischarge:
		return "discharge"
	case PhaseRest:
		return "rest"
	default:
		return "unknown"
	}
}

// PhaseWindow is the half-open sample range [Start, End) of one phase. Windows
// selected by a current mask also keep the member indices, which may skip samples
// inside the range.
type PhaseWindow struct {
	Kind  PhaseKind
	Start int
	End   int

	members []int
}

func maskedWindow(kind PhaseKind, members []int) PhaseWindow {
	if len(members) == 0 {
		return PhaseWindow{Kind: kind}
	}
	return PhaseWindow{
		Kind:    kind,
		Start:   members[0],
		End:     members[len(members)-1] + 1,
		members: members,
	}
}

// Len is the number of samples in the window.
func (w PhaseWindow) Len() int {
	if w.members != nil {
		return len(w.members)
	}
	if w.End <= w.Start {
		return 0
	}
	return w.End - w.Start
}

// Empty reports whether the window holds no samples.
func (w PhaseWindow) Empty() bool { return w.Len() == 0 }

// Indices lists the sample indices of the window in order.
func (w PhaseWindow) Indices() []int {
	if w.members != nil {
		return w.members
	}
	out := make([]int, 0, w.Len())
	for i := w.Start; i < w.End; i++ {
		out = append(out, i)
	}
	return out
}

// Take gathers x at the window's indices. A nil x (absent field) gives nil.
func (w PhaseWindow) Take(x []float64) []float64 {
	if x == nil {
		return nil
	}
	idx := w.Indices()
	out := make([]float64, 0, len(idx))
	for _, i := range idx {
		if i < len(x) {
			out = append(out, x[i])
		}
	}
	return out
}

// First and Last return the first and last sample index, -1 when empty.
func (w PhaseWindow) First() int {
	idx := w.Indices()
	if len(idx) == 0 {
		return -1
	}
	return idx[0]
}

func (w PhaseWindow) Last() int {
	idx := w.Indices()
	if len(idx) == 0 {
		return -1
	}
	return idx[len(idx)-1]
}

func (w PhaseWindow) split(at int, left, right PhaseKind) (PhaseWindow, PhaseWindow) {
	idx := w.Indices()
	return maskedWindow(left, idx[:at]), maskedWindow(right, idx[at:])
}

// ChargePhases is the result of the CC/CV split. Bisected is set when no current
// step exceeded the threshold and the charge step was cut at its midpoint.
type ChargePhases struct {
	Charge   PhaseWindow
	CC       PhaseWindow
	CV       PhaseWindow
	Bisected bool
}

// ChargeWindow selects the samples with positive current.
func ChargeWindow(c *Cycle, cfg SegmentConfig) (PhaseWindow, error) {
	if c == nil || c.Current == nil {
		return PhaseWindow{}, insufficient("charge window", 0, cfg.MinChargeSamples)
	}
	members := make([]int, 0, len(c.Current))
	for i, v := range c.Current {
		if v > 0 {
			members = append(members, i)
		}
	}
	minSamples := cfg.MinChargeSamples
	if minSamples < 2 {
		minSamples = 2
	}
	if len(members) < minSamples {
		return PhaseWindow{}, insufficient("charge window", len(members), minSamples)
	}
	return maskedWindow(PhaseCharge, members), nil
}

// SegmentCharge splits the charge step into CC and CV. The boundary is the first
// charge sample that follows a current step larger than ThresholdFactor times the
// population standard deviation of the charge current.
func SegmentCharge(c *Cycle, cfg SegmentConfig) (ChargePhases, error) {
	charge, err := ChargeWindow(c, cfg)
	if err != nil {
		return ChargePhases{}, err
	}
	current := charge.Take(c.Current)
	boundary := currentStepIndex(current, cfg.ThresholdFactor)
	bisected := false
	if boundary < 0 {
		if !cfg.MidpointFallback {
			return ChargePhases{}, undefinedRange("segment charge", "no current step above %.3g sigma", cfg.ThresholdFactor)
		}
		boundary = len(current) / 2
		bisected = true
	}
	cc, cv := charge.split(boundary, PhaseCC, PhaseCV)
	return ChargePhases{
		Charge:   charge,
		CC:       cc,
		CV:       cv,
		Bisected: bisected,
	}, nil
}

// currentStepIndex returns the index of the first sample after a step larger than
// factor*sigma, or -1.
func currentStepIndex(current []float64, factor float64) int {
	if len(current) < 2 {
		return -1
	}
	sigma := math.Sqrt(stat.PopVariance(current, nil))
	if !isFinite(sigma) || sigma == 0 {
		return -1
	}
	threshold := factor * sigma
	for i := 0; i+1 < len(current); i++ {
		if math.Abs(current[i+1]-current[i]) > threshold {
			return i + 1
		}
	}
	return -1
}

// SegmentDischarge selects the samples with current below -DischargeEpsilon.
func SegmentDischarge(c *Cycle, cfg SegmentConfig) (PhaseWindow, error) {
	if c == nil || c.Current == nil {
		return PhaseWindow{}, undefinedRange("segment discharge", "no current data")
	}
	members := make([]int, 0, len(c.Current))
	for i, v := range c.Current {
		if v < -cfg.DischargeEpsilon {
			members = append(members, i)
		}
	}
	if len(members) == 0 {
		return PhaseWindow{}, undefinedRange("segment discharge", "no sample below %.3g A", -cfg.DischargeEpsilon)
	}
	return maskedWindow(PhaseDischarge, members), nil
}

// SegmentRest finds the run of near-zero current that starts right after the given
// window. It reports false when the run is too short in samples or in time.
func SegmentRest(c *Cycle, after PhaseWindow, cfg SegmentConfig) (PhaseWindow, bool) {
	if c == nil || c.Current == nil || c.Time == nil || after.Empty() {
		return PhaseWindow{}, false
	}
	start := after.End
	end := start
	for end < len(c.Current) && math.Abs(c.Current[end]) < cfg.RestCurrentEpsilon {
		end++
	}
	if end-start < cfg.MinRestSamples || end-start < 2 {
		return PhaseWindow{}, false
	}
	if c.Time[end-1]-c.Time[start] < cfg.MinRestSeconds {
		return PhaseWindow{}, false
	}
	return PhaseWindow{Kind: PhaseRest, Start: start, End: end}, true
}
