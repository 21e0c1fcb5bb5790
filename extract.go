package cyclelife

import (
	"fmt"

	"go.uber.org/zap"
)

// FallbackNote records why a feature holds its fallback value.
type FallbackNote struct {
	Feature string `json:"feature"`
	Reason  string `json:"reason"`
}

// Result is the extraction output for one battery.
type Result struct {
	BatteryID string         `json:"battery_id"`
	Dataset   DatasetKind    `json:"dataset"`
	CycleLife int            `json:"cycle_life"`
	Features  FeatureVector  `json:"features"`
	Fallbacks []FallbackNote `json:"fallbacks,omitempty"`
}

// Extractor evaluates the feature catalogue. It holds no per-battery state and is
// safe for concurrent use.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// NewExtractor validates cfg. A nil logger disables logging.
func NewExtractor(cfg Config, logger *zap.Logger) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, logger: logger}, nil
}

// Config returns the configuration the extractor runs with.
func (e *Extractor) Config() Config { return e.cfg }

// Extract computes the feature vector of b. The only error it returns for a
// well-formed call is *InsufficientCycleCountError; per-feature failures resolve to
// fallbacks listed in Result.Fallbacks.
func (e *Extractor) Extract(b *Battery) (*Result, error) {
	if b == nil {
		return nil, fmt.Errorf("extract: nil battery")
	}
	cfg := e.cfg
	battery := *b
	if battery.Kind == "" {
		battery.Kind = cfg.Dataset
	}
	if n := battery.CycleLife(); n < cfg.MinCycles {
		return nil, &InsufficientCycleCountError{BatteryID: battery.ID, Have: n, Need: cfg.MinCycles}
	}

	x := newExtraction(&battery, &cfg)
	res := &Result{
		BatteryID: battery.ID,
		Dataset:   battery.Kind,
		CycleLife: battery.CycleLife(),
	}
	for i, def := range featureDefs {
		v, note := e.evaluate(def, x)
		res.Features[i] = v
		if note != nil {
			res.Fallbacks = append(res.Fallbacks, *note)
			e.logger.Debug("feature fallback",
				zap.String("battery_id", battery.ID),
				zap.String("feature", note.Feature),
				zap.String("reason", note.Reason),
			)
		}
	}
	return res, nil
}

func (e *Extractor) fallback(def FeatureDef) float64 {
	if v, ok := e.cfg.Fallbacks[def.Name]; ok {
		return v
	}
	return def.Fallback
}

// evaluate runs one definition, turning errors, panics and non-finite results into
// the fallback value.
func (e *Extractor) evaluate(def FeatureDef, x *extraction) (v float64, note *FallbackNote) {
	defer func() {
		if r := recover(); r != nil {
			v = e.fallback(def)
			note = &FallbackNote{Feature: def.Name, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	got, err := def.compute(x)
	if err != nil {
		return e.fallback(def), &FallbackNote{Feature: def.Name, Reason: err.Error()}
	}
	if !isFinite(got) {
		return e.fallback(def), &FallbackNote{Feature: def.Name, Reason: "non-finite result"}
	}
	return got, nil
}

// extraction is the per-battery working state shared by the feature definitions.
type extraction struct {
	cfg    *Config
	cycles *batteryCycles

	dqDone  bool
	dqDelta []float64
	dqGrid  []float64
	dqErr   error

	series map[CycleWindow][]float64

	maxDone  bool
	maxCycle int
	maxErr   error
}

func newExtraction(b *Battery, cfg *Config) *extraction {
	return &extraction{
		cfg:    cfg,
		cycles: newBatteryCycles(b, cfg),
		series: make(map[CycleWindow][]float64),
	}
}

// deltaQ is the Q-V difference between the reference and the target cycle.
func (x *extraction) deltaQ() ([]float64, []float64, error) {
	if x.dqDone {
		return x.dqDelta, x.dqGrid, x.dqErr
	}
	x.dqDone = true
	x.dqDelta, x.dqGrid, x.dqErr = x.computeDeltaQ()
	return x.dqDelta, x.dqGrid, x.dqErr
}

func (x *extraction) computeDeltaQ() ([]float64, []float64, error) {
	a, err := x.cycles.Cycle(x.cfg.ReferenceCycle)
	if err != nil {
		return nil, nil, err
	}
	b, err := x.cycles.Cycle(x.cfg.TargetCycle)
	if err != nil {
		return nil, nil, err
	}
	if delta, grid, ok := qdlinDelta(a, b, x.cfg.QV); ok {
		return delta, grid, nil
	}
	qa, err := x.qvCurve(x.cfg.ReferenceCycle)
	if err != nil {
		return nil, nil, err
	}
	qb, err := x.qvCurve(x.cfg.TargetCycle)
	if err != nil {
		return nil, nil, err
	}
	return deltaQCurves(qa, qb, x.cfg.QV)
}

// qvCurve reads the discharge window from the cycle cache.
func (x *extraction) qvCurve(index int) (QVCurve, error) {
	c, w, err := x.cycles.Discharge(index)
	if err != nil {
		return QVCurve{}, err
	}
	return windowQVCurve(c, w, x.cfg.QV)
}

// capacitySeries is the clamped discharge-capacity series for cycles from..to.
func (x *extraction) capacitySeries(from, to int) []float64 {
	key := CycleWindow{From: from, To: to}
	if s, ok := x.series[key]; ok {
		return s
	}
	s := DischargeCapacitySeries(x.cycles, from, to, x.cfg.CapacityCeiling)
	x.series[key] = s
	return s
}

// capacityAt is the clamped discharge capacity of one cycle.
func (x *extraction) capacityAt(cycle int) (float64, error) {
	v, err := dischargeCapacityMetric(x, cycle)
	if err != nil {
		return 0, err
	}
	if x.cfg.CapacityCeiling > 0 && v > x.cfg.CapacityCeiling {
		return 0, nil
	}
	return v, nil
}

func (x *extraction) maxCapacityCycle() (int, error) {
	if x.maxDone {
		return x.maxCycle, x.maxErr
	}
	x.maxDone = true
	w := x.cfg.MaxCapacityWindow
	series := x.capacitySeries(w.From, w.To)
	if _, hi, ok := finiteRange(series); !ok || hi <= 0 {
		x.maxErr = insufficient("cycle of maximum", 0, 1)
		return 0, x.maxErr
	}
	x.maxCycle, x.maxErr = CycleOfMaximum(series, w.From)
	return x.maxCycle, x.maxErr
}

// phase returns the CC or CV window of a cycle.
func (x *extraction) phase(cycle int, kind PhaseKind) (*Cycle, PhaseWindow, error) {
	c, phases, err := x.cycles.Charge(cycle)
	if err != nil {
		return nil, PhaseWindow{}, err
	}
	switch kind {
	case PhaseCC:
		return c, phases.CC, nil
	case PhaseCV:
		return c, phases.CV, nil
	case PhaseCharge:
		return c, phases.Charge, nil
	default:
		return nil, PhaseWindow{}, fmt.Errorf("phase %s is not a charge phase", kind)
	}
}

// phaseCurve is field f over normalized phase time, downsampled for the distance
// features.
func (x *extraction) phaseCurve(cycle int, kind PhaseKind, f Field) (Curve, error) {
	c, w, err := x.phase(cycle, kind)
	if err != nil {
		return nil, err
	}
	if c.Time == nil || c.series(f) == nil {
		return nil, insufficient("phase curve", 0, 1)
	}
	curve := NormalizedTimeCurve(w.Take(c.Time), w.Take(c.series(f)))
	if len(curve) == 0 {
		return nil, insufficient("phase curve", 0, 1)
	}
	return Downsample(curve, x.cfg.Curves.DistancePoints), nil
}
