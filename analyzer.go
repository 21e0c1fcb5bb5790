package cyclelife

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Analysis bundles the feature extraction of one battery with the diagnostics the
// notes are written from.
type Analysis struct {
	BatteryID      string         `json:"battery_id"`
	Dataset        DatasetKind    `json:"dataset"`
	CycleLife      int            `json:"cycle_life"`
	Skipped        bool           `json:"skipped"`
	SkipReason     string         `json:"skip_reason,omitempty"`
	Result         *Result        `json:"result,omitempty"`
	CapacityCurve  []float64      `json:"capacity_curve,omitempty"`
	CapacityFrom   int            `json:"capacity_from"`
	MalformedCount int            `json:"malformed_cycles"`
	Reference      CycleStructure `json:"reference_cycle"`
	Target         CycleStructure `json:"target_cycle"`
	Notes          string         `json:"notes"`
}

// Analyze extracts features and gathers per-battery diagnostics. A battery below the
// minimum cycle count is reported as skipped, not as an error.
func Analyze(b *Battery, cfg Config, logger *zap.Logger) (*Analysis, error) {
	ex, err := NewExtractor(cfg, logger)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("analyze: nil battery")
	}
	kind := b.Kind
	if kind == "" {
		kind = cfg.Dataset
	}
	a := &Analysis{
		BatteryID:    b.ID,
		Dataset:      kind,
		CycleLife:    b.CycleLife(),
		CapacityFrom: 1,
	}

	res, err := ex.Extract(b)
	var short *InsufficientCycleCountError
	switch {
	case errors.As(err, &short):
		a.Skipped = true
		a.SkipReason = short.Error()
	case err != nil:
		return nil, fmt.Errorf("extract features: %w", err)
	default:
		a.Result = res
	}

	working := *b
	working.Kind = kind
	cycles := newBatteryCycles(&working, &cfg)
	a.CapacityCurve = DischargeCapacitySeries(cycles, 1, cycles.Len(), cfg.CapacityCeiling)
	for i := 1; i <= cycles.Len(); i++ {
		var malformed *MalformedCycleError
		if _, err := cycles.Cycle(i); errors.As(err, &malformed) {
			a.MalformedCount++
		}
	}
	if c, err := cycles.Cycle(cfg.ReferenceCycle); err == nil {
		a.Reference = InferCycleStructure(c, cfg)
	}
	if c, err := cycles.Cycle(cfg.TargetCycle); err == nil {
		a.Target = InferCycleStructure(c, cfg)
	}

	a.Notes = BuildBatteryNotes(a)
	return a, nil
}

// capacityFade returns the first and last non-zero capacity of the curve.
func capacityFade(curve []float64) (first, last float64) {
	for _, v := range curve {
		if v > 0 {
			first = v
			break
		}
	}
	for i := len(curve) - 1; i >= 0; i-- {
		if curve[i] > 0 {
			last = curve[i]
			break
		}
	}
	return first, last
}

func pctChange(start, end float64) float64 {
	if start == 0 {
		return 0
	}
	return ((end / start) - 1.0) * 100.0
}
