package cyclelife

import (
	"fmt"
	"math"
	"strings"
)

const cycleStructureSchemaVersion = "cycle_structure_v1"

// CycleStructure is the phase-by-phase view of one cycle.
type CycleStructure struct {
	SchemaVersion  string       `json:"schema_version"`
	Cycle          int          `json:"cycle"`
	Samples        int          `json:"samples"`
	DurationS      float64      `json:"duration_s"`
	Bisected       bool         `json:"bisected"`
	CanonicalLabel string       `json:"canonical_label"`
	Blocks         []PhaseBlock `json:"blocks,omitempty"`
	Warnings       []string     `json:"warnings,omitempty"`
}

// PhaseBlock summarizes one phase window.
type PhaseBlock struct {
	Phase        string  `json:"phase"`
	StartSample  int     `json:"start_sample"`
	EndSample    int     `json:"end_sample"`
	Samples      int     `json:"samples"`
	StartOffsetS float64 `json:"start_offset_s"`
	DurationS    float64 `json:"duration_s"`
	AvgCurrentA  float64 `json:"avg_current_a"`
	AvgVoltageV  float64 `json:"avg_voltage_v"`
	CapacityAh   float64 `json:"capacity_ah"`
	EnergyWh     float64 `json:"energy_wh"`
	Spread       float64 `json:"spread"`
	Extent       float64 `json:"extent"`
	Description  string  `json:"description"`
}

// InferCycleStructure segments a cycle into CC, CV, discharge and rest blocks.
// Missing phases are reported as warnings rather than errors.
func InferCycleStructure(c *Cycle, cfg Config) CycleStructure {
	cs := CycleStructure{
		SchemaVersion: cycleStructureSchemaVersion,
	}
	if c == nil {
		cs.Warnings = append(cs.Warnings, "cycle unavailable")
		return cs
	}
	cs.Cycle = c.Index
	cs.Samples = c.Len()
	if d, err := cycleDuration(c); err == nil {
		cs.DurationS = d
	}

	if phases, err := SegmentCharge(c, cfg.Segment); err == nil {
		cs.Bisected = phases.Bisected
		cs.Blocks = append(cs.Blocks,
			buildBlock(c, phases.CC, "constant current charge", c.Voltage),
			buildBlock(c, phases.CV, "constant voltage charge", c.Current),
		)
		if phases.Bisected {
			cs.Warnings = append(cs.Warnings, "no CC/CV current step found; charge split at midpoint")
		}
	} else {
		cs.Warnings = append(cs.Warnings, fmt.Sprintf("charge: %v", err))
	}

	if dis, err := SegmentDischarge(c, cfg.Segment); err == nil {
		cs.Blocks = append(cs.Blocks, buildBlock(c, dis, "discharge", c.Voltage))
		if rest, ok := SegmentRest(c, dis, cfg.Segment); ok {
			cs.Blocks = append(cs.Blocks, buildBlock(c, rest, "post-discharge rest", c.Voltage))
		} else {
			cs.Warnings = append(cs.Warnings, "no qualifying rest after discharge")
		}
	} else {
		cs.Warnings = append(cs.Warnings, fmt.Sprintf("discharge: %v", err))
	}

	cs.CanonicalLabel = buildCanonicalStructureLabel(cs)
	return cs
}

func buildCanonicalStructureLabel(cs CycleStructure) string {
	parts := make([]string, 0, len(cs.Blocks))
	for _, b := range cs.Blocks {
		parts = append(parts, fmt.Sprintf("%s %s", b.Phase, shortDuration(b.DurationS)))
	}
	if len(parts) == 0 {
		return "unclassified cycle"
	}
	return strings.Join(parts, " + ")
}

// buildBlock summarizes w. shape is the series whose spread and extent describe the
// phase (voltage for CC and discharge, current for CV).
func buildBlock(c *Cycle, w PhaseWindow, description string, shape []float64) PhaseBlock {
	b := PhaseBlock{
		Phase:       w.Kind.String(),
		StartSample: w.Start,
		EndSample:   w.End,
		Samples:     w.Len(),
		Description: description,
	}
	if c.Time != nil && c.Len() > 0 && w.First() >= 0 {
		b.StartOffsetS = c.Time[w.First()] - c.Time[0]
	}
	if d, err := windowDuration(c, w); err == nil {
		b.DurationS = d
	}
	if v, err := Mean(finiteValues(w.Take(c.Current))); err == nil {
		b.AvgCurrentA = v
	}
	if v, err := Mean(finiteValues(w.Take(c.Voltage))); err == nil {
		b.AvgVoltageV = v
	}
	capacity := c.ChargeCapacity
	if w.Kind == PhaseDischarge {
		capacity = c.DischargeCapacity
	}
	if v, err := capacityMoved(capacity, w); err == nil {
		b.CapacityAh = v
	}
	if w.Kind != PhaseRest {
		if v, err := phaseEnergy(c, w); err == nil {
			b.EnergyWh = v
		}
	}
	if c.Time != nil && shape != nil {
		t := w.Take(c.Time)
		y := w.Take(shape)
		if v, err := CurveSpread(t, y); err == nil {
			b.Spread = v
		}
		if v, err := PairwiseMaxDistance(Downsample(NormalizedTimeCurve(t, y), 200)); err == nil {
			b.Extent = v
		}
	}
	return b
}

func shortDuration(seconds float64) string {
	s := int(math.Round(seconds))
	if s <= 0 {
		return "0s"
	}
	if s%60 == 0 {
		return fmt.Sprintf("%dm", s/60)
	}
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm%02ds", s/60, s%60)
}
