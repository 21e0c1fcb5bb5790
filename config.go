package cyclelife

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DatasetKind selects field aliases, unit conversions and dataset-specific
// thresholds.
type DatasetKind string

const (
	DatasetMATR    DatasetKind = "MATR"
	DatasetISUILCC DatasetKind = "ISU_ILCC"
)

// ParseDatasetKind accepts the wire names plus a few lenient spellings.
func ParseDatasetKind(s string) (DatasetKind, error) {
	switch s {
	case "MATR", "matr":
		return DatasetMATR, nil
	case "ISU_ILCC", "isu_ilcc", "ISU-ILCC", "isu-ilcc", "ISU", "isu":
		return DatasetISUILCC, nil
	default:
		return "", fmt.Errorf("unknown dataset kind %q (expected MATR|ISU_ILCC)", s)
	}
}

// Config holds every tunable of the extraction. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	Dataset DatasetKind `yaml:"dataset"`

	// MinCycles is the battery-level precondition for extraction.
	MinCycles int `yaml:"min_cycles"`

	// Cycle numbers (1-based) used by the feature definitions.
	EarlyCycle     int `yaml:"early_cycle"`
	ReferenceCycle int `yaml:"reference_cycle"`
	TargetCycle    int `yaml:"target_cycle"`

	FadeWindow        CycleWindow `yaml:"fade_window"`
	LateFadeWindow    CycleWindow `yaml:"late_fade_window"`
	MaxCapacityWindow CycleWindow `yaml:"max_capacity_window"`

	// CapacityCeiling (Ah) clamps outlier discharge capacities to zero.
	CapacityCeiling float64 `yaml:"capacity_ceiling"`

	ChargeTime ChargeTimeConfig `yaml:"charge_time"`
	Segment    SegmentConfig    `yaml:"segment"`
	QV         QVConfig         `yaml:"qv"`
	Curves     CurveConfig      `yaml:"curves"`

	// Fallbacks overrides per-feature fallback values by name ("F1".."F59").
	Fallbacks map[string]float64 `yaml:"fallbacks,omitempty"`
}

// CycleWindow is an inclusive range of cycle numbers.
type CycleWindow struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// ChargeTimeConfig bounds the plausible charge durations used for F14.
type ChargeTimeConfig struct {
	Cycles     int     `yaml:"cycles"`
	MinSeconds float64 `yaml:"min_seconds"`
	MaxSeconds float64 `yaml:"max_seconds"`
}

// SegmentConfig parametrizes the phase segmenter.
type SegmentConfig struct {
	ThresholdFactor    float64 `yaml:"threshold_factor"`
	MidpointFallback   bool    `yaml:"midpoint_fallback"`
	MinChargeSamples   int     `yaml:"min_charge_samples"`
	DischargeEpsilon   float64 `yaml:"discharge_epsilon"`
	RestCurrentEpsilon float64 `yaml:"rest_current_epsilon"`
	MinRestSamples     int     `yaml:"min_rest_samples"`
	MinRestSeconds     float64 `yaml:"min_rest_seconds"`
}

// QVConfig parametrizes the Q-V differential analyzer.
type QVConfig struct {
	Points       int     `yaml:"points"`
	MinSpan      float64 `yaml:"min_span"`
	MinPoints    int     `yaml:"min_points"`
	MinCapacity  float64 `yaml:"min_capacity"`
	ProbeVoltage float64 `yaml:"probe_voltage"`
	UseQdlin     bool    `yaml:"use_qdlin"`
	QdlinHigh    float64 `yaml:"qdlin_high"`
	QdlinLow     float64 `yaml:"qdlin_low"`
}

// CurveConfig parametrizes the CC/CV shape features.
type CurveConfig struct {
	DistancePoints  int     `yaml:"distance_points"`
	CCLowFraction   float64 `yaml:"cc_low_fraction"`
	CCHighFraction  float64 `yaml:"cc_high_fraction"`
	CVCurrentMargin float64 `yaml:"cv_current_margin"`
	TailPoints      int     `yaml:"tail_points"`
	CornerPoints    int     `yaml:"corner_points"`
}

// DefaultConfig returns the documented defaults for a dataset kind.
func DefaultConfig(kind DatasetKind) Config {
	cfg := Config{
		Dataset:           kind,
		MinCycles:         100,
		EarlyCycle:        2,
		ReferenceCycle:    10,
		TargetCycle:       100,
		FadeWindow:        CycleWindow{From: 2, To: 100},
		LateFadeWindow:    CycleWindow{From: 91, To: 100},
		MaxCapacityWindow: CycleWindow{From: 2, To: 100},
		CapacityCeiling:   1.3,
		ChargeTime: ChargeTimeConfig{
			Cycles:     5,
			MinSeconds: 600,
			MaxSeconds: 36000,
		},
		Segment: SegmentConfig{
			ThresholdFactor:    0.1,
			MidpointFallback:   true,
			MinChargeSamples:   10,
			DischargeEpsilon:   0.01,
			RestCurrentEpsilon: 0.005,
			MinRestSamples:     10,
			MinRestSeconds:     60,
		},
		QV: QVConfig{
			Points:       100,
			MinSpan:      0.1,
			MinPoints:    11,
			MinCapacity:  1e-8,
			ProbeVoltage: 2.0,
			UseQdlin:     true,
			QdlinHigh:    3.5,
			QdlinLow:     2.0,
		},
		Curves: CurveConfig{
			DistancePoints:  100,
			CCLowFraction:   0.3,
			CCHighFraction:  0.8,
			CVCurrentMargin: 0.2,
			TailPoints:      5,
			CornerPoints:    5,
		},
	}
	if kind == DatasetISUILCC {
		cfg.QV.MinSpan = 0
		cfg.QV.MinPoints = 2
		cfg.QV.UseQdlin = false
	}
	return cfg
}

// LoadConfig overlays a YAML file onto DefaultConfig(kind). An empty path returns the
// defaults.
func LoadConfig(path string, kind DatasetKind) (Config, error) {
	cfg := DefaultConfig(kind)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	if cfg.Dataset != kind && kind != "" {
		// The file may pin a dataset, but the caller's explicit kind wins.
		cfg.Dataset = kind
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would make every feature fall back.
func (c Config) Validate() error {
	if c.Dataset != DatasetMATR && c.Dataset != DatasetISUILCC {
		return fmt.Errorf("config: unknown dataset %q", c.Dataset)
	}
	if c.MinCycles < 1 {
		return fmt.Errorf("config: min_cycles must be positive")
	}
	for _, cc := range []struct {
		name string
		n    int
	}{
		{"early_cycle", c.EarlyCycle},
		{"reference_cycle", c.ReferenceCycle},
		{"target_cycle", c.TargetCycle},
	} {
		if cc.n < 1 {
			return fmt.Errorf("config: %s must be >= 1", cc.name)
		}
	}
	for _, cw := range []struct {
		name string
		w    CycleWindow
	}{
		{"fade_window", c.FadeWindow},
		{"late_fade_window", c.LateFadeWindow},
		{"max_capacity_window", c.MaxCapacityWindow},
	} {
		if cw.w.From < 1 || cw.w.To < cw.w.From {
			return fmt.Errorf("config: %s [%d, %d] is invalid", cw.name, cw.w.From, cw.w.To)
		}
	}
	if c.Segment.ThresholdFactor <= 0 {
		return fmt.Errorf("config: segment.threshold_factor must be positive")
	}
	if c.QV.Points < 2 {
		return fmt.Errorf("config: qv.points must be >= 2")
	}
	if c.QV.MinPoints < 2 {
		return fmt.Errorf("config: qv.min_points must be >= 2")
	}
	if c.Curves.CCLowFraction >= c.Curves.CCHighFraction {
		return fmt.Errorf("config: curves.cc_low_fraction must be below cc_high_fraction")
	}
	names := make([]string, 0, len(c.Fallbacks))
	for name := range c.Fallbacks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := featureIndex(name); !ok {
			return fmt.Errorf("config: fallback for unknown feature %q", name)
		}
	}
	return nil
}
