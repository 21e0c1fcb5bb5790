package cyclelife

import (
	"errors"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func fallbackNames(r *Result) []string {
	names := make([]string, 0, len(r.Fallbacks))
	for _, fb := range r.Fallbacks {
		names = append(names, fb.Feature)
	}
	sort.Strings(names)
	return names
}

func hasFallback(r *Result, name string) bool {
	for _, fb := range r.Fallbacks {
		if fb.Feature == name {
			return true
		}
	}
	return false
}

func TestFeatureCatalogue(t *testing.T) {
	names := FeatureNames()
	if len(names) != FeatureCount || names[0] != "F1" || names[58] != "F59" {
		t.Fatalf("unexpected names: %v", names)
	}
	defs := Features()
	for i, def := range defs {
		if def.compute == nil {
			t.Fatalf("%s has no compute function", def.Name)
		}
		idx, ok := featureIndex(def.Name)
		if !ok || idx != i {
			t.Fatalf("%s sits at slot %d, index lookup says %d", def.Name, i, idx)
		}
		want := 0.0
		if i == 0 {
			want = LogSentinel
		}
		if def.Fallback != want {
			t.Fatalf("%s fallback %v, want %v", def.Name, def.Fallback, want)
		}
	}
}

func TestExtractRequiresMinimumCycles(t *testing.T) {
	ex := mustExtractor(t, DatasetMATR)

	_, err := ex.Extract(synthBattery(DatasetMATR, 99, synthOptions{temperature: true}))
	var short *InsufficientCycleCountError
	if !errors.As(err, &short) {
		t.Fatalf("expected InsufficientCycleCountError for 99 cycles, got %v", err)
	}
	if short.Have != 99 || short.Need != 100 {
		t.Fatalf("unexpected counts %+v", short)
	}

	res, err := ex.Extract(synthBattery(DatasetMATR, 100, synthOptions{temperature: true}))
	if err != nil {
		t.Fatalf("Extract() error for 100 cycles: %v", err)
	}
	if res.CycleLife != 100 {
		t.Fatalf("expected cycle life 100, got %d", res.CycleLife)
	}
}

func TestExtractSyntheticMATR(t *testing.T) {
	ex := mustExtractor(t, DatasetMATR)
	res, err := ex.Extract(synthBattery(DatasetMATR, 120, synthOptions{temperature: true}))
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(res.Fallbacks) != 0 {
		t.Fatalf("expected no fallbacks, got %+v", res.Fallbacks)
	}
	if res.CycleLife != 120 || res.Dataset != DatasetMATR {
		t.Fatalf("unexpected label %d / %s", res.CycleLife, res.Dataset)
	}

	got := res.Features.Named()
	want := map[string]float64{
		"F1":  math.Log10(0.09),
		"F6":  -0.09,
		"F7":  -0.001,
		"F8":  1.1,
		"F9":  -0.001,
		"F11": 1.098,
		"F12": 0.001,
		"F13": 1.0,
		"F14": 690,
		"F15": 25 + 0.01*139 + 0.1,
		"F16": 25.002,
		"F18": 0.0202,
		"F19": 0.0202,
		"F20": 0.0098,
		"F21": -0.09,
		"F23": 0,
		"F24": 3.0,
		"F25": 390,
		"F26": 290,
		"F27": 1.0,
		"F28": 4.2,
		"F43": 0,
		"F45": 0,
		"F58": 2,
		"F59": 2 * 1390.0 / 3600,
	}
	for name, w := range want {
		if !approxEqual(got[name], w, 1e-6) {
			t.Errorf("%s = %v, want %v", name, got[name], w)
		}
	}
	// Same charge protocol in every cycle: the shape deltas vanish.
	for _, name := range []string{"F35", "F36", "F39", "F41", "F48", "F49", "F54", "F55"} {
		if !approxEqual(got[name], 0, 1e-9) {
			t.Errorf("%s = %v, want 0", name, got[name])
		}
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	ex := mustExtractor(t, DatasetMATR)
	b := synthBattery(DatasetMATR, 100, synthOptions{temperature: true})
	first, err := ex.Extract(b)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	second, err := ex.Extract(b)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated extraction differs (-first +second):\n%s", diff)
	}
}

func TestExtractISUWithoutAuxiliaryData(t *testing.T) {
	ex := mustExtractor(t, DatasetISUILCC)
	res, err := ex.Extract(synthBattery(DatasetISUILCC, 100, synthOptions{}))
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	want := []string{"F15", "F16", "F17", "F18", "F19", "F20", "F52", "F53"}
	if diff := cmp.Diff(want, fallbackNames(res), cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("fallback set mismatch (-want +got):\n%s", diff)
	}
	for _, name := range want {
		idx, _ := featureIndex(name)
		if res.Features[idx] != 0 {
			t.Fatalf("%s should hold its fallback 0, got %v", name, res.Features[idx])
		}
	}
	if !approxEqual(res.Features[24], 390, 1e-3) {
		t.Fatalf("F25 from nanosecond time = %v, want 390", res.Features[24])
	}
}

func TestExtractMalformedReferenceCycle(t *testing.T) {
	ex := mustExtractor(t, DatasetMATR)
	healthy, err := ex.Extract(synthBattery(DatasetMATR, 100, synthOptions{temperature: true}))
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	b := synthBattery(DatasetMATR, 100, synthOptions{temperature: true})
	raw := b.Cycles[9]
	raw["voltage_in_V"] = SeriesField(raw["voltage_in_V"].Values()[:synthSamples-1])
	res, err := ex.Extract(b)
	if err != nil {
		t.Fatalf("a malformed cycle must not fail the battery: %v", err)
	}
	if res.Features[0] != LogSentinel || !hasFallback(res, "F1") {
		t.Fatalf("F1 should fall back to %v, got %v", LogSentinel, res.Features[0])
	}
	if !hasFallback(res, "F21") {
		t.Fatalf("F21 depends on cycle 10 and should fall back")
	}
	// Target-cycle features are untouched.
	for _, idx := range []int{23, 24, 25, 26, 27} {
		if res.Features[idx] != healthy.Features[idx] {
			t.Fatalf("F%d changed: %v vs %v", idx+1, res.Features[idx], healthy.Features[idx])
		}
	}
}

func TestExtractDisjointVoltageRange(t *testing.T) {
	b := synthBattery(DatasetMATR, 100, synthOptions{temperature: true})
	b.Cycles[99] = synthRawCycle(DatasetMATR, 100, synthCapacity(100), synthOptions{temperature: true, voltageShift: -2.0})

	res, err := mustExtractor(t, DatasetMATR).Extract(b)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	for i := 0; i < 6; i++ {
		name := FeatureNames()[i]
		if !hasFallback(res, name) {
			t.Fatalf("%s should fall back without a common voltage range", name)
		}
	}
	if res.Features[0] != LogSentinel {
		t.Fatalf("F1 = %v, want %v", res.Features[0], LogSentinel)
	}

	cfg := DefaultConfig(DatasetMATR)
	cfg.Fallbacks = map[string]float64{"F1": -5, "F6": 1}
	ex, err := NewExtractor(cfg, nil)
	if err != nil {
		t.Fatalf("NewExtractor() error: %v", err)
	}
	res, err = ex.Extract(b)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if res.Features[0] != -5 || res.Features[5] != 1 {
		t.Fatalf("fallback overrides not applied: F1 %v F6 %v", res.Features[0], res.Features[5])
	}
}

func TestEvaluateRecoversPanics(t *testing.T) {
	ex := mustExtractor(t, DatasetMATR)
	def := FeatureDef{Name: "F2", compute: func(*extraction) (float64, error) {
		var s []float64
		return s[3], nil
	}}
	v, note := ex.evaluate(def, nil)
	if v != 0 || note == nil || note.Feature != "F2" {
		t.Fatalf("expected a recovered fallback, got %v %+v", v, note)
	}

	def.compute = func(*extraction) (float64, error) { return math.Inf(1), nil }
	if v, note := ex.evaluate(def, nil); v != 0 || note == nil {
		t.Fatalf("expected non-finite result to fall back, got %v %+v", v, note)
	}
}

func TestAnalyzeAndNotes(t *testing.T) {
	b := synthBattery(DatasetMATR, 100, synthOptions{temperature: true})
	b.ID = "b1c0"
	a, err := Analyze(b, DefaultConfig(DatasetMATR), nil)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if a.Skipped || a.Result == nil {
		t.Fatalf("expected a full analysis, got skipped=%v", a.Skipped)
	}
	if len(a.CapacityCurve) != 100 || a.MalformedCount != 0 {
		t.Fatalf("unexpected diagnostics: %d points, %d malformed", len(a.CapacityCurve), a.MalformedCount)
	}
	if a.Reference.Cycle != 10 || a.Target.Cycle != 100 {
		t.Fatalf("unexpected structure cycles %d/%d", a.Reference.Cycle, a.Target.Cycle)
	}
	for _, want := range []string{
		"Battery: b1c0 (MATR)",
		"Cycle life 100 cycles",
		"Max capacity at cycle 2",
		"Cycle 10: CC 6m30s + CV 4m50s + discharge 8m10s + rest 3m10s",
		"Fade is steady",
	} {
		if !strings.Contains(a.Notes, want) {
			t.Fatalf("notes missing %q:\n%s", want, a.Notes)
		}
	}

	short, err := Analyze(synthBattery(DatasetMATR, 20, synthOptions{}), DefaultConfig(DatasetMATR), nil)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if !short.Skipped || short.Result != nil || !strings.Contains(short.Notes, "Skipped:") {
		t.Fatalf("expected a skipped analysis, got %+v", short)
	}
}

func TestDeltaQReusesCachedDischargeWindows(t *testing.T) {
	cfg := DefaultConfig(DatasetMATR)
	b := synthBattery(DatasetMATR, 100, synthOptions{})
	x := newExtraction(b, &cfg)

	delta, grid, err := x.deltaQ()
	if err != nil {
		t.Fatalf("deltaQ() error: %v", err)
	}
	for _, n := range []int{cfg.ReferenceCycle, cfg.TargetCycle} {
		e, ok := x.cycles.entries[n]
		if !ok || !e.dischargeDone {
			t.Fatalf("cycle %d discharge window was not taken from the cache", n)
		}
	}

	ref, _ := x.cycles.Cycle(cfg.ReferenceCycle)
	tgt, _ := x.cycles.Cycle(cfg.TargetCycle)
	wantDelta, wantGrid, err := DeltaQ(ref, tgt, cfg.Segment, cfg.QV)
	if err != nil {
		t.Fatalf("DeltaQ() error: %v", err)
	}
	if diff := cmp.Diff(wantDelta, delta); diff != "" {
		t.Fatalf("delta mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantGrid, grid); diff != "" {
		t.Fatalf("grid mismatch (-want +got):\n%s", diff)
	}
}

func TestCornerSlopeIsPerSecond(t *testing.T) {
	// The CC ramp climbs 1.2 V over 39 steps of 10 s and CV holds 4.2 V, so the
	// corner slope is the CC slope in V/s whatever the sample rate.
	want := 1.2 / float64(synthCC-1) / synthDT
	for _, kind := range []DatasetKind{DatasetMATR, DatasetISUILCC} {
		cfg := DefaultConfig(kind)
		x := newExtraction(synthBattery(kind, 100, synthOptions{}), &cfg)
		got, err := cornerSlope(x, cfg.ReferenceCycle)
		if err != nil {
			t.Fatalf("%s: cornerSlope() error: %v", kind, err)
		}
		if !approxEqual(got, want, 1e-8) {
			t.Fatalf("%s: cornerSlope() = %v, want %v V/s", kind, got, want)
		}
	}
}
