package cyclelife

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cyclelife.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
target_cycle: 150
fade_window:
  from: 2
  to: 150
qv:
  points: 250
fallbacks:
  F1: -8
`)
	cfg, err := LoadConfig(path, DatasetISUILCC)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.TargetCycle != 150 || cfg.FadeWindow.To != 150 || cfg.QV.Points != 250 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Fallbacks["F1"] != -8 {
		t.Fatalf("fallback override not applied: %v", cfg.Fallbacks)
	}
	// Untouched keys keep the dataset defaults.
	if cfg.ReferenceCycle != 10 || cfg.QV.MinPoints != 2 || cfg.QV.UseQdlin {
		t.Fatalf("defaults lost: %+v", cfg.QV)
	}
	if cfg.Dataset != DatasetISUILCC {
		t.Fatalf("expected dataset ISU_ILCC, got %s", cfg.Dataset)
	}
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := LoadConfig("", DatasetMATR)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.MinCycles != 100 || cfg.CapacityCeiling != 1.3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), DatasetMATR); err == nil || !strings.Contains(err.Error(), "read file") {
		t.Fatalf("expected read error, got %v", err)
	}
	if _, err := LoadConfig(writeConfig(t, "qv: [1, 2"), DatasetMATR); err == nil || !strings.Contains(err.Error(), "parse yaml") {
		t.Fatalf("expected parse error, got %v", err)
	}
	if _, err := LoadConfig(writeConfig(t, "fallbacks:\n  F60: 1\n"), DatasetMATR); err == nil || !strings.Contains(err.Error(), "F60") {
		t.Fatalf("expected unknown feature error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown dataset", func(c *Config) { c.Dataset = "NASA" }, "unknown dataset"},
		{"min cycles", func(c *Config) { c.MinCycles = 0 }, "min_cycles"},
		{"target cycle", func(c *Config) { c.TargetCycle = 0 }, "target_cycle"},
		{"inverted window", func(c *Config) { c.LateFadeWindow = CycleWindow{From: 100, To: 91} }, "late_fade_window"},
		{"threshold", func(c *Config) { c.Segment.ThresholdFactor = 0 }, "threshold_factor"},
		{"qv points", func(c *Config) { c.QV.Points = 1 }, "qv.points"},
		{"cc fractions", func(c *Config) { c.Curves.CCLowFraction = 0.9 }, "cc_low_fraction"},
		{"fallback name", func(c *Config) { c.Fallbacks = map[string]float64{"X1": 0} }, "X1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(DatasetMATR)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
	if err := DefaultConfig(DatasetMATR).Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestParseDatasetKind(t *testing.T) {
	for in, want := range map[string]DatasetKind{
		"MATR":     DatasetMATR,
		"isu-ilcc": DatasetISUILCC,
		"ISU":      DatasetISUILCC,
	} {
		got, err := ParseDatasetKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseDatasetKind(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDatasetKind("nasa"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestValidateReportsFirstProblemInFixedOrder(t *testing.T) {
	cfg := DefaultConfig(DatasetMATR)
	cfg.EarlyCycle = 0
	cfg.TargetCycle = 0
	cfg.FadeWindow = CycleWindow{From: 0, To: 0}
	cfg.MaxCapacityWindow = CycleWindow{From: 5, To: 1}
	for i := 0; i < 20; i++ {
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "early_cycle") {
			t.Fatalf("Validate() = %v, want the early_cycle error", err)
		}
	}

	cfg = DefaultConfig(DatasetMATR)
	cfg.FadeWindow = CycleWindow{From: 0, To: 0}
	cfg.MaxCapacityWindow = CycleWindow{From: 5, To: 1}
	for i := 0; i < 20; i++ {
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "fade_window") || strings.Contains(err.Error(), "max_capacity") {
			t.Fatalf("Validate() = %v, want the fade_window error", err)
		}
	}

	cfg = DefaultConfig(DatasetMATR)
	cfg.Fallbacks = map[string]float64{"Z9": 0, "F1": -10, "B2": 0, "Q7": 1}
	for i := 0; i < 20; i++ {
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), `"B2"`) {
			t.Fatalf("Validate() = %v, want the B2 error", err)
		}
	}
}
