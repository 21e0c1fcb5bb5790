package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/lucasjlepore/cyclelife"
)

func TestRowFields(t *testing.T) {
	row := Row{
		BatteryID: "b1c0",
		Dataset:   cyclelife.DatasetMATR,
		CycleLife: 812,
		Fallbacks: []string{"F15", "F16"},
		Source:    "/data/b1c0.json",
	}
	row.Features[0] = -2.5
	row.Features[58] = 1.0 / 3

	fields := rowFields("run-1", row)
	if len(fields) != cyclelife.FeatureCount+5 {
		t.Fatalf("expected %d fields, got %d", cyclelife.FeatureCount+5, len(fields))
	}
	for key, want := range map[string]string{
		"run_id":     "run-1",
		"dataset":    "MATR",
		"cycle_life": "812",
		"fallbacks":  "F15,F16",
		"F1":         "-2.500000",
		"F2":         "0.000000",
		"F59":        "0.333333",
	} {
		if got := fields[key]; got != want {
			t.Fatalf("field %s = %v, want %q", key, got, want)
		}
	}
}

func TestNewRedisSinkRequiresAddress(t *testing.T) {
	if _, err := NewRedisSink(context.Background(), " ", "", time.Minute); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
