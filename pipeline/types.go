package pipeline

import (
	"context"
	"time"

	"github.com/lucasjlepore/cyclelife"
	"github.com/lucasjlepore/cyclelife/record"
	"go.uber.org/zap"
)

// ManifestFormatVersion identifies the manifest.json layout.
const ManifestFormatVersion = "cyclelife_run_v1"

// Input statuses recorded in the manifest.
const (
	StatusExtracted = "extracted"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Options configures one extraction run.
type Options struct {
	// InputPaths lists battery files; InputDir is scanned when InputPaths is empty.
	InputPaths []string
	InputDir   string
	OutDir     string

	// Dataset forces the dataset kind; empty lets each file decide.
	Dataset    cyclelife.DatasetKind
	ConfigPath string

	Format    string // tsv|csv
	Parquet   bool
	Workers   int
	Overwrite bool

	Logger *zap.Logger
	// Sink, when set, receives every extracted row after the report is written.
	Sink Sink
}

// Result returns generated output paths and counts.
type Result struct {
	RunID        string `json:"run_id"`
	OutputDir    string `json:"output_dir"`
	ReportPath   string `json:"report_path"`
	ParquetPath  string `json:"parquet_path,omitempty"`
	SkippedPath  string `json:"skipped_path"`
	ManifestPath string `json:"manifest_path"`
	MetricsPath  string `json:"metrics_path"`
	Extracted    int    `json:"extracted"`
	Skipped      int    `json:"skipped"`
	Failed       int    `json:"failed"`

	// SkippedEntries mirrors skipped.json, in input order.
	SkippedEntries []SkippedEntry `json:"skipped_entries,omitempty"`
}

// Row is one line of the feature report.
type Row struct {
	BatteryID string                  `json:"battery_id"`
	Dataset   cyclelife.DatasetKind   `json:"dataset"`
	CycleLife int                     `json:"cycle_life"`
	Features  cyclelife.FeatureVector `json:"features"`
	Fallbacks []string                `json:"fallbacks,omitempty"`
	Source    string                  `json:"source"`
}

// SkippedEntry explains why a file produced no row.
type SkippedEntry struct {
	Source    string `json:"source"`
	BatteryID string `json:"battery_id,omitempty"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	CycleLife int    `json:"cycle_life,omitempty"`
	Need      int    `json:"min_cycles,omitempty"`
}

// SkippedFile is the skipped.json document.
type SkippedFile struct {
	RunID   string         `json:"run_id"`
	Entries []SkippedEntry `json:"entries"`
}

// InputEntry is the manifest record of one input file.
type InputEntry struct {
	record.Source
	BatteryID string                `json:"battery_id,omitempty"`
	Dataset   cyclelife.DatasetKind `json:"dataset,omitempty"`
	Status    string                `json:"status"`
	Reason    string                `json:"reason,omitempty"`
	CycleLife int                   `json:"cycle_life,omitempty"`
	Fallbacks int                   `json:"fallbacks"`
	ElapsedMS int64                 `json:"elapsed_ms"`
}

// Manifest captures run metadata and pointers to the generated files.
type Manifest struct {
	FormatVersion string                                     `json:"format_version"`
	RunID         string                                     `json:"run_id"`
	GeneratedAt   time.Time                                  `json:"generated_at"`
	Dataset       string                                     `json:"dataset"`
	ConfigPath    string                                     `json:"config_path,omitempty"`
	Configs       map[cyclelife.DatasetKind]cyclelife.Config `json:"configs"`
	Features      []string                                   `json:"features"`
	Inputs        []InputEntry                               `json:"inputs"`
	Outputs       []string                                   `json:"outputs"`
	Extracted     int                                        `json:"extracted"`
	Skipped       int                                        `json:"skipped"`
	Failed        int                                        `json:"failed"`
}

// Sink receives extracted rows, e.g. a feature store.
type Sink interface {
	Put(ctx context.Context, runID string, row Row) error
	Close() error
}
