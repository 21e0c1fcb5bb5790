package record

import (
	"encoding/json"

	"github.com/lucasjlepore/cyclelife"
)

// FormatVersion identifies the battery document layout this package reads.
const FormatVersion = "battery_json_v1"

// Compression names the container a battery document was stored in.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Source describes the file a battery was read from.
type Source struct {
	Path        string      `json:"path"`
	Name        string      `json:"name"`
	SHA256      string      `json:"sha256"`
	SizeBytes   int64       `json:"size_bytes"`
	Compression Compression `json:"compression"`
	// DatasetInferred is set when the dataset kind came from the cycle_data shape.
	DatasetInferred bool `json:"dataset_inferred,omitempty"`
}

// Loaded is one decoded battery plus where it came from.
type Loaded struct {
	Battery *cyclelife.Battery
	Source  Source
}

// document is the on-disk battery layout. cycle_data is either an object keyed by
// cycle number (MATR) or an array in cycle order (ISU-ILCC).
type document struct {
	BatteryID string                        `json:"battery_id"`
	CellID    string                        `json:"cell_id"`
	Dataset   string                        `json:"dataset"`
	CycleData json.RawMessage               `json:"cycle_data"`
	Summary   map[string]cyclelife.RawField `json:"summary"`
}
