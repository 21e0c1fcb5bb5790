package record

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/lucasjlepore/cyclelife"
)

const matrDoc = `{
  "cell_id": "b1c3",
  "cycle_data": {
    "10": {"current_in_A": [1, -1], "voltage_in_V": [3.5, 3.4], "t": [0, 1]},
    "2":  {"current_in_A": [2, -2], "voltage_in_V": [3.5, 3.4], "t": [0, 1]},
    "1":  {"current_in_A": [3, -3], "voltage_in_V": [3.5, null], "t": [0, 1]}
  },
  "summary": {"IR": [0.021, 0.022, null]}
}`

const isuDoc = `{
  "cycle_data": [
    {"current_in_A": [1, -1], "time_in_s": [0, 1000000000], "cell_id": "ignored"},
    {"current_in_A": [2, -2], "time_in_s": [0, 1000000000]}
  ]
}`

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFileMATRObject(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cell.json", []byte(matrDoc))
	loaded, err := LoadFile(path, "")
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	b := loaded.Battery
	if b.ID != "b1c3" || b.Kind != cyclelife.DatasetMATR || !loaded.Source.DatasetInferred {
		t.Fatalf("unexpected battery header: id=%q kind=%q inferred=%v", b.ID, b.Kind, loaded.Source.DatasetInferred)
	}
	if b.CycleLife() != 3 {
		t.Fatalf("expected 3 cycles, got %d", b.CycleLife())
	}
	// Keys are ordered numerically, not lexically.
	var first []float64
	for _, c := range b.Cycles {
		first = append(first, c["current_in_A"].Values()[0])
	}
	if diff := cmp.Diff([]float64{3, 2, 1}, first); diff != "" {
		t.Fatalf("cycle order mismatch (-want +got):\n%s", diff)
	}
	if ir := b.Summary["IR"]; len(ir) != 3 || ir[1] != 0.022 || !math.IsNaN(ir[2]) {
		t.Fatalf("unexpected IR summary %v", ir)
	}
	if loaded.Source.Compression != CompressionNone || len(loaded.Source.SHA256) != 64 {
		t.Fatalf("unexpected source %+v", loaded.Source)
	}
}

func TestLoadFileISUArrayAndStem(t *testing.T) {
	path := writeFile(t, t.TempDir(), "G1C1.json", []byte(isuDoc))
	loaded, err := LoadFile(path, "")
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if loaded.Battery.ID != "G1C1" || loaded.Battery.Kind != cyclelife.DatasetISUILCC {
		t.Fatalf("unexpected battery %q / %q", loaded.Battery.ID, loaded.Battery.Kind)
	}
	c, err := cyclelife.Normalize(loaded.Battery.Cycles[0], loaded.Battery.Kind, 1)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if c.Time[1] != 1 {
		t.Fatalf("expected nanoseconds converted to 1 s, got %v", c.Time[1])
	}

	forced, err := LoadFile(path, cyclelife.DatasetMATR)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if forced.Battery.Kind != cyclelife.DatasetMATR || forced.Source.DatasetInferred {
		t.Fatalf("caller kind should win, got %q", forced.Battery.Kind)
	}
}

func TestLoadFileCompressed(t *testing.T) {
	dir := t.TempDir()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write([]byte(matrDoc)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	zst := enc.EncodeAll([]byte(isuDoc), nil)
	enc.Close()

	for _, tc := range []struct {
		name string
		data []byte
		want Compression
		kind cyclelife.DatasetKind
	}{
		{"a.json.gz", gz.Bytes(), CompressionGzip, cyclelife.DatasetMATR},
		{"b.json.zst", zst, CompressionZstd, cyclelife.DatasetISUILCC},
	} {
		loaded, err := LoadFile(writeFile(t, dir, tc.name, tc.data), "")
		if err != nil {
			t.Fatalf("LoadFile(%s) error: %v", tc.name, err)
		}
		if loaded.Source.Compression != tc.want || loaded.Battery.Kind != tc.kind {
			t.Fatalf("%s: got %s/%s", tc.name, loaded.Source.Compression, loaded.Battery.Kind)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"not json":      `{"cycle_data": `,
		"no cycles":     `{"battery_id": "x"}`,
		"bad dataset":   `{"dataset": "NASA", "cycle_data": []}`,
		"scalar cycles": `{"cycle_data": 4}`,
	} {
		if _, _, err := Decode([]byte(doc), ""); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json.gz", "c.json.zst", "notes.txt", "d.JSON"} {
		writeFile(t, dir, name, []byte("{}"))
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.json.gz"),
		filepath.Join(dir, "b.json"),
		filepath.Join(dir, "c.json.zst"),
		filepath.Join(dir, "d.JSON"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Discover mismatch (-want +got):\n%s", diff)
	}
}
