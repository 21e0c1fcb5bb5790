package record

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/lucasjlepore/cyclelife"
)

var extensions = []string{".json", ".json.gz", ".json.zst"}

// Discover lists the battery documents directly inside dir, sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isBatteryFile(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func isBatteryFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// LoadFile reads one battery document. An empty kind lets the document (or the
// shape of its cycle_data) decide the dataset.
func LoadFile(path string, kind cyclelife.DatasetKind) (*Loaded, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("input path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read battery file: %w", err)
	}
	sum := sha256.Sum256(data)
	src := Source{
		Path:      path,
		Name:      filepath.Base(path),
		SHA256:    hex.EncodeToString(sum[:]),
		SizeBytes: int64(len(data)),
	}

	plain, comp, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", src.Name, err)
	}
	src.Compression = comp

	b, inferred, err := Decode(plain, kind)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src.Name, err)
	}
	if b.ID == "" {
		b.ID = fileStem(path)
	}
	src.DatasetInferred = inferred
	return &Loaded{Battery: b, Source: src}, nil
}

// decompress sniffs the gzip and zstd magic numbers rather than trusting the
// file extension.
func decompress(data []byte) ([]byte, Compression, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, "", err
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		return out, CompressionGzip, err
	case bytes.HasPrefix(data, []byte{0x28, 0xb5, 0x2f, 0xfd}):
		zr, err := zstd.NewReader(nil)
		if err != nil {
			return nil, "", err
		}
		defer zr.Close()
		out, err := zr.DecodeAll(data, nil)
		return out, CompressionZstd, err
	default:
		return data, CompressionNone, nil
	}
}

// Decode parses a battery document. It reports whether the dataset kind was
// inferred from the cycle_data shape.
func Decode(data []byte, kind cyclelife.DatasetKind) (*cyclelife.Battery, bool, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("parse json: %w", err)
	}

	cycles, keyed, err := decodeCycles(doc.CycleData)
	if err != nil {
		return nil, false, err
	}

	inferred := false
	switch {
	case kind != "":
	case doc.Dataset != "":
		kind, err = cyclelife.ParseDatasetKind(doc.Dataset)
		if err != nil {
			return nil, false, err
		}
	case keyed:
		kind, inferred = cyclelife.DatasetMATR, true
	default:
		kind, inferred = cyclelife.DatasetISUILCC, true
	}

	id := doc.BatteryID
	if id == "" {
		id = doc.CellID
	}
	b := &cyclelife.Battery{
		ID:     id,
		Kind:   kind,
		Cycles: cycles,
	}
	if len(doc.Summary) > 0 {
		b.Summary = make(map[string][]float64, len(doc.Summary))
		for name, f := range doc.Summary {
			b.Summary[name] = f.Values()
		}
	}
	return b, inferred, nil
}

// decodeCycles accepts cycle_data as an array or as an object keyed by cycle
// number. Object keys are ordered numerically; non-numeric keys sort after them.
func decodeCycles(raw json.RawMessage) ([]cyclelife.RawCycle, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, fmt.Errorf("cycle_data is missing")
	}

	if trimmed[0] == '[' {
		var cycles []cyclelife.RawCycle
		if err := json.Unmarshal(trimmed, &cycles); err != nil {
			return nil, false, fmt.Errorf("parse cycle_data array: %w", err)
		}
		return cycles, false, nil
	}

	var byKey map[string]cyclelife.RawCycle
	if err := json.Unmarshal(trimmed, &byKey); err != nil {
		return nil, false, fmt.Errorf("parse cycle_data object: %w", err)
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	cycles := make([]cyclelife.RawCycle, 0, len(keys))
	for _, k := range keys {
		cycles = append(cycles, byKey[k])
	}
	return cycles, true, nil
}

func fileStem(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	for _, ext := range []string{".json.gz", ".json.zst", ".json"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
