package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lucasjlepore/cyclelife"
	"github.com/lucasjlepore/cyclelife/record"
)

// Output file names inside OutDir.
const (
	skippedFileName  = "skipped.json"
	manifestFileName = "manifest.json"
	metricsFileName  = "metrics.prom"
	parquetFileName  = "features.parquet"
)

// outcome is the per-input result of a worker.
type outcome struct {
	entry   InputEntry
	row     *Row
	skipped *SkippedEntry
}

// Run extracts the feature vector of every input battery and writes the report,
// skipped list, manifest and metrics into opts.OutDir. Per-file problems are
// recorded, not returned; the error return is for unusable options, I/O on the
// output directory and cancellation.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "tsv"
	}
	if format != "tsv" && format != "csv" {
		return nil, fmt.Errorf("unsupported format %q (expected tsv|csv)", format)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	paths, err := resolveInputs(opts)
	if err != nil {
		return nil, err
	}

	extractors, configs, err := buildExtractors(opts, logger)
	if err != nil {
		return nil, err
	}

	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	metrics := newRunMetrics()
	logger = logger.With(zap.String("run_id", runID))
	logger.Info("extraction started", zap.Int("inputs", len(paths)), zap.String("out_dir", opts.OutDir))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	outcomes := make([]outcome, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = processFile(path, opts.Dataset, extractors, metrics, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extraction cancelled: %w", err)
	}

	res := &Result{
		RunID:        runID,
		OutputDir:    opts.OutDir,
		ReportPath:   filepath.Join(opts.OutDir, "features."+format),
		SkippedPath:  filepath.Join(opts.OutDir, skippedFileName),
		ManifestPath: filepath.Join(opts.OutDir, manifestFileName),
		MetricsPath:  filepath.Join(opts.OutDir, metricsFileName),
	}
	var (
		rows    []Row
		skipped = SkippedFile{RunID: runID, Entries: []SkippedEntry{}}
		inputs  = make([]InputEntry, 0, len(outcomes))
	)
	for _, o := range outcomes {
		inputs = append(inputs, o.entry)
		switch {
		case o.row != nil:
			rows = append(rows, *o.row)
			res.Extracted++
		case o.skipped != nil:
			skipped.Entries = append(skipped.Entries, *o.skipped)
			if o.skipped.Status == StatusFailed {
				res.Failed++
			} else {
				res.Skipped++
			}
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].BatteryID != rows[j].BatteryID {
			return rows[i].BatteryID < rows[j].BatteryID
		}
		return rows[i].Source < rows[j].Source
	})

	outputs := []string{filepath.Base(res.ReportPath)}
	if err := writeReport(res.ReportPath, format, rows); err != nil {
		return nil, fmt.Errorf("write %s: %w", filepath.Base(res.ReportPath), err)
	}
	if opts.Parquet {
		res.ParquetPath = filepath.Join(opts.OutDir, parquetFileName)
		if err := writeFeaturesParquet(res.ParquetPath, rows); err != nil {
			return nil, fmt.Errorf("write %s: %w", parquetFileName, err)
		}
		outputs = append(outputs, parquetFileName)
	}
	res.SkippedEntries = skipped.Entries
	if err := writeJSON(res.SkippedPath, skipped); err != nil {
		return nil, fmt.Errorf("write %s: %w", skippedFileName, err)
	}
	outputs = append(outputs, skippedFileName)

	if opts.Sink != nil {
		for _, row := range rows {
			if err := opts.Sink.Put(ctx, runID, row); err != nil {
				return nil, fmt.Errorf("push %s to sink: %w", row.BatteryID, err)
			}
		}
		logger.Info("rows pushed to sink", zap.Int("rows", len(rows)))
	}

	if err := metrics.writeTextfile(res.MetricsPath); err != nil {
		return nil, fmt.Errorf("write %s: %w", metricsFileName, err)
	}
	outputs = append(outputs, metricsFileName, manifestFileName)

	dataset := string(opts.Dataset)
	if dataset == "" {
		dataset = "auto"
	}
	manifest := Manifest{
		FormatVersion: ManifestFormatVersion,
		RunID:         runID,
		GeneratedAt:   time.Now().UTC(),
		Dataset:       dataset,
		ConfigPath:    opts.ConfigPath,
		Configs:       configs,
		Features:      cyclelife.FeatureNames(),
		Inputs:        inputs,
		Outputs:       outputs,
		Extracted:     res.Extracted,
		Skipped:       res.Skipped,
		Failed:        res.Failed,
	}
	if err := writeJSON(res.ManifestPath, manifest); err != nil {
		return nil, fmt.Errorf("write %s: %w", manifestFileName, err)
	}

	logger.Info("extraction finished",
		zap.Int("extracted", res.Extracted),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func resolveInputs(opts Options) ([]string, error) {
	if len(opts.InputPaths) > 0 {
		return append([]string(nil), opts.InputPaths...), nil
	}
	if strings.TrimSpace(opts.InputDir) == "" {
		return nil, fmt.Errorf("input paths or an input directory are required")
	}
	paths, err := record.Discover(opts.InputDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no battery files found in %s", opts.InputDir)
	}
	return paths, nil
}

// buildExtractors prepares one extractor per dataset kind the run may meet.
func buildExtractors(opts Options, logger *zap.Logger) (map[cyclelife.DatasetKind]*cyclelife.Extractor, map[cyclelife.DatasetKind]cyclelife.Config, error) {
	kinds := []cyclelife.DatasetKind{cyclelife.DatasetMATR, cyclelife.DatasetISUILCC}
	if opts.Dataset != "" {
		kinds = []cyclelife.DatasetKind{opts.Dataset}
	}
	extractors := make(map[cyclelife.DatasetKind]*cyclelife.Extractor, len(kinds))
	configs := make(map[cyclelife.DatasetKind]cyclelife.Config, len(kinds))
	for _, kind := range kinds {
		cfg, err := cyclelife.LoadConfig(opts.ConfigPath, kind)
		if err != nil {
			return nil, nil, fmt.Errorf("load config for %s: %w", kind, err)
		}
		ex, err := cyclelife.NewExtractor(cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("configure %s extractor: %w", kind, err)
		}
		extractors[kind] = ex
		configs[kind] = cfg
	}
	return extractors, configs, nil
}

func processFile(
	path string,
	kind cyclelife.DatasetKind,
	extractors map[cyclelife.DatasetKind]*cyclelife.Extractor,
	metrics *runMetrics,
	logger *zap.Logger,
) outcome {
	started := time.Now()
	o := outcome{entry: InputEntry{Source: record.Source{Path: path, Name: filepath.Base(path)}}}
	fail := func(status, reason string) outcome {
		o.entry.Status = status
		o.entry.Reason = reason
		o.entry.ElapsedMS = time.Since(started).Milliseconds()
		o.skipped = &SkippedEntry{
			Source:    path,
			BatteryID: o.entry.BatteryID,
			Status:    status,
			Reason:    reason,
			CycleLife: o.entry.CycleLife,
		}
		metrics.batteries.WithLabelValues(status).Inc()
		return o
	}

	loaded, err := record.LoadFile(path, kind)
	if err != nil {
		logger.Warn("battery file unreadable", zap.String("path", path), zap.Error(err))
		return fail(StatusFailed, err.Error())
	}
	b := loaded.Battery
	o.entry.Source = loaded.Source
	o.entry.BatteryID = b.ID
	o.entry.Dataset = b.Kind
	o.entry.CycleLife = b.CycleLife()

	ex, ok := extractors[b.Kind]
	if !ok {
		return fail(StatusFailed, fmt.Sprintf("no extractor configured for dataset %s", b.Kind))
	}
	res, err := ex.Extract(b)
	var short *cyclelife.InsufficientCycleCountError
	switch {
	case errors.As(err, &short):
		logger.Warn("battery skipped",
			zap.String("battery_id", b.ID),
			zap.String("reason", short.Error()),
			zap.Int("cycles", short.Have),
			zap.Int("min_cycles", short.Need),
		)
		out := fail(StatusSkipped, short.Error())
		out.skipped.Need = short.Need
		return out
	case err != nil:
		logger.Warn("battery extraction failed", zap.String("battery_id", b.ID), zap.Error(err))
		return fail(StatusFailed, err.Error())
	}

	elapsed := time.Since(started)
	metrics.extractSeconds.Observe(elapsed.Seconds())
	metrics.batteries.WithLabelValues(StatusExtracted).Inc()
	fallbacks := make([]string, 0, len(res.Fallbacks))
	for _, fb := range res.Fallbacks {
		fallbacks = append(fallbacks, fb.Feature)
		metrics.fallbacks.WithLabelValues(fb.Feature).Inc()
	}
	o.entry.Status = StatusExtracted
	o.entry.Fallbacks = len(fallbacks)
	o.entry.ElapsedMS = elapsed.Milliseconds()
	o.row = &Row{
		BatteryID: res.BatteryID,
		Dataset:   res.Dataset,
		CycleLife: res.CycleLife,
		Features:  res.Features,
		Fallbacks: fallbacks,
		Source:    path,
	}
	logger.Debug("battery extracted",
		zap.String("battery_id", res.BatteryID),
		zap.Int("cycle_life", res.CycleLife),
		zap.Int("fallbacks", len(fallbacks)),
		zap.Duration("elapsed", elapsed),
	)
	return o
}

// ReportHeader is the column list of the feature report.
func ReportHeader() []string {
	header := make([]string, 0, cyclelife.FeatureCount+2)
	header = append(header, "battery_id")
	header = append(header, cyclelife.FeatureNames()...)
	return append(header, "cycle_life")
}

func writeReport(path, format string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if format == "tsv" {
		w.Comma = '\t'
	}
	if err := w.Write(ReportHeader()); err != nil {
		return err
	}
	for _, r := range rows {
		line := make([]string, 0, cyclelife.FeatureCount+2)
		line = append(line, r.BatteryID)
		for _, v := range r.Features {
			line = append(line, formatFloat(v))
		}
		line = append(line, strconv.Itoa(r.CycleLife))
		if err := w.Write(line); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
