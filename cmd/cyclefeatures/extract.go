package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasjlepore/cyclelife"
	"github.com/lucasjlepore/cyclelife/pipeline"
)

var (
	extractIn        []string
	extractOut       string
	extractDataset   string
	extractFormat    string
	extractParquet   bool
	extractWorkers   int
	extractConfig    string
	extractRedisAddr string
	extractRedisTTL  time.Duration
	extractOverwrite bool
)

var extractCmd = &cobra.Command{
	Use:   "extract --in DIR|FILE... --out DIR",
	Short: "Extract the 59-feature vector of every battery into a report",
	Args:  cobra.NoArgs,
	RunE:  runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.StringSliceVar(&extractIn, "in", nil, "Input directory or battery files (.json, .json.gz, .json.zst)")
	f.StringVar(&extractOut, "out", "", "Output directory")
	f.StringVar(&extractDataset, "dataset", "auto", "Dataset kind: auto|MATR|ISU_ILCC")
	f.StringVar(&extractFormat, "format", "tsv", "Report format: tsv|csv")
	f.BoolVar(&extractParquet, "parquet", false, "Also write features.parquet")
	f.IntVar(&extractWorkers, "workers", 0, "Concurrent batteries (0 = number of CPUs)")
	f.StringVar(&extractConfig, "config", "", "YAML file overriding the extraction defaults")
	f.StringVar(&extractRedisAddr, "redis-addr", "", "Push extracted rows to this Redis server (host:port)")
	f.DurationVar(&extractRedisTTL, "redis-ttl", 0, "Expiry of pushed rows (0 keeps them)")
	f.BoolVar(&extractOverwrite, "overwrite", false, "Allow writing into a non-empty output directory")
}

func runExtract(cmd *cobra.Command, _ []string) error {
	if len(extractIn) == 0 || strings.TrimSpace(extractOut) == "" {
		return usagef("--in and --out are required")
	}
	kind, err := parseDatasetFlag(extractDataset)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	opts := pipeline.Options{
		OutDir:     extractOut,
		Dataset:    kind,
		ConfigPath: extractConfig,
		Format:     extractFormat,
		Parquet:    extractParquet,
		Workers:    extractWorkers,
		Overwrite:  extractOverwrite,
		Logger:     logger,
	}
	if len(extractIn) == 1 && isDir(extractIn[0]) {
		opts.InputDir = extractIn[0]
	} else {
		opts.InputPaths = extractIn
	}

	ctx := cmd.Context()
	if extractRedisAddr != "" {
		sink, err := pipeline.NewRedisSink(ctx, extractRedisAddr, "", extractRedisTTL)
		if err != nil {
			return err
		}
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Warn("close redis sink", zap.Error(err))
			}
		}()
		opts.Sink = sink
	}

	res, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Printf("extract complete (run %s)\n", res.RunID)
	fmt.Printf("Output dir:     %s\n", res.OutputDir)
	fmt.Printf("report:         %s\n", res.ReportPath)
	if res.ParquetPath != "" {
		fmt.Printf("parquet:        %s\n", res.ParquetPath)
	}
	fmt.Printf("skipped:        %s\n", res.SkippedPath)
	fmt.Printf("manifest:       %s\n", res.ManifestPath)
	fmt.Printf("metrics:        %s\n", res.MetricsPath)
	fmt.Printf("batteries:      %d extracted, %d skipped, %d failed\n", res.Extracted, res.Skipped, res.Failed)
	for _, e := range res.SkippedEntries {
		id := e.BatteryID
		if id == "" {
			id = e.Source
		}
		fmt.Printf("  %-7s %s: %s\n", e.Status, id, e.Reason)
	}
	return nil
}

func parseDatasetFlag(s string) (cyclelife.DatasetKind, error) {
	if s == "" || strings.EqualFold(s, "auto") {
		return "", nil
	}
	kind, err := cyclelife.ParseDatasetKind(s)
	if err != nil {
		return "", usageError{err}
	}
	return kind, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
