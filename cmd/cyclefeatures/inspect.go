package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasjlepore/cyclelife"
	"github.com/lucasjlepore/cyclelife/record"
)

var (
	inspectDataset string
	inspectCycle   int
	inspectConfig  string
	inspectJSON    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Print battery notes and the phase structure of one cycle",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return usagef("inspect takes exactly one battery file, got %d", len(args))
		}
		return nil
	},
	RunE: runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&inspectDataset, "dataset", "auto", "Dataset kind: auto|MATR|ISU_ILCC")
	f.IntVar(&inspectCycle, "cycle", 0, "Cycle to break down (default: the target cycle)")
	f.StringVar(&inspectConfig, "config", "", "YAML file overriding the extraction defaults")
	f.BoolVar(&inspectJSON, "json", false, "Emit the full analysis as JSON")
}

func runInspect(_ *cobra.Command, args []string) error {
	kind, err := parseDatasetFlag(inspectDataset)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	loaded, err := record.LoadFile(args[0], kind)
	if err != nil {
		return err
	}
	b := loaded.Battery
	cfg, err := cyclelife.LoadConfig(inspectConfig, b.Kind)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	analysis, err := cyclelife.Analyze(b, cfg, logger)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	n := inspectCycle
	if n == 0 {
		n = cfg.TargetCycle
	}
	var structure *cyclelife.CycleStructure
	if n >= 1 && n <= b.CycleLife() {
		c, err := cyclelife.Normalize(b.Cycles[n-1], b.Kind, n)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", n, err)
		}
		cs := cyclelife.InferCycleStructure(c, cfg)
		structure = &cs
	} else if inspectCycle != 0 {
		return usagef("--cycle %d out of range (battery has %d cycles)", n, b.CycleLife())
	}

	if inspectJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Analysis  *cyclelife.Analysis       `json:"analysis"`
			Structure *cyclelife.CycleStructure `json:"structure,omitempty"`
		}{analysis, structure})
	}

	fmt.Println(analysis.Notes)
	if structure == nil {
		return nil
	}
	fmt.Println()
	fmt.Printf("Cycle %d structure: %s\n", structure.Cycle, structure.CanonicalLabel)
	for _, blk := range structure.Blocks {
		fmt.Printf(
			"- %-9s | samples %4d..%-4d | %8.1fs | %7.3f A | %6.3f V | %7.4f Ah | spread %.3e | extent %.3f\n",
			blk.Phase,
			blk.StartSample,
			blk.EndSample,
			blk.DurationS,
			blk.AvgCurrentA,
			blk.AvgVoltageV,
			blk.CapacityAh,
			blk.Spread,
			blk.Extent,
		)
	}
	for _, w := range structure.Warnings {
		fmt.Printf("! %s\n", w)
	}
	return nil
}
