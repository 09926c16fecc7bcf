package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/credence/internal/calibration"
	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/store"
)

var (
	calibInput string
	calibDB    string
	calibLimit int
	calibJSON  string
)

// calibrateCmd represents the calibrate command
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Measure how well past scores matched reviewed outcomes",
	Long: `Calibrate compares predicted scores with reviewed outcomes and reports the
expected calibration error (ECE) over ten score bins.

Samples come from the history database (assessments labelled with
'credence outcome') or from a JSONL file of {"predicted":87,"correct":true}.

Example:
  credence calibrate
  credence calibrate --limit 500 --json calibration.json
  credence calibrate --input reviewed.jsonl`,
	Args: cobra.NoArgs,
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)

	calibrateCmd.Flags().StringVar(&calibInput, "input", "", "JSONL file of predicted/correct samples")
	calibrateCmd.Flags().StringVar(&calibDB, "db", "", "history database (default: store.path from config)")
	calibrateCmd.Flags().IntVar(&calibLimit, "limit", 0, "number of most recent samples (default: calibration.default_limit)")
	calibrateCmd.Flags().StringVar(&calibJSON, "json", "", "output JSON path")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var source calibration.HistorySource
	if calibInput != "" {
		f, err := os.Open(calibInput)
		if err != nil {
			return fmt.Errorf("open samples: %w", err)
		}
		samples, err := calibration.ReadSamples(f)
		_ = f.Close()
		if err != nil {
			return err
		}
		source = samples
	} else {
		path := calibDB
		if path == "" {
			path = cfg.Store.Path
		}
		st, err := store.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		source = st

		if total, labelled, err := st.Stats(cmd.Context()); err == nil {
			fmt.Fprintf(os.Stderr, "History: %d assessments, %d with outcomes\n", total, labelled)
		}
	}

	monitor := calibration.NewMonitor(cfg.Calibration, logger)
	report, err := monitor.Run(cmd.Context(), source, calibLimit)
	if err != nil {
		return err
	}

	if calibJSON != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := os.WriteFile(calibJSON, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", calibJSON)
	}

	printCalibration(cmd.OutOrStdout(), report)
	return nil
}

func printCalibration(w io.Writer, r model.CalibrationReport) {
	fmt.Fprintln(w, "\n═══════════════════════════════════════════════════════")
	fmt.Fprintf(w, "  Calibration: %s\n", r.Label)
	fmt.Fprintf(w, "  ECE %.4f (raw %.4f) over %d samples\n", r.ECE, r.RawECE, r.Samples)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	if len(r.Bins) == 0 {
		fmt.Fprintln(w, "  No labelled assessments yet. Record outcomes with 'credence outcome'.")
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "  %-9s %7s %9s %9s  %s\n", "bin", "samples", "predicted", "observed", "diagnosis")
	for _, b := range r.Bins {
		marker := " "
		if b.Diagnosis != model.DiagnosisCalibrated {
			marker = "⚠"
		}
		fmt.Fprintf(w, "%s %3.0f-%-3.0f %9d %9.2f %9.2f  %s\n",
			marker, b.Lower*100, b.Upper*100, b.SampleCount, b.PredictedMean, b.ObservedAccuracy, b.Diagnosis)
	}
	fmt.Fprintln(w)
}
