package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/worker"
)

var (
	concurrency  int
	batchOutput  string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Score many answers from a JSONL file in parallel",
	Long: `Batch scores one request per line of a JSONL file:

  {"id":"q1","text":"...","domain":"gdpr","sources":["ico.org.uk"],"user_role":"analyst"}

Blank lines and lines starting with # are ignored. Results are written as
JSONL in input order, one object per request.

Example:
  credence batch requests.jsonl
  credence batch requests.jsonl --concurrency 8 --output results.jsonl --record`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "output JSONL path (default: stdout)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVarP(&scoreDomain, "domain", "d", "", "domain for requests that name none")
	batchCmd.Flags().StringVar(&scoreRole, "role", "", "user role for requests that name none")
	batchCmd.Flags().BoolVar(&recordResult, "record", false, "store every assessment in the history database")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the assessment cache")
}

func runBatch(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	a, err := newApp(ctx, cfg, appOptions{record: recordResult, noCache: noCache})
	if err != nil {
		return err
	}
	defer a.Close()

	workers := concurrency
	if !cmd.Flags().Changed("concurrency") && cfg.Concurrency.Workers > 0 {
		workers = cfg.Concurrency.Workers
	}

	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch scoring: %s\n", args[0])
	fmt.Fprintf(os.Stderr, "  Workers: %d\n", workers)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════\n\n")

	start := time.Now()
	processor := worker.NewBatchProcessor(a.pipeline, workers, logger).WithDefaults(scoreDomain, scoreRole)
	results, err := processor.ProcessFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if batchOutput != "" {
		f, createErr := os.Create(batchOutput)
		if createErr != nil {
			return fmt.Errorf("create output: %w", createErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close output: %w", closeErr)
			}
		}()
		out = f
	}
	if err := worker.WriteResults(out, results); err != nil {
		return err
	}

	summary := worker.Summarize(results)
	fmt.Fprintf(os.Stderr, "\n✓ Scored %d of %d requests in %s\n", summary.Total-summary.Failed, summary.Total, time.Since(start).Round(time.Millisecond))
	if summary.Total > summary.Failed {
		fmt.Fprintf(os.Stderr, "  Mean score: %.1f\n", summary.MeanScore)
		for _, level := range []model.ConfidenceLevel{model.LevelVeryHigh, model.LevelHigh, model.LevelMedium, model.LevelLow, model.LevelVeryLow} {
			if n := summary.ByLevel[level]; n > 0 {
				fmt.Fprintf(os.Stderr, "  %-10s %d\n", level, n)
			}
		}
	}
	if summary.Failed > 0 {
		fmt.Fprintf(os.Stderr, "⚠ %d requests failed (see the error field in the output)\n", summary.Failed)
	}
	if batchOutput != "" {
		fmt.Fprintf(os.Stderr, "✓ Results: %s\n", batchOutput)
	}

	return nil
}
