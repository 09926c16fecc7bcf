package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/pipeline"
)

var (
	scoreText    string
	scoreFile    string
	scoreURL     string
	scoreDomain  string
	scoreRole    string
	scoreSources []string
	outJSON      string
	outMD        string
	timeout      time.Duration
	recordResult bool
	explain      bool
	noCache      bool
	noFooter     bool
	probeSources bool
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one AI-generated compliance answer",
	Long: `Score extracts the checkable claims of an answer, verifies them against the
domain's authorities and known facts, flags fabrication patterns and prints a
0-100 confidence score with a presentation recommendation.

The answer is read from --text, --file, --url or standard input. HTML is
reduced to visible text and its links are treated as cited sources.

Example:
  credence score --domain gdpr --text "Breaches must be reported within 72 hours." --source ico.org.uk
  credence score --domain hipaa --file answer.txt --json result.json --md result.md
  echo "..." | credence score --domain pci-dss --role compliance_officer --record`,
	Args: cobra.NoArgs,
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	// Input flags
	scoreCmd.Flags().StringVar(&scoreText, "text", "", "answer text")
	scoreCmd.Flags().StringVar(&scoreFile, "file", "", "read the answer from a file")
	scoreCmd.Flags().StringVar(&scoreURL, "url", "", "fetch a published answer from a URL")
	scoreCmd.Flags().StringVarP(&scoreDomain, "domain", "d", "", "regulatory domain (gdpr, hipaa, pci-dss, iso27001, ...)")
	scoreCmd.Flags().StringVar(&scoreRole, "role", "", "role of the reader (compliance_officer escalates sooner)")
	scoreCmd.Flags().StringSliceVarP(&scoreSources, "source", "s", nil, "source cited with the answer (repeatable)")

	// Output flags
	scoreCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path")
	scoreCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path")
	scoreCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	// Behaviour flags
	scoreCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	scoreCmd.Flags().BoolVar(&recordResult, "record", false, "store the assessment in the history database")
	scoreCmd.Flags().BoolVar(&explain, "explain", false, "ask the configured LLM provider for a plain-language explanation")
	scoreCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the assessment cache")
	scoreCmd.Flags().BoolVar(&probeSources, "probe", false, "probe cited web sources for reachability")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if probeSources {
		cfg.Verify.Reachability.Enabled = true
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	text, err := readAnswer(ctx, cfg, cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, appOptions{record: recordResult, explain: explain, noCache: noCache})
	if err != nil {
		return err
	}
	defer a.Close()

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Scoring %d characters against the %s pack...\n", len(text), a.packs.Lookup(scoreDomain).Name)
	}

	assessment, err := a.pipeline.ScoreResponse(ctx, model.Request{
		Text:     text,
		Domain:   scoreDomain,
		Sources:  scoreSources,
		UserRole: scoreRole,
	})
	if err != nil {
		return fmt.Errorf("score failed: %w", err)
	}

	if verbose {
		verified, contradicted, unverified := assessment.Counts()
		fmt.Fprintf(os.Stderr, "✓ Extracted %d claims\n", len(assessment.Claims))
		fmt.Fprintf(os.Stderr, "✓ Verified %d, contradicted %d, unverified %d\n", verified, contradicted, unverified)
		fmt.Fprintf(os.Stderr, "✓ Hallucination risk %.2f\n", assessment.Hallucination.RiskScore)
		if assessment.Explanation != "" {
			fmt.Fprintf(os.Stderr, "✓ Generated explanation using %s\n", cfg.LLM.Provider)
		}
		if recordResult {
			fmt.Fprintf(os.Stderr, "✓ Recorded as %s\n", assessment.ID)
		}
		fmt.Fprintln(os.Stderr)
	}

	return render(cmd.OutOrStdout(), cfg, assessment, outJSON, outMD)
}

// render writes the requested files and prints the summary
func render(w io.Writer, cfg *model.Config, a *model.Assessment, jsonPath, mdPath string) error {
	r := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	if jsonPath != "" {
		if err := r.RenderJSON(a, jsonPath); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", jsonPath)
	}
	if mdPath != "" {
		if err := r.RenderMarkdown(a, mdPath); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", mdPath)
	}
	r.RenderSummary(w, a)
	return nil
}

// readAnswer picks the answer from --text, --file, --url or stdin, in that order
func readAnswer(ctx context.Context, cfg *model.Config, stdin io.Reader) (string, error) {
	set := 0
	for _, v := range []string{scoreText, scoreFile, scoreURL} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return "", fmt.Errorf("use only one of --text, --file and --url")
	}

	switch {
	case scoreText != "":
		return scoreText, nil
	case scoreFile != "":
		data, err := os.ReadFile(scoreFile)
		if err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}
		return string(data), nil
	case scoreURL != "":
		fetcher := pipeline.NewFetcher(timeout, cfg.HTTP, 2_000_000)
		res, err := fetcher.FetchWithRetry(ctx, scoreURL)
		if err != nil {
			return "", fmt.Errorf("fetch answer: %w", err)
		}
		// The page itself is a source for its own claims
		scoreSources = append(scoreSources, res.FinalURL)
		return res.Body, nil
	}

	data, err := io.ReadAll(io.LimitReader(stdin, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("no answer given: use --text, --file, --url or pipe text on stdin")
	}
	return string(data), nil
}
