package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/credence/internal/store"
)

var (
	outcomeCorrect   bool
	outcomeIncorrect bool
)

// outcomeCmd represents the outcome command
var outcomeCmd = &cobra.Command{
	Use:   "outcome <assessment-id>",
	Short: "Record whether a scored answer turned out to be correct",
	Long: `Outcome labels a recorded assessment after human review. Labelled
assessments feed 'credence calibrate'.

Example:
  credence outcome 3f2b9c1e-... --correct
  credence outcome 3f2b9c1e-... --incorrect`,
	Args: cobra.ExactArgs(1),
	RunE: runOutcome,
}

func init() {
	rootCmd.AddCommand(outcomeCmd)

	outcomeCmd.Flags().BoolVar(&outcomeCorrect, "correct", false, "the answer was correct")
	outcomeCmd.Flags().BoolVar(&outcomeIncorrect, "incorrect", false, "the answer was not correct")
	outcomeCmd.MarkFlagsMutuallyExclusive("correct", "incorrect")
	outcomeCmd.MarkFlagsOneRequired("correct", "incorrect")
}

func runOutcome(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	id := args[0]
	if err := st.RecordOutcome(cmd.Context(), id, outcomeCorrect); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no recorded assessment %s (score with --record first)", id)
		}
		return err
	}

	label := "incorrect"
	if outcomeCorrect {
		label = "correct"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Recorded %s as %s\n", id, label)

	if rec, err := st.Get(cmd.Context(), id); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  scored %d/100 (%s) for %s on %s\n",
			rec.Score, rec.Level, rec.Domain, rec.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
