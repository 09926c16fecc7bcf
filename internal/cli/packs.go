package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// packsCmd represents the packs command
var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "Inspect domain knowledge packs",
	Long: `Domain packs hold the authoritative sources, known facts, extra extraction
rules and topic keywords of a regulatory domain. Built-in packs can be
overridden or extended with *.yaml files in domains.dir.`,
}

var packsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available packs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		packs, err := loadPacks(cfg)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, p := range packs.Packs() {
			aliases := ""
			if len(p.Aliases) > 0 {
				aliases = " (" + strings.Join(p.Aliases, ", ") + ")"
			}
			fmt.Fprintf(w, "%-10s expertise %.2f  %d authorities  %d facts%s\n",
				p.Name, p.Expertise, len(p.Authorities.Primary)+len(p.Authorities.Secondary), len(p.Facts), aliases)
		}
		return nil
	},
}

var packsShowCmd = &cobra.Command{
	Use:   "show <domain>",
	Short: "Print a pack as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		packs, err := loadPacks(cfg)
		if err != nil {
			return err
		}

		p, err := packs.Get(args[0])
		if err != nil {
			return fmt.Errorf("%w (available: %s)", err, strings.Join(packs.Names(), ", "))
		}
		data, err := yaml.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal pack: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(packsCmd)
	packsCmd.AddCommand(packsListCmd)
	packsCmd.AddCommand(packsShowCmd)
}
