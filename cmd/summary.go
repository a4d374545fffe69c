package cmd

import (
	"github.com/huangsam/skysig/core"
	"github.com/huangsam/skysig/internal/contract"
	"github.com/spf13/cobra"
)

// summaryCmd prints the stored summary table.
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the summary table of the result store",
	Long: `Print one row per stored run pair plus the combined row, in any output format.

Examples:
  # Table on the terminal
  skysig summary

  # Parquet for analytics tools
  skysig summary --output parquet --output-file summary.parquet`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteSummary(rootCtx, cfg); err != nil {
			contract.LogFatal("Failed to print summary", err)
		}
	},
}
