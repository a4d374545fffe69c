package cmd

import (
	"github.com/huangsam/skysig/core"
	"github.com/huangsam/skysig/internal/contract"
	"github.com/spf13/cobra"
)

// curvesCmd prints a stored Q-factor scan.
var curvesCmd = &cobra.Command{
	Use:   "curves",
	Short: "Print the cut-optimization curves of one run and quantity",
	Long: `Print the cumulative significance obtained by cutting a quantity from
below and from above, bin by bin, together with the best cut.

Examples:
  # Combined result, mscw
  skysig curves --quantity mscw

  # One run as JSON
  skysig curves --run 64080 --quantity theta2 --output json`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteCurves(rootCtx, cfg); err != nil {
			contract.LogFatal("Failed to print curves", err)
		}
	},
}
