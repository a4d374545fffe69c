package cmd

import (
	"github.com/huangsam/skysig/core"
	"github.com/huangsam/skysig/internal/contract"
	"github.com/spf13/cobra"
)

// exportCmd exports the result store to Parquet files.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored results to Parquet for analytics tools",
	Long: `Export the result store to three Parquet files named after --output-file:

  <prefix>.invocations.parquet - one row per invocation
  <prefix>.summaries.parquet   - one row per run pair plus the combined row
  <prefix>.skymaps.parquet     - every bin of every significance map

Requires: --output-file parameter

Examples:
  skysig export --output-file results
  duckdb -c "SELECT run_id, max(value) FROM read_parquet('results.skymaps.parquet') GROUP BY run_id"`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteExport(rootCtx, cfg); err != nil {
			contract.LogFatal("Failed to export results", err)
		}
	},
}
