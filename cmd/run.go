package cmd

import (
	"github.com/huangsam/skysig/core"
	"github.com/huangsam/skysig/internal/contract"
	"github.com/spf13/cobra"
)

// runCmd processes run pairs into the result store.
var runCmd = &cobra.Command{
	Use:   "run ON[:OFF] [ON[:OFF] ...]",
	Short: "Process run pairs into significance maps and a summary table",
	Long: `Process every run pair into its own result subtree, then stack all pairs
into the combined result.

Each pair is ON:OFF, or a single ON for wobble runs that take their background
from the same run.

The destination store holds one invocation. A run is refused when any requested
run id or a combined result is already stored; use a new --store-db-connect or
"skysig store clear" first.

Modes:
  sequential - compute every pair from the per-run files in --source-dir
  merge      - copy finished pair subtrees from another store and redo only the combined pass

Examples:
  # Three pairs from a directory of per-run output
  skysig run 64080:64081 64082:64083 64084 --source-dir ./runs

  # Shift the target and write the summary as CSV
  skysig run 64080:64081 --source-dir ./runs --params target.yaml --output csv --output-file summary.csv

  # Rebuild the combined result from a finished store
  skysig run 64080:64081 64082:64083 --mode merge --merge-backend sqlite --merge-db-connect old.db --store-db-connect new.db`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteRun(rootCtx, cfg); err != nil {
			contract.LogFatal("Failed to process run pairs", err)
		}
	},
}
