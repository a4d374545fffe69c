// Package cmd defines the command-line interface for skysig.
package cmd

import (
	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(curvesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(mcpCmd)

	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("store-backend", string(schema.SQLiteBackend), "Result store backend: sqlite or mysql or postgresql")
	rootCmd.PersistentFlags().String("store-db-connect", "", "Result store connection string (sqlite file path, or e.g. user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress progress messages on stderr")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("params", "", "Path to a run-parameter file merged over the config")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of runCmd to Viper
	runCmd.Flags().String("mode", string(schema.SequentialMode), "Orchestration mode: sequential or merge")
	runCmd.Flags().String("source-dir", "", "Directory holding run_<id>.json and alpha_<on>_<off>.json files")
	runCmd.Flags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	runCmd.Flags().String("merge-backend", "", "Backend of the finished store to merge from: sqlite or mysql or postgresql")
	runCmd.Flags().String("merge-db-connect", "", "Connection string of the store to merge from (must differ from store-db-connect)")
	if err := viper.BindPFlags(runCmd.Flags()); err != nil {
		contract.LogFatal("Error binding run flags", err)
	}

	// Bind all flags of curvesCmd to Viper
	curvesCmd.Flags().Int("run", schema.CombinedRunID, "On-run id of the curves (-1 selects the combined result)")
	curvesCmd.Flags().String("quantity", string(schema.QuantityMSCW), "Quantity of the curves, e.g. mscw or theta2")
	if err := viper.BindPFlags(curvesCmd.Flags()); err != nil {
		contract.LogFatal("Error binding curves flags", err)
	}

	// Bind all flags of storeMigrateCmd to Viper
	storeMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(storeMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding store migrate flags", err)
	}
}
