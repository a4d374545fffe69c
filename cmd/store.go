package cmd

import (
	"fmt"

	"github.com/huangsam/skysig/core"
	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// storeSetup loads minimal configuration needed for store operations.
// It skips pair parsing and run-parameter validation.
func storeSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend := schema.DatabaseBackend(viper.GetString("store-backend"))
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql", backend)
	}
	connStr := viper.GetString("store-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	cfg.StoreBackend = backend
	cfg.StoreDBConnect = connStr
	cfg.Output = schema.OutputMode(viper.GetString("output"))
	cfg.OutputFile = viper.GetString("output-file")
	contract.SetQuiet(viper.GetBool("quiet"))
	return nil
}

// storeSetupWrapper wraps storeSetup to provide PreRunE for store commands.
func storeSetupWrapper(_ *cobra.Command, _ []string) error {
	return storeSetup()
}

// storeCmd focused on result store management.
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the result store",
	Long: `Manage the result store that holds one subtree per run pair and the combined result.

Supported backends: SQLite (default), MySQL, PostgreSQL

Subcommands:
  status  - Show schema version, last invocation and table sizes
  clear   - Remove all stored results
  migrate - Move the schema to a given version

Examples:
  skysig store status
  SKYSIG_STORE_BACKEND=postgresql SKYSIG_STORE_DB_CONNECT="host=localhost dbname=skysig" skysig store status`,
}

// storeStatusCmd shows the store status.
var storeStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display result store status and invocation history",
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteStoreStatus(rootCtx, cfg); err != nil {
			contract.LogFatal("Failed to get store status", err)
		}
	},
}

// storeClearCmd clears the store.
var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored results",
	Long: `Delete every invocation, run subtree and summary row from the configured store.
The schema itself is kept.`,
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteStoreClear(rootCtx, cfg); err != nil {
			contract.LogFatal("Failed to clear store", err)
		}
	},
}

// storeMigrateCmd runs database migrations for the result store.
var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the result store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  skysig store migrate

  # Rollback to the initial state
  skysig store migrate --target-version 0`,
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteStoreMigrate(rootCtx, cfg, viper.GetInt("target-version")); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
