package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// profile holds the --profile setting; session is the profiling in progress.
var (
	profile = &contract.ProfileConfig{}
	session *profileSession
)

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "skysig",
	Short:              "Combine per-run on/off sky data into significance maps and run summaries.",
	Long:               `Skysig turns per-run on/off analysis output into background-subtracted significance maps, cut-optimization curves and a per-run summary table, then stacks every run into one combined result.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// setConfigSearch points viper at the config file.
func setConfigSearch() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".skysig")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setConfigSearch()

	viper.SetEnvPrefix("SKYSIG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("workers", contract.DefaultWorkers)
	viper.SetDefault("mode", schema.SequentialMode)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("store-backend", schema.SQLiteBackend)
	viper.SetDefault("store-db-connect", "")
	viper.SetDefault("merge-backend", "")
	viper.SetDefault("merge-db-connect", "")
	viper.SetDefault("color", "yes")
	viper.SetDefault("sigdist-radius", contract.DefaultSigDistRadius)
	viper.SetDefault("sigdist-bins", contract.DefaultSigDistBins)
	viper.SetDefault("sigdist-min", contract.DefaultSigDistMin)
	viper.SetDefault("sigdist-max", contract.DefaultSigDistMax)
}

// readConfigFile loads the config file if present, then merges the run-parameter file on top.
func readConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	if params := viper.GetString("params"); params != "" {
		viper.SetConfigFile(params)
		if err := viper.MergeInConfig(); err != nil {
			return fmt.Errorf("error reading run-parameter file %s: %w", params, err)
		}
	}
	return nil
}

// sharedSetup unmarshals config and runs validation.
func sharedSetup(_ context.Context, _ *cobra.Command, args []string) error {
	profilePrefix := viper.GetString("profile")
	if err := contract.ProcessProfilingConfig(profile, profilePrefix); err != nil {
		return fmt.Errorf("failed to process profiling config: %w", err)
	}
	if profile.Enabled && session == nil {
		ps, err := startProfile(profile.Prefix)
		if err != nil {
			return fmt.Errorf("failed to start profiling: %w", err)
		}
		session = ps
	}

	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := readConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle positional arguments (which Viper doesn't do).
	input.PairStrs = args

	// 4. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}
	contract.SetQuiet(cfg.Quiet)
	color.NoColor = !cfg.UseColors
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// loadConfigFile handles config file loading logic common to the store commands.
func loadConfigFile() error {
	setConfigSearch()
	return readConfigFile()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// StopProfiling finishes the profiling session, if any.
func StopProfiling() error {
	if session == nil {
		return nil
	}
	err := session.Stop()
	session = nil
	return err
}
