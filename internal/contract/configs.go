package contract

import (
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/huangsam/skysig/schema"
)

// Default values for configuration.
const (
	DefaultPrecision     = 2
	MaxPrecision         = 6
	DefaultSigDistRadius = 1.5
	DefaultSigDistBins   = 100
	DefaultSigDistMin    = -10.0
	DefaultSigDistMax    = 10.0
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// Config holds the runtime configuration for an invocation.
// This struct remains the "final, validated" config.
type Config struct {
	Pairs     []schema.RunPair
	Mode      schema.Mode
	SourceDir string
	Workers   int

	StoreBackend   schema.DatabaseBackend
	StoreDBConnect string // Please use env var as this is plaintext

	MergeBackend   schema.DatabaseBackend
	MergeDBConnect string

	// Target position offsets in map coordinates
	TargetShiftNorth float64
	TargetShiftWest  float64

	// Significance distribution diagnostic
	SigDistRadius float64
	SigDistBins   int
	SigDistMin    float64
	SigDistMax    float64

	RunID    int
	Quantity schema.Quantity

	Precision  int
	Output     schema.OutputMode
	OutputFile string
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool
	Quiet      bool
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	PairStrs []string

	// --- Fields from rootCmd.PersistentFlags() ---
	StoreBackend   string `mapstructure:"store-backend"`
	StoreDBConnect string `mapstructure:"store-db-connect"`
	Output         string `mapstructure:"output"`
	OutputFile     string `mapstructure:"output-file"`
	Precision      int    `mapstructure:"precision"`
	Width          int    `mapstructure:"width"`
	Color          string `mapstructure:"color"`
	Quiet          bool   `mapstructure:"quiet"`

	// --- Fields from runCmd.Flags() ---
	Mode           string `mapstructure:"mode"`
	SourceDir      string `mapstructure:"source-dir"`
	Workers        int    `mapstructure:"workers"`
	MergeBackend   string `mapstructure:"merge-backend"`
	MergeDBConnect string `mapstructure:"merge-db-connect"`

	// --- Fields from curvesCmd.Flags() ---
	Run      int    `mapstructure:"run"`
	Quantity string `mapstructure:"quantity"`

	// --- Fields from the run-parameter file ---
	TargetShiftNorth float64 `mapstructure:"target-shift-north"`
	TargetShiftWest  float64 `mapstructure:"target-shift-west"`
	SigDistRadius    float64 `mapstructure:"sigdist-radius"`
	SigDistBins      int     `mapstructure:"sigdist-bins"`
	SigDistMin       float64 `mapstructure:"sigdist-min"`
	SigDistMax       float64 `mapstructure:"sigdist-max"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Pairs = slices.Clone(c.Pairs)
	return &clone
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := processRunInputs(cfg, input); err != nil {
		return err
	}
	if err := processRunParameters(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// ParseRunPairs parses "ON:OFF" tokens. A bare "ON" pairs the run with itself.
func ParseRunPairs(tokens []string) ([]schema.RunPair, error) {
	pairs := make([]schema.RunPair, 0, len(tokens))
	seen := make(map[int]struct{}, len(tokens))
	for _, tok := range tokens {
		for field := range strings.FieldsFuncSeq(tok, func(r rune) bool { return r == ',' || r == ' ' }) {
			p, err := parseRunPair(field)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[p.On]; dup {
				return nil, fmt.Errorf("run %d is listed more than once", p.On)
			}
			seen[p.On] = struct{}{}
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

func parseRunPair(s string) (schema.RunPair, error) {
	onStr, offStr, found := strings.Cut(s, ":")
	on, err := strconv.Atoi(strings.TrimSpace(onStr))
	if err != nil {
		return schema.RunPair{}, fmt.Errorf("invalid run pair %q: %w", s, err)
	}
	off := on
	if found {
		off, err = strconv.Atoi(strings.TrimSpace(offStr))
		if err != nil {
			return schema.RunPair{}, fmt.Errorf("invalid run pair %q: %w", s, err)
		}
	}
	if on <= 0 || off <= 0 {
		return schema.RunPair{}, fmt.Errorf("invalid run pair %q: run ids must be positive", s)
	}
	return schema.RunPair{On: on, Off: off}, nil
}

// validateSimpleInputs processes and validates the output related fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.Quiet = input.Quiet

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Precision < 0 || input.Precision > MaxPrecision {
		return fmt.Errorf("precision must be between 0 and %d (received %d)", MaxPrecision, input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	if input.Width < 0 {
		return fmt.Errorf("width cannot be negative (received %d)", input.Width)
	}
	return nil
}

// validateBackendConfigs validates result and merge store configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.StoreBackend = schema.DatabaseBackend(strings.ToLower(input.StoreBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.StoreBackend]; !ok {
		return fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql", input.StoreBackend)
	}
	cfg.StoreDBConnect = input.StoreDBConnect
	if err := ValidateDatabaseConnectionString(cfg.StoreBackend, cfg.StoreDBConnect); err != nil {
		return err
	}

	if input.MergeBackend == "" {
		return nil
	}
	cfg.MergeBackend = schema.DatabaseBackend(strings.ToLower(input.MergeBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.MergeBackend]; !ok {
		return fmt.Errorf("invalid merge backend '%s'. must be sqlite, mysql, postgresql", input.MergeBackend)
	}
	cfg.MergeDBConnect = input.MergeDBConnect
	if err := ValidateDatabaseConnectionString(cfg.MergeBackend, cfg.MergeDBConnect); err != nil {
		return err
	}

	// The merge source must not be the store being written
	if cfg.MergeBackend == cfg.StoreBackend {
		if cfg.StoreBackend == schema.SQLiteBackend {
			storePath := cfg.StoreDBConnect
			if storePath == "" {
				storePath = GetStoreDBFilePath()
			}
			mergePath := cfg.MergeDBConnect
			if mergePath == "" {
				mergePath = GetStoreDBFilePath()
			}
			if filepath.Clean(storePath) == filepath.Clean(mergePath) {
				return fmt.Errorf("merge source and result store must use different SQLite database files. Both resolve to %q", storePath)
			}
		} else if cfg.MergeDBConnect == cfg.StoreDBConnect {
			return fmt.Errorf("merge source and result store must use different databases")
		}
	}
	return nil
}

// processRunInputs handles the pair list, mode and source settings.
func processRunInputs(cfg *Config, input *ConfigRawInput) error {
	pairs, err := ParseRunPairs(input.PairStrs)
	if err != nil {
		return err
	}
	cfg.Pairs = pairs

	mode := input.Mode
	if mode == "" {
		mode = string(schema.SequentialMode)
	}
	cfg.Mode = schema.Mode(strings.ToLower(mode))
	if _, ok := schema.ValidModes[cfg.Mode]; !ok {
		return fmt.Errorf("invalid mode '%s'. must be sequential, merge", input.Mode)
	}

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers
	cfg.SourceDir = strings.TrimSpace(input.SourceDir)

	if len(cfg.Pairs) > 0 {
		switch cfg.Mode {
		case schema.SequentialMode:
			if cfg.SourceDir == "" {
				return fmt.Errorf("sequential mode requires --source-dir")
			}
		case schema.MergeMode:
			if cfg.MergeBackend == "" {
				return fmt.Errorf("merge mode requires --merge-backend")
			}
		}
	}

	cfg.RunID = input.Run
	cfg.Quantity = schema.Quantity(strings.TrimSpace(input.Quantity))
	return nil
}

// processRunParameters validates the values from the run-parameter file.
func processRunParameters(cfg *Config, input *ConfigRawInput) error {
	cfg.TargetShiftNorth = input.TargetShiftNorth
	cfg.TargetShiftWest = input.TargetShiftWest

	if input.SigDistRadius <= 0 {
		return fmt.Errorf("sigdist-radius must be greater than 0 (received %g)", input.SigDistRadius)
	}
	cfg.SigDistRadius = input.SigDistRadius

	if input.SigDistBins <= 0 {
		return fmt.Errorf("sigdist-bins must be greater than 0 (received %d)", input.SigDistBins)
	}
	if !(input.SigDistMax > input.SigDistMin) {
		return fmt.Errorf("sigdist-max (%g) must exceed sigdist-min (%g)", input.SigDistMax, input.SigDistMin)
	}
	cfg.SigDistBins = input.SigDistBins
	cfg.SigDistMin = input.SigDistMin
	cfg.SigDistMax = input.SigDistMax
	return nil
}

// ProcessProfilingConfig handles the profiling flag and sets up profiling configuration.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}
