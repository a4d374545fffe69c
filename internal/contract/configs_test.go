package contract

import (
	"path/filepath"
	"testing"

	"github.com/huangsam/skysig/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		PairStrs:       []string{"64080:64081", "64082"},
		StoreBackend:   "sqlite",
		StoreDBConnect: ":memory:",
		Output:         "text",
		Precision:      2,
		Color:          "no",
		Mode:           "sequential",
		SourceDir:      "testdata/runs",
		Workers:        2,
		SigDistRadius:  DefaultSigDistRadius,
		SigDistBins:    DefaultSigDistBins,
		SigDistMin:     DefaultSigDistMin,
		SigDistMax:     DefaultSigDistMax,
	}
}

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*ConfigRawInput)
		expectError bool
	}{
		{name: "valid minimal config", modify: func(*ConfigRawInput) {}},
		{
			name:        "invalid mode",
			modify:      func(in *ConfigRawInput) { in.Mode = "parallel" },
			expectError: true,
		},
		{
			name:        "invalid output",
			modify:      func(in *ConfigRawInput) { in.Output = "xml" },
			expectError: true,
		},
		{
			name:        "parquet without file",
			modify:      func(in *ConfigRawInput) { in.Output = "parquet" },
			expectError: true,
		},
		{
			name:        "zero workers",
			modify:      func(in *ConfigRawInput) { in.Workers = 0 },
			expectError: true,
		},
		{
			name:        "precision too high",
			modify:      func(in *ConfigRawInput) { in.Precision = 9 },
			expectError: true,
		},
		{
			name:        "invalid color",
			modify:      func(in *ConfigRawInput) { in.Color = "sometimes" },
			expectError: true,
		},
		{
			name:        "sequential without source",
			modify:      func(in *ConfigRawInput) { in.SourceDir = "" },
			expectError: true,
		},
		{
			name:        "merge without merge backend",
			modify:      func(in *ConfigRawInput) { in.Mode = "merge" },
			expectError: true,
		},
		{
			name: "merge with merge backend",
			modify: func(in *ConfigRawInput) {
				in.Mode = "merge"
				in.MergeBackend = "sqlite"
				in.MergeDBConnect = filepath.Join(t.TempDir(), "prior.db")
			},
		},
		{
			name: "merge source equals store",
			modify: func(in *ConfigRawInput) {
				in.Mode = "merge"
				in.MergeBackend = "sqlite"
				in.MergeDBConnect = ":memory:"
			},
			expectError: true,
		},
		{
			name:        "bad pair",
			modify:      func(in *ConfigRawInput) { in.PairStrs = []string{"x:1"} },
			expectError: true,
		},
		{
			name:        "duplicate on run",
			modify:      func(in *ConfigRawInput) { in.PairStrs = []string{"1:2", "1:3"} },
			expectError: true,
		},
		{
			name:        "empty sigdist range",
			modify:      func(in *ConfigRawInput) { in.SigDistMax = in.SigDistMin },
			expectError: true,
		},
		{
			name:        "mysql without connection",
			modify:      func(in *ConfigRawInput) { in.StoreBackend = "mysql"; in.StoreDBConnect = "" },
			expectError: true,
		},
		{
			name: "no pairs skips source check",
			modify: func(in *ConfigRawInput) {
				in.PairStrs = nil
				in.SourceDir = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.modify(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, schema.SQLiteBackend, cfg.StoreBackend)
		})
	}
}

func TestProcessAndValidatePopulatesConfig(t *testing.T) {
	input := validInput()
	input.TargetShiftNorth = -0.5
	input.TargetShiftWest = 0.25
	input.Output = "JSON"

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))

	assert.Equal(t, []schema.RunPair{{On: 64080, Off: 64081}, {On: 64082, Off: 64082}}, cfg.Pairs)
	assert.Equal(t, schema.SequentialMode, cfg.Mode)
	assert.Equal(t, schema.JSONOut, cfg.Output)
	assert.Equal(t, -0.5, cfg.TargetShiftNorth)
	assert.Equal(t, 0.25, cfg.TargetShiftWest)
	assert.Equal(t, 2, cfg.Workers)

	clone := cfg.Clone()
	clone.Pairs[0].On = 1
	assert.Equal(t, 64080, cfg.Pairs[0].On)
}

func TestParseRunPairs(t *testing.T) {
	pairs, err := ParseRunPairs([]string{"1:2,3", " 4:5 "})
	require.NoError(t, err)
	assert.Equal(t, []schema.RunPair{{On: 1, Off: 2}, {On: 3, Off: 3}, {On: 4, Off: 5}}, pairs)

	_, err = ParseRunPairs([]string{"0:1"})
	assert.Error(t, err)
	_, err = ParseRunPairs([]string{"1:"})
	assert.Error(t, err)
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		name    string
		backend schema.DatabaseBackend
		conn    string
		wantErr bool
	}{
		{"sqlite empty", schema.SQLiteBackend, "", false},
		{"mysql valid", schema.MySQLBackend, "user:pass@tcp(localhost:3306)/skysig", false},
		{"mysql no tcp", schema.MySQLBackend, "user:pass@localhost/skysig", true},
		{"postgres valid", schema.PostgreSQLBackend, "host=localhost dbname=skysig", false},
		{"postgres no dbname", schema.PostgreSQLBackend, "host=localhost", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseConnectionString(tt.backend, tt.conn)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcessProfilingConfig(t *testing.T) {
	var p ProfileConfig
	require.NoError(t, ProcessProfilingConfig(&p, ""))
	assert.False(t, p.Enabled)
	require.NoError(t, ProcessProfilingConfig(&p, "prof/run"))
	assert.True(t, p.Enabled)
	assert.Equal(t, "prof/run", p.Prefix)
}
