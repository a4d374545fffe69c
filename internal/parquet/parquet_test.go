package parquet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructTags(t *testing.T) {
	tests := []struct {
		name    string
		model   any
		columns []string
	}{
		{"invocation", new(Invocation), []string{"invocation_id", "mode", "started_at", "finished_at", "pair_count", "complete"}},
		{"summary", new(RunSummary), []string{"run_on", "run_off", "t_on", "n_on", "n_off", "alpha", "significance", "label", "max_sig_correlated"}},
		{"skymap", new(SkyMapBin), []string{"run_id", "category", "name", "bin_x", "bin_y", "x", "y", "value"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parquet.SchemaOf(tt.model)
			require.NotNil(t, s)
			for _, col := range tt.columns {
				_, ok := s.Lookup(col)
				assert.True(t, ok, "Column %s should exist in schema", col)
			}
		})
	}
}

func TestConvertSummaryRecords(t *testing.T) {
	records := []schema.RunSummaryRecord{
		{RunOn: 10, RunOff: 11, NOn: 120, NOff: 400, Alpha: 0.2, AlphaDefined: true, Significance: 5.4},
		{RunOn: schema.CombinedRunID, RunOff: schema.CombinedRunID, NOn: 120, NOff: 400, Significance: 1},
	}
	rows := ConvertSummaryRecords("inv", records, func(sig float64) string {
		if sig > 5 {
			return "high"
		}
		return "low"
	})
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Alpha)
	assert.InDelta(t, 0.2, *rows[0].Alpha, 1e-12)
	assert.Equal(t, "high", rows[0].Label)
	assert.Equal(t, "inv", rows[0].InvocationID)
	assert.Nil(t, rows[1].Alpha)
	assert.Equal(t, int32(-1), rows[1].RunOn)
	assert.Equal(t, "low", rows[1].Label)
}

func TestConvertSkyMap(t *testing.T) {
	ax, err := hist.NewAxis(2, -1, 1)
	require.NoError(t, err)
	m := hist.NewDist2D(ax, ax)
	m.Set(0, 0, 3)
	m.SetUndefined(1, 1)

	rows := ConvertSkyMap(7, schema.CategorySignificance, "correlated", m)
	require.Len(t, rows, 4)
	assert.Equal(t, int32(7), rows[0].RunID)
	require.NotNil(t, rows[0].Value)
	assert.Equal(t, 3.0, *rows[0].Value)
	assert.InDelta(t, -0.5, rows[0].X, 1e-12)
	assert.Nil(t, rows[3].Value)
}

func TestWriteAndReadRunSummaries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.parquet")
	alpha := 0.25
	data := []RunSummary{
		{InvocationID: "a", RunOn: 1, RunOff: 2, NOn: 10, NOff: 30, Alpha: &alpha, Significance: 1.2, Label: "None"},
		{InvocationID: "a", RunOn: -1, RunOff: -1, NOn: 10, NOff: 30, Significance: 1.2, Label: "None"},
	}
	require.NoError(t, WriteRunSummariesParquet(data, path))

	got, err := ReadParquet[RunSummary](path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, data[0].RunOn, got[0].RunOn)
	require.NotNil(t, got[0].Alpha)
	assert.Equal(t, alpha, *got[0].Alpha)
	assert.Nil(t, got[1].Alpha)
}

func TestWriteAndReadInvocations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invocations.parquet")
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(time.Minute)
	rows := ConvertInvocationRecords([]schema.InvocationRecord{
		{InvocationID: "x", Mode: schema.SequentialMode, StartedAt: started, FinishedAt: &finished, PairCount: 3, Complete: true},
		{InvocationID: "y", Mode: schema.MergeMode, StartedAt: started, PairCount: 1},
	})
	require.NoError(t, WriteInvocationsParquet(rows, path))

	got, err := ReadParquet[Invocation](path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sequential", got[0].Mode)
	require.NotNil(t, got[0].FinishedAt)
	assert.True(t, finished.Equal(*got[0].FinishedAt))
	assert.Nil(t, got[1].FinishedAt)
	assert.False(t, got[1].Complete)
}

func TestWriteSkyMapBinsBadPath(t *testing.T) {
	err := WriteSkyMapBinsParquet(nil, filepath.Join(t.TempDir(), "missing", "x.parquet"))
	assert.Error(t, err)
}
