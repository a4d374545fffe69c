package mcp_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/huangsam/skysig/core"
	"github.com/huangsam/skysig/internal/contract"
	mcp_internal "github.com/huangsam/skysig/internal/mcp"
	"github.com/huangsam/skysig/internal/runsource"
	"github.com/huangsam/skysig/internal/store"
	"github.com/huangsam/skysig/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// filledStore runs one invocation over generated data and reopens its store.
func filledStore(t *testing.T) *store.ResultStore {
	t.Helper()
	pairs := []schema.RunPair{{On: 41, Off: 42}, {On: 43, Off: 43}}
	dir := t.TempDir()
	for _, p := range pairs {
		require.NoError(t, runsource.WritePair(dir, p, runsource.DefaultSynthOptions()))
	}
	cfg := &contract.Config{
		Pairs:          pairs,
		Mode:           schema.SequentialMode,
		SourceDir:      dir,
		Workers:        2,
		StoreBackend:   schema.SQLiteBackend,
		StoreDBConnect: filepath.Join(t.TempDir(), "results.db"),
		SigDistRadius:  contract.DefaultSigDistRadius,
		SigDistBins:    contract.DefaultSigDistBins,
		SigDistMin:     contract.DefaultSigDistMin,
		SigDistMax:     contract.DefaultSigDistMax,
	}
	_, err := core.RunInvocation(core.WithSuppressHeader(context.Background()), cfg)
	require.NoError(t, err)

	st, err := store.Open(cfg.StoreBackend, cfg.StoreDBConnect)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func callTool(t *testing.T, baseCfg *contract.Config, st *store.ResultStore, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	s := mcp_internal.NewMCPServer(baseCfg, st)
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)

	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	require.NotNil(t, res)
	return res
}

func text(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

func TestMCPServerTools(t *testing.T) {
	st := filledStore(t)
	baseCfg := &contract.Config{}

	t.Run("list_runs", func(t *testing.T) {
		res := callTool(t, baseCfg, st, "list_runs", map[string]any{})
		require.False(t, res.IsError, text(res))
		var runs []map[string]any
		require.NoError(t, json.Unmarshal([]byte(text(res)), &runs))
		require.Len(t, runs, 3)
		assert.Equal(t, float64(41), runs[0]["run_on"])
		assert.Equal(t, true, runs[2]["combined"])
	})

	t.Run("list_runs filtered", func(t *testing.T) {
		res := callTool(t, baseCfg, st, "list_runs", map[string]any{"min_significance": 1e6})
		require.False(t, res.IsError)
		assert.Equal(t, "[]", text(res))
	})

	t.Run("get_run_summary combined", func(t *testing.T) {
		res := callTool(t, baseCfg, st, "get_run_summary", map[string]any{"run": "combined"})
		require.False(t, res.IsError, text(res))
		var rec schema.RunSummaryRecord
		require.NoError(t, json.Unmarshal([]byte(text(res)), &rec))
		assert.True(t, rec.IsCombined())
	})

	t.Run("get_run_summary unknown run", func(t *testing.T) {
		res := callTool(t, baseCfg, st, "get_run_summary", map[string]any{"run": "7"})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "run 7")
	})

	t.Run("get_run_summary invalid run", func(t *testing.T) {
		res := callTool(t, baseCfg, st, "get_run_summary", map[string]any{"run": "abc"})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "invalid run")
	})

	t.Run("get_qfactor lists quantities", func(t *testing.T) {
		res := callTool(t, baseCfg, st, "get_qfactor", map[string]any{"run": "41"})
		require.False(t, res.IsError, text(res))
		assert.Contains(t, text(res), `"mscw"`)
	})

	t.Run("get_qfactor curves", func(t *testing.T) {
		res := callTool(t, baseCfg, st, "get_qfactor", map[string]any{"run": "43", "quantity": "theta2"})
		require.False(t, res.IsError, text(res))
		var curves schema.QFactorCurves
		require.NoError(t, json.Unmarshal([]byte(text(res)), &curves))
		assert.Equal(t, schema.QuantityTheta2, curves.Quantity)
		assert.NotEmpty(t, curves.Points)
	})

	t.Run("get_qfactor unknown quantity", func(t *testing.T) {
		res := callTool(t, baseCfg, st, "get_qfactor", map[string]any{"run": "43", "quantity": "nope"})
		assert.True(t, res.IsError)
	})

	t.Run("get_store_status", func(t *testing.T) {
		res := callTool(t, baseCfg, st, "get_store_status", nil)
		require.False(t, res.IsError, text(res))
		assert.Contains(t, text(res), `"has_combined": true`)
	})
}

func TestMCPServerMissingRun(t *testing.T) {
	st, err := store.Open(schema.SQLiteBackend, filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	res := callTool(t, &contract.Config{}, st, "get_qfactor", map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "run is required")
}
