// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the skysig MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, results *store.ResultStore) *server.MCPServer {
	s := server.NewMCPServer(
		"Skysig Results Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		results: results,
	}

	s.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List the run pairs in the result store with their significance at the target."),
		mcp.WithNumber("min_significance", mcp.Description("Only list runs at or above this significance in sigma.")),
	), h.handleListRuns)

	s.AddTool(mcp.NewTool("get_run_summary",
		mcp.WithDescription("Get the full summary record of one run, or of the combined result."),
		mcp.WithString("run", mcp.Description("On-run id, or 'combined' for the combined result."), mcp.Required()),
	), h.handleGetRunSummary)

	s.AddTool(mcp.NewTool("get_qfactor",
		mcp.WithDescription("Get the cumulative cut-optimization curves of one quantity for a run."),
		mcp.WithString("run", mcp.Description("On-run id, or 'combined' for the combined result."), mcp.Required()),
		mcp.WithString("quantity", mcp.Description("Quantity name, e.g. 'mscw' or 'theta2'. Lists the available quantities when omitted.")),
	), h.handleGetQFactor)

	s.AddTool(mcp.NewTool("get_store_status",
		mcp.WithDescription("Describe the result store: backend, schema version, last invocation and table sizes."),
	), h.handleGetStoreStatus)

	return s
}

// StartMCPServer starts the skysig MCP server over stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, results *store.ResultStore) error {
	s := NewMCPServer(baseCfg, results)
	return server.ServeStdio(s)
}
