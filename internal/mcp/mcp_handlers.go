package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/huangsam/skysig/core"
	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/internal/store"
	"github.com/huangsam/skysig/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	results *store.ResultStore
}

// runListing is one entry of list_runs.
type runListing struct {
	RunOn        int     `json:"run_on"`
	RunOff       int     `json:"run_off"`
	Significance float64 `json:"significance"`
	Label        string  `json:"label"`
	Rate         float64 `json:"rate"`
	RateError    float64 `json:"rate_error"`
	MaxSig       float64 `json:"max_significance"`
	Combined     bool    `json:"combined,omitempty"`
}

func (h *toolHandler) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minSig := request.GetFloat("min_significance", -1e300)

	records, err := h.results.Summaries(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading summaries failed: %v", err)), nil
	}
	out := make([]runListing, 0, len(records))
	for _, r := range records {
		if r.Significance < minSig {
			continue
		}
		out = append(out, runListing{
			RunOn:        r.RunOn,
			RunOff:       r.RunOff,
			Significance: r.Significance,
			Label:        contract.GetPlainLabel(r.Significance),
			Rate:         r.Rate,
			RateError:    r.RateError,
			MaxSig:       max(r.MaxSigCorrelated, r.MaxSigUncorrelated),
			Combined:     r.IsCombined(),
		})
	}
	return jsonResult(out)
}

func (h *toolHandler) handleGetRunSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := parseRunArg(request.GetString("run", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	record, err := h.results.Summary(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run %s: %v", contract.FormatRunID(runID), err)), nil
	}
	return jsonResult(struct {
		schema.RunSummaryRecord
		Label string `json:"label"`
	}{record, contract.GetPlainLabel(record.Significance)})
}

func (h *toolHandler) handleGetQFactor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := parseRunArg(request.GetString("run", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	q := schema.Quantity(strings.TrimSpace(request.GetString("quantity", string(h.baseCfg.Quantity))))
	if q == "" {
		quantities, err := core.ListCurveQuantities(ctx, h.results, runID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing curves failed: %v", err)), nil
		}
		if len(quantities) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("run %s has no stored curves", contract.FormatRunID(runID))), nil
		}
		return jsonResult(map[string]any{"run": runID, "quantities": quantities})
	}

	curves, err := core.LoadCurves(ctx, h.results, runID, q)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading curves failed: %v", err)), nil
	}
	return jsonResult(curves)
}

func (h *toolHandler) handleGetStoreStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := h.results.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading status failed: %v", err)), nil
	}
	return jsonResult(status)
}

// parseRunArg accepts an on-run id or "combined".
func parseRunArg(s string) (int, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return 0, errors.New("run is required")
	case strings.EqualFold(s, "combined"):
		return schema.CombinedRunID, nil
	}
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid run %q: expected a run id or 'combined'", s)
	}
	return id, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
