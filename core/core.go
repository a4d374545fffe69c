// Package core drives the run-pair orchestration and the read-only views over
// a finished result store.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/skysig/core/qfactor"
	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/internal/outwriter"
	"github.com/huangsam/skysig/internal/parquet"
	"github.com/huangsam/skysig/internal/runsource"
	"github.com/huangsam/skysig/internal/store"
	"github.com/huangsam/skysig/schema"
)

// ErrNoResults is returned when a store holds nothing to show.
var ErrNoResults = errors.New("no results stored, run the analysis first")

// ExecutorFunc defines the function signature for the command entry points.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config) error

// ExecuteRun processes the configured pairs and prints the summary table.
// It serves as the main entry point for the 'run' command.
func ExecuteRun(ctx context.Context, cfg *contract.Config) error {
	start := time.Now()
	res, err := RunInvocation(ctx, cfg)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteSummary(res.Records, res.Invocation, cfg, time.Since(start))
}

// RunInvocation opens the stores named by cfg and runs one invocation.
func RunInvocation(ctx context.Context, cfg *contract.Config) (*Result, error) {
	results, err := store.Open(cfg.StoreBackend, cfg.StoreDBConnect)
	if err != nil {
		return nil, err
	}
	defer func() { _ = results.Close() }()

	var source contract.RunSource
	var prior *store.ResultStore
	if cfg.Mode == schema.MergeMode {
		prior, err = store.Open(cfg.MergeBackend, cfg.MergeDBConnect)
		if err != nil {
			return nil, fmt.Errorf("open merge source: %w", err)
		}
		defer func() { _ = prior.Close() }()
	} else {
		source = runsource.New(cfg.SourceDir)
	}

	orch, err := NewOrchestrator(cfg, source, results, prior)
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx, cfg.Pairs, cfg.Mode)
}

// ExecuteSummary prints the summary records of the result store.
func ExecuteSummary(ctx context.Context, cfg *contract.Config) error {
	st, err := store.Open(cfg.StoreBackend, cfg.StoreDBConnect)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	records, err := st.Summaries(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrNoResults
	}
	status, err := st.Status(ctx)
	if err != nil {
		return err
	}
	if !status.Complete {
		contract.LogWarn("Summary", fmt.Errorf("invocation %s did not complete", status.LastInvocationID))
	}
	return outwriter.NewOutWriter().WriteSummary(records, status.LastInvocationID, cfg, 0)
}

// ExecuteCurves prints the stored Q-factor scan of one run and quantity.
func ExecuteCurves(ctx context.Context, cfg *contract.Config) error {
	st, err := store.Open(cfg.StoreBackend, cfg.StoreDBConnect)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	curves, err := LoadCurves(ctx, st, cfg.RunID, cfg.Quantity)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteCurves(curves, cfg)
}

// LoadCurves reads both scan directions of a quantity from a stored run.
func LoadCurves(ctx context.Context, st *store.ResultStore, runID int, q schema.Quantity) (schema.QFactorCurves, error) {
	if q == "" {
		return schema.QFactorCurves{}, errors.New("a quantity is required")
	}
	low, err := loadDist1D(ctx, st, runID, schema.QFactorLowName(q))
	if err != nil {
		return schema.QFactorCurves{}, err
	}
	high, err := loadDist1D(ctx, st, runID, schema.QFactorHighName(q))
	if err != nil {
		return schema.QFactorCurves{}, err
	}
	points, err := qfactor.Curves{Low: low, High: high}.Points()
	if err != nil {
		return schema.QFactorCurves{}, fmt.Errorf("run %s quantity %s: %w", contract.FormatRunID(runID), q, err)
	}
	return schema.QFactorCurves{RunID: runID, Quantity: q, Points: points}, nil
}

// ListCurveQuantities returns the quantities with a stored scan for a run.
func ListCurveQuantities(ctx context.Context, st *store.ResultStore, runID int) ([]schema.Quantity, error) {
	objects, err := st.ListObjects(ctx, runID)
	if err != nil {
		return nil, err
	}
	var out []schema.Quantity
	for _, obj := range objects {
		if obj.Category != schema.CategoryQFactor {
			continue
		}
		if q, dir, ok := schema.SplitQFactorName(obj.Name); ok && dir == "low" {
			out = append(out, q)
		}
	}
	return out, nil
}

func loadDist1D(ctx context.Context, st *store.ResultStore, runID int, name string) (*hist.Dist1D, error) {
	h, err := st.Object(ctx, runID, schema.CategoryQFactor, name)
	if err != nil {
		return nil, fmt.Errorf("run %s %s: %w", contract.FormatRunID(runID), name, err)
	}
	d, ok := h.(*hist.Dist1D)
	if !ok {
		return nil, fmt.Errorf("run %s %s is a %s, want dist1d", contract.FormatRunID(runID), name, h.Kind())
	}
	return d, nil
}

// ExecuteStoreStatus prints the result store status.
func ExecuteStoreStatus(ctx context.Context, cfg *contract.Config) error {
	st, err := store.Open(cfg.StoreBackend, cfg.StoreDBConnect)
	if err != nil {
		// Status still reports an unreachable backend
		contract.LogWarn("Store status", err)
		return outwriter.NewOutWriter().WriteStatus(schema.StoreStatus{Backend: string(cfg.StoreBackend)}, nil, cfg)
	}
	defer func() { _ = st.Close() }()

	status, err := st.Status(ctx)
	if err != nil {
		return err
	}
	invocations, err := st.Invocations(ctx)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteStatus(status, invocations, cfg)
}

// ExecuteStoreClear removes every stored invocation and run.
func ExecuteStoreClear(ctx context.Context, cfg *contract.Config) error {
	st, err := store.Open(cfg.StoreBackend, cfg.StoreDBConnect)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Clear(ctx); err != nil {
		return err
	}
	contract.LogInfo("Cleared %s result store", cfg.StoreBackend)
	return nil
}

// ExecuteStoreMigrate moves the store schema to targetVersion, or to the latest
// version when targetVersion is negative.
func ExecuteStoreMigrate(_ context.Context, cfg *contract.Config, targetVersion int) error {
	msg, err := store.Migrate(cfg.StoreBackend, cfg.StoreDBConnect, targetVersion)
	if err != nil {
		return err
	}
	contract.LogInfo("%s", msg)
	return nil
}

// ExportPaths names the files written by an export.
type ExportPaths struct {
	Invocations string
	Summaries   string
	SkyMaps     string
}

// NewExportPaths derives the export file names from a prefix.
func NewExportPaths(prefix string) ExportPaths {
	return ExportPaths{
		Invocations: prefix + ".invocations.parquet",
		Summaries:   prefix + ".summaries.parquet",
		SkyMaps:     prefix + ".skymaps.parquet",
	}
}

// ExecuteExport writes the invocations, summary rows and significance maps of
// the store to Parquet files.
func ExecuteExport(ctx context.Context, cfg *contract.Config) error {
	if cfg.OutputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	st, err := store.Open(cfg.StoreBackend, cfg.StoreDBConnect)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	paths := NewExportPaths(cfg.OutputFile)
	counts, err := Export(ctx, st, paths)
	if err != nil {
		return err
	}
	contract.LogInfo("Exported %d invocations to: %s", counts[0], paths.Invocations)
	contract.LogInfo("Exported %d summary rows to: %s", counts[1], paths.Summaries)
	contract.LogInfo("Exported %d sky map bins to: %s", counts[2], paths.SkyMaps)
	return nil
}

// Export writes the three Parquet files and returns their row counts.
func Export(ctx context.Context, st *store.ResultStore, paths ExportPaths) ([3]int, error) {
	var counts [3]int
	records, err := st.Summaries(ctx)
	if err != nil {
		return counts, err
	}
	if len(records) == 0 {
		return counts, ErrNoResults
	}
	status, err := st.Status(ctx)
	if err != nil {
		return counts, err
	}
	invocations, err := st.Invocations(ctx)
	if err != nil {
		return counts, err
	}

	invRows := parquet.ConvertInvocationRecords(invocations)
	if err := parquet.WriteInvocationsParquet(invRows, paths.Invocations); err != nil {
		return counts, fmt.Errorf("failed to write invocations: %w", err)
	}
	summaryRows := parquet.ConvertSummaryRecords(status.LastInvocationID, records, contract.GetPlainLabel)
	if err := parquet.WriteRunSummariesParquet(summaryRows, paths.Summaries); err != nil {
		return counts, fmt.Errorf("failed to write summaries: %w", err)
	}

	var bins []parquet.SkyMapBin
	for _, r := range records {
		for _, v := range schema.AllVariants {
			name := schema.SignificanceMapName(v)
			h, err := st.Object(ctx, r.RunOn, schema.CategorySignificance, name)
			if err != nil {
				return counts, fmt.Errorf("run %s %s: %w", contract.FormatRunID(r.RunOn), name, err)
			}
			m, ok := h.(*hist.Dist2D)
			if !ok {
				return counts, fmt.Errorf("run %s %s is a %s, want dist2d", contract.FormatRunID(r.RunOn), name, h.Kind())
			}
			bins = append(bins, parquet.ConvertSkyMap(r.RunOn, schema.CategorySignificance, name, m)...)
		}
	}
	if err := parquet.WriteSkyMapBinsParquet(bins, paths.SkyMaps); err != nil {
		return counts, fmt.Errorf("failed to write sky maps: %w", err)
	}
	return [3]int{len(invRows), len(summaryRows), len(bins)}, nil
}
