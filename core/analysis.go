package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/huangsam/skysig/core/agg"
	"github.com/huangsam/skysig/core/norm"
	"github.com/huangsam/skysig/core/qfactor"
	"github.com/huangsam/skysig/core/sigmap"
	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/internal/store"
	"github.com/huangsam/skysig/schema"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoPairs is returned when an invocation has nothing to process.
	ErrNoPairs = errors.New("no run pairs to process")
	// ErrStoreNotEmpty is returned when the destination already holds a run id
	// of the invocation or a combined record.
	ErrStoreNotEmpty = errors.New("result store already holds results for this invocation")
	// ErrAlphaUndefined is returned when a pair has no usable alpha at the target.
	ErrAlphaUndefined = errors.New("alpha undefined at target")
)

// Orchestrator drives one invocation: every pair in Phase 1, then the combined
// pass in Phase 2, writing everything into a single result store.
type Orchestrator struct {
	Source  contract.RunSource // per-run analysis output, used in SEQUENTIAL mode
	Results *store.ResultStore // destination of this invocation
	Prior   *store.ResultStore // source of subtrees, used in MERGE mode
	Engine  *sigmap.Engine
	Workers int

	ShiftNorth float64
	ShiftWest  float64
}

// Result is what an invocation produced.
type Result struct {
	Invocation string
	Records    []schema.RunSummaryRecord // per-run records in pair order, combined last
	Combined   schema.RunSummaryRecord
	Aggregate  agg.Means
}

// pairOutcome is the per-pair input to the ordered fold.
type pairOutcome struct {
	record schema.RunSummaryRecord
	on     hist.Set
	off    hist.Set
	alpha  map[schema.Variant]*hist.Dist2D
}

// passOutput is what one pass of the engine writes for a pair or the combined pair.
type passOutput struct {
	diff    hist.Set
	excess  map[schema.Variant]*hist.Dist2D
	errMaps map[schema.Variant]*hist.Dist2D
	maps    map[schema.Variant]*sigmap.Map
	dists   map[schema.Variant]*hist.Dist1D
	curves  map[schema.Quantity]qfactor.Curves
	target  sigmap.Target
}

// NewOrchestrator builds an orchestrator from a validated config.
func NewOrchestrator(cfg *contract.Config, source contract.RunSource, results, prior *store.ResultStore) (*Orchestrator, error) {
	axis, err := hist.NewAxis(cfg.SigDistBins, cfg.SigDistMin, cfg.SigDistMax)
	if err != nil {
		return nil, fmt.Errorf("significance distribution binning: %w", err)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{
		Source:     source,
		Results:    results,
		Prior:      prior,
		Engine:     sigmap.NewEngine(cfg.SigDistRadius, axis),
		Workers:    workers,
		ShiftNorth: cfg.TargetShiftNorth,
		ShiftWest:  cfg.TargetShiftWest,
	}, nil
}

// Run processes the pairs in the given mode and writes the combined record.
// The store is marked complete only when every step succeeded.
func (o *Orchestrator) Run(ctx context.Context, pairs []schema.RunPair, mode schema.Mode) (*Result, error) {
	if len(pairs) == 0 {
		return nil, ErrNoPairs
	}
	switch mode {
	case schema.SequentialMode:
		if o.Source == nil {
			return nil, errors.New("sequential mode needs a run source")
		}
	case schema.MergeMode:
		if o.Prior == nil {
			return nil, errors.New("merge mode needs a prior result store")
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	if !shouldSuppressHeader(ctx) {
		contract.LogInfo("Processing %d run pairs in %s mode with %d workers", len(pairs), mode, o.Workers)
	}

	if err := o.checkDestination(ctx, pairs); err != nil {
		return nil, err
	}

	invocation, err := o.Results.Begin(ctx, mode, len(pairs))
	if err != nil {
		return nil, err
	}

	// --- Phase 1: per-pair results folded in pair order ---
	state := agg.New()
	combiner := norm.NewCombiner()
	onTotal, offTotal := make(hist.Set), make(hist.Set)
	records := make([]schema.RunSummaryRecord, 0, len(pairs)+1)

	fold := newOrderedFold(func(out *pairOutcome) error {
		if err := state.Add(out.record); err != nil {
			return err
		}
		if err := onTotal.Accumulate(out.on); err != nil {
			return fmt.Errorf("combine on set of %s: %w", out.record.Pair(), err)
		}
		if err := offTotal.Accumulate(out.off); err != nil {
			return fmt.Errorf("combine off set of %s: %w", out.record.Pair(), err)
		}
		for _, v := range schema.AllVariants {
			offMap, _ := out.off.Map(schema.SkyMapQuantity(v))
			if err := combiner.Add(v, out.alpha[v], offMap, out.record.TOff); err != nil {
				return fmt.Errorf("run %s: %w", out.record.Pair(), err)
			}
		}
		records = append(records, out.record)
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)
	for i, pair := range pairs {
		g.Go(func() error {
			var out *pairOutcome
			var err error
			if mode == schema.MergeMode {
				out, err = o.importPair(gctx, pair)
			} else {
				out, err = o.processPair(gctx, pair)
			}
			if err != nil {
				return err
			}
			return fold.deliver(i, out)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// --- Phase 2: the combined pass over the union of all pairs ---
	if err := state.Finalize(); err != nil {
		return nil, err
	}
	combined, err := o.combinedPass(ctx, state, combiner, onTotal, offTotal)
	if err != nil {
		return nil, err
	}
	records = append(records, combined)

	if err := o.Results.MarkComplete(ctx); err != nil {
		return nil, err
	}
	return &Result{
		Invocation: invocation,
		Records:    records,
		Combined:   combined,
		Aggregate:  state.Means(),
	}, nil
}

// checkDestination refuses an invocation whose run ids repeat or are already
// stored, before anything is written.
func (o *Orchestrator) checkDestination(ctx context.Context, pairs []schema.RunPair) error {
	seen := make(map[int]schema.RunPair, len(pairs))
	for _, pair := range pairs {
		if prev, ok := seen[pair.ID()]; ok {
			return fmt.Errorf("run pairs %s and %s share run id %d", prev, pair, pair.ID())
		}
		seen[pair.ID()] = pair
	}
	ids := make([]int, 0, len(pairs)+1)
	for _, pair := range pairs {
		ids = append(ids, pair.ID())
	}
	ids = append(ids, schema.CombinedRunID)
	for _, id := range ids {
		has, err := o.Results.HasRun(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return fmt.Errorf("run %s: %w", contract.FormatRunID(id), ErrStoreNotEmpty)
		}
	}
	return nil
}

// processPair computes and stores the subtree of one pair from the run source.
func (o *Orchestrator) processPair(ctx context.Context, pair schema.RunPair) (*pairOutcome, error) {
	handle, err := o.Source.OpenPair(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("open run pair %s: %w", pair, err)
	}
	defer func() { _ = handle.Close() }()

	data, err := handle.Data()
	if err != nil {
		return nil, fmt.Errorf("load run pair %s: %w", pair, err)
	}
	on, off := data.On.Histograms, data.Off.Histograms
	if on == nil || off == nil {
		return nil, fmt.Errorf("run pair %s has no histograms", pair)
	}
	fillMissing(pair, on, off)
	if err := requireSkyMaps(on, off); err != nil {
		return nil, fmt.Errorf("run pair %s: %w", pair, err)
	}
	for _, v := range schema.AllVariants {
		if data.Alpha[v] == nil {
			return nil, fmt.Errorf("run pair %s: missing %s alpha map", pair, v)
		}
	}

	normalizer := norm.New(data.Alpha, o.ShiftNorth, o.ShiftWest)
	alpha, ok := normalizer.NormAtTarget(schema.Correlated)
	if !ok {
		x, y := normalizer.TargetPosition()
		return nil, fmt.Errorf("run pair %s: %s at (%g, %g): %w", pair, schema.Correlated, x, y, ErrAlphaUndefined)
	}

	pass, err := o.evaluate(on, off, normalizer, alpha, false)
	if err != nil {
		return nil, fmt.Errorf("run pair %s: %w", pair, err)
	}

	onEntries, offEntries := skyMapEntries(on, off)
	record := NewRunSummaryBuilder().
		WithPair(pair).
		WithExposure(data.On.Info, data.Off.Info).
		WithPointing(data.On.Pointing, data.Off.Pointing).
		WithRawRates(onEntries, offEntries).
		WithTarget(pass.target, o.ShiftNorth, o.ShiftWest).
		WithPeaks(pass.peaks()).
		Build()

	if err := o.write(ctx, pair, record, on, off, data.Alpha, pass); err != nil {
		return nil, err
	}
	return &pairOutcome{record: record, on: on, off: off, alpha: data.Alpha}, nil
}

// importPair copies a complete subtree from the prior store.
func (o *Orchestrator) importPair(ctx context.Context, pair schema.RunPair) (*pairOutcome, error) {
	sub, err := o.Prior.ReadRun(ctx, pair.ID())
	if err != nil {
		return nil, fmt.Errorf("merge run pair %s: %w", pair, err)
	}
	if sub.Pair != pair {
		return nil, fmt.Errorf("merge run pair %s: stored subtree belongs to %s", pair, sub.Pair)
	}
	if err := o.Results.ImportRun(ctx, sub); err != nil {
		return nil, err
	}

	on, err := sub.Set(schema.CategoryOn)
	if err != nil {
		return nil, fmt.Errorf("merge run pair %s: %w", pair, err)
	}
	off, err := sub.Set(schema.CategoryOff)
	if err != nil {
		return nil, fmt.Errorf("merge run pair %s: %w", pair, err)
	}
	alpha := make(map[schema.Variant]*hist.Dist2D, len(schema.AllVariants))
	for _, v := range schema.AllVariants {
		h, err := sub.Histogram(schema.CategoryAlpha, schema.AlphaName(v))
		if err != nil {
			return nil, fmt.Errorf("merge run pair %s: %w", pair, err)
		}
		m, ok := h.(*hist.Dist2D)
		if !ok {
			return nil, fmt.Errorf("merge run pair %s: %s alpha is a %s", pair, v, h.Kind())
		}
		alpha[v] = m
	}
	return &pairOutcome{record: sub.Summary, on: on, off: off, alpha: alpha}, nil
}

// combinedPass evaluates the union of all pairs and stores the sentinel subtree.
func (o *Orchestrator) combinedPass(ctx context.Context, state *agg.State, combiner *norm.Combiner, on, off hist.Set) (schema.RunSummaryRecord, error) {
	alphaMaps := combiner.Maps()
	for _, v := range schema.AllVariants {
		if alphaMaps[v] == nil {
			return schema.RunSummaryRecord{}, fmt.Errorf("combined pass: no %s alpha map", v)
		}
	}
	normalizer := norm.New(alphaMaps, o.ShiftNorth, o.ShiftWest)

	pass, err := o.evaluate(on, off, normalizer, 1, true)
	if err != nil {
		return schema.RunSummaryRecord{}, fmt.Errorf("combined pass: %w", err)
	}

	b, err := NewCombinedSummaryBuilder(state)
	if err != nil {
		return schema.RunSummaryRecord{}, err
	}
	record := b.WithTarget(pass.target, o.ShiftNorth, o.ShiftWest).WithPeaks(pass.peaks()).Build()

	if err := o.write(ctx, schema.CombinedPair, record, on, off, alphaMaps, pass); err != nil {
		return schema.RunSummaryRecord{}, err
	}
	return record, nil
}

// evaluate runs the Q-factor scan, the 1D and 2D differences and the significance
// maps. The scan reads off before the per-run pass rescales it.
func (o *Orchestrator) evaluate(on, off hist.Set, normalizer *norm.Normalizer, alpha float64, combined bool) (*passOutput, error) {
	curves, err := qfactor.ScanSet(on, off, o.Engine.Policy, alpha, combined)
	if err != nil {
		return nil, err
	}
	diff, err := o.Engine.DifferenceSet(on, off, alpha, combined)
	if err != nil {
		return nil, err
	}

	pass := &passOutput{
		diff:    diff,
		excess:  make(map[schema.Variant]*hist.Dist2D),
		errMaps: make(map[schema.Variant]*hist.Dist2D),
		maps:    make(map[schema.Variant]*sigmap.Map),
		dists:   make(map[schema.Variant]*hist.Dist1D),
		curves:  curves,
	}
	for _, v := range schema.AllVariants {
		onMap, _ := on.Map(schema.SkyMapQuantity(v))
		offMap, _ := off.Map(schema.SkyMapQuantity(v))
		alphaMap, ok := normalizer.Map(v)
		if !ok {
			return nil, fmt.Errorf("no %s alpha map", v)
		}
		excess, errMap, err := o.Engine.Difference2D(onMap, offMap, alphaMap)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v, err)
		}
		sig, err := o.Engine.SignificanceMap(onMap, offMap, alphaMap)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v, err)
		}
		pass.excess[v], pass.errMaps[v] = excess, errMap
		pass.maps[v] = sig
		pass.dists[v] = o.Engine.Distribution(sig)
	}

	onMap, _ := on.Map(schema.SkyMapQuantity(schema.Correlated))
	offMap, _ := off.Map(schema.SkyMapQuantity(schema.Correlated))
	if i, j, ok := normalizer.TargetBin(schema.Correlated); ok {
		a, aok := normalizer.AlphaAtBin(i, j, schema.Correlated)
		pass.target = sigmap.AtTarget(onMap, offMap, i, j, a, aok)
	} else {
		contract.LogWarn("Target position", errors.New("outside the sky map, target columns left at zero"))
	}
	return pass, nil
}

func (p *passOutput) peaks() map[schema.Variant]schema.Peak {
	out := make(map[schema.Variant]schema.Peak, len(p.maps))
	for v, m := range p.maps {
		out[v] = m.Peak
	}
	return out
}

// write commits the subtree of one pair in a single transaction.
func (o *Orchestrator) write(ctx context.Context, pair schema.RunPair, record schema.RunSummaryRecord,
	on, off hist.Set, alpha map[schema.Variant]*hist.Dist2D, pass *passOutput,
) error {
	w := o.Results.Run(pair)
	if err := w.PutSet(schema.CategoryOn, on); err != nil {
		return err
	}
	if err := w.PutSet(schema.CategoryOff, off); err != nil {
		return err
	}
	if err := w.PutSet(schema.CategoryDiff, pass.diff); err != nil {
		return err
	}
	for _, v := range schema.AllVariants {
		puts := []struct {
			cat  schema.Category
			name string
			h    hist.Histogram
		}{
			{schema.CategoryAlpha, schema.AlphaName(v), alpha[v]},
			{schema.CategoryDiff, schema.ExcessName(v), pass.excess[v]},
			{schema.CategoryDiff, schema.ExcessErrorName(v), pass.errMaps[v]},
			{schema.CategorySignificance, schema.SignificanceMapName(v), pass.maps[v].Sig},
			{schema.CategorySignificance, schema.SignificanceDistName(v), pass.dists[v]},
		}
		for _, p := range puts {
			if err := w.Put(p.cat, p.name, p.h); err != nil {
				return err
			}
		}
	}
	for q, c := range pass.curves {
		if err := w.Put(schema.CategoryQFactor, schema.QFactorLowName(q), c.Low); err != nil {
			return err
		}
		if err := w.Put(schema.CategoryQFactor, schema.QFactorHighName(q), c.High); err != nil {
			return err
		}
	}
	w.SetSummary(record)
	if err := w.Commit(ctx); err != nil {
		return fmt.Errorf("store run %s: %w", pair, err)
	}
	return nil
}

// fillMissing adds an empty placeholder for a quantity present on one side only.
func fillMissing(pair schema.RunPair, on, off hist.Set) {
	for _, q := range on.Quantities() {
		if _, ok := off[q]; !ok {
			contract.LogWarn(fmt.Sprintf("Run pair %s", pair), fmt.Errorf("off run has no %s, using an empty placeholder", q))
			off[q] = on[q].CloneEmpty()
		}
	}
	for _, q := range off.Quantities() {
		if _, ok := on[q]; !ok {
			contract.LogWarn(fmt.Sprintf("Run pair %s", pair), fmt.Errorf("on run has no %s, using an empty placeholder", q))
			on[q] = off[q].CloneEmpty()
		}
	}
}

// requireSkyMaps checks that both count maps exist as 2D distributions on both sides.
func requireSkyMaps(on, off hist.Set) error {
	for _, v := range schema.AllVariants {
		q := schema.SkyMapQuantity(v)
		if _, ok := on.Map(q); !ok {
			return fmt.Errorf("on run has no %s sky map", v)
		}
		if _, ok := off.Map(q); !ok {
			return fmt.Errorf("off run has no %s sky map", v)
		}
	}
	return nil
}

// skyMapEntries returns the total counts of the uncorrelated maps, the raw event numbers.
func skyMapEntries(on, off hist.Set) (float64, float64) {
	onMap, _ := on.Map(schema.QuantitySkyMapUncorrelated)
	offMap, _ := off.Map(schema.QuantitySkyMapUncorrelated)
	return onMap.Entries(), offMap.Entries()
}

// orderedFold applies results in index order regardless of completion order.
type orderedFold struct {
	mu    sync.Mutex
	next  int
	ready map[int]*pairOutcome
	apply func(*pairOutcome) error
}

func newOrderedFold(apply func(*pairOutcome) error) *orderedFold {
	return &orderedFold{ready: make(map[int]*pairOutcome), apply: apply}
}

// deliver hands over result i and applies every contiguous result that is ready.
func (f *orderedFold) deliver(i int, out *pairOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready[i] = out
	for {
		next, ok := f.ready[f.next]
		if !ok {
			return nil
		}
		delete(f.ready, f.next)
		if err := f.apply(next); err != nil {
			return err
		}
		f.next++
	}
}
