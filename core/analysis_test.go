package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/internal/runsource"
	"github.com/huangsam/skysig/internal/store"
	"github.com/huangsam/skysig/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testConfig() *contract.Config {
	return &contract.Config{
		Workers:       2,
		SigDistRadius: contract.DefaultSigDistRadius,
		SigDistBins:   contract.DefaultSigDistBins,
		SigDistMin:    contract.DefaultSigDistMin,
		SigDistMax:    contract.DefaultSigDistMax,
	}
}

func openStore(t *testing.T, name string) *store.ResultStore {
	t.Helper()
	s, err := store.Open(schema.SQLiteBackend, filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeSource(t *testing.T, pairs []schema.RunPair) string {
	t.Helper()
	dir := t.TempDir()
	for _, p := range pairs {
		require.NoError(t, runsource.WritePair(dir, p, runsource.DefaultSynthOptions()))
	}
	return dir
}

func staticHandle(t *testing.T, pair schema.RunPair) *contract.StaticPairHandle {
	t.Helper()
	data, err := runsource.Synthesize(pair, runsource.DefaultSynthOptions())
	require.NoError(t, err)
	return &contract.StaticPairHandle{Pair: data}
}

var recordOpts = cmpopts.EquateApprox(0, 1e-9)

func TestRunRequiresPairs(t *testing.T) {
	o, err := NewOrchestrator(testConfig(), runsource.New(t.TempDir()), openStore(t, "a.db"), nil)
	require.NoError(t, err)
	_, err = o.Run(context.Background(), nil, schema.SequentialMode)
	assert.ErrorIs(t, err, ErrNoPairs)
}

func TestRunRejectsMissingInputs(t *testing.T) {
	ctx := WithSuppressHeader(context.Background())
	pairs := []schema.RunPair{{On: 1, Off: 2}}

	o, err := NewOrchestrator(testConfig(), nil, openStore(t, "a.db"), nil)
	require.NoError(t, err)
	_, err = o.Run(ctx, pairs, schema.SequentialMode)
	assert.Error(t, err)
	_, err = o.Run(ctx, pairs, schema.MergeMode)
	assert.Error(t, err)
	_, err = o.Run(ctx, pairs, schema.Mode("parallel"))
	assert.Error(t, err)
}

func TestSequentialRun(t *testing.T) {
	ctx := WithSuppressHeader(context.Background())
	pairs := []schema.RunPair{{On: 64080, Off: 64081}, {On: 64082, Off: 64083}, {On: 64090, Off: 64090}}
	results := openStore(t, "seq.db")

	o, err := NewOrchestrator(testConfig(), runsource.New(writeSource(t, pairs)), results, nil)
	require.NoError(t, err)
	res, err := o.Run(ctx, pairs, schema.SequentialMode)
	require.NoError(t, err)

	require.Len(t, res.Records, len(pairs)+1)
	for i, p := range pairs {
		assert.Equal(t, p, res.Records[i].Pair())
		assert.True(t, res.Records[i].AlphaDefined)
		assert.InDelta(t, 0.2, res.Records[i].Alpha, 1e-12)
		assert.Greater(t, res.Records[i].Significance, 0.0)
	}
	assert.True(t, res.Combined.IsCombined())
	assert.Equal(t, res.Combined, res.Records[len(pairs)])
	assert.InDelta(t, 3*1200.0, res.Combined.TOn, 1e-9)
	assert.Equal(t, len(pairs), res.Aggregate.N)
	assert.Greater(t, res.Combined.Significance, res.Records[0].Significance)

	status, err := results.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Complete)
	assert.True(t, status.HasCombined)
	assert.Equal(t, len(pairs), status.TotalRuns)

	stored, err := results.Summaries(ctx)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(res.Records, stored, recordOpts))

	// the combined subtree has every category
	objects, err := results.ListObjects(ctx, schema.CombinedRunID)
	require.NoError(t, err)
	seen := map[schema.Category]bool{}
	for _, obj := range objects {
		seen[obj.Category] = true
	}
	for _, cat := range []schema.Category{schema.CategoryOn, schema.CategoryOff, schema.CategoryAlpha,
		schema.CategoryDiff, schema.CategorySignificance, schema.CategoryQFactor} {
		assert.True(t, seen[cat], cat)
	}
}

func TestSequentialThenMergeRoundTrip(t *testing.T) {
	ctx := WithSuppressHeader(context.Background())
	pairs := []schema.RunPair{{On: 100, Off: 101}, {On: 102, Off: 103}, {On: 104, Off: 104}}

	prior := openStore(t, "prior.db")
	seq, err := NewOrchestrator(testConfig(), runsource.New(writeSource(t, pairs)), prior, nil)
	require.NoError(t, err)
	first, err := seq.Run(ctx, pairs, schema.SequentialMode)
	require.NoError(t, err)

	source := &contract.MockRunSource{}
	merged := openStore(t, "merged.db")
	mrg, err := NewOrchestrator(testConfig(), source, merged, prior)
	require.NoError(t, err)
	second, err := mrg.Run(ctx, pairs, schema.MergeMode)
	require.NoError(t, err)

	source.AssertNotCalled(t, "OpenPair", mock.Anything, mock.Anything)
	assert.Empty(t, cmp.Diff(first.Combined, second.Combined, recordOpts))
	assert.Empty(t, cmp.Diff(first.Records, second.Records, recordOpts))

	sub, err := merged.ReadRun(ctx, 102)
	require.NoError(t, err)
	assert.True(t, sub.Imported)

	curve, err := merged.Object(ctx, schema.CombinedRunID, schema.CategoryQFactor, schema.QFactorLowName(schema.QuantityMSCW))
	require.NoError(t, err)
	prev, err := prior.Object(ctx, schema.CombinedRunID, schema.CategoryQFactor, schema.QFactorLowName(schema.QuantityMSCW))
	require.NoError(t, err)
	assert.Equal(t, prev, curve)
}

func TestMergeMissingSubtreeIsFatal(t *testing.T) {
	ctx := WithSuppressHeader(context.Background())
	prior := openStore(t, "prior.db")
	results := openStore(t, "results.db")

	o, err := NewOrchestrator(testConfig(), nil, results, prior)
	require.NoError(t, err)
	_, err = o.Run(ctx, []schema.RunPair{{On: 5, Off: 6}}, schema.MergeMode)
	assert.ErrorIs(t, err, store.ErrRunNotFound)

	has, err := results.HasRun(ctx, schema.CombinedRunID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMergeRejectsDifferentOffRun(t *testing.T) {
	ctx := WithSuppressHeader(context.Background())
	pairs := []schema.RunPair{{On: 10, Off: 11}}
	prior := openStore(t, "prior.db")
	seq, err := NewOrchestrator(testConfig(), runsource.New(writeSource(t, pairs)), prior, nil)
	require.NoError(t, err)
	_, err = seq.Run(ctx, pairs, schema.SequentialMode)
	require.NoError(t, err)

	mrg, err := NewOrchestrator(testConfig(), nil, openStore(t, "merged.db"), prior)
	require.NoError(t, err)
	_, err = mrg.Run(ctx, []schema.RunPair{{On: 10, Off: 12}}, schema.MergeMode)
	assert.Error(t, err)
}

func TestAcquisitionFailureAbortsInvocation(t *testing.T) {
	ctx := WithSuppressHeader(context.Background())
	good := schema.RunPair{On: 1, Off: 2}
	bad := schema.RunPair{On: 3, Off: 4}

	source := &contract.MockRunSource{}
	source.On("OpenPair", mock.Anything, good).Return(staticHandle(t, good), nil).Maybe()
	source.On("OpenPair", mock.Anything, bad).Return(nil, runsource.ErrRunNotFound)

	results := openStore(t, "results.db")
	o, err := NewOrchestrator(testConfig(), source, results, nil)
	require.NoError(t, err)
	_, err = o.Run(ctx, []schema.RunPair{good, bad}, schema.SequentialMode)
	assert.ErrorIs(t, err, runsource.ErrRunNotFound)

	status, err := results.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Complete)
	assert.False(t, status.HasCombined)
	source.AssertExpectations(t)
}

func TestHandleIsClosedAfterUse(t *testing.T) {
	ctx := WithSuppressHeader(context.Background())
	pair := schema.RunPair{On: 1, Off: 1}
	handle := staticHandle(t, pair)

	source := &contract.MockRunSource{}
	source.On("OpenPair", mock.Anything, pair).Return(handle, nil).Once()

	o, err := NewOrchestrator(testConfig(), source, openStore(t, "results.db"), nil)
	require.NoError(t, err)
	_, err = o.Run(ctx, []schema.RunPair{pair}, schema.SequentialMode)
	require.NoError(t, err)
	assert.True(t, handle.Closed)
	source.AssertExpectations(t)
}

func TestMissingOptionalQuantityGetsPlaceholder(t *testing.T) {
	ctx := WithSuppressHeader(context.Background())
	pair := schema.RunPair{On: 1, Off: 2}
	handle := staticHandle(t, pair)
	delete(handle.Pair.Off.Histograms, schema.QuantityLogEnergy)

	source := &contract.MockRunSource{}
	source.On("OpenPair", mock.Anything, pair).Return(handle, nil)

	results := openStore(t, "results.db")
	o, err := NewOrchestrator(testConfig(), source, results, nil)
	require.NoError(t, err)
	_, err = o.Run(ctx, []schema.RunPair{pair}, schema.SequentialMode)
	require.NoError(t, err)

	h, err := results.Object(ctx, pair.ID(), schema.CategoryOff, string(schema.QuantityLogEnergy))
	require.NoError(t, err)
	assert.Zero(t, h.Entries())
}

func TestMissingSkyMapIsFatal(t *testing.T) {
	ctx := WithSuppressHeader(context.Background())
	pair := schema.RunPair{On: 1, Off: 2}
	handle := staticHandle(t, pair)
	delete(handle.Pair.On.Histograms, schema.QuantitySkyMapCorrelated)
	delete(handle.Pair.Off.Histograms, schema.QuantitySkyMapCorrelated)

	source := &contract.MockRunSource{}
	source.On("OpenPair", mock.Anything, pair).Return(handle, nil)

	o, err := NewOrchestrator(testConfig(), source, openStore(t, "results.db"), nil)
	require.NoError(t, err)
	_, err = o.Run(ctx, []schema.RunPair{pair}, schema.SequentialMode)
	assert.Error(t, err)
}

func TestCanceledRunWritesNoSentinel(t *testing.T) {
	ctx, cancel := context.WithCancel(WithSuppressHeader(context.Background()))
	pair := schema.RunPair{On: 1, Off: 2}

	source := &contract.MockRunSource{}
	source.On("OpenPair", mock.Anything, pair).Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	results := openStore(t, "results.db")
	o, err := NewOrchestrator(testConfig(), source, results, nil)
	require.NoError(t, err)
	_, err = o.Run(ctx, []schema.RunPair{pair}, schema.SequentialMode)
	assert.True(t, errors.Is(err, context.Canceled))

	has, err := results.HasRun(context.Background(), schema.CombinedRunID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestOrderedFoldAppliesInIndexOrder(t *testing.T) {
	var got []int
	f := newOrderedFold(func(out *pairOutcome) error {
		got = append(got, out.record.RunOn)
		return nil
	})
	outcome := func(id int) *pairOutcome {
		return &pairOutcome{record: schema.RunSummaryRecord{RunOn: id}}
	}
	require.NoError(t, f.deliver(2, outcome(30)))
	assert.Empty(t, got)
	require.NoError(t, f.deliver(0, outcome(10)))
	assert.Equal(t, []int{10}, got)
	require.NoError(t, f.deliver(1, outcome(20)))
	assert.Equal(t, []int{10, 20, 30}, got)
}

func TestFillMissingBothDirections(t *testing.T) {
	ax, err := hist.NewAxis(4, 0, 1)
	require.NoError(t, err)
	a := hist.NewDist1D(ax)
	a.Fill(0.5, 3)
	on := hist.Set{schema.QuantityMSCW: a}
	off := hist.Set{schema.QuantityMSCL: a.CloneLike()}

	fillMissing(schema.RunPair{On: 1, Off: 1}, on, off)
	assert.Len(t, on, 2)
	assert.Len(t, off, 2)
	assert.Zero(t, on[schema.QuantityMSCL].Entries())
	assert.Zero(t, off[schema.QuantityMSCW].Entries())
}

func TestSecondInvocationOnSameStoreIsRefused(t *testing.T) {
	ctx := WithSuppressHeader(context.Background())
	first := schema.RunPair{On: 1, Off: 2}
	second := schema.RunPair{On: 3, Off: 4}

	source := &contract.MockRunSource{}
	source.On("OpenPair", mock.Anything, first).Return(staticHandle(t, first), nil).Once()

	results := openStore(t, "results.db")
	o, err := NewOrchestrator(testConfig(), source, results, nil)
	require.NoError(t, err)
	_, err = o.Run(ctx, []schema.RunPair{first}, schema.SequentialMode)
	require.NoError(t, err)

	// the second invocation stops before it opens or writes anything
	_, err = o.Run(ctx, []schema.RunPair{second}, schema.SequentialMode)
	assert.ErrorIs(t, err, ErrStoreNotEmpty)
	source.AssertNotCalled(t, "OpenPair", mock.Anything, second)

	has, err := results.HasRun(ctx, second.ID())
	require.NoError(t, err)
	assert.False(t, has)
	invocations, err := results.Invocations(ctx)
	require.NoError(t, err)
	assert.Len(t, invocations, 1)
	records, err := results.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.InDelta(t, 1200.0, records[1].TOn, 1e-9)

	// a cleared store takes the next invocation
	require.NoError(t, results.Clear(ctx))
	source.On("OpenPair", mock.Anything, second).Return(staticHandle(t, second), nil).Once()
	res, err := o.Run(ctx, []schema.RunPair{second}, schema.SequentialMode)
	require.NoError(t, err)
	assert.Equal(t, second, res.Records[0].Pair())
	source.AssertExpectations(t)
}

func TestRepeatedRunIDIsRefused(t *testing.T) {
	ctx := WithSuppressHeader(context.Background())
	source := &contract.MockRunSource{}
	results := openStore(t, "results.db")

	o, err := NewOrchestrator(testConfig(), source, results, nil)
	require.NoError(t, err)
	_, err = o.Run(ctx, []schema.RunPair{{On: 1, Off: 2}, {On: 1, Off: 3}}, schema.SequentialMode)
	assert.ErrorContains(t, err, "share run id 1")

	invocations, err := results.Invocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, invocations)
	source.AssertNotCalled(t, "OpenPair", mock.Anything, mock.Anything)
}

func TestUndefinedTargetAlphaIsFatal(t *testing.T) {
	ctx := WithSuppressHeader(context.Background())
	pair := schema.RunPair{On: 1, Off: 2}
	handle := staticHandle(t, pair)

	alpha := handle.Pair.Alpha[schema.Correlated]
	i, j, ok := alpha.FindBin(0, 0)
	require.True(t, ok)
	alpha.SetUndefined(i, j)
	offMSCW, ok := handle.Pair.Off.Histograms.Dist1D(schema.QuantityMSCW)
	require.True(t, ok)
	before := offMSCW.Entries()

	source := &contract.MockRunSource{}
	source.On("OpenPair", mock.Anything, pair).Return(handle, nil)

	results := openStore(t, "results.db")
	o, err := NewOrchestrator(testConfig(), source, results, nil)
	require.NoError(t, err)
	_, err = o.Run(ctx, []schema.RunPair{pair}, schema.SequentialMode)
	assert.ErrorIs(t, err, ErrAlphaUndefined)

	// off is left as read and nothing is stored for the pair
	assert.InDelta(t, before, offMSCW.Entries(), 1e-12)
	has, err := results.HasRun(ctx, pair.ID())
	require.NoError(t, err)
	assert.False(t, has)
	status, err := results.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Complete)
	assert.False(t, status.HasCombined)
}
