package sigmap

import (
	"math"
	"testing"

	"github.com/huangsam/skysig/core/algo"
	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func axis(t *testing.T, bins int, lo, hi float64) hist.Axis {
	t.Helper()
	a, err := hist.NewAxis(bins, lo, hi)
	require.NoError(t, err)
	return a
}

func filledMap(t *testing.T, values [][]float64) *hist.Dist2D {
	t.Helper()
	a := axis(t, len(values), -float64(len(values))/2, float64(len(values))/2)
	d := hist.NewDist2D(a, a)
	for i, row := range values {
		for j, v := range row {
			d.Set(i, j, v)
		}
	}
	return d
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, UnitWeight, p.For(schema.QuantityTheta2))
	assert.Equal(t, CarryOn, p.For(schema.QuantityMeanEnergyMap))
	assert.Equal(t, ScaleByAlpha, p.For(schema.QuantityMSCW))
	// identity only, no prefix matching
	assert.Equal(t, ScaleByAlpha, p.For(schema.Quantity("theta2_fine")))

	assert.Equal(t, 1.0, p.Weight(schema.QuantityTheta2, 0.2, false))
	assert.Equal(t, 1.0, p.Weight(schema.QuantityTheta2, 0.2, true))
	assert.Equal(t, 0.2, p.Weight(schema.QuantityMSCW, 0.2, false))
	assert.Equal(t, 1.0, p.Weight(schema.QuantityMSCW, 0.2, true))
}

func TestDifference2DIdentity(t *testing.T) {
	e := NewEngine(1, axis(t, 10, -5, 5))
	on := filledMap(t, [][]float64{{100, 0}, {4, 9}})
	off := filledMap(t, [][]float64{{20, 5}, {0, 16}})
	alpha := filledMap(t, [][]float64{{0.1, 0.5}, {0.3, 0}})

	excess, errMap, err := e.Difference2D(on, off, alpha)
	require.NoError(t, err)

	for i := range 2 {
		for j := range 2 {
			a, n, o := alpha.At(i, j), on.At(i, j), off.At(i, j)
			if a > 0 && n > 0 {
				require.True(t, excess.Defined(i, j))
				assert.InDelta(t, n-a*o, excess.At(i, j), 1e-12)
				assert.InDelta(t, math.Sqrt(n+a*a*o), errMap.At(i, j), 1e-12)
			} else {
				assert.False(t, excess.Defined(i, j), "bin (%d,%d)", i, j)
				assert.False(t, errMap.Defined(i, j), "bin (%d,%d)", i, j)
			}
		}
	}
}

func TestDifference2DBinningMismatch(t *testing.T) {
	e := NewEngine(1, axis(t, 10, -5, 5))
	small := filledMap(t, [][]float64{{1}})
	big := filledMap(t, [][]float64{{1, 1}, {1, 1}})
	_, _, err := e.Difference2D(big, small, big)
	assert.ErrorIs(t, err, hist.ErrBinningMismatch)
}

func TestSignificanceMapPeak(t *testing.T) {
	e := NewEngine(1, axis(t, 10, -5, 5))
	on := filledMap(t, [][]float64{{10, 100}, {10, 10}})
	off := filledMap(t, [][]float64{{10, 20}, {10, 10}})
	alpha := filledMap(t, [][]float64{{1, 0.1}, {1, 0}})

	m, err := e.SignificanceMap(on, off, alpha)
	require.NoError(t, err)

	want, _ := algo.LiMa(100, 20, 0.1)
	assert.True(t, m.Peak.Defined)
	assert.InDelta(t, want, m.Peak.Significance, 1e-12)
	assert.InDelta(t, -0.5, m.Peak.X, 1e-12)
	assert.InDelta(t, 0.5, m.Peak.Y, 1e-12)
	assert.False(t, m.Sig.Defined(1, 1))
	assert.InDelta(t, 0, m.Sig.At(0, 0), 1e-9)
}

func TestDistributionRadius(t *testing.T) {
	e := NewEngine(0.8, axis(t, 20, -10, 10))
	on := filledMap(t, [][]float64{
		{100, 10, 10, 10},
		{10, 10, 10, 10},
		{10, 10, 10, 10},
		{10, 10, 10, 10},
	})
	off := filledMap(t, [][]float64{
		{20, 10, 10, 10},
		{10, 10, 10, 10},
		{10, 10, 10, 10},
		{10, 10, 10, 10},
	})
	alpha := filledMap(t, [][]float64{
		{0.1, 1, 1, 1},
		{1, 1, 1, 1},
		{1, 1, 1, 0},
		{1, 1, 1, 1},
	})
	m, err := e.SignificanceMap(on, off, alpha)
	require.NoError(t, err)

	d := e.Distribution(m)
	// four central bins at distance ~0.71; (2,2) still defined
	assert.Equal(t, 4.0, d.Entries())

	e.DistRadius = 10
	d = e.Distribution(m)
	// 16 bins minus the undefined one; the corner peak is past the axis range
	assert.Equal(t, 14.0, d.Entries())
	assert.Equal(t, 1.0, d.Overflow)
}

func TestDifferenceSet(t *testing.T) {
	e := NewEngine(1, axis(t, 10, -5, 5))
	a := axis(t, 2, 0, 2)

	newSet := func(theta2, mscw float64) hist.Set {
		th := hist.NewDist1D(a)
		th.Fill(0.5, theta2)
		ms := hist.NewDist1D(a)
		ms.Fill(0.5, mscw)
		prof := hist.NewProfile2D(a, a)
		prof.Fill(0.5, 0.5, 2, 1)
		return hist.Set{
			schema.QuantityTheta2:        th,
			schema.QuantityMSCW:          ms,
			schema.QuantityMeanEnergyMap: prof,
		}
	}

	t.Run("per run", func(t *testing.T) {
		on, off := newSet(10, 50), newSet(4, 100)
		diff, err := e.DifferenceSet(on, off, 0.25, false)
		require.NoError(t, err)

		th, _ := diff.Dist1D(schema.QuantityTheta2)
		assert.InDelta(t, 6, th.Bin(0), 1e-12)
		ms, _ := diff.Dist1D(schema.QuantityMSCW)
		assert.InDelta(t, 25, ms.Bin(0), 1e-12)

		// off rescaled in place for scaled quantities only
		offMS, _ := off.Dist1D(schema.QuantityMSCW)
		assert.InDelta(t, 25, offMS.Bin(0), 1e-12)
		offTh, _ := off.Dist1D(schema.QuantityTheta2)
		assert.InDelta(t, 4, offTh.Bin(0), 1e-12)

		prof, ok := diff.Profile(schema.QuantityMeanEnergyMap)
		require.True(t, ok)
		assert.InDelta(t, 2, prof.Mean(0, 0), 1e-12)
	})

	t.Run("combined", func(t *testing.T) {
		on, off := newSet(10, 50), newSet(4, 25)
		diff, err := e.DifferenceSet(on, off, 0.25, true)
		require.NoError(t, err)

		ms, _ := diff.Dist1D(schema.QuantityMSCW)
		assert.InDelta(t, 25, ms.Bin(0), 1e-12)
		offMS, _ := off.Dist1D(schema.QuantityMSCW)
		assert.InDelta(t, 25, offMS.Bin(0), 1e-12)
	})

	t.Run("missing off", func(t *testing.T) {
		on := newSet(1, 1)
		off := hist.Set{schema.QuantityTheta2: on[schema.QuantityTheta2].CloneEmpty()}
		_, err := e.DifferenceSet(on, off, 1, false)
		assert.Error(t, err)
	})
}

func TestAtTarget(t *testing.T) {
	on := filledMap(t, [][]float64{{100}})
	off := filledMap(t, [][]float64{{20}})

	tg := AtTarget(on, off, 0, 0, 0.1, true)
	assert.InDelta(t, 2, tg.Background, 1e-12)
	assert.InDelta(t, 98, tg.Excess, 1e-12)
	assert.Greater(t, tg.Significance, 7.0)

	tg = AtTarget(on, off, 0, 0, 0, false)
	assert.False(t, tg.AlphaDefined)
	assert.Zero(t, tg.Significance)
	assert.Equal(t, 100.0, tg.NOn)
}
