// Package sigmap implements on/off differencing and Li&Ma significance maps.
package sigmap

import (
	"fmt"
	"math"

	"github.com/huangsam/skysig/core/algo"
	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/schema"
)

// Map is a per-bin significance map with its maximum.
type Map struct {
	Sig  *hist.Dist2D
	Peak schema.Peak
}

// Engine computes differences and significance maps.
type Engine struct {
	Policy Policy

	// DistRadius limits the significance distribution to bins within this
	// distance of the map centre.
	DistRadius float64
	// DistAxis is the binning of the significance distribution.
	DistAxis hist.Axis
}

// NewEngine returns an Engine with the default policy.
func NewEngine(radius float64, axis hist.Axis) *Engine {
	return &Engine{Policy: DefaultPolicy(), DistRadius: radius, DistAxis: axis}
}

// DifferenceSet returns on minus weighted off for every non-map quantity.
// On the per-run pass off is rescaled in place for ScaleByAlpha quantities.
// Sky maps are skipped; Difference2D handles them.
func (e *Engine) DifferenceSet(on, off hist.Set, alpha float64, combined bool) (hist.Set, error) {
	diff := make(hist.Set, len(on))
	for _, q := range on.Quantities() {
		if schema.IsSkyMap(q) {
			continue
		}
		h := on[q]
		if h.Kind() == hist.KindProfile2D || e.Policy.For(q) == CarryOn {
			diff[q] = h.CloneLike()
			continue
		}
		o, ok := off[q]
		if !ok {
			return nil, fmt.Errorf("difference %s: no off counterpart", q)
		}
		if !h.SameBinning(o) {
			return nil, fmt.Errorf("difference %s: %w", q, hist.ErrBinningMismatch)
		}

		w := e.Policy.Weight(q, alpha, combined)
		rescale := !combined && e.Policy.For(q) == ScaleByAlpha
		d, err := differenceOne(h, o, w, rescale)
		if err != nil {
			return nil, fmt.Errorf("difference %s: %w", q, err)
		}
		diff[q] = d
	}
	return diff, nil
}

func differenceOne(on, off hist.Histogram, w float64, rescale bool) (hist.Histogram, error) {
	switch o := off.(type) {
	case *hist.Dist1D:
		if rescale {
			o.Scale(w)
			w = 1
		}
		d := on.CloneLike().(*hist.Dist1D)
		return d, d.AddScaled(o, -w)
	case *hist.Dist2D:
		if rescale {
			o.Scale(w)
			w = 1
		}
		d := on.CloneLike().(*hist.Dist2D)
		return d, d.AddScaled(o, -w)
	default:
		return nil, fmt.Errorf("unsupported histogram %T", off)
	}
}

// Difference2D returns the excess and error maps of a sky map pair. A bin is
// defined only where alpha > 0 and on > 0.
func (e *Engine) Difference2D(on, off, alpha *hist.Dist2D) (excess, errMap *hist.Dist2D, err error) {
	if !on.SameBinning(off) || !on.SameBinning(alpha) {
		return nil, nil, fmt.Errorf("difference map: %w", hist.ErrBinningMismatch)
	}
	excess = hist.NewDist2D(on.X, on.Y)
	errMap = hist.NewDist2D(on.X, on.Y)
	for i := 0; i < on.X.Bins; i++ {
		for j := 0; j < on.Y.Bins; j++ {
			a := alpha.At(i, j)
			n := on.At(i, j)
			if !alpha.Defined(i, j) || !(a > 0) || !(n > 0) {
				excess.SetUndefined(i, j)
				errMap.SetUndefined(i, j)
				continue
			}
			ex, er := algo.Excess(n, off.At(i, j), a)
			excess.Set(i, j, ex)
			errMap.Set(i, j, er)
		}
	}
	return excess, errMap, nil
}

// SignificanceMap evaluates Li&Ma per bin. Bins without a positive alpha are undefined.
func (e *Engine) SignificanceMap(on, off, alpha *hist.Dist2D) (*Map, error) {
	if !on.SameBinning(off) || !on.SameBinning(alpha) {
		return nil, fmt.Errorf("significance map: %w", hist.ErrBinningMismatch)
	}
	sig := hist.NewDist2D(on.X, on.Y)
	for i := 0; i < on.X.Bins; i++ {
		for j := 0; j < on.Y.Bins; j++ {
			if !alpha.Defined(i, j) {
				sig.SetUndefined(i, j)
				continue
			}
			s, ok := algo.LiMa(on.At(i, j), off.At(i, j), alpha.At(i, j))
			if !ok {
				sig.SetUndefined(i, j)
				continue
			}
			sig.Set(i, j, s)
		}
	}

	m := &Map{Sig: sig}
	if i, j, v, ok := sig.Max(); ok {
		x, y := sig.Center(i, j)
		m.Peak = schema.Peak{Significance: v, X: x, Y: y, Defined: true}
	}
	return m, nil
}

// Distribution histograms every defined significance within DistRadius of the map centre.
func (e *Engine) Distribution(m *Map) *hist.Dist1D {
	out := hist.NewDist1D(e.DistAxis)
	sig := m.Sig
	cx := (sig.X.Min + sig.X.Max) / 2
	cy := (sig.Y.Min + sig.Y.Max) / 2
	for i := 0; i < sig.X.Bins; i++ {
		for j := 0; j < sig.Y.Bins; j++ {
			if !sig.Defined(i, j) {
				continue
			}
			x, y := sig.Center(i, j)
			if math.Hypot(x-cx, y-cy) > e.DistRadius {
				continue
			}
			out.Fill(sig.At(i, j), 1)
		}
	}
	return out
}

// Target evaluates the counts and significance at a single bin.
type Target struct {
	NOn, NOff    float64
	Alpha        float64
	AlphaDefined bool
	Background   float64
	Excess       float64
	ExcessError  float64
	Significance float64
}

// AtTarget evaluates the sky maps at bin (i, j) with the given alpha.
func AtTarget(on, off *hist.Dist2D, i, j int, alpha float64, alphaOK bool) Target {
	t := Target{NOn: on.At(i, j), NOff: off.At(i, j)}
	if !alphaOK {
		return t
	}
	t.Alpha, t.AlphaDefined = alpha, true
	t.Background = alpha * t.NOff
	t.Excess, t.ExcessError = algo.Excess(t.NOn, t.NOff, alpha)
	t.Significance, _ = algo.LiMa(t.NOn, t.NOff, alpha)
	return t
}
