// Package norm holds the alpha (background normalization) maps of a run pair
// and evaluates them at the target position.
package norm

import (
	"fmt"
	"math"

	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/schema"
)

// Normalizer evaluates alpha maps per variant. Variants are never substituted
// for one another and non-positive alpha is reported as undefined.
type Normalizer struct {
	maps       map[schema.Variant]*hist.Dist2D
	shiftNorth float64
	shiftWest  float64
}

// New builds a Normalizer. The target sits at map coordinates (-west, -north).
func New(maps map[schema.Variant]*hist.Dist2D, shiftNorth, shiftWest float64) *Normalizer {
	m := make(map[schema.Variant]*hist.Dist2D, len(maps))
	for v, d := range maps {
		if d != nil {
			m[v] = d
		}
	}
	return &Normalizer{maps: m, shiftNorth: shiftNorth, shiftWest: shiftWest}
}

// Map returns the alpha map of a variant.
func (n *Normalizer) Map(v schema.Variant) (*hist.Dist2D, bool) {
	d, ok := n.maps[v]
	return d, ok
}

// AlphaAtBin returns alpha at bin (i, j). ok is false when the bin is undefined.
func (n *Normalizer) AlphaAtBin(i, j int, v schema.Variant) (float64, bool) {
	d, ok := n.maps[v]
	if !ok || i < 0 || j < 0 || i >= d.X.Bins || j >= d.Y.Bins {
		return 0, false
	}
	return defined(d, i, j)
}

// AlphaAt returns alpha at map position (x, y).
func (n *Normalizer) AlphaAt(x, y float64, v schema.Variant) (float64, bool) {
	d, ok := n.maps[v]
	if !ok {
		return 0, false
	}
	i, j, ok := d.FindBin(x, y)
	if !ok {
		return 0, false
	}
	return defined(d, i, j)
}

// TargetPosition returns the map coordinates of the nominal source.
func (n *Normalizer) TargetPosition() (float64, float64) {
	return -n.shiftWest, -n.shiftNorth
}

// TargetBin returns the bin of the nominal source in the variant's map.
func (n *Normalizer) TargetBin(v schema.Variant) (int, int, bool) {
	d, ok := n.maps[v]
	if !ok {
		return -1, -1, false
	}
	x, y := n.TargetPosition()
	return d.FindBin(x, y)
}

// NormAtTarget returns alpha at the target bin.
func (n *Normalizer) NormAtTarget(v schema.Variant) (float64, bool) {
	x, y := n.TargetPosition()
	return n.AlphaAt(x, y, v)
}

func defined(d *hist.Dist2D, i, j int) (float64, bool) {
	if !d.Defined(i, j) {
		return 0, false
	}
	a := d.At(i, j)
	if !(a > 0) || math.IsInf(a, 0) {
		return 0, false
	}
	return a, true
}

// Combiner accumulates per-run alpha maps into the alpha of the combined pass.
// Per bin the result is sum(alpha_k*off_k)/sum(off_k); where no off counts exist
// it falls back to the off-exposure weighted mean of the defined alpha_k.
type Combiner struct {
	variants map[schema.Variant]*combined
}

type combined struct {
	x, y     hist.Axis
	num, den []float64 // alpha*off, off
	wNum     []float64 // alpha*tOff
	wDen     []float64 // tOff
	hits     []float64
	hitSum   []float64
}

// NewCombiner returns an empty accumulator.
func NewCombiner() *Combiner {
	return &Combiner{variants: map[schema.Variant]*combined{}}
}

// Add folds one run's alpha map and off counts for variant v. The off map must
// share the alpha map's binning.
func (c *Combiner) Add(v schema.Variant, alpha, off *hist.Dist2D, tOff float64) error {
	if alpha == nil || off == nil {
		return fmt.Errorf("combine alpha %s: missing map", v)
	}
	if !alpha.SameBinning(off) {
		return fmt.Errorf("combine alpha %s: off map %w", v, hist.ErrBinningMismatch)
	}
	acc, ok := c.variants[v]
	if !ok {
		n := alpha.X.Bins * alpha.Y.Bins
		acc = &combined{
			x: alpha.X, y: alpha.Y,
			num: make([]float64, n), den: make([]float64, n),
			wNum: make([]float64, n), wDen: make([]float64, n),
			hits: make([]float64, n), hitSum: make([]float64, n),
		}
		c.variants[v] = acc
	} else if !acc.x.Equal(alpha.X) || !acc.y.Equal(alpha.Y) {
		return fmt.Errorf("combine alpha %s: %w", v, hist.ErrBinningMismatch)
	}

	for i := 0; i < alpha.X.Bins; i++ {
		for j := 0; j < alpha.Y.Bins; j++ {
			a, ok := defined(alpha, i, j)
			if !ok {
				continue
			}
			k := i*alpha.Y.Bins + j
			o := off.At(i, j)
			if o > 0 {
				acc.num[k] += a * o
				acc.den[k] += o
			}
			if tOff > 0 {
				acc.wNum[k] += a * tOff
				acc.wDen[k] += tOff
			}
			acc.hits[k]++
			acc.hitSum[k] += a
		}
	}
	return nil
}

// Map returns the combined alpha map of variant v.
func (c *Combiner) Map(v schema.Variant) (*hist.Dist2D, bool) {
	acc, ok := c.variants[v]
	if !ok {
		return nil, false
	}
	out := hist.NewDist2D(acc.x, acc.y)
	for i := 0; i < acc.x.Bins; i++ {
		for j := 0; j < acc.y.Bins; j++ {
			k := i*acc.y.Bins + j
			switch {
			case acc.hits[k] == 0:
				out.SetUndefined(i, j)
			case acc.den[k] > 0:
				out.Set(i, j, acc.num[k]/acc.den[k])
			case acc.wDen[k] > 0:
				out.Set(i, j, acc.wNum[k]/acc.wDen[k])
			default:
				out.Set(i, j, acc.hitSum[k]/acc.hits[k])
			}
		}
	}
	return out, true
}

// Maps returns the combined alpha map of every variant seen.
func (c *Combiner) Maps() map[schema.Variant]*hist.Dist2D {
	out := make(map[schema.Variant]*hist.Dist2D, len(c.variants))
	for v := range c.variants {
		out[v], _ = c.Map(v)
	}
	return out
}
