// Package qfactor builds cumulative cut-optimization curves over 1D distributions.
package qfactor

import (
	"fmt"

	"github.com/huangsam/skysig/core/algo"
	"github.com/huangsam/skysig/core/sigmap"
	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/schema"
)

// Curves holds both scan directions of one quantity.
type Curves struct {
	// Low is the significance when requiring the variable above each bin's low edge.
	Low *hist.Dist1D
	// High is the significance when requiring the variable below each bin's high edge.
	High *hist.Dist1D
}

// Scan accumulates on/off counts bin by bin and evaluates Li&Ma at each step.
// Values are clamped at 0. An undefined alpha yields all-zero curves.
func Scan(on, off *hist.Dist1D, alpha float64) (Curves, error) {
	if !on.SameBinning(off) {
		return Curves{}, fmt.Errorf("qfactor scan: %w", hist.ErrBinningMismatch)
	}
	n := on.X.Bins
	c := Curves{Low: hist.NewDist1D(on.X), High: hist.NewDist1D(on.X)}

	var sumOn, sumOff float64
	for i := n - 1; i >= 0; i-- {
		sumOn += on.Bin(i)
		sumOff += off.Bin(i)
		c.Low.SetBin(i, clamp(sumOn, sumOff, alpha))
	}

	sumOn, sumOff = 0, 0
	for i := range n {
		sumOn += on.Bin(i)
		sumOff += off.Bin(i)
		c.High.SetBin(i, clamp(sumOn, sumOff, alpha))
	}
	return c, nil
}

func clamp(non, noff, alpha float64) float64 {
	s, ok := algo.LiMa(non, noff, alpha)
	if !ok || s < 0 {
		return 0
	}
	return s
}

// ScanSet scans every 1D quantity of a pair of sets. The per-quantity alpha is
// taken from the policy so it matches the difference.
func ScanSet(on, off hist.Set, policy sigmap.Policy, alpha float64, combined bool) (map[schema.Quantity]Curves, error) {
	out := make(map[schema.Quantity]Curves)
	for _, q := range on.Quantities() {
		if policy.For(q) == sigmap.CarryOn {
			continue
		}
		h, ok := on.Dist1D(q)
		if !ok {
			continue
		}
		o, ok := off.Dist1D(q)
		if !ok {
			return nil, fmt.Errorf("qfactor %s: no off counterpart", q)
		}
		c, err := Scan(h, o, policy.Weight(q, alpha, combined))
		if err != nil {
			return nil, fmt.Errorf("qfactor %s: %w", q, err)
		}
		out[q] = c
	}
	return out, nil
}

// Points flattens both directions into one row per bin.
func (c Curves) Points() ([]schema.QFactorPoint, error) {
	if c.Low == nil || c.High == nil {
		return nil, fmt.Errorf("qfactor points: missing direction")
	}
	if !c.Low.SameBinning(c.High) {
		return nil, fmt.Errorf("qfactor points: %w", hist.ErrBinningMismatch)
	}
	x := c.Low.X
	out := make([]schema.QFactorPoint, x.Bins)
	for i := range x.Bins {
		out[i] = schema.QFactorPoint{
			Bin:      i,
			LowEdge:  x.LowEdge(i),
			HighEdge: x.LowEdge(i) + x.Width(),
			SigAbove: c.Low.Bin(i),
			SigBelow: c.High.Bin(i),
		}
	}
	return out, nil
}
