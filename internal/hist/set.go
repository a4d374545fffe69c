package hist

import (
	"fmt"
	"slices"

	"github.com/huangsam/skysig/schema"
)

// Set maps quantities to histograms. On and off sets of a run share binning per quantity.
type Set map[schema.Quantity]Histogram

// Dist1D returns the 1D distribution stored under q.
func (s Set) Dist1D(q schema.Quantity) (*Dist1D, bool) {
	d, ok := s[q].(*Dist1D)
	return d, ok
}

// Map returns the 2D map stored under q.
func (s Set) Map(q schema.Quantity) (*Dist2D, bool) {
	d, ok := s[q].(*Dist2D)
	return d, ok
}

// Profile returns the 2D profile stored under q.
func (s Set) Profile(q schema.Quantity) (*Profile2D, bool) {
	p, ok := s[q].(*Profile2D)
	return p, ok
}

// Quantities returns the keys in sorted order.
func (s Set) Quantities() []schema.Quantity {
	qs := make([]schema.Quantity, 0, len(s))
	for q := range s {
		qs = append(qs, q)
	}
	slices.Sort(qs)
	return qs
}

// CloneLike deep-copies every histogram in the set.
func (s Set) CloneLike() Set {
	out := make(Set, len(s))
	for q, h := range s {
		out[q] = h.CloneLike()
	}
	return out
}

// Accumulate adds every histogram of other into s. Quantities missing from s are
// copied in. Binning must match per quantity.
func (s Set) Accumulate(other Set) error {
	for _, q := range other.Quantities() {
		h := other[q]
		cur, ok := s[q]
		if !ok {
			s[q] = h.CloneLike()
			continue
		}
		if !cur.SameBinning(h) {
			return fmt.Errorf("quantity %s: %w", q, ErrBinningMismatch)
		}
		if err := Add(cur, h); err != nil {
			return fmt.Errorf("quantity %s: %w", q, err)
		}
	}
	return nil
}

// Add adds src into dst with unit weight. Both must be the same kind.
func Add(dst, src Histogram) error {
	switch d := dst.(type) {
	case *Dist1D:
		s, ok := src.(*Dist1D)
		if !ok {
			return ErrBinningMismatch
		}
		return d.AddScaled(s, 1)
	case *Dist2D:
		s, ok := src.(*Dist2D)
		if !ok {
			return ErrBinningMismatch
		}
		return d.AddScaled(s, 1)
	case *Profile2D:
		s, ok := src.(*Profile2D)
		if !ok {
			return ErrBinningMismatch
		}
		return d.Add(s)
	default:
		return fmt.Errorf("unsupported histogram %T", dst)
	}
}
