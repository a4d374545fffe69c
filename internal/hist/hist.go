// Package hist provides the binned containers used by the significance engine:
// 1D distributions, 2D sky maps and 2D profiles.
package hist

import (
	"errors"
	"fmt"
	"math"
)

// Kind is the closed set of histogram variants.
type Kind int

// Histogram kinds.
const (
	KindDist1D Kind = iota
	KindDist2D
	KindProfile2D
)

func (k Kind) String() string {
	switch k {
	case KindDist1D:
		return "dist1d"
	case KindDist2D:
		return "dist2d"
	case KindProfile2D:
		return "profile2d"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrBinningMismatch is returned when two histograms are combined across different binnings.
var ErrBinningMismatch = errors.New("histogram binning mismatch")

// Histogram is implemented by *Dist1D, *Dist2D and *Profile2D.
type Histogram interface {
	// Kind reports which variant the value is.
	Kind() Kind
	// CloneEmpty returns a histogram with the same binning and zero content.
	CloneEmpty() Histogram
	// CloneLike returns a deep copy including content.
	CloneLike() Histogram
	// SameBinning reports whether other has the same kind and axes.
	SameBinning(other Histogram) bool
	// Entries returns the total content inside the axis range.
	Entries() float64
}

// Axis is a uniform binning over [Min, Max).
type Axis struct {
	Bins int     `json:"bins"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// NewAxis validates and returns an axis.
func NewAxis(bins int, lo, hi float64) (Axis, error) {
	if bins <= 0 {
		return Axis{}, fmt.Errorf("axis needs at least one bin, got %d", bins)
	}
	if !(hi > lo) {
		return Axis{}, fmt.Errorf("axis range [%g, %g) is empty", lo, hi)
	}
	return Axis{Bins: bins, Min: lo, Max: hi}, nil
}

// Width returns the bin width.
func (a Axis) Width() float64 {
	return (a.Max - a.Min) / float64(a.Bins)
}

// Index returns the bin holding x. ok is false when x is outside the range.
func (a Axis) Index(x float64) (int, bool) {
	if math.IsNaN(x) || x < a.Min || x >= a.Max {
		return -1, false
	}
	i := int((x - a.Min) / a.Width())
	if i >= a.Bins {
		i = a.Bins - 1
	}
	return i, true
}

// Center returns the centre of bin i.
func (a Axis) Center(i int) float64 {
	return a.Min + (float64(i)+0.5)*a.Width()
}

// LowEdge returns the lower edge of bin i.
func (a Axis) LowEdge(i int) float64 {
	return a.Min + float64(i)*a.Width()
}

// Equal compares two axes exactly.
func (a Axis) Equal(b Axis) bool {
	return a.Bins == b.Bins && a.Min == b.Min && a.Max == b.Max
}
