package hist

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Profile2D stores a weighted mean of a value per 2D bin.
type Profile2D struct {
	X, Y    Axis
	sum     *mat.Dense
	entries *mat.Dense
}

// NewProfile2D allocates an empty profile.
func NewProfile2D(x, y Axis) *Profile2D {
	return &Profile2D{
		X:       x,
		Y:       y,
		sum:     mat.NewDense(x.Bins, y.Bins, nil),
		entries: mat.NewDense(x.Bins, y.Bins, nil),
	}
}

func (p *Profile2D) Kind() Kind { return KindProfile2D }

func (p *Profile2D) CloneEmpty() Histogram { return NewProfile2D(p.X, p.Y) }

func (p *Profile2D) CloneLike() Histogram {
	c := NewProfile2D(p.X, p.Y)
	c.sum.Copy(p.sum)
	c.entries.Copy(p.entries)
	return c
}

func (p *Profile2D) SameBinning(other Histogram) bool {
	o, ok := other.(*Profile2D)
	return ok && p.X.Equal(o.X) && p.Y.Equal(o.Y)
}

func (p *Profile2D) Entries() float64 {
	return mat.Sum(p.entries)
}

// Fill adds value v with weight w at (x, y).
func (p *Profile2D) Fill(x, y, v, w float64) {
	i, okX := p.X.Index(x)
	j, okY := p.Y.Index(y)
	if !okX || !okY {
		return
	}
	p.sum.Set(i, j, p.sum.At(i, j)+v*w)
	p.entries.Set(i, j, p.entries.At(i, j)+w)
}

// Mean returns the weighted mean of bin (i, j), 0 for an empty bin.
func (p *Profile2D) Mean(i, j int) float64 {
	n := p.entries.At(i, j)
	if n == 0 {
		return 0
	}
	return p.sum.At(i, j) / n
}

// Add merges other into p.
func (p *Profile2D) Add(other *Profile2D) error {
	if !p.SameBinning(other) {
		return fmt.Errorf("profile2d %v x %v vs %v x %v: %w", p.X, p.Y, other.X, other.Y, ErrBinningMismatch)
	}
	p.sum.Add(p.sum, other.sum)
	p.entries.Add(p.entries, other.entries)
	return nil
}

func profile2DFromRaw(x, y Axis, sum, entries []float64) (*Profile2D, error) {
	n := x.Bins * y.Bins
	if len(sum) != n || len(entries) != n {
		return nil, fmt.Errorf("profile2d payload has %d/%d bins, want %d", len(sum), len(entries), n)
	}
	return &Profile2D{X: x, Y: y, sum: mat.NewDense(x.Bins, y.Bins, sum), entries: mat.NewDense(x.Bins, y.Bins, entries)}, nil
}
