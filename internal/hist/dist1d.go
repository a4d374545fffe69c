package hist

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Dist1D is a one-dimensional distribution with under- and overflow.
type Dist1D struct {
	X         Axis
	Counts    []float64
	Underflow float64
	Overflow  float64
}

// NewDist1D allocates an empty distribution.
func NewDist1D(x Axis) *Dist1D {
	return &Dist1D{X: x, Counts: make([]float64, x.Bins)}
}

func (d *Dist1D) Kind() Kind { return KindDist1D }

func (d *Dist1D) CloneEmpty() Histogram { return NewDist1D(d.X) }

func (d *Dist1D) CloneLike() Histogram {
	c := NewDist1D(d.X)
	copy(c.Counts, d.Counts)
	c.Underflow, c.Overflow = d.Underflow, d.Overflow
	return c
}

func (d *Dist1D) SameBinning(other Histogram) bool {
	o, ok := other.(*Dist1D)
	return ok && d.X.Equal(o.X)
}

func (d *Dist1D) Entries() float64 {
	return floats.Sum(d.Counts)
}

// Fill adds weight w at x.
func (d *Dist1D) Fill(x, w float64) {
	i, ok := d.X.Index(x)
	switch {
	case ok:
		d.Counts[i] += w
	case x < d.X.Min:
		d.Underflow += w
	default:
		d.Overflow += w
	}
}

// Bin returns the content of bin i.
func (d *Dist1D) Bin(i int) float64 {
	return d.Counts[i]
}

// SetBin overwrites the content of bin i.
func (d *Dist1D) SetBin(i int, v float64) {
	d.Counts[i] = v
}

// AddScaled adds f times other into d.
func (d *Dist1D) AddScaled(other *Dist1D, f float64) error {
	if !d.SameBinning(other) {
		return fmt.Errorf("dist1d %v vs %v: %w", d.X, other.X, ErrBinningMismatch)
	}
	floats.AddScaled(d.Counts, f, other.Counts)
	d.Underflow += f * other.Underflow
	d.Overflow += f * other.Overflow
	return nil
}

// Scale multiplies every bin by f.
func (d *Dist1D) Scale(f float64) {
	floats.Scale(f, d.Counts)
	d.Underflow *= f
	d.Overflow *= f
}
