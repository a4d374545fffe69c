package hist

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Dist2D is a two-dimensional map. Rows index X bins and columns index Y bins.
// Bins can be marked undefined, which is distinct from a zero value.
type Dist2D struct {
	X, Y      Axis
	counts    *mat.Dense
	undefined []bool // nil while every bin is defined
}

// NewDist2D allocates an empty map.
func NewDist2D(x, y Axis) *Dist2D {
	return &Dist2D{X: x, Y: y, counts: mat.NewDense(x.Bins, y.Bins, nil)}
}

func (d *Dist2D) Kind() Kind { return KindDist2D }

func (d *Dist2D) CloneEmpty() Histogram { return NewDist2D(d.X, d.Y) }

func (d *Dist2D) CloneLike() Histogram {
	c := NewDist2D(d.X, d.Y)
	c.counts.Copy(d.counts)
	if d.undefined != nil {
		c.undefined = append([]bool(nil), d.undefined...)
	}
	return c
}

func (d *Dist2D) SameBinning(other Histogram) bool {
	o, ok := other.(*Dist2D)
	return ok && d.X.Equal(o.X) && d.Y.Equal(o.Y)
}

// Entries sums the defined bins.
func (d *Dist2D) Entries() float64 {
	var sum float64
	for i := 0; i < d.X.Bins; i++ {
		for j := 0; j < d.Y.Bins; j++ {
			if d.Defined(i, j) {
				sum += d.counts.At(i, j)
			}
		}
	}
	return sum
}

// At returns the raw content of bin (i, j).
func (d *Dist2D) At(i, j int) float64 {
	return d.counts.At(i, j)
}

// Set writes v into bin (i, j) and marks it defined.
func (d *Dist2D) Set(i, j int, v float64) {
	d.counts.Set(i, j, v)
	if d.undefined != nil {
		d.undefined[i*d.Y.Bins+j] = false
	}
}

// SetUndefined zeroes bin (i, j) and marks it undefined.
func (d *Dist2D) SetUndefined(i, j int) {
	if d.undefined == nil {
		d.undefined = make([]bool, d.X.Bins*d.Y.Bins)
	}
	d.counts.Set(i, j, 0)
	d.undefined[i*d.Y.Bins+j] = true
}

// Defined reports whether bin (i, j) holds a value.
func (d *Dist2D) Defined(i, j int) bool {
	return d.undefined == nil || !d.undefined[i*d.Y.Bins+j]
}

// Fill adds weight w at (x, y). Points outside the map are dropped.
func (d *Dist2D) Fill(x, y, w float64) {
	i, j, ok := d.FindBin(x, y)
	if !ok {
		return
	}
	d.counts.Set(i, j, d.counts.At(i, j)+w)
}

// FindBin returns the bin holding (x, y).
func (d *Dist2D) FindBin(x, y float64) (int, int, bool) {
	i, okX := d.X.Index(x)
	j, okY := d.Y.Index(y)
	if !okX || !okY {
		return -1, -1, false
	}
	return i, j, true
}

// Center returns the coordinates of the centre of bin (i, j).
func (d *Dist2D) Center(i, j int) (float64, float64) {
	return d.X.Center(i), d.Y.Center(j)
}

// AddScaled adds f times other into d. A bin undefined in other stays untouched.
func (d *Dist2D) AddScaled(other *Dist2D, f float64) error {
	if !d.SameBinning(other) {
		return fmt.Errorf("dist2d %v x %v vs %v x %v: %w", d.X, d.Y, other.X, other.Y, ErrBinningMismatch)
	}
	if other.undefined == nil {
		var scaled mat.Dense
		scaled.Scale(f, other.counts)
		d.counts.Add(d.counts, &scaled)
		return nil
	}
	for i := 0; i < d.X.Bins; i++ {
		for j := 0; j < d.Y.Bins; j++ {
			if other.Defined(i, j) {
				d.counts.Set(i, j, d.counts.At(i, j)+f*other.counts.At(i, j))
			}
		}
	}
	return nil
}

// Scale multiplies every bin by f.
func (d *Dist2D) Scale(f float64) {
	d.counts.Scale(f, d.counts)
}

// Max returns the bin with the largest defined value. ok is false when no bin is defined.
func (d *Dist2D) Max() (int, int, float64, bool) {
	bi, bj, best := -1, -1, math.Inf(-1)
	for i := 0; i < d.X.Bins; i++ {
		for j := 0; j < d.Y.Bins; j++ {
			if !d.Defined(i, j) {
				continue
			}
			if v := d.counts.At(i, j); v > best {
				bi, bj, best = i, j, v
			}
		}
	}
	if bi < 0 {
		return -1, -1, 0, false
	}
	return bi, bj, best, true
}

// Raw returns the row-major content. The slice aliases the map storage.
func (d *Dist2D) Raw() []float64 {
	return d.counts.RawMatrix().Data
}

// rawUndefined returns the row-major undefined mask, nil when every bin is defined.
func (d *Dist2D) rawUndefined() []bool {
	return d.undefined
}

// dist2DFromRaw rebuilds a map from row-major storage.
func dist2DFromRaw(x, y Axis, data []float64, undefined []bool) (*Dist2D, error) {
	if len(data) != x.Bins*y.Bins {
		return nil, fmt.Errorf("dist2d payload has %d bins, want %d", len(data), x.Bins*y.Bins)
	}
	if undefined != nil && len(undefined) != len(data) {
		return nil, fmt.Errorf("dist2d mask has %d bins, want %d", len(undefined), len(data))
	}
	return &Dist2D{X: x, Y: y, counts: mat.NewDense(x.Bins, y.Bins, data), undefined: undefined}, nil
}
