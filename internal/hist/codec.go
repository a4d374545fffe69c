package hist

import (
	"encoding/json"
	"fmt"
)

// envelope is the serialized form of any histogram.
type envelope struct {
	Kind      string    `json:"kind"`
	X         Axis      `json:"x"`
	Y         *Axis     `json:"y,omitempty"`
	Counts    []float64 `json:"counts,omitempty"`
	Underflow float64   `json:"underflow,omitempty"`
	Overflow  float64   `json:"overflow,omitempty"`
	Undefined []bool    `json:"undefined,omitempty"`
	Sum       []float64 `json:"sum,omitempty"`
	Weights   []float64 `json:"weights,omitempty"`
}

// Encode serializes h into a self-describing payload.
func Encode(h Histogram) ([]byte, error) {
	var e envelope
	switch v := h.(type) {
	case *Dist1D:
		e = envelope{Kind: KindDist1D.String(), X: v.X, Counts: v.Counts, Underflow: v.Underflow, Overflow: v.Overflow}
	case *Dist2D:
		y := v.Y
		e = envelope{Kind: KindDist2D.String(), X: v.X, Y: &y, Counts: v.Raw(), Undefined: v.rawUndefined()}
	case *Profile2D:
		y := v.Y
		e = envelope{
			Kind:    KindProfile2D.String(),
			X:       v.X,
			Y:       &y,
			Sum:     v.sum.RawMatrix().Data,
			Weights: v.entries.RawMatrix().Data,
		}
	default:
		return nil, fmt.Errorf("unsupported histogram %T", h)
	}
	return json.Marshal(e)
}

// Decode restores a histogram written by Encode.
func Decode(data []byte) (Histogram, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode histogram: %w", err)
	}
	if e.X.Bins <= 0 {
		return nil, fmt.Errorf("decode histogram: invalid x axis %v", e.X)
	}
	switch e.Kind {
	case KindDist1D.String():
		d := NewDist1D(e.X)
		if len(e.Counts) != e.X.Bins {
			return nil, fmt.Errorf("dist1d payload has %d bins, want %d", len(e.Counts), e.X.Bins)
		}
		copy(d.Counts, e.Counts)
		d.Underflow, d.Overflow = e.Underflow, e.Overflow
		return d, nil
	case KindDist2D.String():
		if e.Y == nil || e.Y.Bins <= 0 {
			return nil, fmt.Errorf("decode dist2d: missing y axis")
		}
		return dist2DFromRaw(e.X, *e.Y, e.Counts, e.Undefined)
	case KindProfile2D.String():
		if e.Y == nil || e.Y.Bins <= 0 {
			return nil, fmt.Errorf("decode profile2d: missing y axis")
		}
		return profile2DFromRaw(e.X, *e.Y, e.Sum, e.Weights)
	default:
		return nil, fmt.Errorf("decode histogram: unknown kind %q", e.Kind)
	}
}
