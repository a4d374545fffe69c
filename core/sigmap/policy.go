package sigmap

import "github.com/huangsam/skysig/schema"

// Treatment is how a 1D quantity is differenced.
type Treatment int

// Known treatments.
const (
	// ScaleByAlpha subtracts alpha*off. The per-run pass rescales off in place;
	// the combined pass subtracts its already normalized template with weight 1.
	ScaleByAlpha Treatment = iota
	// UnitWeight subtracts off with weight 1 and never rescales it.
	UnitWeight
	// CarryOn copies the on histogram without subtraction.
	CarryOn
)

func (t Treatment) String() string {
	switch t {
	case UnitWeight:
		return "unit_weight"
	case CarryOn:
		return "carry_on"
	default:
		return "scale_by_alpha"
	}
}

// Policy maps a quantity to its treatment. Lookup is by identity only.
type Policy map[schema.Quantity]Treatment

// DefaultPolicy returns the standard table. The squared angular offset comes
// from a single reflected background region and is always combined with weight 1.
func DefaultPolicy() Policy {
	return Policy{
		schema.QuantityTheta2:        UnitWeight,
		schema.QuantityMeanEnergyMap: CarryOn,
	}
}

// For returns the treatment of q, ScaleByAlpha when q is not listed.
func (p Policy) For(q schema.Quantity) Treatment {
	if t, ok := p[q]; ok {
		return t
	}
	return ScaleByAlpha
}

// Weight returns the off weight used for q. The same weight feeds the
// difference and the Q-factor scan so both agree.
func (p Policy) Weight(q schema.Quantity, alpha float64, combined bool) float64 {
	switch p.For(q) {
	case UnitWeight:
		return 1
	case CarryOn:
		return 0
	}
	if combined {
		return 1
	}
	return alpha
}
