// Package agg has the running totals behind the combined run summary.
package agg

import (
	"errors"
	"math"

	"github.com/huangsam/skysig/schema"
)

// Phase is the lifecycle state of an aggregation.
type Phase int

// Aggregation phases.
const (
	Accumulating Phase = iota
	Finalized
)

func (p Phase) String() string {
	if p == Finalized {
		return "finalized"
	}
	return "accumulating"
}

var (
	// ErrAlreadyFinalized is returned by a second call to Finalize.
	ErrAlreadyFinalized = errors.New("aggregation already finalized")
	// ErrFinalized is returned when a record is added after Finalize.
	ErrFinalized = errors.New("cannot add to a finalized aggregation")
)

// State accumulates per-run summary records. Sums become means on Finalize.
type State struct {
	phase Phase
	n     int

	tOn, tOff     float64
	mjdOn, mjdOff float64
	elevOn        float64
	elevOff       float64
	noiseOn       float64
	noiseOff      float64
	rateOn        float64
	rateOff       float64

	// dead time weighted by exposure, divided by the exposure totals on Finalize
	deadOn, deadOff float64

	// azimuth as unit vectors so runs around 180 degrees average correctly
	azSinOn, azCosOn   float64
	azSinOff, azCosOff float64
	azOn, azOff        float64

	azMin, azMax float64
}

// Means is the finalized view of a State.
type Means struct {
	N               int
	TOn, TOff       float64
	MJDOn, MJDOff   float64
	ElevationOn     float64
	ElevationOff    float64
	AzimuthOn       float64
	AzimuthOff      float64
	AzimuthMinOn    float64
	AzimuthMaxOn    float64
	NoiseOn         float64
	NoiseOff        float64
	RawRateOn       float64
	RawRateOff      float64
	DeadTimeFracOn  float64
	DeadTimeFracOff float64
}

// New returns an empty State in the Accumulating phase.
func New() *State {
	return &State{}
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	return s.phase
}

// N returns the number of records added.
func (s *State) N() int {
	return s.n
}

// Add folds one per-run record into the running sums.
func (s *State) Add(r schema.RunSummaryRecord) error {
	if s.phase == Finalized {
		return ErrFinalized
	}
	if s.n == 0 {
		s.azMin = r.AzimuthMinOn
	}
	s.azMax = r.AzimuthMaxOn

	s.tOn += r.TOn
	s.tOff += r.TOff
	s.mjdOn += r.MJDOn
	s.mjdOff += r.MJDOff
	s.elevOn += r.ElevationOn
	s.elevOff += r.ElevationOff
	s.noiseOn += r.NoiseOn
	s.noiseOff += r.NoiseOff
	s.rateOn += r.RawRateOn
	s.rateOff += r.RawRateOff
	s.deadOn += r.DeadTimeFracOn * r.TOn
	s.deadOff += r.DeadTimeFracOff * r.TOff

	sOn, cOn := math.Sincos(r.AzimuthOn * math.Pi / 180)
	sOff, cOff := math.Sincos(r.AzimuthOff * math.Pi / 180)
	s.azSinOn += sOn
	s.azCosOn += cOn
	s.azSinOff += sOff
	s.azCosOff += cOff

	s.n++
	return nil
}

// Finalize turns sums into means. It runs once; N = 0 leaves every mean at 0.
func (s *State) Finalize() error {
	if s.phase == Finalized {
		return ErrAlreadyFinalized
	}
	s.phase = Finalized

	if s.n > 0 {
		n := float64(s.n)
		s.mjdOn /= n
		s.mjdOff /= n
		s.elevOn /= n
		s.elevOff /= n
		s.noiseOn /= n
		s.noiseOff /= n
		s.rateOn /= n
		s.rateOff /= n
		s.azOn = vectorMean(s.azSinOn, s.azCosOn)
		s.azOff = vectorMean(s.azSinOff, s.azCosOff)
	}
	s.deadOn = safeDiv(s.deadOn, s.tOn)
	s.deadOff = safeDiv(s.deadOff, s.tOff)
	return nil
}

// Means returns the current values. Before Finalize they are raw sums.
func (s *State) Means() Means {
	return Means{
		N:               s.n,
		TOn:             s.tOn,
		TOff:            s.tOff,
		MJDOn:           s.mjdOn,
		MJDOff:          s.mjdOff,
		ElevationOn:     s.elevOn,
		ElevationOff:    s.elevOff,
		AzimuthOn:       s.azOn,
		AzimuthOff:      s.azOff,
		AzimuthMinOn:    s.azMin,
		AzimuthMaxOn:    s.azMax,
		NoiseOn:         s.noiseOn,
		NoiseOff:        s.noiseOff,
		RawRateOn:       s.rateOn,
		RawRateOff:      s.rateOff,
		DeadTimeFracOn:  s.deadOn,
		DeadTimeFracOff: s.deadOff,
	}
}

func safeDiv(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

// vectorMean returns the direction of the summed unit vectors in (-180, 180].
func vectorMean(sin, cos float64) float64 {
	if sin == 0 && cos == 0 {
		return 0
	}
	deg := math.Atan2(sin, cos) * 180 / math.Pi
	if deg <= -180 {
		deg += 360
	}
	return deg
}
