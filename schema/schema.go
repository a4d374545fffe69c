// Package schema has configs, models and constants for all parts of skysig.
package schema

import "fmt"

// RunInfo carries the scalar metadata of one exposure.
type RunInfo struct {
	RunID            int     `json:"run_id"`
	MJD              float64 `json:"mjd"`
	LiveTime         float64 `json:"live_time"`          // live exposure in seconds
	DeadTimeFraction float64 `json:"dead_time_fraction"` // fraction of the exposure without recording
	MeanNoise        float64 `json:"mean_noise"`         // mean pedestal variance
}

// PointingSample is one telescope pointing reading during a run.
type PointingSample struct {
	Time      float64 `json:"time"` // seconds since run start
	Elevation float64 `json:"elevation"`
	Azimuth   float64 `json:"azimuth"`
}

// RunPair is an on-run with its background-control off-run.
// The wobble case uses the same run for both sides.
type RunPair struct {
	On  int `json:"on"`
	Off int `json:"off"`
}

// CombinedPair is the sentinel pair standing for the union of all processed pairs.
var CombinedPair = RunPair{On: CombinedRunID, Off: CombinedRunID}

// ID returns the namespace key of the pair inside the result store.
func (p RunPair) ID() int {
	return p.On
}

// IsCombined reports whether p is the sentinel pair.
func (p RunPair) IsCombined() bool {
	return p.On == CombinedRunID
}

func (p RunPair) String() string {
	if p.IsCombined() {
		return "combined"
	}
	return fmt.Sprintf("%d:%d", p.On, p.Off)
}

// AzimuthStats is the wrap-aware azimuth summary of an exposure, in degrees.
type AzimuthStats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Peak locates the maximum of a significance map.
type Peak struct {
	Significance float64 `json:"significance"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Defined      bool    `json:"defined"`
}

// RunSummaryRecord is the flat per-run result row. One row exists per run pair
// and one for the combined pair.
type RunSummaryRecord struct {
	RunOn  int     `json:"run_on"`
	RunOff int     `json:"run_off"`
	MJDOn  float64 `json:"mjd_on"`
	MJDOff float64 `json:"mjd_off"`

	TOn  float64 `json:"t_on"`  // seconds
	TOff float64 `json:"t_off"` // seconds

	ElevationOn  float64 `json:"elevation_on"`
	ElevationOff float64 `json:"elevation_off"`
	AzimuthOn    float64 `json:"azimuth_on"`
	AzimuthOff   float64 `json:"azimuth_off"`
	AzimuthMinOn float64 `json:"azimuth_min_on"`
	AzimuthMaxOn float64 `json:"azimuth_max_on"`

	RawRateOn  float64 `json:"raw_rate_on"`  // 1/min
	RawRateOff float64 `json:"raw_rate_off"` // 1/min
	NoiseOn    float64 `json:"noise_on"`
	NoiseOff   float64 `json:"noise_off"`

	DeadTimeFracOn  float64 `json:"dead_time_frac_on"`
	DeadTimeFracOff float64 `json:"dead_time_frac_off"`

	TargetShiftNorth float64 `json:"target_shift_north"`
	TargetShiftWest  float64 `json:"target_shift_west"`

	NOn          float64 `json:"n_on"`
	NOff         float64 `json:"n_off"`
	NBackground  float64 `json:"n_background"`
	Alpha        float64 `json:"alpha"`
	AlphaDefined bool    `json:"alpha_defined"`
	Significance float64 `json:"significance"`

	Rate           float64 `json:"rate"`       // excess 1/min
	RateError      float64 `json:"rate_error"` // 1/min
	BackgroundRate float64 `json:"background_rate"`

	MaxSigCorrelated    float64 `json:"max_sig_correlated"`
	MaxSigXCorrelated   float64 `json:"max_sig_x_correlated"`
	MaxSigYCorrelated   float64 `json:"max_sig_y_correlated"`
	MaxSigUncorrelated  float64 `json:"max_sig_uncorrelated"`
	MaxSigXUncorrelated float64 `json:"max_sig_x_uncorrelated"`
	MaxSigYUncorrelated float64 `json:"max_sig_y_uncorrelated"`
}

// IsCombined reports whether the record is the sentinel row.
func (r RunSummaryRecord) IsCombined() bool {
	return r.RunOn == CombinedRunID
}

// Pair returns the run pair the record belongs to.
func (r RunSummaryRecord) Pair() RunPair {
	return RunPair{On: r.RunOn, Off: r.RunOff}
}

// PeakFor returns the stored map maximum for a variant.
func (r RunSummaryRecord) PeakFor(v Variant) Peak {
	if v == Uncorrelated {
		return Peak{Significance: r.MaxSigUncorrelated, X: r.MaxSigXUncorrelated, Y: r.MaxSigYUncorrelated, Defined: true}
	}
	return Peak{Significance: r.MaxSigCorrelated, X: r.MaxSigXCorrelated, Y: r.MaxSigYCorrelated, Defined: true}
}

// QFactorPoint is one bin of a stored Q-factor scan.
type QFactorPoint struct {
	Bin      int     `json:"bin"`
	LowEdge  float64 `json:"low_edge"`
	HighEdge float64 `json:"high_edge"`
	SigAbove float64 `json:"sig_above"` // requiring the variable above LowEdge
	SigBelow float64 `json:"sig_below"` // requiring the variable below HighEdge
}

// QFactorCurves is the pair of cumulative scans of one quantity for one run.
type QFactorCurves struct {
	RunID    int            `json:"run_id"`
	Quantity Quantity       `json:"quantity"`
	Points   []QFactorPoint `json:"points"`
}

// Best returns the point with the largest significance in either direction.
func (c QFactorCurves) Best() (QFactorPoint, bool) {
	var best QFactorPoint
	var top float64
	found := false
	for _, p := range c.Points {
		if s := max(p.SigAbove, p.SigBelow); !found || s > top {
			best, top, found = p, s, true
		}
	}
	return best, found
}
