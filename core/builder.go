package core

import (
	"errors"

	"github.com/huangsam/skysig/core/agg"
	"github.com/huangsam/skysig/core/sigmap"
	"github.com/huangsam/skysig/schema"
)

// secondsPerMinute converts live times into the per-minute rates of the summary.
const secondsPerMinute = 60.0

// RunSummaryBuilder builds one RunSummaryRecord. Every With step fills one
// group of columns.
type RunSummaryBuilder struct {
	record schema.RunSummaryRecord
}

// NewRunSummaryBuilder is the starting point for building a per-run record.
func NewRunSummaryBuilder() *RunSummaryBuilder {
	return &RunSummaryBuilder{}
}

// NewCombinedSummaryBuilder starts the sentinel record from a finalized aggregation.
func NewCombinedSummaryBuilder(state *agg.State) (*RunSummaryBuilder, error) {
	if state.Phase() != agg.Finalized {
		return nil, errors.New("combined summary needs a finalized aggregation")
	}
	m := state.Means()
	b := NewRunSummaryBuilder().WithPair(schema.CombinedPair)
	r := &b.record
	r.TOn, r.TOff = m.TOn, m.TOff
	r.MJDOn, r.MJDOff = m.MJDOn, m.MJDOff
	r.ElevationOn, r.ElevationOff = m.ElevationOn, m.ElevationOff
	r.AzimuthOn, r.AzimuthOff = m.AzimuthOn, m.AzimuthOff
	r.AzimuthMinOn, r.AzimuthMaxOn = m.AzimuthMinOn, m.AzimuthMaxOn
	r.NoiseOn, r.NoiseOff = m.NoiseOn, m.NoiseOff
	r.RawRateOn, r.RawRateOff = m.RawRateOn, m.RawRateOff
	r.DeadTimeFracOn, r.DeadTimeFracOff = m.DeadTimeFracOn, m.DeadTimeFracOff
	return b, nil
}

// WithPair sets the run identifiers.
func (b *RunSummaryBuilder) WithPair(pair schema.RunPair) *RunSummaryBuilder {
	b.record.RunOn = pair.On
	b.record.RunOff = pair.Off
	return b
}

// WithExposure copies exposure, dead time and noise of both runs.
func (b *RunSummaryBuilder) WithExposure(on, off schema.RunInfo) *RunSummaryBuilder {
	r := &b.record
	r.MJDOn, r.MJDOff = on.MJD, off.MJD
	r.TOn, r.TOff = on.LiveTime, off.LiveTime
	r.DeadTimeFracOn, r.DeadTimeFracOff = on.DeadTimeFraction, off.DeadTimeFraction
	r.NoiseOn, r.NoiseOff = on.MeanNoise, off.MeanNoise
	return b
}

// WithPointing fills elevation and azimuth statistics from pointing samples.
func (b *RunSummaryBuilder) WithPointing(on, off []schema.PointingSample) *RunSummaryBuilder {
	r := &b.record
	azOn := AzimuthRange(on)
	r.ElevationOn = MeanElevation(on)
	r.AzimuthOn = azOn.Mean
	r.AzimuthMinOn = azOn.Min
	r.AzimuthMaxOn = azOn.Max

	r.ElevationOff = MeanElevation(off)
	r.AzimuthOff = AzimuthRange(off).Mean
	return b
}

// WithRawRates sets the event rates before background subtraction. It must
// follow WithExposure; a zero live time gives a zero rate.
func (b *RunSummaryBuilder) WithRawRates(onEntries, offEntries float64) *RunSummaryBuilder {
	b.record.RawRateOn = perMinute(onEntries, b.record.TOn)
	b.record.RawRateOff = perMinute(offEntries, b.record.TOff)
	return b
}

// WithTarget fills the counts, alpha and significance at the target bin.
func (b *RunSummaryBuilder) WithTarget(t sigmap.Target, shiftNorth, shiftWest float64) *RunSummaryBuilder {
	r := &b.record
	r.TargetShiftNorth = shiftNorth
	r.TargetShiftWest = shiftWest
	r.NOn = t.NOn
	r.NOff = t.NOff
	r.NBackground = t.Background
	r.Alpha = t.Alpha
	r.AlphaDefined = t.AlphaDefined
	r.Significance = t.Significance
	r.Rate = perMinute(t.Excess, r.TOn)
	r.RateError = perMinute(t.ExcessError, r.TOn)
	r.BackgroundRate = perMinute(t.Background, r.TOn)
	return b
}

// WithPeaks records the maximum of each variant's significance map.
func (b *RunSummaryBuilder) WithPeaks(peaks map[schema.Variant]schema.Peak) *RunSummaryBuilder {
	r := &b.record
	if p, ok := peaks[schema.Correlated]; ok && p.Defined {
		r.MaxSigCorrelated, r.MaxSigXCorrelated, r.MaxSigYCorrelated = p.Significance, p.X, p.Y
	}
	if p, ok := peaks[schema.Uncorrelated]; ok && p.Defined {
		r.MaxSigUncorrelated, r.MaxSigXUncorrelated, r.MaxSigYUncorrelated = p.Significance, p.X, p.Y
	}
	return b
}

// Build returns the finished record.
func (b *RunSummaryBuilder) Build() schema.RunSummaryRecord {
	return b.record
}

func perMinute(count, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return count / (seconds / secondsPerMinute)
}
