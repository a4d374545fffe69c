package core

import (
	"math"
	"testing"

	"github.com/huangsam/skysig/schema"
	"github.com/stretchr/testify/assert"
)

func samples(az ...float64) []schema.PointingSample {
	out := make([]schema.PointingSample, len(az))
	for i, a := range az {
		out[i] = schema.PointingSample{Time: float64(i), Elevation: 50 + float64(i), Azimuth: a}
	}
	return out
}

func TestNormalizeAzimuth(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{190, -170},
		{-190, 170},
		{540, 180},
		{-361, -1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, normalizeAzimuth(tt.in), 1e-12, "in=%v", tt.in)
	}
}

func TestAzimuthRange(t *testing.T) {
	tests := []struct {
		name     string
		az       []float64
		wantMean float64
		wantMin  float64
		wantMax  float64
	}{
		{"empty", nil, 0, 0, 0},
		{"plain", []float64{10, 30}, 20, 10, 30},
		{"crossing from west", []float64{-170, 170}, 180, -170, 170},
		{"crossing from east", []float64{170, -170}, 180, 170, -170},
		{"unwrapped input", []float64{350, 10}, 0, -10, 10},
		{"no wrap below thresholds", []float64{-140, 110}, -15, -140, 110},
		{"single sample", []float64{45}, 45, 45, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AzimuthRange(samples(tt.az...))
			assert.InDelta(t, tt.wantMean, got.Mean, 1e-9)
			assert.InDelta(t, tt.wantMin, got.Min, 1e-9)
			assert.InDelta(t, tt.wantMax, got.Max, 1e-9)
		})
	}
}

func TestAzimuthRangeOrdersByTime(t *testing.T) {
	s := []schema.PointingSample{
		{Time: 30, Azimuth: 170},
		{Time: 10, Azimuth: -170},
		{Time: 20, Azimuth: 179},
	}
	got := AzimuthRange(s)
	assert.InDelta(t, -170, got.Min, 1e-12)
	assert.InDelta(t, 170, got.Max, 1e-12)
	assert.InDelta(t, 180, math.Abs(got.Mean), 1e-9)
	// input is left untouched
	assert.Equal(t, 30.0, s[0].Time)
}

func TestMeanElevation(t *testing.T) {
	assert.Zero(t, MeanElevation(nil))
	assert.InDelta(t, 51, MeanElevation(samples(0, 0, 0)), 1e-12)
}
