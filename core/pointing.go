package core

import (
	"math"
	"slices"

	"github.com/huangsam/skysig/schema"
	"gonum.org/v1/gonum/stat"
)

// Azimuth thresholds in degrees for runs crossing the ±180 boundary.
const (
	wrapHighMin = 120.0
	wrapLowMax  = -120.0
	wrapLowMin  = -150.0
)

// normalizeAzimuth maps an angle in degrees into (-180, 180].
func normalizeAzimuth(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	} else if deg <= -180 {
		deg += 360
	}
	return deg
}

// AzimuthRange returns the wrap-aware azimuth summary of a run from its first
// and last pointing samples. Min and Max are the normalized first and last values.
func AzimuthRange(samples []schema.PointingSample) schema.AzimuthStats {
	if len(samples) == 0 {
		return schema.AzimuthStats{}
	}
	ordered := slices.Clone(samples)
	slices.SortStableFunc(ordered, func(a, b schema.PointingSample) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		default:
			return 0
		}
	})

	azMin := normalizeAzimuth(ordered[0].Azimuth)
	azMax := normalizeAzimuth(ordered[len(ordered)-1].Azimuth)

	lo, hi := azMin, azMax
	if lo > wrapHighMin && hi < wrapLowMax {
		hi += 360
	} else if lo < wrapLowMin && hi > wrapHighMin {
		lo += 360
	}
	return schema.AzimuthStats{
		Mean: normalizeAzimuth((lo + hi) / 2),
		Min:  azMin,
		Max:  azMax,
	}
}

// MeanElevation returns the average elevation of the samples, 0 when there are none.
func MeanElevation(samples []schema.PointingSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	elevations := make([]float64, len(samples))
	for i, s := range samples {
		elevations[i] = s.Elevation
	}
	return stat.Mean(elevations, nil)
}
