package runsource

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/schema"
	"gonum.org/v1/gonum/stat/distuv"
)

// SynthOptions shapes a generated run pair.
type SynthOptions struct {
	Bins       int     // sky map bins per axis
	Extent     float64 // sky map half width in degrees
	Background float64 // mean off counts per sky map bin
	Alpha      float64 // constant alpha inside the field of view
	Signal     float64 // excess counts at the map centre
	LiveTime   float64 // seconds
	Seed       uint64
}

// DefaultSynthOptions returns a small field with a clear source.
func DefaultSynthOptions() SynthOptions {
	return SynthOptions{Bins: 20, Extent: 2, Background: 40, Alpha: 0.2, Signal: 60, LiveTime: 1200, Seed: 1}
}

// Synthesize generates Poisson-fluctuated on/off data and alpha maps for a pair.
func Synthesize(pair schema.RunPair, opts SynthOptions) (*contract.PairData, error) {
	if opts.Bins <= 0 || opts.Extent <= 0 {
		return nil, fmt.Errorf("synthesize %s: invalid binning %d over %g", pair, opts.Bins, opts.Extent)
	}
	src := rand.NewPCG(opts.Seed, uint64(pair.On)*31+uint64(pair.Off))
	sky, err := hist.NewAxis(opts.Bins, -opts.Extent, opts.Extent)
	if err != nil {
		return nil, err
	}

	poisson := func(mean float64) float64 {
		if mean <= 0 {
			return 0
		}
		return distuv.Poisson{Lambda: mean, Src: src}.Rand()
	}
	sigma := sky.Width() * 1.5
	signalAt := func(x, y float64) float64 {
		return opts.Signal * math.Exp(-(x*x+y*y)/(2*sigma*sigma))
	}
	inside := func(x, y float64) bool {
		return math.Hypot(x, y) < 0.9*opts.Extent
	}

	onSet, offSet := make(hist.Set), make(hist.Set)
	alpha := make(map[schema.Variant]*hist.Dist2D, len(schema.AllVariants))

	// uncorrelated counts per bin, then correlated as the 3x3 neighbourhood sum
	onU, offU := hist.NewDist2D(sky, sky), hist.NewDist2D(sky, sky)
	for i := range opts.Bins {
		for j := range opts.Bins {
			x, y := onU.Center(i, j)
			offU.Set(i, j, poisson(opts.Background))
			onU.Set(i, j, poisson(opts.Alpha*opts.Background+signalAt(x, y)))
		}
	}
	onSet[schema.QuantitySkyMapUncorrelated] = onU
	offSet[schema.QuantitySkyMapUncorrelated] = offU
	onSet[schema.QuantitySkyMapCorrelated] = correlate(onU)
	offSet[schema.QuantitySkyMapCorrelated] = correlate(offU)

	for _, v := range schema.AllVariants {
		a := hist.NewDist2D(sky, sky)
		for i := range opts.Bins {
			for j := range opts.Bins {
				x, y := a.Center(i, j)
				if !inside(x, y) {
					a.SetUndefined(i, j)
					continue
				}
				a.Set(i, j, opts.Alpha)
			}
		}
		alpha[v] = a
	}

	type dist struct {
		q      schema.Quantity
		bins   int
		lo, hi float64
		bkg    func(float64) float64
		excess func(float64) float64
	}
	total := opts.Signal * 4
	dists := []dist{
		{schema.QuantityTheta2, 25, 0, 0.5,
			func(float64) float64 { return opts.Background },
			func(t float64) float64 { return total * math.Exp(-t/0.02) / 5 }},
		{schema.QuantityMSCW, 40, -2, 2,
			func(v float64) float64 { return opts.Background * math.Exp(-(v-0.8)*(v-0.8)/0.5) },
			func(v float64) float64 { return total / 8 * math.Exp(-v*v/0.1) }},
		{schema.QuantityLogEnergy, 30, -1, 2,
			func(e float64) float64 { return opts.Background * math.Pow(10, -0.7*e) },
			func(e float64) float64 { return total / 10 * math.Pow(10, -0.5*e) }},
	}
	for _, d := range dists {
		ax, err := hist.NewAxis(d.bins, d.lo, d.hi)
		if err != nil {
			return nil, err
		}
		on, off := hist.NewDist1D(ax), hist.NewDist1D(ax)
		for i := range d.bins {
			c := ax.Center(i)
			off.SetBin(i, poisson(d.bkg(c)))
			on.SetBin(i, poisson(opts.Alpha*d.bkg(c)+d.excess(c)))
		}
		onSet[d.q], offSet[d.q] = on, off
	}

	energy := hist.NewProfile2D(sky, sky)
	for i := range opts.Bins {
		for j := range opts.Bins {
			x, y := energy.X.Center(i), energy.Y.Center(j)
			energy.Fill(x, y, 0.3+0.1*math.Hypot(x, y), onU.At(i, j))
		}
	}
	onSet[schema.QuantityMeanEnergyMap] = energy
	offSet[schema.QuantityMeanEnergyMap] = energy.CloneEmpty()

	return &contract.PairData{
		Pair:  pair,
		On:    contract.RunData{Info: synthInfo(pair.On, opts), Pointing: synthPointing(pair.On), Histograms: onSet},
		Off:   contract.RunData{Info: synthInfo(pair.Off, opts), Pointing: synthPointing(pair.Off), Histograms: offSet},
		Alpha: alpha,
	}, nil
}

// WritePair generates a pair and writes its files into dir.
func WritePair(dir string, pair schema.RunPair, opts SynthOptions) error {
	data, err := Synthesize(pair, opts)
	if err != nil {
		return err
	}
	if err := WriteRun(dir, data.On); err != nil {
		return err
	}
	if pair.Off != pair.On {
		if err := WriteRun(dir, data.Off); err != nil {
			return err
		}
	}
	return WriteAlpha(dir, pair, data.Alpha)
}

// correlate sums each bin with its neighbours.
func correlate(m *hist.Dist2D) *hist.Dist2D {
	out := hist.NewDist2D(m.X, m.Y)
	for i := range m.X.Bins {
		for j := range m.Y.Bins {
			var sum float64
			for di := -1; di <= 1; di++ {
				for dj := -1; dj <= 1; dj++ {
					ii, jj := i+di, j+dj
					if ii < 0 || jj < 0 || ii >= m.X.Bins || jj >= m.Y.Bins {
						continue
					}
					sum += m.At(ii, jj)
				}
			}
			out.Set(i, j, sum)
		}
	}
	return out
}

func synthInfo(runID int, opts SynthOptions) schema.RunInfo {
	return schema.RunInfo{
		RunID:            runID,
		MJD:              57000 + float64(runID%1000)/10,
		LiveTime:         opts.LiveTime,
		DeadTimeFraction: 0.08 + float64(runID%5)/100,
		MeanNoise:        7 + float64(runID%3)/2,
	}
}

// synthPointing tracks across azimuth over ten samples.
func synthPointing(runID int) []schema.PointingSample {
	start := float64(runID%360) - 180
	samples := make([]schema.PointingSample, 10)
	for k := range samples {
		samples[k] = schema.PointingSample{
			Time:      float64(k) * 120,
			Elevation: 60 + float64(k),
			Azimuth:   start + float64(k)*2,
		}
	}
	return samples
}
