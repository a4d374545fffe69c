// Package parquet provides data structures and functions for exporting skysig
// results to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/schema"
	"github.com/parquet-go/parquet-go"
)

// Invocation represents one orchestrator invocation.
// This struct maps to the skysig_invocations database table.
type Invocation struct {
	InvocationID string     `parquet:"invocation_id,snappy"`
	Mode         string     `parquet:"mode,snappy"`
	StartedAt    time.Time  `parquet:"started_at,snappy"`
	FinishedAt   *time.Time `parquet:"finished_at,optional,snappy"`
	PairCount    int32      `parquet:"pair_count,snappy"`
	Complete     bool       `parquet:"complete,snappy"`
}

// RunSummary is one flat summary row. The combined row carries run_on = -1.
type RunSummary struct {
	InvocationID string  `parquet:"invocation_id,snappy"`
	RunOn        int32   `parquet:"run_on,snappy"`
	RunOff       int32   `parquet:"run_off,snappy"`
	MJDOn        float64 `parquet:"mjd_on,snappy"`
	MJDOff       float64 `parquet:"mjd_off,snappy"`
	TOn          float64 `parquet:"t_on,snappy"`
	TOff         float64 `parquet:"t_off,snappy"`

	ElevationOn  float64 `parquet:"elevation_on,snappy"`
	ElevationOff float64 `parquet:"elevation_off,snappy"`
	AzimuthOn    float64 `parquet:"azimuth_on,snappy"`
	AzimuthOff   float64 `parquet:"azimuth_off,snappy"`
	AzimuthMinOn float64 `parquet:"azimuth_min_on,snappy"`
	AzimuthMaxOn float64 `parquet:"azimuth_max_on,snappy"`

	RawRateOn       float64 `parquet:"raw_rate_on,snappy"`
	RawRateOff      float64 `parquet:"raw_rate_off,snappy"`
	NoiseOn         float64 `parquet:"noise_on,snappy"`
	NoiseOff        float64 `parquet:"noise_off,snappy"`
	DeadTimeFracOn  float64 `parquet:"dead_time_frac_on,snappy"`
	DeadTimeFracOff float64 `parquet:"dead_time_frac_off,snappy"`

	TargetShiftNorth float64 `parquet:"target_shift_north,snappy"`
	TargetShiftWest  float64 `parquet:"target_shift_west,snappy"`

	NOn          float64  `parquet:"n_on,snappy"`
	NOff         float64  `parquet:"n_off,snappy"`
	NBackground  float64  `parquet:"n_background,snappy"`
	Alpha        *float64 `parquet:"alpha,optional,snappy"` // null when undefined at the target
	Significance float64  `parquet:"significance,snappy"`
	Label        string   `parquet:"label,snappy"`

	Rate           float64 `parquet:"rate,snappy"`
	RateError      float64 `parquet:"rate_error,snappy"`
	BackgroundRate float64 `parquet:"background_rate,snappy"`

	MaxSigCorrelated    float64 `parquet:"max_sig_correlated,snappy"`
	MaxSigXCorrelated   float64 `parquet:"max_sig_x_correlated,snappy"`
	MaxSigYCorrelated   float64 `parquet:"max_sig_y_correlated,snappy"`
	MaxSigUncorrelated  float64 `parquet:"max_sig_uncorrelated,snappy"`
	MaxSigXUncorrelated float64 `parquet:"max_sig_x_uncorrelated,snappy"`
	MaxSigYUncorrelated float64 `parquet:"max_sig_y_uncorrelated,snappy"`
}

// SkyMapBin is one bin of a stored sky map.
type SkyMapBin struct {
	RunID    int32    `parquet:"run_id,snappy"`
	Category string   `parquet:"category,snappy"`
	Name     string   `parquet:"name,snappy"`
	BinX     int32    `parquet:"bin_x,snappy"`
	BinY     int32    `parquet:"bin_y,snappy"`
	X        float64  `parquet:"x,snappy"`
	Y        float64  `parquet:"y,snappy"`
	Value    *float64 `parquet:"value,optional,snappy"` // null for undefined bins
}

// ConvertInvocationRecords maps store invocations to Parquet rows.
func ConvertInvocationRecords(records []schema.InvocationRecord) []Invocation {
	out := make([]Invocation, 0, len(records))
	for _, r := range records {
		out = append(out, Invocation{
			InvocationID: r.InvocationID,
			Mode:         string(r.Mode),
			StartedAt:    r.StartedAt,
			FinishedAt:   r.FinishedAt,
			PairCount:    int32(r.PairCount),
			Complete:     r.Complete,
		})
	}
	return out
}

// ConvertSummaryRecords maps summary records to Parquet rows.
func ConvertSummaryRecords(invocationID string, records []schema.RunSummaryRecord, label func(float64) string) []RunSummary {
	out := make([]RunSummary, 0, len(records))
	for _, r := range records {
		row := RunSummary{
			InvocationID:        invocationID,
			RunOn:               int32(r.RunOn),
			RunOff:              int32(r.RunOff),
			MJDOn:               r.MJDOn,
			MJDOff:              r.MJDOff,
			TOn:                 r.TOn,
			TOff:                r.TOff,
			ElevationOn:         r.ElevationOn,
			ElevationOff:        r.ElevationOff,
			AzimuthOn:           r.AzimuthOn,
			AzimuthOff:          r.AzimuthOff,
			AzimuthMinOn:        r.AzimuthMinOn,
			AzimuthMaxOn:        r.AzimuthMaxOn,
			RawRateOn:           r.RawRateOn,
			RawRateOff:          r.RawRateOff,
			NoiseOn:             r.NoiseOn,
			NoiseOff:            r.NoiseOff,
			DeadTimeFracOn:      r.DeadTimeFracOn,
			DeadTimeFracOff:     r.DeadTimeFracOff,
			TargetShiftNorth:    r.TargetShiftNorth,
			TargetShiftWest:     r.TargetShiftWest,
			NOn:                 r.NOn,
			NOff:                r.NOff,
			NBackground:         r.NBackground,
			Significance:        r.Significance,
			Rate:                r.Rate,
			RateError:           r.RateError,
			BackgroundRate:      r.BackgroundRate,
			MaxSigCorrelated:    r.MaxSigCorrelated,
			MaxSigXCorrelated:   r.MaxSigXCorrelated,
			MaxSigYCorrelated:   r.MaxSigYCorrelated,
			MaxSigUncorrelated:  r.MaxSigUncorrelated,
			MaxSigXUncorrelated: r.MaxSigXUncorrelated,
			MaxSigYUncorrelated: r.MaxSigYUncorrelated,
		}
		if r.AlphaDefined {
			alpha := r.Alpha
			row.Alpha = &alpha
		}
		if label != nil {
			row.Label = label(r.Significance)
		}
		out = append(out, row)
	}
	return out
}

// ConvertSkyMap flattens a map into one row per bin.
func ConvertSkyMap(runID int, category schema.Category, name string, m *hist.Dist2D) []SkyMapBin {
	out := make([]SkyMapBin, 0, m.X.Bins*m.Y.Bins)
	for i := range m.X.Bins {
		for j := range m.Y.Bins {
			x, y := m.Center(i, j)
			row := SkyMapBin{
				RunID:    int32(runID),
				Category: string(category),
				Name:     name,
				BinX:     int32(i),
				BinY:     int32(j),
				X:        x,
				Y:        y,
			}
			if m.Defined(i, j) {
				v := m.At(i, j)
				row.Value = &v
			}
			out = append(out, row)
		}
	}
	return out
}

// WriteInvocationsParquet writes invocation rows to a Parquet file.
func WriteInvocationsParquet(data []Invocation, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteRunSummariesParquet writes summary rows to a Parquet file.
func WriteRunSummariesParquet(data []RunSummary, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteSkyMapBinsParquet writes sky map bins to a Parquet file.
func WriteSkyMapBinsParquet(data []SkyMapBin, outputPath string) error {
	return writeParquet(data, outputPath)
}

// writeParquet writes rows of T with the schema derived from its struct tags.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

// ReadParquet reads every row of a Parquet file written by this package.
func ReadParquet[T any](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[T](file)
	defer func() { _ = reader.Close() }()

	rows := make([]T, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read parquet file %s: %w", path, err)
	}
	return rows[:n], nil
}
