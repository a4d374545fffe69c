package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/internal/parquet"
	"github.com/huangsam/skysig/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// summaryRow is the JSON form of a record, with its label.
type summaryRow struct {
	schema.RunSummaryRecord
	Label string `json:"label"`
}

// summaryDocument is the JSON document of a summary table.
type summaryDocument struct {
	InvocationID string       `json:"invocation_id,omitempty"`
	Runs         []summaryRow `json:"runs"`
	Combined     *summaryRow  `json:"combined,omitempty"`
}

// WriteSummaryResults outputs summary records, dispatching on the configured output format.
func WriteSummaryResults(records []schema.RunSummaryRecord, invocationID string, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, fmtOptional := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, newSummaryDocument(records, invocationID))
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSummaryCSV(w, records, fmtFloat, fmtOptional)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if cfg.OutputFile == "" {
			return errParquetNeedsFile
		}
		rows := parquet.ConvertSummaryRecords(invocationID, records, contract.GetPlainLabel)
		if err := parquet.WriteRunSummariesParquet(rows, cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "💾 Wrote Parquet to %s\n", cfg.OutputFile)
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSummaryTable(w, records, cfg, fmtFloat, fmtOptional, duration)
		}, "Wrote table")
	}
	return nil
}

func newSummaryDocument(records []schema.RunSummaryRecord, invocationID string) summaryDocument {
	doc := summaryDocument{InvocationID: invocationID, Runs: make([]summaryRow, 0, len(records))}
	for _, r := range records {
		row := summaryRow{RunSummaryRecord: r, Label: contract.GetPlainLabel(r.Significance)}
		if r.IsCombined() {
			doc.Combined = &row
			continue
		}
		doc.Runs = append(doc.Runs, row)
	}
	return doc
}

// writeSummaryTable generates and writes the human-readable table.
func writeSummaryTable(w io.Writer, records []schema.RunSummaryRecord, cfg *contract.Config, fmtFloat func(float64) string, fmtOptional func(float64, bool) string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	exposure := showExposureColumns(cfg)

	headers := []string{"Run", "Off", "Non", "Noff", "Alpha", "Sig", "Label", "Rate [1/min]", "Max Sig"}
	if exposure {
		headers = append(headers, "T [min]", "Elev", "Az", "Noise", "Dead")
	}
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, r := range records {
		label := contract.GetPlainLabel(r.Significance)
		if cfg.UseColors {
			label = contract.GetColorLabel(r.Significance)
		}
		row := []string{
			contract.FormatRunID(r.RunOn),
			contract.FormatRunID(r.RunOff),
			fmtFloat(r.NOn),
			fmtFloat(r.NOff),
			fmtOptional(r.Alpha, r.AlphaDefined),
			fmtFloat(r.Significance),
			label,
			fmt.Sprintf("%s ± %s", fmtFloat(r.Rate), fmtFloat(r.RateError)),
			fmtFloat(max(r.MaxSigCorrelated, r.MaxSigUncorrelated)),
		}
		if exposure {
			row = append(row,
				fmtFloat(r.TOn/60),
				fmtFloat(r.ElevationOn),
				fmtFloat(r.AzimuthOn),
				fmtFloat(r.NoiseOn),
				fmtFloat(r.DeadTimeFracOn),
			)
		}
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	runs := 0
	for _, r := range records {
		if !r.IsCombined() {
			runs++
		}
	}
	if _, err := fmt.Fprintf(w, "Showing %d runs\n", runs); err != nil {
		return err
	}
	if duration > 0 {
		if _, err := fmt.Fprintf(w, "Analysis completed in %v with %d workers. Store backend: %s\n", duration, cfg.Workers, cfg.StoreBackend); err != nil {
			return err
		}
	}
	return nil
}

// writeSummaryCSV writes one CSV row per record.
func writeSummaryCSV(w io.Writer, records []schema.RunSummaryRecord, fmtFloat func(float64) string, fmtOptional func(float64, bool) string) error {
	header := []string{
		"run_on", "run_off", "mjd_on", "mjd_off", "t_on", "t_off",
		"elevation_on", "elevation_off", "azimuth_on", "azimuth_off", "azimuth_min_on", "azimuth_max_on",
		"raw_rate_on", "raw_rate_off", "noise_on", "noise_off", "dead_time_frac_on", "dead_time_frac_off",
		"target_shift_north", "target_shift_west",
		"n_on", "n_off", "n_background", "alpha", "significance", "label",
		"rate", "rate_error", "background_rate",
		"max_sig_correlated", "max_sig_x_correlated", "max_sig_y_correlated",
		"max_sig_uncorrelated", "max_sig_x_uncorrelated", "max_sig_y_uncorrelated",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range records {
			rec := []string{
				strconv.Itoa(r.RunOn), strconv.Itoa(r.RunOff), fmtFloat(r.MJDOn), fmtFloat(r.MJDOff), fmtFloat(r.TOn), fmtFloat(r.TOff),
				fmtFloat(r.ElevationOn), fmtFloat(r.ElevationOff), fmtFloat(r.AzimuthOn), fmtFloat(r.AzimuthOff), fmtFloat(r.AzimuthMinOn), fmtFloat(r.AzimuthMaxOn),
				fmtFloat(r.RawRateOn), fmtFloat(r.RawRateOff), fmtFloat(r.NoiseOn), fmtFloat(r.NoiseOff), fmtFloat(r.DeadTimeFracOn), fmtFloat(r.DeadTimeFracOff),
				fmtFloat(r.TargetShiftNorth), fmtFloat(r.TargetShiftWest),
				fmtFloat(r.NOn), fmtFloat(r.NOff), fmtFloat(r.NBackground), fmtOptional(r.Alpha, r.AlphaDefined), fmtFloat(r.Significance), contract.GetPlainLabel(r.Significance),
				fmtFloat(r.Rate), fmtFloat(r.RateError), fmtFloat(r.BackgroundRate),
				fmtFloat(r.MaxSigCorrelated), fmtFloat(r.MaxSigXCorrelated), fmtFloat(r.MaxSigYCorrelated),
				fmtFloat(r.MaxSigUncorrelated), fmtFloat(r.MaxSigXUncorrelated), fmtFloat(r.MaxSigYUncorrelated),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
