package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteCurvesResults outputs one Q-factor scan in the configured format.
func WriteCurvesResults(curves schema.QFactorCurves, cfg *contract.Config) error {
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, curves)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVWithHeader(w, []string{"run", "quantity", "bin", "low_edge", "high_edge", "sig_above", "sig_below"}, func(cw *csv.Writer) error {
				for _, p := range curves.Points {
					rec := []string{
						strconv.Itoa(curves.RunID), string(curves.Quantity), strconv.Itoa(p.Bin),
						fmtFloat(p.LowEdge), fmtFloat(p.HighEdge), fmtFloat(p.SigAbove), fmtFloat(p.SigBelow),
					}
					if err := cw.Write(rec); err != nil {
						return err
					}
				}
				return nil
			})
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("curves: %s output is not supported, use export", cfg.Output)
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCurvesTable(w, curves, fmtFloat)
		}, "Wrote table")
	}
}

func writeCurvesTable(w io.Writer, curves schema.QFactorCurves, fmtFloat func(float64) string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Bin", "Low Edge", "High Edge", "Sig Above", "Sig Below"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(curves.Points))
	for _, p := range curves.Points {
		data = append(data, []string{
			strconv.Itoa(p.Bin), fmtFloat(p.LowEdge), fmtFloat(p.HighEdge), fmtFloat(p.SigAbove), fmtFloat(p.SigBelow),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if best, ok := curves.Best(); ok {
		_, err := fmt.Fprintf(w, "Run %s %s: best cut at bin %d (above %s: %s, below %s: %s)\n",
			contract.FormatRunID(curves.RunID), curves.Quantity, best.Bin,
			fmtFloat(best.LowEdge), fmtFloat(best.SigAbove), fmtFloat(best.HighEdge), fmtFloat(best.SigBelow))
		return err
	}
	return nil
}
