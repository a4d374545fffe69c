package outwriter

import (
	"fmt"
	"io"
	"slices"

	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/schema"
)

const statusTimeFormat = "2006-01-02 15:04:05"

// statusDocument is the JSON form of the store status.
type statusDocument struct {
	Status      schema.StoreStatus        `json:"status"`
	Invocations []schema.InvocationRecord `json:"invocations,omitempty"`
}

// WriteStoreStatus prints the result store status and its invocation history.
func WriteStoreStatus(status schema.StoreStatus, invocations []schema.InvocationRecord, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, statusDocument{Status: status, Invocations: invocations})
		}, "Wrote JSON")
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeStatusText(w, status, invocations)
	}, "Wrote status")
}

func writeStatusText(w io.Writer, status schema.StoreStatus, invocations []schema.InvocationRecord) error {
	lines := []string{
		fmt.Sprintf("Store Backend: %s", status.Backend),
		fmt.Sprintf("Connected: %t", status.Connected),
	}
	if status.Connected {
		lines = append(lines,
			fmt.Sprintf("Schema Version: %d", status.SchemaVersion),
			fmt.Sprintf("Total Invocations: %d", status.TotalInvocations),
		)
		if status.TotalInvocations > 0 {
			lines = append(lines,
				fmt.Sprintf("Last Invocation: %s (%s, %s)", status.LastInvocationID, status.LastMode, status.LastInvocationTime.Format(statusTimeFormat)),
				fmt.Sprintf("Complete: %t", status.Complete),
				fmt.Sprintf("Stored Runs: %d", status.TotalRuns),
				fmt.Sprintf("Combined Result: %t", status.HasCombined),
			)
		}
		lines = append(lines, "Table Sizes:")
		tables := make([]string, 0, len(status.TableSizes))
		for table := range status.TableSizes {
			tables = append(tables, table)
		}
		slices.Sort(tables)
		for _, table := range tables {
			lines = append(lines, fmt.Sprintf("  %s: %d rows", table, status.TableSizes[table]))
		}
	}
	for _, inv := range invocations {
		state := "incomplete"
		if inv.Complete {
			state = "complete"
		}
		lines = append(lines, fmt.Sprintf("  %s %-10s %d pairs %s %s", inv.StartedAt.Format(statusTimeFormat), inv.Mode, inv.PairCount, state, inv.InvocationID))
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
