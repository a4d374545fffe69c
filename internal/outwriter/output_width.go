package outwriter

import (
	"os"

	"github.com/huangsam/skysig/internal/contract"
	"golang.org/x/term"
)

const (
	defaultTermWidth = 80  // used when no terminal is attached, e.g. in CI
	detailTermWidth  = 150 // wide enough for the exposure columns
)

// getTerminalWidth returns the configured width override or the detected
// terminal width.
func getTerminalWidth(cfg *contract.Config) int {
	if cfg.Width > 0 {
		return cfg.Width
	}
	detected, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || detected <= 0 {
		return defaultTermWidth
	}
	return detected
}

// showExposureColumns reports whether the summary table has room for the
// exposure and pointing columns.
func showExposureColumns(cfg *contract.Config) bool {
	return getTerminalWidth(cfg) >= detailTermWidth
}
