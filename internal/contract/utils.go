package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
)

// Significance label constants.
const (
	DetectionValue = "Detection" // Detection value
	EvidenceValue  = "Evidence"  // Evidence value
	HintValue      = "Hint"      // Hint value
	NoneValue      = "None"      // None value
)

// Color variables for console output.
var (
	DetectionColor = color.New(color.FgRed, color.Bold)     // detectionColor marks a 5 sigma result.
	EvidenceColor  = color.New(color.FgMagenta, color.Bold) // evidenceColor marks a 3 sigma result.
	HintColor      = color.New(color.FgYellow)              // hintColor marks a 2 sigma result.
	NoneColor      = color.New(color.FgCyan)                // noneColor is informational.
)

var quiet atomic.Bool

// GetPlainLabel returns a plain text label for a significance in sigma.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(sig float64) string {
	switch {
	case sig >= 5:
		return DetectionValue
	case sig >= 3:
		return EvidenceValue
	case sig >= 2:
		return HintValue
	default:
		return NoneValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
func GetColorLabel(sig float64) string {
	text := GetPlainLabel(sig)

	switch text {
	case DetectionValue:
		return DetectionColor.Sprint(text)
	case EvidenceValue:
		return EvidenceColor.Sprint(text)
	case HintValue:
		return HintColor.Sprint(text)
	default:
		return NoneColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// SetQuiet toggles LogInfo output.
func SetQuiet(q bool) {
	quiet.Store(q)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// LogInfo logs a progress message to stderr unless quiet is set.
func LogInfo(format string, args ...any) {
	if quiet.Load() {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// GetStoreDBFilePath returns the path to the default SQLite DB file for results.
func GetStoreDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".skysig_results.db"
	}
	return filepath.Join(homeDir, ".skysig_results.db")
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}

// FormatRunID renders a run id, naming the combined sentinel.
func FormatRunID(id int) string {
	if id < 0 {
		return "combined"
	}
	return fmt.Sprintf("%d", id)
}
