// Package outwriter has output and writer logic.
package outwriter

import (
	"time"

	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteSummary prints summary records using the configured output format.
func (ow *OutWriter) WriteSummary(records []schema.RunSummaryRecord, invocationID string, cfg *contract.Config, duration time.Duration) error {
	return WriteSummaryResults(records, invocationID, cfg, duration)
}

// WriteCurves prints one stored Q-factor scan using the configured output format.
func (ow *OutWriter) WriteCurves(curves schema.QFactorCurves, cfg *contract.Config) error {
	return WriteCurvesResults(curves, cfg)
}

// WriteStatus prints the result store status.
func (ow *OutWriter) WriteStatus(status schema.StoreStatus, invocations []schema.InvocationRecord, cfg *contract.Config) error {
	return WriteStoreStatus(status, invocations, cfg)
}
