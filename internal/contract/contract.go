// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"

	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/schema"
)

// RunData is everything the per-run analysis provides for one side of a pair.
type RunData struct {
	Info       schema.RunInfo
	Pointing   []schema.PointingSample
	Histograms hist.Set
}

// PairData is the loaded content of one run pair.
type PairData struct {
	Pair  schema.RunPair
	On    RunData
	Off   RunData
	Alpha map[schema.Variant]*hist.Dist2D
}

// PairHandle is a scoped handle on one pair's data. Close releases it.
type PairHandle interface {
	// Data loads the pair content. It may be called more than once.
	Data() (*PairData, error)

	// Close releases any resource held by the handle.
	Close() error
}

// RunSource opens per-run analysis output.
// This allows the orchestration to be tested without files on disk.
type RunSource interface {
	// OpenPair acquires a handle on the on/off data of a pair.
	OpenPair(ctx context.Context, pair schema.RunPair) (PairHandle, error)
}
