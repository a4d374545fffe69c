// Package runsource reads per-run analysis output from a directory.
//
// A directory holds one file per run, run_<id>.json, with the exposure
// metadata, the pointing samples and the histogram set of that run, and one
// file per pair, alpha_<on>_<off>.json, with the alpha map of each variant.
package runsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/schema"
)

// ErrRunNotFound is returned when a run or alpha file is missing.
var ErrRunNotFound = errors.New("run data not found")

// runFile is the on-disk form of one run.
type runFile struct {
	Info       schema.RunInfo                      `json:"info"`
	Pointing   []schema.PointingSample             `json:"pointing"`
	Histograms map[schema.Quantity]json.RawMessage `json:"histograms"`
}

// alphaFile is the on-disk form of the alpha maps of one pair.
type alphaFile struct {
	Pair schema.RunPair                     `json:"pair"`
	Maps map[schema.Variant]json.RawMessage `json:"maps"`
}

// DirSource serves run pairs from a directory.
type DirSource struct {
	dir string
}

var _ contract.RunSource = &DirSource{} // Compile-time check

// New returns a source reading from dir.
func New(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// RunPath returns the path of a run file.
func RunPath(dir string, runID int) string {
	return filepath.Join(dir, fmt.Sprintf("run_%d.json", runID))
}

// AlphaPath returns the path of the alpha file of a pair.
func AlphaPath(dir string, pair schema.RunPair) string {
	return filepath.Join(dir, fmt.Sprintf("alpha_%d_%d.json", pair.On, pair.Off))
}

// OpenPair checks that every file of the pair exists and returns a lazy handle.
func (s *DirSource) OpenPair(ctx context.Context, pair schema.RunPair) (contract.PairHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, path := range []string{RunPath(s.dir, pair.On), RunPath(s.dir, pair.Off), AlphaPath(s.dir, pair)} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%s: %w", path, ErrRunNotFound)
			}
			return nil, fmt.Errorf("cannot access %s: %w", path, err)
		}
	}
	return &fileHandle{dir: s.dir, pair: pair}, nil
}

// fileHandle loads a pair on first use and drops it on Close.
type fileHandle struct {
	dir  string
	pair schema.RunPair

	mu     sync.Mutex
	data   *contract.PairData
	closed bool
}

// Data implements the PairHandle interface.
func (h *fileHandle) Data() (*contract.PairData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("run pair %s: handle closed", h.pair)
	}
	if h.data != nil {
		return h.data, nil
	}

	// the off side is decoded separately even for wobble pairs since the
	// per-run pass rescales it in place
	on, err := readRun(RunPath(h.dir, h.pair.On))
	if err != nil {
		return nil, err
	}
	off, err := readRun(RunPath(h.dir, h.pair.Off))
	if err != nil {
		return nil, err
	}
	alpha, err := readAlpha(AlphaPath(h.dir, h.pair), h.pair)
	if err != nil {
		return nil, err
	}
	h.data = &contract.PairData{Pair: h.pair, On: on, Off: off, Alpha: alpha}
	return h.data, nil
}

// Close implements the PairHandle interface.
func (h *fileHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.data = nil
	return nil
}

func readRun(path string) (contract.RunData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return contract.RunData{}, fmt.Errorf("read %s: %w", path, err)
	}
	var f runFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return contract.RunData{}, fmt.Errorf("parse %s: %w", path, err)
	}
	set := make(hist.Set, len(f.Histograms))
	for q, payload := range f.Histograms {
		h, err := hist.Decode(payload)
		if err != nil {
			return contract.RunData{}, fmt.Errorf("%s quantity %s: %w", path, q, err)
		}
		set[q] = h
	}
	return contract.RunData{Info: f.Info, Pointing: f.Pointing, Histograms: set}, nil
}

func readAlpha(path string, pair schema.RunPair) (map[schema.Variant]*hist.Dist2D, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f alphaFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Pair != pair {
		return nil, fmt.Errorf("%s belongs to pair %s, want %s", path, f.Pair, pair)
	}
	out := make(map[schema.Variant]*hist.Dist2D, len(f.Maps))
	for v, payload := range f.Maps {
		h, err := hist.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("%s variant %s: %w", path, v, err)
		}
		m, ok := h.(*hist.Dist2D)
		if !ok {
			return nil, fmt.Errorf("%s variant %s is a %s, want dist2d", path, v, h.Kind())
		}
		out[v] = m
	}
	return out, nil
}

// WriteRun stores one run in dir.
func WriteRun(dir string, run contract.RunData) error {
	f := runFile{Info: run.Info, Pointing: run.Pointing, Histograms: make(map[schema.Quantity]json.RawMessage, len(run.Histograms))}
	for q, h := range run.Histograms {
		payload, err := hist.Encode(h)
		if err != nil {
			return fmt.Errorf("run %d quantity %s: %w", run.Info.RunID, q, err)
		}
		f.Histograms[q] = payload
	}
	return writeJSONFile(RunPath(dir, run.Info.RunID), f)
}

// WriteAlpha stores the alpha maps of a pair in dir.
func WriteAlpha(dir string, pair schema.RunPair, maps map[schema.Variant]*hist.Dist2D) error {
	f := alphaFile{Pair: pair, Maps: make(map[schema.Variant]json.RawMessage, len(maps))}
	for v, m := range maps {
		payload, err := hist.Encode(m)
		if err != nil {
			return fmt.Errorf("pair %s variant %s: %w", pair, v, err)
		}
		f.Maps[v] = payload
	}
	return writeJSONFile(AlphaPath(dir, pair), f)
}

func writeJSONFile(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
