// Package main times skysig invocations on generated data.
// For each pair count it writes a synthetic source directory, then measures
// SEQUENTIAL runs against a fresh store and MERGE runs that re-read the first
// store, and writes the averages to a timestamped CSV file.
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory for generated runs and stores (defaults to a temp dir)
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/huangsam/skysig/core"
	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/internal/runsource"
	"github.com/huangsam/skysig/schema"
)

// BenchmarkResult holds the averages of one pair count.
type BenchmarkResult struct {
	Pairs      int
	Sequential time.Duration
	Merge      time.Duration
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir    string
	Workers    int
	Runs       int
	PairCounts []int
	Synth      runsource.SynthOptions
}

func main() {
	if len(os.Args) > 2 {
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}
	workDir := ""
	if len(os.Args) == 2 {
		workDir = os.Args[1]
	} else {
		dir, err := os.MkdirTemp("", "skysig-bench-")
		if err != nil {
			fmt.Printf("Failed to create work dir: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = os.RemoveAll(dir) }()
		workDir = dir
	}

	synth := runsource.DefaultSynthOptions()
	synth.Bins = 60
	config := BenchmarkConfig{
		WorkDir:    workDir,
		Workers:    runtime.GOMAXPROCS(0),
		Runs:       3,
		PairCounts: []int{4, 16, 64},
		Synth:      synth,
	}
	contract.SetQuiet(true)

	results, err := runBenchmarks(config)
	if err != nil {
		fmt.Printf("Benchmark failed: %v\n", err)
		os.Exit(1)
	}
	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}
	printSummary(results)
}

// runBenchmarks generates data for every pair count and times both modes.
func runBenchmarks(config BenchmarkConfig) ([]BenchmarkResult, error) {
	fmt.Printf("Starting benchmark: %v pairs, %d workers, %d runs each\n", config.PairCounts, config.Workers, config.Runs)

	var results []BenchmarkResult
	for _, n := range config.PairCounts {
		sourceDir := filepath.Join(config.WorkDir, fmt.Sprintf("source_%d", n))
		if err := os.MkdirAll(sourceDir, 0o755); err != nil {
			return nil, err
		}
		pairs := make([]schema.RunPair, n)
		for i := range pairs {
			pairs[i] = schema.RunPair{On: 1000 + 2*i, Off: 1001 + 2*i}
			if err := runsource.WritePair(sourceDir, pairs[i], config.Synth); err != nil {
				return nil, err
			}
		}

		fmt.Printf("Benchmarking %d pairs\n", n)
		base := benchConfig(config, pairs, sourceDir)
		var seqTotal, mergeTotal time.Duration
		for run := range config.Runs {
			seq := base.Clone()
			seq.StoreDBConnect = filepath.Join(config.WorkDir, fmt.Sprintf("seq_%d_%d.db", n, run))
			d, err := timed(seq)
			if err != nil {
				return nil, fmt.Errorf("sequential %d pairs: %w", n, err)
			}
			seqTotal += d

			merge := base.Clone()
			merge.Mode = schema.MergeMode
			merge.MergeBackend = schema.SQLiteBackend
			merge.MergeDBConnect = seq.StoreDBConnect
			merge.StoreDBConnect = filepath.Join(config.WorkDir, fmt.Sprintf("merge_%d_%d.db", n, run))
			d, err = timed(merge)
			if err != nil {
				return nil, fmt.Errorf("merge %d pairs: %w", n, err)
			}
			mergeTotal += d
		}
		result := BenchmarkResult{
			Pairs:      n,
			Sequential: seqTotal / time.Duration(config.Runs),
			Merge:      mergeTotal / time.Duration(config.Runs),
		}
		fmt.Printf("  Sequential average: %v, Merge average: %v\n", result.Sequential, result.Merge)
		results = append(results, result)
	}
	return results, nil
}

func benchConfig(config BenchmarkConfig, pairs []schema.RunPair, sourceDir string) *contract.Config {
	return &contract.Config{
		Pairs:         pairs,
		Mode:          schema.SequentialMode,
		SourceDir:     sourceDir,
		Workers:       config.Workers,
		StoreBackend:  schema.SQLiteBackend,
		SigDistRadius: contract.DefaultSigDistRadius,
		SigDistBins:   contract.DefaultSigDistBins,
		SigDistMin:    contract.DefaultSigDistMin,
		SigDistMax:    contract.DefaultSigDistMax,
	}
}

func timed(cfg *contract.Config) (time.Duration, error) {
	start := time.Now()
	_, err := core.RunInvocation(core.WithSuppressHeader(context.Background()), cfg)
	return time.Since(start), err
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("skysig_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"pairs", "sequential_seconds", "merge_seconds"}); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			strconv.Itoa(r.Pairs),
			fmt.Sprintf("%.3f", r.Sequential.Seconds()),
			fmt.Sprintf("%.3f", r.Merge.Seconds()),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

func printSummary(results []BenchmarkResult) {
	fmt.Println("\nSummary:")
	for _, r := range results {
		speedup := 0.0
		if r.Merge > 0 {
			speedup = r.Sequential.Seconds() / r.Merge.Seconds()
		}
		fmt.Printf("  %3d pairs: sequential %8.3fs  merge %8.3fs  (%.1fx)\n", r.Pairs, r.Sequential.Seconds(), r.Merge.Seconds(), speedup)
	}
}
