package cmd

import (
	"errors"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/huangsam/skysig/internal/contract"
)

// profilePaths returns the CPU and heap profile paths for a prefix.
func profilePaths(prefix string) (cpu, heap string) {
	return prefix + ".cpu.prof", prefix + ".mem.prof"
}

// profileSession is a running CPU profile plus the heap snapshot taken on Stop.
type profileSession struct {
	cpuPath, heapPath string
	cpu               *os.File
}

// startProfile begins CPU profiling into <prefix>.cpu.prof.
func startProfile(prefix string) (*profileSession, error) {
	cpuPath, heapPath := profilePaths(prefix)
	f, err := os.Create(cpuPath)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not start CPU profiling: %w", err)
	}
	contract.LogInfo("Profiling to %s and %s", cpuPath, heapPath)
	return &profileSession{cpuPath: cpuPath, heapPath: heapPath, cpu: f}, nil
}

// Stop ends CPU profiling and writes the heap profile. Both files are closed
// even when one of the writes fails.
func (p *profileSession) Stop() error {
	pprof.StopCPUProfile()
	errs := []error{p.cpu.Close()}

	heap, err := os.Create(p.heapPath)
	if err != nil {
		errs = append(errs, fmt.Errorf("could not create memory profile: %w", err))
		return errors.Join(errs...)
	}
	if err := pprof.WriteHeapProfile(heap); err != nil {
		errs = append(errs, fmt.Errorf("could not write memory profile: %w", err))
	}
	errs = append(errs, heap.Close())
	if err := errors.Join(errs...); err != nil {
		return err
	}
	contract.LogInfo("Profiles written, inspect with 'go tool pprof %s'", p.cpuPath)
	return nil
}
