//go:build integration || database

package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/huangsam/skysig/internal/runsource"
	"github.com/huangsam/skysig/schema"
	"github.com/stretchr/testify/require"
)

var (
	// sharedSkysigPath holds the path to a shared skysig binary built once for all tests.
	sharedSkysigPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	code := m.Run()

	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}
	os.Exit(code)
}

// getSkysigBinary returns the path to the skysig binary, building it once if needed.
func getSkysigBinary() string {
	buildOnce.Do(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "skysig-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		skysigPath := filepath.Join(tempDir, "skysig")
		buildCmd := exec.Command("go", "build", "-o", skysigPath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		if out, err := buildCmd.CombinedOutput(); err != nil {
			panic(fmt.Sprintf("failed to build skysig: %v\n%s", err, out))
		}
		sharedSkysigPath = skysigPath
	})
	return sharedSkysigPath
}

// runSkysig runs the binary with extra environment and returns its stdout.
func runSkysig(t *testing.T, env []string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(getSkysigBinary(), args...)
	cmd.Dir = t.TempDir() // keep stray config files out of the way
	cmd.Env = append(os.Environ(), "HOME="+cmd.Dir)
	cmd.Env = append(cmd.Env, env...)
	var stderr, stdout = new(lockedBuffer), new(lockedBuffer)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	err := cmd.Run()
	if err != nil {
		t.Logf("Command failed: %s\nStderr: %s", cmd.String(), stderr.String())
	}
	return stdout.String(), err
}

// lockedBuffer collects process output.
type lockedBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// writeSourceDir generates per-run files for the pairs.
func writeSourceDir(t *testing.T, pairs []schema.RunPair) string {
	t.Helper()
	dir := t.TempDir()
	for _, p := range pairs {
		require.NoError(t, runsource.WritePair(dir, p, runsource.DefaultSynthOptions()))
	}
	return dir
}

func pairArgs(pairs []schema.RunPair) []string {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, fmt.Sprintf("%d:%d", p.On, p.Off))
	}
	return out
}
