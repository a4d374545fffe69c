package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{
			name:     "negative significance",
			input:    -4.0,
			expected: NoneValue,
		},
		{
			name:     "just before hint",
			input:    1.99,
			expected: NoneValue,
		},
		{
			name:     "exactly hint",
			input:    2.0,
			expected: HintValue,
		},
		{
			name:     "just before evidence",
			input:    2.99,
			expected: HintValue,
		},
		{
			name:     "exactly evidence",
			input:    3.0,
			expected: EvidenceValue,
		},
		{
			name:     "just before detection",
			input:    4.99,
			expected: EvidenceValue,
		},
		{
			name:     "exactly detection",
			input:    5.0,
			expected: DetectionValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetPlainLabel(tt.input))
		})
	}
}

func TestGetColorLabel(t *testing.T) {
	tests := []struct {
		name  string
		sig   float64
		label string
	}{
		{"none", 0.5, NoneValue},
		{"hint", 2.5, HintValue},
		{"evidence", 4, EvidenceValue},
		{"detection", 19, DetectionValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetColorLabel(tt.sig)
			// Should contain the plain label
			assert.Contains(t, result, tt.label)
		})
	}
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "test_output.txt")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestGetStoreDBFilePath(t *testing.T) {
	path := GetStoreDBFilePath()
	assert.True(t, strings.HasSuffix(path, ".skysig_results.db"))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestFormatRunID(t *testing.T) {
	assert.Equal(t, "combined", FormatRunID(-1))
	assert.Equal(t, "64080", FormatRunID(64080))
}

// FuzzParseRunPairs checks that arbitrary tokens never panic and that accepted
// pairs always carry positive ids.
func FuzzParseRunPairs(f *testing.F) {
	for _, seed := range []string{"64080:64081", "64080", "1:2,3:4", "", ":", "-1:2", "a:b", "5:5 6"} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, s string) {
		pairs, err := ParseRunPairs([]string{s})
		if err != nil {
			return
		}
		for _, p := range pairs {
			if p.On <= 0 || p.Off <= 0 {
				t.Fatalf("accepted non-positive pair %+v from %q", p, s)
			}
		}
	})
}
