package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
	assert.Equal(t, 0.25, Clamp01(0.25))
}

func TestMeanAndStdDev(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-9)

	assert.Equal(t, 0.0, StdDev([]float64{5}))
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestPearson(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}

	assert.InDelta(t, 1.0, Pearson(xs, []float64{2, 4, 6, 8, 10}), 1e-9)
	assert.InDelta(t, -1.0, Pearson(xs, []float64{10, 8, 6, 4, 2}), 1e-9)
	assert.Equal(t, 0.0, Pearson(xs, []float64{3, 3, 3, 3, 3}))
	assert.Equal(t, 0.0, Pearson(xs, []float64{1, 2}))
}

func TestAtomicWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")

	in := map[string]int{"alpha": 1, "beta": 2}
	require.NoError(t, AtomicWriteJSON(path, in))

	var out map[string]int
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, in, out)

	// No stray temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadJSONMissingFile(t *testing.T) {
	var out map[string]int
	err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &out)
	assert.Error(t, err)
}
