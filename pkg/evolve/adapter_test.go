package evolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/spica-go/pkg/core"
)

func adapterSpace(t *testing.T) *core.SearchSpace {
	t.Helper()
	a, err := core.NewContinuousDimension("a", 0, 10)
	require.NoError(t, err)
	m, err := core.NewCategoricalDimension("m", []string{"x", "y", "z"})
	require.NoError(t, err)
	space, err := core.NewSearchSpace(a, m)
	require.NoError(t, err)
	return space
}

func windowCandidate(t *testing.T, a float64, m string, fitness float64) *core.Candidate {
	t.Helper()
	c, err := core.NewCandidate(0, core.Genome{
		"a": core.FloatValue(a),
		"m": core.StrValue(m),
	})
	require.NoError(t, err)
	c.Fitness = fitness
	c.Status = core.StatusEvaluated
	return c
}

func TestShouldRunHonorsInterval(t *testing.T) {
	space := adapterSpace(t)
	adapter, err := NewSpaceAdapter(space, DefaultAdapterConfig(5))
	require.NoError(t, err)

	assert.False(t, adapter.ShouldRun(0))
	assert.False(t, adapter.ShouldRun(4))
	assert.True(t, adapter.ShouldRun(5))
	assert.True(t, adapter.ShouldRun(10))

	disabled, err := NewSpaceAdapter(space, DefaultAdapterConfig(0))
	require.NoError(t, err)
	assert.False(t, disabled.ShouldRun(5))
}

func TestFlatLandscapeNarrowsTowardBestRegion(t *testing.T) {
	space := adapterSpace(t)
	adapter, err := NewSpaceAdapter(space, DefaultAdapterConfig(1))
	require.NoError(t, err)

	// Wide coverage of "a" with near-identical fitness: flat landscape.
	// The best draw sits mid-range so the values do not correlate with
	// fitness.
	window := []*core.Candidate{
		windowCandidate(t, 0.5, "x", 0.501),
		windowCandidate(t, 3.0, "x", 0.500),
		windowCandidate(t, 6.0, "x", 0.503),
		windowCandidate(t, 9.5, "x", 0.502),
	}

	adjustments := adapter.Adapt(window)

	dim, _ := space.Dimension("a")
	assert.Less(t, dim.ActiveMax-dim.ActiveMin, 10.0, "active range must shrink")
	assert.GreaterOrEqual(t, dim.ActiveMin, 0.0)
	assert.LessOrEqual(t, dim.ActiveMax, 10.0)

	var narrowed bool
	for _, adj := range adjustments {
		if adj.Dimension == "a" && adj.Action == "narrow" {
			narrowed = true
			// The best candidate sits at 6; the narrowed range must keep it.
			assert.LessOrEqual(t, adj.Min, 6.0)
			assert.GreaterOrEqual(t, adj.Max, 6.0)
		}
	}
	assert.True(t, narrowed)
}

func TestNarrowingIsMonotonicAcrossPasses(t *testing.T) {
	space := adapterSpace(t)
	adapter, err := NewSpaceAdapter(space, DefaultAdapterConfig(1))
	require.NoError(t, err)
	dim, _ := space.Dimension("a")

	prevWidth := dim.ActiveMax - dim.ActiveMin
	for pass := 0; pass < 4; pass++ {
		lo, hi := dim.ActiveMin, dim.ActiveMax
		span := hi - lo
		window := []*core.Candidate{
			windowCandidate(t, lo+span*0.05, "x", 0.5),
			windowCandidate(t, lo+span*0.40, "x", 0.5),
			windowCandidate(t, lo+span*0.60, "x", 0.5),
			windowCandidate(t, lo+span*0.95, "x", 0.5),
		}
		adapter.Adapt(window)

		width := dim.ActiveMax - dim.ActiveMin
		assert.LessOrEqual(t, width, prevWidth, "pass %d widened without cause", pass)
		assert.GreaterOrEqual(t, dim.ActiveMin, 0.0)
		assert.LessOrEqual(t, dim.ActiveMax, 10.0)
		prevWidth = width
	}
}

func TestStrongCorrelationWidens(t *testing.T) {
	space := adapterSpace(t)
	adapter, err := NewSpaceAdapter(space, DefaultAdapterConfig(1))
	require.NoError(t, err)

	dim, _ := space.Dimension("a")
	dim.Narrow(4, 6)

	// Fitness rises linearly with "a": correlation 1.0.
	window := []*core.Candidate{
		windowCandidate(t, 4.2, "x", 0.2),
		windowCandidate(t, 4.8, "x", 0.4),
		windowCandidate(t, 5.4, "x", 0.6),
		windowCandidate(t, 5.9, "x", 0.8),
	}
	adapter.Adapt(window)

	assert.Less(t, dim.ActiveMin, 4.0)
	assert.Greater(t, dim.ActiveMax, 6.0)
	assert.GreaterOrEqual(t, dim.ActiveMin, 0.0)
	assert.LessOrEqual(t, dim.ActiveMax, 10.0)
}

func TestNoisyLandscapeLeavesSpaceAlone(t *testing.T) {
	space := adapterSpace(t)
	adapter, err := NewSpaceAdapter(space, DefaultAdapterConfig(1))
	require.NoError(t, err)

	// High fitness variance, no clean correlation: nothing should move.
	window := []*core.Candidate{
		windowCandidate(t, 1, "x", 0.9),
		windowCandidate(t, 4, "y", 0.1),
		windowCandidate(t, 6, "z", 0.8),
		windowCandidate(t, 9, "x", 0.2),
	}
	adjustments := adapter.Adapt(window)
	assert.Empty(t, adjustments)

	dim, _ := space.Dimension("a")
	assert.Equal(t, 0.0, dim.ActiveMin)
	assert.Equal(t, 10.0, dim.ActiveMax)
}

func TestCategoricalRestriction(t *testing.T) {
	space := adapterSpace(t)
	adapter, err := NewSpaceAdapter(space, DefaultAdapterConfig(1))
	require.NoError(t, err)

	// Full coverage of {x,y,z}, flat fitness with a slight edge for x/y.
	window := []*core.Candidate{
		windowCandidate(t, 5, "x", 0.504),
		windowCandidate(t, 5, "y", 0.503),
		windowCandidate(t, 5, "z", 0.500),
		windowCandidate(t, 5, "z", 0.501),
	}
	adapter.Adapt(window)

	dim, _ := space.Dimension("m")
	assert.Less(t, len(dim.ActiveValues), 3)
	assert.GreaterOrEqual(t, len(dim.ActiveValues), 1)
}

func TestInfeasibleCandidatesAreIgnored(t *testing.T) {
	space := adapterSpace(t)
	adapter, err := NewSpaceAdapter(space, DefaultAdapterConfig(1))
	require.NoError(t, err)

	infeasible := windowCandidate(t, 5, "x", core.Infeasible)
	assert.Empty(t, adapter.Adapt([]*core.Candidate{infeasible, infeasible, infeasible, infeasible}))
}
