package evolve

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/spica-go/pkg/core"
)

func generatorSpace(t *testing.T) *core.SearchSpace {
	t.Helper()
	a, err := core.NewContinuousDimension("a", 0, 10)
	require.NoError(t, err)
	b, err := core.NewCategoricalDimension("b", []string{"x", "y"})
	require.NoError(t, err)
	space, err := core.NewSearchSpace(a, b)
	require.NoError(t, err)
	return space
}

func newGenerator(t *testing.T, space *core.SearchSpace, popSize, eliteK, freshK, tournament int,
	crossoverRate, mutationRate float64) *Generator {
	t.Helper()
	sel, err := NewSelector(tournament, TieBreakNovelty)
	require.NoError(t, err)
	ops, err := NewOperators(space, crossoverRate, mutationRate)
	require.NoError(t, err)
	gen, err := NewGenerator(space, sel, ops, popSize, eliteK, freshK)
	require.NoError(t, err)
	return gen
}

func scorePopulation(pop []*core.Candidate, fitnessOf func(core.Genome) float64) {
	for _, c := range pop {
		c.Fitness = fitnessOf(c.Genome)
		c.Status = core.StatusEvaluated
	}
}

func TestNewGeneratorValidation(t *testing.T) {
	space := generatorSpace(t)
	sel, _ := NewSelector(2, TieBreakNovelty)
	ops, _ := NewOperators(space, 0.5, 0.1)

	_, err := NewGenerator(space, sel, ops, 0, 0, 0)
	assert.Error(t, err)
	_, err = NewGenerator(space, sel, ops, 4, 3, 2)
	assert.Error(t, err)
	_, err = NewGenerator(space, sel, ops, 4, -1, 0)
	assert.Error(t, err)
}

func TestInitialPopulationSizeAndBounds(t *testing.T) {
	space := generatorSpace(t)
	gen := newGenerator(t, space, 12, 2, 1, 3, 0.7, 0.1)
	rng := rand.New(rand.NewSource(17))

	pop, err := gen.Initial(rng)
	require.NoError(t, err)
	require.Len(t, pop, 12)
	for _, c := range pop {
		assert.Equal(t, 0, c.Generation)
		assert.Empty(t, c.ParentIDs)
		for _, d := range space.Dimensions() {
			assert.True(t, d.Contains(c.Genome[d.Name]))
		}
	}
}

func TestNextPreservesPopulationSize(t *testing.T) {
	space := generatorSpace(t)
	gen := newGenerator(t, space, 10, 2, 1, 3, 0.7, 0.2)
	rng := rand.New(rand.NewSource(8))

	pop, err := gen.Initial(rng)
	require.NoError(t, err)
	scorePopulation(pop, func(g core.Genome) float64 { return g["a"].Float / 10 })

	for generation := 1; generation <= 5; generation++ {
		next, err := gen.Next(rng, pop, generation)
		require.NoError(t, err)
		assert.Len(t, next, 10, "generation %d", generation)
		scorePopulation(next, func(g core.Genome) float64 { return g["a"].Float / 10 })
		pop = next
	}
}

func TestElitesSurviveWithIdenticalGenomes(t *testing.T) {
	space := generatorSpace(t)
	gen := newGenerator(t, space, 8, 3, 1, 2, 1.0, 0.5)
	rng := rand.New(rand.NewSource(99))

	pop, err := gen.Initial(rng)
	require.NoError(t, err)
	scorePopulation(pop, func(g core.Genome) float64 { return g["a"].Float })

	elites := TopK(pop, 3)
	next, err := gen.Next(rng, pop, 1)
	require.NoError(t, err)

	for i, elite := range elites {
		assert.True(t, next[i].Genome.Equal(elite.Genome),
			"elite %d genome must reappear unmodified", i)
		assert.Equal(t, []string{elite.ID}, next[i].ParentIDs)
		assert.Equal(t, 1, next[i].Generation)
	}
}

func TestFreshInjectionSustainsExploration(t *testing.T) {
	space := generatorSpace(t)
	// All children clone the single elite (crossover 0, mutation 0), so a
	// distinct genome in the next generation can only come from fresh_k.
	gen := newGenerator(t, space, 6, 1, 2, 2, 0.0, 0.0)
	rng := rand.New(rand.NewSource(123))

	pop, err := gen.Initial(rng)
	require.NoError(t, err)
	// One dominant candidate wins every tournament.
	for i, c := range pop {
		c.Fitness = 0.1
		if i == 0 {
			c.Fitness = 0.9
		}
		c.Status = core.StatusEvaluated
	}

	next, err := gen.Next(rng, pop, 1)
	require.NoError(t, err)

	distinct := 0
	for _, c := range next {
		if !c.Genome.Equal(pop[0].Genome) {
			distinct++
		}
	}
	assert.GreaterOrEqual(t, distinct, 1, "fresh candidates keep exploring")
}

func TestSeededRunsAreReproducible(t *testing.T) {
	space1 := generatorSpace(t)
	space2 := generatorSpace(t)
	gen1 := newGenerator(t, space1, 10, 2, 1, 3, 0.7, 0.3)
	gen2 := newGenerator(t, space2, 10, 2, 1, 3, 0.7, 0.3)

	run := func(gen *Generator) []core.Genome {
		rng := rand.New(rand.NewSource(4242))
		pop, err := gen.Initial(rng)
		require.NoError(t, err)
		var genomes []core.Genome
		for g := 1; g <= 4; g++ {
			scorePopulation(pop, func(g core.Genome) float64 { return g["a"].Float / 10 })
			next, err := gen.Next(rng, pop, g)
			require.NoError(t, err)
			pop = next
			for _, c := range pop {
				genomes = append(genomes, c.Genome)
			}
		}
		return genomes
	}

	g1 := run(gen1)
	g2 := run(gen2)
	require.Equal(t, len(g1), len(g2))
	for i := range g1 {
		assert.True(t, g1[i].Equal(g2[i]), "genome %d diverged between seeded runs", i)
	}
}

// Fixed scenario: population 4, elite 1, tournament 2, mutation off,
// crossover always on. Generation 1 must be the generation-0 winner
// unchanged plus three children whose "a" equals exactly one parent's "a"
// and whose "b" stays in {x, y}.
func TestCrossoverOnlyScenario(t *testing.T) {
	space := generatorSpace(t)
	gen := newGenerator(t, space, 4, 1, 0, 2, 1.0, 0.0)
	rng := rand.New(rand.NewSource(7))

	pop, err := gen.Initial(rng)
	require.NoError(t, err)
	scorePopulation(pop, func(g core.Genome) float64 { return g["a"].Float / 10 })

	parentAs := map[float64]bool{}
	for _, c := range pop {
		parentAs[c.Genome["a"].Float] = true
	}
	winner := TopK(pop, 1)[0]

	next, err := gen.Next(rng, pop, 1)
	require.NoError(t, err)
	require.Len(t, next, 4)

	assert.True(t, next[0].Genome.Equal(winner.Genome), "gen-0 winner survives unchanged")
	for _, child := range next[1:] {
		assert.True(t, parentAs[child.Genome["a"].Float],
			"child 'a' %v must equal exactly one parent's 'a'", child.Genome["a"].Float)
		b := child.Genome["b"].Str
		assert.Contains(t, []string{"x", "y"}, b)
	}
}
