package evolve

import (
	"math/rand"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
)

// Generator assembles populations: uniform sampling for generation 0,
// elitism + children + fresh random injections afterwards.
type Generator struct {
	space          *core.SearchSpace
	selector       *Selector
	operators      *Operators
	populationSize int
	eliteK         int
	freshK         int
}

// NewGenerator validates the population shape and builds a generator.
func NewGenerator(space *core.SearchSpace, selector *Selector, operators *Operators,
	populationSize, eliteK, freshK int) (*Generator, error) {
	if populationSize < 1 {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"population_size must be >= 1, got %d", populationSize)
	}
	if eliteK < 0 || freshK < 0 {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"elite_k and fresh_k must be >= 0, got %d and %d", eliteK, freshK)
	}
	if eliteK+freshK > populationSize {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"elite_k + fresh_k (%d) must not exceed population_size (%d)",
			eliteK+freshK, populationSize)
	}
	return &Generator{
		space:          space,
		selector:       selector,
		operators:      operators,
		populationSize: populationSize,
		eliteK:         eliteK,
		freshK:         freshK,
	}, nil
}

// Initial draws generation 0 uniformly at random from every dimension's
// active range.
func (g *Generator) Initial(rng *rand.Rand) ([]*core.Candidate, error) {
	population := make([]*core.Candidate, 0, g.populationSize)
	for i := 0; i < g.populationSize; i++ {
		c, err := core.NewCandidate(0, g.space.Sample(rng))
		if err != nil {
			return nil, err
		}
		population = append(population, c)
	}
	return population, nil
}

// Next assembles generation gen from the scored prior generation:
// the top elite_k survive with identical genomes, fresh_k random candidates
// sustain exploration, and the remainder are children of tournament-selected
// parents.
func (g *Generator) Next(rng *rand.Rand, prior []*core.Candidate, gen int) ([]*core.Candidate, error) {
	if len(prior) == 0 {
		return nil, errors.New(errors.InvalidInput, "prior generation is empty")
	}

	population := make([]*core.Candidate, 0, g.populationSize)

	for _, elite := range TopK(prior, g.eliteK) {
		c, err := core.NewCandidate(gen, elite.Genome, elite)
		if err != nil {
			return nil, err
		}
		population = append(population, c)
	}

	childCount := g.populationSize - len(population) - g.freshK
	for i := 0; i < childCount; i++ {
		parentA := g.selector.Tournament(rng, prior)
		parentB := g.selector.Tournament(rng, prior)

		genome := g.operators.Crossover(rng, parentA, parentB)
		genome = g.operators.Mutate(rng, genome)

		parents := []*core.Candidate{parentA}
		if parentB.ID != parentA.ID {
			parents = append(parents, parentB)
		}
		c, err := core.NewCandidate(gen, genome, parents...)
		if err != nil {
			return nil, err
		}
		population = append(population, c)
	}

	for i := 0; i < g.freshK; i++ {
		c, err := core.NewCandidate(gen, g.space.Sample(rng))
		if err != nil {
			return nil, err
		}
		population = append(population, c)
	}

	return population, nil
}

// PopulationSize returns the configured population size.
func (g *Generator) PopulationSize() int { return g.populationSize }
