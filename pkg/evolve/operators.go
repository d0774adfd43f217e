package evolve

import (
	"math/rand"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
)

// Operators applies crossover and mutation over genomes. All iteration is
// in search-space dimension order so seeded runs reproduce exactly.
type Operators struct {
	space         *core.SearchSpace
	crossoverRate float64
	mutationRate  float64
}

// NewOperators builds the genetic operators for a space.
func NewOperators(space *core.SearchSpace, crossoverRate, mutationRate float64) (*Operators, error) {
	if crossoverRate < 0 || crossoverRate > 1 {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"crossover_rate must be in [0,1], got %v", crossoverRate)
	}
	if mutationRate < 0 || mutationRate > 1 {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"mutation_rate must be in [0,1], got %v", mutationRate)
	}
	return &Operators{space: space, crossoverRate: crossoverRate, mutationRate: mutationRate}, nil
}

// Crossover combines two parents. With probability crossoverRate each
// parameter is inherited independently from either parent (uniform
// crossover); otherwise the child is a clone of the higher-scoring parent.
func (o *Operators) Crossover(rng *rand.Rand, a, b *core.Candidate) core.Genome {
	if rng.Float64() >= o.crossoverRate {
		better := a
		if SelectionScore(b) > SelectionScore(a) {
			better = b
		}
		return better.Genome.Clone()
	}

	child := make(core.Genome, o.space.Len())
	for _, d := range o.space.Dimensions() {
		if rng.Float64() < 0.5 {
			child[d.Name] = a.Genome[d.Name]
		} else {
			child[d.Name] = b.Genome[d.Name]
		}
	}
	return child
}

// Mutate flips each parameter independently with probability mutationRate.
// Continuous parameters resample from the active range; discrete and
// categorical parameters switch to a different active value when an
// alternative exists.
func (o *Operators) Mutate(rng *rand.Rand, g core.Genome) core.Genome {
	mutated := g.Clone()
	for _, d := range o.space.Dimensions() {
		if rng.Float64() >= o.mutationRate {
			continue
		}
		mutated[d.Name] = d.SampleDifferent(rng, mutated[d.Name])
	}
	return mutated
}
