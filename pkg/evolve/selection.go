// Package evolve implements selection, the genetic operators, population
// assembly, and periodic search-space adaptation.
package evolve

import (
	"math/rand"
	"sort"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
)

// TieBreak picks between fitness-equal tournament contenders.
type TieBreak string

const (
	// TieBreakNovelty prefers the more novel contender. This is the
	// default policy; treat it as configurable, not a contract.
	TieBreakNovelty TieBreak = "novelty"
	// TieBreakRandom picks uniformly between tied contenders.
	TieBreakRandom TieBreak = "random"
)

// Selector runs tournament selection over a scored population.
type Selector struct {
	tournamentSize int
	tieBreak       TieBreak
}

// NewSelector builds a tournament selector.
func NewSelector(tournamentSize int, tieBreak TieBreak) (*Selector, error) {
	if tournamentSize < 1 {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"tournament_size must be >= 1, got %d", tournamentSize)
	}
	switch tieBreak {
	case TieBreakNovelty, TieBreakRandom:
	case "":
		tieBreak = TieBreakNovelty
	default:
		return nil, errors.Newf(errors.InvalidConfiguration,
			"unknown tie_break policy %q", tieBreak)
	}
	return &Selector{tournamentSize: tournamentSize, tieBreak: tieBreak}, nil
}

// SelectionScore is the candidate's ordering key: fitness when feasible,
// -Inf otherwise.
func SelectionScore(c *core.Candidate) float64 {
	if !c.Feasible() {
		return core.Infeasible
	}
	return c.Fitness
}

// Tournament samples tournamentSize contenders uniformly (with replacement,
// which also covers pools smaller than the tournament) and returns the
// winner.
func (s *Selector) Tournament(rng *rand.Rand, pool []*core.Candidate) *core.Candidate {
	if len(pool) == 0 {
		return nil
	}
	best := pool[rng.Intn(len(pool))]
	for i := 1; i < s.tournamentSize; i++ {
		contender := pool[rng.Intn(len(pool))]
		if s.beats(rng, contender, best) {
			best = contender
		}
	}
	return best
}

func (s *Selector) beats(rng *rand.Rand, a, b *core.Candidate) bool {
	sa, sb := SelectionScore(a), SelectionScore(b)
	if sa != sb {
		return sa > sb
	}
	switch s.tieBreak {
	case TieBreakRandom:
		return rng.Intn(2) == 0
	default:
		return a.Novelty > b.Novelty
	}
}

// TopK returns the k best candidates by selection score, ties broken by
// novelty descending. It never mutates the input order.
func TopK(pool []*core.Candidate, k int) []*core.Candidate {
	sorted := append([]*core.Candidate(nil), pool...)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := SelectionScore(sorted[i]), SelectionScore(sorted[j])
		if si != sj {
			return si > sj
		}
		return sorted[i].Novelty > sorted[j].Novelty
	})
	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[:k]
}
