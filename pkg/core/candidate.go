package core

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Status tracks a candidate through its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusEvaluated  Status = "evaluated"
	StatusInfeasible Status = "infeasible"
	StatusPromoted   Status = "promoted"
)

// Infeasible is the fitness assigned to candidates that violated a hard
// constraint, timed out, or failed evaluation. It compares below every
// finite fitness.
var Infeasible = math.Inf(-1)

// Candidate represents a single parameter configuration produced in a
// generation, together with its evaluation results.
type Candidate struct {
	ID         string         `json:"id"`
	Generation int            `json:"generation"`
	ParentIDs  []string       `json:"parent_ids,omitempty"`
	Genome     Genome         `json:"genome"`
	RawMetrics *Metrics       `json:"raw_metrics,omitempty"`
	Fitness    float64        `json:"fitness"`
	Novelty    float64        `json:"novelty"`
	Status     Status         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewCandidate creates a pending candidate for the given generation.
// Parents must come from strictly earlier generations; the check makes
// lineage cycles structurally unrepresentable.
func NewCandidate(generation int, genome Genome, parents ...*Candidate) (*Candidate, error) {
	if generation < 0 {
		return nil, fmt.Errorf("generation must be >= 0, got %d", generation)
	}
	if len(parents) > 2 {
		return nil, fmt.Errorf("candidate may have at most 2 parents, got %d", len(parents))
	}
	parentIDs := make([]string, 0, len(parents))
	for _, p := range parents {
		if p.Generation >= generation {
			return nil, fmt.Errorf("parent %s from generation %d cannot produce a generation %d candidate",
				p.ID, p.Generation, generation)
		}
		parentIDs = append(parentIDs, p.ID)
	}
	return &Candidate{
		ID:         uuid.New().String(),
		Generation: generation,
		ParentIDs:  parentIDs,
		Genome:     genome.Clone(),
		Fitness:    Infeasible,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}, nil
}

// Feasible reports whether the candidate passed evaluation and its hard
// constraints.
func (c *Candidate) Feasible() bool {
	return !math.IsInf(c.Fitness, -1)
}

// Clone returns a deep copy of the candidate. The copy keeps the original's
// ID; callers that need a distinct identity assign one afterwards.
func (c *Candidate) Clone() *Candidate {
	cp := *c
	cp.Genome = c.Genome.Clone()
	cp.ParentIDs = append([]string(nil), c.ParentIDs...)
	if c.RawMetrics != nil {
		m := *c.RawMetrics
		cp.RawMetrics = &m
	}
	if c.Metadata != nil {
		cp.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
