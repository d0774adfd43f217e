package evolve

import (
	"math"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
	"github.com/XiaoConstantine/spica-go/pkg/utils"
)

// AdapterConfig tunes when the space adapter narrows or widens a dimension.
type AdapterConfig struct {
	// Interval in generations between adaptation passes. 0 disables.
	Interval int
	// VarianceThreshold: fitness variance below this counts as a flat
	// landscape along the dimension.
	VarianceThreshold float64
	// CoverageThreshold: fraction of the active region that must have been
	// explored before narrowing toward the best region.
	CoverageThreshold float64
	// CorrelationThreshold: |Pearson| at or above this widens the range.
	CorrelationThreshold float64
	// NarrowFactor: the new active width as a fraction of the current one.
	NarrowFactor float64
	// WidenFraction: pad added per side when widening, as a fraction of the
	// current active width.
	WidenFraction float64
}

// DefaultAdapterConfig returns the standard adaptation tuning.
func DefaultAdapterConfig(interval int) AdapterConfig {
	return AdapterConfig{
		Interval:             interval,
		VarianceThreshold:    0.01,
		CoverageThreshold:    0.7,
		CorrelationThreshold: 0.8,
		NarrowFactor:         0.5,
		WidenFraction:        0.25,
	}
}

// Adjustment records one change to a dimension's active region, for logs
// and telemetry.
type Adjustment struct {
	Dimension string  `json:"dimension"`
	Action    string  `json:"action"` // "narrow" | "widen" | "restrict"
	Min       float64 `json:"min,omitempty"`
	Max       float64 `json:"max,omitempty"`
	Kept      int     `json:"kept,omitempty"`
}

// SpaceAdapter periodically narrows dimensions whose fitness contribution
// has flattened and widens dimensions that still correlate with fitness
// gains. Adjustments touch active regions only; hard bounds are immutable
// and previously promoted candidates stay valid.
type SpaceAdapter struct {
	space *core.SearchSpace
	cfg   AdapterConfig
}

// NewSpaceAdapter builds an adapter over the engine's search space.
func NewSpaceAdapter(space *core.SearchSpace, cfg AdapterConfig) (*SpaceAdapter, error) {
	if cfg.Interval < 0 {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"adaptation_interval_generations must be >= 0, got %d", cfg.Interval)
	}
	if cfg.NarrowFactor <= 0 || cfg.NarrowFactor >= 1 {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"narrow factor must be in (0,1), got %v", cfg.NarrowFactor)
	}
	return &SpaceAdapter{space: space, cfg: cfg}, nil
}

// ShouldRun reports whether generation gen is an adaptation boundary.
func (a *SpaceAdapter) ShouldRun(gen int) bool {
	return a.cfg.Interval > 0 && gen > 0 && gen%a.cfg.Interval == 0
}

// Adapt inspects the feasible candidates of the recent window and adjusts
// each dimension's active region. Returns the adjustments applied.
func (a *SpaceAdapter) Adapt(window []*core.Candidate) []Adjustment {
	feasible := make([]*core.Candidate, 0, len(window))
	for _, c := range window {
		if c.Feasible() {
			feasible = append(feasible, c)
		}
	}
	if len(feasible) < 3 {
		return nil
	}

	var adjustments []Adjustment
	for _, d := range a.space.Dimensions() {
		if d.Kind == core.KindContinuous {
			if adj, ok := a.adaptContinuous(d, feasible); ok {
				adjustments = append(adjustments, adj)
			}
			continue
		}
		if adj, ok := a.adaptSet(d, feasible); ok {
			adjustments = append(adjustments, adj)
		}
	}
	return adjustments
}

func (a *SpaceAdapter) adaptContinuous(d *core.Dimension, feasible []*core.Candidate) (Adjustment, bool) {
	values := make([]float64, 0, len(feasible))
	fitnesses := make([]float64, 0, len(feasible))
	best := feasible[0]
	for _, c := range feasible {
		v, ok := c.Genome[d.Name]
		if !ok {
			continue
		}
		values = append(values, v.Float)
		fitnesses = append(fitnesses, c.Fitness)
		if c.Fitness > best.Fitness {
			best = c
		}
	}
	if len(values) < 3 {
		return Adjustment{}, false
	}

	corr := utils.Pearson(values, fitnesses)
	if math.Abs(corr) >= a.cfg.CorrelationThreshold {
		d.Widen(a.cfg.WidenFraction)
		return Adjustment{Dimension: d.Name, Action: "widen", Min: d.ActiveMin, Max: d.ActiveMax}, true
	}

	width := d.ActiveMax - d.ActiveMin
	if width <= 0 {
		return Adjustment{}, false
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	coverage := (hi - lo) / width
	variance := utils.StdDev(fitnesses)
	variance *= variance

	if variance > a.cfg.VarianceThreshold || coverage < a.cfg.CoverageThreshold {
		return Adjustment{}, false
	}

	center := best.Genome[d.Name].Float
	halfWidth := width * a.cfg.NarrowFactor / 2
	d.Narrow(center-halfWidth, center+halfWidth)
	return Adjustment{Dimension: d.Name, Action: "narrow", Min: d.ActiveMin, Max: d.ActiveMax}, true
}

// adaptSet narrows discrete/categorical dimensions to the values used by
// the top half of the window when the landscape is flat and the active set
// has been well covered.
func (a *SpaceAdapter) adaptSet(d *core.Dimension, feasible []*core.Candidate) (Adjustment, bool) {
	if len(d.ActiveValues) < 2 {
		return Adjustment{}, false
	}

	fitnesses := make([]float64, 0, len(feasible))
	seen := make(map[string]bool)
	for _, c := range feasible {
		if v, ok := c.Genome[d.Name]; ok {
			fitnesses = append(fitnesses, c.Fitness)
			seen[v.String()] = true
		}
	}
	coverage := float64(len(seen)) / float64(len(d.ActiveValues))
	variance := utils.StdDev(fitnesses)
	variance *= variance
	if variance > a.cfg.VarianceThreshold || coverage < a.cfg.CoverageThreshold {
		return Adjustment{}, false
	}

	top := TopK(feasible, (len(feasible)+1)/2)
	keep := make([]core.Value, 0, len(top))
	for _, c := range top {
		if v, ok := c.Genome[d.Name]; ok {
			keep = append(keep, v)
		}
	}
	before := len(d.ActiveValues)
	d.Restrict(keep)
	if len(d.ActiveValues) == before {
		return Adjustment{}, false
	}
	return Adjustment{Dimension: d.Name, Action: "restrict", Kept: len(d.ActiveValues)}, true
}
