package core

import (
	"fmt"
	"math/rand"
)

// Dimension describes one axis of the search space. Hard bounds are fixed at
// construction; active bounds move as the space adapter narrows or widens
// the region being explored, and are always contained in the hard bounds.
type Dimension struct {
	Name string
	Kind Kind

	// Continuous bounds.
	HardMin, HardMax     float64
	ActiveMin, ActiveMax float64

	// Discrete / categorical value sets.
	HardValues   []Value
	ActiveValues []Value
}

// NewContinuousDimension creates a continuous dimension with the active
// range initialized to the full hard range.
func NewContinuousDimension(name string, min, max float64) (*Dimension, error) {
	if min >= max {
		return nil, fmt.Errorf("dimension %s: min %v must be < max %v", name, min, max)
	}
	return &Dimension{
		Name:    name,
		Kind:    KindContinuous,
		HardMin: min, HardMax: max,
		ActiveMin: min, ActiveMax: max,
	}, nil
}

// NewDiscreteDimension creates a discrete dimension over a fixed integer set.
func NewDiscreteDimension(name string, values []int64) (*Dimension, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("dimension %s: discrete value set is empty", name)
	}
	hard := make([]Value, len(values))
	for i, v := range values {
		hard[i] = IntValue(v)
	}
	return &Dimension{
		Name: name, Kind: KindDiscrete,
		HardValues:   hard,
		ActiveValues: append([]Value(nil), hard...),
	}, nil
}

// NewCategoricalDimension creates a categorical dimension over a fixed
// string set.
func NewCategoricalDimension(name string, values []string) (*Dimension, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("dimension %s: categorical value set is empty", name)
	}
	hard := make([]Value, len(values))
	for i, v := range values {
		hard[i] = StrValue(v)
	}
	return &Dimension{
		Name: name, Kind: KindCategorical,
		HardValues:   hard,
		ActiveValues: append([]Value(nil), hard...),
	}, nil
}

// Sample draws a uniform value from the active range or set.
func (d *Dimension) Sample(rng *rand.Rand) Value {
	if d.Kind == KindContinuous {
		return FloatValue(d.ActiveMin + rng.Float64()*(d.ActiveMax-d.ActiveMin))
	}
	return d.ActiveValues[rng.Intn(len(d.ActiveValues))]
}

// SampleDifferent draws a value from the active set distinct from the given
// one when an alternative exists; mutation must have an observable effect.
// Continuous dimensions resample unconditionally.
func (d *Dimension) SampleDifferent(rng *rand.Rand, current Value) Value {
	if d.Kind == KindContinuous {
		return d.Sample(rng)
	}
	alternatives := make([]Value, 0, len(d.ActiveValues))
	for _, v := range d.ActiveValues {
		if !v.Equal(current) {
			alternatives = append(alternatives, v)
		}
	}
	if len(alternatives) == 0 {
		return current
	}
	return alternatives[rng.Intn(len(alternatives))]
}

// Contains reports whether the value lies inside the active range or set.
func (d *Dimension) Contains(v Value) bool {
	if d.Kind == KindContinuous {
		return v.Kind == KindContinuous && v.Float >= d.ActiveMin && v.Float <= d.ActiveMax
	}
	for _, av := range d.ActiveValues {
		if av.Equal(v) {
			return true
		}
	}
	return false
}

// ActiveCardinality measures the active region: the range width for
// continuous dimensions, the set size otherwise.
func (d *Dimension) ActiveCardinality() float64 {
	if d.Kind == KindContinuous {
		return d.ActiveMax - d.ActiveMin
	}
	return float64(len(d.ActiveValues))
}

// Narrow shrinks the active range. The new range is clamped into the
// current active range, so repeated narrowing is monotonically
// non-increasing and can never escape the hard bounds.
func (d *Dimension) Narrow(min, max float64) {
	if d.Kind != KindContinuous {
		return
	}
	if min < d.ActiveMin {
		min = d.ActiveMin
	}
	if max > d.ActiveMax {
		max = d.ActiveMax
	}
	if min >= max {
		return
	}
	d.ActiveMin, d.ActiveMax = min, max
}

// Restrict shrinks the active value set to the intersection with keep.
// No-op when the intersection would be empty.
func (d *Dimension) Restrict(keep []Value) {
	if d.Kind == KindContinuous {
		return
	}
	next := make([]Value, 0, len(keep))
	for _, av := range d.ActiveValues {
		for _, kv := range keep {
			if av.Equal(kv) {
				next = append(next, av)
				break
			}
		}
	}
	if len(next) == 0 {
		return
	}
	d.ActiveValues = next
}

// Widen grows the active range toward the hard bounds by the given fraction
// of the current active width per side. Discrete and categorical dimensions
// restore their full hard value set.
func (d *Dimension) Widen(fraction float64) {
	if fraction <= 0 {
		return
	}
	if d.Kind != KindContinuous {
		d.ActiveValues = append([]Value(nil), d.HardValues...)
		return
	}
	pad := (d.ActiveMax - d.ActiveMin) * fraction
	d.ActiveMin -= pad
	d.ActiveMax += pad
	if d.ActiveMin < d.HardMin {
		d.ActiveMin = d.HardMin
	}
	if d.ActiveMax > d.HardMax {
		d.ActiveMax = d.HardMax
	}
}

// Clone returns an independent copy of the dimension.
func (d *Dimension) Clone() *Dimension {
	cp := *d
	cp.HardValues = append([]Value(nil), d.HardValues...)
	cp.ActiveValues = append([]Value(nil), d.ActiveValues...)
	return &cp
}

// SearchSpace is an ordered set of dimensions. The order fixes genome
// iteration everywhere in the engine.
type SearchSpace struct {
	dims  []*Dimension
	index map[string]int
}

// NewSearchSpace builds a space from the given dimensions. Names must be
// unique.
func NewSearchSpace(dims ...*Dimension) (*SearchSpace, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("search space needs at least one dimension")
	}
	index := make(map[string]int, len(dims))
	for i, d := range dims {
		if _, dup := index[d.Name]; dup {
			return nil, fmt.Errorf("duplicate dimension name %q", d.Name)
		}
		index[d.Name] = i
	}
	return &SearchSpace{dims: dims, index: index}, nil
}

// Dimensions returns the dimensions in definition order.
func (s *SearchSpace) Dimensions() []*Dimension { return s.dims }

// Dimension looks a dimension up by name.
func (s *SearchSpace) Dimension(name string) (*Dimension, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.dims[i], true
}

// Len returns the number of dimensions.
func (s *SearchSpace) Len() int { return len(s.dims) }

// Sample draws a genome uniformly from every dimension's active region.
func (s *SearchSpace) Sample(rng *rand.Rand) Genome {
	g := make(Genome, len(s.dims))
	for _, d := range s.dims {
		g[d.Name] = d.Sample(rng)
	}
	return g
}

// ActiveCardinality is the product of per-dimension active measures,
// reported in telemetry to track how far the space has narrowed.
func (s *SearchSpace) ActiveCardinality() float64 {
	card := 1.0
	for _, d := range s.dims {
		card *= d.ActiveCardinality()
	}
	return card
}

// Clone returns an independent copy of the space, including active bounds.
func (s *SearchSpace) Clone() *SearchSpace {
	dims := make([]*Dimension, len(s.dims))
	for i, d := range s.dims {
		dims[i] = d.Clone()
	}
	cp, _ := NewSearchSpace(dims...)
	return cp
}
