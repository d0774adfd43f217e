package core

// Genome is the named-parameter mapping that defines a candidate's
// configuration. Iteration order is never taken from the map itself;
// components walk genomes in search-space dimension order so that runs with
// a fixed seed stay reproducible.
type Genome map[string]Value

// Clone returns an independent copy of the genome.
func (g Genome) Clone() Genome {
	cp := make(Genome, len(g))
	for k, v := range g {
		cp[k] = v
	}
	return cp
}

// Equal reports whether two genomes assign equal values to the same
// parameter names.
func (g Genome) Equal(other Genome) bool {
	if len(g) != len(other) {
		return false
	}
	for k, v := range g {
		ov, ok := other[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Raw converts the genome to the untyped map an Evaluator receives.
func (g Genome) Raw() map[string]any {
	params := make(map[string]any, len(g))
	for k, v := range g {
		params[k] = v.Raw()
	}
	return params
}
