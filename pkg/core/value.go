package core

import (
	"fmt"
	"strconv"
)

// Kind identifies the type of a search-space dimension and of the values
// drawn from it.
type Kind int

const (
	KindContinuous Kind = iota
	KindDiscrete
	KindCategorical
)

// String provides human-readable dimension kinds.
func (k Kind) String() string {
	switch k {
	case KindContinuous:
		return "continuous"
	case KindDiscrete:
		return "discrete"
	case KindCategorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// ParseKind converts a string to a Kind. Returns an error for unknown kinds.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "continuous":
		return KindContinuous, nil
	case "discrete":
		return KindDiscrete, nil
	case "categorical":
		return KindCategorical, nil
	default:
		return 0, fmt.Errorf("unknown dimension kind %q", s)
	}
}

// Value is a typed parameter value. Exactly one of the payload fields is
// meaningful, selected by Kind.
type Value struct {
	Kind  Kind    `json:"kind"`
	Float float64 `json:"float,omitempty"`
	Int   int64   `json:"int,omitempty"`
	Str   string  `json:"str,omitempty"`
}

// FloatValue wraps a continuous parameter value.
func FloatValue(v float64) Value { return Value{Kind: KindContinuous, Float: v} }

// IntValue wraps a discrete parameter value.
func IntValue(v int64) Value { return Value{Kind: KindDiscrete, Int: v} }

// StrValue wraps a categorical parameter value.
func StrValue(v string) Value { return Value{Kind: KindCategorical, Str: v} }

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindContinuous:
		return v.Float == other.Float
	case KindDiscrete:
		return v.Int == other.Int
	case KindCategorical:
		return v.Str == other.Str
	default:
		return false
	}
}

// Raw returns the untyped payload, suitable for handing to an Evaluator.
func (v Value) Raw() any {
	switch v.Kind {
	case KindContinuous:
		return v.Float
	case KindDiscrete:
		return v.Int
	case KindCategorical:
		return v.Str
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindContinuous:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindDiscrete:
		return strconv.FormatInt(v.Int, 10)
	case KindCategorical:
		return v.Str
	default:
		return "<invalid>"
	}
}
