package bo

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

//////
// Search-space data model.
//////

// ParameterType identifies the domain of a single parameter.
type ParameterType int

const (
	// ContinuousParameter is a real-valued parameter with inclusive
	// [Min, Max] bounds.
	ContinuousParameter ParameterType = iota

	// IntegerParameter is a whole-valued parameter with inclusive
	// [Min, Max] bounds.
	IntegerParameter

	// CategoricalParameter takes one value out of an enumerated set.
	CategoricalParameter
)

// String returns a human-readable name for the parameter type.
func (t ParameterType) String() string {
	switch t {
	case ContinuousParameter:
		return "continuous"
	case IntegerParameter:
		return "integer"
	case CategoricalParameter:
		return "categorical"
	default:
		return fmt.Sprintf("ParameterType(%d)", int(t))
	}
}

// ParameterSpec declares the feasible domain of one named parameter.
//
// Fields:
// - Name: unique within a SearchSpace
// - Type: continuous, integer, or categorical
// - Min, Max: inclusive bounds for numeric types (Min < Max)
// - Categories: enumerated values for categorical type (non-empty)
//
// Usage example:
//
//	x1 := bo.Continuous("x1", -5, 10)
//	workers := bo.Integer("workers", 1, 32)
//	codec := bo.Categorical("codec", "gzip", "zstd", "none")
type ParameterSpec struct {
	// Name uniquely identifies the parameter within its search space.
	Name string

	// Type selects which of the remaining fields apply.
	Type ParameterType

	// Min is the minimum allowed value (inclusive) for numeric types.
	Min float64

	// Max is the maximum allowed value (inclusive) for numeric types.
	Max float64

	// Categories enumerates the allowed values for categorical type.
	Categories []string
}

// Continuous builds a real-valued ParameterSpec with inclusive bounds.
func Continuous(name string, min, max float64) ParameterSpec {
	return ParameterSpec{Name: name, Type: ContinuousParameter, Min: min, Max: max}
}

// Integer builds a whole-valued ParameterSpec with inclusive bounds. It
// accepts any integer type for convenience; bounds are stored as float64,
// which is exact for the ranges a search space realistically declares.
func Integer[T constraints.Integer](name string, min, max T) ParameterSpec {
	return ParameterSpec{
		Name: name,
		Type: IntegerParameter,
		Min:  float64(min),
		Max:  float64(max),
	}
}

// Categorical builds a ParameterSpec over an enumerated value set.
func Categorical(name string, categories ...string) ParameterSpec {
	return ParameterSpec{
		Name:       name,
		Type:       CategoricalParameter,
		Categories: categories,
	}
}

// validate checks the spec's own invariants (not a candidate value).
func (p ParameterSpec) validate() error {
	if p.Name == "" {
		return fmt.Errorf("parameter name must not be empty")
	}

	switch p.Type {
	case ContinuousParameter, IntegerParameter:
		if math.IsNaN(p.Min) || math.IsNaN(p.Max) ||
			math.IsInf(p.Min, 0) || math.IsInf(p.Max, 0) {
			return fmt.Errorf("parameter %q: bounds must be finite", p.Name)
		}

		if p.Min >= p.Max {
			return fmt.Errorf(
				"parameter %q: lower bound %v must be less than upper bound %v",
				p.Name, p.Min, p.Max,
			)
		}
	case CategoricalParameter:
		if len(p.Categories) == 0 {
			return fmt.Errorf("parameter %q: category set must not be empty", p.Name)
		}

		seen := make(map[string]bool, len(p.Categories))
		for _, c := range p.Categories {
			if seen[c] {
				return fmt.Errorf("parameter %q: duplicate category %q", p.Name, c)
			}
			seen[c] = true
		}
	default:
		return fmt.Errorf("parameter %q: unknown type %v", p.Name, p.Type)
	}

	return nil
}

//////
// Values and assignments.
//////

// Value is a concrete value for one parameter. Numeric parameters carry
// Number; categorical parameters carry Category. Which field is meaningful
// is determined by the ParameterSpec the value is validated against.
type Value struct {
	// Number holds the value for continuous and integer parameters.
	Number float64

	// Category holds the value for categorical parameters.
	Category string
}

// Number wraps a numeric parameter value.
func Number(v float64) Value { return Value{Number: v} }

// Category wraps a categorical parameter value.
func Category(c string) Value { return Value{Category: c} }

// Assignment maps parameter names to concrete values. An assignment is
// valid with respect to a SearchSpace when it names exactly the space's
// parameters and every value satisfies its ParameterSpec.
type Assignment map[string]Value

// Clone returns an independent copy of the assignment. The driver hands
// clones to models and generators so recorded observations stay immutable.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}

	return out
}

//////
// Observations.
//////

// Measurement is one observed metric value with its sampling uncertainty.
type Measurement struct {
	// Mean is the observed metric value.
	Mean float64

	// StandardError is the standard error of Mean. Zero means noiseless.
	StandardError float64
}

// Observation is a single recorded evaluation result for one metric.
// Observations are immutable once recorded.
type Observation struct {
	// Assignment is the evaluated parameter setting.
	Assignment Assignment

	// Metric names the tracked outcome this observation belongs to.
	Metric string

	// Mean is the observed metric value.
	Mean float64

	// StandardError is the standard error of Mean (>= 0).
	StandardError float64
}
