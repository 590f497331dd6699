package bo

import (
	"fmt"
	"math"
)

//////
// Search space.
//////

// SearchSpace is an ordered, immutable collection of ParameterSpec keyed by
// name. It validates candidate assignments, exposes bounds to generators,
// and encodes assignments into feature vectors for model factories.
//
// Usage example:
//
//	space, err := bo.NewSearchSpace(
//	    bo.Continuous("x1", -5, 10),
//	    bo.Continuous("x2", 0, 15),
//	)
//
// A SearchSpace is created once at setup and never mutated afterwards; it
// is safe to share across generators, models, and the driver.
type SearchSpace struct {
	specs []ParameterSpec
	index map[string]int
}

// NewSearchSpace builds a SearchSpace from the given specs, enforcing name
// uniqueness and per-spec bound invariants.
func NewSearchSpace(specs ...ParameterSpec) (*SearchSpace, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("search space must declare at least one parameter")
	}

	s := &SearchSpace{
		specs: make([]ParameterSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}

	for _, spec := range specs {
		if err := spec.validate(); err != nil {
			return nil, fmt.Errorf("invalid search space: %w", err)
		}

		if _, dup := s.index[spec.Name]; dup {
			return nil, fmt.Errorf("invalid search space: duplicate parameter %q", spec.Name)
		}

		// Copy the category slice so later caller mutations cannot leak in.
		if spec.Type == CategoricalParameter {
			cats := make([]string, len(spec.Categories))
			copy(cats, spec.Categories)
			spec.Categories = cats
		}

		s.index[spec.Name] = len(s.specs)
		s.specs = append(s.specs, spec)
	}

	return s, nil
}

// Len returns the number of declared parameters.
func (s *SearchSpace) Len() int { return len(s.specs) }

// Specs returns a copy of the declared parameter specs in declaration order.
func (s *SearchSpace) Specs() []ParameterSpec {
	out := make([]ParameterSpec, len(s.specs))
	copy(out, s.specs)

	return out
}

// Spec looks up a parameter spec by name.
func (s *SearchSpace) Spec(name string) (ParameterSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return ParameterSpec{}, false
	}

	return s.specs[i], true
}

// Validate checks that the assignment names exactly this space's parameters
// and that every value lies within its declared domain. It has no side
// effects and is idempotent: validating a valid assignment any number of
// times yields the same result.
//
// Returns:
// - nil when the assignment is feasible
// - *OutOfDomainError naming the offending parameter otherwise
func (s *SearchSpace) Validate(a Assignment) error {
	if len(a) != len(s.specs) {
		return &OutOfDomainError{
			Reason: fmt.Sprintf("assignment has %d parameters, search space declares %d", len(a), len(s.specs)),
		}
	}

	for _, spec := range s.specs {
		v, ok := a[spec.Name]
		if !ok {
			return &OutOfDomainError{
				Parameter: spec.Name,
				Reason:    "missing from assignment",
			}
		}

		if err := checkValue(spec, v); err != nil {
			return err
		}
	}

	return nil
}

// checkValue validates a single value against its spec.
func checkValue(spec ParameterSpec, v Value) error {
	switch spec.Type {
	case ContinuousParameter, IntegerParameter:
		if v.Category != "" {
			return &OutOfDomainError{
				Parameter: spec.Name,
				Reason:    fmt.Sprintf("categorical value %q given for %s parameter", v.Category, spec.Type),
			}
		}

		if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
			return &OutOfDomainError{
				Parameter: spec.Name,
				Reason:    fmt.Sprintf("value %v is not finite", v.Number),
			}
		}

		if v.Number < spec.Min || v.Number > spec.Max {
			return &OutOfDomainError{
				Parameter: spec.Name,
				Reason:    fmt.Sprintf("value %v outside bounds [%v, %v]", v.Number, spec.Min, spec.Max),
			}
		}

		if spec.Type == IntegerParameter && v.Number != math.Trunc(v.Number) {
			return &OutOfDomainError{
				Parameter: spec.Name,
				Reason:    fmt.Sprintf("value %v is not a whole number", v.Number),
			}
		}
	case CategoricalParameter:
		if !categoryIndexOK(spec, v.Category) {
			return &OutOfDomainError{
				Parameter: spec.Name,
				Reason:    fmt.Sprintf("category %q not in %v", v.Category, spec.Categories),
			}
		}
	}

	return nil
}

func categoryIndexOK(spec ParameterSpec, c string) bool {
	for _, cat := range spec.Categories {
		if cat == c {
			return true
		}
	}

	return false
}

// Encode maps a valid assignment to a feature vector in declaration order.
// Numeric parameters contribute their value; categorical parameters
// contribute their category index. Model factories that prefer a different
// encoding can re-encode from the raw assignments instead.
func (s *SearchSpace) Encode(a Assignment) ([]float64, error) {
	if err := s.Validate(a); err != nil {
		return nil, err
	}

	features := make([]float64, len(s.specs))

	for i, spec := range s.specs {
		v := a[spec.Name]

		if spec.Type == CategoricalParameter {
			for j, cat := range spec.Categories {
				if cat == v.Category {
					features[i] = float64(j)
					break
				}
			}

			continue
		}

		features[i] = v.Number
	}

	return features, nil
}

// fromUnit maps a point in the unit hypercube (one coordinate per declared
// parameter, each in [0, 1)) to a feasible assignment. Integer values are
// rounded to the nearest whole number inside the bounds; categorical
// coordinates index into the category set.
func (s *SearchSpace) fromUnit(u []float64) Assignment {
	a := make(Assignment, len(s.specs))

	for i, spec := range s.specs {
		c := u[i]

		switch spec.Type {
		case ContinuousParameter:
			a[spec.Name] = Number(spec.Min + c*(spec.Max-spec.Min))
		case IntegerParameter:
			v := math.Round(spec.Min + c*(spec.Max-spec.Min))
			if v < spec.Min {
				v = spec.Min
			}
			if v > spec.Max {
				v = spec.Max
			}
			a[spec.Name] = Number(v)
		case CategoricalParameter:
			j := int(c * float64(len(spec.Categories)))
			if j >= len(spec.Categories) {
				j = len(spec.Categories) - 1
			}
			a[spec.Name] = Category(spec.Categories[j])
		}
	}

	return a
}
