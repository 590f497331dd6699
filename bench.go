package bo

import (
	"context"
	"fmt"
	"math"
)

//////
// Built-in benchmark objectives.
//
// Each benchmark carries its known optimum so callers can assert how close
// a run got. All benchmarks report a single metric named MetricObjective.
//////

// MetricObjective is the metric name reported by the built-in benchmarks
// and the default metric the driver optimizes.
const MetricObjective = "objective"

const (
	// BraninOptimum is the global minimum value of the Branin function,
	// attained at three points including (-pi, 12.275).
	BraninOptimum = 0.39788735772973816

	// EggholderOptimum is the global minimum value of the Eggholder
	// function, attained at (512, 404.2319).
	EggholderOptimum = -959.6406627106155
)

// BraninSpace returns the canonical Branin search space:
// x1 in [-5, 10], x2 in [0, 15].
func BraninSpace() *SearchSpace {
	space, err := NewSearchSpace(
		Continuous("x1", -5, 10),
		Continuous("x2", 0, 15),
	)
	if err != nil {
		panic(err) // static definition, cannot fail
	}

	return space
}

// Branin is the noiseless Branin benchmark objective, a classic
// two-dimensional minimization test function with three global minima.
func Branin(_ context.Context, a Assignment) (map[string]Measurement, error) {
	x1 := a["x1"].Number
	x2 := a["x2"].Number

	b := 5.1 / (4 * math.Pi * math.Pi)
	c := 5 / math.Pi
	r := 6.0
	s := 10.0
	t := 1 / (8 * math.Pi)

	v := math.Pow(x2-b*x1*x1+c*x1-r, 2) + s*(1-t)*math.Cos(x1) + s

	return map[string]Measurement{MetricObjective: {Mean: v}}, nil
}

// EggholderSpace returns the canonical Eggholder search space:
// x and y in [-512, 512].
func EggholderSpace() *SearchSpace {
	space, err := NewSearchSpace(
		Continuous("x", -512, 512),
		Continuous("y", -512, 512),
	)
	if err != nil {
		panic(err)
	}

	return space
}

// Eggholder is the noiseless Eggholder benchmark objective, a highly
// multimodal two-dimensional minimization test function.
func Eggholder(_ context.Context, a Assignment) (map[string]Measurement, error) {
	x := a["x"].Number
	y := a["y"].Number

	v := -(y+47)*math.Sin(math.Sqrt(math.Abs(y+x/2+47))) -
		x*math.Sin(math.Sqrt(math.Abs(x-(y+47))))

	return map[string]Measurement{MetricObjective: {Mean: v}}, nil
}

// LookupBenchmark resolves a built-in benchmark by name, returning its
// objective, search space, and known optimum value.
func LookupBenchmark(name string) (ObjectiveFunc, *SearchSpace, float64, error) {
	switch name {
	case "branin":
		return Branin, BraninSpace(), BraninOptimum, nil
	case "eggholder":
		return Eggholder, EggholderSpace(), EggholderOptimum, nil
	default:
		return nil, nil, 0, fmt.Errorf("unknown benchmark %q (available: branin, eggholder)", name)
	}
}
