package bo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

//////
// Objective function harness.
//////

// ObjectiveFunc evaluates one parameter assignment and returns the observed
// value of each tracked metric. Evaluations may be arbitrarily slow
// (simulations, external measurements); the driver never assumes sub-second
// latency and never retries a failed evaluation automatically — a returned
// error is fatal to the current round only, not the whole run.
//
// The function must be deterministic apart from explicitly modeled noise;
// use Noisy to add a seeded noise term for reproducibility.
type ObjectiveFunc func(ctx context.Context, a Assignment) (map[string]Measurement, error)

// Noisy wraps an objective with additive Gaussian observation noise drawn
// from the given source, reporting the noise level as the measurement's
// standard error. The random source is explicit so runs stay reproducible.
func Noisy(f ObjectiveFunc, stddev float64, rng *rand.Rand) ObjectiveFunc {
	return func(ctx context.Context, a Assignment) (map[string]Measurement, error) {
		results, err := f(ctx, a)
		if err != nil {
			return nil, err
		}

		noisy := make(map[string]Measurement, len(results))

		for metric, m := range results {
			m.Mean += rng.NormFloat64() * stddev
			m.StandardError = math.Hypot(m.StandardError, stddev)
			noisy[metric] = m
		}

		return noisy, nil
	}
}

// checkMeasurements rejects invalid numeric results so that a misbehaving
// objective surfaces as a domain error instead of silently corrupting the
// model. NaN or infinite means, NaN or negative standard errors, and empty
// result maps are all rejected.
func checkMeasurements(results map[string]Measurement) error {
	if len(results) == 0 {
		return fmt.Errorf("objective returned no metrics")
	}

	for metric, m := range results {
		if math.IsNaN(m.Mean) || math.IsInf(m.Mean, 0) {
			return fmt.Errorf("metric %q: mean %v is not finite", metric, m.Mean)
		}

		if math.IsNaN(m.StandardError) || m.StandardError < 0 {
			return fmt.Errorf("metric %q: standard error %v is invalid", metric, m.StandardError)
		}
	}

	return nil
}
