package bo

import (
	"math"
	"math/rand"
)

//////
// Acquisition functions.
//
// An acquisition function scores a candidate point from the model's
// posterior predictive mean and variance, balancing exploration (trying
// uncertain areas) and exploitation (focusing on areas known to be good).
// The convention is minimization: lower values mark more promising points.
//////

// AcquisitionFunc scores a candidate point. The model-based generator
// evaluates it at every candidate and keeps the lowest-scoring ones.
//
// Parameters:
// - mean: posterior predictive mean at the point (lower is better)
// - variance: posterior predictive variance at the point
// - params: shared parameters, see AcquisitionParams
//
// Custom implementations must handle zero variance and must draw any
// randomness from params.Rand so runs stay reproducible.
type AcquisitionFunc func(mean, variance float64, params AcquisitionParams) float64

// AcquisitionParams holds the shared knobs of the built-in acquisition
// functions. The driver refreshes BestSoFar each round; the rest is set
// once in the configuration.
type AcquisitionParams struct {
	// Beta controls the exploration-exploitation trade-off in UCB.
	// Higher values (3.0-5.0) explore more; lower values (0.1-0.5)
	// exploit more. 2.0 is a reasonable default.
	Beta float64

	// Xi is the minimum-improvement margin used by PI and EI.
	// Typical values range from 0.01 to 0.1.
	Xi float64

	// BestSoFar is the best (lowest, in the internal minimization
	// convention) observed mean. The driver keeps it current; initialize
	// to math.MaxFloat64 when calling acquisition functions directly.
	BestSoFar float64

	// Rand is the random source used by ThompsonSampling. It must be
	// explicitly seeded; the driver derives it from Config.Seed.
	Rand *rand.Rand
}

// UCB is the (lower) confidence-bound acquisition function:
// mean - Beta*sqrt(variance). A robust general-purpose default with direct
// control over the exploration-exploitation trade-off.
func UCB(mean, variance float64, params AcquisitionParams) float64 {
	return mean - params.Beta*math.Sqrt(variance)
}

// ProbabilityOfImprovement scores a point by the probability that it
// improves on BestSoFar by at least Xi, under a normal posterior. A
// conservative choice when "probably better" matters more than "how much
// better".
func ProbabilityOfImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(variance)
	if sigma == 0 {
		sigma = math.SmallestNonzeroFloat64
	}

	z := (mean - params.BestSoFar - params.Xi) / sigma

	return normalCDF(z)
}

// ExpectedImprovement scores a point by the expected magnitude of
// improvement over BestSoFar, balancing how likely and how large the
// improvement might be. The most commonly used acquisition function.
func ExpectedImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(variance)
	if sigma == 0 {
		sigma = math.SmallestNonzeroFloat64
	}

	z := (mean - params.BestSoFar - params.Xi) / sigma

	return (mean-params.BestSoFar-params.Xi)*normalCDF(z) + sigma*normalPDF(z)
}

// ThompsonSampling draws a random sample from the posterior at the point.
// No tuning knobs; randomness alone balances exploration and exploitation.
// Requires params.Rand.
func ThompsonSampling(mean, variance float64, params AcquisitionParams) float64 {
	return mean + math.Sqrt(variance)*params.Rand.NormFloat64()
}
