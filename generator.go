package bo

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
)

//////
// Candidate generators.
//
// The driver asks a generator for the next batch of parameter assignments:
// a quasi-random generator during warm-start, a model-based one afterwards.
// Generators, not the driver, are responsible for keeping every emitted
// assignment inside the search space bounds.
//////

// Generator produces candidate parameter assignments within a search space.
type Generator interface {
	// Generate returns k feasible assignments. Every returned assignment
	// satisfies the search space's domain constraints.
	Generate(ctx context.Context, k int) ([]Assignment, error)
}

//////
// Quasi-random generator.
//////

// quasiRandomGenerator emits a scrambled Halton sequence mapped onto the
// search space: deterministic given its seed, with better (low-discrepancy)
// coverage of the domain than uniform random sampling. Used for the
// warm-start phase, before a model exists.
type quasiRandomGenerator struct {
	space *SearchSpace

	// bases are the first d primes, one Halton base per parameter.
	bases []int

	// perms holds one seeded digit permutation per dimension, the
	// standard scramble that breaks the correlation between high-prime
	// dimensions.
	perms [][]int

	// next is the index of the next sequence element to emit. The first
	// few elements of a Halton sequence cluster, so emission starts past
	// them.
	next int
}

// NewQuasiRandomGenerator returns a low-discrepancy generator over the
// search space. Two generators built with the same space and seed emit the
// same sequence.
func NewQuasiRandomGenerator(space *SearchSpace, seed int64) Generator {
	rng := rand.New(rand.NewSource(seed))

	bases := firstPrimes(space.Len())
	perms := make([][]int, len(bases))

	for i, base := range bases {
		perm := rng.Perm(base)

		// Digit 0 must stay fixed or the point 0 maps away from the
		// origin corner and coverage degrades.
		for j, v := range perm {
			if v == 0 {
				perm[0], perm[j] = perm[j], perm[0]
				break
			}
		}

		perms[i] = perm
	}

	return &quasiRandomGenerator{
		space: space,
		bases: bases,
		perms: perms,
		next:  len(bases) * 2,
	}
}

// Generate emits the next k points of the sequence as feasible assignments.
func (g *quasiRandomGenerator) Generate(ctx context.Context, k int) ([]Assignment, error) {
	if k <= 0 {
		return nil, fmt.Errorf("candidate count must be positive, got %d", k)
	}

	out := make([]Assignment, 0, k)

	for len(out) < k {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		u := make([]float64, len(g.bases))
		for dim, base := range g.bases {
			u[dim] = radicalInverse(g.next, base, g.perms[dim])
		}

		g.next++

		out = append(out, g.space.fromUnit(u))
	}

	return out, nil
}

// radicalInverse computes the scrambled radical-inverse of n in the given
// base: the digits of n, permuted and mirrored around the radix point.
// The result lies in [0, 1).
func radicalInverse(n, base int, perm []int) float64 {
	var (
		inv  float64
		frac = 1.0 / float64(base)
	)

	for n > 0 {
		inv += float64(perm[n%base]) * frac
		frac /= float64(base)
		n /= base
	}

	return inv
}

// firstPrimes returns the first d prime numbers.
func firstPrimes(d int) []int {
	primes := make([]int, 0, d)

	for n := 2; len(primes) < d; n++ {
		isPrime := true

		for _, p := range primes {
			if p*p > n {
				break
			}
			if n%p == 0 {
				isPrime = false
				break
			}
		}

		if isPrime {
			primes = append(primes, n)
		}
	}

	return primes
}

//////
// Model-based generator.
//////

// modelBasedGenerator selects candidates by scoring a pool of uniformly
// drawn points with an acquisition function under a fitted model and
// keeping the most promising ones. The inner maximization is a random
// candidate search: simple, derivative-free, and bounded by construction.
type modelBasedGenerator struct {
	space         *SearchSpace
	model         Model
	acquisition   AcquisitionFunc
	params        AcquisitionParams
	numCandidates int
	outcome       int
	negate        bool
	rng           *rand.Rand
}

// NewModelBasedGenerator returns a generator that picks the top candidates
// by acquisition value (lower is better) under the given model. outcome
// selects which of the model's tracked outcomes steers acquisition.
// numCandidates controls the size of the random candidate pool scored per
// call; negate flips predicted means, turning a maximization problem into
// the internal minimization convention.
func NewModelBasedGenerator(
	space *SearchSpace,
	model Model,
	acquisition AcquisitionFunc,
	params AcquisitionParams,
	numCandidates int,
	outcome int,
	negate bool,
	rng *rand.Rand,
) Generator {
	return &modelBasedGenerator{
		space:         space,
		model:         model,
		acquisition:   acquisition,
		params:        params,
		numCandidates: numCandidates,
		outcome:       outcome,
		negate:        negate,
		rng:           rng,
	}
}

// Generate draws a uniform candidate pool, scores every candidate with the
// acquisition function at the model's posterior, and returns the k
// lowest-scoring assignments.
func (g *modelBasedGenerator) Generate(ctx context.Context, k int) ([]Assignment, error) {
	if k <= 0 {
		return nil, fmt.Errorf("candidate count must be positive, got %d", k)
	}

	pool := g.numCandidates
	if pool < k {
		pool = k
	}

	candidates := make([]Assignment, pool)
	points := make([][]float64, pool)

	for i := 0; i < pool; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		u := make([]float64, g.space.Len())
		for dim := range u {
			u[dim] = g.rng.Float64()
		}

		a := g.space.fromUnit(u)

		features, err := g.space.Encode(a)
		if err != nil {
			return nil, fmt.Errorf("encoding candidate: %w", err)
		}

		candidates[i] = a
		points[i] = features
	}

	means, variances, err := g.model.PredictBatch(points)
	if err != nil {
		return nil, fmt.Errorf("predicting candidate pool: %w", err)
	}

	if g.outcome >= len(means) || len(means[g.outcome]) != pool {
		return nil, fmt.Errorf("model returned malformed predictions")
	}

	scores := make([]float64, pool)
	for i := 0; i < pool; i++ {
		mean := means[g.outcome][i]
		if g.negate {
			mean = -mean
		}

		scores[i] = g.acquisition(mean, variances[g.outcome][i], g.params)
	}

	order := make([]int, pool)
	for i := range order {
		order[i] = i
	}

	sort.Slice(order, func(i, j int) bool { return scores[order[i]] < scores[order[j]] })

	out := make([]Assignment, 0, k)
	for _, i := range order[:k] {
		out = append(out, candidates[i])
	}

	return out, nil
}
