package bo

import (
	"fmt"
	"math"
)

//////
// Reference model factory: an RBF-kernel Gaussian process.
//
// This is the bundled implementation of the ModelFactory contract. It keeps
// the classic radial-basis-function kernel and kernel-weighted prediction,
// fits the kernel width per outcome by leave-one-out search under an
// iteration budget, and supports warm-starting the width search from a
// previous fit.
//////

// Recognized option keys for GaussianProcessFactory.
const (
	// OptionMaxIterations bounds the kernel-width search per outcome
	// (int, default 64). Exceeding it yields *FitDivergedError.
	OptionMaxIterations = "max_iterations"

	// OptionConvergenceTolerance is the relative step size below which
	// the width search is considered converged (float64, default 1e-3).
	OptionConvergenceTolerance = "convergence_tolerance"
)

const (
	defaultMaxIterations        = 64
	defaultConvergenceTolerance = 1e-3

	// minVariance keeps predicted variances strictly positive.
	minVariance = 1e-9
)

// gpState is the warm-start snapshot exported by a fitted Gaussian process:
// the fitted kernel width per outcome. Passed back into the factory, it
// seeds the next width search.
type gpState struct {
	Widths []float64
}

// gpOutput is the fitted model for a single tracked outcome.
type gpOutput struct {
	// x holds the training feature vectors, y the observed means, noise
	// the observation variances, all parallel.
	x     [][]float64
	y     []float64
	noise []float64

	// width is the fitted RBF kernel width.
	width float64

	// priorMean and priorVariance describe the prior-only prediction,
	// returned far from any training data (and always when fewer than
	// two observations exist).
	priorMean     float64
	priorVariance float64
}

// gaussianProcess is a fitted multi-output Gaussian process. It satisfies
// the Model capability set and exports a warm-start State.
type gaussianProcess struct {
	outputs []gpOutput
}

// GaussianProcessFactory returns the bundled reference ModelFactory.
//
// Recognized options (unrecognized keys are ignored):
// - OptionMaxIterations: iteration budget for the kernel-width search
// - OptionConvergenceTolerance: relative convergence threshold
//
// Degenerate inputs are handled per the factory contract: outcomes with
// zero or one observation get a prior-only model and never fail. A width
// search that exhausts its iteration budget fails with *FitDivergedError;
// the driver then reuses the previous round's model.
func GaussianProcessFactory() ModelFactory {
	return func(req FitRequest) (Model, error) {
		if len(req.Xs) == 0 {
			// No outcomes observed yet: a single prior-only output, so
			// the generator still has something to query.
			return &gaussianProcess{outputs: []gpOutput{priorOnlyOutput(nil, nil, nil, 1.0)}}, nil
		}

		if len(req.Ys) != len(req.Xs) || len(req.Yvars) != len(req.Xs) {
			return nil, fmt.Errorf("fit request: Xs, Ys, Yvars must have equal outer length")
		}

		maxIter := intOption(req.Options, OptionMaxIterations, defaultMaxIterations)
		tol := floatOption(req.Options, OptionConvergenceTolerance, defaultConvergenceTolerance)

		warmWidths := warmStartWidths(req.WarmStart, len(req.Xs))

		gp := &gaussianProcess{outputs: make([]gpOutput, 0, len(req.Xs))}

		for o := range req.Xs {
			xs, ys, yvars := req.Xs[o], req.Ys[o], req.Yvars[o]

			if len(ys) != len(xs) || len(yvars) != len(xs) {
				return nil, fmt.Errorf("fit request: outcome %d has mismatched lengths", o)
			}

			startWidth := warmWidths[o]

			if len(xs) < 2 {
				gp.outputs = append(gp.outputs, priorOnlyOutput(xs, ys, yvars, startWidth))
				continue
			}

			width, err := fitWidth(xs, ys, startWidth, maxIter, tol)
			if err != nil {
				return nil, err
			}

			gp.outputs = append(gp.outputs, gpOutput{
				x:             xs,
				y:             ys,
				noise:         yvars,
				width:         width,
				priorMean:     meanOf(ys),
				priorVariance: sampleVariance(ys),
			})
		}

		return gp, nil
	}
}

// priorOnlyOutput builds the degenerate-case model for an outcome with zero
// or one observation: predictions fall back to the prior, with full prior
// variance everywhere except at the lone training point.
func priorOnlyOutput(xs [][]float64, ys, yvars []float64, width float64) gpOutput {
	return gpOutput{
		x:             xs,
		y:             ys,
		noise:         yvars,
		width:         width,
		priorMean:     meanOf(ys),
		priorVariance: 1.0,
	}
}

// NumOutputs reports the number of tracked outcomes.
func (gp *gaussianProcess) NumOutputs() int { return len(gp.outputs) }

// State exports the fitted kernel widths for warm-starting the next fit.
func (gp *gaussianProcess) State() ModelState {
	widths := make([]float64, len(gp.outputs))
	for i, out := range gp.outputs {
		widths[i] = out.width
	}

	return &gpState{Widths: widths}
}

// PredictBatch returns the posterior predictive mean and variance of every
// outcome at every point.
//
// Prediction combines the training observations with RBF-kernel weights
// k(x, xi) = exp(-|x-xi|^2 / (2*width^2)): the mean is the kernel-weighted
// average of the observed values, the variance shrinks from the prior
// variance toward zero as kernel mass concentrates near the point. Far from
// all training data both fall back to the prior.
func (gp *gaussianProcess) PredictBatch(points [][]float64) (means, variances [][]float64, err error) {
	means = make([][]float64, len(gp.outputs))
	variances = make([][]float64, len(gp.outputs))

	for o, out := range gp.outputs {
		means[o] = make([]float64, len(points))
		variances[o] = make([]float64, len(points))

		for i, p := range points {
			m, v := out.predict(p)
			means[o][i] = m
			variances[o][i] = v
		}
	}

	return means, variances, nil
}

// predict computes the posterior predictive mean and variance at one point.
func (out *gpOutput) predict(p []float64) (mean, variance float64) {
	if len(out.x) == 0 {
		return out.priorMean, out.priorVariance
	}

	k := make([]float64, len(out.x))

	var ksum float64
	for i, xi := range out.x {
		if len(xi) != len(p) {
			// Feature-length mismatch: treat as maximally uncertain
			// rather than panic inside a prediction loop.
			return out.priorMean, out.priorVariance
		}

		k[i] = math.Exp(-squaredDistance(p, xi) / (2 * out.width * out.width))
		ksum += k[i]
	}

	if ksum < 1e-12 {
		return out.priorMean, out.priorVariance
	}

	var wy, explained float64
	for i := range out.x {
		wy += k[i] * out.y[i]
		explained += k[i] * k[i]
	}

	mean = wy / ksum

	// explained/ksum lies in (0, 1]: 1 exactly at a training point,
	// approaching 0 far away. The variance interpolates between zero and
	// the prior accordingly.
	scale := out.priorVariance
	if scale <= 0 {
		scale = 1.0
	}

	variance = scale * (1 - explained/ksum)
	if variance < minVariance {
		variance = minVariance
	}

	return mean, variance
}

//////
// Width fitting.
//////

// fitWidth searches for the kernel width minimizing leave-one-out squared
// prediction error, by a multiplicative step search: try scaling the width
// up and down, keep whichever improves, shrink the step when neither does.
// Converges when the relative step falls below tol; exceeding maxIter
// before that fails with *FitDivergedError.
func fitWidth(xs [][]float64, ys []float64, start float64, maxIter int, tol float64) (float64, error) {
	width := start
	if width <= 0 {
		width = 1.0
	}

	best := looError(xs, ys, width)
	factor := 2.0

	for iter := 0; iter < maxIter; iter++ {
		if factor-1 < tol {
			return width, nil
		}

		up, down := width*factor, width/factor
		errUp := looError(xs, ys, up)
		errDown := looError(xs, ys, down)

		switch {
		case errUp < best && errUp <= errDown:
			width, best = up, errUp
		case errDown < best:
			width, best = down, errDown
		default:
			factor = math.Sqrt(factor)
		}
	}

	return 0, &FitDivergedError{Iterations: maxIter}
}

// looError computes the mean leave-one-out squared prediction error of the
// kernel-weighted mean under the given width.
func looError(xs [][]float64, ys []float64, width float64) float64 {
	var total float64

	for i := range xs {
		var wy, wsum float64

		for j := range xs {
			if j == i {
				continue
			}

			k := math.Exp(-squaredDistance(xs[i], xs[j]) / (2 * width * width))
			wy += k * ys[j]
			wsum += k
		}

		pred := meanOf(ys)
		if wsum > 1e-12 {
			pred = wy / wsum
		}

		diff := pred - ys[i]
		total += diff * diff
	}

	return total / float64(len(xs))
}

//////
// Option and warm-start plumbing.
//////

// warmStartWidths extracts per-outcome starting widths from an opaque
// warm-start snapshot, padding with the default when the snapshot is
// missing, foreign, or shorter than the outcome count.
func warmStartWidths(state ModelState, outcomes int) []float64 {
	widths := make([]float64, outcomes)
	for i := range widths {
		widths[i] = 1.0
	}

	prev, ok := state.(*gpState)
	if !ok || prev == nil {
		return widths
	}

	for i := 0; i < outcomes && i < len(prev.Widths); i++ {
		if prev.Widths[i] > 0 {
			widths[i] = prev.Widths[i]
		}
	}

	return widths
}

// intOption reads an integer option, tolerating int and float64 values.
// Unrecognized or malformed entries fall back to the default.
func intOption(options map[string]any, key string, fallback int) int {
	if v, ok := options[key]; ok {
		switch n := v.(type) {
		case int:
			if n > 0 {
				return n
			}
		case float64:
			if n > 0 {
				return int(n)
			}
		}
	}

	return fallback
}

// floatOption reads a float option. Unrecognized or malformed entries fall
// back to the default.
func floatOption(options map[string]any, key string, fallback float64) float64 {
	if v, ok := options[key]; ok {
		switch n := v.(type) {
		case float64:
			if n > 0 {
				return n
			}
		case int:
			if n > 0 {
				return float64(n)
			}
		}
	}

	return fallback
}

// sampleVariance returns the sample variance of ys, or 1.0 when it is not
// defined (fewer than two values) or degenerate (all values equal), so the
// predictive variance keeps a usable scale.
func sampleVariance(ys []float64) float64 {
	if len(ys) < 2 {
		return 1.0
	}

	m := meanOf(ys)

	var sum float64
	for _, y := range ys {
		d := y - m
		sum += d * d
	}

	v := sum / float64(len(ys)-1)
	if v <= 0 {
		return 1.0
	}

	return v
}
