package bo

//////
// Model factory contract — the extension point.
//
// The driver depends only on the Model capability set below, never on a
// concrete model family; any regression technique (Gaussian process, random
// forest, ensemble) can be substituted by supplying a ModelFactory.
//////

// Model is a fitted predictive model: the minimal capability set the
// model-based generator needs. A Model is created fresh each round from an
// observation snapshot and superseded, never mutated, on refit.
type Model interface {
	// PredictBatch returns the posterior predictive mean and variance for
	// each tracked outcome at each of the given feature vectors. Both
	// returned slices are indexed [outcome][point] and have outer length
	// NumOutputs and inner length len(points).
	PredictBatch(points [][]float64) (means, variances [][]float64, err error)

	// NumOutputs reports the number of tracked outcomes.
	NumOutputs() int
}

// ModelState is an opaque snapshot of fitted model parameters, passed back
// into a ModelFactory to warm-start the next fit. Implementations may
// ignore it; nil means no prior state.
type ModelState any

// StatefulModel is an optional extension: models that can export a
// warm-start snapshot of their fitted parameters implement it. The driver
// checks for it after every successful fit.
type StatefulModel interface {
	Model

	// State returns the warm-start snapshot for the next fit.
	State() ModelState
}

// FitRequest is the read-only training snapshot handed to a ModelFactory.
// The factory must not mutate any of its slices.
//
// Fields:
// - Metrics: tracked outcome names, in first-observed order
// - Xs: per-outcome training features; Xs[o][i] is the feature vector of
//   the i-th observation of outcome o, all of equal length
// - Ys: per-outcome observed means, parallel to Xs
// - Yvars: per-outcome observation variances, parallel to Xs
// - WarmStart: optional fitted-parameters snapshot from a prior model
// - Options: open-ended configuration bag; recognized keys are documented
//   by the concrete factory, unrecognized keys are ignored, never errors
type FitRequest struct {
	Metrics   []string
	Xs        [][][]float64
	Ys        [][]float64
	Yvars     [][]float64
	WarmStart ModelState
	Options   map[string]any
}

// ModelFactory constructs and fits a model from accumulated observations.
// This is the single function a user supplies to plug a custom model into
// the optimization loop.
//
// Constraints:
//   - must support outcome count >= 1
//   - must handle zero or one training observation without failing, by
//     returning a prior-only model
//   - returns *FitDivergedError when its numerical optimization does not
//     converge within the configured iteration budget; the driver then
//     reuses the previous round's model instead of aborting
type ModelFactory func(req FitRequest) (Model, error)
