// Package bo provides a sequential Bayesian-optimization loop with a
// pluggable model factory. It owns the experiment bookkeeping — search
// space, observation set, warm-start and model-guided phases, failure
// budgets — while the predictive model is an extension point any
// regression technique can fill.
//
// # Features
//
// The package includes the following key features:
//
//   - Model factory contract: the driver depends only on the capability
//     set {batch predict, number of outputs}, so Gaussian processes,
//     random forests, or ensembles can be substituted freely
//   - Bundled reference model: an RBF-kernel Gaussian process with
//     leave-one-out kernel-width fitting and warm starting
//   - Multiple acquisition functions: Upper Confidence Bound (UCB),
//     Probability of Improvement (PI), Expected Improvement (EI), and
//     Thompson Sampling
//   - Quasi-random warm start: scrambled Halton sequence for
//     low-discrepancy coverage before a model exists
//   - Typed search spaces: continuous, integer, and categorical
//     parameters with domain validation
//   - Failure budgets: evaluation and fit failures skip a round; only a
//     configured streak of consecutive failures aborts the run
//   - Reproducibility: every random source derives from a single seed
//   - Progress monitoring: per-round updates via an optional channel,
//     structured logging via zerolog
//   - Declarative studies: YAML study descriptors for search space and
//     budgets
//
// # Usage
//
// Minimal run against the bundled Branin benchmark:
//
//	driver, err := bo.NewDriver(
//	    bo.BraninSpace(),
//	    bo.Branin,
//	    bo.GaussianProcessFactory(),
//	    bo.DefaultConfig(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := driver.Run(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("best: %v at %v\n", result.Best.Mean, result.Best.Assignment)
//
// Plugging in a custom model is a single function:
//
//	factory := func(req bo.FitRequest) (bo.Model, error) {
//	    // fit anything satisfying the Model interface on req.Xs/Ys/Yvars
//	    return myModel, nil
//	}
//
// # Error handling
//
// Round-level failures never crash a run. A failed or timed-out evaluation
// (*EvaluationError) skips its round; a model fit that does not converge
// (*FitDivergedError) skips its round and is retried with the previous
// warm-start state; only a configured number of consecutive failed rounds
// escalates to *AbortedRunError, which terminates the run with the partial
// observation set preserved on the Result.
package bo
