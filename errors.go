package bo

import "fmt"

//////
// Error taxonomy.
//
// Errors at round granularity (EvaluationError, FitDivergedError) never
// crash a run; only exhausting the consecutive-failure budget escalates to
// AbortedRunError, which is terminal. OutOfDomainError indicates a caller
// bug and is fatal to the call that produced it.
//////

// OutOfDomainError reports a parameter assignment that violates the search
// space, naming the offending parameter.
//
// Usage example:
//
//	if err := space.Validate(assignment); err != nil {
//	    var ood *OutOfDomainError
//	    if errors.As(err, &ood) {
//	        log.Printf("parameter %s out of domain: %v", ood.Parameter, err)
//	    }
//	}
type OutOfDomainError struct {
	// Parameter is the name of the offending parameter. Empty when the
	// assignment as a whole is malformed (e.g. a missing parameter).
	Parameter string

	// Reason describes the violated constraint.
	Reason string
}

func (e *OutOfDomainError) Error() string {
	if e.Parameter == "" {
		return fmt.Sprintf("assignment out of domain: %s", e.Reason)
	}

	return fmt.Sprintf("parameter %q out of domain: %s", e.Parameter, e.Reason)
}

// EvaluationError reports a failed or timed-out objective evaluation. It is
// recoverable at round granularity: the driver skips the round and moves on.
type EvaluationError struct {
	// Round is the driver round during which the evaluation failed, or -1
	// when the evaluation happened outside a driver run.
	Round int

	// Err is the underlying cause.
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("objective evaluation failed (round %d): %v", e.Round, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// FitDivergedError reports that a model factory's numerical optimization did
// not converge within its iteration budget. The driver reuses the previous
// round's model instead of aborting.
type FitDivergedError struct {
	// Iterations is the number of iterations performed before giving up.
	Iterations int

	// Err optionally carries an underlying cause.
	Err error
}

func (e *FitDivergedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model fit diverged after %d iterations: %v", e.Iterations, e.Err)
	}

	return fmt.Sprintf("model fit diverged after %d iterations", e.Iterations)
}

func (e *FitDivergedError) Unwrap() error { return e.Err }

// AbortedRunError reports that the configured consecutive-failure limit was
// exceeded. The run transitions to Done with its partial observation set
// preserved; this error is surfaced on the Result, never swallowed.
type AbortedRunError struct {
	// ConsecutiveFailures is the number of consecutive failed rounds that
	// triggered the abort.
	ConsecutiveFailures int

	// LastErr is the failure from the final round before aborting.
	LastErr error
}

func (e *AbortedRunError) Error() string {
	return fmt.Sprintf(
		"run aborted after %d consecutive failed rounds: %v",
		e.ConsecutiveFailures, e.LastErr,
	)
}

func (e *AbortedRunError) Unwrap() error { return e.LastErr }
