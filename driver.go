package bo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

//////
// Optimization driver.
//////

// RunState identifies the driver's position in its run lifecycle.
type RunState int

const (
	// StateWarmStart: the observation set is below the warm-start count;
	// candidates come from the quasi-random generator.
	StateWarmStart RunState = iota

	// StateModelGuided: each round refits the model factory on all
	// accumulated data and asks the model-based generator for candidates.
	StateModelGuided

	// StateDone is terminal: no further evaluations occur.
	StateDone
)

// String returns a human-readable name for the run state.
func (s RunState) String() string {
	switch s {
	case StateWarmStart:
		return "warm_start"
	case StateModelGuided:
		return "model_guided"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// RoundUpdate is a progress event emitted after every round when
// Config.ProgressChan is set. Sends are non-blocking: updates are dropped
// when the channel is full.
type RoundUpdate struct {
	// State is the phase the round ran in.
	State RunState

	// Round is the global 1-based round number.
	Round int

	// Appended is the number of observations the round recorded (zero
	// for skipped rounds).
	Appended int

	// Best is the best observation so far for the optimized metric, nil
	// while none exists.
	Best *Observation

	// Skipped reports whether the round failed and was skipped.
	Skipped bool

	// Err is the round's failure, nil for completed rounds.
	Err error
}

// RoundRecord is the per-round history entry kept on the Result.
type RoundRecord struct {
	// Round is the global 1-based round number.
	Round int

	// State is the phase the round ran in.
	State RunState

	// Appended is the number of observations the round recorded.
	Appended int

	// Err is the round's failure, nil for completed rounds.
	Err error
}

// Result is the structured outcome of a run: the full observation set, the
// best observed assignment, per-round history, and the terminal condition.
// Skipped rounds and the abort error are surfaced here, never swallowed.
type Result struct {
	// RunID uniquely identifies the run.
	RunID string

	// State is the final run state (always StateDone after Run returns).
	State RunState

	// Observations is the complete, append-only record of the run. On an
	// aborted run it holds everything recorded before the abort.
	Observations *ObservationSet

	// Best is the best observed assignment for the optimized metric
	// under the configured direction, nil when nothing was observed.
	Best *Observation

	// Rounds is the per-round history in execution order.
	Rounds []RoundRecord

	// Reason describes why the run terminated.
	Reason string

	// Err is non-nil only when the run aborted (*AbortedRunError) or the
	// context was cancelled.
	Err error
}

// Config controls a driver run.
//
// Zero counts (warm-start count, batch size, candidate pool, failure limit)
// and empty fields are replaced by their DefaultConfig values; negative
// values are rejected by NewDriver. Rounds is the exception: zero means no
// model-guided rounds, the run stops after warm-start.
type Config struct {
	// WarmStartCount is the number of quasi-random observations to
	// collect before switching to model-guided rounds.
	WarmStartCount int

	// Rounds is the model-guided round budget.
	Rounds int

	// BatchSize is the number of candidates evaluated per model-guided
	// round.
	BatchSize int

	// NumCandidates is the size of the random candidate pool the
	// model-based generator scores per round.
	NumCandidates int

	// MaxConsecutiveFailures is the number of consecutive failed rounds
	// (evaluation or fit) after which the run aborts.
	MaxConsecutiveFailures int

	// Maximize flips the optimization direction for Metric. The default
	// is minimization.
	Maximize bool

	// Metric is the objective metric the run optimizes. Objectives may
	// report additional metrics; they are recorded and modeled but do
	// not steer acquisition.
	Metric string

	// Seed derives every random source the run uses, making runs
	// reproducible.
	Seed int64

	// RoundTimeout optionally bounds the wall-clock time of each round's
	// evaluations. On expiry the round fails with *EvaluationError and
	// is skipped. Zero means no deadline.
	RoundTimeout time.Duration

	// AcquisitionFunc scores candidates in model-guided rounds.
	AcquisitionFunc AcquisitionFunc

	// AcqParams are the acquisition function's parameters. BestSoFar is
	// refreshed by the driver each round; Rand is derived from Seed when
	// nil.
	AcqParams AcquisitionParams

	// ModelOptions is passed through to the model factory unmodified.
	ModelOptions map[string]any

	// Logger receives per-round structured events. Defaults to a no-op
	// logger.
	Logger zerolog.Logger

	// ProgressChan receives a RoundUpdate after every round when set.
	ProgressChan chan<- RoundUpdate
}

// DefaultConfig returns a default configuration: 10 warm-start samples, 50
// model-guided rounds of one evaluation each, expected improvement over a
// 256-candidate pool, and an abort after 3 consecutive failed rounds.
func DefaultConfig() Config {
	return Config{
		WarmStartCount:         10,
		Rounds:                 50,
		BatchSize:              1,
		NumCandidates:          256,
		MaxConsecutiveFailures: 3,
		Metric:                 MetricObjective,
		Seed:                   1,
		AcquisitionFunc:        ExpectedImprovement,
		AcqParams: AcquisitionParams{
			Beta:      2.0,
			Xi:        0.01,
			BestSoFar: math.MaxFloat64,
		},
		Logger: zerolog.Nop(),
	}
}

// Driver runs the sequential optimization loop: warm-start sampling, then
// model-guided rounds of fit, generate, evaluate, record. Execution is
// single-threaded and synchronous; the observation set is owned and
// appended to exclusively by the driver.
type Driver struct {
	space     *SearchSpace
	objective ObjectiveFunc
	factory   ModelFactory
	config    Config
}

// NewDriver validates the configuration and builds a driver.
//
// Parameters:
// - space: the immutable search space
// - objective: the function being optimized
// - factory: the model factory refit on all accumulated data each round
// - config: run configuration; zero fields take DefaultConfig values
func NewDriver(space *SearchSpace, objective ObjectiveFunc, factory ModelFactory, config Config) (*Driver, error) {
	if space == nil {
		return nil, fmt.Errorf("search space is required")
	}

	if objective == nil {
		return nil, fmt.Errorf("objective function is required")
	}

	if factory == nil {
		return nil, fmt.Errorf("model factory is required")
	}

	defaults := DefaultConfig()

	if config.WarmStartCount == 0 {
		config.WarmStartCount = defaults.WarmStartCount
	}

	if config.BatchSize == 0 {
		config.BatchSize = defaults.BatchSize
	}

	if config.NumCandidates == 0 {
		config.NumCandidates = defaults.NumCandidates
	}

	if config.MaxConsecutiveFailures == 0 {
		config.MaxConsecutiveFailures = defaults.MaxConsecutiveFailures
	}

	if config.Metric == "" {
		config.Metric = defaults.Metric
	}

	if config.AcquisitionFunc == nil {
		config.AcquisitionFunc = defaults.AcquisitionFunc
	}

	if config.WarmStartCount < 0 || config.Rounds < 0 || config.BatchSize < 1 ||
		config.NumCandidates < 1 || config.MaxConsecutiveFailures < 1 {
		return nil, fmt.Errorf("invalid configuration: counts and budgets must be positive")
	}

	return &Driver{
		space:     space,
		objective: objective,
		factory:   factory,
		config:    config,
	}, nil
}

// Run executes the optimization loop to completion and returns the
// structured result. The returned error is non-nil only for terminal
// failures (aborted run, cancelled context); in both cases the Result still
// carries everything recorded so far.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	cfg := d.config

	result := &Result{
		RunID:        uuid.NewString(),
		State:        StateWarmStart,
		Observations: NewObservationSet(),
	}

	logger := cfg.Logger.With().Str("run_id", result.RunID).Logger()

	logger.Info().
		Int("warm_start", cfg.WarmStartCount).
		Int("rounds", cfg.Rounds).
		Int("batch_size", cfg.BatchSize).
		Str("metric", cfg.Metric).
		Bool("maximize", cfg.Maximize).
		Int64("seed", cfg.Seed).
		Msg("optimization run starting")

	// Every random consumer is derived from the seed.
	candidateRNG := rand.New(rand.NewSource(cfg.Seed))

	acqParams := cfg.AcqParams
	if acqParams.Rand == nil {
		acqParams.Rand = rand.New(rand.NewSource(cfg.Seed + 1))
	}

	warmGen := NewQuasiRandomGenerator(d.space, cfg.Seed)

	var (
		round       int
		consecutive int
		lastErr     error
		warmState   ModelState
	)

	// failRound records a skipped round and reports whether the
	// consecutive-failure budget is exhausted.
	failRound := func(state RunState, err error) bool {
		consecutive++
		lastErr = err

		record := RoundRecord{Round: round, State: state, Err: err}
		result.Rounds = append(result.Rounds, record)
		d.publish(result, record, true, err)

		logger.Warn().
			Int("round", round).
			Stringer("state", state).
			Int("consecutive_failures", consecutive).
			Err(err).
			Msg("round skipped")

		return consecutive >= cfg.MaxConsecutiveFailures
	}

	// completeRound appends the round's observations and resets the
	// failure counter.
	completeRound := func(state RunState, observations []Observation) {
		result.Observations.append(observations...)
		consecutive = 0

		record := RoundRecord{Round: round, State: state, Appended: len(observations)}
		result.Rounds = append(result.Rounds, record)
		d.publish(result, record, false, nil)

		logger.Debug().
			Int("round", round).
			Stringer("state", state).
			Int("appended", len(observations)).
			Int("total_observations", result.Observations.Len()).
			Msg("round completed")
	}

	abort := func() (*Result, error) {
		result.State = StateDone
		result.Reason = "consecutive-failure limit exceeded"
		result.Err = &AbortedRunError{ConsecutiveFailures: consecutive, LastErr: lastErr}
		d.finalize(result)

		logger.Error().Err(result.Err).Msg("run aborted")

		return result, result.Err
	}

	// Phase 1: warm-start sampling.
	//
	// Quasi-random points establish a baseline before any model exists.
	// Failed rounds are retried until the warm-start count is reached or
	// the failure budget runs out.
	for result.Observations.Len() < cfg.WarmStartCount {
		if err := ctx.Err(); err != nil {
			return d.cancelled(result, logger, err)
		}

		round++

		need := cfg.WarmStartCount - result.Observations.Len()

		assignments, err := warmGen.Generate(ctx, need)
		if err == nil {
			var observations []Observation
			observations, err = d.evaluateRound(ctx, assignments, round)

			if err == nil {
				completeRound(StateWarmStart, observations)
				continue
			}
		}

		if failRound(StateWarmStart, err) {
			return abort()
		}
	}

	result.State = StateModelGuided

	// Phase 2: model-guided rounds.
	//
	// Fit on everything observed so far, generate the most promising
	// batch under the acquisition function, evaluate, record. A fit
	// failure skips the round and is retried next round; the stale
	// warm-start state is kept unchanged.
	for i := 0; i < cfg.Rounds; i++ {
		if err := ctx.Err(); err != nil {
			return d.cancelled(result, logger, err)
		}

		round++

		req, err := result.Observations.fitRequest(d.space, warmState, cfg.ModelOptions)
		if err != nil {
			if failRound(StateModelGuided, err) {
				return abort()
			}

			continue
		}

		model, err := d.factory(req)
		if err != nil {
			if failRound(StateModelGuided, fmt.Errorf("model fit: %w", err)) {
				return abort()
			}

			continue
		}

		if stateful, ok := model.(StatefulModel); ok {
			warmState = stateful.State()
		}

		params := acqParams
		params.BestSoFar = math.MaxFloat64

		if best, ok := result.Observations.best(cfg.Metric, cfg.Maximize); ok {
			params.BestSoFar = best.Mean
			if cfg.Maximize {
				params.BestSoFar = -best.Mean
			}
		}

		// Acquisition steers on the optimized metric's outcome; any
		// additional metrics are modeled but do not drive selection.
		outcome := 0
		for i, metric := range req.Metrics {
			if metric == cfg.Metric {
				outcome = i
				break
			}
		}

		generator := NewModelBasedGenerator(
			d.space, model, cfg.AcquisitionFunc, params,
			cfg.NumCandidates, outcome, cfg.Maximize, candidateRNG,
		)

		assignments, err := generator.Generate(ctx, cfg.BatchSize)
		if err == nil {
			var observations []Observation
			observations, err = d.evaluateRound(ctx, assignments, round)

			if err == nil {
				completeRound(StateModelGuided, observations)
				continue
			}
		}

		if failRound(StateModelGuided, err) {
			return abort()
		}
	}

	result.State = StateDone
	result.Reason = "round budget exhausted"
	d.finalize(result)

	logger.Info().
		Int("observations", result.Observations.Len()).
		Int("rounds", round).
		Msg("optimization run finished")

	return result, nil
}

// evaluateRound evaluates a batch of assignments under the optional round
// deadline. The round is all-or-nothing: any evaluation failure (including
// deadline expiry and non-finite results) discards the round's partial
// results and returns *EvaluationError.
func (d *Driver) evaluateRound(ctx context.Context, assignments []Assignment, round int) ([]Observation, error) {
	if d.config.RoundTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, d.config.RoundTimeout)
		defer cancel()
	}

	observations := make([]Observation, 0, len(assignments))

	for _, a := range assignments {
		results, err := d.objective(ctx, a.Clone())
		if err == nil {
			err = ctx.Err()
		}

		if err == nil {
			err = checkMeasurements(results)
		}

		if err != nil {
			return nil, &EvaluationError{Round: round, Err: err}
		}

		// Map iteration order is randomized; sort for a stable record.
		metrics := make([]string, 0, len(results))
		for metric := range results {
			metrics = append(metrics, metric)
		}
		sort.Strings(metrics)

		for _, metric := range metrics {
			m := results[metric]

			observations = append(observations, Observation{
				Assignment:    a,
				Metric:        metric,
				Mean:          m.Mean,
				StandardError: m.StandardError,
			})
		}
	}

	return observations, nil
}

// finalize fills the best-observed assignment on a terminal result.
func (d *Driver) finalize(result *Result) {
	if best, ok := result.Observations.best(d.config.Metric, d.config.Maximize); ok {
		result.Best = &best
	}
}

// cancelled finishes a run cut short by its context.
func (d *Driver) cancelled(result *Result, logger zerolog.Logger, err error) (*Result, error) {
	result.State = StateDone
	result.Reason = "context cancelled"
	result.Err = err
	d.finalize(result)

	logger.Warn().Err(err).Msg("run cancelled")

	return result, err
}

// publish sends a progress update without blocking; updates are dropped
// when the channel is full.
func (d *Driver) publish(result *Result, record RoundRecord, skipped bool, err error) {
	if d.config.ProgressChan == nil {
		return
	}

	update := RoundUpdate{
		State:    record.State,
		Round:    record.Round,
		Appended: record.Appended,
		Skipped:  skipped,
		Err:      err,
	}

	if best, ok := result.Observations.best(d.config.Metric, d.config.Maximize); ok {
		update.Best = &best
	}

	select {
	case d.config.ProgressChan <- update:
	default:
		// Skip update if channel is full.
	}
}
