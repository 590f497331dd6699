package bo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaussianProcessHandlesDegenerateTrainingSets(t *testing.T) {
	factory := GaussianProcessFactory()

	// No outcomes at all: a prior-only model, never an error.
	model, err := factory(FitRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, model.NumOutputs())

	means, variances, err := model.PredictBatch([][]float64{{0, 0}, {100, 100}})
	require.NoError(t, err)
	assert.Len(t, means[0], 2)
	assert.Len(t, variances[0], 2)

	// A single observation: still no error.
	model, err = factory(FitRequest{
		Metrics: []string{MetricObjective},
		Xs:      [][][]float64{{{1, 2}}},
		Ys:      [][]float64{{5}},
		Yvars:   [][]float64{{0}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, model.NumOutputs())
}

// With one training observation, predicted variance at the training point
// must not exceed predicted variance far away.
func TestSingleObservationVarianceSanity(t *testing.T) {
	model, err := GaussianProcessFactory()(FitRequest{
		Metrics: []string{MetricObjective},
		Xs:      [][][]float64{{{1, 2}}},
		Ys:      [][]float64{{5}},
		Yvars:   [][]float64{{0}},
	})
	require.NoError(t, err)

	_, variances, err := model.PredictBatch([][]float64{
		{1, 2},       // the training point
		{1000, 1000}, // far away
	})
	require.NoError(t, err)

	atTraining := variances[0][0]
	farAway := variances[0][1]

	assert.LessOrEqual(t, atTraining, farAway)
	assert.Greater(t, farAway, 0.5) // far away the prior dominates
}

func TestGaussianProcessInterpolates(t *testing.T) {
	model, err := GaussianProcessFactory()(FitRequest{
		Metrics: []string{MetricObjective},
		Xs:      [][][]float64{{{0}, {1}, {2}, {3}, {4}}},
		Ys:      [][]float64{{0, 1, 4, 9, 16}},
		Yvars:   [][]float64{{0, 0, 0, 0, 0}},
	})
	require.NoError(t, err)

	means, _, err := model.PredictBatch([][]float64{{0}, {4}, {2}})
	require.NoError(t, err)

	// The kernel-weighted mean smooths, so only the shape is asserted:
	// predictions preserve the ordering of the underlying function and
	// land near the observed value in the well-covered interior.
	assert.Less(t, means[0][0], means[0][2])
	assert.Less(t, means[0][2], means[0][1])
	assert.InDelta(t, 4, means[0][2], 3)
}

func TestGaussianProcessMultiOutput(t *testing.T) {
	model, err := GaussianProcessFactory()(FitRequest{
		Metrics: []string{"latency", "throughput"},
		Xs: [][][]float64{
			{{0}, {1}, {2}},
			{{0}, {1}},
		},
		Ys:    [][]float64{{1, 2, 3}, {10, 20}},
		Yvars: [][]float64{{0, 0, 0}, {0, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, model.NumOutputs())

	means, variances, err := model.PredictBatch([][]float64{{0.5}})
	require.NoError(t, err)
	assert.Len(t, means, 2)
	assert.Len(t, variances, 2)
}

func TestGaussianProcessFitDiverges(t *testing.T) {
	// An iteration budget of 1 cannot reach convergence.
	_, err := GaussianProcessFactory()(FitRequest{
		Metrics: []string{MetricObjective},
		Xs:      [][][]float64{{{0}, {1}, {2}}},
		Ys:      [][]float64{{0, 1, 4}},
		Yvars:   [][]float64{{0, 0, 0}},
		Options: map[string]any{OptionMaxIterations: 1},
	})
	require.Error(t, err)

	var diverged *FitDivergedError
	assert.True(t, errors.As(err, &diverged))
	assert.Equal(t, 1, diverged.Iterations)
}

func TestGaussianProcessIgnoresUnrecognizedOptions(t *testing.T) {
	_, err := GaussianProcessFactory()(FitRequest{
		Metrics: []string{MetricObjective},
		Xs:      [][][]float64{{{0}, {1}}},
		Ys:      [][]float64{{0, 1}},
		Yvars:   [][]float64{{0, 0}},
		Options: map[string]any{"definitely_not_a_real_option": "zstd"},
	})
	assert.NoError(t, err)
}

func TestGaussianProcessWarmStart(t *testing.T) {
	factory := GaussianProcessFactory()

	req := FitRequest{
		Metrics: []string{MetricObjective},
		Xs:      [][][]float64{{{0}, {1}, {2}, {3}}},
		Ys:      [][]float64{{0, 1, 4, 9}},
		Yvars:   [][]float64{{0, 0, 0, 0}},
	}

	model, err := factory(req)
	require.NoError(t, err)

	stateful, ok := model.(StatefulModel)
	require.True(t, ok)

	state := stateful.State()
	require.NotNil(t, state)

	// A foreign snapshot is ignored, a genuine one is accepted.
	req.WarmStart = "not a gp state"
	_, err = factory(req)
	assert.NoError(t, err)

	req.WarmStart = state
	_, err = factory(req)
	assert.NoError(t, err)
}
