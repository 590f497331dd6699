package bo

import "fmt"

//////
// Observation bookkeeping.
//////

// ObservationSet is the append-only, ordered record of every completed
// evaluation in a run, grouped by metric name. It is owned exclusively by
// the driver: models and generators only ever see snapshots built from it.
type ObservationSet struct {
	observations []Observation

	// byMetric indexes observation positions per metric name.
	byMetric map[string][]int

	// metricOrder preserves first-observed order of metric names.
	metricOrder []string
}

// NewObservationSet returns an empty observation set.
func NewObservationSet() *ObservationSet {
	return &ObservationSet{byMetric: make(map[string][]int)}
}

// Len returns the total number of recorded observations across all metrics.
func (os *ObservationSet) Len() int { return len(os.observations) }

// Metrics returns the tracked metric names in first-observed order.
func (os *ObservationSet) Metrics() []string {
	out := make([]string, len(os.metricOrder))
	copy(out, os.metricOrder)

	return out
}

// All returns a copy of every observation in append order. Assignments are
// cloned so callers cannot mutate recorded history.
func (os *ObservationSet) All() []Observation {
	out := make([]Observation, len(os.observations))

	for i, obs := range os.observations {
		obs.Assignment = obs.Assignment.Clone()
		out[i] = obs
	}

	return out
}

// ByMetric returns copies of the observations recorded for one metric, in
// append order.
func (os *ObservationSet) ByMetric(metric string) []Observation {
	idx := os.byMetric[metric]
	out := make([]Observation, 0, len(idx))

	for _, i := range idx {
		obs := os.observations[i]
		obs.Assignment = obs.Assignment.Clone()
		out = append(out, obs)
	}

	return out
}

// append records observations. Only the driver calls this; observation sets
// grow monotonically and entries are never updated in place.
func (os *ObservationSet) append(observations ...Observation) {
	for _, obs := range observations {
		obs.Assignment = obs.Assignment.Clone()

		if _, seen := os.byMetric[obs.Metric]; !seen {
			os.metricOrder = append(os.metricOrder, obs.Metric)
		}

		os.byMetric[obs.Metric] = append(os.byMetric[obs.Metric], len(os.observations))
		os.observations = append(os.observations, obs)
	}
}

// best returns the best observation for the given metric: lowest mean when
// minimizing, highest when maximizing. The second return is false when the
// metric has no observations yet.
func (os *ObservationSet) best(metric string, maximize bool) (Observation, bool) {
	idx := os.byMetric[metric]
	if len(idx) == 0 {
		return Observation{}, false
	}

	best := os.observations[idx[0]]

	for _, i := range idx[1:] {
		obs := os.observations[i]

		if (maximize && obs.Mean > best.Mean) || (!maximize && obs.Mean < best.Mean) {
			best = obs
		}
	}

	best.Assignment = best.Assignment.Clone()

	return best, true
}

// fitRequest builds the read-only training snapshot for a model factory:
// per-outcome feature matrices, observed means, and observation variances,
// encoded against the given search space.
func (os *ObservationSet) fitRequest(
	space *SearchSpace,
	warmStart ModelState,
	options map[string]any,
) (FitRequest, error) {
	req := FitRequest{
		Metrics:   os.Metrics(),
		Xs:        make([][][]float64, 0, len(os.metricOrder)),
		Ys:        make([][]float64, 0, len(os.metricOrder)),
		Yvars:     make([][]float64, 0, len(os.metricOrder)),
		WarmStart: warmStart,
		Options:   options,
	}

	for _, metric := range req.Metrics {
		idx := os.byMetric[metric]

		xs := make([][]float64, 0, len(idx))
		ys := make([]float64, 0, len(idx))
		yvars := make([]float64, 0, len(idx))

		for _, i := range idx {
			obs := os.observations[i]

			features, err := space.Encode(obs.Assignment)
			if err != nil {
				return FitRequest{}, fmt.Errorf("encoding observation for metric %q: %w", metric, err)
			}

			xs = append(xs, features)
			ys = append(ys, obs.Mean)
			yvars = append(yvars, obs.StandardError*obs.StandardError)
		}

		req.Xs = append(req.Xs, xs)
		req.Ys = append(req.Ys, ys)
		req.Yvars = append(req.Yvars, yvars)
	}

	return req, nil
}
