package bo

import "math"

//////
// Helper functions.
//////

// Helper function used by PI and EI to compute the cumulative distribution
// function of the standard normal distribution.
//
// Returns:
// - Probability that a standard normal random variable is less than x.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// Helper function used by EI to compute the probability density function
// of the standard normal distribution.
//
// Returns:
// - Value of the standard normal PDF at x.
func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}

// squaredDistance returns the squared Euclidean distance between two
// equal-length vectors.
func squaredDistance(x1, x2 []float64) float64 {
	var sum float64

	for i := range x1 {
		diff := x1[i] - x2[i]

		sum += diff * diff
	}

	return sum
}

// meanOf returns the arithmetic mean of ys, or 0 for an empty slice.
func meanOf(ys []float64) float64 {
	if len(ys) == 0 {
		return 0
	}

	var sum float64
	for _, y := range ys {
		sum += y
	}

	return sum / float64(len(ys))
}
