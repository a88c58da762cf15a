// Package stats implements the weighted aggregation helpers used across the
// pipeline: demand-weighted means, weighted percentiles, coverage shares and
// min-max scaling. NaN inputs mark missing data and are skipped pairwise.
package stats

import "math"

// Sum adds the non-NaN entries (0 when none are valid).
func Sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		if !math.IsNaN(x) {
			total += x
		}
	}
	return total
}

// Min returns the smallest non-NaN entry, or NaN when there is none.
func Min(xs []float64) float64 {
	out := math.NaN()
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if math.IsNaN(out) || x < out {
			out = x
		}
	}
	return out
}

// Max returns the largest non-NaN entry, or NaN when there is none.
func Max(xs []float64) float64 {
	out := math.NaN()
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if math.IsNaN(out) || x > out {
			out = x
		}
	}
	return out
}

// Clamp bounds v to [lo, hi]. NaN passes through.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MinMaxScale rescales values to [0,1] using the non-NaN range; eps pads the
// denominator so a constant series maps to 0 instead of dividing by zero.
// NaN entries stay NaN.
func MinMaxScale(values []float64, eps float64) []float64 {
	lo, hi := Min(values), Max(values)
	out := make([]float64, len(values))
	if math.IsNaN(lo) || math.IsNaN(hi) {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	denom := hi - lo + eps
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (v - lo) / denom
	}
	return out
}
