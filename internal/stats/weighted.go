package stats

import (
	"math"
	"sort"
)

// WeightedMean computes Σwx/Σw over the pairs where both value and weight are
// non-NaN. Returns NaN when no valid pair remains or the weight total is not
// positive. Slices must be the same length.
func WeightedMean(values, weights []float64) float64 {
	if len(values) != len(weights) {
		return math.NaN()
	}
	var num, den float64
	for i, v := range values {
		w := weights[i]
		if math.IsNaN(v) || math.IsNaN(w) {
			continue
		}
		num += v * w
		den += w
	}
	if den <= 0 {
		return math.NaN()
	}
	return num / den
}

// WeightedSum computes Σ v·w, skipping pairs where either side is NaN. With
// weights already normalized to sum 1 this is the weighted mean of the
// covered subset.
func WeightedSum(values, weights []float64) float64 {
	if len(values) != len(weights) {
		return math.NaN()
	}
	var total float64
	for i, v := range values {
		w := weights[i]
		if math.IsNaN(v) || math.IsNaN(w) {
			continue
		}
		total += v * w
	}
	return total
}

// WeightedQuantile returns the value at quantile q in [0,1]: the pairs are
// sorted by value, and the first value whose cumulative weight share reaches
// q is returned, falling back to the maximum value when rounding leaves no
// such row. NaN pairs are dropped first; an empty or zero-weight input
// yields NaN. Quantile 0 is the minimum and quantile 1 the maximum.
func WeightedQuantile(values, weights []float64, q float64) float64 {
	return WeightedQuantiles(values, weights, q)[0]
}

// WeightedQuantiles computes several quantiles over one sorted pass.
func WeightedQuantiles(values, weights []float64, qs ...float64) []float64 {
	out := make([]float64, len(qs))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(values) != len(weights) {
		return out
	}

	type pair struct{ v, w float64 }
	pairs := make([]pair, 0, len(values))
	var wsum float64
	for i, v := range values {
		w := weights[i]
		if math.IsNaN(v) || math.IsNaN(w) {
			continue
		}
		pairs = append(pairs, pair{v: v, w: w})
		wsum += w
	}
	if len(pairs) == 0 || wsum <= 0 {
		return out
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

	for qi, q := range qs {
		var cum float64
		found := false
		for _, p := range pairs {
			cum += p.w
			if cum/wsum >= q {
				out[qi] = p.v
				found = true
				break
			}
		}
		if !found {
			out[qi] = pairs[len(pairs)-1].v
		}
	}
	return out
}

// CoverageShare computes the demand-weighted fraction of covered rows:
// Σ(w·1[covered]) / Σw, with 0 when the weight total is not positive.
// NaN weights are skipped.
func CoverageShare(covered []bool, weights []float64) float64 {
	if len(covered) != len(weights) {
		return 0
	}
	var num, den float64
	for i, w := range weights {
		if math.IsNaN(w) {
			continue
		}
		den += w
		if covered[i] {
			num += w
		}
	}
	if den <= 0 {
		return 0
	}
	return num / den
}

// Quantile returns the unweighted quantile q in [0,1] with linear
// interpolation between closest ranks. NaN entries are dropped; an empty
// input yields NaN.
func Quantile(values []float64, q float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	if q <= 0 {
		return clean[0]
	}
	if q >= 1 {
		return clean[len(clean)-1]
	}
	idx := q * float64(len(clean)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper {
		return clean[lower]
	}
	frac := idx - float64(lower)
	return clean[lower]*(1-frac) + clean[upper]*frac
}
