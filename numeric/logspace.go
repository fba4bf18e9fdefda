// Package numeric collects the small set of log-space probability helpers
// the variational model needs: log-sum-exp, exp-normalize, and the
// probability<->Phred conversion used when calling variants (spec sections
// 4.4, 4.8). None of the example repos in the retrieval pack ship a
// log-space probability library (the corpus's math needs are all integer/
// geometry, e.g. util's edit distance, interval's endpoint search), so this
// is implemented directly against the standard library math package rather
// than reaching for an unrelated dependency.
package numeric

import "math"

// NegInf is the log-evidence assigned to an inference run whose seeds all
// underflow (spec 4.4 "Numeric policy").
var NegInf = math.Inf(-1)

// LogSumExp computes log(sum(exp(xs))) in a numerically stable way, folding
// left-to-right in input order (spec 5: "log-sum-exp ordering is fixed to
// input order to avoid associativity-induced drift"). Returns -Inf for an
// empty input.
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return math.Inf(-1)
	}
	max := xs[0]
	for _, x := range xs[1:] {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return math.Inf(-1)
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}

// LogMix computes log((exp(logA)+exp(logB))/2), the two-term log-mixture
// used by the single-cell prior model (spec 4.3).
func LogMix(logA, logB float64) float64 {
	return LogSumExp([]float64{logA, logB}) - math.Ln2
}

// ExpNormalize exponentiates xs and rescales the result to sum to 1,
// computing the normalizer in log-space for stability. Mutates and returns
// xs. An all -Inf input becomes all-zero (every term underflows).
func ExpNormalize(xs []float64) []float64 {
	logZ := LogSumExp(xs)
	if math.IsInf(logZ, -1) {
		for i := range xs {
			xs[i] = 0
		}
		return xs
	}
	for i, x := range xs {
		xs[i] = math.Exp(x - logZ)
	}
	return xs
}

// ArgMax returns the index of the largest element of xs (first occurrence on
// ties), and panics on an empty slice.
func ArgMax(xs []float64) int {
	if len(xs) == 0 {
		panic("numeric.ArgMax: empty slice")
	}
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}

// ProbabilityFalseToPhred converts a "probability of being false" into a
// Phred quality score -10*log10(p), clamping p to at least the smallest
// positive float64 so well-supported calls don't produce +Inf
// (spec 4.8).
func ProbabilityFalseToPhred(p float64) float64 {
	if p < math.SmallestNonzeroFloat64 {
		p = math.SmallestNonzeroFloat64
	}
	return -10 * math.Log10(p)
}

// ProbabilityTrueToPhred converts a "probability of being true" p into the
// Phred score of its complement, 1-p (used for MAP/size posteriors in spec
// 4.7/4.8's output summary, which report confidence as Phred scores).
func ProbabilityTrueToPhred(p float64) float64 {
	return ProbabilityFalseToPhred(1 - p)
}
