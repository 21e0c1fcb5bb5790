package cyclelife

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LogSentinel is returned by LogAbs for zero or non-finite inputs.
const LogSentinel = -10.0

// Mean of x.
func Mean(x []float64) (float64, error) {
	if len(x) == 0 {
		return 0, insufficient("mean", 0, 1)
	}
	return stat.Mean(x, nil), nil
}

// Variance is the population variance (divide by n).
func Variance(x []float64) (float64, error) {
	if len(x) == 0 {
		return 0, insufficient("variance", 0, 1)
	}
	return stat.PopVariance(x, nil), nil
}

// SampleVariance is the unbiased variance (divide by n-1).
func SampleVariance(x []float64) (float64, error) {
	if len(x) < 2 {
		return 0, insufficient("sample variance", len(x), 2)
	}
	return stat.Variance(x, nil), nil
}

// Skewness is the third standardized moment E[(x-mu)^3] / sigma^3.
func Skewness(x []float64) (float64, error) {
	if len(x) < 3 {
		return 0, insufficient("skewness", len(x), 3)
	}
	variance := stat.PopVariance(x, nil)
	if !(variance > 0) {
		return 0, &InsufficientDataError{Op: "skewness", Have: len(x), Need: 3, Reason: "zero variance"}
	}
	return stat.Moment(3, x, nil) / math.Pow(variance, 1.5), nil
}

// Kurtosis is the non-excess fourth standardized moment E[(x-mu)^4] / sigma^4.
func Kurtosis(x []float64) (float64, error) {
	if len(x) < 4 {
		return 0, insufficient("kurtosis", len(x), 4)
	}
	variance := stat.PopVariance(x, nil)
	if !(variance > 0) {
		return 0, &InsufficientDataError{Op: "kurtosis", Have: len(x), Need: 4, Reason: "zero variance"}
	}
	return stat.Moment(4, x, nil) / (variance * variance), nil
}

// LogAbs is log10|v|, or LogSentinel when v is zero or not finite.
func LogAbs(v float64) float64 {
	if v == 0 || !isFinite(v) {
		return LogSentinel
	}
	return math.Log10(math.Abs(v))
}

// LinearFit is the least-squares first-degree fit x = slope*t + intercept.
func LinearFit(t, x []float64) (slope, intercept float64, err error) {
	if len(t) != len(x) {
		return 0, 0, undefinedRange("linear fit", "length mismatch %d vs %d", len(t), len(x))
	}
	if len(t) < 2 {
		return 0, 0, insufficient("linear fit", len(t), 2)
	}
	if floats.Max(t) == floats.Min(t) {
		return 0, 0, &InsufficientDataError{Op: "linear fit", Have: len(t), Need: 2, Reason: "independent variable is constant"}
	}
	alpha, beta := stat.LinearRegression(t, x, nil, false)
	return beta, alpha, nil
}

// EntropyBins is the histogram bin count used by ShannonEntropy.
func EntropyBins(n int) int {
	bins := n / 5
	if bins < 3 {
		bins = 3
	}
	if bins > 10 {
		bins = 10
	}
	return bins
}

// ShannonEntropy histograms x into EntropyBins(len(x)) equal-width bins over
// [min, max] and returns -sum p*log2(p) over the non-empty bins. A constant sample
// has zero entropy.
func ShannonEntropy(x []float64) (float64, error) {
	if len(x) == 0 {
		return 0, insufficient("entropy", 0, 1)
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if !isFinite(lo) || !isFinite(hi) {
		return 0, undefinedRange("entropy", "non-finite sample")
	}
	if lo == hi {
		return 0, nil
	}
	bins := EntropyBins(len(x))
	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	// The last bin is closed on the right.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	total := float64(len(sorted))
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := c / total
		h -= p * math.Log2(p)
	}
	return h, nil
}
