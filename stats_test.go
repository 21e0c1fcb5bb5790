package cyclelife

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestSkewnessKurtosisUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x := make([]float64, 200000)
	for i := range x {
		x[i] = 3.0 + rng.Float64() - 0.5
	}
	skew, err := Skewness(x)
	if err != nil {
		t.Fatalf("Skewness() error: %v", err)
	}
	if math.Abs(skew) > 0.02 {
		t.Fatalf("expected skewness near 0, got %v", skew)
	}
	kurt, err := Kurtosis(x)
	if err != nil {
		t.Fatalf("Kurtosis() error: %v", err)
	}
	if !approxEqual(kurt, 1.8, 0.02) {
		t.Fatalf("expected non-excess kurtosis near 1.8, got %v", kurt)
	}
}

func TestMomentsNeedPoints(t *testing.T) {
	var short *InsufficientDataError
	if _, err := Kurtosis([]float64{1, 2, 3}); !errors.As(err, &short) {
		t.Fatalf("expected InsufficientDataError for 3-point kurtosis, got %v", err)
	}
	if _, err := Skewness([]float64{2, 2, 2, 2}); !errors.As(err, &short) {
		t.Fatalf("expected InsufficientDataError for constant sample, got %v", err)
	}
	if _, err := Mean(nil); !errors.As(err, &short) {
		t.Fatalf("expected InsufficientDataError for empty mean, got %v", err)
	}
}

func TestVarianceForms(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	pop, err := Variance(x)
	if err != nil {
		t.Fatalf("Variance() error: %v", err)
	}
	sample, err := SampleVariance(x)
	if err != nil {
		t.Fatalf("SampleVariance() error: %v", err)
	}
	if !approxEqual(pop, 1.25, 1e-12) || !approxEqual(sample, 5.0/3.0, 1e-12) {
		t.Fatalf("unexpected variances: population %v sample %v", pop, sample)
	}
}

func TestLogAbs(t *testing.T) {
	if got := LogAbs(-0.01); !approxEqual(got, -2, 1e-12) {
		t.Fatalf("LogAbs(-0.01) = %v", got)
	}
	if got := LogAbs(0); got != LogSentinel {
		t.Fatalf("LogAbs(0) = %v, want %v", got, LogSentinel)
	}
	if got := LogAbs(math.NaN()); got != LogSentinel {
		t.Fatalf("LogAbs(NaN) = %v, want %v", got, LogSentinel)
	}
}

func TestLinearFit(t *testing.T) {
	tt := []float64{0, 1, 2, 3, 4}
	x := []float64{1, 3, 5, 7, 9}
	slope, intercept, err := LinearFit(tt, x)
	if err != nil {
		t.Fatalf("LinearFit() error: %v", err)
	}
	if !approxEqual(slope, 2, 1e-12) || !approxEqual(intercept, 1, 1e-12) {
		t.Fatalf("got slope %v intercept %v", slope, intercept)
	}
	var short *InsufficientDataError
	if _, _, err := LinearFit([]float64{1}, []float64{1}); !errors.As(err, &short) {
		t.Fatalf("expected InsufficientDataError for one point, got %v", err)
	}
	if _, _, err := LinearFit([]float64{2, 2}, []float64{1, 3}); !errors.As(err, &short) {
		t.Fatalf("expected InsufficientDataError for constant t, got %v", err)
	}
}

func TestShannonEntropy(t *testing.T) {
	if EntropyBins(4) != 3 || EntropyBins(30) != 6 || EntropyBins(500) != 10 {
		t.Fatalf("unexpected bin counts %d %d %d", EntropyBins(4), EntropyBins(30), EntropyBins(500))
	}

	// 50 evenly spread values over 10 bins: 5 per bin, entropy log2(10).
	x := make([]float64, 50)
	for i := range x {
		x[i] = float64(i)
	}
	h, err := ShannonEntropy(x)
	if err != nil {
		t.Fatalf("ShannonEntropy() error: %v", err)
	}
	if !approxEqual(h, math.Log2(10), 1e-12) {
		t.Fatalf("expected log2(10), got %v", h)
	}

	h, err = ShannonEntropy([]float64{4, 4, 4, 4})
	if err != nil || h != 0 {
		t.Fatalf("expected zero entropy for a constant sample, got %v (%v)", h, err)
	}
}
