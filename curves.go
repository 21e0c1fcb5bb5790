package cyclelife

import (
	"math"
)

// Point is one sample of a 2-D curve.
type Point struct {
	X float64
	Y float64
}

// Curve is an ordered point sequence.
type Curve []Point

// NewCurve pairs x and y, dropping non-finite pairs.
func NewCurve(x, y []float64) Curve {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	out := make(Curve, 0, n)
	for i := 0; i < n; i++ {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			continue
		}
		out = append(out, Point{X: x[i], Y: y[i]})
	}
	return out
}

// NormalizedTimeCurve maps t onto [0, 1] from its first sample so curves of
// different durations can be compared point for point.
func NormalizedTimeCurve(t, y []float64) Curve {
	c := NewCurve(t, y)
	if len(c) == 0 {
		return c
	}
	start := c[0].X
	span := c[len(c)-1].X - start
	for i := range c {
		if span > 0 {
			c[i].X = (c[i].X - start) / span
		} else {
			c[i].X = 0
		}
	}
	return c
}

// Downsample keeps at most n points, evenly spaced by index and always including
// both ends.
func Downsample(c Curve, n int) Curve {
	if n <= 0 || len(c) <= n {
		return c
	}
	if n == 1 {
		return Curve{c[0]}
	}
	out := make(Curve, n)
	step := float64(len(c)-1) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = c[int(math.Round(float64(i)*step))]
	}
	return out
}

// CurveSpread is the mean absolute second divided difference of x with respect to t,
// a local curvature measure for a single curve.
func CurveSpread(t, x []float64) (float64, error) {
	c := NewCurve(t, x)
	if len(c) < 3 {
		return 0, insufficient("curve spread", len(c), 3)
	}
	total := 0.0
	count := 0
	for i := 1; i+1 < len(c); i++ {
		h0 := c[i].X - c[i-1].X
		h1 := c[i+1].X - c[i].X
		if h0 <= 0 || h1 <= 0 {
			continue
		}
		d0 := (c[i].Y - c[i-1].Y) / h0
		d1 := (c[i+1].Y - c[i].Y) / h1
		total += math.Abs((d1 - d0) / ((h0 + h1) / 2))
		count++
	}
	if count == 0 {
		return 0, &InsufficientDataError{Op: "curve spread", Have: len(c), Need: 3, Reason: "time axis is not increasing"}
	}
	return total / float64(count), nil
}

// PairwiseMaxDistance is the largest Euclidean distance between any two points.
func PairwiseMaxDistance(c Curve) (float64, error) {
	if len(c) < 2 {
		return 0, insufficient("pairwise max distance", len(c), 2)
	}
	best := 0.0
	for i := 0; i < len(c); i++ {
		for j := i + 1; j < len(c); j++ {
			if d := distance(c[i], c[j]); d > best {
				best = d
			}
		}
	}
	return best, nil
}

// DirectedHausdorff is max over a of the distance to the nearest point of b.
func DirectedHausdorff(a, b Curve) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, insufficient("hausdorff", min(len(a), len(b)), 1)
	}
	worst := 0.0
	for _, p := range a {
		nearest := math.Inf(1)
		for _, q := range b {
			if d := distance(p, q); d < nearest {
				nearest = d
				if nearest <= worst {
					break
				}
			}
		}
		if nearest > worst {
			worst = nearest
		}
	}
	return worst, nil
}

// Hausdorff is the symmetric Hausdorff distance between two curves.
func Hausdorff(a, b Curve) (float64, error) {
	ab, err := DirectedHausdorff(a, b)
	if err != nil {
		return 0, err
	}
	ba, err := DirectedHausdorff(b, a)
	if err != nil {
		return 0, err
	}
	return math.Max(ab, ba), nil
}

// Frechet is the discrete Fréchet distance between two curves.
func Frechet(a, b Curve) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, insufficient("frechet", min(len(a), len(b)), 1)
	}
	prev := make([]float64, len(b))
	cur := make([]float64, len(b))
	for i := range a {
		for j := range b {
			d := distance(a[i], b[j])
			switch {
			case i == 0 && j == 0:
				cur[j] = d
			case i == 0:
				cur[j] = math.Max(cur[j-1], d)
			case j == 0:
				cur[j] = math.Max(prev[j], d)
			default:
				cur[j] = math.Max(math.Min(math.Min(prev[j], prev[j-1]), cur[j-1]), d)
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)-1], nil
}

func distance(p, q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// interpolate evaluates the piecewise-linear function through (xs, ys) at x. xs must
// be strictly increasing; outside the range the end segments are extended.
func interpolate(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if n == 1 {
		return ys[0]
	}
	i := 1
	switch {
	case x <= xs[0]:
		i = 1
	case x >= xs[n-1]:
		i = n - 1
	default:
		lo, hi := 0, n-1
		for hi-lo > 1 {
			mid := (lo + hi) / 2
			if xs[mid] <= x {
				lo = mid
			} else {
				hi = mid
			}
		}
		i = hi
	}
	x0, x1 := xs[i-1], xs[i]
	y0, y1 := ys[i-1], ys[i]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}
