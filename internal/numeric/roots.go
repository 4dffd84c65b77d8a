package numeric

import (
	"math"
	"sort"
)

const (
	DefaultIterations = 25
	DefaultSamples    = 400

	// bisection stops once |h(mid)| drops below this
	bisectEpsilon = 1e-10
	// a sample this close to zero is itself a root
	sampleEpsilon = 1e-8
	// sub-intervals whose midpoint value is this close to zero are degenerate
	degenerateEpsilon = 1e-6
)

// Sign tags a sub-interval by the sign of h on it.
type Sign string

const (
	Positive Sign = "positive"
	Negative Sign = "negative"
)

// Interval is a sub-interval of constant sign.
type Interval struct {
	A, B float64
	Sign Sign
}

// Bisect refines a bracketed root of h. It always runs the full iteration
// count unless the midpoint lands within 1e-10 of zero.
func Bisect(h func(float64) float64, left, right float64, iterations int) float64 {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	for i := 0; i < iterations; i++ {
		mid := (left + right) / 2
		yMid := h(mid)
		if math.Abs(yMid) < bisectEpsilon {
			return mid
		}
		if h(left)*yMid < 0 {
			right = mid
		} else {
			left = mid
		}
	}
	return (left + right) / 2
}

// DetectRoots samples h uniformly over [a, b] and returns the roots in
// ascending order. Near-zero samples are recorded directly, sign changes
// between samples are bisected.
func DetectRoots(h func(float64) float64, a, b float64, samples int) []float64 {
	if samples <= 0 {
		samples = DefaultSamples
	}
	var roots []float64
	dx := (b - a) / float64(samples)
	prevX, prevY := a, h(a)
	for i := 1; i <= samples; i++ {
		x := a + float64(i)*dx
		if i == samples {
			x = b
		}
		y := h(x)
		switch {
		case math.Abs(prevY) < sampleEpsilon:
			roots = append(roots, prevX)
		case math.Abs(y) < sampleEpsilon:
			// recorded as a sample root on the next step
		case prevY*y < 0:
			roots = append(roots, Bisect(h, prevX, x, DefaultIterations))
		}
		prevX, prevY = x, y
	}
	if math.Abs(prevY) < sampleEpsilon {
		roots = append(roots, prevX)
	}
	return roots
}

// Partition splits [a, b] at the roots of h into constant-sign intervals.
// Degenerate intervals are dropped; with no roots the whole range is one
// interval.
func Partition(h func(float64) float64, a, b float64, samples int) []Interval {
	points := append([]float64{a}, DetectRoots(h, a, b, samples)...)
	points = append(points, b)
	sort.Float64s(points)

	var parts []Interval
	for i := 0; i+1 < len(points); i++ {
		x0, x1 := points[i], points[i+1]
		mid := h((x0 + x1) / 2)
		if math.IsNaN(mid) || math.Abs(mid) < degenerateEpsilon {
			continue
		}
		s := Positive
		if mid < 0 {
			s = Negative
		}
		parts = append(parts, Interval{A: x0, B: x1, Sign: s})
	}
	return parts
}
