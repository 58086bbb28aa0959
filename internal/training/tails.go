package training

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"kelly-curve-lab/internal/distribution"
)

var _ distribution.TailEstimator = EstimateTailExponents

// EstimateTailExponents estimates the left and right Pareto exponents of
// samples around loc.
//
// Observations beyond the empirical leftProb and (1-rightProb) quantiles of
// the distance from loc form the two tails. Both tails are truncated to the
// length of the shorter one, keeping the most extreme observations. In each
// tail ln(rank) is regressed on ln|distance| and the exponent is the negated
// slope. A tail with a single observation is anchored at its threshold.
func EstimateTailExponents(samples []float64, loc, leftProb, rightProb float64) (left, right float64, err error) {
	if len(samples) == 0 {
		return 0, 0, fmt.Errorf("%w: no samples", ErrInsufficientTailData)
	}

	dist := make([]float64, len(samples))
	for i, s := range samples {
		dist[i] = s - loc
	}
	sorted := make([]float64, len(dist))
	copy(sorted, dist)
	sort.Float64s(sorted)

	leftCut := stat.Quantile(leftProb, stat.Empirical, sorted, nil)
	rightCut := stat.Quantile(1-rightProb, stat.Empirical, sorted, nil)

	var leftTail, rightTail []float64
	for _, d := range dist {
		switch {
		case d < leftCut && d < 0:
			leftTail = append(leftTail, -d)
		case d > rightCut && d > 0:
			rightTail = append(rightTail, d)
		}
	}

	n := min(len(leftTail), len(rightTail))
	if n == 0 {
		return 0, 0, fmt.Errorf("%w: %d left and %d right observations beyond thresholds",
			ErrInsufficientTailData, len(leftTail), len(rightTail))
	}

	left, err = paretoExponent(leftTail, n, math.Abs(math.Min(leftCut, 0)))
	if err != nil {
		return 0, 0, fmt.Errorf("left tail: %w", err)
	}
	right, err = paretoExponent(rightTail, n, math.Max(rightCut, 0))
	if err != nil {
		return 0, 0, fmt.Errorf("right tail: %w", err)
	}
	return left, right, nil
}

// paretoExponent regresses ln(rank) on ln(distance) over the n largest
// distances and returns the negated slope.
func paretoExponent(distances []float64, n int, threshold float64) (float64, error) {
	sort.Sort(sort.Reverse(sort.Float64Slice(distances)))
	distances = distances[:n]

	x := make([]float64, 0, n+1)
	y := make([]float64, 0, n+1)
	for i, d := range distances {
		x = append(x, math.Log(d))
		y = append(y, math.Log(float64(i+1)))
	}
	if n == 1 {
		if !(threshold > 0) || threshold >= distances[0] {
			return 0, fmt.Errorf("%w: single observation at threshold", ErrInsufficientTailData)
		}
		x = append(x, math.Log(threshold))
		y = append(y, math.Log(2))
	}

	_, slope := stat.LinearRegression(x, y, nil, false)
	alpha := -slope
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) || alpha <= 0 {
		return 0, fmt.Errorf("%w: degenerate regression (slope %g)", ErrInsufficientTailData, slope)
	}
	return alpha, nil
}
