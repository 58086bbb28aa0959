// Package kelly evaluates the Kelly log-growth rate of a bet over a
// discretized outcome distribution.
//
// For outcome probabilities p_i and odds o_i the growth rate at bet fraction b is
//
//	g(b)  = Σ p_i · ln(1 + o_i·b)
//	g'(b) = Σ p_i · o_i / (1 + o_i·b)
//
// Outcomes with zero probability never contribute, so a ruinous outcome
// (1 + o_i·b <= 0) only drives g to -Inf when it carries mass.
package kelly

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"kelly-curve-lab/internal/numeric"
)

var (
	// ErrLengthMismatch is returned when probability and odds slices differ in length.
	ErrLengthMismatch = errors.New("probability and odds length mismatch")

	// ErrEmptyDistribution is returned for a grid with fewer than two points.
	ErrEmptyDistribution = errors.New("empty distribution")
)

// Probabilities converts a density sampled at x into per-point probability
// mass using the trapezoidal rule: p[i] is the area of the bin between
// x[i-1] and x[i]. p[0] is always 0.
//
// The zero mass at index 0 is kept for compatibility with curves generated
// earlier; it drops the leftmost bin's mass, which is numerically fragile on
// coarse grids.
func Probabilities(x, density []float64) ([]float64, error) {
	if len(x) != len(density) {
		return nil, fmt.Errorf("%w: %d points, %d densities", ErrLengthMismatch, len(x), len(density))
	}
	if len(x) < 2 {
		return nil, ErrEmptyDistribution
	}
	p := make([]float64, len(x))
	copy(p[1:], numeric.BinAreas(x, density))
	return p, nil
}

// GrowthAt returns g(bet).
func GrowthAt(p, odds []float64, bet float64) float64 {
	var g float64
	for i, pi := range p {
		if pi == 0 {
			continue
		}
		w := 1 + odds[i]*bet
		if w <= 0 {
			return math.Inf(-1)
		}
		g += pi * math.Log(w)
	}
	return g
}

// DerivativeAt returns g'(bet).
func DerivativeAt(p, odds []float64, bet float64) float64 {
	var d float64
	for i, pi := range p {
		if pi == 0 {
			continue
		}
		w := 1 + odds[i]*bet
		if w <= 0 {
			return math.Inf(-1)
		}
		d += pi * odds[i] / w
	}
	return d
}

// Growth evaluates g at each bet amount.
func Growth(p, odds, bets []float64) ([]float64, error) {
	if len(p) != len(odds) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(p), len(odds))
	}
	out := make([]float64, len(bets))
	for j, b := range bets {
		out[j] = GrowthAt(p, odds, b)
	}
	return out, nil
}

// GrowthDerivative evaluates g' at each bet amount.
func GrowthDerivative(p, odds, bets []float64) ([]float64, error) {
	if len(p) != len(odds) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(p), len(odds))
	}
	out := make([]float64, len(bets))
	for j, b := range bets {
		out[j] = DerivativeAt(p, odds, b)
	}
	return out, nil
}

// OptimalBet returns the bet fraction in [0, 1] maximizing g.
// A bet without positive edge at zero (g'(0) <= 0) returns exactly 0.
func OptimalBet(p, odds []float64) (float64, error) {
	if len(p) != len(odds) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(p), len(odds))
	}
	if len(p) == 0 {
		return 0, ErrEmptyDistribution
	}
	if DerivativeAt(p, odds, 0) <= 0 {
		return 0, nil
	}

	hi := 1.0
	// keep every weighted outcome solvent
	minOdds := math.Inf(1)
	for i, pi := range p {
		if pi > 0 && odds[i] < minOdds {
			minOdds = odds[i]
		}
	}
	if minOdds < 0 {
		hi = math.Min(hi, -1/minOdds*(1-1e-9))
	}

	res, err := numeric.MinimizeBounded(func(b float64) float64 {
		g := GrowthAt(p, odds, b)
		if math.IsInf(g, -1) {
			return numeric.Penalty
		}
		return -g
	}, 0, hi, numeric.MinimizeSettings{XTol: 1e-10})
	if err != nil {
		return 0, err
	}
	return res.X, nil
}

// ExpectedEdge returns Σ p_i · o_i, the slope of g at zero.
func ExpectedEdge(p, odds []float64) float64 {
	return floats.Dot(p, odds)
}
