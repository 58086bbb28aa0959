package distribution

import (
	"fmt"
	"math"
	"math/rand/v2"

	"kelly-curve-lab/internal/numeric"
)

const maxSpliceDoublings = 20

// TailEstimator estimates the left and right Pareto exponents of samples
// around loc, using the given tail probability thresholds.
type TailEstimator func(samples []float64, loc, leftProb, rightProb float64) (left, right float64, err error)

// TailParams configures the tails of a PiecewiseTailed model.
type TailParams struct {
	LeftProb   float64 // probability threshold of the left tail, in (0, 0.5)
	RightProb  float64 // probability threshold of the right tail, in (0, 0.5)
	AlphaLeft  float64 // left Pareto exponent, > 0
	AlphaRight float64 // right Pareto exponent, > 0
}

// PiecewiseTailed uses a center distribution for the body and generalized
// Pareto tails (shape 1/alpha) beyond the thresholds. Each tail starts at a
// splice point where its density equals the body density and its mass equals
// the body's mass beyond that point, so the density is continuous and the
// total mass is the body's.
type PiecewiseTailed struct {
	center    DistributionModel
	tp        TailParams
	estimator TailEstimator

	left, right gpdTail
}

var _ DistributionModel = (*PiecewiseTailed)(nil)

// gpdTail is a generalized Pareto tail measured as distance beyond splice.
type gpdTail struct {
	splice float64
	mass   float64
	sigma  float64
	xi     float64
}

func (t gpdTail) survival(y float64) float64 {
	return t.mass * math.Pow(1+t.xi*y/t.sigma, -1/t.xi)
}

func (t gpdTail) density(y float64) float64 {
	return t.mass / t.sigma * math.Pow(1+t.xi*y/t.sigma, -1/t.xi-1)
}

// distance returns y such that survival(y) = q, for 0 < q <= mass.
func (t gpdTail) distance(q float64) float64 {
	return t.sigma / t.xi * (math.Pow(q/t.mass, -t.xi) - 1)
}

// NewPiecewiseTailed splices tails onto center. Returns ErrInvalidParameter
// if a threshold is outside (0, 0.5) or an exponent is not positive.
func NewPiecewiseTailed(center DistributionModel, tp TailParams) (*PiecewiseTailed, error) {
	if center == nil {
		return nil, fmt.Errorf("%w: nil center", ErrInvalidParameter)
	}
	if err := validateTails(tp); err != nil {
		return nil, err
	}
	m := &PiecewiseTailed{center: center, tp: tp}
	loc := center.Params().Loc
	var err error
	if m.left, err = splice(center, loc, tp.LeftProb, tp.AlphaLeft, -1); err != nil {
		return nil, err
	}
	if m.right, err = splice(center, loc, tp.RightProb, tp.AlphaRight, 1); err != nil {
		return nil, err
	}
	return m, nil
}

// NewUnfittedPiecewise returns a model that can only be used as the receiver
// of Fit: center is the family to fit and estimator supplies the exponents.
func NewUnfittedPiecewise(center DistributionModel, leftProb, rightProb float64, estimator TailEstimator) (*PiecewiseTailed, error) {
	if err := validateTails(TailParams{LeftProb: leftProb, RightProb: rightProb, AlphaLeft: 1, AlphaRight: 1}); err != nil {
		return nil, err
	}
	return &PiecewiseTailed{
		center:    center,
		tp:        TailParams{LeftProb: leftProb, RightProb: rightProb},
		estimator: estimator,
	}, nil
}

// splice finds where the tail on the given side (-1 left, +1 right) takes
// over. It starts at the threshold quantile and, while the Pareto continuation
// through that point would carry less mass than the body beyond it, moves
// outward and root-solves for the point where the two masses agree. If no
// such point exists the tail starts at the threshold quantile.
func splice(center DistributionModel, loc, prob, alpha float64, side float64) (gpdTail, error) {
	beyond := func(u float64) float64 {
		if side < 0 {
			return center.CDF(u)
		}
		return 1 - center.CDF(u)
	}
	dist := func(u float64) float64 { return side * (u - loc) }
	mismatch := func(u float64) float64 {
		return center.PDF(u)*dist(u)/alpha - beyond(u)
	}

	u0 := center.Quantile(prob)
	if side > 0 {
		u0 = center.Quantile(1 - prob)
	}
	u := u0
	if dist(u0) > 0 && mismatch(u0) < 0 {
		lo, hi := u0, u0
		for k := 0; k < maxSpliceDoublings; k++ {
			hi = loc + side*2*dist(hi)
			if mismatch(hi) >= 0 {
				a, b := lo, hi
				if a > b {
					a, b = b, a
				}
				if root, err := numeric.FindRoot(mismatch, a, b, numeric.RootSettings{}); err == nil {
					u = root
				}
				break
			}
			lo = hi
		}
	}

	mass, f := beyond(u), center.PDF(u)
	if !(mass > 0) || !(f > 0) {
		u = u0
		mass, f = beyond(u), center.PDF(u)
	}
	if !(mass > 0) || !(f > 0) {
		return gpdTail{}, fmt.Errorf("%w: degenerate body at tail threshold %g", ErrInvalidParameter, u0)
	}
	return gpdTail{splice: u, mass: mass, sigma: mass / f, xi: 1 / alpha}, nil
}

// Name implements DistributionModel.
func (m *PiecewiseTailed) Name() string { return "piecewise-" + m.center.Name() }

// Params implements DistributionModel.
func (m *PiecewiseTailed) Params() Params { return m.center.Params() }

// Center returns the body distribution.
func (m *PiecewiseTailed) Center() DistributionModel { return m.center }

// Tails returns the tail configuration.
func (m *PiecewiseTailed) Tails() TailParams { return m.tp }

// Splices returns the points where the left and right tails begin.
func (m *PiecewiseTailed) Splices() (left, right float64) {
	return m.left.splice, m.right.splice
}

// PDF implements DistributionModel.
func (m *PiecewiseTailed) PDF(x float64) float64 {
	switch {
	case x < m.left.splice:
		return m.left.density(m.left.splice - x)
	case x > m.right.splice:
		return m.right.density(x - m.right.splice)
	default:
		return m.center.PDF(x)
	}
}

// LogPDF implements DistributionModel.
func (m *PiecewiseTailed) LogPDF(x float64) float64 {
	if x >= m.left.splice && x <= m.right.splice {
		return m.center.LogPDF(x)
	}
	return math.Log(m.PDF(x))
}

// CDF implements DistributionModel.
func (m *PiecewiseTailed) CDF(x float64) float64 {
	switch {
	case x < m.left.splice:
		return m.left.survival(m.left.splice - x)
	case x > m.right.splice:
		return 1 - m.right.survival(x-m.right.splice)
	default:
		return m.center.CDF(x)
	}
}

// Quantile implements DistributionModel.
func (m *PiecewiseTailed) Quantile(p float64) float64 {
	switch {
	case p <= 0:
		return math.Inf(-1)
	case p >= 1:
		return math.Inf(1)
	case p < m.left.mass:
		return m.left.splice - m.left.distance(p)
	case p > 1-m.right.mass:
		return m.right.splice + m.right.distance(1-p)
	default:
		return m.center.Quantile(p)
	}
}

// Sample implements DistributionModel.
func (m *PiecewiseTailed) Sample(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = m.Quantile(openUniform(rng))
	}
	return out
}

// Fit implements DistributionModel: the center is fitted by maximum
// likelihood and the tail exponents come from the configured estimator.
func (m *PiecewiseTailed) Fit(samples []float64) (FitResult, error) {
	if m.estimator == nil {
		return FitResult{}, ErrNoTailEstimator
	}
	res, err := m.center.Fit(samples)
	if err != nil {
		return FitResult{}, fmt.Errorf("fit center: %w", err)
	}
	loc := res.Model.Params().Loc
	left, right, err := m.estimator(samples, loc, m.tp.LeftProb, m.tp.RightProb)
	if err != nil {
		return FitResult{}, fmt.Errorf("estimate tails: %w", err)
	}
	fitted, err := NewPiecewiseTailed(res.Model, TailParams{
		LeftProb:   m.tp.LeftProb,
		RightProb:  m.tp.RightProb,
		AlphaLeft:  left,
		AlphaRight: right,
	})
	if err != nil {
		return FitResult{}, err
	}
	fitted.estimator = m.estimator
	res.Model = fitted
	return res, nil
}

func validateTails(tp TailParams) error {
	switch {
	case !(tp.LeftProb > 0 && tp.LeftProb < 0.5):
		return fmt.Errorf("%w: left tail threshold must be in (0, 0.5), got %g", ErrInvalidParameter, tp.LeftProb)
	case !(tp.RightProb > 0 && tp.RightProb < 0.5):
		return fmt.Errorf("%w: right tail threshold must be in (0, 0.5), got %g", ErrInvalidParameter, tp.RightProb)
	case !(tp.AlphaLeft > 0) || math.IsInf(tp.AlphaLeft, 0):
		return fmt.Errorf("%w: left tail exponent must be > 0, got %g", ErrInvalidParameter, tp.AlphaLeft)
	case !(tp.AlphaRight > 0) || math.IsInf(tp.AlphaRight, 0):
		return fmt.Errorf("%w: right tail exponent must be > 0, got %g", ErrInvalidParameter, tp.AlphaRight)
	}
	return nil
}
