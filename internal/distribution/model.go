// Package distribution provides the continuous distributions used to model
// daily log-returns: a skewed Student-t, a symmetric Student-t, and a
// piecewise model with generalized Pareto tails around any center.
package distribution

import (
	"fmt"
	"math"
	"math/rand/v2"

	"kelly-curve-lab/internal/domain"
)

// Params are the center parameters shared by the Student family.
type Params struct {
	Loc   float64
	Scale float64
	Skew  float64
	DoF   float64
}

// FitResult is the outcome of fitting a model to samples.
type FitResult struct {
	Model       DistributionModel
	Converged   bool   // false when the optimizer stopped on a limit
	Status      string // optimizer termination status
	Evaluations int
}

// DistributionModel is a parameterized continuous distribution.
type DistributionModel interface {
	// Name identifies the family.
	Name() string

	// Params returns the center parameters.
	Params() Params

	// PDF returns the density at x.
	PDF(x float64) float64

	// LogPDF returns the log density at x.
	LogPDF(x float64) float64

	// CDF returns P(X <= x).
	CDF(x float64) float64

	// Quantile is the inverse of CDF. Quantile(0) = -Inf, Quantile(1) = +Inf.
	Quantile(p float64) float64

	// Sample draws n values by inverse transform.
	Sample(rng *rand.Rand, n int) []float64

	// Fit returns a model of the same family fitted to samples by
	// maximum likelihood. The receiver's parameters seed nothing.
	Fit(samples []float64) (FitResult, error)
}

// NewCenter returns an unfitted model of the given center type, usable as
// the receiver of Fit.
func NewCenter(t domain.CenterType) (DistributionModel, error) {
	switch t {
	case domain.CenterSkewedT, "":
		return NewSkewedT(Params{Loc: 0, Scale: 1, Skew: 1, DoF: 5})
	case domain.CenterStudentT:
		return NewStudentT(Params{Loc: 0, Scale: 1, Skew: 1, DoF: 5})
	default:
		return nil, fmt.Errorf("%w: unknown center type %q", ErrInvalidParameter, t)
	}
}

// FromFit rebuilds the piecewise tailed model described by a fitted record.
func FromFit(fit domain.DistributionFit) (*PiecewiseTailed, error) {
	p := Params{Loc: fit.Loc, Scale: fit.Scale, Skew: fit.Skew, DoF: fit.DoF}
	var center DistributionModel
	var err error
	switch fit.Center {
	case domain.CenterStudentT:
		center, err = NewStudentT(p)
	default:
		center, err = NewSkewedT(p)
	}
	if err != nil {
		return nil, err
	}
	return NewPiecewiseTailed(center, TailParams{
		LeftProb:   fit.LeftThreshold,
		RightProb:  fit.RightThreshold,
		AlphaLeft:  fit.TailLeft,
		AlphaRight: fit.TailRight,
	})
}

func validate(p Params) error {
	switch {
	case !(p.Skew > 0) || math.IsInf(p.Skew, 0):
		return fmt.Errorf("%w: skew must be > 0, got %g", ErrInvalidParameter, p.Skew)
	case !(p.DoF > 2) || math.IsInf(p.DoF, 0):
		return fmt.Errorf("%w: dof must be > 2, got %g", ErrInvalidParameter, p.DoF)
	case !(p.Scale > 0) || math.IsInf(p.Scale, 0):
		return fmt.Errorf("%w: scale must be > 0, got %g", ErrInvalidParameter, p.Scale)
	case math.IsNaN(p.Loc) || math.IsInf(p.Loc, 0):
		return fmt.Errorf("%w: loc must be finite, got %g", ErrInvalidParameter, p.Loc)
	}
	return nil
}

func sampleByQuantile(m DistributionModel, rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = m.Quantile(rng.Float64())
	}
	return out
}
