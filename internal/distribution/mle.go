package distribution

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"kelly-curve-lab/internal/numeric"
)

const (
	minFitSamples = 10
	maxLogDoF     = 6.9 // dof - 2 capped near 1000
)

// fitStudentFamily maximizes the likelihood of a (skewed) Student-t. The
// search runs over standardized loc, log(scale/sd), log(dof-2) and, when
// withSkew, log(skew).
func fitStudentFamily(samples []float64, withSkew bool) (FitResult, error) {
	if len(samples) < minFitSamples {
		return FitResult{}, fmt.Errorf("%w: have %d, need %d", ErrNoSamples, len(samples), minFitSamples)
	}
	for _, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return FitResult{}, fmt.Errorf("%w: non-finite sample", ErrInvalidParameter)
		}
	}

	mean, sd := stat.MeanStdDev(samples, nil)
	if !(sd > 0) {
		return FitResult{}, fmt.Errorf("%w: samples have zero dispersion", ErrInvalidParameter)
	}

	decode := func(theta []float64) Params {
		p := Params{
			Loc:   mean + sd*theta[0],
			Scale: sd * math.Exp(theta[1]),
			DoF:   2 + math.Exp(math.Min(theta[2], maxLogDoF)),
			Skew:  1,
		}
		if withSkew {
			p.Skew = math.Exp(theta[3])
		}
		return p
	}

	build := func(p Params) (DistributionModel, error) {
		if withSkew {
			return NewSkewedT(p)
		}
		return NewStudentT(p)
	}

	n := float64(len(samples))
	nll := func(theta []float64) float64 {
		m, err := build(decode(theta))
		if err != nil {
			return numeric.Penalty
		}
		var sum float64
		for _, x := range samples {
			sum -= m.LogPDF(x)
		}
		v := sum / n
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return numeric.Penalty
		}
		return v
	}

	init := []float64{0, 0, math.Log(3)}
	if withSkew {
		init = append(init, 0)
	}

	settings := &optimize.Settings{
		MajorIterations: 5000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 200,
		},
	}
	res, err := optimize.Minimize(optimize.Problem{Func: nll}, init, settings, &optimize.NelderMead{})
	if res == nil {
		return FitResult{}, fmt.Errorf("likelihood maximization: %w", err)
	}

	model, buildErr := build(decode(res.X))
	if buildErr != nil {
		return FitResult{}, buildErr
	}
	return FitResult{
		Model:       model,
		Converged:   numeric.Converged(res, err),
		Status:      res.Status.String(),
		Evaluations: res.Stats.FuncEvaluations,
	}, nil
}
