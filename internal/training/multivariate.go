package training

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"kelly-curve-lab/internal/domain"
)

// MultivariateOptions configures FitMultivariateT.
type MultivariateOptions struct {
	DoF       float64 // degrees of freedom, default 5
	Tolerance float64 // stop when the objective changes by less, default 1e-8
	MaxIter   int     // default 500
}

// MultivariateFit is a fitted multivariate Student-t location and scatter.
type MultivariateFit struct {
	Mean          []float64
	Scatter       *mat.SymDense
	LogLikelihood float64 // up to an additive constant
	Iterations    int
	Converged     bool
}

// FitMultivariateT estimates the location and scatter matrix of a
// multivariate Student-t by EM. Rows of samples are observations.
// Each iteration computes Mahalanobis distances under the current scatter,
// weights observations by (dof+dim)/(dof+distance) and re-estimates the
// mean and scatter as weighted sums.
func FitMultivariateT(samples *mat.Dense, opts MultivariateOptions) (*MultivariateFit, error) {
	if opts.DoF <= 0 {
		opts.DoF = 5
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-8
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = 500
	}

	n, d := samples.Dims()
	if n <= d {
		return nil, fmt.Errorf("need more observations (%d) than dimensions (%d)", n, d)
	}

	mean := make([]float64, d)
	for j := 0; j < d; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, samples), nil)
	}
	scatter := mat.NewSymDense(d, nil)
	stat.CovarianceMatrix(scatter, samples, nil)

	nu, dim := opts.DoF, float64(d)
	weights := make([]float64, n)
	diff := mat.NewVecDense(d, nil)
	solved := mat.NewVecDense(d, nil)
	var chol mat.Cholesky

	fit := &MultivariateFit{}
	prev := math.Inf(-1)
	for iter := 1; iter <= opts.MaxIter; iter++ {
		if ok := chol.Factorize(scatter); !ok {
			return nil, ErrSingularCovariance
		}
		logDet := chol.LogDet()

		var objective, weightSum float64
		for i := 0; i < n; i++ {
			row := samples.RawRowView(i)
			for j := 0; j < d; j++ {
				diff.SetVec(j, row[j]-mean[j])
			}
			if err := chol.SolveVecTo(solved, diff); err != nil {
				var cond mat.Condition
				if !errors.As(err, &cond) {
					return nil, fmt.Errorf("mahalanobis distance: %w", err)
				}
			}
			delta := mat.Dot(diff, solved)
			weights[i] = (nu + dim) / (nu + delta)
			weightSum += weights[i]
			objective += -0.5*logDet - 0.5*(nu+dim)*math.Log1p(delta/nu)
		}

		nextMean := make([]float64, d)
		for i := 0; i < n; i++ {
			row := samples.RawRowView(i)
			for j := 0; j < d; j++ {
				nextMean[j] += weights[i] * row[j] / weightSum
			}
		}

		next := mat.NewSymDense(d, nil)
		for i := 0; i < n; i++ {
			row := samples.RawRowView(i)
			for j := 0; j < d; j++ {
				diff.SetVec(j, row[j]-nextMean[j])
			}
			next.SymRankOne(next, weights[i]/float64(n), diff)
		}

		mean, scatter = nextMean, next
		fit.Iterations = iter
		fit.LogLikelihood = objective
		if math.Abs(objective-prev) < opts.Tolerance*math.Max(1, math.Abs(objective)) {
			fit.Converged = true
			break
		}
		prev = objective
	}

	fit.Mean = mean
	fit.Scatter = scatter
	return fit, nil
}

// AlignedReturns builds the observation matrix for FitMultivariateT: one
// column of log returns per asset, one row per step between consecutive
// timestamps at which every asset has a price.
func AlignedReturns(assets []string, points map[string][]*domain.PricePoint) (*mat.Dense, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: no assets", ErrInsufficientPrices)
	}

	closes := make([]map[int64]float64, len(assets))
	for j, a := range assets {
		closes[j] = make(map[int64]float64, len(points[a]))
		for _, p := range points[a] {
			if !(p.Close > 0) || math.IsInf(p.Close, 0) {
				return nil, fmt.Errorf("%w: %s at %d: %g", ErrInvalidPrice, a, p.TimestampMs, p.Close)
			}
			closes[j][p.TimestampMs] = p.Close
		}
	}

	var common []int64
	for ts := range closes[0] {
		shared := true
		for j := 1; j < len(closes); j++ {
			if _, ok := closes[j][ts]; !ok {
				shared = false
				break
			}
		}
		if shared {
			common = append(common, ts)
		}
	}
	slices.Sort(common)
	if len(common) < 2 {
		return nil, fmt.Errorf("%w: %d shared timestamps", ErrInsufficientPrices, len(common))
	}

	out := mat.NewDense(len(common)-1, len(assets), nil)
	for i := 1; i < len(common); i++ {
		for j := range assets {
			out.Set(i-1, j, math.Log(closes[j][common[i]]/closes[j][common[i-1]]))
		}
	}
	return out, nil
}
