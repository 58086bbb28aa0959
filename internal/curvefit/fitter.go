// Package curvefit fits a parametric premium(utilization) curve to a
// KellyCurve and clips it into the no-arbitrage interval.
package curvefit

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/numeric"
)

var (
	// ErrUnknownFamily is returned for an unsupported curve family.
	ErrUnknownFamily = errors.New("unknown curve family")

	// ErrEmptyCurve is returned when fitting a curve without points.
	ErrEmptyCurve = errors.New("empty kelly curve")
)

const (
	paramMin = 0.0
	paramMax = 100.0

	// minFitPoints is the smallest prefix fitted by least squares. Shorter
	// prefixes yield a flat curve at the first premium.
	minFitPoints = 4
)

// Options configures a Fitter.
type Options struct {
	Family        domain.CurveFamily // default cosh
	Negligible    float64            // premiums below this end the fitted prefix; default 1e-10
	MaxIterations int                // default 5000
	Logger        zerolog.Logger
}

// Fitter fits FitParams to KellyCurves.
type Fitter struct {
	family     domain.CurveFamily
	negligible float64
	maxIter    int
	log        zerolog.Logger
}

// New creates a Fitter.
func New(opts Options) (*Fitter, error) {
	if opts.Family == "" {
		opts.Family = domain.FamilyCosh
	}
	switch opts.Family {
	case domain.FamilyCosh, domain.FamilyExponential, domain.FamilyPolynomial:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, opts.Family)
	}
	if opts.Negligible <= 0 {
		opts.Negligible = 1e-10
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 5000
	}
	return &Fitter{
		family:     opts.Family,
		negligible: opts.Negligible,
		maxIter:    opts.MaxIterations,
		log:        opts.Logger,
	}, nil
}

// Family returns the fitted curve family.
func (f *Fitter) Family() domain.CurveFamily {
	return f.family
}

// Fit runs a bounded least-squares fit over the curve's prefix before the
// premium first becomes negligible. A,B,C stay within [0, 100] and D never
// drops below the first premium.
func (f *Fitter) Fit(curve domain.KellyCurve) (domain.FitParams, error) {
	if len(curve.Points) == 0 {
		return domain.FitParams{}, ErrEmptyCurve
	}
	pts := f.prefix(curve.Points)
	d0 := pts[0].Premium

	if len(pts) < minFitPoints {
		return domain.FitParams{Family: f.family, D: d0}, nil
	}

	project := func(x []float64) domain.FitParams {
		return domain.FitParams{
			Family: f.family,
			A:      clamp(x[0], paramMin, paramMax),
			B:      clamp(x[1], paramMin, paramMax),
			C:      clamp(x[2], paramMin, paramMax),
			D:      math.Max(x[3], d0),
		}
	}
	sse := func(x []float64) float64 {
		p := project(x)
		var sum float64
		for _, pt := range pts {
			r := p.Eval(pt.Utilization) - pt.Premium
			sum += r * r
		}
		// pull the free coordinates back toward the box
		for i := 0; i < 3; i++ {
			if x[i] < paramMin {
				sum += x[i] * x[i]
			} else if x[i] > paramMax {
				sum += (x[i] - paramMax) * (x[i] - paramMax)
			}
		}
		if x[3] < d0 {
			sum += (d0 - x[3]) * (d0 - x[3])
		}
		if math.IsNaN(sum) || math.IsInf(sum, 0) {
			return numeric.Penalty
		}
		return sum
	}

	settings := &optimize.Settings{
		MajorIterations: f.maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Relative:   1e-12,
			Iterations: 200,
		},
	}
	res, err := optimize.Minimize(optimize.Problem{Func: sse}, f.initialGuess(pts), settings, &optimize.NelderMead{})
	if res == nil {
		return domain.FitParams{}, fmt.Errorf("curve fit: %w", err)
	}
	if !numeric.Converged(res, err) {
		f.log.Warn().
			Str("family", string(f.family)).
			Str("status", res.Status.String()).
			Int("evaluations", res.Stats.FuncEvaluations).
			Float64("sse", res.F).
			Msg("curve fit did not converge")
	}
	return project(res.X), nil
}

// prefix returns the points before the first negligible premium after the
// first point.
func (f *Fitter) prefix(pts []domain.KellyCurvePoint) []domain.KellyCurvePoint {
	for i := 1; i < len(pts); i++ {
		if math.Abs(pts[i].Premium) < f.negligible {
			return pts[:i]
		}
	}
	return pts
}

func (f *Fitter) initialGuess(pts []domain.KellyCurvePoint) []float64 {
	first, last := pts[0], pts[len(pts)-1]
	d := first.Premium
	slope := 0.0
	if du := last.Utilization - first.Utilization; du > 0 {
		slope = (last.Premium - first.Premium) / du
	}
	slope = clamp(slope, paramMin, paramMax)

	switch f.family {
	case domain.FamilyExponential:
		return []float64{clamp(slope/(math.E-1), paramMin, paramMax), 1, 1, d}
	case domain.FamilyPolynomial:
		return []float64{slope, 0, 0, d}
	default:
		return []float64{slope, 1, 1, d}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
