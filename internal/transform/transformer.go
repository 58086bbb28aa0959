// Package transform remaps a discretized density from one coordinate domain
// to another, such as from log-returns to prices, by matching the probability
// area of each bin.
package transform

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/numeric"
)

var (
	// ErrDomainLengthMismatch is returned when source points, source
	// densities and target points do not all have the same length.
	ErrDomainLengthMismatch = errors.New("domain length mismatch")

	// ErrInvalidDomain is returned when a domain is not strictly increasing
	// or has fewer than two points.
	ErrInvalidDomain = errors.New("domain must be strictly increasing with at least two points")
)

// Options configures a Transformer.
type Options struct {
	SmoothingWindow int     // moving-average width, odd; default 5
	Tolerance       float64 // default 1e-6
	MaxIterations   int     // default 500
	Logger          zerolog.Logger
}

// Transformer maps densities between domains bin by bin.
type Transformer struct {
	window  int
	tol     float64
	maxIter int
	log     zerolog.Logger
}

// New creates a Transformer.
func New(opts Options) *Transformer {
	if opts.SmoothingWindow <= 0 {
		opts.SmoothingWindow = 5
	}
	if opts.SmoothingWindow%2 == 0 {
		opts.SmoothingWindow++
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-6
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 500
	}
	return &Transformer{
		window:  opts.SmoothingWindow,
		tol:     opts.Tolerance,
		maxIter: opts.MaxIterations,
		log:     opts.Logger,
	}
}

// ToPrice maps a log-return PDF onto prices referencePrice·exp(x).
func (t *Transformer) ToPrice(pdf domain.PDF, referencePrice float64) (domain.PDF, error) {
	target := make([]float64, len(pdf.X))
	for i, x := range pdf.X {
		target[i] = referencePrice * math.Exp(x)
	}
	return t.Transform(pdf, target)
}

// ToLogReturn maps a price PDF onto log-returns ln(p/referencePrice).
func (t *Transformer) ToLogReturn(pdf domain.PDF, referencePrice float64) (domain.PDF, error) {
	target := make([]float64, len(pdf.X))
	for i, p := range pdf.X {
		target[i] = math.Log(p / referencePrice)
	}
	return t.Transform(pdf, target)
}

// Transform returns densities on target such that the trapezoidal area of
// every target bin equals the area of the corresponding source bin.
//
// A rough guess is built bin by bin from left to right, smoothed, and then
// refined by least squares on the bin areas with non-negative densities.
// If the refinement stops on a limit the best point is used and a warning
// is logged.
func (t *Transformer) Transform(source domain.PDF, target []float64) (domain.PDF, error) {
	n := len(source.X)
	if len(source.Density) != n || len(target) != n {
		return domain.PDF{}, fmt.Errorf("%w: source %d points, %d densities, target %d points",
			ErrDomainLengthMismatch, n, len(source.Density), len(target))
	}
	if n < 2 || !numeric.IsStrictlyIncreasing(source.X) || !numeric.IsStrictlyIncreasing(target) {
		return domain.PDF{}, ErrInvalidDomain
	}

	start := time.Now()
	areas := numeric.BinAreas(source.X, source.Density)
	guess := Smooth(RoughGuess(areas, target), t.window)
	density, res, err := t.refine(areas, target, guess)
	if res == nil {
		return domain.PDF{}, fmt.Errorf("refine densities: %w", err)
	}
	if !numeric.Converged(res, err) {
		ev := t.log.Warn().
			Str("status", res.Status.String()).
			Int("iterations", res.Stats.MajorIterations).
			Float64("objective", res.F)
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("domain transform refinement did not converge, using best point")
	}

	t.log.Debug().
		Int("points", n).
		Int("evaluations", res.Stats.FuncEvaluations).
		Dur("elapsed", time.Since(start)).
		Msg("domain transform complete")

	x := make([]float64, n)
	copy(x, target)
	return domain.PDF{X: x, Density: density}, nil
}

// RoughGuess solves, left to right, for the target densities that give each
// target bin the source area. The first density is seeded from the first
// bin's area; negative solutions are clamped to zero.
func RoughGuess(areas, target []float64) []float64 {
	out := make([]float64, len(target))
	if len(target) < 2 {
		return out
	}
	seed := areas[0] / (target[1] - target[0])
	if !(seed > 0) {
		seed = math.SmallestNonzeroFloat64
	}
	out[0] = seed
	for i := 0; i < len(areas); i++ {
		w := target[i+1] - target[i]
		next := 2*areas[i]/w - out[i]
		if next < 0 {
			next = 0
		}
		out[i+1] = next
	}
	return out
}

// Smooth applies a centered moving average of the given odd width.
// The window shrinks at the edges.
func Smooth(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	half := window / 2
	for i := range values {
		lo := max(0, i-half)
		hi := min(len(values)-1, i+half)
		out[i] = floats.Sum(values[lo:hi+1]) / float64(hi-lo+1)
	}
	return out
}

// refine minimizes the squared relative bin-area error over densities g = h²,
// which keeps every density non-negative.
func (t *Transformer) refine(areas, target, guess []float64) ([]float64, *optimize.Result, error) {
	n := len(target)
	widths := make([]float64, n-1)
	for i := range widths {
		widths[i] = target[i+1] - target[i]
	}
	norm := floats.Sum(areas) / float64(len(areas))
	if !(norm > 0) {
		norm = 1
	}

	peak := floats.Max(guess)
	floor := 1e-12 * peak
	init := make([]float64, n)
	for i, g := range guess {
		init[i] = math.Sqrt(math.Max(g, floor))
	}

	resid := make([]float64, n-1)
	residuals := func(h []float64) {
		for i := range resid {
			b := 0.5 * (h[i]*h[i] + h[i+1]*h[i+1]) * widths[i]
			resid[i] = (b - areas[i]) / norm
		}
	}
	problem := optimize.Problem{
		Func: func(h []float64) float64 {
			residuals(h)
			return floats.Dot(resid, resid)
		},
		Grad: func(grad, h []float64) {
			residuals(h)
			for i := range grad {
				grad[i] = 0
			}
			for i, r := range resid {
				c := r * widths[i] / norm
				grad[i] += c
				grad[i+1] += c
			}
			for i := range grad {
				grad[i] *= 2 * h[i]
			}
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: t.tol,
		MajorIterations:   t.maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   t.tol * t.tol,
			Relative:   t.tol,
			Iterations: 20,
		},
	}
	res, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if res == nil {
		return nil, nil, err
	}
	out := make([]float64, n)
	for i, h := range res.X {
		out[i] = h * h
	}
	return out, res, err
}
