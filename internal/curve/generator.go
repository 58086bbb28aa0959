// Package curve extracts the zero-edge boundary premium across utilizations.
//
// For each utilization u the generator searches premium ∈ [0, 1] for the
// point where the Kelly derivative g'(u; premium) vanishes. Utilizations are
// independent and run on a bounded worker pool.
package curve

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/kelly"
	"kelly-curve-lab/internal/numeric"
	"kelly-curve-lab/internal/payoff"
)

// ErrInvalidUtilization is returned for utilizations outside [0, 1].
var ErrInvalidUtilization = errors.New("utilization must be within [0, 1]")

// DefaultMaxUtilization is the last point of the default grid. g' is
// unbounded at u = 1 whenever the worst outcome has mass.
const DefaultMaxUtilization = 0.99

// ProgressFunc receives the number of finished utilizations and the total.
// Calls are serialized and done counts up by one per call.
type ProgressFunc func(done, total int)

// Options configures a Generator.
type Options struct {
	Utilizations   []float64 // default: 100 points over [0, DefaultMaxUtilization]
	Tolerance      float64   // premium tolerance, default 1e-9
	MaxEvaluations int       // per utilization, default 500
	Workers        int       // default GOMAXPROCS
	Logger         zerolog.Logger
}

// Generator builds KellyCurves.
type Generator struct {
	us      []float64
	tol     float64
	maxEval int
	workers int
	log     zerolog.Logger
}

// New creates a Generator.
func New(opts Options) (*Generator, error) {
	us := opts.Utilizations
	if len(us) == 0 {
		us = numeric.Linspace(0, DefaultMaxUtilization, 100)
	}
	for _, u := range us {
		if !(u >= 0 && u <= 1) {
			return nil, fmt.Errorf("%w: %g", ErrInvalidUtilization, u)
		}
	}
	us = slices.Clone(us)
	slices.Sort(us)

	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-9
	}
	if opts.MaxEvaluations <= 0 {
		opts.MaxEvaluations = 500
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Generator{
		us:      us,
		tol:     opts.Tolerance,
		maxEval: opts.MaxEvaluations,
		workers: opts.Workers,
		log:     opts.Logger,
	}, nil
}

// Utilizations returns a copy of the utilization grid.
func (g *Generator) Utilizations() []float64 {
	return slices.Clone(g.us)
}

// Generate returns the boundary premium at each utilization.
// probs are per-point probabilities aligned with payoff (see kelly.Probabilities).
// progress may be nil.
func (g *Generator) Generate(ctx context.Context, probs, pay []float64, progress ProgressFunc) (domain.KellyCurve, error) {
	if len(probs) != len(pay) {
		return domain.KellyCurve{}, fmt.Errorf("%w: %d probabilities, %d payoffs", kelly.ErrLengthMismatch, len(probs), len(pay))
	}
	// a flat zero payoff has no odds at zero premium
	if _, err := payoff.MaxLoss(pay, 0); err != nil {
		return domain.KellyCurve{}, err
	}
	minPay := floats.Min(pay)

	points := make([]domain.KellyCurvePoint, len(g.us))
	var (
		done int
		mu   sync.Mutex
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, u := range g.us {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			prem, err := g.boundary(probs, pay, minPay, u)
			if err != nil {
				return fmt.Errorf("utilization %g: %w", u, err)
			}
			points[i] = domain.KellyCurvePoint{Utilization: u, Premium: prem}

			mu.Lock()
			done++
			if progress != nil {
				progress(done, len(g.us))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return domain.KellyCurve{}, err
	}
	return domain.KellyCurve{Points: points}, nil
}

// boundary minimizes |g'(u; premium)| over premium ∈ [0, 1].
func (g *Generator) boundary(probs, pay []float64, minPay, u float64) (float64, error) {
	odds := make([]float64, len(pay))
	objective := func(prem float64) float64 {
		if err := payoff.OddsInto(odds, pay, minPay, prem); err != nil {
			return numeric.Penalty
		}
		d := kelly.DerivativeAt(probs, odds, u)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return numeric.Penalty
		}
		return math.Abs(d)
	}

	res, err := numeric.MinimizeBounded(objective, 0, 1, numeric.MinimizeSettings{
		XTol:    g.tol,
		MaxEval: g.maxEval,
	})
	if err != nil {
		return 0, err
	}
	if !res.Converged {
		g.log.Warn().
			Float64("utilization", u).
			Float64("premium", res.X).
			Float64("residual", res.F).
			Int("evaluations", res.Evaluations).
			Msg("boundary search did not converge")
	}
	return res.X, nil
}
