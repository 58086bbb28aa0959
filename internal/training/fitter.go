// Package training fits DistributionFit records to historical returns.
package training

import (
	"fmt"

	"github.com/rs/zerolog"

	"kelly-curve-lab/internal/distribution"
	"kelly-curve-lab/internal/domain"
)

// Options configures a Fitter.
type Options struct {
	Center         domain.CenterType // default skewt
	LeftThreshold  float64           // default 0.1
	RightThreshold float64           // default 0.1
	Logger         zerolog.Logger
}

// Fitter fits a piecewise tailed distribution to a ReturnSeries: the center by
// maximum likelihood, the tails by log-rank regression.
type Fitter struct {
	center         domain.CenterType
	leftThreshold  float64
	rightThreshold float64
	log            zerolog.Logger
}

// New creates a Fitter. Zero-valued options take their defaults.
func New(opts Options) *Fitter {
	if opts.Center == "" {
		opts.Center = domain.CenterSkewedT
	}
	if opts.LeftThreshold == 0 {
		opts.LeftThreshold = 0.1
	}
	if opts.RightThreshold == 0 {
		opts.RightThreshold = 0.1
	}
	return &Fitter{
		center:         opts.Center,
		leftThreshold:  opts.LeftThreshold,
		rightThreshold: opts.RightThreshold,
		log:            opts.Logger,
	}
}

// Fit returns the fitted record and the model it describes.
// Errors wrap distribution.ErrInvalidParameter, distribution.ErrNoSamples or
// ErrInsufficientTailData. Optimizer non-convergence is logged, not returned.
func (f *Fitter) Fit(series domain.ReturnSeries) (*domain.DistributionFit, *distribution.PiecewiseTailed, error) {
	center, err := distribution.NewCenter(f.center)
	if err != nil {
		return nil, nil, err
	}
	unfitted, err := distribution.NewUnfittedPiecewise(center, f.leftThreshold, f.rightThreshold, EstimateTailExponents)
	if err != nil {
		return nil, nil, err
	}

	res, err := unfitted.Fit(series.Values)
	if err != nil {
		return nil, nil, fmt.Errorf("fit %s: %w", series.Asset, err)
	}
	if !res.Converged {
		f.log.Warn().
			Str("asset", series.Asset).
			Str("status", res.Status).
			Int("evaluations", res.Evaluations).
			Msg("likelihood maximization did not converge, using best point")
	}

	model := res.Model.(*distribution.PiecewiseTailed)
	p := model.Params()
	tails := model.Tails()
	fit := &domain.DistributionFit{
		Center:         f.center,
		Loc:            p.Loc,
		Scale:          p.Scale,
		Skew:           p.Skew,
		DoF:            p.DoF,
		LeftThreshold:  tails.LeftProb,
		RightThreshold: tails.RightProb,
		TailLeft:       tails.AlphaLeft,
		TailRight:      tails.AlphaRight,
		SampleCount:    series.Len(),
	}

	f.log.Debug().
		Str("asset", series.Asset).
		Float64("loc", fit.Loc).
		Float64("scale", fit.Scale).
		Float64("skew", fit.Skew).
		Float64("dof", fit.DoF).
		Float64("tail_left", fit.TailLeft).
		Float64("tail_right", fit.TailRight).
		Msg("distribution fitted")

	return fit, model, nil
}
