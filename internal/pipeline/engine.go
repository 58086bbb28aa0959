// Package pipeline chains the curve generation stages for a single request:
// price history → distribution fit → convolution → price-domain transform →
// payoff and Kelly boundary → curve fit clipped to no-arbitrage bounds.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"kelly-curve-lab/internal/bounds"
	"kelly-curve-lab/internal/convolution"
	"kelly-curve-lab/internal/curve"
	"kelly-curve-lab/internal/curvefit"
	"kelly-curve-lab/internal/distribution"
	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/idhash"
	"kelly-curve-lab/internal/kelly"
	"kelly-curve-lab/internal/numeric"
	"kelly-curve-lab/internal/observability"
	"kelly-curve-lab/internal/payoff"
	"kelly-curve-lab/internal/storage"
	"kelly-curve-lab/internal/training"
	"kelly-curve-lab/internal/transform"
)

// ErrInvalidRequest is returned for malformed curve requests.
var ErrInvalidRequest = errors.New("invalid curve request")

// daysPerYear converts expiration days to the year fraction used by bounds.
const daysPerYear = 365.0

// Stage names reported to metrics.
const (
	StageLoadPrices      = "load_prices"
	StageFitDistribution = "fit_distribution"
	StageConvolve        = "convolve"
	StageTransform       = "transform"
	StageBoundary        = "kelly_boundary"
	StageCurveFit        = "curve_fit"
)

// Grid is the log-return grid shared by every PDF. 0 must be one of its
// points.
type Grid struct {
	Points int
	Lower  float64
	Upper  float64
}

// X returns the grid points.
func (g Grid) X() []float64 {
	return numeric.Linspace(g.Lower, g.Upper, g.Points)
}

// Options configures an Engine. Prices and the stage components are required.
type Options struct {
	Prices      storage.PriceHistoryStore
	Trainer     *training.Fitter
	Convolver   *convolution.Engine
	Transformer *transform.Transformer
	Generator   *curve.Generator
	CurveFitter *curvefit.Fitter
	Bounds      bounds.BoundaryConstraintSet

	Grid     Grid
	MaxDays  int  // longest expiration accepted; default 365
	EmitPDFs bool // attach per-day price-domain PDFs to records

	Metrics *observability.Metrics
	Logger  zerolog.Logger
	Clock   func() time.Time
}

// Engine produces one CurveRecord per CurveRequest. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	prices      storage.PriceHistoryStore
	trainer     *training.Fitter
	convolver   *convolution.Engine
	transformer *transform.Transformer
	generator   *curve.Generator
	curveFitter *curvefit.Fitter
	bounds      bounds.BoundaryConstraintSet
	grid        Grid
	maxDays     int
	emitPDFs    bool
	metrics     *observability.Metrics
	log         zerolog.Logger
	clock       func() time.Time
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Prices == nil || opts.Trainer == nil || opts.Convolver == nil ||
		opts.Transformer == nil || opts.Generator == nil || opts.CurveFitter == nil {
		return nil, errors.New("pipeline: missing stage component")
	}
	if _, ok := numeric.ZeroIndex(opts.Grid.Lower, opts.Grid.Upper, opts.Grid.Points); !ok || opts.Grid.Points < 3 {
		return nil, fmt.Errorf("%w: grid %d points over [%g, %g]",
			convolution.ErrGridExcludesZero, opts.Grid.Points, opts.Grid.Lower, opts.Grid.Upper)
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 365
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		prices:      opts.Prices,
		trainer:     opts.Trainer,
		convolver:   opts.Convolver,
		transformer: opts.Transformer,
		generator:   opts.Generator,
		curveFitter: opts.CurveFitter,
		bounds:      opts.Bounds,
		grid:        opts.Grid,
		maxDays:     opts.MaxDays,
		emitPDFs:    opts.EmitPDFs,
		metrics:     opts.Metrics,
		log:         opts.Logger,
		clock:       opts.Clock,
	}, nil
}

// Generate runs every stage for req.
func (e *Engine) Generate(ctx context.Context, req domain.CurveRequest) (*domain.CurveRecord, error) {
	return e.GenerateWithProgress(ctx, req, nil)
}

// GenerateWithProgress is Generate reporting per-utilization progress of the
// boundary stage. progress may be nil.
func (e *Engine) GenerateWithProgress(ctx context.Context, req domain.CurveRequest, progress curve.ProgressFunc) (*domain.CurveRecord, error) {
	if err := e.Validate(req); err != nil {
		return nil, err
	}
	curveID := idhash.CurveIDForRequest(req)
	log := e.log.With().Str("curve_id", curveID).Str("asset", req.Asset).Str("label", req.Label).Logger()

	// Conflicting bounds abort before any numerical work.
	lo, hi, err := e.Interval(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fit, model, err := e.FitWindow(ctx, req.Asset, req.StartMs, req.EndMs)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	propagated, err := e.propagate(ctx, model, req.ExpirationDays)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveStage(StageConvolve, time.Since(start))

	start = time.Now()
	final, _ := propagated.Day(req.ExpirationDays)
	pricePDF, err := e.transformer.ToPrice(final, req.CurrentPrice)
	if err != nil {
		return nil, fmt.Errorf("day %d: %w", req.ExpirationDays, err)
	}
	var daily []domain.PDF
	if e.emitPDFs {
		if daily, err = e.dailyPricePDFs(ctx, propagated, req.CurrentPrice, pricePDF); err != nil {
			return nil, err
		}
	}
	e.metrics.ObserveStage(StageTransform, time.Since(start))

	start = time.Now()
	pay, err := e.Payoff(req, pricePDF.X)
	if err != nil {
		return nil, err
	}
	probs, err := kelly.Probabilities(pricePDF.X, pricePDF.Density)
	if err != nil {
		return nil, err
	}
	kc, err := e.generator.Generate(ctx, probs, pay.Payoff, progress)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveStage(StageBoundary, time.Since(start))

	start = time.Now()
	params, err := e.curveFitter.Fit(kc)
	if err != nil {
		return nil, err
	}
	us := kc.Utilizations()
	params, fitted, err := curvefit.Clip(params, us, lo, hi)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveStage(StageCurveFit, time.Since(start))

	log.Debug().
		Str("family", string(params.Family)).
		Float64("a", params.A).
		Float64("b", params.B).
		Float64("c", params.C).
		Float64("d", params.D).
		Float64("lower_bound", lo).
		Float64("upper_bound", hi).
		Msg("curve generated")

	return &domain.CurveRecord{
		CurveID:        curveID,
		Asset:          req.Asset,
		Label:          req.Label,
		StartMs:        req.StartMs,
		EndMs:          req.EndMs,
		StrikeFraction: req.StrikeFraction,
		ExpirationDays: req.ExpirationDays,
		CurrentPrice:   req.CurrentPrice,
		Type:           req.OptionType(),
		Params:         params,
		Utilizations:   us,
		Premiums:       kc.Premiums(),
		FittedPremiums: fitted,
		LowerBound:     lo,
		UpperBound:     hi,
		Distribution:   *fit,
		DailyPDFs:      daily,
		CreatedAtMs:    e.clock().UnixMilli(),
	}, nil
}

// Validate checks req against the engine's limits.
func (e *Engine) Validate(req domain.CurveRequest) error {
	switch {
	case req.Asset == "":
		return fmt.Errorf("%w: empty asset", ErrInvalidRequest)
	case req.StartMs > req.EndMs:
		return fmt.Errorf("%w: training window start %d after end %d", ErrInvalidRequest, req.StartMs, req.EndMs)
	case !(req.StrikeFraction > 0) || math.IsInf(req.StrikeFraction, 0):
		return fmt.Errorf("%w: strike %g", ErrInvalidRequest, req.StrikeFraction)
	case req.ExpirationDays < 1 || req.ExpirationDays > e.maxDays:
		return fmt.Errorf("%w: expiration %d days outside [1, %d]", ErrInvalidRequest, req.ExpirationDays, e.maxDays)
	case !(req.CurrentPrice > 0) || math.IsInf(req.CurrentPrice, 0):
		return fmt.Errorf("%w: current price %g", ErrInvalidRequest, req.CurrentPrice)
	}
	if t := req.OptionType(); t != domain.OptionCall && t != domain.OptionPut {
		return fmt.Errorf("%w: option type %q", ErrInvalidRequest, t)
	}
	return nil
}

// BoundContext builds the no-arbitrage context of req.
func BoundContext(req domain.CurveRequest) domain.BoundContext {
	ctx := domain.BoundContext{
		Type:                 req.OptionType(),
		Strike:               req.StrikeFraction * req.CurrentPrice,
		Price:                req.CurrentPrice,
		Rate:                 req.Rate,
		Carry:                req.Carry,
		Tau:                  float64(req.ExpirationDays) / daysPerYear,
		LowerStrikePremium:   req.LowerStrikePremium,
		UpperStrikePremium:   req.UpperStrikePremium,
		ShorterExpiryPremium: req.ShorterExpiryPremium,
		LongerExpiryPremium:  req.LongerExpiryPremium,
	}
	if req.LowerStrikeFraction != nil {
		k := *req.LowerStrikeFraction * req.CurrentPrice
		ctx.LowerStrike = &k
	}
	if req.UpperStrikeFraction != nil {
		k := *req.UpperStrikeFraction * req.CurrentPrice
		ctx.UpperStrike = &k
	}
	return ctx
}

// Interval returns the allowed premium interval of req: the configured
// bounds intersected with [0, 1], the range searched by the boundary stage.
func (e *Engine) Interval(req domain.CurveRequest) (lo, hi float64, err error) {
	lo, hi, err = e.bounds.Interval(BoundContext(req))
	if err != nil {
		return lo, hi, err
	}
	lo, hi = math.Max(lo, 0), math.Min(hi, 1)
	if lo > hi {
		return lo, hi, fmt.Errorf("%w: lower %g > upper %g after premium range", bounds.ErrNoFeasibleBound, lo, hi)
	}
	return lo, hi, nil
}

// Payoff is the seller's position at expiration over prices: one short
// option at the requested strike plus the underlying quantity bought at the
// current price, in units of the current price.
func (e *Engine) Payoff(req domain.CurveRequest, prices []float64) (domain.PayoffConfig, error) {
	leg := domain.OptionLeg{
		Type:      req.OptionType(),
		Direction: domain.DirectionShort,
		Strike:    req.StrikeFraction * req.CurrentPrice,
		Amount:    1,
		Rate:      req.Rate,
		Carry:     req.Carry,
	}
	underlying := domain.UnderlyingLeg{EntryPrice: req.CurrentPrice, Quantity: req.UnderlyingQuantity}
	return payoff.Build(prices, []domain.OptionLeg{leg}, underlying, req.CurrentPrice)
}

// BasePDF samples model on the grid and rescales it to unit mass.
func (e *Engine) BasePDF(model distribution.DistributionModel) (domain.PDF, error) {
	x := e.grid.X()
	density := make([]float64, len(x))
	for i, v := range x {
		density[i] = model.PDF(v)
	}
	pdf := domain.PDF{X: x, Density: density}
	mass := pdf.Mass()
	if !(mass > 0) || math.IsInf(mass, 0) {
		return domain.PDF{}, fmt.Errorf("%w: density mass %g on grid [%g, %g]",
			distribution.ErrInvalidParameter, mass, e.grid.Lower, e.grid.Upper)
	}
	for i := range density {
		density[i] /= mass
	}
	return pdf, nil
}

func (e *Engine) propagate(ctx context.Context, model distribution.DistributionModel, days int) (domain.ConvolutionResult, error) {
	base, err := e.BasePDF(model)
	if err != nil {
		return domain.ConvolutionResult{}, err
	}
	return e.convolver.Propagate(ctx, base, days-1)
}

// dailyPricePDFs maps every propagated day into the price domain; the last
// day has already been transformed.
func (e *Engine) dailyPricePDFs(ctx context.Context, res domain.ConvolutionResult, ref float64, last domain.PDF) ([]domain.PDF, error) {
	out := make([]domain.PDF, res.Days())
	for i := 0; i < res.Days()-1; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pdf, err := e.transformer.ToPrice(res.PDFs[i], ref)
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", i+1, err)
		}
		out[i] = pdf
	}
	out[len(out)-1] = last
	return out, nil
}
