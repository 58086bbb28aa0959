package pipeline

import (
	"context"
	"fmt"
	"time"

	"kelly-curve-lab/internal/distribution"
	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/training"
)

// FitWindow loads an asset's prices over [startMs, endMs] and fits the
// piecewise return distribution to their daily log returns.
func (e *Engine) FitWindow(ctx context.Context, asset string, startMs, endMs int64) (*domain.DistributionFit, *distribution.PiecewiseTailed, error) {
	start := time.Now()
	points, err := e.prices.GetByTimeRange(ctx, asset, startMs, endMs)
	if err != nil {
		return nil, nil, fmt.Errorf("load prices: %w", err)
	}
	e.metrics.ObserveStage(StageLoadPrices, time.Since(start))

	start = time.Now()
	series, err := training.LogReturns(points)
	if err != nil {
		return nil, nil, err
	}
	fit, model, err := e.trainer.Fit(series)
	if err != nil {
		return nil, nil, err
	}
	e.metrics.ObserveStage(StageFitDistribution, time.Since(start))
	return fit, model, nil
}

// PricePDF returns the price-domain PDF of req's asset after day days,
// together with the fitted daily return distribution.
func (e *Engine) PricePDF(ctx context.Context, req domain.CurveRequest, day int) (domain.PDF, *domain.DistributionFit, error) {
	req.ExpirationDays = day
	if err := e.Validate(req); err != nil {
		return domain.PDF{}, nil, err
	}
	fit, model, err := e.FitWindow(ctx, req.Asset, req.StartMs, req.EndMs)
	if err != nil {
		return domain.PDF{}, nil, err
	}
	propagated, err := e.propagate(ctx, model, day)
	if err != nil {
		return domain.PDF{}, nil, err
	}
	final, _ := propagated.Day(day)
	pdf, err := e.transformer.ToPrice(final, req.CurrentPrice)
	if err != nil {
		return domain.PDF{}, nil, fmt.Errorf("day %d: %w", day, err)
	}
	return pdf, fit, nil
}
