package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"kelly-curve-lab/internal/bounds"
	"kelly-curve-lab/internal/config"
	"kelly-curve-lab/internal/convolution"
	"kelly-curve-lab/internal/curve"
	"kelly-curve-lab/internal/curvefit"
	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/numeric"
	"kelly-curve-lab/internal/observability"
	"kelly-curve-lab/internal/storage"
	"kelly-curve-lab/internal/training"
	"kelly-curve-lab/internal/transform"
)

// FromConfig builds an Engine and its stage components from cfg.
func FromConfig(cfg *config.Config, prices storage.PriceHistoryStore, metrics *observability.Metrics, logger zerolog.Logger) (*Engine, error) {
	set, err := bounds.Build(cfg.Bounds.Lower, cfg.Bounds.Upper)
	if err != nil {
		return nil, err
	}
	gen, err := curve.New(curve.Options{
		Utilizations:   numeric.Linspace(0, cfg.Curve.MaxUtilization, cfg.Curve.Utilizations),
		Tolerance:      cfg.Curve.Tolerance,
		MaxEvaluations: cfg.Curve.MaxEvaluations,
		Workers:        cfg.Curve.Workers,
		Logger:         logger.With().Str("component", "curve").Logger(),
	})
	if err != nil {
		return nil, err
	}
	fitter, err := curvefit.New(curvefit.Options{
		Family:        domain.CurveFamily(cfg.Fit.Family),
		Negligible:    cfg.Fit.Negligible,
		MaxIterations: cfg.Fit.MaxIterations,
		Logger:        logger.With().Str("component", "curvefit").Logger(),
	})
	if err != nil {
		return nil, err
	}

	return New(Options{
		Prices: prices,
		Trainer: training.New(training.Options{
			Center:         domain.CenterType(cfg.Distribution.Center),
			LeftThreshold:  cfg.Distribution.LeftTail,
			RightThreshold: cfg.Distribution.RightTail,
			Logger:         logger.With().Str("component", "training").Logger(),
		}),
		Convolver: convolution.New(convolution.Options{
			Method: convolution.Method(cfg.Convolution.Method),
			Logger: logger.With().Str("component", "convolution").Logger(),
		}),
		Transformer: transform.New(transform.Options{
			SmoothingWindow: cfg.Transform.SmoothingWindow,
			Tolerance:       cfg.Transform.Tolerance,
			MaxIterations:   cfg.Transform.MaxIterations,
			Logger:          logger.With().Str("component", "transform").Logger(),
		}),
		Generator:   gen,
		CurveFitter: fitter,
		Bounds:      set,
		Grid:        Grid{Points: cfg.Grid.Points, Lower: cfg.Grid.Lower, Upper: cfg.Grid.Upper},
		MaxDays:     cfg.Convolution.MaxDays,
		EmitPDFs:    cfg.Batch.EmitPDFs,
		Metrics:     metrics,
		Logger:      logger,
		Clock:       func() time.Time { return time.Now().UTC() },
	})
}
