package distribution

import "errors"

var (
	// ErrInvalidParameter is returned when a distribution argument is out of
	// its domain (skew <= 0, dof <= 2, scale <= 0, thresholds outside (0, 0.5)).
	ErrInvalidParameter = errors.New("invalid distribution parameter")

	// ErrNoSamples is returned when fitting is attempted on too few samples.
	ErrNoSamples = errors.New("not enough samples to fit")

	// ErrNoTailEstimator is returned when a piecewise model is fitted without
	// a tail estimator.
	ErrNoTailEstimator = errors.New("tail estimator not configured")
)
