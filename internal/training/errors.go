package training

import "errors"

var (
	// ErrInsufficientTailData is returned when a tail has no observations
	// beyond its threshold. Widen the threshold or the training window.
	ErrInsufficientTailData = errors.New("insufficient tail data")

	// ErrInsufficientPrices is returned when fewer than two prices are available.
	ErrInsufficientPrices = errors.New("insufficient price history")

	// ErrInvalidPrice is returned for non-positive or non-finite prices.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrSingularCovariance is returned when the EM covariance estimate
	// is not positive definite.
	ErrSingularCovariance = errors.New("covariance is not positive definite")
)
