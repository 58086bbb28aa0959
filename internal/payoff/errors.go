package payoff

import "errors"

var (
	// ErrZeroMaxLoss is returned when the worst outcome over the grid is
	// exactly zero, so betting odds are undefined.
	ErrZeroMaxLoss = errors.New("max loss is zero")

	// ErrInvalidLeg is returned for legs with non-positive strike, negative
	// amount, or an unknown type or direction.
	ErrInvalidLeg = errors.New("invalid position leg")

	// ErrEmptyGrid is returned when no price points are given.
	ErrEmptyGrid = errors.New("empty price grid")
)
