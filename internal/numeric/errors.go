package numeric

import "errors"

var (
	// ErrNoBracket is returned when a root solve is given an interval whose
	// endpoints do not have opposite signs.
	ErrNoBracket = errors.New("root not bracketed")

	// ErrMaxIterations is returned alongside the best estimate when an
	// iterative routine hits its iteration limit.
	ErrMaxIterations = errors.New("maximum iterations reached")

	// ErrBadInterval is returned when lo >= hi or a bound is not finite.
	ErrBadInterval = errors.New("invalid interval")
)
