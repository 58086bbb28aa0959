// Package payoff evaluates option and underlying positions over a price grid
// and converts payoffs into betting odds.
package payoff

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"kelly-curve-lab/internal/domain"
)

// LegValue returns the value of one option leg at each price: the signed
// contract amount times the option value (intrinsic when Tau is 0).
func LegValue(leg domain.OptionLeg, prices []float64) []float64 {
	out := make([]float64, len(prices))
	sign := leg.Direction.Sign() * leg.Amount
	for i, s := range prices {
		out[i] = sign * BlackScholesPrice(leg.Type, s, leg.Strike, leg.Tau, leg.Rate, leg.Carry, leg.Vol)
	}
	return out
}

// Build sums the legs and the underlying P&L over prices and expresses the
// total in units of referencePrice.
func Build(prices []float64, legs []domain.OptionLeg, underlying domain.UnderlyingLeg, referencePrice float64) (domain.PayoffConfig, error) {
	if len(prices) == 0 {
		return domain.PayoffConfig{}, ErrEmptyGrid
	}
	if !(referencePrice > 0) {
		return domain.PayoffConfig{}, fmt.Errorf("%w: reference price %g", ErrInvalidLeg, referencePrice)
	}
	for i, leg := range legs {
		if err := validateLeg(leg); err != nil {
			return domain.PayoffConfig{}, fmt.Errorf("leg %d: %w", i, err)
		}
	}

	total := make([]float64, len(prices))
	for _, leg := range legs {
		floats.Add(total, LegValue(leg, prices))
	}
	if underlying.Quantity != 0 {
		for i, s := range prices {
			total[i] += underlying.Quantity * (s - underlying.EntryPrice)
		}
	}
	floats.Scale(1/referencePrice, total)

	p := make([]float64, len(prices))
	copy(p, prices)
	l := make([]domain.OptionLeg, len(legs))
	copy(l, legs)

	return domain.PayoffConfig{
		Prices:         p,
		Legs:           l,
		Underlying:     underlying,
		ReferencePrice: referencePrice,
		Payoff:         total,
	}, nil
}

// MaxLoss returns |min(payoff + premium)| over the grid.
// Returns ErrZeroMaxLoss if it is exactly zero.
func MaxLoss(payoff []float64, premium float64) (float64, error) {
	if len(payoff) == 0 {
		return 0, ErrEmptyGrid
	}
	loss := math.Abs(floats.Min(payoff) + premium)
	if loss == 0 {
		return 0, ErrZeroMaxLoss
	}
	return loss, nil
}

// Odds returns the betting odds (payoff + premium) / max loss per point.
func Odds(payoff []float64, premium float64) ([]float64, error) {
	out := make([]float64, len(payoff))
	if err := OddsInto(out, payoff, floats.Min(payoff), premium); err != nil {
		return nil, err
	}
	return out, nil
}

// OddsInto writes the betting odds into dst without allocating. minPayoff
// must be the minimum of payoff.
func OddsInto(dst, payoff []float64, minPayoff, premium float64) error {
	if len(payoff) == 0 {
		return ErrEmptyGrid
	}
	loss := math.Abs(minPayoff + premium)
	if loss == 0 {
		return ErrZeroMaxLoss
	}
	for i, v := range payoff {
		dst[i] = (v + premium) / loss
	}
	return nil
}

func validateLeg(leg domain.OptionLeg) error {
	switch {
	case leg.Type != domain.OptionCall && leg.Type != domain.OptionPut:
		return fmt.Errorf("%w: type %q", ErrInvalidLeg, leg.Type)
	case leg.Direction != domain.DirectionLong && leg.Direction != domain.DirectionShort:
		return fmt.Errorf("%w: direction %q", ErrInvalidLeg, leg.Direction)
	case !(leg.Strike > 0):
		return fmt.Errorf("%w: strike %g", ErrInvalidLeg, leg.Strike)
	case leg.Amount < 0:
		return fmt.Errorf("%w: amount %g", ErrInvalidLeg, leg.Amount)
	case leg.Tau < 0 || leg.Vol < 0:
		return fmt.Errorf("%w: tau %g vol %g", ErrInvalidLeg, leg.Tau, leg.Vol)
	}
	return nil
}
