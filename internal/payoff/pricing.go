package payoff

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"kelly-curve-lab/internal/domain"
)

// zeroVolatility replaces a volatility of exactly zero before pricing.
// Kept for compatibility; numerically fragile (d1 saturates to ±Inf-like
// values and N(d) collapses to 0 or 1).
const zeroVolatility = 1e-10

// BlackScholesPrice returns the generalized Black-Scholes-Merton value of a
// European option with cost of carry b. With tau <= 0 the intrinsic value
// is returned.
//
// Parameters:
//   - s: spot price of the underlying
//   - k: strike
//   - tau: time to expiry in years
//   - r: risk-free rate
//   - b: cost of carry (r for non-dividend stock, 0 for futures)
//   - vol: annualized volatility
func BlackScholesPrice(t domain.OptionType, s, k, tau, r, b, vol float64) float64 {
	if tau <= 0 {
		return Intrinsic(t, s, k)
	}
	if vol == 0 {
		vol = zeroVolatility
	}

	sqrtT := math.Sqrt(tau)
	d1 := (math.Log(s/k) + (b+0.5*vol*vol)*tau) / (vol * sqrtT)
	d2 := d1 - vol*sqrtT
	carry := math.Exp((b - r) * tau)
	discount := math.Exp(-r * tau)

	if t == domain.OptionPut {
		return k*discount*normCDF(-d2) - s*carry*normCDF(-d1)
	}
	return s*carry*normCDF(d1) - k*discount*normCDF(d2)
}

// Intrinsic returns the exercise value of an option at spot s.
func Intrinsic(t domain.OptionType, s, k float64) float64 {
	if t == domain.OptionPut {
		return math.Max(0, k-s)
	}
	return math.Max(0, s-k)
}

func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}
