package domain

import "math"

// KellyCurvePoint is one (utilization, boundary premium) pair.
type KellyCurvePoint struct {
	Utilization float64 `json:"utilization"`
	Premium     float64 `json:"premium"`
}

// KellyCurve is the boundary premium across utilizations, ordered by
// increasing utilization.
type KellyCurve struct {
	Points []KellyCurvePoint `json:"points"`
}

// Utilizations returns the utilization column.
func (c KellyCurve) Utilizations() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Utilization
	}
	return out
}

// Premiums returns the premium column.
func (c KellyCurve) Premiums() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Premium
	}
	return out
}

// CurveFamily selects the parametric form fitted to a KellyCurve.
type CurveFamily string

// Supported curve families.
const (
	FamilyCosh        CurveFamily = "cosh"        // A*u*cosh(B*u^C) + D
	FamilyExponential CurveFamily = "exponential" // A*(exp(B*u^C) - 1) + D
	FamilyPolynomial  CurveFamily = "polynomial"  // A*u + B*u^2 + C*u^3 + D
)

// FitParams parameterizes premium(utilization) for a CurveFamily.
// A, B, C are within [0, 100]; D is the intercept.
type FitParams struct {
	Family CurveFamily `json:"family"`
	A      float64     `json:"a"`
	B      float64     `json:"b"`
	C      float64     `json:"c"`
	D      float64     `json:"d"`
}

// Term returns the utilization-dependent part of the curve (without D).
func (p FitParams) Term(u float64) float64 {
	switch p.Family {
	case FamilyExponential:
		return p.A * (math.Exp(p.B*math.Pow(u, p.C)) - 1)
	case FamilyPolynomial:
		return p.A*u + p.B*u*u + p.C*u*u*u
	default:
		return p.A * u * math.Cosh(p.B*math.Pow(u, p.C))
	}
}

// Eval returns the fitted premium at utilization u.
func (p FitParams) Eval(u float64) float64 {
	return p.Term(u) + p.D
}

// BoundContext carries the neighbouring market data consumed by
// no-arbitrage bound functions. Nil pointers mean "not available".
// Premiums are fractions of Price.
type BoundContext struct {
	Type   OptionType
	Strike float64 // absolute strike
	Price  float64 // underlying price
	Rate   float64
	Carry  float64
	Tau    float64 // years to expiry

	LowerStrike        *float64 // next strike below
	LowerStrikePremium *float64
	UpperStrike        *float64 // next strike above
	UpperStrikePremium *float64

	ShorterExpiryPremium *float64 // same strike, previous expiration
	LongerExpiryPremium  *float64 // same strike, next expiration
}
