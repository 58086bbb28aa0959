// Package bounds implements no-arbitrage bounds on an option premium.
//
// Each bound reads the neighbouring strike and expiration data it needs from
// a domain.BoundContext and is skipped when that data is missing. Premiums
// and bounds are fractions of the underlying price.
package bounds

import (
	"errors"
	"math"

	"kelly-curve-lab/internal/domain"
)

var (
	// ErrNoFeasibleBound is returned when the tightest lower bound exceeds
	// the tightest upper bound.
	ErrNoFeasibleBound = errors.New("no feasible premium between arbitrage bounds")

	// ErrUnknownBound is returned for a bound name not registered for the
	// requested side.
	ErrUnknownBound = errors.New("unknown arbitrage bound")
)

// Kind tells whether a bound limits the premium from below or above.
type Kind string

// Bound kinds.
const (
	KindLower Kind = "lower"
	KindUpper Kind = "upper"
)

// ArbitrageBound maps a context to a scalar bound. ok is false when the
// context lacks the fields the bound needs.
type ArbitrageBound interface {
	Name() string
	Kind() Kind
	Bound(ctx domain.BoundContext) (value float64, ok bool)
}

// Zero is the lower bound 0: a written option is never worth less than nothing.
type Zero struct{}

func (Zero) Name() string { return "zero" }
func (Zero) Kind() Kind   { return KindLower }

func (Zero) Bound(domain.BoundContext) (float64, bool) { return 0, true }

// Parity is the lower bound from put-call parity: an option is worth at
// least its discounted forward intrinsic value.
type Parity struct{}

func (Parity) Name() string { return "parity" }
func (Parity) Kind() Kind   { return KindLower }

func (Parity) Bound(ctx domain.BoundContext) (float64, bool) {
	if !(ctx.Price > 0) || !(ctx.Strike > 0) {
		return 0, false
	}
	spot := math.Exp((ctx.Carry - ctx.Rate) * ctx.Tau)
	strike := ctx.Strike / ctx.Price * math.Exp(-ctx.Rate*ctx.Tau)
	if ctx.Type == domain.OptionPut {
		return math.Max(0, strike-spot), true
	}
	return math.Max(0, spot-strike), true
}

// IntrinsicCap is the upper bound: a call is worth at most the carry-adjusted
// spot and a put at most the discounted strike.
type IntrinsicCap struct{}

func (IntrinsicCap) Name() string { return "intrinsic_cap" }
func (IntrinsicCap) Kind() Kind   { return KindUpper }

func (IntrinsicCap) Bound(ctx domain.BoundContext) (float64, bool) {
	if ctx.Type == domain.OptionPut {
		if !(ctx.Price > 0) || !(ctx.Strike > 0) {
			return 0, false
		}
		return ctx.Strike / ctx.Price * math.Exp(-ctx.Rate*ctx.Tau), true
	}
	return math.Exp((ctx.Carry - ctx.Rate) * ctx.Tau), true
}

// Monotonicity bounds the premium by its strike neighbours. Calls get
// cheaper as the strike rises, puts get dearer.
type Monotonicity struct {
	Side Kind
}

func (Monotonicity) Name() string { return "monotonicity" }
func (m Monotonicity) Kind() Kind { return m.Side }

func (m Monotonicity) Bound(ctx domain.BoundContext) (float64, bool) {
	higherStrikeCaps := ctx.Type == domain.OptionPut
	var p *float64
	switch {
	case m.Side == KindLower && !higherStrikeCaps:
		p = ctx.UpperStrikePremium
	case m.Side == KindLower:
		p = ctx.LowerStrikePremium
	case !higherStrikeCaps:
		p = ctx.LowerStrikePremium
	default:
		p = ctx.UpperStrikePremium
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Convexity caps the premium by the chord through the premiums of the two
// neighbouring strikes.
type Convexity struct{}

func (Convexity) Name() string { return "convexity" }
func (Convexity) Kind() Kind   { return KindUpper }

func (Convexity) Bound(ctx domain.BoundContext) (float64, bool) {
	if ctx.LowerStrike == nil || ctx.UpperStrike == nil ||
		ctx.LowerStrikePremium == nil || ctx.UpperStrikePremium == nil {
		return 0, false
	}
	k1, k2 := *ctx.LowerStrike, *ctx.UpperStrike
	if !(k1 < ctx.Strike && ctx.Strike < k2) {
		return 0, false
	}
	w := (k2 - ctx.Strike) / (k2 - k1)
	return w*(*ctx.LowerStrikePremium) + (1-w)*(*ctx.UpperStrikePremium), true
}

// Calendar bounds the premium by the same strike at adjacent expirations:
// at least the shorter one, at most the longer one.
type Calendar struct {
	Side Kind
}

func (Calendar) Name() string { return "calendar" }
func (c Calendar) Kind() Kind { return c.Side }

func (c Calendar) Bound(ctx domain.BoundContext) (float64, bool) {
	p := ctx.ShorterExpiryPremium
	if c.Side == KindUpper {
		p = ctx.LongerExpiryPremium
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

var (
	_ ArbitrageBound = Zero{}
	_ ArbitrageBound = Parity{}
	_ ArbitrageBound = IntrinsicCap{}
	_ ArbitrageBound = Monotonicity{}
	_ ArbitrageBound = Convexity{}
	_ ArbitrageBound = Calendar{}
)
