package curvefit

import (
	"fmt"
	"math"

	"kelly-curve-lab/internal/bounds"
	"kelly-curve-lab/internal/domain"
)

// Clip moves params into [lo, hi] at every utilization in us and returns the
// adjusted params with the curve evaluated at us.
//
// D is clamped into the interval first. The utilization-dependent part is
// non-negative for A,B,C >= 0, so the curve then stays above lo and only the
// amplitude has to shrink to stay under hi.
func Clip(p domain.FitParams, us []float64, lo, hi float64) (domain.FitParams, []float64, error) {
	if lo > hi {
		return p, nil, fmt.Errorf("%w: lower %g > upper %g", bounds.ErrNoFeasibleBound, lo, hi)
	}
	p.D = clamp(p.D, lo, hi)

	if !math.IsInf(hi, 1) {
		scale := 1.0
		for _, u := range us {
			term := p.Term(u)
			if term > 0 && p.D+term > hi {
				scale = math.Min(scale, (hi-p.D)/term)
			}
		}
		if scale < 1 {
			p = scaleAmplitude(p, scale)
		}
	}

	fitted := make([]float64, len(us))
	for i, u := range us {
		fitted[i] = clamp(p.Eval(u), lo, hi)
	}
	return p, fitted, nil
}

func scaleAmplitude(p domain.FitParams, s float64) domain.FitParams {
	p.A *= s
	if p.Family == domain.FamilyPolynomial {
		p.B *= s
		p.C *= s
	}
	return p
}
