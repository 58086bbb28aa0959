package numeric

import (
	"fmt"
	"math"
)

const sqrtEps = 1.4901161193847656e-08

// RootSettings controls FindRoot.
type RootSettings struct {
	XTol    float64 // absolute tolerance (default 2e-12)
	RTol    float64 // relative tolerance (default 4*machine epsilon)
	MaxIter int     // default 100
}

// FindRoot finds a zero of f in [lo, hi] with Brent's method. f(lo) and f(hi)
// must have opposite signs (or one of them must be zero).
// On iteration exhaustion the last estimate is returned with ErrMaxIterations.
func FindRoot(f func(float64) float64, lo, hi float64, s RootSettings) (float64, error) {
	if s.XTol <= 0 {
		s.XTol = 2e-12
	}
	if s.RTol <= 0 {
		s.RTol = 4 * 2.220446049250313e-16
	}
	if s.MaxIter <= 0 {
		s.MaxIter = 100
	}
	if !(lo < hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return math.NaN(), ErrBadInterval
	}

	xpre, xcur := lo, hi
	fpre, fcur := f(xpre), f(xcur)
	if fpre*fcur > 0 {
		return math.NaN(), fmt.Errorf("%w: f(%g)=%g, f(%g)=%g", ErrNoBracket, lo, fpre, hi, fcur)
	}
	if fpre == 0 {
		return xpre, nil
	}
	if fcur == 0 {
		return xcur, nil
	}

	var xblk, fblk, spre, scur float64
	for i := 0; i < s.MaxIter; i++ {
		if fpre != 0 && fcur != 0 && math.Signbit(fpre) != math.Signbit(fcur) {
			xblk, fblk = xpre, fpre
			spre = xcur - xpre
			scur = spre
		}
		if math.Abs(fblk) < math.Abs(fcur) {
			xpre, xcur, xblk = xcur, xblk, xcur
			fpre, fcur, fblk = fcur, fblk, fcur
		}

		delta := (s.XTol + s.RTol*math.Abs(xcur)) / 2
		sbis := (xblk - xcur) / 2
		if fcur == 0 || math.Abs(sbis) < delta {
			return xcur, nil
		}

		if math.Abs(spre) > delta && math.Abs(fcur) < math.Abs(fpre) {
			var stry float64
			if xpre == xblk {
				// secant
				stry = -fcur * (xcur - xpre) / (fcur - fpre)
			} else {
				// inverse quadratic
				dpre := (fpre - fcur) / (xpre - xcur)
				dblk := (fblk - fcur) / (xblk - xcur)
				stry = -fcur * (fblk*dblk - fpre*dpre) / (dblk * dpre * (fblk - fpre))
			}
			if 2*math.Abs(stry) < math.Min(math.Abs(spre), 3*math.Abs(sbis)-delta) {
				spre, scur = scur, stry
			} else {
				spre, scur = sbis, sbis
			}
		} else {
			spre, scur = sbis, sbis
		}

		xpre, fpre = xcur, fcur
		if math.Abs(scur) > delta {
			xcur += scur
		} else if sbis > 0 {
			xcur += delta
		} else {
			xcur -= delta
		}
		fcur = f(xcur)
	}
	return xcur, ErrMaxIterations
}

// MinimizeSettings controls MinimizeBounded.
type MinimizeSettings struct {
	XTol    float64 // absolute tolerance on x (default 1e-5)
	MaxEval int     // maximum function evaluations (default 500)
}

// MinimizeResult is the outcome of MinimizeBounded.
type MinimizeResult struct {
	X           float64
	F           float64
	Evaluations int
	Converged   bool
}

// MinimizeBounded minimizes f over [lo, hi] using Brent's bounded method
// (golden section with parabolic interpolation). Both endpoints are also
// evaluated and win ties, so a minimum sitting on a bound is returned exactly.
// Converged is false when MaxEval was exhausted; X is still the best point seen.
func MinimizeBounded(f func(float64) float64, lo, hi float64, s MinimizeSettings) (MinimizeResult, error) {
	if s.XTol <= 0 {
		s.XTol = 1e-5
	}
	if s.MaxEval <= 0 {
		s.MaxEval = 500
	}
	if !(lo < hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return MinimizeResult{X: math.NaN(), F: math.NaN()}, ErrBadInterval
	}

	goldenMean := 0.5 * (3 - math.Sqrt(5))
	a, b := lo, hi
	fulc := a + goldenMean*(b-a)
	nfc, xf := fulc, fulc
	var rat, e float64
	fx := f(xf)
	num := 1
	ffulc, fnfc := fx, fx
	xm := 0.5 * (a + b)
	tol1 := sqrtEps*math.Abs(xf) + s.XTol/3
	tol2 := 2 * tol1
	converged := true

	for math.Abs(xf-xm) > tol2-0.5*(b-a) {
		golden := true
		if math.Abs(e) > tol1 {
			golden = false
			r := (xf - nfc) * (fx - ffulc)
			q := (xf - fulc) * (fx - fnfc)
			p := (xf-fulc)*q - (xf-nfc)*r
			q = 2 * (q - r)
			if q > 0 {
				p = -p
			}
			q = math.Abs(q)
			r = e
			e = rat

			if math.Abs(p) < math.Abs(0.5*q*r) && p > q*(a-xf) && p < q*(b-xf) {
				rat = p / q
				x := xf + rat
				if x-a < tol2 || b-x < tol2 {
					rat = tol1 * signOrOne(xm-xf)
				}
			} else {
				golden = true
			}
		}
		if golden {
			if xf >= xm {
				e = a - xf
			} else {
				e = b - xf
			}
			rat = goldenMean * e
		}

		x := xf + signOrOne(rat)*math.Max(math.Abs(rat), tol1)
		fu := f(x)
		num++

		if fu <= fx {
			if x >= xf {
				a = xf
			} else {
				b = xf
			}
			fulc, ffulc = nfc, fnfc
			nfc, fnfc = xf, fx
			xf, fx = x, fu
		} else {
			if x < xf {
				a = x
			} else {
				b = x
			}
			if fu <= fnfc || nfc == xf {
				fulc, ffulc = nfc, fnfc
				nfc, fnfc = x, fu
			} else if fu <= ffulc || fulc == xf || fulc == nfc {
				fulc, ffulc = x, fu
			}
		}

		xm = 0.5 * (a + b)
		tol1 = sqrtEps*math.Abs(xf) + s.XTol/3
		tol2 = 2 * tol1
		if num >= s.MaxEval {
			converged = false
			break
		}
	}

	res := MinimizeResult{X: xf, F: fx, Evaluations: num, Converged: converged}
	for _, edge := range [2]float64{lo, hi} {
		fe := f(edge)
		res.Evaluations++
		if fe <= res.F || math.IsNaN(res.F) {
			res.X, res.F = edge, fe
		}
	}
	return res, nil
}

func signOrOne(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
