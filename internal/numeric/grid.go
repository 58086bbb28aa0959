package numeric

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Linspace returns n evenly spaced points over [lo, hi]. The end points are
// exactly lo and hi.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := floats.Span(make([]float64, n), lo, hi)
	out[0], out[n-1] = lo, hi
	return out
}

// BinAreas returns the trapezoidal area of each of the len(x)-1 bins.
func BinAreas(x, y []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := range out {
		out[i] = 0.5 * (y[i] + y[i+1]) * (x[i+1] - x[i])
	}
	return out
}

// Trapezoid integrates y over x.
func Trapezoid(x, y []float64) float64 {
	return floats.Sum(BinAreas(x, y))
}

// IsEvenlySpaced reports whether x has constant spacing within a relative
// tolerance of the mean spacing.
func IsEvenlySpaced(x []float64, relTol float64) bool {
	if len(x) < 3 {
		return len(x) == 2 && x[1] > x[0]
	}
	step := (x[len(x)-1] - x[0]) / float64(len(x)-1)
	if step <= 0 {
		return false
	}
	for i := 1; i < len(x); i++ {
		if math.Abs((x[i]-x[i-1])-step) > relTol*step {
			return false
		}
	}
	return true
}

// ZeroIndex returns the index of x = 0 on n evenly spaced points over
// [lo, hi]. ok is false when 0 lies outside the range or between two points.
func ZeroIndex(lo, hi float64, n int) (idx int, ok bool) {
	if n < 2 || !(hi > lo) || lo > 0 || hi < 0 {
		return 0, false
	}
	pos := -lo / ((hi - lo) / float64(n-1))
	r := math.Round(pos)
	if math.Abs(pos-r) > 1e-6 {
		return 0, false
	}
	return int(r), true
}

// IsStrictlyIncreasing reports whether x[i] < x[i+1] for all i.
func IsStrictlyIncreasing(x []float64) bool {
	for i := 1; i < len(x); i++ {
		if !(x[i] > x[i-1]) {
			return false
		}
	}
	return true
}
