package convolution

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/numeric"
)

func normalPDF(lo, hi float64, n int, sigma float64) domain.PDF {
	x := numeric.Linspace(lo, hi, n)
	d := make([]float64, n)
	dist := distuv.Normal{Mu: 0, Sigma: sigma}
	for i, v := range x {
		d[i] = dist.Prob(v)
	}
	return domain.PDF{X: x, Density: d}
}

func variance(p domain.PDF) float64 {
	y := make([]float64, p.Len())
	for i, x := range p.X {
		y[i] = x * x * p.Density[i]
	}
	return numeric.Trapezoid(p.X, y)
}

func TestConvolve_StandardNormalScenario(t *testing.T) {
	base := normalPDF(-5, 5, 20001, 1)
	e := New(Options{})

	res, err := e.Propagate(context.Background(), base, 1)
	require.NoError(t, err)
	require.Len(t, res.PDFs, 2)

	day2 := res.PDFs[1]
	assert.Less(t, day2.Peak(), base.Peak())
	assert.InDelta(t, 1/math.Sqrt(4*math.Pi), day2.Peak(), 1e-4)

	require.Equal(t, 20001, day2.Len())
	assert.Equal(t, -5.0, day2.X[0])
	assert.Equal(t, 5.0, day2.X[20000])
	assert.Equal(t, base.X, day2.X)
}

func TestPropagate_Composability(t *testing.T) {
	base := normalPDF(-8, 8, 1601, 0.6)
	e := New(Options{})
	ctx := context.Background()

	once, err := e.Propagate(ctx, base, 5)
	require.NoError(t, err)

	partial, err := e.Propagate(ctx, base, 2)
	require.NoError(t, err)
	twice, err := e.Extend(ctx, partial, 3)
	require.NoError(t, err)

	require.Equal(t, once.Days(), twice.Days())
	a, ok := once.Day(6)
	require.True(t, ok)
	b, ok := twice.Day(6)
	require.True(t, ok)
	for i := range a.Density {
		assert.InDelta(t, a.Density[i], b.Density[i], 1e-12)
	}
}

func TestPropagate_VarianceGrowsLinearly(t *testing.T) {
	base := normalPDF(-10, 10, 2001, 0.5)
	res, err := New(Options{}).Propagate(context.Background(), base, 3)
	require.NoError(t, err)

	for day := 1; day <= 4; day++ {
		p, ok := res.Day(day)
		require.True(t, ok)
		assert.InDelta(t, 1.0, p.Mass(), 1e-6, "day %d", day)
		assert.InDelta(t, 0.25*float64(day), variance(p), 1e-3, "day %d", day)
	}
}

func TestConvolve_FFTMatchesDirect(t *testing.T) {
	a := normalPDF(-4, 4, 401, 0.7)
	b := normalPDF(-4, 4, 401, 1.1)
	// make a asymmetric
	for i := range a.Density {
		a.Density[i] *= 1 + 0.3*math.Tanh(a.X[i])
	}

	fft, err := New(Options{Method: MethodFFT}).Convolve(a, b)
	require.NoError(t, err)
	direct, err := New(Options{Method: MethodDirect}).Convolve(a, b)
	require.NoError(t, err)

	for i := range fft.Density {
		assert.InDelta(t, direct.Density[i], fft.Density[i], 1e-10)
	}
}

func TestConvolve_AsymmetricGridAlignment(t *testing.T) {
	// grid [-3, 5]: a point mass near 1 convolved with one near 2 lands near 3
	x := numeric.Linspace(-3, 5, 801)
	spike := func(at float64) domain.PDF {
		d := make([]float64, len(x))
		dist := distuv.Normal{Mu: at, Sigma: 0.05}
		for i, v := range x {
			d[i] = dist.Prob(v)
		}
		return domain.PDF{X: x, Density: d}
	}

	out, err := New(Options{}).Convolve(spike(1), spike(2))
	require.NoError(t, err)

	peak := 0
	for i := range out.Density {
		if out.Density[i] > out.Density[peak] {
			peak = i
		}
	}
	assert.InDelta(t, 3.0, out.X[peak], 0.011)
}

func TestConvolve_Errors(t *testing.T) {
	e := New(Options{})
	base := normalPDF(-1, 1, 11, 1)

	_, err := e.Convolve(base, normalPDF(-1, 1, 12, 1))
	assert.ErrorIs(t, err, ErrGridMismatch)

	_, err = e.Convolve(base, normalPDF(-2, 2, 11, 1))
	assert.ErrorIs(t, err, ErrGridMismatch)

	uneven := base.Clone()
	uneven.X[3] += 0.05
	_, err = e.Convolve(uneven, uneven)
	assert.ErrorIs(t, err, ErrUnevenGrid)

	positive := normalPDF(1, 2, 11, 1)
	_, err = e.Convolve(positive, positive)
	assert.ErrorIs(t, err, ErrGridExcludesZero)

	// 0 sits between two points of an even-count symmetric grid
	offGrid := normalPDF(-3, 3, 6000, 0.02)
	_, err = e.Convolve(offGrid, offGrid)
	assert.ErrorIs(t, err, ErrGridExcludesZero)
	_, err = e.Propagate(context.Background(), offGrid, 2)
	assert.ErrorIs(t, err, ErrGridExcludesZero)

	_, err = e.Convolve(domain.PDF{X: []float64{0}, Density: []float64{1}}, domain.PDF{})
	assert.ErrorIs(t, err, ErrEmptyPDF)

	_, err = e.Propagate(context.Background(), base, -1)
	assert.Error(t, err)
}

func TestPropagate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}).Propagate(ctx, normalPDF(-1, 1, 11, 1), 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPropagate_ZeroDays(t *testing.T) {
	base := normalPDF(-1, 1, 11, 1)
	res, err := New(Options{}).Propagate(context.Background(), base, 0)
	require.NoError(t, err)
	require.Len(t, res.PDFs, 1)
	assert.Equal(t, base.Density, res.PDFs[0].Density)
}
