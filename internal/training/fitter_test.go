package training

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelly-curve-lab/internal/distribution"
	"kelly-curve-lab/internal/domain"
)

func syntheticSeries(t *testing.T, n int, seed uint64) domain.ReturnSeries {
	t.Helper()
	truth, err := distribution.NewSkewedT(distribution.Params{Loc: 0.0005, Scale: 0.02, Skew: 0.95, DoF: 4})
	require.NoError(t, err)
	return domain.ReturnSeries{
		Asset:  "BTC",
		Values: truth.Sample(rand.New(rand.NewPCG(seed, seed+1)), n),
	}
}

func TestFitter_Fit_Invariants(t *testing.T) {
	for _, center := range []domain.CenterType{domain.CenterSkewedT, domain.CenterStudentT} {
		t.Run(string(center), func(t *testing.T) {
			f := New(Options{Center: center, Logger: zerolog.Nop()})
			fit, model, err := f.Fit(syntheticSeries(t, 2000, 42))
			require.NoError(t, err)
			require.NotNil(t, model)

			assert.Equal(t, center, fit.Center)
			assert.Greater(t, fit.Scale, 0.0)
			assert.Greater(t, fit.DoF, 2.0)
			assert.Greater(t, fit.Skew, 0.0)
			assert.Greater(t, fit.TailLeft, 0.0)
			assert.Greater(t, fit.TailRight, 0.0)
			assert.False(t, math.IsNaN(fit.TailLeft))
			assert.False(t, math.IsNaN(fit.TailRight))
			assert.Equal(t, 0.1, fit.LeftThreshold)
			assert.Equal(t, 0.1, fit.RightThreshold)
			assert.Equal(t, 2000, fit.SampleCount)
			assert.InDelta(t, 0.02, fit.Scale, 0.005)
		})
	}
}

func TestFitter_Fit_RebuildsFromRecord(t *testing.T) {
	f := New(Options{LeftThreshold: 0.05, RightThreshold: 0.15})
	fit, model, err := f.Fit(syntheticSeries(t, 1500, 7))
	require.NoError(t, err)

	rebuilt, err := distribution.FromFit(*fit)
	require.NoError(t, err)
	for _, x := range []float64{-0.1, -0.02, 0, 0.03, 0.12} {
		assert.InDelta(t, model.PDF(x), rebuilt.PDF(x), 1e-9)
	}
}

func TestFitter_Fit_InsufficientTailData(t *testing.T) {
	// two clusters leave nothing strictly beyond either empirical threshold
	values := make([]float64, 50)
	for i := range values {
		values[i] = 0.01
		if i%2 == 0 {
			values[i] = -0.01
		}
	}
	f := New(Options{})
	_, _, err := f.Fit(domain.ReturnSeries{Asset: "ETH", Values: values})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientTailData)
}

func TestFitter_Fit_InvalidThreshold(t *testing.T) {
	f := New(Options{LeftThreshold: 0.7})
	_, _, err := f.Fit(syntheticSeries(t, 200, 1))
	assert.ErrorIs(t, err, distribution.ErrInvalidParameter)
}

func TestLogReturns(t *testing.T) {
	points := []*domain.PricePoint{
		{Asset: "BTC", TimestampMs: 3000, Close: 121},
		{Asset: "BTC", TimestampMs: 1000, Close: 100},
		{Asset: "BTC", TimestampMs: 2000, Close: 110},
	}
	series, err := LogReturns(points)
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())
	assert.InDelta(t, math.Log(1.1), series.Values[0], 1e-12)
	assert.InDelta(t, math.Log(1.1), series.Values[1], 1e-12)
	assert.Equal(t, int64(1000), series.StartMs)
	assert.Equal(t, int64(3000), series.EndMs)
	assert.Equal(t, "BTC", series.Asset)
}

func TestLogReturns_Errors(t *testing.T) {
	_, err := LogReturns([]*domain.PricePoint{{Asset: "BTC", Close: 1}})
	assert.ErrorIs(t, err, ErrInsufficientPrices)

	_, err = LogReturns([]*domain.PricePoint{
		{Asset: "BTC", TimestampMs: 1, Close: 1},
		{Asset: "BTC", TimestampMs: 2, Close: 0},
	})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = LogReturns([]*domain.PricePoint{
		{Asset: "BTC", TimestampMs: 1, Close: 40000},
		{Asset: "ETH", TimestampMs: 2, Close: 2000},
		{Asset: "BTC", TimestampMs: 3, Close: 41000},
	})
	assert.ErrorIs(t, err, ErrInvalidPrice)
}
