package kelly

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbabilities(t *testing.T) {
	p, err := Probabilities([]float64{0, 1, 2, 3}, []float64{0, 1, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1, 0.5}, p)
}

func TestProbabilities_FirstBinIsZero(t *testing.T) {
	p, err := Probabilities([]float64{-1, 0, 1}, []float64{5, 5, 5})
	require.NoError(t, err)
	assert.Equal(t, 0.0, p[0])
}

func TestProbabilities_Errors(t *testing.T) {
	_, err := Probabilities([]float64{0, 1}, []float64{1})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Probabilities([]float64{0}, []float64{1})
	assert.ErrorIs(t, err, ErrEmptyDistribution)
}

func TestGrowth_Vectorized(t *testing.T) {
	p := []float64{0.6, 0.4}
	odds := []float64{1, -1}
	bets := []float64{0, 0.1, 0.2, 0.5}

	g, err := Growth(p, odds, bets)
	require.NoError(t, err)
	require.Len(t, g, len(bets))
	assert.Equal(t, 0.0, g[0])
	for i, b := range bets {
		want := 0.6*math.Log(1+b) + 0.4*math.Log(1-b)
		assert.InDelta(t, want, g[i], 1e-12)
	}

	d, err := GrowthDerivative(p, odds, bets)
	require.NoError(t, err)
	for i, b := range bets {
		want := 0.6/(1+b) - 0.4/(1-b)
		assert.InDelta(t, want, d[i], 1e-12)
	}
}

func TestDerivativeSignAtZero(t *testing.T) {
	favorable := DerivativeAt([]float64{0.6, 0.4}, []float64{1, -1}, 0)
	unfavorable := DerivativeAt([]float64{0.4, 0.6}, []float64{1, -1}, 0)
	assert.Greater(t, favorable, 0.0)
	assert.Less(t, unfavorable, 0.0)
	assert.InDelta(t, ExpectedEdge([]float64{0.6, 0.4}, []float64{1, -1}), favorable, 1e-15)
}

func TestGrowth_RuinIsNegativeInfinity(t *testing.T) {
	assert.True(t, math.IsInf(GrowthAt([]float64{0.5, 0.5}, []float64{1, -1}, 1), -1))
	// zero-probability outcomes are ignored
	assert.False(t, math.IsInf(GrowthAt([]float64{1, 0}, []float64{1, -2}, 1), -1))
}

func TestOptimalBet_CoinFlipIsZero(t *testing.T) {
	bet, err := OptimalBet([]float64{0.5, 0.5}, []float64{1, -1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, bet)
}

func TestOptimalBet_Favorable(t *testing.T) {
	// classic Kelly: f* = p - q for even odds
	bet, err := OptimalBet([]float64{0.6, 0.4}, []float64{1, -1})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, bet, 1e-6)

	// 2-to-1 payout at 40%: f* = (b*p - q) / b = (0.8 - 0.6) / 2
	bet, err = OptimalBet([]float64{0.4, 0.6}, []float64{2, -1})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, bet, 1e-6)
}

func TestOptimalBet_LengthMismatch(t *testing.T) {
	_, err := OptimalBet([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
