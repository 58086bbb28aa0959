package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelly-curve-lab/internal/storage/memory"
	"kelly-curve-lab/internal/training"
)

func TestEngine_FitWindow(t *testing.T) {
	store := memory.NewPriceHistoryStore()
	start, end := seedPrices(t, store, "BTC", 400, 5)
	e := testEngine(t, store, nil)

	fit, model, err := e.FitWindow(context.Background(), "BTC", start, end)
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Equal(t, 400, fit.SampleCount)

	_, _, err = e.FitWindow(context.Background(), "ETH", start, end)
	assert.True(t, errors.Is(err, training.ErrInsufficientPrices))
}

func TestEngine_PricePDF(t *testing.T) {
	store := memory.NewPriceHistoryStore()
	start, end := seedPrices(t, store, "BTC", 400, 9)
	e := testEngine(t, store, nil)

	req := baseRequest(start, end)
	one, _, err := e.PricePDF(context.Background(), req, 1)
	require.NoError(t, err)
	ten, fit, err := e.PricePDF(context.Background(), req, 10)
	require.NoError(t, err)
	require.NotNil(t, fit)

	assert.InDelta(t, 1.0, one.Mass(), 0.02)
	assert.InDelta(t, 1.0, ten.Mass(), 0.02)
	// spreading over more days lowers the peak
	assert.Greater(t, one.Peak(), ten.Peak())
	for i := 1; i < ten.Len(); i++ {
		assert.Greater(t, ten.X[i], ten.X[i-1])
	}

	_, _, err = e.PricePDF(context.Background(), req, 31)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}
