package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/storage"
	"kelly-curve-lab/internal/storage/clickhouse"
)

func TestPriceHistoryStore(t *testing.T) {
	store := clickhouse.NewPriceHistoryStore(newTestConn(t))
	ctx := context.Background()

	points := []*domain.PricePoint{
		{Asset: "ETH", TimestampMs: 86400000, Close: 2010.5},
		{Asset: "ETH", TimestampMs: 0, Close: 2000},
		{Asset: "ETH", TimestampMs: 172800000, Close: 1990.25},
		{Asset: "BTC", TimestampMs: 0, Close: 42000},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	t.Run("by asset ordered", func(t *testing.T) {
		got, err := store.GetByAsset(ctx, "ETH")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, int64(0), got[0].TimestampMs)
		assert.Equal(t, 2000.0, got[0].Close)
		assert.Equal(t, int64(172800000), got[2].TimestampMs)
	})

	t.Run("time range inclusive", func(t *testing.T) {
		got, err := store.GetByTimeRange(ctx, "ETH", 0, 86400000)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("list assets", func(t *testing.T) {
		assets, err := store.ListAssets(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"BTC", "ETH"}, assets)
	})

	t.Run("duplicate", func(t *testing.T) {
		err := store.InsertBulk(ctx, []*domain.PricePoint{{Asset: "ETH", TimestampMs: 0, Close: 1}})
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})
}
