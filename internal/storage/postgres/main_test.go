package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"kelly-curve-lab/internal/storage/migrations"
	"kelly-curve-lab/internal/storage/postgres"
)

// newTestPool starts a throwaway postgres, applies the embedded schema and
// registers teardown on t.
func newTestPool(t *testing.T) *postgres.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("container test")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("curves"),
		tcpostgres.WithUsername("kelly"),
		tcpostgres.WithPassword("kelly"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool))
	// second run must be a no-op
	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool))
	return pool
}
