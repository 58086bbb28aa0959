package migrations

import (
	"context"
	"fmt"

	"kelly-curve-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded curve_records schema inside one
// transaction. Files use IF NOT EXISTS so reruns change nothing.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	migs, err := Load("postgres")
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migrations: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range migs {
		// simple protocol: a file may hold several statements
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}
