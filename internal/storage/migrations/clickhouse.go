package migrations

import (
	"context"
	"fmt"

	chstore "kelly-curve-lab/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database when missing, then
// applies every embedded ClickHouse statement. The returned connection
// points at that database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	db, err := chstore.Database(dsn)
	if err != nil {
		return nil, err
	}
	migs, err := Load("clickhouse")
	if err != nil {
		return nil, err
	}
	if err := createDatabase(ctx, dsn, db); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := applyClickhouse(ctx, conn, migs); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func createDatabase(ctx context.Context, dsn, db string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return err
	}
	defer admin.Close()

	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS `"+db+"`"); err != nil {
		return fmt.Errorf("create database %s: %w", db, err)
	}
	return nil
}

// applyClickhouse runs statements one by one; the native protocol takes a
// single statement per Exec.
func applyClickhouse(ctx context.Context, conn *chstore.Conn, migs []Migration) error {
	for _, m := range migs {
		stmts, err := Statements(m.SQL)
		if err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		for n, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration %s statement %d: %w", m.Name, n+1, err)
			}
		}
	}
	return nil
}
