package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"kelly-curve-lab/internal/config"
	"kelly-curve-lab/internal/dataset"
	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/publish"
	"kelly-curve-lab/internal/storage"
	chstore "kelly-curve-lab/internal/storage/clickhouse"
	"kelly-curve-lab/internal/storage/memory"
	"kelly-curve-lab/internal/storage/migrations"
	pgstore "kelly-curve-lab/internal/storage/postgres"
	redisstore "kelly-curve-lab/internal/storage/redis"
)

// backends holds the configured stores and publisher.
type backends struct {
	prices    storage.PriceHistoryStore
	curves    storage.CurveRecordStore
	publisher publish.Publisher
	closers   []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends connects the stores selected by cfg, applying migrations.
// When pricesPath is set its price table is imported into the price store.
func openBackends(ctx context.Context, cfg *config.Config, pricesPath string, log zerolog.Logger) (*backends, error) {
	b := &backends{}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	switch cfg.Storage.Prices {
	case "clickhouse":
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		b.closers = append(b.closers, func() { conn.Close() })
		b.prices = chstore.NewPriceHistoryStore(conn)
	default:
		b.prices = memory.NewPriceHistoryStore()
	}

	switch cfg.Storage.Curves {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN, cfg.Storage.PostgresConns)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, err
		}
		b.curves = pgstore.NewCurveRecordStore(pool)
	case "redis":
		client, err := redisstore.NewClient(ctx, redisstore.Options{Addr: cfg.Storage.RedisAddr})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { client.Close() })
		b.curves = redisstore.NewCurveRecordStore(client, cfg.Storage.RedisPrefix)
	default:
		b.curves = memory.NewCurveRecordStore()
	}

	if len(cfg.Publish.Brokers) > 0 {
		pub, err := publish.NewKafkaPublisher(publish.KafkaOptions{
			Brokers: cfg.Publish.Brokers,
			Topic:   cfg.Publish.Topic,
		})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() {
			if err := pub.Close(); err != nil {
				log.Warn().Err(err).Msg("close kafka publisher")
			}
		})
		b.publisher = pub
	}

	if pricesPath != "" {
		f, err := os.Open(pricesPath)
		if err != nil {
			return nil, fmt.Errorf("open prices: %w", err)
		}
		n, err := dataset.ImportPrices(ctx, b.prices, f)
		f.Close()
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			// already loaded by an earlier run
			log.Warn().Str("path", pricesPath).Msg("prices already present, import skipped")
		case err != nil:
			return nil, fmt.Errorf("import %s: %w", pricesPath, err)
		default:
			log.Info().Str("path", pricesPath).Int("points", n).Msg("prices imported")
		}
	}

	log.Info().
		Str("prices", cfg.Storage.Prices).
		Str("curves", cfg.Storage.Curves).
		Bool("publish", b.publisher != nil).
		Msg("backends ready")
	ok = true
	return b, nil
}

func readRequests(path string) ([]domain.CurveRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open requests: %w", err)
	}
	defer f.Close()
	return dataset.ReadRequests(f)
}
