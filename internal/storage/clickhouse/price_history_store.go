package clickhouse

import (
	"context"
	"fmt"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/storage"
)

const selectPoints = `SELECT asset, timestamp_ms, close FROM price_history`

// PriceHistoryStore reads and appends daily closes. MergeTree keeps no unique
// key, so InsertBulk looks for existing keys before sending.
type PriceHistoryStore struct {
	conn *Conn
}

var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// InsertBulk sends the batch as one block, or nothing when any
// (asset, timestamp) key is repeated or already stored.
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	byAsset, err := storage.GroupPoints(points)
	if err != nil {
		return err
	}
	for asset, stamps := range byAsset {
		var n uint64
		err := s.conn.QueryRow(ctx,
			`SELECT count() FROM price_history WHERE asset = ? AND timestamp_ms IN ?`,
			asset, stamps,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("look up stored %s prices: %w", asset, err)
		}
		if n > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_history (asset, timestamp_ms, close)`)
	if err != nil {
		return fmt.Errorf("prepare price batch: %w", err)
	}
	for _, p := range points {
		if err := batch.Append(p.Asset, p.TimestampMs, p.Close); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append %s@%d: %w", p.Asset, p.TimestampMs, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send price batch: %w", err)
	}
	return nil
}

func (s *PriceHistoryStore) GetByAsset(ctx context.Context, asset string) ([]*domain.PricePoint, error) {
	return s.query(ctx, selectPoints+` WHERE asset = ? ORDER BY timestamp_ms`, asset)
}

// GetByTimeRange is inclusive at both ends.
func (s *PriceHistoryStore) GetByTimeRange(ctx context.Context, asset string, start, end int64) ([]*domain.PricePoint, error) {
	return s.query(ctx,
		selectPoints+` WHERE asset = ? AND timestamp_ms BETWEEN ? AND ? ORDER BY timestamp_ms`,
		asset, start, end,
	)
}

func (s *PriceHistoryStore) ListAssets(ctx context.Context) ([]string, error) {
	var assets []string
	if err := s.conn.Select(ctx, &assets, `SELECT DISTINCT asset FROM price_history ORDER BY asset`); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

func (s *PriceHistoryStore) query(ctx context.Context, q string, args ...any) ([]*domain.PricePoint, error) {
	rows, err := s.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()
	return scanPricePoints(rows)
}

func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var out []*domain.PricePoint
	for rows.Next() {
		p := new(domain.PricePoint)
		if err := rows.Scan(&p.Asset, &p.TimestampMs, &p.Close); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read price rows: %w", err)
	}
	return out, nil
}
