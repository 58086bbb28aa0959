package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/storage"
)

// CurveRecordStore implements storage.CurveRecordStore using PostgreSQL.
// Curve arrays are float8[] columns; the distribution fit is JSONB.
type CurveRecordStore struct {
	pool *Pool
}

// NewCurveRecordStore creates a new CurveRecordStore.
func NewCurveRecordStore(pool *Pool) *CurveRecordStore {
	return &CurveRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CurveRecordStore = (*CurveRecordStore)(nil)

const curveRecordColumns = `
	curve_id, asset, label, start_ms, end_ms,
	strike, expiration_days, current_price, option_type,
	family, a, b, c, d,
	utilizations, premiums, fitted_premiums,
	lower_bound, upper_bound, distribution, created_at_ms
`

// Insert adds a new record. Returns ErrDuplicateKey if curve_id exists.
func (s *CurveRecordStore) Insert(ctx context.Context, r *domain.CurveRecord) error {
	if err := storage.ValidateRecord(r); err != nil {
		return err
	}

	query := `
		INSERT INTO curve_records (` + curveRecordColumns + `) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17,
			$18, $19, $20, $21
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.CurveID, r.Asset, r.Label, r.StartMs, r.EndMs,
		r.StrikeFraction, r.ExpirationDays, r.CurrentPrice, string(r.Type),
		string(r.Params.Family), r.Params.A, r.Params.B, r.Params.C, r.Params.D,
		r.Utilizations, r.Premiums, r.FittedPremiums,
		r.LowerBound, r.UpperBound, r.Distribution, r.CreatedAtMs,
	)
	return storageError("insert curve record", err)
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *CurveRecordStore) GetByID(ctx context.Context, curveID string) (*domain.CurveRecord, error) {
	query := `SELECT ` + curveRecordColumns + ` FROM curve_records WHERE curve_id = $1`

	r, err := scanCurveRecord(s.pool.QueryRow(ctx, query, curveID))
	if err != nil {
		return nil, storageError("get curve record by id", err)
	}
	return r, nil
}

// GetByAsset retrieves all records for an asset.
func (s *CurveRecordStore) GetByAsset(ctx context.Context, asset string) ([]*domain.CurveRecord, error) {
	query := `
		SELECT ` + curveRecordColumns + `
		FROM curve_records
		WHERE asset = $1
		ORDER BY created_at_ms ASC, curve_id ASC
	`

	rows, err := s.pool.Query(ctx, query, asset)
	if err != nil {
		return nil, fmt.Errorf("get curve records by asset: %w", err)
	}
	defer rows.Close()

	return scanCurveRecords(rows)
}

// GetAll retrieves all records.
func (s *CurveRecordStore) GetAll(ctx context.Context) ([]*domain.CurveRecord, error) {
	query := `
		SELECT ` + curveRecordColumns + `
		FROM curve_records
		ORDER BY created_at_ms ASC, curve_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all curve records: %w", err)
	}
	defer rows.Close()

	return scanCurveRecords(rows)
}

// scanCurveRecord scans a single row.
func scanCurveRecord(row pgx.Row) (*domain.CurveRecord, error) {
	var (
		r          domain.CurveRecord
		optionType string
		family     string
	)
	err := row.Scan(
		&r.CurveID, &r.Asset, &r.Label, &r.StartMs, &r.EndMs,
		&r.StrikeFraction, &r.ExpirationDays, &r.CurrentPrice, &optionType,
		&family, &r.Params.A, &r.Params.B, &r.Params.C, &r.Params.D,
		&r.Utilizations, &r.Premiums, &r.FittedPremiums,
		&r.LowerBound, &r.UpperBound, &r.Distribution, &r.CreatedAtMs,
	)
	if err != nil {
		return nil, err
	}
	r.Type = domain.OptionType(optionType)
	r.Params.Family = domain.CurveFamily(family)
	return &r, nil
}

// scanCurveRecords scans multiple rows.
func scanCurveRecords(rows pgx.Rows) ([]*domain.CurveRecord, error) {
	var records []*domain.CurveRecord
	for rows.Next() {
		r, err := scanCurveRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan curve record row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate curve record rows: %w", err)
	}
	return records, nil
}
