// Package storage defines the append-only stores for price history and curve
// records together with their shared validation.
package storage

import (
	"context"
	"errors"

	"kelly-curve-lab/internal/domain"
)

// Both stores are append-only: rows are written once and never updated.
var (
	ErrNotFound     = errors.New("storage: record not found")
	ErrDuplicateKey = errors.New("storage: key already stored")
	ErrInvalidInput = errors.New("storage: invalid input")
)

// PriceHistoryStore provides access to price_history storage.
type PriceHistoryStore interface {
	// InsertBulk adds multiple points atomically. Fails entire batch on duplicate (asset, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByAsset retrieves all points for an asset, ordered by timestamp ASC.
	GetByAsset(ctx context.Context, asset string) ([]*domain.PricePoint, error)

	// GetByTimeRange retrieves points for an asset within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, asset string, start, end int64) ([]*domain.PricePoint, error)

	// ListAssets returns all assets with at least one point, sorted.
	ListAssets(ctx context.Context) ([]string, error)
}

// CurveRecordStore provides access to curve_records storage.
// DailyPDFs are not persisted.
type CurveRecordStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if curve_id exists.
	Insert(ctx context.Context, r *domain.CurveRecord) error

	// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, curveID string) (*domain.CurveRecord, error)

	// GetByAsset retrieves all records for an asset, ordered by created_at_ms ASC, curve_id ASC.
	GetByAsset(ctx context.Context, asset string) ([]*domain.CurveRecord, error)

	// GetAll retrieves all records, ordered by created_at_ms ASC, curve_id ASC.
	GetAll(ctx context.Context) ([]*domain.CurveRecord, error)
}
