package memory

import (
	"context"
	"sync"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/storage"
)

// CurveRecordStore is an in-memory implementation of storage.CurveRecordStore.
type CurveRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CurveRecord // keyed by curve_id
}

// NewCurveRecordStore creates a new in-memory curve record store.
func NewCurveRecordStore() *CurveRecordStore {
	return &CurveRecordStore{
		data: make(map[string]*domain.CurveRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if curve_id exists.
func (s *CurveRecordStore) Insert(_ context.Context, r *domain.CurveRecord) error {
	if err := storage.ValidateRecord(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.CurveID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.CurveID] = storage.CloneRecord(r)
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *CurveRecordStore) GetByID(_ context.Context, curveID string) (*domain.CurveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[curveID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return storage.CloneRecord(r), nil
}

// GetByAsset retrieves all records for an asset.
func (s *CurveRecordStore) GetByAsset(_ context.Context, asset string) ([]*domain.CurveRecord, error) {
	return s.filter(func(r *domain.CurveRecord) bool { return r.Asset == asset }), nil
}

// GetAll retrieves all records.
func (s *CurveRecordStore) GetAll(_ context.Context) ([]*domain.CurveRecord, error) {
	return s.filter(func(*domain.CurveRecord) bool { return true }), nil
}

func (s *CurveRecordStore) filter(keep func(*domain.CurveRecord) bool) []*domain.CurveRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CurveRecord
	for _, r := range s.data {
		if keep(r) {
			result = append(result, storage.CloneRecord(r))
		}
	}
	storage.SortRecords(result)
	return result
}

var _ storage.CurveRecordStore = (*CurveRecordStore)(nil)
