package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/storage"
)

// PriceHistoryStore keeps one timestamp-sorted series per asset.
type PriceHistoryStore struct {
	mu     sync.RWMutex
	series map[string][]domain.PricePoint
}

var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{series: make(map[string][]domain.PricePoint)}
}

// InsertBulk is all-or-nothing: any key already stored or repeated in the
// batch rejects the whole batch.
func (s *PriceHistoryStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	byAsset, err := storage.GroupPoints(points)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for asset, stamps := range byAsset {
		for _, ts := range stamps {
			if _, found := s.search(asset, ts); found {
				return storage.ErrDuplicateKey
			}
		}
	}
	for _, p := range points {
		s.series[p.Asset] = append(s.series[p.Asset], *p)
	}
	for asset := range byAsset {
		slices.SortFunc(s.series[asset], func(a, b domain.PricePoint) int {
			return cmp.Compare(a.TimestampMs, b.TimestampMs)
		})
	}
	return nil
}

func (s *PriceHistoryStore) GetByAsset(_ context.Context, asset string) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyPoints(s.series[asset]), nil
}

// GetByTimeRange returns points with start <= timestamp <= end.
func (s *PriceHistoryStore) GetByTimeRange(_ context.Context, asset string, start, end int64) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if start > end {
		return nil, nil
	}
	lo, _ := s.search(asset, start)
	hi, found := s.search(asset, end)
	if found {
		hi++
	}
	return copyPoints(s.series[asset][lo:hi]), nil
}

func (s *PriceHistoryStore) ListAssets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assets := make([]string, 0, len(s.series))
	for asset := range s.series {
		assets = append(assets, asset)
	}
	slices.Sort(assets)
	return assets, nil
}

// search is a binary search over the asset's series. Caller holds mu.
func (s *PriceHistoryStore) search(asset string, ts int64) (int, bool) {
	return slices.BinarySearchFunc(s.series[asset], ts, func(p domain.PricePoint, t int64) int {
		return cmp.Compare(p.TimestampMs, t)
	})
}

func copyPoints(src []domain.PricePoint) []*domain.PricePoint {
	if len(src) == 0 {
		return nil
	}
	out := make([]*domain.PricePoint, len(src))
	for i := range src {
		p := src[i]
		out[i] = &p
	}
	return out
}
