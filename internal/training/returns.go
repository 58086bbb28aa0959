package training

import (
	"fmt"
	"math"
	"sort"

	"kelly-curve-lab/internal/domain"
)

// LogReturns derives consecutive natural log-returns from price points.
// Points are sorted by timestamp first; all must belong to the same asset.
func LogReturns(points []*domain.PricePoint) (domain.ReturnSeries, error) {
	if len(points) < 2 {
		return domain.ReturnSeries{}, fmt.Errorf("%w: have %d prices", ErrInsufficientPrices, len(points))
	}

	sorted := make([]*domain.PricePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TimestampMs < sorted[j].TimestampMs
	})

	values := make([]float64, 0, len(sorted)-1)
	for i, p := range sorted {
		if p.Asset != sorted[0].Asset {
			return domain.ReturnSeries{}, fmt.Errorf("%w: %s point among %s prices", ErrInvalidPrice, p.Asset, sorted[0].Asset)
		}
		if !(p.Close > 0) || math.IsInf(p.Close, 0) {
			return domain.ReturnSeries{}, fmt.Errorf("%w: %s at %d: %g", ErrInvalidPrice, p.Asset, p.TimestampMs, p.Close)
		}
		if i > 0 {
			values = append(values, math.Log(p.Close/sorted[i-1].Close))
		}
	}

	return domain.ReturnSeries{
		Asset:   sorted[0].Asset,
		StartMs: sorted[0].TimestampMs,
		EndMs:   sorted[len(sorted)-1].TimestampMs,
		Values:  values,
	}, nil
}
