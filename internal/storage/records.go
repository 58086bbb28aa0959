package storage

import (
	"cmp"
	"slices"

	"kelly-curve-lab/internal/domain"
)

// CloneRecord returns a deep copy of r without DailyPDFs, the form every
// store persists.
func CloneRecord(r *domain.CurveRecord) *domain.CurveRecord {
	c := *r
	c.Utilizations = slices.Clone(r.Utilizations)
	c.Premiums = slices.Clone(r.Premiums)
	c.FittedPremiums = slices.Clone(r.FittedPremiums)
	c.DailyPDFs = nil
	return &c
}

// ValidateRecord checks the fields every store requires.
func ValidateRecord(r *domain.CurveRecord) error {
	if r == nil || r.CurveID == "" || r.Asset == "" {
		return ErrInvalidInput
	}
	if len(r.Utilizations) != len(r.Premiums) || len(r.FittedPremiums) != len(r.Premiums) {
		return ErrInvalidInput
	}
	return nil
}

// SortRecords orders records by CreatedAtMs, then CurveID.
func SortRecords(rs []*domain.CurveRecord) {
	slices.SortFunc(rs, func(a, b *domain.CurveRecord) int {
		return cmp.Or(
			cmp.Compare(a.CreatedAtMs, b.CreatedAtMs),
			cmp.Compare(a.CurveID, b.CurveID),
		)
	})
}

// GroupPoints checks a price batch and returns its timestamps per asset.
// Nil points and empty assets are ErrInvalidInput; a repeated
// (asset, timestamp) pair is ErrDuplicateKey.
func GroupPoints(points []*domain.PricePoint) (map[string][]int64, error) {
	byAsset := make(map[string][]int64)
	for _, p := range points {
		if p == nil || p.Asset == "" {
			return nil, ErrInvalidInput
		}
		byAsset[p.Asset] = append(byAsset[p.Asset], p.TimestampMs)
	}
	for _, ts := range byAsset {
		slices.Sort(ts)
		for i := 1; i < len(ts); i++ {
			if ts[i] == ts[i-1] {
				return nil, ErrDuplicateKey
			}
		}
	}
	return byAsset, nil
}
