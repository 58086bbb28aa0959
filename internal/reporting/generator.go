package reporting

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/storage"
)

// quoteDecimals is the precision of currency-quoted premiums.
const quoteDecimals = 2

// Generator produces reports from stored curve records.
type Generator struct {
	store    storage.CurveRecordStore
	failures []string
	now      func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(store storage.CurveRecordStore) *Generator {
	return &Generator{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithFailures adds batch failures to include in the report.
func (g *Generator) WithFailures(failures []string) *Generator {
	g.failures = append(g.failures, failures...)
	return g
}

// Generate produces a report over every stored record.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	records, err := g.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return g.FromRecords(records), nil
}

// FromRecords builds a report without touching the store.
func (g *Generator) FromRecords(records []*domain.CurveRecord) *Report {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b *domain.CurveRecord) int {
		return cmp.Or(
			cmp.Compare(a.Asset, b.Asset),
			cmp.Compare(a.Label, b.Label),
			cmp.Compare(a.CurveID, b.CurveID),
		)
	})

	assets := make(map[string]struct{})
	curves := make([]CurveRow, 0, len(sorted))
	dists := make([]DistributionRow, 0, len(sorted))
	for _, r := range sorted {
		assets[r.Asset] = struct{}{}
		curves = append(curves, curveRow(r))
		dists = append(dists, distributionRow(r))
	}

	return &Report{
		GeneratedAt:   g.now(),
		CurveCount:    len(sorted),
		AssetCount:    len(assets),
		DataSummary:   dataSummary(sorted),
		Curves:        curves,
		Distributions: dists,
		Failures:      slices.Clone(g.failures),
	}
}

func dataSummary(records []*domain.CurveRecord) DataSummary {
	s := DataSummary{TotalCurves: len(records)}
	for i, r := range records {
		if r.Type == domain.OptionPut {
			s.PutCurves++
		} else {
			s.CallCurves++
		}
		if i == 0 || r.StartMs < s.DateRangeStart {
			s.DateRangeStart = r.StartMs
		}
		if i == 0 || r.EndMs > s.DateRangeEnd {
			s.DateRangeEnd = r.EndMs
		}
	}
	return s
}

func curveRow(r *domain.CurveRecord) CurveRow {
	row := CurveRow{
		CurveID:        r.CurveID,
		Asset:          r.Asset,
		Label:          r.Label,
		Type:           string(r.Type),
		Strike:         r.StrikeFraction,
		ExpirationDays: r.ExpirationDays,
		CurrentPrice:   r.CurrentPrice,
		Family:         string(r.Params.Family),
		A:              r.Params.A,
		B:              r.Params.B,
		C:              r.Params.C,
		D:              r.Params.D,
		LowerBound:     r.LowerBound,
		UpperBound:     r.UpperBound,
	}
	if n := len(r.Utilizations); n > 0 && len(r.FittedPremiums) == n {
		row.MinUtilization = r.Utilizations[0]
		row.MaxUtilization = r.Utilizations[n-1]
		row.PremiumAtMin = r.FittedPremiums[0]
		row.PremiumAtMax = r.FittedPremiums[n-1]
	}
	row.QuotedAtMin = Quote(row.PremiumAtMin, r.CurrentPrice)
	row.QuotedAtMax = Quote(row.PremiumAtMax, r.CurrentPrice)
	return row
}

func distributionRow(r *domain.CurveRecord) DistributionRow {
	d := r.Distribution
	return DistributionRow{
		CurveID:   r.CurveID,
		Center:    string(d.Center),
		Loc:       d.Loc,
		Scale:     d.Scale,
		Skew:      d.Skew,
		DoF:       d.DoF,
		TailLeft:  d.TailLeft,
		TailRight: d.TailRight,
		Samples:   d.SampleCount,
	}
}

// Quote converts a premium fraction into price currency, rounded half away
// from zero to cents.
func Quote(premium, price float64) decimal.Decimal {
	return decimal.NewFromFloat(premium).Mul(decimal.NewFromFloat(price)).Round(quoteDecimals)
}
