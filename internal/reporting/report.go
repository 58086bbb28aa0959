package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report summarizes a set of curve records.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	CurveCount  int
	AssetCount  int

	DataSummary DataSummary

	// Sorted by asset, label, curve_id
	Curves        []CurveRow
	Distributions []DistributionRow

	// Per-request failures of the batch that produced the records
	Failures []string
}

// DataSummary describes the training windows behind the curves.
type DataSummary struct {
	TotalCurves    int
	CallCurves     int
	PutCurves      int
	DateRangeStart int64 // Unix ms, earliest training window start
	DateRangeEnd   int64 // Unix ms, latest training window end
}

// CurveRow is one curve in the curves table. Premiums are fractions of the
// current price; Quoted* are the same premiums in price currency.
type CurveRow struct {
	CurveID        string
	Asset          string
	Label          string
	Type           string
	Strike         float64
	ExpirationDays int
	CurrentPrice   float64

	Family     string
	A, B, C, D float64

	LowerBound float64
	UpperBound float64

	MinUtilization float64
	MaxUtilization float64
	PremiumAtMin   float64 // fitted premium at MinUtilization
	PremiumAtMax   float64 // fitted premium at MaxUtilization

	QuotedAtMin decimal.Decimal
	QuotedAtMax decimal.Decimal
}

// DistributionRow lists the fitted return distribution of one curve.
type DistributionRow struct {
	CurveID   string
	Center    string
	Loc       float64
	Scale     float64
	Skew      float64
	DoF       float64
	TailLeft  float64
	TailRight float64
	Samples   int
}
