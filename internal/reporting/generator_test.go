package reporting

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/storage/memory"
)

func testRecords() []*domain.CurveRecord {
	return []*domain.CurveRecord{
		{
			CurveID: "curve-eth", Asset: "ETH", Label: "train-6m", Type: domain.OptionPut,
			StartMs: 1688169600000, EndMs: 1703980800000,
			StrikeFraction: 0.9, ExpirationDays: 7, CurrentPrice: 2300,
			Params:         domain.FitParams{Family: domain.FamilyCosh, A: 0.01, B: 1, C: 2, D: 0.002},
			Utilizations:   []float64{0, 0.5, 0.9},
			Premiums:       []float64{0.002, 0.005, 0.02},
			FittedPremiums: []float64{0.002, 0.0071, 0.0191},
			LowerBound:     0, UpperBound: 1,
			Distribution: domain.DistributionFit{Center: domain.CenterSkewedT, Scale: 0.03, Skew: 0.9, DoF: 4, TailLeft: 2.5, TailRight: 3, SampleCount: 183},
			CreatedAtMs:  2,
		},
		{
			CurveID: "curve-btc", Asset: "BTC", Label: "train-1y", Type: domain.OptionCall,
			StartMs: 1672531200000, EndMs: 1703980800000,
			StrikeFraction: 1.1, ExpirationDays: 30, CurrentPrice: 42000,
			Params:         domain.FitParams{Family: domain.FamilyCosh, A: 0.02, B: 0.5, C: 1, D: 0.01},
			Utilizations:   []float64{0, 0.9},
			Premiums:       []float64{0.01, 0.03},
			FittedPremiums: []float64{0.01, 0.0305},
			LowerBound:     0.01, UpperBound: math.Inf(1),
			Distribution: domain.DistributionFit{Center: domain.CenterStudentT, Scale: 0.025, Skew: 1, DoF: 5, TailLeft: 3, TailRight: 3.2, SampleCount: 364},
			CreatedAtMs:  1,
		},
	}
}

func setupStore(t *testing.T) *memory.CurveRecordStore {
	store := memory.NewCurveRecordStore()
	for _, r := range testRecords() {
		if err := store.Insert(context.Background(), r); err != nil {
			t.Fatalf("Insert record failed: %v", err)
		}
	}
	return store
}

func TestGenerate_Deterministic(t *testing.T) {
	ctx := context.Background()
	fixedTime := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	fixedClock := func() time.Time { return fixedTime }

	var first string
	for run := 0; run < 5; run++ {
		report, err := NewGenerator(setupStore(t)).WithClock(fixedClock).Generate(ctx)
		if err != nil {
			t.Fatalf("Run %d: Generate failed: %v", run, err)
		}
		md := RenderMarkdown(report)
		if run == 0 {
			first = md
			continue
		}
		if md != first {
			t.Errorf("Run %d: markdown differs from first run", run)
		}
	}
}

func TestGenerate_Summary(t *testing.T) {
	fixedTime := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	report, err := NewGenerator(setupStore(t)).
		WithClock(func() time.Time { return fixedTime }).
		Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(fixedTime) {
		t.Errorf("Expected GeneratedAt %v, got %v", fixedTime, report.GeneratedAt)
	}
	if report.CurveCount != 2 || report.AssetCount != 2 {
		t.Errorf("Expected 2 curves over 2 assets, got %d over %d", report.CurveCount, report.AssetCount)
	}
	s := report.DataSummary
	if s.CallCurves != 1 || s.PutCurves != 1 {
		t.Errorf("Expected 1 call and 1 put, got %d and %d", s.CallCurves, s.PutCurves)
	}
	if s.DateRangeStart != 1672531200000 || s.DateRangeEnd != 1703980800000 {
		t.Errorf("Unexpected date range [%d, %d]", s.DateRangeStart, s.DateRangeEnd)
	}

	// sorted by asset
	if report.Curves[0].Asset != "BTC" || report.Curves[1].Asset != "ETH" {
		t.Errorf("Expected BTC then ETH, got %s then %s", report.Curves[0].Asset, report.Curves[1].Asset)
	}
	if report.Distributions[0].CurveID != "curve-btc" {
		t.Errorf("Expected distributions in curve order, got %s", report.Distributions[0].CurveID)
	}
}

func TestCurveRow_Quotes(t *testing.T) {
	report := NewGenerator(nil).FromRecords(testRecords())
	btc := report.Curves[0]

	if btc.PremiumAtMax != 0.0305 || btc.MaxUtilization != 0.9 {
		t.Errorf("Unexpected max point (%v, %v)", btc.MaxUtilization, btc.PremiumAtMax)
	}
	// 0.0305 * 42000 = 1281
	if got := btc.QuotedAtMax.StringFixed(2); got != "1281.00" {
		t.Errorf("Expected quote 1281.00, got %s", got)
	}
	// 0.002 * 2300 = 4.6
	if got := report.Curves[1].QuotedAtMin.StringFixed(2); got != "4.60" {
		t.Errorf("Expected quote 4.60, got %s", got)
	}
	// 0.0071 * 2300 = 16.33
	if got := Quote(0.0071, 2300).String(); got != "16.33" {
		t.Errorf("Expected quote 16.33, got %s", got)
	}
}

func TestRenderMarkdown_ContainsRequiredSections(t *testing.T) {
	report := NewGenerator(nil).
		WithFailures([]string{"request 3 (SOL/train): no_feasible_bound: lower 0.5 > upper 0.2"}).
		FromRecords(testRecords())
	md := RenderMarkdown(report)

	requiredSections := []string{
		"# Kelly Curve Report",
		"## Data Summary",
		"## Failed Requests",
		"## Curves",
		"## Return Distributions",
		"no_feasible_bound",
		"[0.0100, +inf]",
		"| Training Start | 2023-01-01 |",
	}
	for _, section := range requiredSections {
		if !strings.Contains(md, section) {
			t.Errorf("Markdown missing %q", section)
		}
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(NewGenerator(nil).FromRecords(nil))
	if !strings.Contains(md, "No curves available.") {
		t.Error("Expected empty curves message")
	}
	if strings.Contains(md, "## Failed Requests") {
		t.Error("Failures section should be omitted without failures")
	}
}

func TestRenderCSV(t *testing.T) {
	report := NewGenerator(nil).FromRecords(testRecords())
	csv := RenderCSV(report.Curves)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "curve_id,asset,label,type,strike") {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "curve-btc,BTC,train-1y,call,1.100000,30,") {
		t.Errorf("Unexpected first row %q", lines[1])
	}
	if !strings.HasSuffix(lines[1], ",420.00,1281.00") {
		t.Errorf("Unexpected quotes in %q", lines[1])
	}
}

func TestRenderPointsCSV(t *testing.T) {
	csv := RenderPointsCSV(testRecords())
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 1+3+2 {
		t.Fatalf("Expected 6 lines, got %d", len(lines))
	}
	if lines[1] != "curve-eth,0.000000,0.0020000000,0.0020000000" {
		t.Errorf("Unexpected first point %q", lines[1])
	}
}
