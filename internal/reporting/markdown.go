package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Kelly Curve Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Curves: %d | Assets: %d\n\n", r.CurveCount, r.AssetCount))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Curves | %d |\n", r.DataSummary.TotalCurves))
	sb.WriteString(fmt.Sprintf("| Call Curves | %d |\n", r.DataSummary.CallCurves))
	sb.WriteString(fmt.Sprintf("| Put Curves | %d |\n", r.DataSummary.PutCurves))
	sb.WriteString(fmt.Sprintf("| Training Start | %s |\n", formatDay(r.DataSummary.DateRangeStart)))
	sb.WriteString(fmt.Sprintf("| Training End | %s |\n", formatDay(r.DataSummary.DateRangeEnd)))
	sb.WriteString("\n")

	// Failures (always shown if present)
	if len(r.Failures) > 0 {
		sb.WriteString("## Failed Requests\n\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("- %s\n", f))
		}
		sb.WriteString("\n")
	}

	// Curves
	sb.WriteString("## Curves\n\n")
	if len(r.Curves) > 0 {
		sb.WriteString("| Asset | Label | Type | Strike | Days | Family | A | B | C | D | Bounds | Premium (min u) | Premium (max u) |\n")
		sb.WriteString("|-------|-------|------|--------|------|--------|---|---|---|---|--------|-----------------|-----------------|\n")
		for _, c := range r.Curves {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.4f | %d | %s | %.4f | %.4f | %.4f | %.6f | %s | %.6f (%s) | %.6f (%s) |\n",
				c.Asset, c.Label, c.Type, c.Strike, c.ExpirationDays, c.Family,
				c.A, c.B, c.C, c.D,
				formatInterval(c.LowerBound, c.UpperBound),
				c.PremiumAtMin, c.QuotedAtMin.StringFixed(quoteDecimals),
				c.PremiumAtMax, c.QuotedAtMax.StringFixed(quoteDecimals)))
		}
	} else {
		sb.WriteString("No curves available.\n")
	}
	sb.WriteString("\n")

	// Distributions
	sb.WriteString("## Return Distributions\n\n")
	if len(r.Distributions) > 0 {
		sb.WriteString("| Curve | Center | Loc | Scale | Skew | DoF | Left Tail | Right Tail | Samples |\n")
		sb.WriteString("|-------|--------|-----|-------|------|-----|-----------|------------|---------|\n")
		for _, d := range r.Distributions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.6f | %.6f | %.4f | %.4f | %.4f | %.4f | %d |\n",
				shortID(d.CurveID), d.Center, d.Loc, d.Scale, d.Skew, d.DoF, d.TailLeft, d.TailRight, d.Samples))
		}
	} else {
		sb.WriteString("No distributions available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatDay(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}

func formatInterval(lo, hi float64) string {
	return fmt.Sprintf("[%s, %s]", formatBound(lo), formatBound(hi))
}

func formatBound(v float64) string {
	if math.IsInf(v, 0) {
		if v > 0 {
			return "+inf"
		}
		return "-inf"
	}
	return fmt.Sprintf("%.4f", v)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
