package reporting

import (
	"fmt"
	"strings"

	"kelly-curve-lab/internal/domain"
)

// RenderCSV renders the curves table as CSV string.
func RenderCSV(curves []CurveRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("curve_id,asset,label,type,strike,expiration_days,current_price,")
	sb.WriteString("family,a,b,c,d,lower_bound,upper_bound,")
	sb.WriteString("premium_at_min,premium_at_max,quoted_at_min,quoted_at_max\n")

	for _, c := range curves {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.6f,%d,%.6f,%s,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%s,%s\n",
			c.CurveID,
			c.Asset,
			c.Label,
			c.Type,
			c.Strike,
			c.ExpirationDays,
			c.CurrentPrice,
			c.Family,
			c.A, c.B, c.C, c.D,
			c.LowerBound,
			c.UpperBound,
			c.PremiumAtMin,
			c.PremiumAtMax,
			c.QuotedAtMin.StringFixed(quoteDecimals),
			c.QuotedAtMax.StringFixed(quoteDecimals),
		))
	}

	return sb.String()
}

// RenderPointsCSV renders every (utilization, premium) point of every record,
// the long-format curve table read by backtests.
func RenderPointsCSV(records []*domain.CurveRecord) string {
	var sb strings.Builder
	sb.WriteString("curve_id,utilization,premium,fitted_premium\n")
	for _, r := range records {
		for i, u := range r.Utilizations {
			fitted := 0.0
			if i < len(r.FittedPremiums) {
				fitted = r.FittedPremiums[i]
			}
			sb.WriteString(fmt.Sprintf("%s,%.6f,%.10f,%.10f\n", r.CurveID, u, r.Premiums[i], fitted))
		}
	}
	return sb.String()
}
