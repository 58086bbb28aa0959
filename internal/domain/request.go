package domain

// CurveRequest is one row of training input.
type CurveRequest struct {
	Asset          string     `json:"asset"`
	Label          string     `json:"label"`          // training label
	StartMs        int64      `json:"start_ms"`       // training window start (inclusive)
	EndMs          int64      `json:"end_ms"`         // training window end (inclusive)
	StrikeFraction float64    `json:"strike"`         // strike as fraction of spot
	ExpirationDays int        `json:"expiration_days"`
	CurrentPrice   float64    `json:"current_price"`
	Type           OptionType `json:"type,omitempty"` // defaults to call

	UnderlyingQuantity float64 `json:"underlying_quantity,omitempty"` // per contract, e.g. 1 for covered call
	Rate               float64 `json:"rate,omitempty"`
	Carry              float64 `json:"carry,omitempty"`

	// Neighbour data for no-arbitrage bounds (fractions of CurrentPrice).
	LowerStrikeFraction  *float64 `json:"lower_strike,omitempty"`
	LowerStrikePremium   *float64 `json:"lower_strike_premium,omitempty"`
	UpperStrikeFraction  *float64 `json:"upper_strike,omitempty"`
	UpperStrikePremium   *float64 `json:"upper_strike_premium,omitempty"`
	ShorterExpiryPremium *float64 `json:"shorter_expiry_premium,omitempty"`
	LongerExpiryPremium  *float64 `json:"longer_expiry_premium,omitempty"`
}

// OptionType returns the request's option type, defaulting to call.
func (r CurveRequest) OptionType() OptionType {
	if r.Type == "" {
		return OptionCall
	}
	return r.Type
}

// CurveRecord is the emitted result for one CurveRequest.
// Corresponds to curve_records table in PostgreSQL.
type CurveRecord struct {
	CurveID        string     `json:"curve_id"` // deterministic hash
	Asset          string     `json:"asset"`
	Label          string     `json:"label"`
	StartMs        int64      `json:"start_ms"`
	EndMs          int64      `json:"end_ms"`
	StrikeFraction float64    `json:"strike"`
	ExpirationDays int        `json:"expiration_days"`
	CurrentPrice   float64    `json:"current_price"`
	Type           OptionType `json:"type"`

	Params         FitParams `json:"params"`
	Utilizations   []float64 `json:"utilizations"`
	Premiums       []float64 `json:"premiums"`        // boundary premiums
	FittedPremiums []float64 `json:"fitted_premiums"` // Params evaluated and clipped
	LowerBound     float64   `json:"lower_bound"`
	UpperBound     float64   `json:"upper_bound"`

	Distribution DistributionFit `json:"distribution"`

	// DailyPDFs holds price-domain PDFs per day when requested. Not persisted.
	DailyPDFs []PDF `json:"daily_pdfs,omitempty"`

	CreatedAtMs int64 `json:"created_at_ms"`
}
