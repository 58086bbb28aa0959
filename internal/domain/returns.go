package domain

// PricePoint is one daily close for an asset.
// Corresponds to price_history table in ClickHouse.
type PricePoint struct {
	Asset       string  // asset identifier (column name of the price table)
	TimestampMs int64   // Unix timestamp in milliseconds (day start, UTC)
	Close       float64 // closing price
}

// ReturnSeries is an ordered sequence of natural log-returns derived from a
// price history. Treat as immutable once built.
type ReturnSeries struct {
	Asset   string
	StartMs int64 // first price timestamp used
	EndMs   int64 // last price timestamp used
	Values  []float64
}

// Len returns the number of returns.
func (r ReturnSeries) Len() int {
	return len(r.Values)
}
