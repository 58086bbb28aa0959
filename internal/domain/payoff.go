package domain

// OptionType is call or put.
type OptionType string

// Option types.
const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// Direction is long or short.
type Direction string

// Position directions.
const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Sign returns +1 for long and -1 for short.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// OptionLeg describes one option position.
type OptionLeg struct {
	Type      OptionType
	Direction Direction
	Strike    float64
	Amount    float64 // contracts
	Tau       float64 // time to expiry in years; 0 means value at expiration
	Vol       float64 // annualized volatility
	Rate      float64 // risk-free rate
	Carry     float64 // cost of carry (rate - dividend yield)
}

// UnderlyingLeg is a position in the underlying itself.
type UnderlyingLeg struct {
	EntryPrice float64
	Quantity   float64 // negative for short
}

// PayoffConfig is the payoff of a set of legs over a price grid.
// Built once per curve request; read-only afterwards.
type PayoffConfig struct {
	Prices         []float64 // price-domain sample points
	Legs           []OptionLeg
	Underlying     UnderlyingLeg
	ReferencePrice float64   // price used to express payoffs and premiums as fractions
	Payoff         []float64 // summed payoff per price point, in units of ReferencePrice
}
