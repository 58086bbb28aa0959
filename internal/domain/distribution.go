package domain

// CenterType names the distribution used for the body of a fitted model.
type CenterType string

// Supported center distributions.
const (
	CenterSkewedT  CenterType = "skewt"
	CenterStudentT CenterType = "studentt"
)

// DistributionFit holds the fitted center parameters and the Pareto tail
// exponents of a return distribution.
// Invariant: Scale > 0, DoF > 2, TailLeft > 0, TailRight > 0.
type DistributionFit struct {
	Center CenterType `json:"center"`

	// Center distribution
	Loc   float64 `json:"loc"`   // location
	Scale float64 `json:"scale"` // scale, > 0
	Skew  float64 `json:"skew"`  // skew, > 0 (1 = symmetric)
	DoF   float64 `json:"dof"`   // degrees of freedom, > 2

	// Tails
	LeftThreshold  float64 `json:"left_threshold"`  // probability mass treated as left tail
	RightThreshold float64 `json:"right_threshold"` // probability mass treated as right tail
	TailLeft       float64 `json:"tail_left"`       // left Pareto exponent, > 0
	TailRight      float64 `json:"tail_right"`      // right Pareto exponent, > 0

	SampleCount int `json:"sample_count"` // number of returns used
}
