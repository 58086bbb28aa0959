package distribution

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// StudentT is a symmetric Student-t with unit-variance standardization, so
// Scale is the standard deviation. It is SkewedT with skew fixed to 1.
type StudentT struct {
	p   Params
	dst distuv.StudentsT
}

var _ DistributionModel = (*StudentT)(nil)

// NewStudentT validates p. Skew is forced to 1.
func NewStudentT(p Params) (*StudentT, error) {
	p.Skew = 1
	if err := validate(p); err != nil {
		return nil, err
	}
	return &StudentT{
		p:   p,
		dst: distuv.StudentsT{Mu: p.Loc, Sigma: p.Scale * math.Sqrt((p.DoF-2)/p.DoF), Nu: p.DoF},
	}, nil
}

// Name implements DistributionModel.
func (d *StudentT) Name() string { return "studentt" }

// Params implements DistributionModel.
func (d *StudentT) Params() Params { return d.p }

// PDF implements DistributionModel.
func (d *StudentT) PDF(x float64) float64 { return d.dst.Prob(x) }

// LogPDF implements DistributionModel.
func (d *StudentT) LogPDF(x float64) float64 { return d.dst.LogProb(x) }

// CDF implements DistributionModel.
func (d *StudentT) CDF(x float64) float64 { return d.dst.CDF(x) }

// Quantile implements DistributionModel.
func (d *StudentT) Quantile(p float64) float64 {
	switch {
	case p <= 0:
		return math.Inf(-1)
	case p >= 1:
		return math.Inf(1)
	}
	return d.dst.Quantile(p)
}

// Sample implements DistributionModel.
func (d *StudentT) Sample(rng *rand.Rand, n int) []float64 {
	return sampleByQuantile(d, rng, n)
}

// Fit implements DistributionModel.
func (d *StudentT) Fit(samples []float64) (FitResult, error) {
	return fitStudentFamily(samples, false)
}
