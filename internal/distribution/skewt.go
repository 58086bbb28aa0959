package distribution

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// SkewedT is the Fernandez-Steel skewed Student-t, standardized to zero mean
// and unit variance before location and scale are applied. Skew 1 is the
// symmetric standardized Student-t; skew > 1 puts more mass on the right.
type SkewedT struct {
	p Params

	// derived
	mu    float64 // mean of the unstandardized skewed variable
	sigma float64 // std dev of the unstandardized skewed variable
	g     float64 // 2 / (skew + 1/skew)
	std   distuv.StudentsT
}

var _ DistributionModel = (*SkewedT)(nil)

// NewSkewedT validates p and precomputes the standardization constants.
// Returns ErrInvalidParameter if skew <= 0, dof <= 2 or scale <= 0.
func NewSkewedT(p Params) (*SkewedT, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	nu, xi := p.DoF, p.Skew

	// E|T| for a unit-variance Student-t.
	lbeta := lgamma(0.5) + lgamma(nu/2) - lgamma((nu+1)/2)
	m1 := 2 * math.Sqrt(nu-2) / (nu - 1) / math.Exp(lbeta)

	mu := m1 * (xi - 1/xi)
	sigma := math.Sqrt((1-m1*m1)*(xi*xi+1/(xi*xi)) + 2*m1*m1 - 1)

	return &SkewedT{
		p:     p,
		mu:    mu,
		sigma: sigma,
		g:     2 / (xi + 1/xi),
		std:   unitStudent(nu),
	}, nil
}

// Name implements DistributionModel.
func (d *SkewedT) Name() string { return "skewt" }

// Params implements DistributionModel.
func (d *SkewedT) Params() Params { return d.p }

// PDF implements DistributionModel.
func (d *SkewedT) PDF(x float64) float64 {
	return math.Exp(d.LogPDF(x))
}

// LogPDF implements DistributionModel.
func (d *SkewedT) LogPDF(x float64) float64 {
	z := ((x-d.p.Loc)/d.p.Scale)*d.sigma + d.mu
	xi := d.xiFor(z)
	return math.Log(d.g) + d.std.LogProb(z/xi) + math.Log(d.sigma) - math.Log(d.p.Scale)
}

// CDF implements DistributionModel.
func (d *SkewedT) CDF(x float64) float64 {
	z := ((x-d.p.Loc)/d.p.Scale)*d.sigma + d.mu
	if z < 0 {
		xi := 1 / d.p.Skew
		return d.g * xi * d.std.CDF(z/xi)
	}
	xi := d.p.Skew
	return 1 - d.g*xi*d.std.CDF(-z/xi)
}

// Quantile implements DistributionModel.
func (d *SkewedT) Quantile(p float64) float64 {
	switch {
	case p <= 0:
		return math.Inf(-1)
	case p >= 1:
		return math.Inf(1)
	}
	xi := d.p.Skew
	var z float64
	if p < d.CDF0() {
		z = d.std.Quantile(p*xi/d.g) / xi
	} else {
		z = -xi * d.std.Quantile((1-p)/(d.g*xi))
	}
	return d.p.Loc + d.p.Scale*(z-d.mu)/d.sigma
}

// CDF0 returns the probability mass below the mode of the unstandardized
// variable, 1 / (1 + skew^2).
func (d *SkewedT) CDF0() float64 {
	return 1 / (1 + d.p.Skew*d.p.Skew)
}

// Sample implements DistributionModel. A uniform draw on
// [-w, 1-w), w = skew/(skew+1/skew), picks the side; the magnitude comes from
// the inverse CDF of |T| and is scaled by skew on that side.
func (d *SkewedT) Sample(rng *rand.Rand, n int) []float64 {
	xi := d.p.Skew
	w := xi / (xi + 1/xi)
	out := make([]float64, n)
	for i := range out {
		side := rng.Float64() - w
		mag := d.std.Quantile(0.5 + 0.5*openUniform(rng))
		var z float64
		if side >= 0 {
			z = -mag / xi
		} else {
			z = mag * xi
		}
		out[i] = d.p.Loc + d.p.Scale*(z-d.mu)/d.sigma
	}
	return out
}

// Fit implements DistributionModel.
func (d *SkewedT) Fit(samples []float64) (FitResult, error) {
	return fitStudentFamily(samples, true)
}

func (d *SkewedT) xiFor(z float64) float64 {
	if z < 0 {
		return 1 / d.p.Skew
	}
	return d.p.Skew
}

// unitStudent returns a Student-t with nu degrees of freedom scaled to unit variance.
func unitStudent(nu float64) distuv.StudentsT {
	return distuv.StudentsT{Mu: 0, Sigma: math.Sqrt((nu - 2) / nu), Nu: nu}
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// openUniform returns a uniform draw in (0, 1).
func openUniform(rng *rand.Rand) float64 {
	for {
		if u := rng.Float64(); u > 0 {
			return u
		}
	}
}
