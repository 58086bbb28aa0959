package domain

// PDF is a discretized probability density. X is strictly increasing and
// len(X) == len(Density). The trapezoidal mass is approximately 1.
type PDF struct {
	X       []float64 `json:"x"`
	Density []float64 `json:"density"`
}

// Len returns the number of sample points.
func (p PDF) Len() int {
	return len(p.X)
}

// Mass returns the trapezoidal integral of the density.
func (p PDF) Mass() float64 {
	var total float64
	for i := 1; i < len(p.X); i++ {
		total += 0.5 * (p.Density[i-1] + p.Density[i]) * (p.X[i] - p.X[i-1])
	}
	return total
}

// Peak returns the largest density value.
func (p PDF) Peak() float64 {
	var peak float64
	for _, d := range p.Density {
		if d > peak {
			peak = d
		}
	}
	return peak
}

// Clone returns a deep copy.
func (p PDF) Clone() PDF {
	x := make([]float64, len(p.X))
	d := make([]float64, len(p.Density))
	copy(x, p.X)
	copy(d, p.Density)
	return PDF{X: x, Density: d}
}

// ConvolutionResult holds one PDF per future day: index i is the
// distribution of the return over i+1 days. Index 0 is the unconvolved input.
type ConvolutionResult struct {
	PDFs []PDF
}

// Days returns the horizon covered by the last entry.
func (c ConvolutionResult) Days() int {
	return len(c.PDFs)
}

// Day returns the PDF for the given horizon in days (1-based).
func (c ConvolutionResult) Day(days int) (PDF, bool) {
	if days < 1 || days > len(c.PDFs) {
		return PDF{}, false
	}
	return c.PDFs[days-1], true
}
