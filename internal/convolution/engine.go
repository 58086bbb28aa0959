// Package convolution propagates a one-day return density to longer horizons
// by repeated convolution with itself, assuming i.i.d. daily returns.
//
// With M grid points and N days the FFT method costs O(N·M log M) and the
// direct method O(N·M²). The direct method is only practical for small grids.
package convolution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/dsp/fourier"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/numeric"
)

// Method selects the convolution algorithm.
type Method string

// Supported methods.
const (
	MethodFFT    Method = "fft"
	MethodDirect Method = "direct"
)

var (
	// ErrUnevenGrid is returned when the domain grid is not evenly spaced.
	ErrUnevenGrid = errors.New("domain grid is not evenly spaced")

	// ErrGridMismatch is returned when two PDFs do not share a grid.
	ErrGridMismatch = errors.New("pdfs do not share a domain grid")

	// ErrGridExcludesZero is returned when 0 is not a grid point, so a sum of
	// two draws cannot be aligned back onto the grid.
	ErrGridExcludesZero = errors.New("domain grid does not have a point at zero")

	// ErrEmptyPDF is returned for PDFs with fewer than two points.
	ErrEmptyPDF = errors.New("pdf has fewer than two points")
)

// Options configures an Engine.
type Options struct {
	Method Method // default fft
	Logger zerolog.Logger
}

// Engine convolves PDFs sampled on a shared, evenly spaced grid.
type Engine struct {
	method Method
	log    zerolog.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Method == "" {
		opts.Method = MethodFFT
	}
	return &Engine{method: opts.Method, log: opts.Logger}
}

// Method returns the configured method.
func (e *Engine) Method() Method {
	return e.method
}

// Convolve returns the density of the sum of independent draws from a and b,
// sampled on a's grid. Output point k corresponds to the same domain value as
// input point k; mass falling outside the grid is dropped. On a grid symmetric
// about zero this is "same"-mode linear convolution.
func (e *Engine) Convolve(a, b domain.PDF) (domain.PDF, error) {
	g, err := newGrid(a, b)
	if err != nil {
		return domain.PDF{}, err
	}
	var out []float64
	if e.method == MethodDirect {
		out = g.direct(a.Density, b.Density)
	} else {
		out = g.newSpectral().convolve(a.Density, g.spectrum(b.Density))
	}
	return domain.PDF{X: cloneFloats(a.X), Density: out}, nil
}

// Propagate returns n+1 PDFs: base itself followed by base convolved with
// itself 1..n times. Entry i is the distribution over i+1 days.
func (e *Engine) Propagate(ctx context.Context, base domain.PDF, n int) (domain.ConvolutionResult, error) {
	if n < 0 {
		return domain.ConvolutionResult{}, fmt.Errorf("negative repeat count %d", n)
	}
	res := domain.ConvolutionResult{PDFs: []domain.PDF{base.Clone()}}
	return e.Extend(ctx, res, n)
}

// Extend appends m more days to res, convolving its last entry with its
// first (the one-day PDF) each time.
func (e *Engine) Extend(ctx context.Context, res domain.ConvolutionResult, m int) (domain.ConvolutionResult, error) {
	if len(res.PDFs) == 0 {
		return domain.ConvolutionResult{}, ErrEmptyPDF
	}
	if m < 0 {
		return domain.ConvolutionResult{}, fmt.Errorf("negative repeat count %d", m)
	}
	base := res.PDFs[0]
	g, err := newGrid(base, base)
	if err != nil {
		return domain.ConvolutionResult{}, err
	}

	start := time.Now()
	out := domain.ConvolutionResult{PDFs: make([]domain.PDF, len(res.PDFs), len(res.PDFs)+m)}
	copy(out.PDFs, res.PDFs)

	var sp *spectral
	var baseSpec []complex128
	if e.method != MethodDirect {
		sp = g.newSpectral()
		baseSpec = g.spectrum(base.Density)
	}

	cur := out.PDFs[len(out.PDFs)-1]
	for day := 0; day < m; day++ {
		if err := ctx.Err(); err != nil {
			return domain.ConvolutionResult{}, err
		}
		if len(cur.Density) != len(base.Density) {
			return domain.ConvolutionResult{}, ErrGridMismatch
		}
		var next []float64
		if sp != nil {
			next = sp.convolve(cur.Density, baseSpec)
		} else {
			next = g.direct(cur.Density, base.Density)
		}
		cur = domain.PDF{X: cloneFloats(base.X), Density: next}
		out.PDFs = append(out.PDFs, cur)
	}

	e.log.Debug().
		Str("method", string(e.method)).
		Int("points", len(base.X)).
		Int("days", len(out.PDFs)).
		Dur("elapsed", time.Since(start)).
		Msg("convolution complete")
	return out, nil
}

// grid holds the alignment of a shared evenly spaced domain.
type grid struct {
	m      int
	delta  float64
	offset int // index into the full convolution of output point 0
}

func newGrid(a, b domain.PDF) (grid, error) {
	m := len(a.X)
	if m < 2 || len(a.Density) != m {
		return grid{}, ErrEmptyPDF
	}
	if len(b.X) != m || len(b.Density) != m {
		return grid{}, ErrGridMismatch
	}
	if !numeric.IsEvenlySpaced(a.X, 1e-6) {
		return grid{}, ErrUnevenGrid
	}
	delta := (a.X[m-1] - a.X[0]) / float64(m-1)
	for i := range a.X {
		if math.Abs(a.X[i]-b.X[i]) > 1e-9*delta {
			return grid{}, ErrGridMismatch
		}
	}
	zero, ok := numeric.ZeroIndex(a.X[0], a.X[m-1], m)
	if !ok {
		return grid{}, ErrGridExcludesZero
	}
	return grid{m: m, delta: delta, offset: zero}, nil
}

// direct computes the aligned convolution in O(M²).
func (g grid) direct(a, b []float64) []float64 {
	out := make([]float64, g.m)
	for k := range out {
		idx := k + g.offset
		lo := max(0, idx-(g.m-1))
		hi := min(idx, g.m-1)
		var sum float64
		for i := lo; i <= hi; i++ {
			sum += a[i] * b[idx-i]
		}
		out[k] = sum * g.delta
	}
	return out
}

// spectral holds an FFT plan sized for linear convolution on the grid.
type spectral struct {
	g   grid
	n   int
	fft *fourier.FFT
	buf []float64
}

func (g grid) fftSize() int {
	n := 1
	for n < 2*g.m-1 {
		n <<= 1
	}
	return n
}

func (g grid) newSpectral() *spectral {
	n := g.fftSize()
	return &spectral{g: g, n: n, fft: fourier.NewFFT(n), buf: make([]float64, n)}
}

// spectrum returns the Fourier coefficients of density·Δ, zero padded.
func (g grid) spectrum(density []float64) []complex128 {
	n := g.fftSize()
	padded := make([]float64, n)
	for i, v := range density {
		padded[i] = v * g.delta
	}
	return fourier.NewFFT(n).Coefficients(nil, padded)
}

// convolve returns the aligned convolution of a with the density whose
// spectrum is bSpec, divided by Δ to restore density units.
func (s *spectral) convolve(a []float64, bSpec []complex128) []float64 {
	for i := range s.buf {
		s.buf[i] = 0
	}
	for i, v := range a {
		s.buf[i] = v * s.g.delta
	}
	spec := s.fft.Coefficients(nil, s.buf)
	for i := range spec {
		spec[i] *= bSpec[i]
	}
	full := s.fft.Sequence(nil, spec)

	out := make([]float64, s.g.m)
	scale := 1 / (float64(s.n) * s.g.delta)
	for k := range out {
		idx := k + s.g.offset
		if idx < 0 || idx > 2*s.g.m-2 {
			continue
		}
		v := full[idx] * scale
		if v < 0 {
			// FFT round-off
			v = 0
		}
		out[k] = v
	}
	return out
}

func cloneFloats(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	return out
}
