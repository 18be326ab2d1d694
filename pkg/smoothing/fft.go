package smoothing

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// plan holds the transforms of one image size. The spectrum of a w by h
// image is stored as h rows of w/2+1 coefficients.
type plan struct {
	w, h int
	rows *fourier.FFT
	cols *fourier.CmplxFFT
}

func newPlan(w, h int) *plan {
	return &plan{w: w, h: h, rows: fourier.NewFFT(w), cols: fourier.NewCmplxFFT(h)}
}

func (p *plan) width() int {
	return p.w/2 + 1
}

// forward computes the 2D spectrum of a real image: a real FFT along every
// row followed by a complex FFT along every column of coefficients.
func (p *plan) forward(data []float64) []complex128 {
	nk := p.width()
	spec := make([]complex128, p.h*nk)
	for y := 0; y < p.h; y++ {
		p.rows.Coefficients(spec[y*nk:(y+1)*nk], data[y*p.w:(y+1)*p.w])
	}
	p.columns(spec, p.cols.Coefficients)
	return spec
}

// inverse turns a spectrum back into a real image, normalized.
func (p *plan) inverse(spec []complex128) []float64 {
	nk := p.width()
	p.columns(spec, p.cols.Sequence)
	data := make([]float64, p.w*p.h)
	for y := 0; y < p.h; y++ {
		p.rows.Sequence(data[y*p.w:(y+1)*p.w], spec[y*nk:(y+1)*nk])
	}
	scale := 1 / float64(p.w*p.h)
	for i := range data {
		data[i] *= scale
	}
	return data
}

// columns applies a 1D complex transform to every column of spec.
func (p *plan) columns(spec []complex128, tr func(dst, src []complex128) []complex128) {
	nk := p.width()
	in := make([]complex128, p.h)
	out := make([]complex128, p.h)
	for k := 0; k < nk; k++ {
		for y := range in {
			in[y] = spec[y*nk+k]
		}
		tr(out, in)
		for y := range out {
			spec[y*nk+k] = out[y]
		}
	}
}
