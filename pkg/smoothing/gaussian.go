// Package smoothing low-pass filters slice images before shell extraction.
//
// Images are smoothed with a Gaussian applied in the frequency domain. The
// image is mirrored at its borders before the transform so that the
// periodic extension of the FFT does not bleed opposite edges together.
package smoothing

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"shellrender/internal/models"
)

// Gaussian applies a Gaussian of standard deviation sigma pixels to a
// row major width by height image and returns the result. A sigma of zero
// returns a copy.
func Gaussian(data []float64, width, height int, sigma float64) ([]float64, error) {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return nil, fmt.Errorf("image of %d values does not match %dx%d", len(data), width, height)
	}
	if sigma < 0 {
		return nil, fmt.Errorf("negative sigma %g", sigma)
	}
	if sigma == 0 {
		return append([]float64(nil), data...), nil
	}

	r := int(math.Ceil(3 * sigma))
	pw, ph := width+2*r, height+2*r
	padded := make([]float64, pw*ph)
	for y := 0; y < ph; y++ {
		sy := reflect(y-r, height)
		for x := 0; x < pw; x++ {
			padded[y*pw+x] = data[sy*width+reflect(x-r, width)]
		}
	}

	p := newPlan(pw, ph)
	spec := p.forward(padded)
	nk := p.width()
	c := -2 * math.Pi * math.Pi * sigma * sigma
	for l := 0; l < ph; l++ {
		fy := float64(min(l, ph-l)) / float64(ph)
		for k := 0; k < nk; k++ {
			fx := float64(k) / float64(pw)
			spec[l*nk+k] *= complex(math.Exp(c*(fx*fx+fy*fy)), 0)
		}
	}
	smoothed := p.inverse(spec)

	out := make([]float64, width*height)
	for y := 0; y < height; y++ {
		copy(out[y*width:(y+1)*width], smoothed[(y+r)*pw+r:(y+r)*pw+r+width])
	}
	return out, nil
}

// reflect maps an index outside [0, n) back by mirroring at the borders.
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}

// Volume smooths every slice of v in place using up to workers goroutines.
func Volume(v *models.Volume, sigma float64, workers int) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var wg sync.WaitGroup
	errs := make([]error, v.Depth)
	next := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for z := range next {
				plane := v.Plane(z)
				out, err := Gaussian(plane, v.Width, v.Height, sigma)
				if err != nil {
					errs[z] = err
					continue
				}
				copy(plane, out)
			}
		}()
	}
	for z := 0; z < v.Depth; z++ {
		next <- z
	}
	close(next)
	wg.Wait()
	for z, err := range errs {
		if err != nil {
			return fmt.Errorf("slice %d: %w", z, err)
		}
	}
	return nil
}
