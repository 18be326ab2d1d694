// Package interpolation resamples slice stacks along the slice axis so that
// voxels become cubic before shell extraction.
package interpolation

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/interp"

	"shellrender/internal/models"
)

// Method selects the interpolant fitted through the slices at every pixel
type Method int

const (
	// Linear joins neighbouring slices by straight lines
	Linear Method = iota
	// Monotone uses Fritsch-Butland cubics, which do not overshoot
	Monotone
	// Akima uses Akima splines
	Akima
)

var methodNames = [...]string{"linear", "monotone", "akima"}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("method(%d)", int(m))
	}
	return methodNames[m]
}

// ParseMethod converts a name printed by String back to a Method
func ParseMethod(s string) (Method, error) {
	for i, n := range methodNames {
		if n == s {
			return Method(i), nil
		}
	}
	return 0, fmt.Errorf("unknown interpolation method %q", s)
}

// ProgressCallback receives the number of rows completed
type ProgressCallback func(completed, total int, message string)

// Resampler interpolates volumes between slices
type Resampler struct {
	method           Method
	workers          int
	progressCallback ProgressCallback
}

// NewResampler creates a resampler running up to workers goroutines; zero
// or less uses every CPU
func NewResampler(method Method, workers int) *Resampler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Resampler{method: method, workers: workers}
}

// SetProgressCallback sets a function called after every finished row
func (r *Resampler) SetProgressCallback(callback ProgressCallback) {
	r.progressCallback = callback
}

func (r *Resampler) predictor(n int) interp.FittablePredictor {
	switch {
	case n < 3:
		return &interp.PiecewiseLinear{}
	case r.method == Monotone:
		return &interp.FritschButland{}
	case r.method == Akima:
		return &interp.AkimaSpline{}
	}
	return &interp.PiecewiseLinear{}
}

// Resample returns v sampled every spacing units along the slice axis.
// positions gives the physical position of every slice of v and must be
// strictly increasing. Interpolated intensities are clamped to 0..1.
func (r *Resampler) Resample(v *models.Volume, positions []float64, spacing float64) (*models.Volume, error) {
	if len(positions) != v.Depth {
		return nil, fmt.Errorf("%d slice positions for %d slices", len(positions), v.Depth)
	}
	if spacing <= 0 {
		return nil, fmt.Errorf("invalid spacing %g", spacing)
	}
	for i := 1; i < len(positions); i++ {
		if positions[i] <= positions[i-1] {
			return nil, fmt.Errorf("slice positions must increase, %g follows %g", positions[i], positions[i-1])
		}
	}
	if v.Depth < 2 {
		out := *v
		out.Data = append([]float64(nil), v.Data...)
		return &out, nil
	}

	first, last := positions[0], positions[len(positions)-1]
	depth := int(math.Floor((last-first)/spacing+1e-9)) + 1
	out := models.NewVolume(v.Width, v.Height, depth)
	out.VoxelSize = v.VoxelSize
	out.VoxelSize.Z = spacing

	rows := make(chan int)
	errs := make([]error, v.Height)
	var mu sync.Mutex
	completed := 0
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ys := make([]float64, v.Depth)
			p := r.predictor(v.Depth)
			for y := range rows {
				for x := 0; x < v.Width; x++ {
					for z := range ys {
						ys[z] = v.Data[v.Index(x, y, z)]
					}
					if err := p.Fit(positions, ys); err != nil {
						errs[y] = err
						break
					}
					for k := 0; k < depth; k++ {
						val := p.Predict(first + float64(k)*spacing)
						out.Data[out.Index(x, y, k)] = math.Max(0, math.Min(1, val))
					}
				}
				if r.progressCallback != nil {
					mu.Lock()
					completed++
					r.progressCallback(completed, v.Height, "")
					mu.Unlock()
				}
			}
		}()
	}
	for y := 0; y < v.Height; y++ {
		rows <- y
	}
	close(rows)
	wg.Wait()
	for y, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", y, err)
		}
	}
	return out, nil
}

// Positions returns evenly spaced slice positions
func Positions(n int, gap float64) []float64 {
	p := make([]float64, n)
	for i := range p {
		p[i] = float64(i) * gap
	}
	return p
}
