package reconstruction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"shellrender/internal/models"
	"shellrender/pkg/shading"
	"shellrender/pkg/shell"
)

// ExtractParams controls how a volume is classified into a shell.
type ExtractParams struct {
	Class shell.Class

	// Threshold separates object from background, 0..1
	Threshold float64

	// Window is the half width of the intensity ramp around Threshold over
	// which gradient, percent and direct voxels become opaque. Zero uses
	// 0.1.
	Window float64

	// Thresholds partitions intensities 0..1 into materials for DIRECT
	// shells. The zero value ramps from material 0 to material 1 over the
	// window.
	Thresholds shell.Thresholds
}

func (p ExtractParams) window() float64 {
	if p.Window <= 0 {
		return .1
	}
	return p.Window
}

// Validate checks the parameter ranges.
func (p ExtractParams) Validate() error {
	if !p.Class.Valid() {
		return fmt.Errorf("invalid shell class %d", int(p.Class))
	}
	if p.Threshold <= 0 || p.Threshold >= 1 {
		return fmt.Errorf("threshold %g outside (0, 1)", p.Threshold)
	}
	if p.Window < 0 || p.Window >= .5 {
		return fmt.Errorf("window %g outside [0, 0.5)", p.Window)
	}
	for i := 1; i < len(p.Thresholds); i++ {
		if p.Thresholds[i] < p.Thresholds[i-1] {
			return fmt.Errorf("direct thresholds must be ascending, %g follows %g", p.Thresholds[i], p.Thresholds[i-1])
		}
	}
	return nil
}

// neighbor offsets with the flag set when the neighbor is part of the object
var neighbors = [6]struct {
	dx, dy, dz int
	flag       uint16
}{
	{1, 0, 0, shell.NeighborPX},
	{0, 1, 0, shell.NeighborPY},
	{0, 0, 1, shell.NeighborPZ},
	{-1, 0, 0, shell.NeighborNX},
	{0, -1, 0, shell.NeighborNY},
	{0, 0, -1, shell.NeighborNZ},
}

// extractor holds the per volume state of one extraction.
type extractor struct {
	v      *models.Volume
	p      ExtractParams
	lo, hi float64
	// gmax is the largest gradient magnitude, used to scale likelihoods
	gmax float64
}

// share returns the object share of an intensity on the ramp, 0..1.
func (e *extractor) share(x, y, z int) float64 {
	if !e.v.Inside(x, y, z) {
		return 0
	}
	return math.Max(0, math.Min(1, (e.v.At(x, y, z)-e.lo)/(e.hi-e.lo)))
}

func (e *extractor) inside(x, y, z int) bool {
	return e.v.Inside(x, y, z) && e.v.At(x, y, z) >= e.p.Threshold
}

// flags returns the neighbor flags of a voxel and whether it lies on the
// object boundary.
func (e *extractor) flags(x, y, z int) (uint16, bool) {
	var f uint16
	boundary := false
	for _, n := range neighbors {
		if e.inside(x+n.dx, y+n.dy, z+n.dz) {
			f |= n.flag
		} else {
			boundary = true
		}
	}
	return f, boundary
}

// translucent reports whether a voxel belongs to a translucent shell: it
// carries some object share and is not buried in fully opaque voxels.
func (e *extractor) translucent(x, y, z int) bool {
	if e.share(x, y, z) <= 0 {
		return false
	}
	for _, n := range neighbors {
		if e.share(x+n.dx, y+n.dy, z+n.dz) < 1 {
			return true
		}
	}
	return false
}

// normal returns the gradient code of a voxel; the gradient points into the
// object.
func (e *extractor) normal(x, y, z int) uint16 {
	return shading.G.Encode(e.v.Gradient(x, y, z))
}

func (e *extractor) likelihood(x, y, z int) uint8 {
	if e.gmax == 0 {
		return 0
	}
	g := r3.Norm(e.v.Gradient(x, y, z)) / e.gmax
	return uint8(math.Floor(math.Min(g, 1)*255 + .5))
}

// Extract classifies v into a shell of class p.Class. Binary and T_SHELL
// shells keep the voxels and cells on the iso-surface at p.Threshold; the
// translucent classes keep every voxel on the intensity ramp around it.
func Extract(v *models.Volume, p ExtractParams) (*shell.Data, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return nil, fmt.Errorf("empty volume %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	w := p.window()
	e := &extractor{v: v, p: p, lo: p.Threshold - w, hi: p.Threshold + w}
	if p.Class == shell.TShell {
		return e.tshell()
	}

	b := shell.NewBuilder(p.Class, v.Width, v.Height, v.Depth)
	if p.Class == shell.Direct {
		t := p.Thresholds
		if t == (shell.Thresholds{}) {
			t = shell.Thresholds{e.lo, e.hi, 2, 2, 2, 2}
		}
		for i := range t {
			t[i] *= 65535
		}
		b.SetThresholds(t)
	}
	if p.Class.Translucent() {
		e.gmax = e.maxGradient()
	}
	for z := 0; z < v.Depth; z++ {
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				e.add(b, x, y, z)
			}
		}
	}
	return b.Build()
}

func (e *extractor) maxGradient() float64 {
	g := 0.
	v := e.v
	for z := 0; z < v.Depth; z++ {
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				if e.translucent(x, y, z) {
					g = math.Max(g, r3.Norm(v.Gradient(x, y, z)))
				}
			}
		}
	}
	return g
}

func (e *extractor) add(b *shell.Builder, x, y, z int) {
	switch e.p.Class {
	case shell.BinaryA, shell.BinaryB:
		if !e.inside(x, y, z) {
			return
		}
		f, boundary := e.flags(x, y, z)
		if boundary {
			b.AddBinary(y, z, shell.BinaryVoxel{Column: x, Neighbors: f, Code: e.normal(x, y, z)})
		}
		return
	}
	if !e.translucent(x, y, z) {
		return
	}
	f, _ := e.flags(x, y, z)
	s := e.share(x, y, z)
	switch e.p.Class {
	case shell.Gradient:
		b.AddGradient(y, z, shell.GradientVoxel{
			Column:     x,
			Neighbors:  f,
			Code:       e.normal(x, y, z),
			Opacity:    uint8(math.Floor(s*255 + .5)),
			Likelihood: e.likelihood(x, y, z),
		})
	case shell.Percent:
		b.AddPercent(y, z, shell.PercentVoxel{
			Column:     x,
			Neighbors:  f,
			Code:       e.normal(x, y, z),
			Back:       0,
			Front:      1,
			Percent:    uint8(math.Floor(s*255 + .5)),
			Likelihood: uint8(math.Floor(1020*s*(1-s) + .5)),
		})
	case shell.Direct:
		b.AddDirect(y, z, shell.DirectVoxel{
			Column:    x,
			Code:      e.normal(x, y, z),
			Intensity: uint16(math.Floor(math.Max(0, math.Min(1, e.v.At(x, y, z)))*65535 + .5)),
		})
	}
}

// corner returns the volume position of cube vertex k (1..8) of the cell at
// (x, y, z).
func corner(x, y, z int, k uint8) (int, int, int) {
	return x + int(shell.CornerX[k]), y + int(shell.CornerY[k]), z + int(shell.CornerZ[k])
}

// tshell triangulates every cell between eight neighbouring voxels that the
// iso-surface passes through. Cell (x, y, z) has voxel (x, y, z) as its
// first vertex, so the shell is one voxel smaller along every axis.
func (e *extractor) tshell() (*shell.Data, error) {
	v := e.v
	if v.Width < 2 || v.Height < 2 || v.Depth < 2 {
		return nil, fmt.Errorf("volume %dx%dx%d is too small for a T_SHELL shell", v.Width, v.Height, v.Depth)
	}
	b := shell.NewBuilder(shell.TShell, v.Width-1, v.Height-1, v.Depth-1)
	for z := 0; z+1 < v.Depth; z++ {
		for y := 0; y+1 < v.Height; y++ {
			for x := 0; x+1 < v.Width; x++ {
				config := e.config(x, y, z)
				shapes := shell.ConfigTriangles(config)
				if len(shapes) == 0 {
					continue
				}
				tris := make([]shell.Triangle, len(shapes))
				for i, s := range shapes {
					tris[i] = e.triangle(x, y, z, int(s))
				}
				b.AddTShell(x, y, z, config, tris)
			}
		}
	}
	return b.Build()
}

// config sets bit k-1 for every cube vertex k inside the object.
func (e *extractor) config(x, y, z int) uint8 {
	var c uint8
	for k := uint8(1); k <= 8; k++ {
		if e.inside(corner(x, y, z, k)) {
			c |= 1 << (k - 1)
		}
	}
	return c
}

// triangle places the vertices of a triangle shape where the iso-surface
// crosses its edges and codes its normal.
func (e *extractor) triangle(x, y, z, shape int) shell.Triangle {
	t := shell.Triangle{Shape: shape}
	edges := shell.TriangleEdges(shape)
	var pts [3]r3.Vec
	for i, edge := range edges {
		va, vb := shell.EdgeVertices[edge][0], shell.EdgeVertices[edge][1]
		a := e.v.At(corner(x, y, z, va))
		c := e.v.At(corner(x, y, z, vb))
		w := .5
		if a != c {
			w = math.Max(0, math.Min(1, (e.p.Threshold-a)/(c-a)))
		}
		m := int(math.Floor((14*w-1)/2 + .5))
		t.Position[i] = max(0, min(shell.EdgePositions-1, m))

		wq := t.Weight(i)
		pa := r3.Vec{X: float64(shell.CornerX[va]), Y: float64(shell.CornerY[va]), Z: float64(shell.CornerZ[va])}
		pb := r3.Vec{X: float64(shell.CornerX[vb]), Y: float64(shell.CornerY[vb]), Z: float64(shell.CornerZ[vb])}
		pts[i] = r3.Add(r3.Scale(1-wq, pa), r3.Scale(wq, pb))
	}
	n := r3.Cross(r3.Sub(pts[1], pts[0]), r3.Sub(pts[2], pts[0]))
	if r3.Dot(n, e.cellGradient(x, y, z)) < 0 {
		n = r3.Scale(-1, n)
	}
	t.Code = shading.BG.Encode(n)
	return t
}

// cellGradient is the mean gradient over the vertices of a cell.
func (e *extractor) cellGradient(x, y, z int) r3.Vec {
	var g r3.Vec
	for k := uint8(1); k <= 8; k++ {
		g = r3.Add(g, e.v.Gradient(corner(x, y, z, k)))
	}
	return g
}

// IsoData returns the isodata threshold of intensities: the fixed point at
// which the threshold lies midway between the means of the values below and
// above it.
func IsoData(data []float64) float64 {
	if len(data) == 0 {
		return .5
	}
	t := stat.Mean(data, nil)
	lo := make([]float64, 0, len(data))
	hi := make([]float64, 0, len(data))
	for i := 0; i < 100; i++ {
		lo, hi = lo[:0], hi[:0]
		for _, v := range data {
			if v < t {
				lo = append(lo, v)
			} else {
				hi = append(hi, v)
			}
		}
		if len(lo) == 0 || len(hi) == 0 {
			break
		}
		next := (stat.Mean(lo, nil) + stat.Mean(hi, nil)) / 2
		if math.Abs(next-t) < 1e-6 {
			t = next
			break
		}
		t = next
	}
	return t
}
