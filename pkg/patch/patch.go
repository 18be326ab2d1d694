// Package patch computes the pixel footprint of one projected voxel.
//
// A patch lists, for every scanline the voxel touches, the half open range
// of pixel columns it covers, relative to the pixel nearest the voxel centre.
// Pixel centres lie at integer coordinates. A pixel belongs to the patch when
// its centre lies strictly inside the projected voxel grown by half a pixel,
// so that neighbouring voxels leave no holes.
package patch

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"shellrender/internal/planar"
)

// MaxWeight is the weight of a fully covered pixel.
const MaxWeight = 255

const eps = 1e-9

// Line is one scanline of a patch. Weights, if not nil, holds one coverage
// weight (0..255) per pixel in [Left, Right).
type Line struct {
	Left, Right int
	Weights     []uint8
}

// Weight returns the weight of pixel x of the line.
func (l Line) Weight(x int) uint8 {
	if l.Weights == nil {
		return MaxWeight
	}
	return l.Weights[x-l.Left]
}

// Patch is the footprint of a voxel. Line i covers image row Top+i relative
// to the voxel's pixel.
type Patch struct {
	Top   int
	Lines []Line
}

// Margins records, in 1/65536 pixel, how far the rasterized patch overshoots
// the analytic voxel footprint on each side.
type Margins struct {
	Top, Bottom, Left, Right int
}

// Bottom returns the row after the last line.
func (p *Patch) Bottom() int {
	return p.Top + len(p.Lines)
}

// Pixels returns the number of pixels in the patch.
func (p *Patch) Pixels() int {
	n := 0
	for _, l := range p.Lines {
		n += l.Right - l.Left
	}
	return n
}

// Weighted reports whether any line carries coverage weights.
func (p *Patch) Weighted() bool {
	for _, l := range p.Lines {
		if l.Weights != nil {
			return true
		}
	}
	return false
}

// Extent returns the bounding box of the pixel offsets covered by the patch.
// An empty patch has the extent of the single centre pixel.
func (p *Patch) Extent() rect.Rect {
	r := rect.Rect{LLx: math.Inf(1), LLy: math.Inf(1), URx: math.Inf(-1), URy: math.Inf(-1)}
	for i, l := range p.Lines {
		if l.Right <= l.Left {
			continue
		}
		y := float64(p.Top + i)
		r.LLx = math.Min(r.LLx, float64(l.Left))
		r.URx = math.Max(r.URx, float64(l.Right-1))
		r.LLy = math.Min(r.LLy, y)
		r.URy = math.Max(r.URy, y)
	}
	if r.LLx > r.URx {
		return rect.Rect{}
	}
	return r
}

// project maps a voxel space displacement onto the image plane.
func project(m mat.Matrix, x, y, z float64) vec.Vec2 {
	return vec.Vec2{
		X: m.At(0, 0)*x + m.At(0, 1)*y + m.At(0, 2)*z,
		Y: m.At(1, 0)*x + m.At(1, 1)*y + m.At(1, 2)*z,
	}
}

// Footprint returns the outline of the unit voxel centred at the origin
// projected through m.
func Footprint(m mat.Matrix) planar.Polygon {
	pts := make([]vec.Vec2, 0, 8)
	for _, x := range []float64{-.5, .5} {
		for _, y := range []float64{-.5, .5} {
			for _, z := range []float64{-.5, .5} {
				pts = append(pts, project(m, x, y, z))
			}
		}
	}
	return planar.Hull(pts)
}

// rasterize lists the pixels whose centres lie strictly inside f.
func rasterize(f planar.Polygon) *Patch {
	b := f.Bounds()
	top := int(math.Floor(b.LLy+eps)) + 1
	bottom := int(math.Ceil(b.URy - eps))
	p := &Patch{Top: top}
	for y := top; y < bottom; y++ {
		var l Line
		if xmin, xmax, ok := f.Span(float64(y)); ok {
			l.Left = int(math.Floor(xmin+eps)) + 1
			l.Right = int(math.Ceil(xmax - eps))
			if l.Right < l.Left {
				l.Right = l.Left
			}
		}
		p.Lines = append(p.Lines, l)
	}
	if len(p.Lines) == 0 {
		p.Top = 0
	}
	return p
}

// Get returns the patch of a voxel projected through m.
func Get(m mat.Matrix) *Patch {
	return rasterize(planar.Grow(Footprint(m), .5))
}

// NeedPatch reports whether some voxel axis projects longer than one pixel,
// in which case one pixel per voxel leaves holes.
func NeedPatch(m mat.Matrix) bool {
	for j := 0; j < 3; j++ {
		if math.Hypot(m.At(0, j), m.At(1, j)) > 1+eps {
			return true
		}
	}
	return false
}

func margins(p *Patch, f planar.Polygon) Margins {
	b := f.Bounds()
	left, right := math.MaxInt, math.MinInt
	for _, l := range p.Lines {
		if l.Right > l.Left {
			left = min(left, l.Left)
			right = max(right, l.Right)
		}
	}
	if left > right {
		return Margins{}
	}
	fix := func(v float64) int {
		return int(math.Max(0, math.Floor(v*0x10000+.5)))
	}
	return Margins{
		Top:    fix(b.LLy - (float64(p.Top) - .5)),
		Bottom: fix((float64(p.Bottom()) - .5) - b.URy),
		Left:   fix(b.LLx - (float64(left) - .5)),
		Right:  fix((float64(right) - .5) - b.URx),
	}
}

// GetOutline returns the unweighted patch of m together with its margins.
func GetOutline(m mat.Matrix) (*Patch, Margins) {
	p := Get(m)
	return p, margins(p, Footprint(m))
}

// GetMargin returns the patch of m together with its margins and a weight
// for every pixel proportional to the length of the view ray through the
// voxel at the pixel centre. voxelDepth is the chord length that maps to
// full weight; if it is not positive the chord through the voxel centre is
// used. A singular matrix yields full weights.
func GetMargin(m mat.Matrix, voxelDepth float64) (*Patch, Margins) {
	p, mg := GetOutline(m)

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return p, mg
	}
	if voxelDepth <= 0 {
		voxelDepth = chord(&inv, 0, 0)
	}
	if voxelDepth <= 0 {
		return p, mg
	}
	for i := range p.Lines {
		l := &p.Lines[i]
		l.Weights = make([]uint8, l.Right-l.Left)
		y := float64(p.Top + i)
		for x := l.Left; x < l.Right; x++ {
			w := math.Floor(MaxWeight*chord(&inv, float64(x), y)/voxelDepth + .5)
			l.Weights[x-l.Left] = uint8(math.Max(0, math.Min(MaxWeight, w)))
		}
	}
	return p, mg
}

// chord returns the depth extent of the ray through image point (x, y)
// inside the unit voxel, given the inverse projection matrix.
func chord(inv mat.Matrix, x, y float64) float64 {
	t0, t1 := math.Inf(-1), math.Inf(1)
	for i := 0; i < 3; i++ {
		a := inv.At(i, 0)*x + inv.At(i, 1)*y
		b := inv.At(i, 2)
		if b == 0 {
			if math.Abs(a) > .5 {
				return 0
			}
			continue
		}
		lo, hi := (-.5-a)/b, (.5-a)/b
		if lo > hi {
			lo, hi = hi, lo
		}
		t0 = math.Max(t0, lo)
		t1 = math.Min(t1, hi)
	}
	if t1 <= t0 {
		return 0
	}
	return t1 - t0
}

// Fade returns a copy of p whose edge pixels are weighted by the share of
// them the voxel covers according to mg: the top and bottom lines and both
// ends of every line lose their margin.
func Fade(p *Patch, mg Margins) *Patch {
	f := func(margin int) float64 {
		return math.Max(0, 1-float64(margin)/0x10000)
	}
	q := &Patch{Top: p.Top, Lines: make([]Line, len(p.Lines))}
	for i, l := range p.Lines {
		w := make([]uint8, l.Right-l.Left)
		for x := range w {
			v := float64(MaxWeight)
			if i == 0 {
				v *= f(mg.Top)
			}
			if i == len(p.Lines)-1 {
				v *= f(mg.Bottom)
			}
			if x == 0 {
				v *= f(mg.Left)
			}
			if x == len(w)-1 {
				v *= f(mg.Right)
			}
			w[x] = uint8(math.Floor(v + .5))
		}
		q.Lines[i] = Line{Left: l.Left, Right: l.Right, Weights: w}
	}
	return q
}

// Trim removes zero weight pixels from the ends of every line and drops
// empty lines at the top and bottom.
func Trim(p *Patch) {
	for i := range p.Lines {
		l := &p.Lines[i]
		if l.Weights == nil {
			continue
		}
		lo, hi := 0, len(l.Weights)
		for lo < hi && l.Weights[lo] == 0 {
			lo++
		}
		for hi > lo && l.Weights[hi-1] == 0 {
			hi--
		}
		l.Left, l.Right = l.Left+lo, l.Left+hi
		l.Weights = l.Weights[lo:hi]
	}
	for len(p.Lines) > 0 && p.Lines[0].Right <= p.Lines[0].Left {
		p.Lines = p.Lines[1:]
		p.Top++
	}
	for n := len(p.Lines); n > 0 && p.Lines[n-1].Right <= p.Lines[n-1].Left; n = len(p.Lines) {
		p.Lines = p.Lines[:n-1]
	}
	if len(p.Lines) == 0 {
		p.Top = 0
	}
}
