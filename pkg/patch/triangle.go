package patch

import (
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"seehuhn.de/go/geom/vec"

	"shellrender/internal/planar"
)

// Triangle returns the patch of a triangle whose vertices a, b and c are
// given in voxel units relative to the voxel centre. When weighted is set
// every pixel is weighted by the share of its area the projected triangle
// covers and uncovered edge pixels are trimmed away.
func Triangle(m mat.Matrix, a, b, c r3.Vec, weighted bool) *Patch {
	pts := []vec.Vec2{
		project(m, a.X, a.Y, a.Z),
		project(m, b.X, b.Y, b.Z),
		project(m, c.X, c.Y, c.Z),
	}
	p := rasterize(planar.Grow(planar.Hull(pts), .5))
	if !weighted || p.Pixels() == 0 || area(m, a, b, c) < eps {
		return p
	}

	ext := p.Extent()
	left, top := int(ext.LLx), p.Top
	w, h := int(ext.URx)-left+1, len(p.Lines)
	z := vector.NewRasterizer(w, h)
	z.DrawOp = draw.Src
	ox, oy := float64(left)-.5, float64(top)-.5
	z.MoveTo(float32(pts[0].X-ox), float32(pts[0].Y-oy))
	z.LineTo(float32(pts[1].X-ox), float32(pts[1].Y-oy))
	z.LineTo(float32(pts[2].X-ox), float32(pts[2].Y-oy))
	z.ClosePath()
	cover := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(cover, cover.Bounds(), image.Opaque, image.Point{})

	q := &Patch{Top: p.Top, Lines: make([]Line, len(p.Lines))}
	covered := false
	for i, l := range p.Lines {
		wt := make([]uint8, l.Right-l.Left)
		for x := l.Left; x < l.Right; x++ {
			wt[x-l.Left] = cover.AlphaAt(x-left, i).A
			covered = covered || wt[x-l.Left] > 0
		}
		q.Lines[i] = Line{Left: l.Left, Right: l.Right, Weights: wt}
	}
	if !covered {
		// degenerate triangle
		return p
	}
	Trim(q)
	return q
}

// area returns the image space area of a triangle projected through m.
func area(m mat.Matrix, a, b, c r3.Vec) float64 {
	pa, pb, pc := project(m, a.X, a.Y, a.Z), project(m, b.X, b.Y, b.Z), project(m, c.X, c.Y, c.Z)
	u, v := pb.Sub(pa), pc.Sub(pa)
	return math.Abs(u.X*v.Y-u.Y*v.X) / 2
}
