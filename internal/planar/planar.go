// Package planar holds the small amount of 2D convex geometry needed to
// rasterize voxel footprints and to clip rows against the image.
package planar

import (
	"math"
	"sort"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// Polygon is a convex polygon with vertices in counter-clockwise order.
type Polygon []vec.Vec2

func cross(o, a, b vec.Vec2) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// Hull returns the convex hull of pts. Collinear points are dropped.
func Hull(pts []vec.Vec2) Polygon {
	p := append([]vec.Vec2(nil), pts...)
	sort.Slice(p, func(i, j int) bool {
		if p[i].X != p[j].X {
			return p[i].X < p[j].X
		}
		return p[i].Y < p[j].Y
	})
	if len(p) < 3 {
		return Polygon(p)
	}
	h := make([]vec.Vec2, 0, 2*len(p))
	for _, q := range p {
		for len(h) >= 2 && cross(h[len(h)-2], h[len(h)-1], q) <= 0 {
			h = h[:len(h)-1]
		}
		h = append(h, q)
	}
	lower := len(h) + 1
	for i := len(p) - 2; i >= 0; i-- {
		q := p[i]
		for len(h) >= lower && cross(h[len(h)-2], h[len(h)-1], q) <= 0 {
			h = h[:len(h)-1]
		}
		h = append(h, q)
	}
	return Polygon(h[:len(h)-1])
}

// Box returns the corners of r as a polygon.
func Box(r rect.Rect) Polygon {
	return Polygon{
		{X: r.LLx, Y: r.LLy},
		{X: r.URx, Y: r.LLy},
		{X: r.URx, Y: r.URy},
		{X: r.LLx, Y: r.URy},
	}
}

// Sweep returns the hull of p together with p translated by d.
func Sweep(p Polygon, d vec.Vec2) Polygon {
	pts := make([]vec.Vec2, 0, 2*len(p))
	for _, q := range p {
		pts = append(pts, q, q.Add(d))
	}
	return Hull(pts)
}

// Grow returns the Minkowski sum of p with the square [-h,h]^2.
func Grow(p Polygon, h float64) Polygon {
	pts := make([]vec.Vec2, 0, 4*len(p))
	for _, q := range p {
		pts = append(pts,
			vec.Vec2{X: q.X - h, Y: q.Y - h}, vec.Vec2{X: q.X + h, Y: q.Y - h},
			vec.Vec2{X: q.X + h, Y: q.Y + h}, vec.Vec2{X: q.X - h, Y: q.Y + h})
	}
	return Hull(pts)
}

// Bounds returns the bounding rectangle of p.
func (p Polygon) Bounds() rect.Rect {
	r := rect.Rect{LLx: math.Inf(1), LLy: math.Inf(1), URx: math.Inf(-1), URy: math.Inf(-1)}
	for _, q := range p {
		r.LLx = math.Min(r.LLx, q.X)
		r.LLy = math.Min(r.LLy, q.Y)
		r.URx = math.Max(r.URx, q.X)
		r.URy = math.Max(r.URy, q.Y)
	}
	return r
}

// Span returns the extent of the intersection of p with the horizontal line
// at y. ok is false if the line misses p.
func (p Polygon) Span(y float64) (xmin, xmax float64, ok bool) {
	xmin, xmax = math.Inf(1), math.Inf(-1)
	for i := range p {
		a, b := p[i], p[(i+1)%len(p)]
		switch {
		case a.Y == b.Y:
			if a.Y == y {
				xmin = math.Min(xmin, math.Min(a.X, b.X))
				xmax = math.Max(xmax, math.Max(a.X, b.X))
			}
		case (a.Y <= y && y <= b.Y) || (b.Y <= y && y <= a.Y):
			x := a.X + (y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			xmin = math.Min(xmin, x)
			xmax = math.Max(xmax, x)
		}
	}
	return xmin, xmax, xmin <= xmax
}

// ContainsStrict reports whether q lies in the interior of p.
func (p Polygon) ContainsStrict(q vec.Vec2) bool {
	if len(p) < 3 {
		return false
	}
	for i := range p {
		if cross(p[i], p[(i+1)%len(p)], q) <= 0 {
			return false
		}
	}
	return true
}

// ClipLine returns the parameter interval [t0, t1] of the line o+t*d that
// lies inside p. A direction of zero length yields the whole line when o is
// inside p and nothing otherwise.
func ClipLine(o, d vec.Vec2, p Polygon) (t0, t1 float64, ok bool) {
	t0, t1 = math.Inf(-1), math.Inf(1)
	if len(p) < 3 {
		return 0, 0, false
	}
	for i := range p {
		a, b := p[i], p[(i+1)%len(p)]
		e := b.Sub(a)
		// inside where cross(e, o+t*d-a) >= 0
		num := e.X*(o.Y-a.Y) - e.Y*(o.X-a.X)
		den := e.X*d.Y - e.Y*d.X
		if den == 0 {
			if num < 0 {
				return 0, 0, false
			}
			continue
		}
		t := -num / den
		if den > 0 {
			t0 = math.Max(t0, t)
		} else {
			t1 = math.Min(t1, t)
		}
	}
	return t0, t1, t0 <= t1
}

// Area returns the area of p.
func (p Polygon) Area() float64 {
	s := 0.
	for i := range p {
		a, b := p[i], p[(i+1)%len(p)]
		s += a.X*b.Y - b.X*a.Y
	}
	return s / 2
}
