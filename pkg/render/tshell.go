package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"shellrender/pkg/patch"
	"shellrender/pkg/shell"
)

// subPatch is a cached triangle footprint with the fixed point offset of
// the triangle centroid from the voxel centre.
type subPatch struct {
	p          *patch.Patch
	dx, dy, dz int
}

// tshellState holds the per call triangle caches of a T_SHELL projection.
type tshellState struct {
	detail int
	// levels maps an edge position 0..6 to its detail level
	levels [shell.EdgePositions]int
	// vertex[e][l] is the voxel space point at detail level l of edge e
	vertex [13][shell.EdgePositions]r3.Vec
	cache  []*subPatch
	// weighted sub-patches carry area coverage
	weighted    bool
	translucent bool
	opacity     float64
}

// detailLevels quantizes edge positions: one level keeps the midpoint,
// three levels keep the ends and the midpoint, seven keep every position.
func detailLevels(detail int) (levels [shell.EdgePositions]int, positions []int) {
	switch detail {
	case 7:
		for m := range levels {
			levels[m] = m
		}
		return levels, []int{0, 1, 2, 3, 4, 5, 6}
	case 3:
		for m := range levels {
			switch {
			case m <= 1:
				levels[m] = 0
			case m <= 4:
				levels[m] = 1
			default:
				levels[m] = 2
			}
		}
		return levels, []int{0, 3, 6}
	}
	return levels, []int{3}
}

func corner(v uint8) r3.Vec {
	return r3.Vec{
		X: float64(shell.CornerX[v]) - .5,
		Y: float64(shell.CornerY[v]) - .5,
		Z: float64(shell.CornerZ[v]) - .5,
	}
}

func (j *job) setupTShell() error {
	d := j.p.detail()
	ts := &tshellState{
		detail:      d,
		weighted:    j.p.Fade == FadeWeighted,
		translucent: j.p.Materials[0].Opacity < 1,
		opacity:     j.p.Materials[0].Opacity,
	}
	levels, positions := detailLevels(d)
	ts.levels = levels
	for e := 1; e <= 12; e++ {
		v0, v1 := corner(shell.EdgeVertices[e][0]), corner(shell.EdgeVertices[e][1])
		for l, m := range positions {
			w := float64(2*m+1) / 14
			ts.vertex[e][l] = r3.Add(r3.Scale(1-w, v0), r3.Scale(w, v1))
		}
	}
	n := shell.NumTriangleShapes * d * d * d
	if err := j.sc.acquire("triangle patch cache", 8*n); err != nil {
		return err
	}
	ts.cache = make([]*subPatch, n)
	j.ts = ts
	j.visit = j.tshellVoxel
	if ts.translucent {
		j.paint = j.paintTShell
	} else {
		j.paint = j.paintOpaque8
	}
	return nil
}

// sub returns the cached footprint of a triangle, building it on first use.
func (j *job) sub(t shell.Triangle) *subPatch {
	ts := j.ts
	edges := shell.TriangleEdges(t.Shape)
	var l [3]int
	for k := range l {
		l[k] = ts.levels[t.Position[k]]
	}
	idx := ((t.Shape*ts.detail+l[0])*ts.detail+l[1])*ts.detail + l[2]
	if sp := ts.cache[idx]; sp != nil {
		return sp
	}
	a := ts.vertex[edges[0]][l[0]]
	b := ts.vertex[edges[1]][l[1]]
	c := ts.vertex[edges[2]][l[2]]
	cen := r3.Scale(1./3, r3.Add(r3.Add(a, b), c))
	m := j.m
	img := func(v r3.Vec) (float64, float64, float64) {
		return m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
			m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
			m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z
	}
	cx, cy, cz := img(cen)
	// the footprint is anchored at the pixel of the centroid
	sp := &subPatch{dx: fixedXY(cx), dy: fixedXY(cy), dz: fixedZ(cz)}
	sp.p = patch.Triangle(j.pm, r3.Sub(a, cen), r3.Sub(b, cen), r3.Sub(c, cen), ts.weighted)
	ts.cache[idx] = sp
	return sp
}

func (j *job) tshellVoxel(row shell.Row, i, x, y, z int) error {
	v := row.TShell(i)
	x, y, z, err := j.position(v.Column, x, y, z)
	if err != nil {
		return err
	}
	for k := 0; k < v.NumTriangles(); k++ {
		t := v.Triangle(k)
		a, err := j.angleShade(t.Code)
		if err != nil {
			return err
		}
		if a == 0 {
			continue
		}
		sp := j.sub(t)
		px, py, depth, err := j.locate(x+sp.dx, y+sp.dy, z+sp.dz)
		if err != nil {
			return err
		}
		j.depth = depth
		j.shade = float64(a) * float64(depth) / ShadeScaleFactor
		j.shade8 = uint8(j.shade)
		if err := j.stampPatch(sp.p, px, py); err != nil {
			return err
		}
	}
	return nil
}

// paintTShell composites a translucent triangle fragment over a byte image
// and keeps the nearest depth.
func (j *job) paintTShell(idx int, w uint8) {
	img := j.img
	op := img.Opacity[idx]
	if op >= MaxOpacity {
		return
	}
	alpha := j.ts.opacity * float64(w) / 255
	if alpha <= 0 {
		return
	}
	v := 0.
	if img.Pixels8[idx] != ObjectImageBackground {
		v = float64(img.Pixels8[idx])
	}
	v += (1 - float64(op)/255) * alpha * j.shade
	img.Pixels8[idx] = uint8(math.Min(math.Floor(v+.5), ObjectImageBackground-1))
	img.Opacity[idx] = closeOpacity(op, alpha)
	if j.depth > img.Z[idx] {
		img.Z[idx] = j.depth
	}
}
