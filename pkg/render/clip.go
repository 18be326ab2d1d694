package render

import (
	"math"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"shellrender/internal/planar"
)

// clipper finds the rows and slices whose voxels can reach the image. A row
// reaches the image when some column puts the voxel centre inside the
// image box grown by the patch extent, which for the row origin P means
// P lies in the box swept backwards along the column axis.
type clipper struct {
	origin    vec.Vec2
	row       vec.Vec2
	slice     vec.Vec2
	rowsArea  planar.Polygon
	sliceArea planar.Polygon
	nrows     int
	nslices   int
}

// newClipper works in pixel coordinates of voxel centres before
// perspective. ext is the extent of the patch around the voxel pixel.
func newClipper(m [3][3]float64, origin vec.Vec2, ext rect.Rect, width, height, columns, rows, slices int, center vec.Vec2, persp float64) *clipper {
	box := rect.Rect{
		LLx: -ext.URx - 1.5,
		LLy: -ext.URy - 1.5,
		URx: float64(width) - ext.LLx + .5,
		URy: float64(height) - ext.LLy + .5,
	}
	area := planar.Box(box)
	if persp > 0 {
		// foreshortening scales positions about the centre by at least
		// (100-persp)/100, so points this far out may still land inside
		f := (100 - persp) / 100
		far := rect.Rect{
			LLx: center.X + (box.LLx-center.X)/f,
			LLy: center.Y + (box.LLy-center.Y)/f,
			URx: center.X + (box.URx-center.X)/f,
			URy: center.Y + (box.URy-center.Y)/f,
		}
		area = planar.Hull(append(area, planar.Box(far)...))
	}
	col := vec.Vec2{X: m[0][0], Y: m[1][0]}
	c := &clipper{
		origin:  origin,
		row:     vec.Vec2{X: m[0][1], Y: m[1][1]},
		slice:   vec.Vec2{X: m[0][2], Y: m[1][2]},
		nrows:   rows,
		nslices: slices,
	}
	c.rowsArea = planar.Sweep(area, col.Mul(-float64(columns-1)))
	c.sliceArea = planar.Sweep(c.rowsArea, c.row.Mul(-float64(rows-1)))
	return c
}

func indexRange(t0, t1 float64, ok bool, n int, reverse bool) span {
	if !ok {
		return span{first: 0, last: -1, reverse: reverse}
	}
	first, last := 0, n-1
	if !math.IsInf(t0, -1) {
		first = max(first, int(math.Ceil(t0-1e-9)))
	}
	if !math.IsInf(t1, 1) {
		last = min(last, int(math.Floor(t1+1e-9)))
	}
	return span{first: first, last: last, reverse: reverse}
}

// sliceSpan returns the slices that can reach the image.
func (c *clipper) sliceSpan(reverse bool) span {
	t0, t1, ok := planar.ClipLine(c.origin, c.slice, c.sliceArea)
	return indexRange(t0, t1, ok, c.nslices, reverse)
}

// rowSpan returns the rows of a slice that can reach the image.
func (c *clipper) rowSpan(slice int, reverse bool) span {
	o := c.origin.Add(c.slice.Mul(float64(slice)))
	t0, t1, ok := planar.ClipLine(o, c.row, c.rowsArea)
	return indexRange(t0, t1, ok, c.nrows, reverse)
}
