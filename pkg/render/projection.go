package render

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"seehuhn.de/go/geom/vec"
)

// Projection maps voxel space onto the image. Matrix transforms a
// displacement in column, row and slice units to image x, y in pixels and
// depth in z-buffer levels. Offset is the image position and depth of the
// centre of voxel (0, 0, 0); pixel centres lie at integer coordinates.
type Projection struct {
	Matrix mat.Matrix
	Offset r3.Vec
	// Center is the image point perspective foreshortens towards. The zero
	// value selects the centre of the image.
	Center vec.Vec2
}

func (p Projection) matrix() ([3][3]float64, error) {
	var m [3][3]float64
	if p.Matrix == nil {
		return m, fmt.Errorf("%w: no projection matrix", ErrContract)
	}
	if r, c := p.Matrix.Dims(); r != 3 || c != 3 {
		return m, fmt.Errorf("%w: projection matrix is %dx%d", ErrContract, r, c)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = p.Matrix.At(i, j)
		}
	}
	return m, nil
}

// View builds projections that turn a volume about its centre and place
// it in the middle of an image and of the z-buffer range. The viewer looks
// along the rotated slice axis, so slice 0 is nearest without rotation.
type View struct {
	Columns, Rows, Slices int
	// Spacing is the voxel size along each axis
	Spacing r3.Vec
	// Scale is pixels per spacing unit
	Scale float64
	// Depth is z-buffer levels per spacing unit; zero fits the volume
	// diagonal into nine tenths of the z-buffer range whatever the image
	// size and scale
	Depth float64
	// Rotations are applied in order
	Rotations     []r3.Rotation
	Width, Height int
}

// Projection returns the projection of the view.
func (v View) Projection() Projection {
	spacing := v.Spacing
	if spacing == (r3.Vec{}) {
		spacing = r3.Vec{X: 1, Y: 1, Z: 1}
	}
	depth := v.Depth
	if depth == 0 {
		diag := r3.Norm(r3.Vec{
			X: float64(v.Columns) * spacing.X,
			Y: float64(v.Rows) * spacing.Y,
			Z: float64(v.Slices) * spacing.Z,
		})
		depth = ZBufferLevels * .9 / max(diag, 1)
	}
	axes := [3]r3.Vec{{X: spacing.X}, {Y: spacing.Y}, {Z: spacing.Z}}
	m := mat.NewDense(3, 3, nil)
	for j, a := range axes {
		for _, rot := range v.Rotations {
			a = rot.Rotate(a)
		}
		m.Set(0, j, v.Scale*a.X)
		m.Set(1, j, v.Scale*a.Y)
		m.Set(2, j, -depth*a.Z)
	}
	c := r3.Vec{
		X: float64(v.Columns-1) / 2,
		Y: float64(v.Rows-1) / 2,
		Z: float64(v.Slices-1) / 2,
	}
	var mc r3.Vec
	mc.X = m.At(0, 0)*c.X + m.At(0, 1)*c.Y + m.At(0, 2)*c.Z
	mc.Y = m.At(1, 0)*c.X + m.At(1, 1)*c.Y + m.At(1, 2)*c.Z
	mc.Z = m.At(2, 0)*c.X + m.At(2, 1)*c.Y + m.At(2, 2)*c.Z
	return Projection{
		Matrix: m,
		Offset: r3.Sub(r3.Vec{X: float64(v.Width-1) / 2, Y: float64(v.Height-1) / 2, Z: MiddleDepth}, mc),
	}
}
