package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// coords holds the fixed point coordinate tables of a projection: x and y
// in 1/0x10000 pixel, z in 1/ZSublevels z-buffer level. The column tables
// hold the displacement of every column from the row origin; rows and
// slices advance by constant steps.
type coords struct {
	colX, colY, colZ       []int
	rowX, rowY, rowZ       int
	sliceX, sliceY, sliceZ int
	startX, startY, startZ int
}

func fixedXY(v float64) int {
	return int(math.Floor(fixedOne*v + .5))
}

func fixedZ(v float64) int {
	return int(math.Floor(ZSublevels*v + .5))
}

func newCoords(m [3][3]float64, off r3.Vec, columns int) coords {
	c := coords{
		colX:   make([]int, columns),
		colY:   make([]int, columns),
		colZ:   make([]int, columns),
		rowX:   fixedXY(m[0][1]),
		rowY:   fixedXY(m[1][1]),
		rowZ:   fixedZ(m[2][1]),
		sliceX: fixedXY(m[0][2]),
		sliceY: fixedXY(m[1][2]),
		sliceZ: fixedZ(m[2][2]),
		// the half pixel turns truncation into rounding to the nearest
		// pixel centre
		startX: int(math.Floor(fixedOne * (off.X + .5))),
		startY: int(math.Floor(fixedOne * (off.Y + .5))),
		startZ: int(math.Floor(ZSublevels * off.Z)),
	}
	fx, fy, fz := fixedXY(m[0][0]), fixedXY(m[1][0]), fixedZ(m[2][0])
	x, y, z := 0, 0, 0
	for i := 0; i < columns; i++ {
		c.colX[i], c.colY[i], c.colZ[i] = x, y, z
		x += fx
		y += fy
		z += fz
	}
	return c
}

// coordsBytes is the scratch size of the tables.
func coordsBytes(columns int) int {
	return 3 * 8 * columns
}

// origin returns the fixed point position of column 0 of a row.
func (c *coords) origin(slice, row int) (x, y, z int) {
	return c.startX + slice*c.sliceX + row*c.rowX,
		c.startY + slice*c.sliceY + row*c.rowY,
		c.startZ + slice*c.sliceZ + row*c.rowZ
}
