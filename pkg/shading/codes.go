// Package shading implements the illumination model consumed by the
// projection engine: the quantized gradient codebooks stored in shell
// entries, the shade lookup table and the per-code angle shades for a view.
//
// Codes store the intensity gradient, which points into the object. A
// surface faces the viewer when its gradient points away from the viewer.
package shading

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Codebook quantizes unit directions onto the faces of a cube. A code holds
// the face (0..5) and two components with Bits bits each.
type Codebook struct {
	Bits int
}

var (
	// G is the 11 bit codebook of gradient, percent and direct shells.
	G = Codebook{Bits: 4}
	// BG is the 15 bit codebook of T_SHELL triangle normals.
	BG = Codebook{Bits: 6}
)

func (cb Codebook) norm() float64 {
	return float64(int(1) << (cb.Bits - 1))
}

func (cb Codebook) mask() int {
	return 1<<cb.Bits - 1
}

// None is the code of a voxel without gradient.
func (cb Codebook) None() uint16 {
	return uint16(6 << (2 * cb.Bits))
}

// Codes is the number of codes including None.
func (cb Codebook) Codes() int {
	return int(cb.None()) + 1
}

// Decode returns the unnormalized direction of a code. None and invalid
// codes decode to the zero vector.
func (cb Codebook) Decode(code uint16) r3.Vec {
	face := int(code) >> (2 * cb.Bits)
	if face >= 6 {
		return r3.Vec{}
	}
	n := cb.norm()
	c1 := n - (float64(int(code)>>cb.Bits&cb.mask()) + .5)
	c2 := n - (float64(int(code)&cb.mask()) + .5)
	switch face {
	case 0:
		return r3.Vec{X: -n, Y: c1, Z: c2}
	case 1:
		return r3.Vec{X: c1, Y: -n, Z: c2}
	case 2:
		return r3.Vec{X: c1, Y: c2, Z: -n}
	case 3:
		return r3.Vec{X: n, Y: c1, Z: c2}
	case 4:
		return r3.Vec{X: c1, Y: n, Z: c2}
	}
	return r3.Vec{X: c1, Y: c2, Z: n}
}

// Encode returns the code nearest to direction v. The zero vector encodes
// as None.
func (cb Codebook) Encode(v r3.Vec) uint16 {
	ax, ay, az := math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)
	var face int
	var major, a, b float64
	switch {
	case ax >= ay && ax >= az:
		face, major, a, b = 0, v.X, v.Y, v.Z
	case ay >= az:
		face, major, a, b = 1, v.Y, v.X, v.Z
	default:
		face, major, a, b = 2, v.Z, v.X, v.Y
	}
	if major == 0 || math.IsNaN(major) {
		return cb.None()
	}
	if major > 0 {
		face += 3
	}
	n := cb.norm()
	s := n / math.Abs(major)
	return uint16(face<<(2*cb.Bits) | cb.component(n-a*s)<<cb.Bits | cb.component(n-b*s))
}

func (cb Codebook) component(x float64) int {
	k := int(math.Floor(x))
	if k < 0 {
		return 0
	}
	if k > cb.mask() {
		return cb.mask()
	}
	return k
}
