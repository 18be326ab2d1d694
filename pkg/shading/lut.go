package shading

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// MaxAngleShade is the largest angle shade, reached by a surface facing
	// the viewer.
	MaxAngleShade = 3840
	// LUTSize is the number of shade lookup table entries, one per 1/128
	// step of the cosine in [-1, 1].
	LUTSize = 257
)

// LUTParams are the parameters of the reflection model.
type LUTParams struct {
	// DiffuseExponent sharpens the diffuse lobe
	DiffuseExponent float64 `yaml:"diffuseExponent"`
	// DiffuseN divides the incidence angle of the diffuse term
	DiffuseN float64 `yaml:"diffuseN"`
	// SpecularFraction is the share of the specular term (0..1)
	SpecularFraction float64 `yaml:"specularFraction"`
	SpecularExponent float64 `yaml:"specularExponent"`
	SpecularN        float64 `yaml:"specularN"`
}

// DefaultLUTParams returns the historical reflection parameters.
func DefaultLUTParams() LUTParams {
	return LUTParams{
		DiffuseExponent:  1,
		DiffuseN:         2,
		SpecularFraction: .2,
		SpecularExponent: 3,
		SpecularN:        1,
	}
}

// Validate checks the parameter ranges.
func (p LUTParams) Validate() error {
	if p.DiffuseN <= 0 || p.SpecularN <= 0 {
		return fmt.Errorf("angle divisors must be positive, got %g and %g", p.DiffuseN, p.SpecularN)
	}
	if p.SpecularFraction < 0 || p.SpecularFraction > 1 {
		return fmt.Errorf("specular fraction %g outside 0..1", p.SpecularFraction)
	}
	return nil
}

// ComputeShadeLUT tabulates the reflection model over the cosine between
// the surface normal and the view direction. Entry i corresponds to the
// cosine 2i/256-1. Every entry is at least 1 so a visible surface never
// shades to zero.
func ComputeShadeLUT(p LUTParams) []int {
	lut := make([]int, LUTSize)
	for i := range lut {
		c := 2*float64(i)/256 - 1
		j := MaxAngleShade * ((1-p.SpecularFraction)*spow(stretchCos(c, p.DiffuseN), p.DiffuseExponent) +
			p.SpecularFraction*spow(stretchCos(c, p.SpecularN), p.SpecularExponent))
		lut[i] = int(math.Max(j, 1))
	}
	return lut
}

// stretchCos divides the angle whose cosine is c by n.
func stretchCos(c, n float64) float64 {
	c = math.Max(-1, math.Min(1, c))
	return math.Cos(math.Acos(c) / n)
}

// spow raises x to e keeping its sign.
func spow(x, e float64) float64 {
	if x < 0 {
		return -math.Pow(-x, e)
	}
	return math.Pow(x, e)
}

// ViewDirection returns the unit voxel-space direction that a projection
// matrix maps onto increasing image depth, i.e. toward the viewer.
func ViewDirection(m mat.Matrix) r3.Vec {
	v := r3.Vec{X: m.At(2, 0), Y: m.At(2, 1), Z: m.At(2, 2)}
	if r3.Norm(v) == 0 {
		return r3.Vec{Z: 1}
	}
	return r3.Unit(v)
}

// AngleShades builds the angle shade table of a codebook for one view.
// The facing cosine of a code is the cosine between the reversed gradient
// and view; back-facing codes shade to 0 unless showBack is set, in which
// case they are lit like their mirror image. The None code takes lut[0].
func AngleShades(cb Codebook, lut []int, view r3.Vec, showBack bool) []int {
	if len(lut) != LUTSize {
		panic(fmt.Sprintf("shading: lookup table has %d entries, want %d", len(lut), LUTSize))
	}
	view = r3.Unit(view)
	shades := make([]int, cb.Codes())
	for code := range shades {
		g := cb.Decode(uint16(code))
		n := r3.Norm(g)
		if n == 0 {
			shades[code] = lut[0]
			continue
		}
		c := -r3.Dot(g, view) / n
		if c < 0 {
			if !showBack {
				shades[code] = 0
				continue
			}
			c = -c
		}
		shades[code] = lut[int(math.Floor((c+1)*128+.5))]
	}
	return shades
}

// Constant returns an angle shade table of a codebook with every entry
// set to shade.
func Constant(cb Codebook, shade int) []int {
	shades := make([]int, cb.Codes())
	for i := range shades {
		shades[i] = shade
	}
	return shades
}
