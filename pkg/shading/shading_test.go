package shading

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestCodebookSizes(t *testing.T) {
	if G.None() != 0x600 || G.Codes() != 1537 {
		t.Errorf("Expected G none 0x600 and 1537 codes, got %#x and %d", G.None(), G.Codes())
	}
	if BG.None() != 0x6000 || BG.Codes() != 24577 {
		t.Errorf("Expected BG none 0x6000 and 24577 codes, got %#x and %d", BG.None(), BG.Codes())
	}
	if v := G.Decode(G.None()); v != (r3.Vec{}) {
		t.Errorf("Expected the none code to decode to zero, got %v", v)
	}
	if G.Encode(r3.Vec{}) != G.None() {
		t.Errorf("Expected the zero vector to encode as none")
	}
}

// TestEncodeDecode checks that quantized directions stay within the
// angular resolution of each codebook
func TestEncodeDecode(t *testing.T) {
	dirs := []r3.Vec{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
		{X: 1, Y: 1, Z: 1}, {X: -.3, Y: .8, Z: .1}, {X: .2, Y: -.1, Z: -.9},
	}
	for _, cb := range []Codebook{G, BG} {
		limit := 2.5 / cb.norm()
		for _, d := range dirs {
			got := cb.Decode(cb.Encode(d))
			cos := r3.Dot(r3.Unit(got), r3.Unit(d))
			if angle := math.Acos(math.Min(1, cos)); angle > limit {
				t.Errorf("Bits %d: direction %v came back as %v (%.3f rad)", cb.Bits, d, got, angle)
			}
		}
	}
}

func TestComputeShadeLUT(t *testing.T) {
	lut := ComputeShadeLUT(DefaultLUTParams())
	if len(lut) != LUTSize {
		t.Fatalf("Expected %d entries, got %d", LUTSize, len(lut))
	}
	if lut[256] < MaxAngleShade-1 {
		t.Errorf("Expected full shade %d facing the viewer, got %d", MaxAngleShade, lut[256])
	}
	for i, v := range lut {
		if v < 1 || v > MaxAngleShade {
			t.Errorf("Entry %d = %d outside 1..%d", i, v, MaxAngleShade)
		}
		if i > 0 && v < lut[i-1] {
			t.Errorf("Expected a non-decreasing table, entry %d = %d after %d", i, v, lut[i-1])
		}
	}
}

func TestAngleShades(t *testing.T) {
	lut := ComputeShadeLUT(DefaultLUTParams())
	m := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	view := ViewDirection(m)
	shades := AngleShades(G, lut, view, false)
	if len(shades) != G.Codes() {
		t.Fatalf("Expected %d shades, got %d", G.Codes(), len(shades))
	}

	// gradient pointing away from the viewer: the surface faces the viewer
	facing := G.Encode(r3.Vec{Z: -1})
	if shades[facing] < lut[250] {
		t.Errorf("Expected a facing surface to be nearly fully lit, got %d", shades[facing])
	}
	away := G.Encode(r3.Vec{Z: 1})
	if shades[away] != 0 {
		t.Errorf("Expected a back-facing surface to be dark, got %d", shades[away])
	}
	if shades[G.None()] != lut[0] {
		t.Errorf("Expected the none code to take lut[0]=%d, got %d", lut[0], shades[G.None()])
	}

	back := AngleShades(G, lut, view, true)
	if back[away] != back[facing] {
		t.Errorf("Expected show-back to mirror shades, got %d and %d", back[away], back[facing])
	}
}
