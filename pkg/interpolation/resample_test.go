package interpolation

import (
	"math"
	"testing"

	"shellrender/internal/models"
)

// createTestVolume builds a volume whose intensity is f(x, y, z)
func createTestVolume(w, h, d int, f func(x, y, z int) float64) *models.Volume {
	v := models.NewVolume(w, h, d)
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v.Set(x, y, z, f(x, y, z))
			}
		}
	}
	return v
}

// TestLinearRamp verifies that a ramp along the slices is reproduced
// between them
func TestLinearRamp(t *testing.T) {
	v := createTestVolume(3, 2, 4, func(x, y, z int) float64 { return float64(z) / 4 })
	r := NewResampler(Linear, 2)
	out, err := r.Resample(v, Positions(4, 2), 1)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if out.Depth != 7 {
		t.Fatalf("Expected 7 slices, got %d", out.Depth)
	}
	if out.VoxelSize.Z != 1 {
		t.Errorf("Expected slice spacing 1, got %f", out.VoxelSize.Z)
	}
	for k := 0; k < out.Depth; k++ {
		want := float64(k) / 8
		if got := out.At(2, 1, k); math.Abs(got-want) > 1e-12 {
			t.Errorf("Expected %f at slice %d, got %f", want, k, got)
		}
	}
}

// TestMonotoneStep checks that the monotone interpolant stays inside the
// range of the data across a step
func TestMonotoneStep(t *testing.T) {
	v := createTestVolume(1, 1, 6, func(x, y, z int) float64 {
		if z < 3 {
			return .1
		}
		return .9
	})
	for _, m := range []Method{Monotone, Linear} {
		out, err := NewResampler(m, 1).Resample(v, Positions(6, 3), .5)
		if err != nil {
			t.Fatalf("%s: Resample failed: %v", m, err)
		}
		prev := 0.
		for k := 0; k < out.Depth; k++ {
			val := out.At(0, 0, k)
			if val < .1-1e-12 || val > .9+1e-12 {
				t.Errorf("%s: value %f at slice %d outside the data range", m, val, k)
			}
			if val < prev-1e-12 {
				t.Errorf("%s: value decreases at slice %d", m, k)
			}
			prev = val
		}
	}
}

func TestInvalidPositions(t *testing.T) {
	v := models.NewVolume(2, 2, 3)
	r := NewResampler(Linear, 1)
	if _, err := r.Resample(v, []float64{0, 1}, 1); err == nil {
		t.Error("Expected an error for a missing position")
	}
	if _, err := r.Resample(v, []float64{0, 2, 2}, 1); err == nil {
		t.Error("Expected an error for repeated positions")
	}
	if _, err := r.Resample(v, []float64{0, 1, 2}, 0); err == nil {
		t.Error("Expected an error for zero spacing")
	}
}

func TestProgressCallback(t *testing.T) {
	v := models.NewVolume(4, 5, 2)
	r := NewResampler(Akima, 3)
	calls, last := 0, 0
	r.SetProgressCallback(func(completed, total int, message string) {
		calls++
		last = completed
		if total != 5 {
			t.Errorf("Expected total 5, got %d", total)
		}
	})
	if _, err := r.Resample(v, Positions(2, 1), .25); err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if calls != 5 || last != 5 {
		t.Errorf("Expected 5 progress calls ending at 5, got %d ending at %d", calls, last)
	}
}

func TestParseMethod(t *testing.T) {
	for _, m := range []Method{Linear, Monotone, Akima} {
		got, err := ParseMethod(m.String())
		if err != nil || got != m {
			t.Errorf("Expected %s to parse back, got %v, %v", m, got, err)
		}
	}
	if _, err := ParseMethod("cubic"); err == nil {
		t.Error("Expected an error for an unknown method")
	}
}
