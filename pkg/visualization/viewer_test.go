package visualization

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"shellrender/internal/models"
	"shellrender/pkg/render"
	"shellrender/pkg/shading"
	"shellrender/pkg/shell"
)

// cubeShell builds the surface voxels of an n^3 binary cube
func cubeShell(t *testing.T, n int) *shell.Data {
	b := shell.NewBuilder(shell.BinaryA, n, n, n)
	for s := 0; s < n; s++ {
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				if c > 0 && c < n-1 && r > 0 && r < n-1 && s > 0 && s < n-1 {
					continue
				}
				b.AddBinary(r, s, shell.BinaryVoxel{Column: c, Code: shading.G.Encode(r3.Vec{Z: 1})})
			}
		}
	}
	d, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return d
}

func newTestViewer(t *testing.T) *Viewer {
	view := render.View{Scale: 2, Width: 32, Height: 32}
	v, err := NewViewer(cubeShell(t, 6), view, render.DefaultParams(), shading.DefaultLUTParams(), false)
	if err != nil {
		t.Fatalf("NewViewer failed: %v", err)
	}
	return v
}

func painted(img *render.Image) int {
	n := 0
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if img.Painted(x, y) {
				n++
			}
		}
	}
	return n
}

func TestRender(t *testing.T) {
	v := newTestViewer(t)
	img, status, err := v.Render(context.Background())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if status != render.Done {
		t.Errorf("Expected a finished projection, got %s", status)
	}
	// six voxels at two pixels each
	if n := painted(img); n < 100 || n > 196 {
		t.Errorf("Expected about 144 painted pixels, got %d", n)
	}
	if img.Painted(0, 0) || !img.Painted(16, 16) {
		t.Error("Expected the cube in the image centre")
	}

	turned, _, err := v.Frame(context.Background(), .6)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if painted(turned) <= painted(img) {
		t.Errorf("Expected a turned cube to cover more pixels, got %d and %d", painted(turned), painted(img))
	}
}

func TestRenderCancelled(t *testing.T) {
	v := newTestViewer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, status, err := v.Render(ctx)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if status != render.Cancelled {
		t.Errorf("Expected a cancelled projection, got %s", status)
	}
	if err := v.SaveTurntable(ctx, t.TempDir(), 2, "png", 90); err == nil {
		t.Error("Expected a cancelled turntable to fail")
	}
}

func TestNewViewerValidates(t *testing.T) {
	p := render.DefaultParams()
	p.Perspective = 150
	if _, err := NewViewer(cubeShell(t, 2), render.View{Scale: 1, Width: 4, Height: 4}, p, shading.DefaultLUTParams(), false); err == nil {
		t.Error("Expected an error for invalid rendering parameters")
	}
}

func TestToImage(t *testing.T) {
	b := render.NewImage(shell.BinaryA, 2, 1)
	b.Pixels8[0] = render.ObjectImageBackground - 1
	gray, ok := ToImage(b).(*image.Gray)
	if !ok {
		t.Fatal("Expected a gray image for a binary shell")
	}
	if gray.Pix[0] != 255 || gray.Pix[1] != 0 {
		t.Errorf("Expected white and black, got %d and %d", gray.Pix[0], gray.Pix[1])
	}

	g := render.NewImage(shell.Gradient, 2, 1)
	g.Pixels16[0] = render.VObjectImageBackground - 1
	g16, ok := ToImage(g).(*image.Gray16)
	if !ok {
		t.Fatal("Expected a 16 bit gray image for a gradient shell")
	}
	if g16.Gray16At(0, 0).Y != 65535 || g16.Gray16At(1, 0).Y != 0 {
		t.Errorf("Expected full and zero, got %d and %d", g16.Gray16At(0, 0).Y, g16.Gray16At(1, 0).Y)
	}

	p := render.NewImage(shell.Percent, 1, 1)
	p.Pixels16[0], p.Pixels16[1], p.Pixels16[2] = render.VObjectImageBackground-1, 0, 0
	rgb, ok := ToImage(p).(*image.RGBA64)
	if !ok {
		t.Fatal("Expected an RGB image for a percent shell")
	}
	if c := rgb.RGBA64At(0, 0); c.R != 65535 || c.G != 0 || c.B != 0 {
		t.Errorf("Expected red, got %v", c)
	}
}

func TestDepthImage(t *testing.T) {
	img := render.NewImage(shell.Gradient, 2, 1)
	img.Pixels16[0] = 1000
	img.Z[0] = render.ZBufferLevels - 1
	img.Z[1] = 500
	d := DepthImage(img)
	if d.Gray16At(0, 0).Y != 65535 {
		t.Errorf("Expected the nearest depth to be white, got %d", d.Gray16At(0, 0).Y)
	}
	if d.Gray16At(1, 0).Y != 0 {
		t.Errorf("Expected an unpainted pixel to be black, got %d", d.Gray16At(1, 0).Y)
	}
}

// TestSaveTurntable verifies that a sequence of frames can be saved
func TestSaveTurntable(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}
	v := newTestViewer(t)
	outputDir := filepath.Join(t.TempDir(), "frames")
	if err := v.SaveTurntable(context.Background(), outputDir, 3, "jpg", 80); err != nil {
		t.Fatalf("Failed to save turntable: %v", err)
	}
	for i := 0; i < 3; i++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("frame_%03d.jpg", i))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected frame file does not exist: %s", filename)
		}
	}
	if err := v.SaveTurntable(context.Background(), outputDir, 0, "png", 0); err == nil {
		t.Error("Expected error for zero frames, got nil")
	}
}

func TestSaveFormats(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for _, name := range []string{"a.png", "b.jpeg"} {
		if err := Save(img, filepath.Join(dir, name), 90); err != nil {
			t.Errorf("Failed to save %s: %v", name, err)
		}
	}
	if err := Save(img, filepath.Join(dir, "c.gif"), 90); err == nil {
		t.Error("Expected error for an unsupported format, got nil")
	}
}

// TestVolumeSlice verifies that slices are correctly extracted from the volume
func TestVolumeSlice(t *testing.T) {
	width, height, depth := 10, 8, 5
	v := models.NewVolume(width, height, depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v.Set(x, y, z, float64(z)/float64(depth-1))
			}
		}
	}

	img, err := VolumeSlice(v, "z", 2)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		t.Errorf("Expected %dx%d, got %dx%d", width, height, b.Dx(), b.Dy())
	}
	r, _, _, _ := img.At(3, 3).RGBA()
	if r < 32700 || r > 32800 {
		t.Errorf("Expected mid gray, got %d", r)
	}

	img, err = VolumeSlice(v, "x", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if b := img.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}

	if _, err := VolumeSlice(v, "y", height); err == nil {
		t.Error("Expected error for position beyond volume, got nil")
	}
	if _, err := VolumeSlice(v, "w", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := VolumeSlice(v, "z", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}
