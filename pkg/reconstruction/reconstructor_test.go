package reconstruction

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"shellrender/internal/models"
	"shellrender/pkg/shading"
	"shellrender/pkg/shell"
	"shellrender/pkg/shellio"
)

// createTestImage creates a grayscale test image with the specified dimensions and pattern
func createTestImage(width, height int, pattern func(x, y int) uint16) image.Image {
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.Gray16{Y: pattern(x, y)})
		}
	}
	return img
}

// createTestSlices writes slices of a sphere of radius 6 centred in a
// 24x24 image stack, one PNG per slice
func createTestSlices(t *testing.T, dir string, count int) {
	const size = 24
	for i := 0; i < count; i++ {
		dz := float64(i-count/2) * 2
		img := createTestImage(size, size, func(x, y int) uint16 {
			dx, dy := float64(x-size/2), float64(y-size/2)
			if dx*dx+dy*dy+dz*dz <= 36 {
				return 60000
			}
			return 4000
		})
		filename := filepath.Join(dir, fmt.Sprintf("slice_%d.png", i))
		f, err := os.Create(filename)
		if err != nil {
			t.Fatalf("Failed to create test image: %v", err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			t.Fatalf("Failed to encode test image: %v", err)
		}
		f.Close()
	}
}

// sphereVolume returns an n^3 volume that is 1 within radius r of its centre
func sphereVolume(n int, r float64) *models.Volume {
	v := models.NewVolume(n, n, n)
	c := float64(n-1) / 2
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				dx, dy, dz := float64(x)-c, float64(y)-c, float64(z)-c
				if dx*dx+dy*dy+dz*dz <= r*r {
					v.Set(x, y, z, 1)
				}
			}
		}
	}
	return v
}

// TestBasicReconstructor runs the whole pipeline on generated slices
func TestBasicReconstructor(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	inputDir := t.TempDir()
	createTestSlices(t, inputDir, 7)
	outputFile := filepath.Join(t.TempDir(), "out", "sphere.shl")

	r := NewReconstructor(&Params{
		InputDir:      inputDir,
		OutputFile:    outputFile,
		NumCores:      2,
		SliceGap:      2,
		PixelSpacing:  1,
		Sigma:         1,
		Extract:       ExtractParams{Class: shell.Gradient, Threshold: .5},
		AutoThreshold: true,
	})
	if err := r.Process(); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	v := r.Volume()
	if v.Depth != 13 {
		t.Errorf("Expected 13 resampled slices, got %d", v.Depth)
	}
	stats := r.GetStats()
	if stats.Threshold <= 0 || stats.Threshold >= 1 {
		t.Errorf("Expected a threshold inside (0, 1), got %g", stats.Threshold)
	}
	if stats.Voxels == 0 || stats.Voxels != r.Shell().Count() {
		t.Errorf("Expected a non-empty shell of %d voxels, got %d", r.Shell().Count(), stats.Voxels)
	}

	f, err := shellio.Open(outputFile)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer f.Close()
	if f.Class() != shell.Gradient || f.Header.Slices != 13 {
		t.Errorf("Expected a 13 slice gradient shell, got %s with %d slices", f.Class(), f.Header.Slices)
	}
}

// TestNewReconstructor verifies that a new reconstructor is correctly initialized
func TestNewReconstructor(t *testing.T) {
	params := &Params{
		InputDir:   "/path/to/input",
		OutputFile: "output.shl",
		NumCores:   4,
		SliceGap:   2.5,
	}

	reconstructor := NewReconstructor(params)

	if reconstructor.params != params {
		t.Errorf("Reconstructor should use the provided params")
	}
	if len(reconstructor.slices) != 0 {
		t.Errorf("New reconstructor should have empty slices")
	}
	if reconstructor.Shell() != nil {
		t.Errorf("New reconstructor should have no shell")
	}
}

func TestLoadSlicesErrors(t *testing.T) {
	empty := t.TempDir()
	if err := NewReconstructor(&Params{InputDir: empty}).Process(); err == nil {
		t.Error("Expected an error for a directory without images")
	}

	dir := t.TempDir()
	for i, size := range []int{8, 9} {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("s%d.png", i)))
		if err != nil {
			t.Fatalf("Failed to create test image: %v", err)
		}
		png.Encode(f, createTestImage(size, size, func(x, y int) uint16 { return 0 }))
		f.Close()
	}
	if err := NewReconstructor(&Params{InputDir: dir}).Process(); err == nil {
		t.Error("Expected an error for slices of different sizes")
	}
}

// TestExtractNumber verifies the extraction of numeric parts from filenames
func TestExtractNumber(t *testing.T) {
	testCases := []struct {
		filename string
		expected int
	}{
		{"slice_1.jpg", 1},
		{"slice_023.jpg", 23},
		{"img456.png", 456},
		{"not_a_number.jpg", 0},
		{"mixed123text456.jpg", 123456},
	}

	for _, tc := range testCases {
		result := extractNumber(tc.filename)
		if result != tc.expected {
			t.Errorf("extractNumber(%s): expected %d, got %d", tc.filename, tc.expected, result)
		}
	}
}

func TestImageToFloat(t *testing.T) {
	width, height := 4, 4
	img := createTestImage(width, height, func(x, y int) uint16 {
		return uint16((x + y*width) * 4096)
	})
	data := make([]float64, width*height)
	imageToFloat(img, data)
	for i, v := range data {
		expected := float64(i*4096) / 65535.0
		if math.Abs(v-expected) > 1e-9 {
			t.Errorf("Pixel %d: expected %f, got %f", i, expected, v)
		}
	}
}

// TestExtractBinary checks that a binary shell holds exactly the object
// voxels with a background neighbour and that their flags name the object
// neighbours
func TestExtractBinary(t *testing.T) {
	v := sphereVolume(11, 4)
	d, err := Extract(v, ExtractParams{Class: shell.BinaryA, Threshold: .5})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	expected := 0
	for z := 0; z < v.Depth; z++ {
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				if v.At(x, y, z) == 0 {
					continue
				}
				for _, n := range neighbors {
					if v.At(x+n.dx, y+n.dy, z+n.dz) == 0 {
						expected++
						break
					}
				}
			}
		}
	}
	if d.Count() != expected {
		t.Errorf("Expected %d shell voxels, got %d", expected, d.Count())
	}

	c := shell.NewCursor(d)
	for z := 0; z < d.Slices; z++ {
		if err := c.Seek(z); err != nil {
			t.Fatalf("Seek failed: %v", err)
		}
		for y := 0; y < d.Rows; y++ {
			row := c.Row(y)
			for i := 0; i < row.Len(); i++ {
				b := row.Binary(i)
				for _, n := range neighbors {
					inside := v.At(b.Column+n.dx, y+n.dy, z+n.dz) == 1
					if (b.Neighbors&n.flag != 0) != inside {
						t.Fatalf("Voxel (%d,%d,%d): wrong neighbor flag %#x", b.Column, y, z, n.flag)
					}
				}
			}
		}
	}
}

// TestExtractGradient samples a ramp along x. Voxels on the window
// 0.35..0.65 become translucent; the opaque voxel next to them and the
// voxel on the volume border bound the shell
func TestExtractGradient(t *testing.T) {
	const n = 11
	v := models.NewVolume(n, n, n)
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				v.Set(x, y, z, float64(x)/10)
			}
		}
	}
	d, err := Extract(v, ExtractParams{Class: shell.Gradient, Threshold: .5, Window: .15})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	c := shell.NewCursor(d)
	if err := c.Seek(5); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	row := c.Row(5)
	columns := []int{4, 5, 6, 7, 10}
	opacities := []int{43, 128, 213, 255, 255}
	if row.Len() != len(columns) {
		t.Fatalf("Expected %d voxels in the centre row, got %d", len(columns), row.Len())
	}
	for i := range columns {
		g := row.Gradient(i)
		if g.Column != columns[i] {
			t.Errorf("Voxel %d: expected column %d, got %d", i, columns[i], g.Column)
		}
		if math.Abs(float64(int(g.Opacity)-opacities[i])) > 1 {
			t.Errorf("Voxel %d: expected opacity %d, got %d", i, opacities[i], g.Opacity)
		}
	}
	// the ramp rises along +x
	if g := row.Gradient(1); g.Code != shading.G.Encode(r3.Vec{X: 1}) {
		t.Errorf("Expected a +x gradient code, got %#x", g.Code)
	}
}

func TestExtractPercentAndDirect(t *testing.T) {
	v := models.NewVolume(3, 3, 3)
	v.Set(1, 1, 1, .5)

	d, err := Extract(v, ExtractParams{Class: shell.Percent, Threshold: .5})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	c := shell.NewCursor(d)
	if err := c.Seek(1); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	row := c.Row(1)
	if d.Count() != 1 || row.Len() != 1 {
		t.Fatalf("Expected a single voxel, got %d", d.Count())
	}
	p := row.Percent(0)
	if p.Column != 1 || p.Back != 0 || p.Front != 1 || math.Abs(float64(p.Percent)-128) > 1 {
		t.Errorf("Expected a half share of material 1 at column 1, got %+v", p)
	}

	d, err = Extract(v, ExtractParams{Class: shell.Direct, Threshold: .5})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if math.Abs(d.Thresholds[0]-.4*65535) > 1 || math.Abs(d.Thresholds[1]-.6*65535) > 1 {
		t.Errorf("Expected the window as the first ramp, got %v", d.Thresholds)
	}
	c = shell.NewCursor(d)
	if err := c.Seek(1); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if got := c.Row(1).Direct(0).Intensity; got != 32768 {
		t.Errorf("Expected intensity 32768, got %d", got)
	}
}

// TestExtractTShell triangulates a single object voxel: the one cell with a
// corner inside gets vertex 6 and triangles through the edge midpoints
// facing out of the voxel
func TestExtractTShell(t *testing.T) {
	v := models.NewVolume(3, 3, 3)
	v.Set(1, 1, 1, 1)
	p := ExtractParams{Class: shell.TShell, Threshold: .5}
	e := &extractor{v: v, p: p}
	if got := e.config(0, 0, 0); got != 1<<5 {
		t.Errorf("Expected configuration 32, got %d", got)
	}

	shapes := shell.ConfigTriangles(1 << 5)
	if len(shapes) == 0 {
		t.Fatal("Expected triangles for configuration 32")
	}
	tri := e.triangle(0, 0, 0, int(shapes[0]))
	if tri.Position != [3]int{3, 3, 3} {
		t.Errorf("Expected midpoint vertices, got %v", tri.Position)
	}
	n := r3.Unit(shading.BG.Decode(tri.Code))
	if r3.Dot(n, r3.Unit(r3.Vec{X: 1, Y: 1, Z: 1})) < .99 {
		t.Errorf("Expected a normal towards the object voxel, got %v", n)
	}

	d, err := Extract(v, p)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if d.Columns != 2 || d.Rows != 2 || d.Slices != 2 {
		t.Errorf("Expected a 2x2x2 cell shell, got %dx%dx%d", d.Columns, d.Rows, d.Slices)
	}
	// all eight cells touch the voxel
	if d.Count() != 8 {
		t.Errorf("Expected 8 cells, got %d", d.Count())
	}
}

func TestExtractValidate(t *testing.T) {
	v := sphereVolume(5, 2)
	cases := []ExtractParams{
		{Class: shell.Class(9), Threshold: .5},
		{Class: shell.BinaryA, Threshold: 0},
		{Class: shell.BinaryA, Threshold: 1},
		{Class: shell.Gradient, Threshold: .5, Window: .5},
		{Class: shell.Direct, Threshold: .5, Thresholds: shell.Thresholds{.5, .4, .6, .7, .8, .9}},
	}
	for i, p := range cases {
		if _, err := Extract(v, p); err == nil {
			t.Errorf("Case %d: expected an error", i)
		}
	}
	if _, err := Extract(models.NewVolume(1, 4, 4), ExtractParams{Class: shell.TShell, Threshold: .5}); err == nil {
		t.Error("Expected an error for a volume too thin to triangulate")
	}
}

func TestIsoData(t *testing.T) {
	data := make([]float64, 0, 100)
	for i := 0; i < 50; i++ {
		data = append(data, .1, .9)
	}
	if got := IsoData(data); math.Abs(got-.5) > 1e-9 {
		t.Errorf("Expected threshold 0.5, got %g", got)
	}
	if got := IsoData(nil); got != .5 {
		t.Errorf("Expected 0.5 for no data, got %g", got)
	}
}
