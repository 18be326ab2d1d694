package shellio

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"shellrender/pkg/render"
	"shellrender/pkg/shading"
	"shellrender/pkg/shell"
)

// gradientShell builds a small gradient sphere
func gradientShell(t *testing.T) *shell.Data {
	const n = 10
	b := shell.NewBuilder(shell.Gradient, n, n, n)
	for s := 0; s < n; s++ {
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				dx, dy, dz := c-n/2, r-n/2, s-n/2
				d2 := dx*dx + dy*dy + dz*dz
				if d2 <= 16 && d2 >= 9 {
					b.AddGradient(r, s, shell.GradientVoxel{
						Column:     c,
						Code:       shading.G.Encode(r3.Vec{X: float64(-dx), Y: float64(-dy), Z: float64(-dz)}),
						Opacity:    uint8(10 * d2),
						Likelihood: uint8(c * 20),
					})
				}
			}
		}
	}
	d, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return d
}

func writeShell(t *testing.T, d *shell.Data) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volume.shl")
	if err := Write(path, d); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return path
}

func TestResidentRoundTrip(t *testing.T) {
	want := gradientShell(t)
	f, err := Open(writeShell(t, want))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	if f.Class() != shell.Gradient || f.Header.Slices != want.Slices {
		t.Errorf("Expected a gradient shell of %d slices, got %s with %d", want.Slices, f.Class(), f.Header.Slices)
	}
	got, err := f.Data(false)
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if !slices.Equal(got.PtrTable, want.PtrTable) || !slices.Equal(got.Words, want.Words) {
		t.Error("Expected the stored shell to match the written one")
	}
}

func TestTShellAndDirect(t *testing.T) {
	tb := shell.NewBuilder(shell.TShell, 4, 2, 2)
	shapes := shell.ConfigTriangles(1)
	tb.AddTShell(3, 1, 1, 1, []shell.Triangle{{Shape: int(shapes[0]), Position: [3]int{1, 3, 6}, Code: 0x1234}})
	ts, err := tb.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	f, err := Open(writeShell(t, ts))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	got, err := f.Data(true)
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if got.Source != nil || !slices.Equal(got.Bytes, ts.Bytes) {
		t.Error("Expected T_SHELL run data to be loaded into memory")
	}

	db := shell.NewBuilder(shell.Direct, 4, 1, 1)
	db.SetThresholds(shell.Thresholds{10, 20, 30, 40, 50, 60})
	db.AddDirect(0, 0, shell.DirectVoxel{Column: 2, Code: 7, Intensity: 45})
	ds, err := db.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	f, err = Open(writeShell(t, ds))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	got, err = f.Data(false)
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if got.Thresholds != ds.Thresholds {
		t.Errorf("Expected thresholds %v, got %v", ds.Thresholds, got.Thresholds)
	}
}

// TestLazyRender verifies that a lazily loaded shell renders like the
// resident one
func TestLazyRender(t *testing.T) {
	d := gradientShell(t)
	f, err := Open(writeShell(t, d))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	lazy, err := f.Data(true)
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if lazy.Resident() {
		t.Fatal("Expected a streamed shell")
	}

	view := render.View{Columns: 10, Rows: 10, Slices: 10, Scale: 2, Width: 40, Height: 40,
		Rotations: []r3.Rotation{r3.NewRotation(.5, r3.Vec{X: 1, Y: 1})}}
	proj := view.Projection()
	shades := shading.AngleShades(shading.G, shading.ComputeShadeLUT(shading.DefaultLUTParams()), shading.ViewDirection(proj.Matrix), false)
	p := render.DefaultParams()
	p.Materials[0].Opacity = .6

	images := make([]*render.Image, 2)
	for i, data := range []*shell.Data{d, lazy} {
		images[i] = render.NewImage(shell.Gradient, 40, 40)
		if _, err := render.NewRenderer().Project(data, images[i], proj, shades, p); err != nil {
			t.Fatalf("Project failed: %v", err)
		}
	}
	if !slices.Equal(images[0].Pixels16, images[1].Pixels16) || !slices.Equal(images[0].Z, images[1].Z) {
		t.Error("Expected streamed and resident renders to match")
	}
}

func TestCorruptBlock(t *testing.T) {
	d := gradientShell(t)
	path := writeShell(t, d)
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	b := f.Header.Blocks[5]
	f.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	base := len(raw) - int(f.Header.Blocks[len(f.Header.Blocks)-1].Offset) - f.Header.Blocks[len(f.Header.Blocks)-1].Size
	raw[base+int(b.Offset)+b.Size/2] ^= 0xff
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	f, err = Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	if _, err := f.ReadSlice(4); err != nil {
		t.Errorf("Expected an intact slice to load, got %v", err)
	}
	_, err = f.ReadSlice(5)
	var ioErr *shell.IOError
	if !errors.As(err, &ioErr) || ioErr.Kind != shell.IOShortRead || ioErr.Slice != 5 {
		t.Errorf("Expected a short read on slice 5, got %v", err)
	}
}

func TestTruncatedFile(t *testing.T) {
	path := writeShell(t, gradientShell(t))
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	last := f.Header.Slices - 1
	if err := os.Truncate(path, info.Size()-int64(f.Header.Blocks[last].Size)/2); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}
	_, err = f.ReadSlice(last)
	var ioErr *shell.IOError
	if !errors.As(err, &ioErr) || ioErr.Kind != shell.IOShortRead {
		t.Errorf("Expected a short read, got %v", err)
	}
}

// TestMissingFile removes the container after opening it; the first slice
// load then fails to open it and the render reports the I/O error
func TestMissingFile(t *testing.T) {
	path := writeShell(t, gradientShell(t))
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	lazy, err := f.Data(true)
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	m := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	proj := render.Projection{Matrix: m, Offset: r3.Vec{X: 5, Y: 5, Z: 1000}}
	_, err = render.NewRenderer().Project(lazy, render.NewImage(shell.Gradient, 20, 20), proj, shading.Constant(shading.G, 100), render.DefaultParams())
	var ioErr *shell.IOError
	if !errors.As(err, &ioErr) || ioErr.Kind != shell.IOOpen {
		t.Errorf("Expected an open failure, got %v", err)
	}
}

func TestNotAShellFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.shl")
	if err := os.WriteFile(path, []byte("PNG\x00\x00\x00\x00\x00"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Error("Expected an error for a file without the shell magic")
	}
}
