// Package visualization renders shells into ordinary images and saves them.
package visualization

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"shellrender/internal/models"
	"shellrender/pkg/render"
	"shellrender/pkg/shading"
	"shellrender/pkg/shell"
)

// Viewer renders views of one shell. Frames share the viewer's renderer, so
// colour tables are built once for the whole sequence.
type Viewer struct {
	data     *shell.Data
	renderer *render.Renderer

	view   render.View
	params render.Params

	lut      []int
	showBack bool
}

// NewViewer creates a viewer for d. The extent of view is taken from d.
func NewViewer(d *shell.Data, view render.View, params render.Params, lut shading.LUTParams, showBack bool) (*Viewer, error) {
	if err := lut.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	view.Columns, view.Rows, view.Slices = d.Columns, d.Rows, d.Slices
	return &Viewer{
		data:     d,
		renderer: render.NewRenderer(),
		view:     view,
		params:   params,
		lut:      shading.ComputeShadeLUT(lut),
		showBack: showBack,
	}, nil
}

func (v *Viewer) codebook() shading.Codebook {
	if v.data.Class == shell.TShell {
		return shading.BG
	}
	return shading.G
}

// Frame renders the view turned by angle radians about the image y axis.
// The projection stops at the next slice once ctx is done and the partial
// image is returned with render.Cancelled.
func (v *Viewer) Frame(ctx context.Context, angle float64) (*render.Image, render.Status, error) {
	view := v.view
	view.Rotations = append(append([]r3.Rotation(nil), v.view.Rotations...), r3.NewRotation(angle, r3.Vec{Y: 1}))
	proj := view.Projection()
	shades := shading.AngleShades(v.codebook(), v.lut, shading.ViewDirection(proj.Matrix), v.showBack)

	p := v.params
	p.Check = func() render.Priority {
		if ctx.Err() != nil {
			return render.First
		}
		return render.Ignore
	}
	img := render.NewImage(v.data.Class, view.Width, view.Height)
	status, err := v.renderer.Project(v.data, img, proj, shades, p)
	if err != nil {
		return nil, status, err
	}
	return img, status, nil
}

// Render renders the unturned view.
func (v *Viewer) Render(ctx context.Context) (*render.Image, render.Status, error) {
	return v.Frame(ctx, 0)
}

// SaveTurntable renders frames views evenly spaced over a full turn and
// saves them as frame_000.ext, frame_001.ext, ... in outputDir.
func (v *Viewer) SaveTurntable(ctx context.Context, outputDir string, frames int, ext string, quality int) error {
	if frames < 1 {
		return fmt.Errorf("invalid frame count %d", frames)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for i := 0; i < frames; i++ {
		img, status, err := v.Frame(ctx, 2*math.Pi*float64(i)/float64(frames))
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if status == render.Cancelled {
			return ctx.Err()
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("frame_%03d.%s", i, ext))
		if err := Save(ToImage(img), filename, quality); err != nil {
			return err
		}
	}
	return nil
}

// ToImage converts an object image. Shades are stretched to the full range
// of the returned image and background pixels become black.
func ToImage(img *render.Image) image.Image {
	rect := image.Rect(0, 0, img.Width, img.Height)
	switch {
	case img.Pixels8 != nil:
		out := image.NewGray(rect)
		for i, s := range img.Pixels8 {
			if s < render.ObjectImageBackground {
				out.Pix[i] = uint8((int(s)*255 + (render.ObjectImageBackground-1)/2) / (render.ObjectImageBackground - 1))
			}
		}
		return out
	case img.Class.PixelWords() == 1:
		out := image.NewGray16(rect)
		for i, s := range img.Pixels16 {
			out.SetGray16(i%img.Width, i/img.Width, color.Gray16{Y: stretch16(s)})
		}
		return out
	}
	out := image.NewRGBA64(rect)
	for i := 0; i < img.Width*img.Height; i++ {
		px := img.Pixels16[3*i : 3*i+3]
		out.SetRGBA64(i%img.Width, i/img.Width, color.RGBA64{
			R: stretch16(px[0]),
			G: stretch16(px[1]),
			B: stretch16(px[2]),
			A: 0xffff,
		})
	}
	return out
}

func stretch16(s uint16) uint16 {
	if s >= render.VObjectImageBackground {
		return 0
	}
	return uint16((uint32(s)*65535 + (render.VObjectImageBackground-1)/2) / (render.VObjectImageBackground - 1))
}

// DepthImage maps the z-buffer of img onto gray levels; nearer is lighter
// and unpainted pixels are black.
func DepthImage(img *render.Image) *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
	for i, z := range img.Z {
		if !img.Painted(i%img.Width, i/img.Width) {
			continue
		}
		out.SetGray16(i%img.Width, i/img.Width, color.Gray16{Y: uint16(int64(z) * 65535 / (render.ZBufferLevels - 1))})
	}
	return out
}

// Save writes img as PNG or JPEG depending on the file extension
func Save(img image.Image, filename string, quality int) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		err = png.Encode(file, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: quality})
	default:
		err = fmt.Errorf("unsupported image format %q", filepath.Ext(filename))
	}
	if err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// VolumeSlice extracts a 2D slice from the volume along the specified axis
func VolumeSlice(v *models.Volume, axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16
	set := func(ix, iy, x, y, z int) {
		value := uint16(math.Max(0, math.Min(65535, v.At(x, y, z)*65535)))
		img.SetGray16(ix, iy, color.Gray16{Y: value})
	}

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= v.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.Width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.Depth, v.Height))
		for y := 0; y < v.Height; y++ {
			for z := 0; z < v.Depth; z++ {
				set(z, y, position, y, z)
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= v.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.Height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.Width, v.Depth))
		for z := 0; z < v.Depth; z++ {
			for x := 0; x < v.Width; x++ {
				set(x, z, x, position, z)
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= v.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.Depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.Width, v.Height))
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				set(x, y, x, y, position)
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}
