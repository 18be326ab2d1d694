package render

import (
	"fmt"

	"shellrender/pkg/shell"
)

// Image is the object image a shell is projected into, with its side
// buffers. All buffers are row major and share the pixel index
// y*Width+x; Pixels16 holds three words per pixel for percent and direct
// shells.
type Image struct {
	Width, Height int
	Class         shell.Class

	// Pixels8 is the shade of binary and T_SHELL images.
	Pixels8 []uint8
	// Pixels16 is the shade or colour of gradient, percent and direct images.
	Pixels16 []uint16

	// Z is the depth of the visible contributor; larger is nearer.
	Z []int32
	// Opacity accumulates the opacity of translucent contributors.
	Opacity []uint8
	// Likelihood is the best likelihood composited so far.
	Likelihood []uint8
}

// NewImage allocates a cleared image for shells of class c.
func NewImage(c shell.Class, width, height int) *Image {
	n := width * height
	img := &Image{
		Width:   width,
		Height:  height,
		Class:   c,
		Z:       make([]int32, n),
		Opacity: make([]uint8, n),
	}
	if c.IsBinary() || c == shell.TShell {
		img.Pixels8 = make([]uint8, n)
	} else {
		img.Pixels16 = make([]uint16, n*c.PixelWords())
		img.Likelihood = make([]uint8, n)
	}
	img.Clear()
	return img
}

// Clear resets every pixel to the background of the class.
func (img *Image) Clear() {
	for i := range img.Pixels8 {
		img.Pixels8[i] = ObjectImageBackground
	}
	for i := range img.Pixels16 {
		img.Pixels16[i] = VObjectImageBackground
	}
	clear(img.Z)
	clear(img.Opacity)
	clear(img.Likelihood)
}

// Painted reports whether pixel (x, y) has been written.
func (img *Image) Painted(x, y int) bool {
	i := y*img.Width + x
	if img.Pixels8 != nil {
		return img.Pixels8[i] != ObjectImageBackground
	}
	return img.Pixels16[i*img.Class.PixelWords()] != VObjectImageBackground
}

func (img *Image) check(c shell.Class) error {
	n := img.Width * img.Height
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: image size %dx%d", ErrContract, img.Width, img.Height)
	}
	if img.Class != c {
		return fmt.Errorf("%w: %s image for a %s shell", ErrContract, img.Class, c)
	}
	if len(img.Z) != n || len(img.Opacity) != n {
		return fmt.Errorf("%w: side buffers do not match %dx%d", ErrContract, img.Width, img.Height)
	}
	if c.IsBinary() || c == shell.TShell {
		if len(img.Pixels8) != n {
			return fmt.Errorf("%w: byte image has %d pixels, expected %d", ErrContract, len(img.Pixels8), n)
		}
		return nil
	}
	if len(img.Pixels16) != n*c.PixelWords() || len(img.Likelihood) != n {
		return fmt.Errorf("%w: %s image buffers do not match %dx%d", ErrContract, c, img.Width, img.Height)
	}
	return nil
}
