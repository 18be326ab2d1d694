package models

import (
	"image"

	"gonum.org/v1/gonum/spatial/r3"
)

// Slice represents a single input slice image with metadata
type Slice struct {
	// Image is the actual slice image data
	Image image.Image

	// Index is the position of this slice in the sequence
	Index int

	// Filename is the original filename of the slice
	Filename string

	// Position is the physical position of the slice along the slice axis
	Position float64
}

// Volume is a scalar volume in column, row, slice order with intensities
// scaled to 0..1
type Volume struct {
	// Data is the volume as a 1D array, x fastest
	Data []float64

	Width, Height, Depth int

	// VoxelSize is the physical size of each voxel
	VoxelSize r3.Vec
}

// NewVolume allocates a zero volume with unit voxels
func NewVolume(width, height, depth int) *Volume {
	return &Volume{
		Data:      make([]float64, width*height*depth),
		Width:     width,
		Height:    height,
		Depth:     depth,
		VoxelSize: r3.Vec{X: 1, Y: 1, Z: 1},
	}
}

// Index returns the offset of voxel (x, y, z) in Data
func (v *Volume) Index(x, y, z int) int {
	return (z*v.Height+y)*v.Width + x
}

// Inside reports whether (x, y, z) is a voxel of the volume
func (v *Volume) Inside(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < v.Width && y < v.Height && z < v.Depth
}

// At returns the intensity at (x, y, z); voxels outside the volume are 0
func (v *Volume) At(x, y, z int) float64 {
	if !v.Inside(x, y, z) {
		return 0
	}
	return v.Data[v.Index(x, y, z)]
}

// Set stores the intensity of voxel (x, y, z)
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Plane returns slice z of the volume without copying
func (v *Volume) Plane(z int) []float64 {
	n := v.Width * v.Height
	return v.Data[z*n : (z+1)*n]
}

// Gradient returns the central difference intensity gradient at (x, y, z),
// scaled by the voxel size. It points towards increasing intensity.
func (v *Volume) Gradient(x, y, z int) r3.Vec {
	return r3.Vec{
		X: (v.At(x+1, y, z) - v.At(x-1, y, z)) / (2 * v.VoxelSize.X),
		Y: (v.At(x, y+1, z) - v.At(x, y-1, z)) / (2 * v.VoxelSize.Y),
		Z: (v.At(x, y, z+1) - v.At(x, y, z-1)) / (2 * v.VoxelSize.Z),
	}
}
