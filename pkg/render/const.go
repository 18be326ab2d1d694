package render

import "shellrender/pkg/shading"

// Fixed scales shared by all projectors.
const (
	// ZBufferLevels is the number of distinct depths. Larger depths are
	// nearer the viewer.
	ZBufferLevels = 0x100000
	// ZSublevels is the fixed point resolution of depths in the coordinate
	// tables.
	ZSublevels = 256
	// MaxAngleShade is the brightest angle shade.
	MaxAngleShade = shading.MaxAngleShade

	// ObjectImageBackground marks unpainted pixels of byte images.
	ObjectImageBackground = 126
	// VObjectImageBackground marks unpainted words of 16 bit images.
	VObjectImageBackground = 65534

	// ShadeScaleFactor maps angle shade times depth onto 0..125.
	ShadeScaleFactor = MaxAngleShade * (ZBufferLevels / (ObjectImageBackground - 1))
	// VShadeScaleFactor maps angle shade times depth onto 16 bit shades.
	VShadeScaleFactor = MaxAngleShade * (ZBufferLevels / (VObjectImageBackground - 1))
	// MaxSurfaceFactor is the largest surface colour factor.
	MaxSurfaceFactor = (VObjectImageBackground - 1) / (256. * MaxAngleShade)

	// MiddleDepth is the depth of the centre of the z-buffer range.
	MiddleDepth = ZBufferLevels/2 - 0.5

	// MaxOpacity closes a pixel; no voxel is composited onto it afterwards.
	MaxOpacity = 254

	fixedOne = 0x10000
)
