package shell

// Neighbor flags stored in the high six bits of the first word of binary,
// gradient and percent TSEs. A set flag means the neighbor in that direction
// is also part of the object.
const (
	NeighborPX = 0x8000
	NeighborPY = 0x4000
	NeighborPZ = 0x2000
	NeighborNX = 0x1000
	NeighborNY = 0x0800
	NeighborNZ = 0x0400

	neighborMask = 0xfc00
	column10Mask = 0x03ff
	code11Mask   = 0x07ff
	code15Mask   = 0x7fff
)

// BinaryVoxel is the decoded view of a BINARY_A or BINARY_B entry.
type BinaryVoxel struct {
	Column    int
	Neighbors uint16
	// Code indexes the angle-shade table
	Code uint16
}

// GradientVoxel is the decoded view of a GRADIENT entry.
type GradientVoxel struct {
	Column     int
	Neighbors  uint16
	Code       uint16
	Opacity    uint8
	Likelihood uint8
}

// PercentVoxel is the decoded view of a PERCENT entry: a two-material
// mixture with the share of the front material given by Percent (0..255).
type PercentVoxel struct {
	Column     int
	Neighbors  uint16
	Code       uint16
	Back       uint8
	Front      uint8
	Percent    uint8
	Likelihood uint8
}

// DirectVoxel is the decoded view of a DIRECT entry. Materials are derived
// from the intensity with the shell's thresholds.
type DirectVoxel struct {
	Column    int
	Code      uint16
	Intensity uint16
}

func decodeBinaryA(w []uint16) BinaryVoxel {
	return BinaryVoxel{
		Column:    int(w[0] & column10Mask),
		Neighbors: w[0] & neighborMask,
		Code:      w[1] & code15Mask,
	}
}

func decodeBinaryB(w []uint16) BinaryVoxel {
	col := int(w[0]&column10Mask) << 1
	if w[1]&0x8000 != 0 {
		col |= 1
	}
	return BinaryVoxel{
		Column:    col,
		Neighbors: w[0] & neighborMask,
		Code:      w[1] & code15Mask,
	}
}

func decodeGradient(w []uint16) GradientVoxel {
	return GradientVoxel{
		Column:     int(w[0] & column10Mask),
		Neighbors:  w[0] & neighborMask,
		Code:       w[1] & code11Mask,
		Opacity:    uint8(w[2] >> 8),
		Likelihood: uint8(w[2]),
	}
}

func decodePercent(w []uint16) PercentVoxel {
	return PercentVoxel{
		Column:     int(w[0] & column10Mask),
		Neighbors:  w[0] & neighborMask,
		Code:       w[1] & code11Mask,
		Back:       uint8(w[1]>>11) & 3,
		Front:      uint8(w[1] >> 13),
		Percent:    uint8(w[2] >> 8),
		Likelihood: uint8(w[2]),
	}
}

func decodeDirect(w []uint16) DirectVoxel {
	return DirectVoxel{
		Column:    int(w[0]),
		Code:      w[1] & code11Mask,
		Intensity: w[2],
	}
}

func encodeBinaryA(v BinaryVoxel) [2]uint16 {
	return [2]uint16{v.Neighbors&neighborMask | uint16(v.Column), v.Code & code15Mask}
}

func encodeBinaryB(v BinaryVoxel) [2]uint16 {
	w1 := v.Code & code15Mask
	if v.Column&1 != 0 {
		w1 |= 0x8000
	}
	return [2]uint16{v.Neighbors&neighborMask | uint16(v.Column>>1), w1}
}

func encodeGradient(v GradientVoxel) [3]uint16 {
	return [3]uint16{
		v.Neighbors&neighborMask | uint16(v.Column),
		v.Code & code11Mask,
		uint16(v.Opacity)<<8 | uint16(v.Likelihood),
	}
}

func encodePercent(v PercentVoxel) [3]uint16 {
	return [3]uint16{
		v.Neighbors&neighborMask | uint16(v.Column),
		uint16(v.Front&3)<<13 | uint16(v.Back&3)<<11 | v.Code&code11Mask,
		uint16(v.Percent)<<8 | uint16(v.Likelihood),
	}
}

func encodeDirect(v DirectVoxel) [3]uint16 {
	return [3]uint16{uint16(v.Column), v.Code & code11Mask, v.Intensity}
}

// Thresholds are six ascending intensities of a DIRECT shell. Intensities
// below Thresholds[0] are pure material 0; [0,1) ramps from material 0 to 1,
// [1,2) is pure material 1, [2,3) ramps to material 2, [3,4) is pure material
// 2, [4,5) ramps to material 3 and from Thresholds[5] on the voxel is pure
// material 3.
type Thresholds [6]float64

// Classify returns the material pair, the front share (0..255) and the
// boundary likelihood of a DIRECT voxel intensity.
func (t Thresholds) Classify(intensity uint16) (back, front, percent, likelihood uint8) {
	v := float64(intensity)
	m := uint8(0)
	for k := 0; k < 3; k++ {
		lo, hi := t[2*k], t[2*k+1]
		if v < lo {
			return m, m, 255, 0
		}
		if v < hi {
			p := (v - lo) / (hi - lo)
			return m, m + 1, uint8(p*255 + .5), uint8(1020*p*(1-p) + .5)
		}
		m++
	}
	return m, m, 255, 0
}
