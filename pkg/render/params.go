package render

import (
	"fmt"
)

// FadeMode selects how voxel edges are anti-aliased.
type FadeMode int

const (
	// FadeOff paints every patch pixel with full weight.
	FadeOff FadeMode = iota
	// FadeLinear weights edge pixels by the patch margins.
	FadeLinear
	// FadeWeighted weights every pixel by the voxel thickness along its
	// ray.
	FadeWeighted
)

var fadeNames = [...]string{"off", "linear", "weighted"}

func (f FadeMode) String() string {
	if f < 0 || int(f) >= len(fadeNames) {
		return fmt.Sprintf("fade(%d)", int(f))
	}
	return fadeNames[f]
}

// ParseFadeMode converts a name printed by String back to a FadeMode.
func ParseFadeMode(s string) (FadeMode, error) {
	for i, n := range fadeNames {
		if n == s {
			return FadeMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown fade mode %q", s)
}

// Material is the appearance of one tissue class.
type Material struct {
	// Opacity is 0 to 1
	Opacity float64 `yaml:"opacity"`
	// Color is red, green and blue, 0 to VObjectImageBackground-1
	Color [3]float64 `yaml:"color"`
}

// Params are the rendering parameters of one projection.
type Params struct {
	// Ambient light per channel, 0 to 65535
	Ambient [3]int
	Fade    FadeMode
	// SurfaceFactor is the surface colour, 0 to MaxSurfaceFactor
	SurfaceFactor [3]float64
	// SurfaceStrength is the brightness of surfaces in percent rendering,
	// 0 to 100
	SurfaceStrength float64
	// Materials holds the four tissue classes. Gradient and T_SHELL shells
	// use the opacity of the first one.
	Materials [4]Material
	// EmissionPower is the power of the material share weighting emission,
	// at least 1
	EmissionPower float64
	// SurfPctPower is the power of the likelihood weighting reflection,
	// 0 to 1
	SurfPctPower float64
	// Perspective is the amount of perspective, 0 (parallel) to 100
	Perspective float64
	MIP         bool
	Clip        bool
	// TShellDetail is the number of positions along a cube edge kept for
	// T_SHELL sub-patches: 1, 3 or 7. Zero means 1.
	TShellDetail int
	// Check is called at the start of every slice
	Check func() Priority
}

// DefaultParams returns opaque white materials, full surface strength and a
// parallel projection.
func DefaultParams() Params {
	p := Params{
		SurfaceStrength: 100,
		EmissionPower:   1,
		SurfPctPower:    1,
		TShellDetail:    1,
	}
	for c := range p.SurfaceFactor {
		p.SurfaceFactor[c] = MaxSurfaceFactor
	}
	for m := range p.Materials {
		p.Materials[m] = Material{Opacity: 1, Color: [3]float64{VObjectImageBackground - 1, VObjectImageBackground - 1, VObjectImageBackground - 1}}
	}
	return p
}

// Validate checks the parameter ranges.
func (p *Params) Validate() error {
	if p.Fade < FadeOff || p.Fade > FadeWeighted {
		return fmt.Errorf("%w: fade mode %d", ErrContract, int(p.Fade))
	}
	if p.Perspective < 0 || p.Perspective >= 100 {
		return fmt.Errorf("%w: perspective %g outside [0, 100)", ErrContract, p.Perspective)
	}
	for c, a := range p.Ambient {
		if a < 0 || a > 65535 {
			return fmt.Errorf("%w: ambient channel %d = %d", ErrContract, c, a)
		}
	}
	for c, f := range p.SurfaceFactor {
		if f < 0 || f > MaxSurfaceFactor*(1+1e-9) {
			return fmt.Errorf("%w: surface factor %d = %g", ErrContract, c, f)
		}
	}
	if p.SurfaceStrength < 0 || p.SurfaceStrength > 100 {
		return fmt.Errorf("%w: surface strength %g", ErrContract, p.SurfaceStrength)
	}
	for i, m := range p.Materials {
		if m.Opacity < 0 || m.Opacity > 1 {
			return fmt.Errorf("%w: material %d opacity %g", ErrContract, i, m.Opacity)
		}
		for c, v := range m.Color {
			if v < 0 || v > VObjectImageBackground-1 {
				return fmt.Errorf("%w: material %d channel %d = %g", ErrContract, i, c, v)
			}
		}
	}
	if p.EmissionPower < 1 {
		return fmt.Errorf("%w: emission power %g below 1", ErrContract, p.EmissionPower)
	}
	if p.SurfPctPower < 0 || p.SurfPctPower > 1 {
		return fmt.Errorf("%w: surface percentage power %g", ErrContract, p.SurfPctPower)
	}
	switch p.TShellDetail {
	case 0, 1, 3, 7:
	default:
		return fmt.Errorf("%w: T_SHELL detail %d", ErrContract, p.TShellDetail)
	}
	return nil
}

func (p *Params) detail() int {
	if p.TShellDetail == 0 {
		return 1
	}
	return p.TShellDetail
}
