// Package config provides configuration loading and management for shellrender.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"shellrender/pkg/interpolation"
	"shellrender/pkg/reconstruction"
	"shellrender/pkg/render"
	"shellrender/pkg/shading"
	"shellrender/pkg/shell"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Extraction parameters for building shells from slice images
	Extraction struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// Class is the shell class to extract, e.g. "gradient" or "t_shell"
		Class string `yaml:"class"`

		// Threshold separates object from background, 0..1
		Threshold float64 `yaml:"threshold"`

		// AutoThreshold picks the isodata threshold of the volume instead
		AutoThreshold bool `yaml:"autoThreshold"`

		// Window is the half width of the translucent intensity ramp
		Window float64 `yaml:"window"`

		// Sigma is the Gaussian smoothing in pixels, 0 to disable
		Sigma float64 `yaml:"sigma"`

		// SliceGap and PixelSpacing are the physical slice distance and
		// pixel size in mm
		SliceGap     float64 `yaml:"sliceGap"`
		PixelSpacing float64 `yaml:"pixelSpacing"`

		// Interpolation is "linear", "monotone" or "akima"
		Interpolation string `yaml:"interpolation"`

		// DirectThresholds are the six intensity thresholds (0..1) of a
		// direct shell; empty ramps between two materials over the window
		DirectThresholds []float64 `yaml:"directThresholds,omitempty"`
	} `yaml:"extraction"`

	// Rendering parameters
	Rendering struct {
		// Fade is "off", "linear" or "weighted"
		Fade            string     `yaml:"fade"`
		Perspective     float64    `yaml:"perspective"`
		Clip            bool       `yaml:"clip"`
		MIP             bool       `yaml:"mip"`
		TShellDetail    int        `yaml:"tShellDetail"`
		Ambient         [3]int     `yaml:"ambient"`
		SurfaceFactor   [3]float64 `yaml:"surfaceFactor"`
		SurfaceStrength float64    `yaml:"surfaceStrength"`
		EmissionPower   float64    `yaml:"emissionPower"`
		SurfPctPower    float64    `yaml:"surfPctPower"`

		// Materials are the four tissue classes
		Materials [4]render.Material `yaml:"materials"`
	} `yaml:"rendering"`

	// Shading parameters of the reflection model
	Shading struct {
		shading.LUTParams `yaml:",inline"`

		// ShowBack lights surfaces facing away from the viewer
		ShowBack bool `yaml:"showBack"`
	} `yaml:"shading"`

	// View parameters
	View struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`

		// Scale is pixels per voxel
		Scale float64 `yaml:"scale"`

		// RotateX, RotateY and RotateZ are applied in that order, in degrees
		RotateX float64 `yaml:"rotateX"`
		RotateY float64 `yaml:"rotateY"`
		RotateZ float64 `yaml:"rotateZ"`

		// Frames is the number of turntable frames about the image y axis;
		// 1 renders a single view
		Frames int `yaml:"frames"`
	} `yaml:"view"`

	// Output parameters
	Output struct {
		// Format is "png" or "jpeg"
		Format string `yaml:"format"`

		// Quality is the JPEG quality, 1..100
		Quality int `yaml:"quality"`

		// DepthMap is the path of an optional depth image
		DepthMap string `yaml:"depthMap"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default extraction parameters
	cfg.Extraction.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Extraction.Class = shell.Gradient.String()
	cfg.Extraction.Threshold = 0.5
	cfg.Extraction.Window = 0.1
	cfg.Extraction.Sigma = 1.0
	cfg.Extraction.SliceGap = 1.0
	cfg.Extraction.PixelSpacing = 1.0
	cfg.Extraction.Interpolation = interpolation.Linear.String()

	// Set default rendering parameters
	p := render.DefaultParams()
	cfg.Rendering.Fade = p.Fade.String()
	cfg.Rendering.TShellDetail = p.TShellDetail
	cfg.Rendering.Ambient = p.Ambient
	cfg.Rendering.SurfaceFactor = p.SurfaceFactor
	cfg.Rendering.SurfaceStrength = p.SurfaceStrength
	cfg.Rendering.EmissionPower = p.EmissionPower
	cfg.Rendering.SurfPctPower = p.SurfPctPower
	cfg.Rendering.Materials = p.Materials

	// Set default shading parameters
	cfg.Shading.LUTParams = shading.DefaultLUTParams()

	// Set default view parameters
	cfg.View.Width = 256
	cfg.View.Height = 256
	cfg.View.Scale = 1.0
	cfg.View.Frames = 1

	// Set default output parameters
	cfg.Output.Format = "png"
	cfg.Output.Quality = 90
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the configuration values
func (cfg *Config) Validate() error {
	if _, err := cfg.ExtractParams(); err != nil {
		return err
	}
	if _, err := interpolation.ParseMethod(cfg.Extraction.Interpolation); err != nil {
		return err
	}
	if cfg.Extraction.Sigma < 0 {
		return fmt.Errorf("sigma %g is negative", cfg.Extraction.Sigma)
	}
	if cfg.Extraction.SliceGap < 0 || cfg.Extraction.PixelSpacing < 0 {
		return fmt.Errorf("slice gap and pixel spacing must not be negative")
	}

	p, err := cfg.RenderParams()
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := cfg.Shading.LUTParams.Validate(); err != nil {
		return err
	}

	if cfg.View.Width <= 0 || cfg.View.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", cfg.View.Width, cfg.View.Height)
	}
	if cfg.View.Scale <= 0 {
		return fmt.Errorf("scale %g must be positive", cfg.View.Scale)
	}
	if cfg.View.Frames < 1 {
		return fmt.Errorf("frames %d must be at least 1", cfg.View.Frames)
	}

	switch strings.ToLower(cfg.Output.Format) {
	case "png":
	case "jpeg", "jpg":
		if cfg.Output.Quality < 1 || cfg.Output.Quality > 100 {
			return fmt.Errorf("jpeg quality %d outside 1..100", cfg.Output.Quality)
		}
	default:
		return fmt.Errorf("unknown output format %q", cfg.Output.Format)
	}
	return nil
}

// ExtractParams converts the extraction section
func (cfg *Config) ExtractParams() (reconstruction.ExtractParams, error) {
	class, err := shell.ParseClass(cfg.Extraction.Class)
	if err != nil {
		return reconstruction.ExtractParams{}, err
	}
	p := reconstruction.ExtractParams{
		Class:     class,
		Threshold: cfg.Extraction.Threshold,
		Window:    cfg.Extraction.Window,
	}
	if t := cfg.Extraction.DirectThresholds; len(t) > 0 {
		if len(t) != len(p.Thresholds) {
			return p, fmt.Errorf("%d direct thresholds, expected %d", len(t), len(p.Thresholds))
		}
		copy(p.Thresholds[:], t)
	}
	return p, p.Validate()
}

// ReconstructionParams returns the reconstruction parameters for building a
// shell from the slices in inputDir.
func (cfg *Config) ReconstructionParams(inputDir, outputFile string) (*reconstruction.Params, error) {
	ep, err := cfg.ExtractParams()
	if err != nil {
		return nil, err
	}
	method, err := interpolation.ParseMethod(cfg.Extraction.Interpolation)
	if err != nil {
		return nil, err
	}
	return &reconstruction.Params{
		InputDir:      inputDir,
		OutputFile:    outputFile,
		NumCores:      cfg.Extraction.NumCores,
		SliceGap:      cfg.Extraction.SliceGap,
		PixelSpacing:  cfg.Extraction.PixelSpacing,
		Sigma:         cfg.Extraction.Sigma,
		Method:        method,
		Extract:       ep,
		AutoThreshold: cfg.Extraction.AutoThreshold,
		Verbose:       cfg.Output.Verbose,
	}, nil
}

// RenderParams converts the rendering section
func (cfg *Config) RenderParams() (render.Params, error) {
	r := cfg.Rendering
	fade, err := render.ParseFadeMode(r.Fade)
	if err != nil {
		return render.Params{}, err
	}
	return render.Params{
		Ambient:         r.Ambient,
		Fade:            fade,
		SurfaceFactor:   r.SurfaceFactor,
		SurfaceStrength: r.SurfaceStrength,
		Materials:       r.Materials,
		EmissionPower:   r.EmissionPower,
		SurfPctPower:    r.SurfPctPower,
		Perspective:     r.Perspective,
		MIP:             r.MIP,
		Clip:            r.Clip,
		TShellDetail:    r.TShellDetail,
	}, nil
}

// LUTParams returns the reflection model parameters
func (cfg *Config) LUTParams() shading.LUTParams {
	return cfg.Shading.LUTParams
}

// Rotations returns the view rotations about the x, y and z axes
func (cfg *Config) Rotations() []r3.Rotation {
	var rots []r3.Rotation
	for _, a := range []struct {
		deg  float64
		axis r3.Vec
	}{
		{cfg.View.RotateX, r3.Vec{X: 1}},
		{cfg.View.RotateY, r3.Vec{Y: 1}},
		{cfg.View.RotateZ, r3.Vec{Z: 1}},
	} {
		if a.deg != 0 {
			rots = append(rots, r3.NewRotation(a.deg*math.Pi/180, a.axis))
		}
	}
	return rots
}
