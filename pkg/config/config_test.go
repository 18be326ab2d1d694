package config

import (
	"os"
	"path/filepath"
	"testing"

	"shellrender/pkg/render"
	"shellrender/pkg/shell"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected the default configuration to be valid, got %v", err)
	}
	p, err := cfg.RenderParams()
	if err != nil {
		t.Fatalf("RenderParams failed: %v", err)
	}
	if p.Fade != render.FadeOff || p.SurfaceStrength != 100 || p.Materials[0].Opacity != 1 {
		t.Errorf("Expected the default rendering parameters, got %+v", p)
	}
	ep, err := cfg.ExtractParams()
	if err != nil {
		t.Fatalf("ExtractParams failed: %v", err)
	}
	if ep.Class != shell.Gradient {
		t.Errorf("Expected gradient extraction, got %s", ep.Class)
	}
	if len(cfg.Rotations()) != 0 {
		t.Errorf("Expected no rotations, got %d", len(cfg.Rotations()))
	}
}

func TestLoadMissingConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.View.Width != 256 {
		t.Errorf("Expected default width 256, got %d", cfg.View.Width)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Extraction.Class = "t_shell"
	cfg.Rendering.Fade = "weighted"
	cfg.Rendering.Materials[2].Color = [3]float64{100, 200, 300}
	cfg.Shading.SpecularFraction = .5
	cfg.View.RotateY = 30
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Extraction.Class != "t_shell" || loaded.Rendering.Fade != "weighted" {
		t.Errorf("Expected class t_shell and fade weighted, got %s and %s", loaded.Extraction.Class, loaded.Rendering.Fade)
	}
	if loaded.Rendering.Materials[2].Color != [3]float64{100, 200, 300} {
		t.Errorf("Expected material colour to survive, got %v", loaded.Rendering.Materials[2].Color)
	}
	if loaded.LUTParams().SpecularFraction != .5 {
		t.Errorf("Expected specular fraction 0.5, got %g", loaded.LUTParams().SpecularFraction)
	}
	if len(loaded.Rotations()) != 1 {
		t.Errorf("Expected one rotation, got %d", len(loaded.Rotations()))
	}
}

// TestPartialConfig verifies that values missing from the file keep their
// defaults
func TestPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte("view:\n  width: 64\nrendering:\n  mip: true\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.View.Width != 64 || cfg.View.Height != 256 || !cfg.Rendering.MIP {
		t.Errorf("Expected width 64, height 256 and MIP, got %d, %d, %v", cfg.View.Width, cfg.View.Height, cfg.Rendering.MIP)
	}
	if cfg.Shading.DiffuseN != 2 {
		t.Errorf("Expected default diffuse divisor 2, got %g", cfg.Shading.DiffuseN)
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected config file to exist: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"class":       func(c *Config) { c.Extraction.Class = "mesh" },
		"threshold":   func(c *Config) { c.Extraction.Threshold = 1.5 },
		"direct":      func(c *Config) { c.Extraction.DirectThresholds = []float64{.1, .2} },
		"method":      func(c *Config) { c.Extraction.Interpolation = "cubic" },
		"fade":        func(c *Config) { c.Rendering.Fade = "soft" },
		"perspective": func(c *Config) { c.Rendering.Perspective = 120 },
		"emission":    func(c *Config) { c.Rendering.EmissionPower = .5 },
		"surfpct":     func(c *Config) { c.Rendering.SurfPctPower = 2 },
		"detail":      func(c *Config) { c.Rendering.TShellDetail = 5 },
		"specular":    func(c *Config) { c.Shading.SpecularFraction = 2 },
		"size":        func(c *Config) { c.View.Width = 0 },
		"frames":      func(c *Config) { c.View.Frames = 0 },
		"format":      func(c *Config) { c.Output.Format = "gif" },
		"quality":     func(c *Config) { c.Output.Format, c.Output.Quality = "jpeg", 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected a validation error", name)
		}
	}
}

func TestReconstructionParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Extraction.Interpolation = "akima"
	cfg.Extraction.DirectThresholds = []float64{.1, .2, .3, .4, .5, .6}
	p, err := cfg.ReconstructionParams("in", "out.shl")
	if err != nil {
		t.Fatalf("ReconstructionParams failed: %v", err)
	}
	if p.InputDir != "in" || p.OutputFile != "out.shl" || p.Method.String() != "akima" {
		t.Errorf("Expected in, out.shl and akima, got %s, %s and %s", p.InputDir, p.OutputFile, p.Method)
	}
	if p.Extract.Thresholds[5] != .6 {
		t.Errorf("Expected direct thresholds to be copied, got %v", p.Extract.Thresholds)
	}
}
