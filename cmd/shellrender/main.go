package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"shellrender/pkg/config"
	"shellrender/pkg/reconstruction"
	"shellrender/pkg/render"
	"shellrender/pkg/shell"
	"shellrender/pkg/shellio"
	"shellrender/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "shellrender.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	inputDir := flag.String("input", "", "Directory containing 2D slice images to build a shell from")
	shellPath := flag.String("shell", "", "Shell file to render instead of building one")
	saveShell := flag.String("save-shell", "", "Write the built shell to this file")
	outputName := flag.String("output", "render.png", "Output image filename")
	class := flag.String("class", "", "Shell class to extract (overrides the configuration)")
	threshold := flag.Float64("threshold", 0, "Extraction threshold in 0..1 (overrides the configuration)")
	frames := flag.Int("frames", 0, "Number of turntable frames (overrides the configuration)")
	framesDir := flag.String("frames-dir", "frames", "Directory to save turntable frames")
	lazy := flag.Bool("lazy", true, "Load the slices of a shell file while rendering")
	slicesDir := flag.String("slices-dir", "", "Save the reconstructed volume slices along all axes to this directory")
	verbose := flag.Bool("verbose", false, "Print progress and debug logs")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if (*inputDir == "") == (*shellPath == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -input and -shell is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *class != "" {
		cfg.Extraction.Class = *class
	}
	if *threshold != 0 {
		cfg.Extraction.Threshold = *threshold
		cfg.Extraction.AutoThreshold = false
	}
	if *frames > 0 {
		cfg.View.Frames = *frames
	}
	if *verbose {
		cfg.Output.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Output.Verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		render.SetLogger(logger)
		shellio.SetLogger(logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var d *shell.Data
	startTime := time.Now()
	if *inputDir != "" {
		params, err := cfg.ReconstructionParams(*inputDir, *saveShell)
		if err != nil {
			log.Fatalf("Invalid extraction parameters: %v", err)
		}

		fmt.Printf("Building %s shell from %s...\n", cfg.Extraction.Class, *inputDir)
		reconstructor := reconstruction.NewReconstructor(params)
		if err := reconstructor.Process(); err != nil {
			log.Fatalf("Reconstruction failed: %v", err)
		}
		d = reconstructor.Shell()

		stats := reconstructor.GetStats()
		v := reconstructor.Volume()
		fmt.Printf("Shell built in %.2f seconds\n", time.Since(startTime).Seconds())
		fmt.Printf("Volume: %dx%dx%d voxels, intensity mean %.3f, std dev %.3f\n", v.Width, v.Height, v.Depth, stats.Mean, stats.StdDev)
		fmt.Printf("Threshold: %.3f, shell voxels: %d\n", stats.Threshold, stats.Voxels)
		if *saveShell != "" {
			fmt.Printf("Shell saved to: %s\n", *saveShell)
		}

		if *slicesDir != "" {
			if err := saveVolumeSlices(reconstructor, *slicesDir); err != nil {
				log.Printf("Warning: Failed to save volume slices: %v", err)
			}
		}
	} else {
		f, err := shellio.Open(*shellPath)
		if err != nil {
			log.Fatalf("Failed to open shell: %v", err)
		}
		defer f.Close()
		if d, err = f.Data(*lazy); err != nil {
			log.Fatalf("Failed to load shell: %v", err)
		}
		fmt.Printf("Opened %s shell of %dx%dx%d voxels\n", d.Class, d.Columns, d.Rows, d.Slices)
	}

	params, err := cfg.RenderParams()
	if err != nil {
		log.Fatalf("Invalid rendering parameters: %v", err)
	}
	view := render.View{
		Scale:     cfg.View.Scale,
		Width:     cfg.View.Width,
		Height:    cfg.View.Height,
		Rotations: cfg.Rotations(),
	}
	viewer, err := visualization.NewViewer(d, view, params, cfg.LUTParams(), cfg.Shading.ShowBack)
	if err != nil {
		log.Fatalf("Failed to create viewer: %v", err)
	}

	renderStart := time.Now()
	if cfg.View.Frames > 1 {
		ext := strings.ToLower(cfg.Output.Format)
		if err := viewer.SaveTurntable(ctx, *framesDir, cfg.View.Frames, ext, cfg.Output.Quality); err != nil {
			log.Fatalf("Turntable failed: %v", err)
		}
		fmt.Printf("Rendered %d frames to %s in %.2f seconds\n", cfg.View.Frames, *framesDir, time.Since(renderStart).Seconds())
		return
	}

	img, status, err := viewer.Render(ctx)
	if err != nil {
		log.Fatalf("Rendering failed: %v", err)
	}
	if status == render.Cancelled {
		fmt.Println("Rendering cancelled, saving the partial image")
	}
	if err := visualization.Save(visualization.ToImage(img), *outputName, cfg.Output.Quality); err != nil {
		log.Fatalf("Failed to save image: %v", err)
	}
	fmt.Printf("Rendered %s in %.2f seconds, saved to: %s\n", d.Class, time.Since(renderStart).Seconds(), *outputName)

	if cfg.Output.DepthMap != "" {
		if err := visualization.Save(visualization.DepthImage(img), cfg.Output.DepthMap, cfg.Output.Quality); err != nil {
			log.Fatalf("Failed to save depth map: %v", err)
		}
		fmt.Printf("Depth map saved to: %s\n", cfg.Output.DepthMap)
	}
}

// saveVolumeSlices writes the slices of the reconstructed volume along each
// axis
func saveVolumeSlices(r *reconstruction.Reconstructor, dir string) error {
	v := r.Volume()
	for _, axis := range []struct {
		name string
		n    int
	}{{"x", v.Width}, {"y", v.Height}, {"z", v.Depth}} {
		axisDir := filepath.Join(dir, axis.name)
		fmt.Printf("Saving %s-axis slices to: %s\n", axis.name, axisDir)
		if err := os.MkdirAll(axisDir, 0755); err != nil {
			return err
		}
		for pos := 0; pos < axis.n; pos++ {
			img, err := visualization.VolumeSlice(v, axis.name, pos)
			if err != nil {
				return err
			}
			filename := filepath.Join(axisDir, fmt.Sprintf("slice_%s_%03d.png", axis.name, pos))
			if err := visualization.Save(img, filename, 0); err != nil {
				return err
			}
		}
	}
	return nil
}
