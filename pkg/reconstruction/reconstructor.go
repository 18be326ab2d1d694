package reconstruction

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/stat"

	"shellrender/internal/models"
	"shellrender/pkg/interpolation"
	"shellrender/pkg/shell"
	"shellrender/pkg/shellio"
	"shellrender/pkg/smoothing"
)

// Params holds the reconstruction parameters.
type Params struct {
	// InputDir is the directory containing the 2D slice images in JPEG or
	// PNG format. Slices are ordered by the number in their file names.
	InputDir string

	// OutputFile is the shell container written at the end of the
	// pipeline. Nothing is written when it is empty.
	OutputFile string

	// NumCores specifies how many goroutines smoothing and resampling use.
	// Zero uses every CPU.
	NumCores int

	// SliceGap is the physical distance between consecutive slices and
	// PixelSpacing the in-plane pixel size, both in mm. When they differ
	// the stack is resampled to cubic voxels. Zero PixelSpacing means 1.
	SliceGap     float64
	PixelSpacing float64

	// Sigma is the standard deviation in pixels of the Gaussian applied to
	// every slice before extraction. Zero disables smoothing.
	Sigma float64

	// Method selects the inter-slice interpolant.
	Method interpolation.Method

	// Extract controls shell classification.
	Extract ExtractParams

	// AutoThreshold replaces Extract.Threshold with the isodata threshold
	// of the smoothed volume.
	AutoThreshold bool

	// Verbose prints progress lines.
	Verbose bool
}

// Stats summarizes the intensities of the reconstructed volume.
type Stats struct {
	Mean, StdDev float64
	Min, Max     float64
	// Threshold is the threshold the shell was extracted at
	Threshold float64
	// Voxels counts the shell's voxels
	Voxels int
}

// Reconstructor turns a stack of slice images into a shell.
//
// The reconstruction process consists of several steps:
//  1. Loading the input slices in file name order
//  2. Smoothing every slice with an FFT Gaussian
//  3. Resampling along the slice axis to cubic voxels
//  4. Choosing the threshold
//  5. Extracting the shell
//  6. Writing the shell container
type Reconstructor struct {
	params *Params

	slices []models.Slice

	// width and height store the dimensions of the input slices
	width  int
	height int

	volume *models.Volume
	shell  *shell.Data
	stats  Stats
}

// NewReconstructor creates a new reconstructor instance with the provided
// parameters.
func NewReconstructor(params *Params) *Reconstructor {
	return &Reconstructor{
		params: params,
		slices: make([]models.Slice, 0),
	}
}

func (r *Reconstructor) printf(format string, args ...any) {
	if r.params.Verbose {
		fmt.Printf(format, args...)
	}
}

func (r *Reconstructor) println(msg string) {
	if r.params.Verbose {
		fmt.Println(msg)
	}
}

func (r *Reconstructor) workers() int {
	if r.params.NumCores > 0 {
		return r.params.NumCores
	}
	return runtime.NumCPU()
}

// Process runs the complete reconstruction pipeline
func (r *Reconstructor) Process() error {
	// Step 1: Load input slices
	r.println("Step 1: Loading input slices...")
	if err := r.loadSlices(); err != nil {
		return fmt.Errorf("failed to load slices: %w", err)
	}

	// Step 2: Build and smooth the volume
	r.println("Step 2: Smoothing slices...")
	if err := r.buildVolume(); err != nil {
		return fmt.Errorf("failed to smooth slices: %w", err)
	}

	// Step 3: Resample to cubic voxels
	r.println("Step 3: Resampling along the slice axis...")
	if err := r.resample(); err != nil {
		return fmt.Errorf("failed to resample volume: %w", err)
	}

	// Step 4: Threshold
	r.println("Step 4: Choosing threshold...")
	r.computeStats()

	// Step 5: Extract the shell
	r.printf("Step 5: Extracting %s shell at threshold %.3f...\n", r.params.Extract.Class, r.stats.Threshold)
	p := r.params.Extract
	p.Threshold = r.stats.Threshold
	d, err := Extract(r.volume, p)
	if err != nil {
		return fmt.Errorf("failed to extract shell: %w", err)
	}
	r.shell = d
	r.stats.Voxels = d.Count()
	r.printf("Extracted %d shell voxels\n", r.stats.Voxels)

	// Step 6: Write the container
	if r.params.OutputFile != "" {
		r.println("Step 6: Writing shell file...")
		if dir := filepath.Dir(r.params.OutputFile); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := shellio.Write(r.params.OutputFile, d); err != nil {
			return fmt.Errorf("failed to write shell: %w", err)
		}
	}
	return nil
}

// loadSlices loads the input slices and sorts them by the numbers in their
// file names.
func (r *Reconstructor) loadSlices() error {
	files, err := os.ReadDir(r.params.InputDir)
	if err != nil {
		return err
	}

	var imageFiles []string
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Name()))
		if ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
			imageFiles = append(imageFiles, file.Name())
		}
	}
	if len(imageFiles) == 0 {
		return fmt.Errorf("no JPG or PNG images found in input directory")
	}

	sort.SliceStable(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	gap := r.params.SliceGap
	if gap <= 0 {
		gap = r.spacing()
	}
	for i, filename := range imageFiles {
		img, err := loadImage(filepath.Join(r.params.InputDir, filename))
		if err != nil {
			return fmt.Errorf("failed to load image %s: %w", filename, err)
		}

		bounds := img.Bounds()
		if len(r.slices) == 0 {
			r.width = bounds.Dx()
			r.height = bounds.Dy()
		} else if bounds.Dx() != r.width || bounds.Dy() != r.height {
			return fmt.Errorf("slice %s is %dx%d, expected %dx%d", filename, bounds.Dx(), bounds.Dy(), r.width, r.height)
		}

		r.slices = append(r.slices, models.Slice{
			Image:    img,
			Index:    i,
			Filename: filename,
			Position: float64(i) * gap,
		})
	}

	r.printf("Loaded %d slices with dimensions %dx%d\n", len(r.slices), r.width, r.height)
	r.printf("Inter-slice gap: %.1f mm\n", gap)
	return nil
}

func (r *Reconstructor) spacing() float64 {
	if r.params.PixelSpacing > 0 {
		return r.params.PixelSpacing
	}
	return 1
}

// buildVolume stacks the slices into a volume and smooths each of them.
func (r *Reconstructor) buildVolume() error {
	v := models.NewVolume(r.width, r.height, len(r.slices))
	s := r.spacing()
	v.VoxelSize.X, v.VoxelSize.Y = s, s
	if len(r.slices) > 1 {
		v.VoxelSize.Z = r.slices[1].Position - r.slices[0].Position
	}

	var wg sync.WaitGroup
	for z, sl := range r.slices {
		wg.Add(1)
		go func(z int, img image.Image) {
			defer wg.Done()
			imageToFloat(img, v.Plane(z))
		}(z, sl.Image)
	}
	wg.Wait()
	r.volume = v

	if r.params.Sigma <= 0 {
		r.println("Smoothing disabled")
		return nil
	}
	return smoothing.Volume(v, r.params.Sigma, r.workers())
}

// resample interpolates between slices when the slice gap differs from the
// pixel spacing.
func (r *Reconstructor) resample() error {
	s := r.spacing()
	if len(r.slices) < 2 || math.Abs(r.volume.VoxelSize.Z-s) < 1e-9 {
		r.println("Voxels are cubic, no resampling needed")
		return nil
	}
	positions := make([]float64, len(r.slices))
	for i, sl := range r.slices {
		positions[i] = sl.Position
	}
	rs := interpolation.NewResampler(r.params.Method, r.workers())
	out, err := rs.Resample(r.volume, positions, s)
	if err != nil {
		return err
	}
	r.printf("Resampled %d slices to %d with %s interpolation\n", r.volume.Depth, out.Depth, r.params.Method)
	r.volume = out
	return nil
}

// computeStats records the intensity statistics of the volume and the
// extraction threshold.
func (r *Reconstructor) computeStats() {
	data := r.volume.Data
	r.stats.Mean, r.stats.StdDev = stat.MeanStdDev(data, nil)
	r.stats.Min, r.stats.Max = findMinMax(data)
	r.stats.Threshold = r.params.Extract.Threshold
	if r.params.AutoThreshold {
		r.stats.Threshold = IsoData(data)
		// Extraction requires a threshold strictly inside (0, 1)
		r.stats.Threshold = math.Max(1e-3, math.Min(1-1e-3, r.stats.Threshold))
	}
	r.printf("Intensity mean %.3f, std dev %.3f, range %.3f..%.3f\n", r.stats.Mean, r.stats.StdDev, r.stats.Min, r.stats.Max)
}

// Shell returns the extracted shell, nil before Process succeeds.
func (r *Reconstructor) Shell() *shell.Data {
	return r.shell
}

// Volume returns the smoothed and resampled volume.
func (r *Reconstructor) Volume() *models.Volume {
	return r.volume
}

// GetStats returns the statistics of the last run.
func (r *Reconstructor) GetStats() Stats {
	return r.stats
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

func findMinMax(data []float64) (lo, hi float64) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi = data[0], data[0]
	for _, v := range data[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// loadImage loads a JPEG or PNG image from a file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".png") {
		return png.Decode(file)
	}
	return jpeg.Decode(file)
}

// imageToFloat converts an image to intensities in 0..1, writing them to
// dst in row order
func imageToFloat(img image.Image, dst []float64) {
	bounds := img.Bounds()
	width := bounds.Dx()
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			dst[y*width+x] = float64(r) / 65535.0
		}
	}
}
