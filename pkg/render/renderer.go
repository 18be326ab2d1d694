// Package render projects voxel shells onto object images.
//
// A projection walks the slices, rows and voxels of a shell in the order
// that visits them front to back, maps every voxel through fixed point
// coordinate tables to an image pixel and a depth, and composites it into
// the image with z-buffer gated visibility. Voxels are painted either as a
// single pixel or, whenever a voxel may cover more than one pixel or edges
// are to be faded or clipped, as a patch of pixels.
//
// Depths grow towards the viewer. Binary shells paint opaque shades into
// byte images; gradient shells composite gray shades into 16 bit images;
// percent and direct shells composite colours into 16 bit RGB images;
// T_SHELL shells paint every triangle of a voxel as its own fragment.
package render

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
	"seehuhn.de/go/geom/vec"

	"shellrender/pkg/patch"
	"shellrender/pkg/shading"
	"shellrender/pkg/shell"
)

// Renderer projects shells. It holds the colour tables built for previous
// parameter sets so repeated projections with equal materials reuse them.
// Project may be called concurrently on distinct images.
type Renderer struct {
	limit   int
	tracker ScratchTracker

	mu     sync.Mutex
	memo   map[uint64]*tables
	builds int

	// order overrides the traversal order in tests
	order *Order
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithScratchLimit fails projections whose scratch buffers exceed bytes
// with ErrAllocation.
func WithScratchLimit(bytes int) Option {
	return func(r *Renderer) {
		r.limit = bytes
	}
}

// WithScratchTracker reports every scratch buffer to t.
func WithScratchTracker(t ScratchTracker) Option {
	return func(r *Renderer) {
		r.tracker = t
	}
}

// NewRenderer returns a renderer configured by opts.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{memo: make(map[uint64]*tables)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// job is the state of one projection call.
type job struct {
	d      *shell.Data
	img    *Image
	p      *Params
	m      [3][3]float64
	pm     mat.Matrix
	shades []int
	co     coords
	order  Order
	quick  bool
	clip   *clipper
	t      *tables
	cur    *shell.Cursor
	sc     *scratch

	persp  float64
	center vec.Vec2

	patch *patch.Patch
	ts    *tshellState

	visit func(row shell.Row, i, x, y, z int) error
	paint func(idx int, w uint8)

	// the fragment being painted
	depth  int32
	shade8 uint8
	shade  float64
	value  int
	alpha  float64
	color  [3]float64
	like   uint8
}

// Project paints d into img. angleShades maps the shading codes of d to
// angle shades: G codes for binary, gradient, percent and direct shells,
// BG codes for T_SHELL shells; maximum intensity projections ignore it.
//
// A Cancelled status reports that p.Check asked to stop; the image then
// holds what was painted so far. Errors wrap ErrAllocation, ErrContract or
// the *shell.IOError of a failed slice load. All scratch memory is released
// before Project returns.
func (r *Renderer) Project(d *shell.Data, img *Image, proj Projection, angleShades []int, p Params) (Status, error) {
	if d == nil || img == nil {
		return Done, fmt.Errorf("%w: missing shell or image", ErrContract)
	}
	if err := d.Validate(); err != nil {
		return Done, fmt.Errorf("%w: %w", ErrContract, err)
	}
	if err := img.check(d.Class); err != nil {
		return Done, err
	}
	if err := p.Validate(); err != nil {
		return Done, err
	}
	m, err := proj.matrix()
	if err != nil {
		return Done, err
	}
	if p.MIP && (d.Class.IsBinary() || d.Class == shell.TShell) {
		return Done, fmt.Errorf("%w: maximum intensity projection of a %s shell", ErrContract, d.Class)
	}
	if !p.MIP {
		want := shading.G.Codes()
		if d.Class == shell.TShell {
			want = shading.BG.Codes()
		}
		if len(angleShades) < want && !d.Class.IsBinary() {
			return Done, fmt.Errorf("%w: %d angle shades, %s shells need %d", ErrContract, len(angleShades), d.Class, want)
		}
		if len(angleShades) == 0 {
			return Done, fmt.Errorf("%w: no angle shades", ErrContract)
		}
	}

	j := &job{
		d:      d,
		img:    img,
		p:      &p,
		m:      m,
		pm:     proj.Matrix,
		shades: angleShades,
		persp:  p.Perspective,
		center: proj.Center,
		cur:    shell.NewCursor(d),
		sc:     &scratch{limit: r.limit, tracker: r.tracker},
	}
	defer j.sc.release()
	if j.center == (vec.Vec2{}) {
		j.center = vec.Vec2{X: float64(img.Width-1) / 2, Y: float64(img.Height-1) / 2}
	}
	j.order = SelectOrder(m)
	if r.order != nil {
		j.order = *r.order
	}
	if err := j.setup(r, proj); err != nil {
		return Done, err
	}
	Logger().Debug("render: projecting",
		"class", d.Class, "quick", j.quick, "order", j.order.Index(),
		"perspective", p.Perspective, "mip", p.MIP, "fade", p.Fade, "clip", p.Clip)
	return j.run()
}

// weights reports whether the kernel uses patch weights.
func (j *job) weights() bool {
	if j.p.MIP {
		return false
	}
	switch j.d.Class {
	case shell.Gradient:
		return j.p.Materials[0].Opacity < 1
	case shell.Percent, shell.Direct:
		return true
	}
	return false
}

func (j *job) setup(r *Renderer, proj Projection) error {
	d, p := j.d, j.p
	if err := j.sc.acquire("coordinate tables", coordsBytes(d.Columns)); err != nil {
		return err
	}
	j.co = newCoords(j.m, proj.Offset, d.Columns)

	j.quick = !patch.NeedPatch(proj.Matrix) && p.Fade == FadeOff && !p.Clip && d.Class != shell.TShell
	if !j.quick {
		var pt *patch.Patch
		switch {
		case !j.weights() || p.Fade == FadeOff:
			pt = patch.Get(proj.Matrix)
		case p.Fade == FadeLinear:
			pt = patch.Fade(patch.GetOutline(proj.Matrix))
		default:
			pt, _ = patch.GetMargin(proj.Matrix, 0)
			patch.Trim(pt)
		}
		if err := j.sc.acquire("patch", patchBytes(pt)); err != nil {
			return err
		}
		j.patch = pt
	}
	if p.Clip {
		ext := j.patch.Extent()
		j.clip = newClipper(j.m, vec.Vec2{X: proj.Offset.X, Y: proj.Offset.Y}, ext,
			j.img.Width, j.img.Height, d.Columns, d.Rows, d.Slices, j.center, j.persp)
	}

	switch d.Class {
	case shell.BinaryA, shell.BinaryB:
		j.visit, j.paint = j.binaryVoxel, j.paintOpaque8
	case shell.Gradient:
		switch {
		case p.MIP:
			j.visit, j.paint = j.gradientMIP, j.paintMIP16
		case p.Materials[0].Opacity >= 1:
			j.visit, j.paint = j.gradientVoxel, j.paintOpaque16
		default:
			j.visit, j.paint = j.gradientVoxel, j.paintGradient
		}
	case shell.Percent, shell.Direct:
		j.t = r.tables(p)
		if p.MIP {
			j.visit, j.paint = j.colorMIP, j.paintMIP48
		} else {
			j.visit, j.paint = j.colorVoxel, j.paintColor
		}
	case shell.TShell:
		if err := j.setupTShell(); err != nil {
			return err
		}
	}
	return nil
}

func patchBytes(p *patch.Patch) int {
	n := 24 * len(p.Lines)
	if p.Weighted() {
		n += p.Pixels()
	}
	return n
}

func (j *job) run() (Status, error) {
	d := j.d
	slices := span{first: 0, last: d.Slices - 1, reverse: j.order.Slice}
	if j.clip != nil {
		slices = j.clip.sliceSpan(j.order.Slice)
	}
	status := Done
	var err error
	slices.each(func(s int) bool {
		if j.p.Check != nil && j.p.Check() == First {
			status = Cancelled
			return false
		}
		rows := span{first: 0, last: d.Rows - 1, reverse: j.order.Row}
		if j.clip != nil {
			rows = j.clip.rowSpan(s, j.order.Row)
		}
		if rows.empty() {
			return true
		}
		if err = j.cur.Seek(s); err != nil {
			err = fmt.Errorf("render: loading slice %d: %w", s, err)
			return false
		}
		rows.each(func(r int) bool {
			err = j.row(s, r)
			return err == nil
		})
		return err == nil
	})
	if err != nil {
		return Done, err
	}
	if status == Cancelled {
		Logger().Debug("render: projection cancelled")
	}
	return status, nil
}

func (j *job) row(s, r int) error {
	row := j.cur.Row(r)
	if row.Len() == 0 {
		return nil
	}
	x, y, z := j.co.origin(s, r)
	var err error
	row.Each(j.order.Column, func(i int) bool {
		err = j.visit(row, i, x, y, z)
		if err != nil {
			err = fmt.Errorf("slice %d row %d: %w", s, r, err)
		}
		return err == nil
	})
	return err
}

// position adds the column tables to a row origin.
func (j *job) position(column, x, y, z int) (int, int, int, error) {
	if column < 0 || column >= len(j.co.colX) {
		return 0, 0, 0, fmt.Errorf("%w: column %d outside shell of %d columns", ErrContract, column, len(j.co.colX))
	}
	return x + j.co.colX[column], y + j.co.colY[column], z + j.co.colZ[column], nil
}

// locate converts a fixed point position to its pixel and depth, applying
// perspective if requested.
func (j *job) locate(x, y, z int) (int, int, int32, error) {
	depth := z >> 8
	if depth < 0 || depth >= ZBufferLevels {
		return 0, 0, 0, fmt.Errorf("%w: depth %d outside the z-buffer", ErrContract, depth)
	}
	if j.persp == 0 {
		return x >> 16, y >> 16, int32(depth), nil
	}
	zf := float64(z) / ZSublevels
	f := ZBufferLevels * (100 - j.persp) / (100*ZBufferLevels - j.persp*zf)
	xf := float64(x)/fixedOne - .5
	yf := float64(y)/fixedOne - .5
	px := math.Floor(j.center.X + f*(xf-j.center.X) + .5)
	py := math.Floor(j.center.Y + f*(yf-j.center.Y) + .5)
	return int(px), int(py), int32(depth), nil
}

func (j *job) outside(px, py int) error {
	if j.p.Clip {
		return nil
	}
	return fmt.Errorf("%w: pixel (%d,%d) outside %dx%d image", ErrContract, px, py, j.img.Width, j.img.Height)
}

// stamp paints the current fragment at pixel (px, py).
func (j *job) stamp(px, py int) error {
	if j.quick {
		if px < 0 || py < 0 || px >= j.img.Width || py >= j.img.Height {
			return j.outside(px, py)
		}
		j.paint(py*j.img.Width+px, patch.MaxWeight)
		return nil
	}
	return j.stampPatch(j.patch, px, py)
}

func (j *job) stampPatch(pt *patch.Patch, px, py int) error {
	w, h := j.img.Width, j.img.Height
	for i, l := range pt.Lines {
		if l.Right <= l.Left {
			continue
		}
		y := py + pt.Top + i
		x0, x1 := px+l.Left, px+l.Right
		if y < 0 || y >= h || x0 < 0 || x1 > w {
			if err := j.outside(px+l.Left, y); err != nil {
				return err
			}
			if y < 0 || y >= h {
				continue
			}
			x0, x1 = max(x0, 0), min(x1, w)
		}
		base := y * w
		for x := x0; x < x1; x++ {
			j.paint(base+x, l.Weight(x-px))
		}
	}
	return nil
}
