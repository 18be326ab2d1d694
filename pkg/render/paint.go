package render

import (
	"fmt"
	"math"

	"shellrender/pkg/shell"
)

func (j *job) angleShade(code uint16) (int, error) {
	if int(code) >= len(j.shades) {
		return 0, fmt.Errorf("%w: shading code %#x outside the angle shade table", ErrContract, code)
	}
	return j.shades[code], nil
}

func (j *job) binaryVoxel(row shell.Row, i, x, y, z int) error {
	v := row.Binary(i)
	a, err := j.angleShade(v.Code)
	if err != nil || a == 0 {
		return err
	}
	x, y, z, err = j.position(v.Column, x, y, z)
	if err != nil {
		return err
	}
	px, py, depth, err := j.locate(x, y, z)
	if err != nil {
		return err
	}
	j.depth = depth
	j.shade8 = uint8(a * int(depth) / ShadeScaleFactor)
	return j.stamp(px, py)
}

// paintOpaque8 writes the fragment where it is nearer than the pixel.
func (j *job) paintOpaque8(idx int, _ uint8) {
	if j.depth > j.img.Z[idx] {
		j.img.Z[idx] = j.depth
		j.img.Pixels8[idx] = j.shade8
	}
}

func (j *job) gradientVoxel(row shell.Row, i, x, y, z int) error {
	v := row.Gradient(i)
	a, err := j.angleShade(v.Code)
	if err != nil {
		return err
	}
	x, y, z, err = j.position(v.Column, x, y, z)
	if err != nil {
		return err
	}
	px, py, depth, err := j.locate(x, y, z)
	if err != nil {
		return err
	}
	j.depth = depth
	j.like = v.Likelihood
	j.shade = math.Min(float64(a)*float64(depth)/VShadeScaleFactor, VObjectImageBackground-1)
	j.alpha = float64(v.Opacity) / 255 * j.p.Materials[0].Opacity
	if j.alpha <= 0 {
		return nil
	}
	return j.stamp(px, py)
}

// paintOpaque16 writes the fragment where it is nearer than the pixel.
func (j *job) paintOpaque16(idx int, _ uint8) {
	if j.depth > j.img.Z[idx] {
		j.img.Z[idx] = j.depth
		j.img.Pixels16[idx] = uint16(j.shade)
		j.img.Opacity[idx] = MaxOpacity
		j.img.Likelihood[idx] = j.like
	}
}

// over composites a premultiplied contribution under the accumulated
// opacity of a pixel. Unpainted pixels contribute nothing.
func over(old uint16, painted bool, opacity uint8, c float64) uint16 {
	v := 0.
	if painted {
		v = float64(old)
	}
	v += (1 - float64(opacity)/255) * c
	return uint16(math.Min(math.Floor(v+.5), VObjectImageBackground-1))
}

// closeOpacity adds alpha to an accumulated opacity, saturating at
// MaxOpacity.
func closeOpacity(opacity uint8, alpha float64) uint8 {
	a := float64(opacity) + (255-float64(opacity))*alpha
	// round up so that many weak contributions still reach MaxOpacity
	return uint8(math.Min(math.Ceil(a-1e-6), MaxOpacity))
}

// paintGradient composites a translucent gray fragment. The depth follows
// the most likely contributor.
func (j *job) paintGradient(idx int, w uint8) {
	img := j.img
	op := img.Opacity[idx]
	if op >= MaxOpacity {
		return
	}
	alpha := j.alpha * float64(w) / 255
	if alpha <= 0 {
		return
	}
	img.Pixels16[idx] = over(img.Pixels16[idx], img.Pixels16[idx] != VObjectImageBackground, op, alpha*j.shade)
	img.Opacity[idx] = closeOpacity(op, alpha)
	if j.like >= img.Likelihood[idx] {
		img.Likelihood[idx] = j.like
		img.Z[idx] = j.depth
	}
}

func (j *job) gradientMIP(row shell.Row, i, x, y, z int) error {
	v := row.Gradient(i)
	x, y, z, err := j.position(v.Column, x, y, z)
	if err != nil {
		return err
	}
	px, py, depth, err := j.locate(x, y, z)
	if err != nil {
		return err
	}
	j.depth = depth
	j.value = int(mipLUT[v.Opacity])
	return j.stamp(px, py)
}

// paintMIP16 keeps the largest value seen; ties keep the first.
func (j *job) paintMIP16(idx int, _ uint8) {
	old := int(j.img.Pixels16[idx])
	if old == VObjectImageBackground {
		old = -1
	}
	if j.value > old {
		j.img.Pixels16[idx] = uint16(j.value)
		j.img.Z[idx] = j.depth
	}
}

// materials returns the mixture and likelihood of a percent or direct voxel.
func (j *job) materials(row shell.Row, i int) (column int, code uint16, back, front, pct, like uint8) {
	if j.d.Class == shell.Direct {
		v := row.Direct(i)
		back, front, pct, like = j.d.Thresholds.Classify(v.Intensity)
		return v.Column, v.Code, back, front, pct, like
	}
	v := row.Percent(i)
	return v.Column, v.Code, v.Back, v.Front, v.Percent, v.Likelihood
}

func (j *job) colorVoxel(row shell.Row, i, x, y, z int) error {
	column, code, back, front, pct, like := j.materials(row, i)
	a, err := j.angleShade(code)
	if err != nil {
		return err
	}
	x, y, z, err = j.position(column, x, y, z)
	if err != nil {
		return err
	}
	px, py, depth, err := j.locate(x, y, z)
	if err != nil {
		return err
	}
	j.depth = depth
	j.like = like
	j.alpha = j.t.fragment(back, front, pct, like, a, depth, &j.color)
	if j.alpha <= 0 {
		return nil
	}
	return j.stamp(px, py)
}

// paintColor composites a translucent colour fragment channel by channel.
func (j *job) paintColor(idx int, w uint8) {
	img := j.img
	op := img.Opacity[idx]
	if op >= MaxOpacity {
		return
	}
	k := float64(w) / 255
	alpha := j.alpha * k
	if alpha <= 0 {
		return
	}
	px := img.Pixels16[3*idx : 3*idx+3]
	painted := px[0] != VObjectImageBackground
	if j.t.gray {
		g := over(px[0], painted, op, j.color[0]*k)
		px[0], px[1], px[2] = g, g, g
	} else {
		for c := range px {
			px[c] = over(px[c], painted, op, j.color[c]*k)
		}
	}
	img.Opacity[idx] = closeOpacity(op, alpha)
	if j.like >= img.Likelihood[idx] {
		img.Likelihood[idx] = j.like
		img.Z[idx] = j.depth
	}
}

func (j *job) colorMIP(row shell.Row, i, x, y, z int) error {
	var column int
	if j.d.Class == shell.Direct {
		v := row.Direct(i)
		column = v.Column
		j.value = int(v.Intensity) * (VObjectImageBackground - 1) / 65535
	} else {
		v := row.Percent(i)
		column = v.Column
		a := j.t.alpha(v.Back, v.Front, v.Percent)
		j.value = int(math.Floor(a*(VObjectImageBackground-1) + .5))
	}
	x, y, z, err := j.position(column, x, y, z)
	if err != nil {
		return err
	}
	px, py, depth, err := j.locate(x, y, z)
	if err != nil {
		return err
	}
	j.depth = depth
	return j.stamp(px, py)
}

// paintMIP48 keeps the largest gray value seen; ties keep the first.
func (j *job) paintMIP48(idx int, _ uint8) {
	px := j.img.Pixels16[3*idx : 3*idx+3]
	old := int(px[0])
	if old == VObjectImageBackground {
		old = -1
	}
	if j.value > old {
		v := uint16(j.value)
		px[0], px[1], px[2] = v, v, v
		j.img.Z[idx] = j.depth
	}
}
