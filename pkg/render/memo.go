package render

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// maxMemo bounds the number of cached table sets per renderer.
const maxMemo = 16

// tableKey holds the parameters the colour tables depend on.
type tableKey struct {
	Ambient         [3]int
	SurfaceFactor   [3]float64
	SurfaceStrength float64
	Materials       [4]Material
	EmissionPower   float64
	SurfPctPower    float64
}

func keyOf(p *Params) tableKey {
	return tableKey{
		Ambient:         p.Ambient,
		SurfaceFactor:   p.SurfaceFactor,
		SurfaceStrength: p.SurfaceStrength,
		Materials:       p.Materials,
		EmissionPower:   p.EmissionPower,
		SurfPctPower:    p.SurfPctPower,
	}
}

func (k *tableKey) hash() uint64 {
	b := make([]byte, 0, 8*40)
	f := func(v float64) {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	}
	for _, a := range k.Ambient {
		b = binary.LittleEndian.AppendUint64(b, uint64(a))
	}
	for _, v := range k.SurfaceFactor {
		f(v)
	}
	f(k.SurfaceStrength)
	for _, m := range k.Materials {
		f(m.Opacity)
		for _, v := range m.Color {
			f(v)
		}
	}
	f(k.EmissionPower)
	f(k.SurfPctPower)
	return xxhash.Sum64(b)
}

// tables are the per parameter set lookup tables of percent and direct
// shells. Index s of a share table is a material share of s/255.
type tables struct {
	key tableKey
	// trans[m][s] is the transparency of material m at share s
	trans [4][256]float64
	// emit[m][c][s] is channel c of the emission of material m at share s
	emit [4][3][256]float64
	// surfPct[l] weights reflection by likelihood l
	surfPct [256]float64
	// surface[c] times angle shade times depth is the reflected light
	surface [3]float64
	ambient [3]float64
	// gray is set when all channels are equal
	gray bool
}

func newTables(k tableKey) *tables {
	t := &tables{key: k}
	for m, mat := range k.Materials {
		for s := 0; s < 256; s++ {
			share := float64(s) / 255
			t.trans[m][s] = math.Pow(1-mat.Opacity, share)
			w := math.Pow(share, k.EmissionPower)
			for c := 0; c < 3; c++ {
				t.emit[m][c][s] = w * mat.Color[c]
			}
		}
	}
	for l := range t.surfPct {
		t.surfPct[l] = math.Pow(float64(l)/255, k.SurfPctPower)
	}
	strength := k.SurfaceStrength / 100
	for c := 0; c < 3; c++ {
		t.surface[c] = strength * k.SurfaceFactor[c] * 256 / ZBufferLevels
		t.ambient[c] = strength * k.SurfaceFactor[c] * 256 * MaxAngleShade * float64(k.Ambient[c]) / 65535
	}
	t.gray = k.SurfaceFactor[0] == k.SurfaceFactor[1] && k.SurfaceFactor[1] == k.SurfaceFactor[2] &&
		k.Ambient[0] == k.Ambient[1] && k.Ambient[1] == k.Ambient[2]
	for _, mat := range k.Materials {
		t.gray = t.gray && mat.Color[0] == mat.Color[1] && mat.Color[1] == mat.Color[2]
	}
	return t
}

// alpha returns the opacity of a voxel whose front material has share pct.
func (t *tables) alpha(back, front, pct uint8) float64 {
	return 1 - t.trans[back][255-pct]*t.trans[front][pct]
}

// fragment returns the opacity and premultiplied colour of a percent or
// direct voxel.
func (t *tables) fragment(back, front, pct, like uint8, shade int, depth int32, out *[3]float64) float64 {
	a := t.alpha(back, front, pct)
	if a <= 0 {
		return 0
	}
	beta := t.surfPct[like]
	n := 3
	if t.gray {
		n = 1
	}
	for c := 0; c < n; c++ {
		e := t.emit[back][c][255-pct] + t.emit[front][c][pct]
		s := beta * (t.surface[c]*float64(shade)*float64(depth) + t.ambient[c])
		out[c] = a * (e + s)
	}
	if t.gray {
		out[1], out[2] = out[0], out[0]
	}
	return a
}

// tables returns the memoized tables of p, building them on first use.
func (r *Renderer) tables(p *Params) *tables {
	k := keyOf(p)
	h := k.hash()
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.memo[h]; ok && t.key == k {
		return t
	}
	if len(r.memo) >= maxMemo {
		clear(r.memo)
	}
	t := newTables(k)
	r.memo[h] = t
	r.builds++
	Logger().Debug("render: built colour tables", "key", h, "gray", t.gray)
	return t
}

// mipLUT maps gradient opacity onto 16 bit intensity.
var mipLUT = func() (lut [256]uint16) {
	for i := range lut {
		lut[i] = uint16((i*(VObjectImageBackground-1) + 127) / 255)
	}
	return lut
}()
