package shell

import (
	"fmt"
	"sort"
)

type entry struct {
	column int
	words  [3]uint16
	config uint8
	tris   []Triangle
}

// Builder assembles a shell from individual voxels. Voxels may be added in
// any order; Build sorts every row by column and packs the run array.
type Builder struct {
	class                 Class
	columns, rows, slices int
	rowsData              [][]entry
	thresholds            Thresholds
	err                   error
}

// NewBuilder returns a builder for a shell of the given class and extent.
func NewBuilder(class Class, columns, rows, slices int) *Builder {
	b := &Builder{class: class, columns: columns, rows: rows, slices: slices}
	switch {
	case !class.Valid():
		b.err = fmt.Errorf("invalid shell class %d", int(class))
	case columns <= 0 || rows <= 0 || slices <= 0:
		b.err = fmt.Errorf("invalid shell dimensions %dx%dx%d", columns, rows, slices)
	case columns > class.MaxColumns():
		b.err = fmt.Errorf("%d columns exceed the %s limit of %d", columns, class, class.MaxColumns())
	default:
		b.rowsData = make([][]entry, rows*slices)
	}
	return b
}

// SetThresholds sets the material thresholds of a DIRECT shell.
func (b *Builder) SetThresholds(t Thresholds) {
	for i := 1; i < len(t); i++ {
		if t[i] < t[i-1] && b.err == nil {
			b.err = fmt.Errorf("thresholds must be ascending, %g follows %g", t[i], t[i-1])
		}
	}
	b.thresholds = t
}

func (b *Builder) add(want Class, column, row, slice int, e entry) {
	if b.err != nil {
		return
	}
	if b.class != want && !(want == BinaryA && b.class == BinaryB) {
		b.err = fmt.Errorf("cannot add a %s voxel to a %s shell", want, b.class)
		return
	}
	if column < 0 || column >= b.columns || row < 0 || row >= b.rows || slice < 0 || slice >= b.slices {
		b.err = fmt.Errorf("voxel (%d,%d,%d) outside shell of %dx%dx%d",
			column, row, slice, b.columns, b.rows, b.slices)
		return
	}
	e.column = column
	i := slice*b.rows + row
	b.rowsData[i] = append(b.rowsData[i], e)
}

// AddBinary adds a voxel to a BINARY_A or BINARY_B shell.
func (b *Builder) AddBinary(row, slice int, v BinaryVoxel) {
	if v.Code > code15Mask {
		b.fail(fmt.Errorf("binary code %d exceeds 15 bits", v.Code))
		return
	}
	var w [3]uint16
	if b.class == BinaryB {
		p := encodeBinaryB(v)
		copy(w[:], p[:])
	} else {
		p := encodeBinaryA(v)
		copy(w[:], p[:])
	}
	b.add(BinaryA, v.Column, row, slice, entry{words: w})
}

// AddGradient adds a voxel to a GRADIENT shell.
func (b *Builder) AddGradient(row, slice int, v GradientVoxel) {
	if v.Code > code11Mask {
		b.fail(fmt.Errorf("gradient code %d exceeds 11 bits", v.Code))
		return
	}
	b.add(Gradient, v.Column, row, slice, entry{words: encodeGradient(v)})
}

// AddPercent adds a voxel to a PERCENT shell.
func (b *Builder) AddPercent(row, slice int, v PercentVoxel) {
	if v.Code > code11Mask {
		b.fail(fmt.Errorf("percent code %d exceeds 11 bits", v.Code))
		return
	}
	if v.Back > 3 || v.Front > 3 {
		b.fail(fmt.Errorf("material pair %d/%d outside 0..3", v.Back, v.Front))
		return
	}
	b.add(Percent, v.Column, row, slice, entry{words: encodePercent(v)})
}

// AddDirect adds a voxel to a DIRECT shell.
func (b *Builder) AddDirect(row, slice int, v DirectVoxel) {
	if v.Code > code11Mask {
		b.fail(fmt.Errorf("direct code %d exceeds 11 bits", v.Code))
		return
	}
	b.add(Direct, v.Column, row, slice, entry{words: encodeDirect(v)})
}

// AddTShell adds a voxel to a T_SHELL shell. The triangles must match the
// shapes of the configuration in order.
func (b *Builder) AddTShell(column, row, slice int, config uint8, tris []Triangle) {
	shapes := ConfigTriangles(config)
	if len(shapes) != len(tris) {
		b.fail(fmt.Errorf("configuration %d has %d triangles, got %d", config, len(shapes), len(tris)))
		return
	}
	for k, t := range tris {
		if t.Shape != int(shapes[k]) {
			b.fail(fmt.Errorf("triangle %d of configuration %d must have shape %d, got %d",
				k, config, shapes[k], t.Shape))
			return
		}
		for _, p := range t.Position {
			if p < 0 || p >= EdgePositions {
				b.fail(fmt.Errorf("edge position %d outside 0..%d", p, EdgePositions-1))
				return
			}
		}
		if t.Code > code15Mask {
			b.fail(fmt.Errorf("triangle code %d exceeds 15 bits", t.Code))
			return
		}
	}
	b.add(TShell, column, row, slice, entry{config: config, tris: append([]Triangle(nil), tris...)})
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build packs the collected voxels. It fails if any Add call was invalid or
// a column was added twice to the same row.
func (b *Builder) Build() (*Data, error) {
	if b.err != nil {
		return nil, b.err
	}
	d := &Data{
		Class:      b.class,
		Columns:    b.columns,
		Rows:       b.rows,
		Slices:     b.slices,
		PtrTable:   make([]int, len(b.rowsData)+1),
		Thresholds: b.thresholds,
	}
	nw := b.class.Words()
	for i, row := range b.rowsData {
		sort.SliceStable(row, func(p, q int) bool { return row[p].column < row[q].column })
		for k := 1; k < len(row); k++ {
			if row[k].column == row[k-1].column {
				return nil, fmt.Errorf("column %d added twice to row %d of slice %d",
					row[k].column, i%b.rows, i/b.rows)
			}
		}
		if b.class == TShell {
			for _, e := range row {
				d.Bytes = appendTShell(d.Bytes, e.column, e.config, e.tris)
			}
			d.PtrTable[i+1] = len(d.Bytes)
			continue
		}
		for _, e := range row {
			d.Words = append(d.Words, e.words[:nw]...)
		}
		d.PtrTable[i+1] = len(d.Words)
	}
	if d.Class == TShell && d.Bytes == nil {
		d.Bytes = []byte{}
	}
	if d.Class != TShell && d.Words == nil {
		d.Words = []uint16{}
	}
	return d, nil
}
