// Package shell describes sparse voxel shells: the classification schemes,
// the packed run entries (TSEs) and the row index table that locates the
// entries of every (slice, row) pair.
package shell

import (
	"fmt"
)

// Class is the voxel classification scheme of a shell.
// The numeric values follow the historical file format.
type Class int

const (
	BinaryA Class = iota
	Gradient
	Percent
	BinaryB
	Direct
	TShell
)

var classNames = [...]string{"binary_a", "gradient", "percent", "binary_b", "direct", "t_shell"}

func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return fmt.Sprintf("class(%d)", int(c))
	}
	return classNames[c]
}

// ParseClass converts a class name as printed by String back to a Class.
func ParseClass(name string) (Class, error) {
	for i, n := range classNames {
		if n == name {
			return Class(i), nil
		}
	}
	return 0, fmt.Errorf("unknown shell class %q", name)
}

// Valid reports whether c is one of the known classes.
func (c Class) Valid() bool {
	return c >= BinaryA && c <= TShell
}

// IsBinary reports whether voxels of the class are opaque surface elements
// without opacity or material information.
func (c Class) IsBinary() bool {
	return c == BinaryA || c == BinaryB
}

// Words returns the number of uint16 words in one TSE of the class.
// T_SHELL entries are byte oriented and variable length; Words returns 0.
func (c Class) Words() int {
	switch c {
	case BinaryA, BinaryB:
		return 2
	case Gradient, Percent, Direct:
		return 3
	}
	return 0
}

// MaxColumns is the number of distinct column indices the TSE layout of the
// class can represent.
func (c Class) MaxColumns() int {
	switch c {
	case BinaryA, Gradient, Percent:
		return 1 << 10
	case BinaryB:
		return 1 << 11
	}
	return 1 << 16
}

// PixelWords is the width of one object image pixel for the class: 1 for the
// byte images of binary and T_SHELL shells, 1 uint16 for gradient shells and
// 3 uint16 (red, green, blue) for percent and direct shells.
func (c Class) PixelWords() int {
	switch c {
	case Percent, Direct:
		return 3
	}
	return 1
}

// Translucent reports whether the class carries per-voxel opacity.
func (c Class) Translucent() bool {
	return c == Gradient || c == Percent || c == Direct
}

// Streamable reports whether a shell of the class may leave its run data on
// disk and load it one slice at a time.
func (c Class) Streamable() bool {
	return c.Translucent()
}

// SliceSource supplies the run words of one slice on demand. The returned
// words start at the element PtrTable[slice*Rows] of the shell.
type SliceSource interface {
	ReadSlice(slice int) ([]uint16, error)
}

// Data is a parsed shell: its extent, classification, row index table and
// packed run array. It is read-only while it is being projected.
type Data struct {
	Class Class

	// Columns, Rows and Slices are the logical volume dimensions
	Columns, Rows, Slices int

	// PtrTable maps (slice, row) to the offset of the row's first TSE:
	// entry slice*Rows+row. It has Rows*Slices+1 entries so that the end
	// of every row is the start of the next one. Offsets count uint16
	// words, or bytes for T_SHELL shells.
	PtrTable []int

	// Words holds the packed TSEs of word oriented classes. It may be nil
	// for streamable classes when Source is set.
	Words []uint16

	// Bytes holds the packed TSEs of a T_SHELL shell.
	Bytes []byte

	// Thresholds partitions the intensity range of a DIRECT shell.
	Thresholds Thresholds

	// Source loads slices lazily when Words is nil.
	Source SliceSource
}

// Resident reports whether all run data is held in memory.
func (d *Data) Resident() bool {
	if d.Class == TShell {
		return d.Bytes != nil
	}
	return d.Words != nil
}

// RowRange returns the element range [start, end) of one row.
func (d *Data) RowRange(slice, row int) (int, int) {
	i := slice*d.Rows + row
	return d.PtrTable[i], d.PtrTable[i+1]
}

// SliceRange returns the element range [start, end) of one slice.
func (d *Data) SliceRange(slice int) (int, int) {
	return d.PtrTable[slice*d.Rows], d.PtrTable[(slice+1)*d.Rows]
}

// Validate checks the structural consistency of the descriptor. It does not
// inspect individual run entries.
func (d *Data) Validate() error {
	if !d.Class.Valid() {
		return fmt.Errorf("invalid shell class %d", int(d.Class))
	}
	if d.Columns <= 0 || d.Rows <= 0 || d.Slices <= 0 {
		return fmt.Errorf("invalid shell dimensions %dx%dx%d", d.Columns, d.Rows, d.Slices)
	}
	if d.Columns > d.Class.MaxColumns() {
		return fmt.Errorf("%d columns exceed the %s limit of %d", d.Columns, d.Class, d.Class.MaxColumns())
	}
	if len(d.PtrTable) != d.Rows*d.Slices+1 {
		return fmt.Errorf("pointer table has %d entries, expected %d", len(d.PtrTable), d.Rows*d.Slices+1)
	}
	for i := 1; i < len(d.PtrTable); i++ {
		if d.PtrTable[i] < d.PtrTable[i-1] {
			return fmt.Errorf("pointer table decreases at entry %d", i)
		}
	}
	end := d.PtrTable[len(d.PtrTable)-1]
	switch {
	case d.Class == TShell:
		if len(d.Bytes) < end {
			return fmt.Errorf("run array has %d bytes, pointer table needs %d", len(d.Bytes), end)
		}
	case d.Words != nil:
		if len(d.Words) < end {
			return fmt.Errorf("run array has %d words, pointer table needs %d", len(d.Words), end)
		}
		for i := 0; i+1 < len(d.PtrTable); i++ {
			if (d.PtrTable[i+1]-d.PtrTable[i])%d.Class.Words() != 0 {
				return fmt.Errorf("row %d is not a whole number of entries", i)
			}
		}
	case d.Source == nil:
		return fmt.Errorf("shell has neither run data nor a slice source")
	case !d.Class.Streamable():
		return fmt.Errorf("%s shells cannot be streamed", d.Class)
	}
	return nil
}

// Count returns the number of voxels in the shell. Streamed shells are
// counted from the pointer table alone.
func (d *Data) Count() int {
	if d.Class != TShell {
		return d.PtrTable[len(d.PtrTable)-1] / d.Class.Words()
	}
	n := 0
	for s := 0; s < d.Slices; s++ {
		for r := 0; r < d.Rows; r++ {
			start, end := d.RowRange(s, r)
			for p := start; p < end; p += TShellRecordSize(d.Bytes[p]) {
				n++
			}
		}
	}
	return n
}
