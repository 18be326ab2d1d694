package shell

import (
	"fmt"
)

// Row is a view of the packed entries of one (slice, row) pair. Entries are
// addressed by index in storage order, so a row can be walked forward or
// backward over the same record boundaries.
type Row struct {
	class  Class
	words  []uint16
	bytes  []byte
	starts []int
}

// Len returns the number of voxel entries in the row.
func (r Row) Len() int {
	if r.class == TShell {
		return len(r.starts)
	}
	return len(r.words) / r.class.Words()
}

// Class returns the classification of the entries.
func (r Row) Class() Class {
	return r.class
}

// Column returns the column of entry i regardless of class.
func (r Row) Column(i int) int {
	switch r.class {
	case BinaryA, BinaryB:
		return r.Binary(i).Column
	case Direct:
		return int(r.words[3*i])
	case TShell:
		p := r.starts[i]
		return int(r.bytes[p+1])<<8 | int(r.bytes[p+2])
	}
	return int(r.words[3*i] & column10Mask)
}

// Binary decodes entry i of a BINARY_A or BINARY_B row.
func (r Row) Binary(i int) BinaryVoxel {
	if r.class == BinaryB {
		return decodeBinaryB(r.words[2*i:])
	}
	return decodeBinaryA(r.words[2*i:])
}

// Gradient decodes entry i of a GRADIENT row.
func (r Row) Gradient(i int) GradientVoxel {
	return decodeGradient(r.words[3*i:])
}

// Percent decodes entry i of a PERCENT row.
func (r Row) Percent(i int) PercentVoxel {
	return decodePercent(r.words[3*i:])
}

// Direct decodes entry i of a DIRECT row.
func (r Row) Direct(i int) DirectVoxel {
	return decodeDirect(r.words[3*i:])
}

// TShell decodes entry i of a T_SHELL row.
func (r Row) TShell(i int) TShellVoxel {
	return decodeTShell(r.bytes[r.starts[i]:])
}

// Each calls fn with the index of every entry, last to first when reverse
// is set, until fn returns false.
func (r Row) Each(reverse bool, fn func(i int) bool) {
	n := r.Len()
	if reverse {
		for i := n - 1; i >= 0; i-- {
			if !fn(i) {
				return
			}
		}
		return
	}
	for i := 0; i < n; i++ {
		if !fn(i) {
			return
		}
	}
}

// Cursor walks the rows of a shell one slice at a time. Streamed slices are
// loaded from the shell's source when the cursor is positioned on them.
// A Cursor is not safe for concurrent use.
type Cursor struct {
	d      *Data
	slice  int
	words  []uint16
	base   int
	starts []int
}

// NewCursor returns a cursor over d, positioned before the first slice.
func NewCursor(d *Data) *Cursor {
	return &Cursor{d: d, slice: -1}
}

// Seek positions the cursor on a slice, loading its run data if the shell is
// streamed. Loading errors are returned unchanged.
func (c *Cursor) Seek(slice int) error {
	if slice < 0 || slice >= c.d.Slices {
		return fmt.Errorf("slice %d outside shell of %d slices", slice, c.d.Slices)
	}
	if slice == c.slice {
		return nil
	}
	c.slice = slice
	if c.d.Class == TShell || c.d.Words != nil {
		c.words = c.d.Words
		c.base = 0
		return nil
	}
	start, end := c.d.SliceRange(slice)
	words, err := c.d.Source.ReadSlice(slice)
	if err != nil {
		c.slice = -1
		return err
	}
	if len(words) < end-start {
		c.slice = -1
		return &IOError{Kind: IOShortRead, Slice: slice,
			Err: fmt.Errorf("got %d words, expected %d", len(words), end-start)}
	}
	c.words = words
	c.base = start
	return nil
}

// Slice returns the slice the cursor is positioned on, or -1.
func (c *Cursor) Slice() int {
	return c.slice
}

// Row returns the entries of a row of the current slice. The returned Row
// of a T_SHELL shell is valid until the next call to Row.
func (c *Cursor) Row(row int) Row {
	start, end := c.d.RowRange(c.slice, row)
	if c.d.Class != TShell {
		return Row{class: c.d.Class, words: c.words[start-c.base : end-c.base]}
	}
	b := c.d.Bytes[start:end]
	c.starts = c.starts[:0]
	for p := 0; p < len(b); p += TShellRecordSize(b[p]) {
		c.starts = append(c.starts, p)
	}
	return Row{class: TShell, bytes: b, starts: c.starts}
}

// ForEachVoxel positions the cursor on slice and calls fn for every entry of
// the row in the requested direction. It stops at the first error fn returns.
func (c *Cursor) ForEachVoxel(slice, row int, reverse bool, fn func(r Row, i int) error) error {
	if err := c.Seek(slice); err != nil {
		return err
	}
	r := c.Row(row)
	var err error
	r.Each(reverse, func(i int) bool {
		err = fn(r, i)
		return err == nil
	})
	return err
}
