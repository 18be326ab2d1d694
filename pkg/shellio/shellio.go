// Package shellio stores shells in container files and loads their slices
// lazily.
//
// A container starts with the magic "SHL1" and the little endian length of
// a YAML header. The header records the shell extent and class and the
// position, size and checksum of every block that follows it. The first
// block holds the pointer table, the others hold the run data of one slice
// each. Blocks are zstd compressed and their uncompressed contents are
// checked with xxhash.
package shellio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"shellrender/pkg/shell"
)

const magic = "SHL1"

// maxHeader bounds the header length accepted by Open.
const maxHeader = 64 << 20

// Block locates one compressed block. Offset is relative to the end of the
// header.
type Block struct {
	Offset int64  `yaml:"offset"`
	Size   int    `yaml:"size"`
	Raw    int    `yaml:"raw"`
	Sum    uint64 `yaml:"sum"`
}

// Header is the YAML header of a container.
type Header struct {
	Class      string    `yaml:"class"`
	Columns    int       `yaml:"columns"`
	Rows       int       `yaml:"rows"`
	Slices     int       `yaml:"slices"`
	Thresholds []float64 `yaml:"thresholds,omitempty"`
	Pointers   Block     `yaml:"pointers"`
	Blocks     []Block   `yaml:"blocks"`
}

// Write stores the resident shell d at path.
func Write(path string, d *shell.Data) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid shell: %w", err)
	}
	if !d.Resident() {
		return errors.New("cannot write a streamed shell")
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}
	defer enc.Close()

	hdr := Header{
		Class:   d.Class.String(),
		Columns: d.Columns,
		Rows:    d.Rows,
		Slices:  d.Slices,
	}
	if d.Class == shell.Direct {
		hdr.Thresholds = d.Thresholds[:]
	}
	var blocks [][]byte
	var offset int64
	add := func(raw []byte) Block {
		c := enc.EncodeAll(raw, nil)
		b := Block{Offset: offset, Size: len(c), Raw: len(raw), Sum: xxhash.Sum64(raw)}
		offset += int64(len(c))
		blocks = append(blocks, c)
		return b
	}

	ptrs := make([]byte, 0, 8*len(d.PtrTable))
	for _, p := range d.PtrTable {
		ptrs = binary.LittleEndian.AppendUint64(ptrs, uint64(p))
	}
	hdr.Pointers = add(ptrs)
	for s := 0; s < d.Slices; s++ {
		start, end := d.SliceRange(s)
		var raw []byte
		if d.Class == shell.TShell {
			raw = d.Bytes[start:end]
		} else {
			raw = make([]byte, 0, 2*(end-start))
			for _, w := range d.Words[start:end] {
				raw = binary.LittleEndian.AppendUint16(raw, w)
			}
		}
		hdr.Blocks = append(hdr.Blocks, add(raw))
	}

	head, err := yaml.Marshal(&hdr)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create shell file: %w", err)
	}
	w := bufio.NewWriter(f)
	w.WriteString(magic)
	binary.Write(w, binary.LittleEndian, uint32(len(head)))
	w.Write(head)
	for _, b := range blocks {
		w.Write(b)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write shell file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write shell file: %w", err)
	}
	Logger().Debug("shellio: wrote shell", "path", path, "class", d.Class, "bytes", offset+int64(8+len(head)))
	return nil
}

// File is an open container. Its slices are read on demand; the backing
// file is opened by the first slice read and stays open until Close.
// ReadSlice may be called concurrently.
type File struct {
	path   string
	Header Header
	class  shell.Class
	ptrs   []int
	base   int64
	dec    *zstd.Decoder

	mu sync.Mutex
	f  *os.File
}

// Open reads the header and pointer table of the container at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shell file: %w", err)
	}
	defer f.Close()

	var pre [8]byte
	if _, err := io.ReadFull(f, pre[:]); err != nil {
		return nil, fmt.Errorf("failed to read shell file: %w", err)
	}
	if string(pre[:4]) != magic {
		return nil, fmt.Errorf("%s is not a shell file", path)
	}
	n := binary.LittleEndian.Uint32(pre[4:])
	if n > maxHeader {
		return nil, fmt.Errorf("shell header of %d bytes is too large", n)
	}
	head := make([]byte, n)
	if _, err := io.ReadFull(f, head); err != nil {
		return nil, fmt.Errorf("failed to read shell header: %w", err)
	}
	sf := &File{path: path, base: int64(8 + n)}
	if err := yaml.Unmarshal(head, &sf.Header); err != nil {
		return nil, fmt.Errorf("failed to parse shell header: %w", err)
	}
	if sf.class, err = shell.ParseClass(sf.Header.Class); err != nil {
		return nil, err
	}
	if len(sf.Header.Blocks) != sf.Header.Slices {
		return nil, fmt.Errorf("shell header lists %d blocks for %d slices", len(sf.Header.Blocks), sf.Header.Slices)
	}
	if sf.class == shell.Direct && len(sf.Header.Thresholds) != len(shell.Thresholds{}) {
		return nil, fmt.Errorf("direct shell has %d thresholds", len(sf.Header.Thresholds))
	}
	if sf.dec, err = zstd.NewReader(nil); err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	raw, err := sf.block(f, sf.Header.Pointers)
	if err != nil {
		sf.dec.Close()
		return nil, fmt.Errorf("failed to read pointer table: %w", err)
	}
	if len(raw) != 8*(sf.Header.Rows*sf.Header.Slices+1) {
		sf.dec.Close()
		return nil, fmt.Errorf("pointer table has %d bytes", len(raw))
	}
	sf.ptrs = make([]int, len(raw)/8)
	for i := range sf.ptrs {
		sf.ptrs[i] = int(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return sf, nil
}

// Class returns the class of the stored shell.
func (sf *File) Class() shell.Class {
	return sf.class
}

// blockError carries the IOKind a block read failed with.
type blockError struct {
	kind shell.IOKind
	err  error
}

func (e *blockError) Error() string { return e.err.Error() }
func (e *blockError) Unwrap() error { return e.err }

// block reads, decompresses and verifies one block from f.
func (sf *File) block(f io.ReadSeeker, b Block) ([]byte, error) {
	if _, err := f.Seek(sf.base+b.Offset, io.SeekStart); err != nil {
		return nil, &blockError{shell.IOSeek, err}
	}
	c := make([]byte, b.Size)
	if _, err := io.ReadFull(f, c); err != nil {
		return nil, &blockError{shell.IOShortRead, err}
	}
	raw, err := sf.dec.DecodeAll(c, make([]byte, 0, b.Raw))
	if err != nil {
		return nil, &blockError{shell.IOShortRead, err}
	}
	if len(raw) != b.Raw {
		return nil, &blockError{shell.IOShortRead, fmt.Errorf("block holds %d bytes, expected %d", len(raw), b.Raw)}
	}
	if xxhash.Sum64(raw) != b.Sum {
		return nil, &blockError{shell.IOShortRead, errors.New("block checksum mismatch")}
	}
	return raw, nil
}

// readRaw returns the uncompressed run data of one slice.
func (sf *File) readRaw(slice int) ([]byte, error) {
	if slice < 0 || slice >= len(sf.Header.Blocks) {
		return nil, &shell.IOError{Kind: shell.IOSeek, Slice: slice, Err: fmt.Errorf("no slice %d", slice)}
	}
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.f == nil {
		f, err := os.Open(sf.path)
		if err != nil {
			return nil, &shell.IOError{Kind: shell.IOOpen, Slice: slice, Err: err}
		}
		sf.f = f
	}
	raw, err := sf.block(sf.f, sf.Header.Blocks[slice])
	if err != nil {
		var be *blockError
		if errors.As(err, &be) {
			return nil, &shell.IOError{Kind: be.kind, Slice: slice, Err: be.err}
		}
		return nil, err
	}
	Logger().Debug("shellio: loaded slice", "slice", slice, "bytes", len(raw))
	return raw, nil
}

// ReadSlice returns the run words of one slice of a word oriented shell.
func (sf *File) ReadSlice(slice int) ([]uint16, error) {
	raw, err := sf.readRaw(slice)
	if err != nil {
		return nil, err
	}
	if len(raw)%2 != 0 {
		return nil, &shell.IOError{Kind: shell.IOShortRead, Slice: slice, Err: errors.New("odd slice length")}
	}
	words := make([]uint16, len(raw)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return words, nil
}

// Data returns the stored shell. With lazy set, the run data of streamable
// classes is left in the file and loaded slice by slice while rendering;
// T_SHELL shells are always read completely.
func (sf *File) Data(lazy bool) (*shell.Data, error) {
	d := &shell.Data{
		Class:    sf.class,
		Columns:  sf.Header.Columns,
		Rows:     sf.Header.Rows,
		Slices:   sf.Header.Slices,
		PtrTable: append([]int(nil), sf.ptrs...),
	}
	copy(d.Thresholds[:], sf.Header.Thresholds)
	switch {
	case lazy && d.Class.Streamable():
		d.Source = sf
	case d.Class == shell.TShell:
		d.Bytes = make([]byte, 0, sf.ptrs[len(sf.ptrs)-1])
		for s := 0; s < d.Slices; s++ {
			raw, err := sf.readRaw(s)
			if err != nil {
				return nil, err
			}
			d.Bytes = append(d.Bytes, raw...)
		}
	default:
		d.Words = make([]uint16, 0, sf.ptrs[len(sf.ptrs)-1])
		for s := 0; s < d.Slices; s++ {
			w, err := sf.ReadSlice(s)
			if err != nil {
				return nil, err
			}
			d.Words = append(d.Words, w...)
		}
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shell in %s: %w", sf.path, err)
	}
	return d, nil
}

// Close releases the backing file.
func (sf *File) Close() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.dec.Close()
	if sf.f == nil {
		return nil
	}
	err := sf.f.Close()
	sf.f = nil
	return err
}
