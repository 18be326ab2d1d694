package shell

import (
	"fmt"
)

// IOKind distinguishes the ways lazily loading a slice can fail.
type IOKind int

const (
	// IOOpen means the backing file could not be opened
	IOOpen IOKind = iota + 1
	// IOSeek means the slice offset could not be reached
	IOSeek
	// IOShortRead means fewer bytes than recorded were read, or the slice
	// data failed its integrity check
	IOShortRead
)

func (k IOKind) String() string {
	switch k {
	case IOOpen:
		return "open"
	case IOSeek:
		return "seek"
	case IOShortRead:
		return "short read"
	}
	return fmt.Sprintf("io(%d)", int(k))
}

// IOError reports a failure to load the run data of one slice.
type IOError struct {
	Kind  IOKind
	Slice int
	Err   error
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("slice %d: %s failure", e.Slice, e.Kind)
	}
	return fmt.Sprintf("slice %d: %s failure: %v", e.Slice, e.Kind, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
