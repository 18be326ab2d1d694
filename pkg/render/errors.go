package render

import "errors"

var (
	// ErrAllocation reports that the scratch memory of a projection could
	// not be obtained.
	ErrAllocation = errors.New("render: scratch allocation failed")
	// ErrContract reports inputs that break the projection contract, such
	// as a voxel projecting outside the image or the z-buffer range.
	ErrContract = errors.New("render: contract violation")
)

// Status is the outcome of a projection that did not fail.
type Status int

const (
	// Done means every voxel was projected.
	Done Status = iota
	// Cancelled means the check callback asked to stop. The image holds a
	// partial result.
	Cancelled
)

func (s Status) String() string {
	if s == Cancelled {
		return "cancelled"
	}
	return "done"
}

// Priority is the answer of the check callback.
type Priority int

const (
	Ignore Priority = iota
	// First stops the projection at the next slice.
	First
	Second
)
