package render

import "fmt"

// ScratchTracker observes the scratch memory of projections. Acquire may
// refuse a request by returning an error; every successful Acquire is
// matched by one Release before Project returns.
type ScratchTracker interface {
	Acquire(name string, bytes int) error
	Release(name string, bytes int)
}

type hold struct {
	name  string
	bytes int
}

// scratch accounts for the call scoped buffers of one projection.
type scratch struct {
	limit   int
	tracker ScratchTracker
	held    []hold
	total   int
}

func (s *scratch) acquire(name string, bytes int) error {
	if s.limit > 0 && s.total+bytes > s.limit {
		return fmt.Errorf("%w: %s needs %d bytes with %d of %d in use", ErrAllocation, name, bytes, s.total, s.limit)
	}
	if s.tracker != nil {
		if err := s.tracker.Acquire(name, bytes); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrAllocation, name, err)
		}
	}
	s.held = append(s.held, hold{name: name, bytes: bytes})
	s.total += bytes
	return nil
}

// release frees everything acquired, last first.
func (s *scratch) release() {
	for i := len(s.held) - 1; i >= 0; i-- {
		if s.tracker != nil {
			s.tracker.Release(s.held[i].name, s.held[i].bytes)
		}
	}
	s.held = s.held[:0]
	s.total = 0
}
