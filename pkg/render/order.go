package render

// Order is the traversal direction along each voxel axis. A set flag walks
// the axis from its last index to its first.
type Order struct {
	Column, Row, Slice bool
}

// SelectOrder returns the order that visits voxels front to back: an axis is
// walked backwards when advancing along it moves nearer the viewer.
func SelectOrder(m [3][3]float64) Order {
	return Order{
		Column: m[2][0] > 0,
		Row:    m[2][1] > 0,
		Slice:  m[2][2] > 0,
	}
}

// Index numbers the eight orders 0..7.
func (o Order) Index() int {
	i := 0
	if o.Column {
		i |= 1
	}
	if o.Row {
		i |= 2
	}
	if o.Slice {
		i |= 4
	}
	return i
}

// span is an inclusive index range walked in one direction.
type span struct {
	first, last int
	reverse     bool
}

func (s span) empty() bool {
	return s.first > s.last
}

// each calls fn for every index of the span until fn returns false.
func (s span) each(fn func(i int) bool) {
	if s.reverse {
		for i := s.last; i >= s.first; i-- {
			if !fn(i) {
				return
			}
		}
		return
	}
	for i := s.first; i <= s.last; i++ {
		if !fn(i) {
			return
		}
	}
}
