package ebl

import "math"

// IntIterable walks the positions of a sorted column during a split scan.
type IntIterable interface {
	HasNext() bool
	GetNext() int
	Peek() int
	DistToMiddle(int) float64
}

// rowWalk visits the positions 0..n-1 once, upward or downward.
type rowWalk struct {
	n, next, step int
}

// ascending walks 0, 1, ..., n-1.
func ascending(n int) *rowWalk {
	return &rowWalk{n: n, next: 0, step: 1}
}

// descending walks n-1, ..., 1, 0.
func descending(n int) *rowWalk {
	return &rowWalk{n: n, next: n - 1, step: -1}
}

func (w *rowWalk) HasNext() bool {
	return w.next >= 0 && w.next < w.n
}

func (w *rowWalk) GetNext() int {
	pos := w.next
	w.next += w.step
	return pos
}

// Peek is the position GetNext returns next.
func (w *rowWalk) Peek() int {
	return w.next
}

// DistToMiddle is how far point is from the center of the walked positions.
// Both directions share the center.
func (w *rowWalk) DistToMiddle(point int) float64 {
	return math.Abs(float64(point) - float64(w.n-1)/2)
}
