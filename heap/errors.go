package heap

import "errors"

var (
	// ErrReentrant indicates a Heap method was entered while another call on
	// the same Heap was still in progress (a nested call from an Inspect
	// callback, a signal-style reentry, or unsynchronized goroutines).
	ErrReentrant = errors.New("heap: already borrowed")

	// ErrNilPointer indicates Dealloc was given a nil pointer.
	ErrNilPointer = errors.New("heap: dealloc of nil pointer")

	// ErrNegativeSize indicates a byte-slice helper was given a negative
	// size or alignment.
	ErrNegativeSize = errors.New("heap: negative size or alignment")
)
