package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrRegionTooSmall indicates the region cannot host even a single free node.
	ErrRegionTooSmall = errors.New("alloc: region too small to hold a free-list node")

	// ErrNilRegion indicates Init was given address zero, which the free list
	// reserves as its terminal link.
	ErrNilRegion = errors.New("alloc: region starts at address zero")

	// ErrUninitialized indicates the engine was used before Init.
	ErrUninitialized = errors.New("alloc: engine used before Init")

	// ErrAlreadyInitialized indicates a second Init call.
	ErrAlreadyInitialized = errors.New("alloc: Init called more than once")

	// ErrBadAlign indicates an alignment that is not a power of two.
	ErrBadAlign = errors.New("alloc: alignment must be a power of two")

	// ErrZeroSize indicates a zero-byte request.
	ErrZeroSize = errors.New("alloc: size must be greater than zero")

	// ErrBadPointer indicates a deallocation range that is misaligned, lies
	// outside the region, or overlaps memory that is already free.
	ErrBadPointer = errors.New("alloc: bad pointer")
)

// violation panics with err wrapped in a formatted message. It never returns.
func violation(err error, format string, args ...any) {
	panic(fmt.Errorf("%w: "+format, append([]any{err}, args...)...))
}
