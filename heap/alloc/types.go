package alloc

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/heapkit/internal/format"
)

const (
	// MinNodeSize is the smallest free range the list can track: one size
	// word plus one link word. Every allocation is rounded up to at least
	// this size so a freed block can always hold a node.
	MinNodeSize = uintptr(format.NodeSize)

	// nodeAlign is the allocation granule. Region bounds, node starts, node
	// sizes and effective sizes are all multiples of it, so a leftover after
	// carving is either empty or large enough to become a node.
	nodeAlign = MinNodeSize
)

// Layout describes an allocation request: a size in bytes and a power-of-two
// alignment. The same Layout must be passed back on release.
type Layout struct {
	Size  uintptr
	Align uintptr
}

// NewLayout validates size and align.
func NewLayout(size, align uintptr) (Layout, error) {
	if size == 0 {
		return Layout{}, ErrZeroSize
	}
	if !format.IsPowerOfTwo(align) {
		return Layout{}, fmt.Errorf("%w: %d", ErrBadAlign, align)
	}
	return Layout{Size: size, Align: align}, nil
}

// LayoutOf returns the layout of a T.
func LayoutOf[T any]() Layout {
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		size = 1
	}
	return Layout{Size: size, Align: unsafe.Alignof(zero)}
}

// EffectiveSize returns the number of bytes the engine actually carves out
// for a request of size bytes: size rounded up to a multiple of MinNodeSize.
// Release uses the same rounding, so size alone reproduces the block's
// boundaries. ok is false when the rounding overflows.
func EffectiveSize(size uintptr) (n uintptr, ok bool) {
	n = max(size, MinNodeSize)
	return format.AlignUp(n, nodeAlign)
}

// checkLayout enforces the caller contract shared by Allocate and Deallocate.
func checkLayout(size, align uintptr) {
	if size == 0 {
		violation(ErrZeroSize, "size=0 align=%d", align)
	}
	if !format.IsPowerOfTwo(align) {
		violation(ErrBadAlign, "align=%d", align)
	}
}
