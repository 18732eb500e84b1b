// Package alloc implements a first-fit free-list allocator over a single
// fixed memory region.
//
// # Overview
//
// The engine manages one contiguous byte range handed to it once by Init.
// Free memory is tracked by an intrusive, address-ordered singly linked list:
// each free range begins with a two-word node (size, next) stored in the free
// bytes themselves. No other memory is ever allocated for bookkeeping, which
// makes the engine usable where no other allocator exists yet: firmware,
// kernels, or a pre-reserved mapping.
//
// # Usage Example
//
//	var e alloc.Engine
//	if err := e.Init(start, size); err != nil {
//	    return err // region too small
//	}
//
//	addr := e.Allocate(64, 8)
//	if addr == 0 {
//	    // out of memory: the caller decides what to do
//	}
//
//	// Later, release with the same size and alignment
//	e.Deallocate(addr, 64, 8)
//
// # Allocation
//
// Allocate walks the list from the lowest address and takes the first node
// that can hold the request after aligning its start (first-fit). The node is
// cut into up to three parts:
//
//	[ lead ][ allocation ][ trail ]
//
// The lead and trail become free nodes when each is at least MinNodeSize.
// Smaller leftovers cannot hold a node, so they would stay attached to the
// allocation as slack rather than becoming holes nobody can track.
//
// In practice no slack is produced: the region, every node and every request
// are rounded to multiples of MinNodeSize (two words), which makes every
// leftover either empty or a valid node.
//
// # Deallocation
//
// Deallocate rebuilds the block's range from the pointer and the rounded
// size, inserts it at its sorted position, and merges with the preceding and
// following nodes when they touch. Freeing three adjacent blocks in any
// order leaves one node.
//
// # Accounting
//
// Free sums the node sizes on every call; Used is Size minus Free. Both walk
// the list.
//
// # Errors
//
// Running out of memory is not an error: Allocate returns 0. Broken caller
// contracts (use before Init, a second Init, zero size, alignment that is not
// a power of two, releasing memory that is free or outside the region) panic
// with an error wrapping one of the Err* values.
//
// # Thread Safety
//
// Engine is not thread-safe. Callers must serialize access externally or
// use package heap, whose Heap wrapper fails fast on reentrant use.
//
// # Related Packages
//
//   - github.com/joshuapare/heapkit/heap: guarded wrapper with pointer API
//   - github.com/joshuapare/heapkit/heap/verify: free-list invariant checks
package alloc
