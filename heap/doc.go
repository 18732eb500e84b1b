// Package heap provides a single-owner memory heap over one fixed region.
//
// # Overview
//
// Heap wraps the free-list engine from package alloc with a lifecycle and an
// access guard. It is the piece a runtime or a program registers as "the
// allocator": one value, initialized once, serving Alloc and Dealloc calls
// for the rest of the process.
//
// # Opening a Heap
//
//	var h heap.Heap
//	if err := h.InitBytes(make([]byte, 1<<20)); err != nil {
//	    log.Fatal(err)
//	}
//
//	l := alloc.LayoutOf[myStruct]()
//	p := h.Alloc(l)
//	if p == nil {
//	    // out of memory
//	}
//	defer h.Dealloc(p, l)
//
// A region obtained elsewhere (a mapping, a linker-reserved range) is handed
// over with Init(start, size) instead.
//
// # Exclusive Access
//
// The heap never blocks or queues. Every method claims the heap on entry
// and releases it on return; a call that finds the heap already claimed
// panics with ErrReentrant. Callers sharing a Heap between goroutines must
// provide their own mutual exclusion; the guard only turns a missing lock
// into a loud failure instead of a corrupted free list.
//
// # Images
//
// WriteImage dumps the region together with a small header. The free list
// lives inside the region, so the image carries the complete allocator
// state and can be checked offline (heapctl inspect).
package heap
