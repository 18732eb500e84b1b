package alloc

import (
	"os"
	"unsafe"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/logger"
)

// Debug flag - set to true to enable per-operation tracing (compile-time toggle).
const debugAlloc = false

// Runtime flag for allocation logging - controlled by HEAP_LOG_ALLOC env var.
var logAlloc = os.Getenv("HEAP_LOG_ALLOC") != ""

// Engine is a first-fit free-list allocator over one fixed region.
//
// The zero value is an uninitialized engine; call Init exactly once before
// any other method. Engine performs no locking and keeps no metadata outside
// the region beyond its own fixed-size fields. Callers must ensure at most
// one goroutine is inside an Engine method at a time (see package heap for
// a guarded wrapper).
type Engine struct {
	list  freeList
	ready bool
	stats Stats
}

// Init hands the region [start, start+size) to the engine.
//
// start is rounded up and size rounded down to a multiple of MinNodeSize;
// the rounded size is what Size reports. Init returns ErrNilRegion for a
// zero start and ErrRegionTooSmall when fewer than MinNodeSize bytes remain.
// Calling Init on a ready engine is a contract violation and panics.
//
// The region must stay valid and exclusively owned by the engine for the
// engine's lifetime. When start refers to a Go allocation, use InitPointer
// (or heap.Heap.InitBytes) instead so the region stays reachable.
func (e *Engine) Init(start, size uintptr) error {
	if e.ready {
		violation(ErrAlreadyInitialized, "region already at 0x%x", e.list.bottom)
	}
	if start == 0 {
		return ErrNilRegion
	}
	// go vet reports "possible misuse of unsafe.Pointer" here. The
	// conversion is the point of this entry: start is a raw address whose
	// memory the caller owns, typically outside the Go heap.
	return e.InitPointer(unsafe.Pointer(start), size)
}

// InitPointer is Init for a region given as a pointer.
func (e *Engine) InitPointer(mem unsafe.Pointer, size uintptr) error {
	if e.ready {
		violation(ErrAlreadyInitialized, "region already at 0x%x", e.list.bottom)
	}
	start := uintptr(mem)
	if start == 0 {
		return ErrNilRegion
	}
	bottom, ok := format.AlignUp(start, nodeAlign)
	if !ok {
		return ErrRegionTooSmall
	}
	pad := bottom - start
	if size <= pad {
		return ErrRegionTooSmall
	}
	size = format.AlignDown(size-pad, nodeAlign)
	if size < MinNodeSize {
		return ErrRegionTooSmall
	}
	if _, ok := buf.AddAddr(bottom, size); !ok {
		return ErrRegionTooSmall
	}

	e.list.seed(unsafe.Add(mem, pad), bottom, size)
	e.stats = Stats{}
	e.ready = true
	if logAlloc {
		logger.Info("heap initialized", "bottom", bottom, "size", size)
	}
	return nil
}

func (e *Engine) mustBeReady() {
	if !e.ready {
		violation(ErrUninitialized, "engine has no region")
	}
}

// Allocate returns the address of a block of at least size bytes aligned to
// align, or 0 when no free range can satisfy the request.
//
// size must be non-zero and align a power of two; anything else is a
// contract violation and panics. Exhaustion never panics.
func (e *Engine) Allocate(size, align uintptr) uintptr {
	e.mustBeReady()
	checkLayout(size, align)
	e.stats.AllocCalls++

	need, ok := EffectiveSize(size)
	if !ok || need > e.list.top-e.list.bottom {
		e.allocFailed(size, align)
		return 0
	}

	c, p, visited, found := e.list.firstFit(need, align)
	e.stats.NodesVisited += uint64(visited)
	if !found {
		e.allocFailed(need, align)
		return 0
	}

	avail := e.list.nodeAt(c.cur).size
	e.list.take(c, p)

	// Bytes that left the free list: the node minus whatever it kept.
	taken := avail - p.lead - p.trail
	e.stats.BytesAllocated += uint64(taken)
	e.stats.AbsorbedBytes += uint64(taken - size)
	if p.lead != 0 || p.trail != 0 {
		e.stats.SplitCount++
	}

	if debugAlloc {
		logger.Debug("alloc",
			"need", need, "align", align, "addr", p.addr,
			"node", c.cur, "lead", p.lead, "trail", p.trail, "visited", visited)
	}
	return p.addr
}

func (e *Engine) allocFailed(need, align uintptr) {
	e.stats.AllocFailures++
	if logAlloc {
		logger.Info("alloc failed",
			"need", need, "align", align,
			"free", e.list.sum(), "largest", e.LargestFree(), "nodes", e.Nodes())
	}
}

// Deallocate returns a block obtained from Allocate.
//
// ptr, size and align must be exactly what was passed to and returned by the
// matching Allocate call, and the block must not have been released already.
// The engine does not track allocations; the only checks are the cheap ones
// the list walk provides for free (alignment, region bounds, overlap with a
// free range), and they panic.
//
// The block released is [ptr, ptr+EffectiveSize(size)), exactly the range
// Allocate removed from the free list.
func (e *Engine) Deallocate(ptr, size, align uintptr) {
	e.mustBeReady()
	checkLayout(size, align)
	e.stats.FreeCalls++

	need, ok := EffectiveSize(size)
	if !ok {
		violation(ErrBadPointer, "size %d overflows", size)
	}
	end, ok := buf.AddAddr(ptr, need)
	if ptr%align != 0 || ptr%nodeAlign != 0 || ptr < e.list.bottom || !ok || end > e.list.top {
		violation(ErrBadPointer, "block [0x%x, +%d) align %d not in region [0x%x, 0x%x)",
			ptr, need, align, e.list.bottom, e.list.top)
	}

	r := e.list.release(ptr, need)
	e.stats.BytesFreed += uint64(need)
	if r.forward {
		e.stats.CoalesceForward++
	}
	if r.backward {
		e.stats.CoalesceBackward++
	}

	if debugAlloc {
		logger.Debug("free",
			"addr", ptr, "size", need,
			"forward", r.forward, "backward", r.backward)
	}
}

// Pointer converts an address returned by Allocate into a pointer derived
// from the region base.
func (e *Engine) Pointer(addr uintptr) unsafe.Pointer {
	e.mustBeReady()
	return unsafe.Add(e.list.mem, addr-e.list.bottom)
}

// Free returns the number of bytes currently on the free list.
// It walks the whole list; no running total is kept.
func (e *Engine) Free() uintptr {
	e.mustBeReady()
	return e.list.sum()
}

// Used returns Size() - Free().
func (e *Engine) Used() uintptr {
	e.mustBeReady()
	return e.Size() - e.list.sum()
}

// Size returns the number of bytes managed after alignment rounding.
func (e *Engine) Size() uintptr {
	e.mustBeReady()
	return e.list.top - e.list.bottom
}

// Bottom returns the lowest managed address.
func (e *Engine) Bottom() uintptr {
	e.mustBeReady()
	return e.list.bottom
}

// Top returns one past the highest managed address.
func (e *Engine) Top() uintptr {
	e.mustBeReady()
	return e.list.top
}

// Head returns the address of the first free node, or 0 when nothing is free.
func (e *Engine) Head() uintptr {
	e.mustBeReady()
	return e.list.head
}

// Ready reports whether Init has succeeded.
func (e *Engine) Ready() bool {
	return e.ready
}

// Walk calls fn for every free range in address order until fn returns
// false. fn must not call back into the engine.
func (e *Engine) Walk(fn func(start, size uintptr) bool) {
	e.mustBeReady()
	e.list.walk(fn)
}

// Nodes returns the number of free ranges.
func (e *Engine) Nodes() int {
	e.mustBeReady()
	n := 0
	e.list.walk(func(_, _ uintptr) bool {
		n++
		return true
	})
	return n
}

// LargestFree returns the size of the largest free range. A request with
// word alignment succeeds iff its effective size is at most this value.
func (e *Engine) LargestFree() uintptr {
	e.mustBeReady()
	var largest uintptr
	e.list.walk(func(_, size uintptr) bool {
		largest = max(largest, size)
		return true
	})
	return largest
}
