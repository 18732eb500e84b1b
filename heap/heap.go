package heap

import (
	"fmt"
	"io"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/heapkit/heap/alloc"
)

// Heap owns an allocation engine and hands out memory from its region.
//
// The zero value is uninitialized. Heap does not serialize callers: each
// method claims the heap for its duration and panics with ErrReentrant if
// the heap is already claimed.
type Heap struct {
	engine   alloc.Engine
	borrowed atomic.Bool
	backing  []byte // region passed to InitBytes, kept reachable
}

// borrow claims the heap. The returned func gives it back and is meant to
// be deferred, so a contract-violation panic from the engine still releases
// the claim.
func (h *Heap) borrow() func() {
	if !h.borrowed.CompareAndSwap(false, true) {
		panic(ErrReentrant)
	}
	return h.unborrow
}

func (h *Heap) unborrow() { h.borrowed.Store(false) }

// Init hands the region [start, start+size) to the heap. See alloc.Engine.Init.
func (h *Heap) Init(start, size uintptr) error {
	defer h.borrow()()
	return h.engine.Init(start, size)
}

// InitBytes manages b as the heap region. b must not be used by the caller
// afterwards; the heap keeps it reachable for its own lifetime.
func (h *Heap) InitBytes(b []byte) error {
	defer h.borrow()()
	if len(b) == 0 {
		return alloc.ErrRegionTooSmall
	}
	if err := h.engine.InitPointer(unsafe.Pointer(unsafe.SliceData(b)), uintptr(len(b))); err != nil {
		return err
	}
	h.backing = b
	return nil
}

// Ready reports whether the heap has been initialized.
func (h *Heap) Ready() bool {
	defer h.borrow()()
	return h.engine.Ready()
}

// Alloc returns a pointer to l.Size bytes aligned to l.Align, or nil when
// the heap cannot satisfy the request.
func (h *Heap) Alloc(l alloc.Layout) unsafe.Pointer {
	defer h.borrow()()
	addr := h.engine.Allocate(l.Size, l.Align)
	if addr == 0 {
		return nil
	}
	return h.engine.Pointer(addr)
}

// Dealloc releases memory obtained from Alloc with the same layout.
func (h *Heap) Dealloc(p unsafe.Pointer, l alloc.Layout) {
	defer h.borrow()()
	if p == nil {
		panic(fmt.Errorf("%w: layout %+v", ErrNilPointer, l))
	}
	h.engine.Deallocate(uintptr(p), l.Size, l.Align)
}

// AllocBytes returns a size-byte slice aligned to align, or nil when the
// heap is exhausted. The slice must be released with FreeBytes, unresliced.
func (h *Heap) AllocBytes(size, align int) []byte {
	if size < 0 || align < 0 {
		panic(fmt.Errorf("%w: size=%d align=%d", ErrNegativeSize, size, align))
	}
	p := h.Alloc(alloc.Layout{Size: uintptr(size), Align: uintptr(align)})
	if p == nil {
		return nil
	}
	return unsafe.Slice((*byte)(p), size)
}

// FreeBytes releases a slice returned by AllocBytes. align must match the
// AllocBytes call.
func (h *Heap) FreeBytes(b []byte, align int) {
	if align < 0 {
		panic(fmt.Errorf("%w: align=%d", ErrNegativeSize, align))
	}
	h.Dealloc(unsafe.Pointer(unsafe.SliceData(b)), alloc.Layout{Size: uintptr(len(b)), Align: uintptr(align)})
}

// Used returns the number of bytes not on the free list.
func (h *Heap) Used() int {
	defer h.borrow()()
	return int(h.engine.Used())
}

// Free returns the number of bytes on the free list.
func (h *Heap) Free() int {
	defer h.borrow()()
	return int(h.engine.Free())
}

// Size returns the number of bytes managed.
func (h *Heap) Size() int {
	defer h.borrow()()
	return int(h.engine.Size())
}

// Stats returns the engine counters.
func (h *Heap) Stats() alloc.Stats {
	defer h.borrow()()
	return h.engine.Stats()
}

// PrintStats writes the engine's statistics report to w.
func (h *Heap) PrintStats(w io.Writer) {
	defer h.borrow()()
	h.engine.PrintStats(w)
}

// Inspect calls fn with the underlying engine while holding the heap.
// fn may read the engine (Walk, Nodes, verify checks) but any call back
// into h panics with ErrReentrant.
func (h *Heap) Inspect(fn func(e *alloc.Engine)) {
	defer h.borrow()()
	fn(&h.engine)
}
