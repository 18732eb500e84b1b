package alloc

import (
	"unsafe"

	"github.com/joshuapare/heapkit/internal/format"
)

// node overlays the first two words of a free range.
//
// The link is the address of the next node, not a Go pointer. The region
// may live outside the Go heap (a mapping, a linker-reserved range), and
// even when it is a Go byte slice the collector never scans it, so a Go
// pointer stored here would be invisible to it anyway.
type node struct {
	size uintptr
	next uintptr
}

// freeList is an address-ordered, singly linked list of free ranges whose
// nodes live inside the free ranges themselves. Nothing but the head and the
// region bounds is stored outside the region.
//
// Invariants between operations:
//   - node starts and sizes are non-zero multiples of MinNodeSize
//   - node addresses strictly increase along the list
//   - no node ends where the next one starts (adjacent nodes are merged)
type freeList struct {
	mem    unsafe.Pointer // first region byte; every node pointer is derived from it
	bottom uintptr        // address of mem
	top    uintptr        // one past the last region byte
	head   uintptr        // first node, 0 when every byte is handed out
}

// nodeAt reinterprets the bytes at addr as a node header.
//
// addr must lie in [bottom, top-MinNodeSize] and be word aligned; every
// caller passes either a list address or an address it just carved out of a
// list range, both of which satisfy that. Deriving the pointer from mem keeps
// the conversion valid for checkptr when the region is a Go allocation.
func (l *freeList) nodeAt(addr uintptr) *node {
	return (*node)(unsafe.Add(l.mem, addr-l.bottom))
}

// seed discards any prior state and tracks the whole region as one node.
func (l *freeList) seed(mem unsafe.Pointer, bottom, size uintptr) {
	l.mem = mem
	l.bottom = bottom
	l.top = bottom + size
	l.head = bottom
	n := l.nodeAt(bottom)
	n.size = size
	n.next = 0
}

// relink points prev (or the head when prev is 0) at addr.
func (l *freeList) relink(prev, addr uintptr) {
	if prev == 0 {
		l.head = addr
		return
	}
	l.nodeAt(prev).next = addr
}

// cursor is a restartable position in the list. prev is 0 while cur is the
// head; cur is 0 once the walk has passed the last node.
type cursor struct {
	prev uintptr
	cur  uintptr
}

func (l *freeList) begin() cursor {
	return cursor{cur: l.head}
}

func (l *freeList) advance(c cursor) cursor {
	return cursor{prev: c.cur, cur: l.nodeAt(c.cur).next}
}

// placement describes how one node is carved up for an allocation.
type placement struct {
	addr  uintptr // aligned address handed to the caller
	lead  uintptr // leading bytes kept as a free node; 0 when none or absorbed
	trail uintptr // trailing bytes kept as a free node; 0 when none or absorbed
}

// fit reports whether the free range [start, start+avail) can hold size
// bytes at an address aligned to align.
//
// Leftovers on either side that are too small to hold a node are not kept:
// they stay attached to the allocation. With granule-aligned inputs no such
// leftover arises, since both sides are multiples of MinNodeSize.
func fit(start, avail, size, align uintptr) (placement, bool) {
	end := start + avail
	aligned, ok := format.AlignUp(start, align)
	if !ok || aligned > end || end-aligned < size {
		return placement{}, false
	}
	p := placement{addr: aligned}
	if pad := aligned - start; pad >= MinNodeSize {
		p.lead = pad
	}
	if rest := end - aligned - size; rest >= MinNodeSize {
		p.trail = rest
	}
	return p, true
}

// firstFit walks from the head and stops at the first node that can hold
// the request. visited counts the nodes inspected.
func (l *freeList) firstFit(size, align uintptr) (c cursor, p placement, visited int, ok bool) {
	for c = l.begin(); c.cur != 0; c = l.advance(c) {
		visited++
		if p, ok = fit(c.cur, l.nodeAt(c.cur).size, size, align); ok {
			return c, p, visited, true
		}
	}
	return c, placement{}, visited, false
}

// take removes the node under c from the list, putting back the leading
// and trailing parts that p keeps.
func (l *freeList) take(c cursor, p placement) {
	n := l.nodeAt(c.cur)
	start, end, link := c.cur, c.cur+n.size, n.next

	if p.trail != 0 {
		t := end - p.trail
		tn := l.nodeAt(t)
		tn.size = p.trail
		tn.next = link
		link = t
	}
	if p.lead != 0 {
		n.size = p.lead
		n.next = link
		link = start
	}
	l.relink(c.prev, link)
}

// releaseResult reports what release did, for statistics.
type releaseResult struct {
	forward  bool // merged with the following node
	backward bool // merged into the preceding node
}

// release returns [addr, addr+size) to the list at its sorted position and
// merges it with physically adjacent neighbors. A range that overlaps a free
// node is a double release (or a stray pointer) and panics.
func (l *freeList) release(addr, size uintptr) (r releaseResult) {
	var prev uintptr
	cur := l.head
	for cur != 0 && cur < addr {
		prev = cur
		cur = l.nodeAt(cur).next
	}

	lower := l.bottom
	if prev != 0 {
		lower = prev + l.nodeAt(prev).size
	}
	upper := l.top
	if cur != 0 {
		upper = cur
	}
	end := addr + size
	if addr < lower || end > upper {
		violation(ErrBadPointer, "range [0x%x, 0x%x) overlaps free memory outside [0x%x, 0x%x)",
			addr, end, lower, upper)
	}

	next := cur
	if cur != 0 && end == cur {
		cn := l.nodeAt(cur)
		size += cn.size
		next = cn.next
		r.forward = true
	}

	if prev != 0 && lower == addr {
		pn := l.nodeAt(prev)
		pn.size += size
		pn.next = next
		r.backward = true
		return r
	}

	n := l.nodeAt(addr)
	n.size = size
	n.next = next
	l.relink(prev, addr)
	return r
}

// walk calls fn for every node in address order until fn returns false.
func (l *freeList) walk(fn func(start, size uintptr) bool) {
	for addr := l.head; addr != 0; {
		n := l.nodeAt(addr)
		next := n.next
		if !fn(addr, n.size) {
			return
		}
		addr = next
	}
}

// sum returns the total number of free bytes.
func (l *freeList) sum() uintptr {
	var total uintptr
	l.walk(func(_, size uintptr) bool {
		total += size
		return true
	})
	return total
}
