// Package verify provides validation functions for free-list allocator state.
// These helpers are used in tests and by heapctl to ensure heap invariants
// are maintained.
package verify

import (
	"fmt"
	"slices"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/format"
)

// ValidationError describes one broken invariant.
type ValidationError struct {
	Type    string
	Message string
	Addr    uintptr // offending address, 0 when not tied to one
	Details map[string]interface{}
}

func (e *ValidationError) Error() string {
	if e.Addr != 0 {
		return fmt.Sprintf("%s at 0x%X: %s", e.Type, e.Addr, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Span is a free range as seen from outside the engine.
type Span struct {
	Start uintptr
	Size  uintptr
}

// End returns one past the last byte of the span.
func (s Span) End() uintptr { return s.Start + s.Size }

// Block is an outstanding allocation as the caller recorded it.
type Block struct {
	Addr  uintptr
	Size  uintptr
	Align uintptr
}

// AllInvariants validates the free list and, when live is non-nil, that free
// nodes and live blocks tile the region.
// Returns the first error encountered, or nil if all checks pass.
func AllInvariants(e *alloc.Engine, live []Block) error {
	if err := FreeList(e); err != nil {
		return err
	}
	if live == nil {
		return nil
	}
	return Partition(e, live)
}

// Collect returns the engine's free ranges in list order.
func Collect(e *alloc.Engine) []Span {
	var spans []Span
	e.Walk(func(start, size uintptr) bool {
		spans = append(spans, Span{Start: start, Size: size})
		return true
	})
	return spans
}

// FreeList validates the engine's free list and its accounting.
func FreeList(e *alloc.Engine) error {
	if !e.Ready() {
		return &ValidationError{Type: "FreeList", Message: "engine not initialized"}
	}

	// Bound the walk so a corrupted link cannot spin forever.
	limit := int(e.Size()/alloc.MinNodeSize) + 1
	var spans []Span
	cycle := false
	e.Walk(func(start, size uintptr) bool {
		if len(spans) >= limit {
			cycle = true
			return false
		}
		spans = append(spans, Span{Start: start, Size: size})
		return true
	})
	if cycle {
		return &ValidationError{
			Type:    "FreeList",
			Message: fmt.Sprintf("more than %d nodes (cycle?)", limit),
		}
	}

	if err := Spans(spans, e.Bottom(), e.Top(), alloc.MinNodeSize); err != nil {
		return err
	}

	var free uintptr
	for _, s := range spans {
		free += s.Size
	}
	if e.Free() != free || e.Used()+e.Free() != e.Size() {
		return &ValidationError{
			Type:    "Accounting",
			Message: fmt.Sprintf("used %d + free %d != size %d (walk found %d free)", e.Used(), e.Free(), e.Size(), free),
		}
	}
	if head := e.Head(); len(spans) == 0 && head != 0 || len(spans) > 0 && head != spans[0].Start {
		return &ValidationError{Type: "FreeList", Message: "head does not match first node", Addr: head}
	}
	return nil
}

// Spans validates a free list given as spans in list order against the
// region [bottom, top). Node starts and sizes must be multiples of
// granule, sizes at least MinNodeSize; nodes must lie inside the region,
// strictly ascending, and never touch each other.
func Spans(spans []Span, bottom, top, granule uintptr) error {
	var prevEnd uintptr
	for i, s := range spans {
		if s.Start%granule != 0 || s.Size%granule != 0 {
			return &ValidationError{
				Type:    "Node",
				Message: fmt.Sprintf("node %d (size %d) not aligned to %d", i, s.Size, granule),
				Addr:    s.Start,
			}
		}
		if s.Size < granule {
			return &ValidationError{
				Type:    "Node",
				Message: fmt.Sprintf("node %d size %d below minimum %d", i, s.Size, granule),
				Addr:    s.Start,
			}
		}
		if s.Start < bottom || s.End() > top || s.End() < s.Start {
			return &ValidationError{
				Type:    "Node",
				Message: fmt.Sprintf("node %d [0x%X, 0x%X) outside region [0x%X, 0x%X)", i, s.Start, s.End(), bottom, top),
				Addr:    s.Start,
			}
		}
		if i > 0 {
			switch {
			case s.Start < prevEnd:
				return &ValidationError{
					Type:    "Order",
					Message: fmt.Sprintf("node %d overlaps or precedes previous node ending at 0x%X", i, prevEnd),
					Addr:    s.Start,
				}
			case s.Start == prevEnd:
				return &ValidationError{
					Type:    "Coalesce",
					Message: fmt.Sprintf("node %d touches previous node and was not merged", i),
					Addr:    s.Start,
				}
			}
		}
		prevEnd = s.End()
	}
	return nil
}

// extent is a region piece during the partition check.
type extent struct {
	start, end uintptr
	live       bool
}

// Partition validates that the free list and live blocks together cover the
// region exactly, with no overlaps and no gaps. Live blocks span their
// effective size, the range Allocate removed from the free list.
func Partition(e *alloc.Engine, live []Block) error {
	extents := make([]extent, 0, len(live)+e.Nodes())
	for _, s := range Collect(e) {
		extents = append(extents, extent{start: s.Start, end: s.End()})
	}
	for _, b := range live {
		if b.Align != 0 && b.Addr%b.Align != 0 {
			return &ValidationError{
				Type:    "Block",
				Message: fmt.Sprintf("block not aligned to %d", b.Align),
				Addr:    b.Addr,
			}
		}
		n, ok := alloc.EffectiveSize(b.Size)
		if !ok {
			return &ValidationError{Type: "Block", Message: "size overflows", Addr: b.Addr}
		}
		extents = append(extents, extent{start: b.Addr, end: b.Addr + n, live: true})
	}
	slices.SortFunc(extents, func(a, b extent) int {
		switch {
		case a.start < b.start:
			return -1
		case a.start > b.start:
			return 1
		}
		return 0
	})

	cursor := e.Bottom()
	for i, x := range extents {
		if x.start != cursor {
			msg := fmt.Sprintf("%d bytes at 0x%X are neither free nor allocated", x.start-cursor, cursor)
			if x.start < cursor {
				msg = fmt.Sprintf("extent [0x%X, 0x%X) overlaps previous ending at 0x%X", x.start, x.end, cursor)
			}
			return &ValidationError{
				Type:    "Partition",
				Message: msg,
				Addr:    x.start,
				Details: map[string]interface{}{"index": i, "live": x.live},
			}
		}
		cursor = x.end
	}
	if cursor != e.Top() {
		return &ValidationError{
			Type:    "Partition",
			Message: fmt.Sprintf("coverage ends at 0x%X, region top is 0x%X", cursor, e.Top()),
			Addr:    cursor,
		}
	}
	return nil
}

// Image validates the free list stored in a heap image. The image's own
// word size sets the granule, so images from other hosts can be checked.
func Image(data []byte) error {
	h, nodes, err := format.ImageNodes(data)
	if err != nil {
		return &ValidationError{Type: "Image", Message: err.Error()}
	}
	spans := make([]Span, len(nodes))
	for i, n := range nodes {
		spans[i] = Span{Start: uintptr(n.Addr), Size: uintptr(n.Size)}
	}
	return Spans(spans, uintptr(h.Base), uintptr(h.Base+h.Size), 2*uintptr(h.WordSize))
}
