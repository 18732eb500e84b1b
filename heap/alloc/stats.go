package alloc

import (
	"fmt"
	"io"
)

// Stats holds allocator counters. They live in the Engine struct, not in
// the region.
type Stats struct {
	AllocCalls       int    // Total Allocate() calls
	AllocFailures    int    // Allocate() calls that returned 0
	FreeCalls        int    // Total Deallocate() calls
	BytesAllocated   uint64 // Bytes removed from the free list, slack included
	BytesFreed       uint64 // Bytes returned to the free list
	AbsorbedBytes    uint64 // Bytes handed out beyond the requested sizes (rounding and slack)
	SplitCount       int    // Allocations that left a leading or trailing node behind
	CoalesceForward  int    // Releases merged with the following node
	CoalesceBackward int    // Releases merged into the preceding node
	NodesVisited     uint64 // Nodes inspected by first-fit searches
}

// Stats returns a copy of the allocator counters.
func (e *Engine) Stats() Stats {
	e.mustBeReady()
	return e.stats
}

// PrintStats writes a human-readable report of the counters and the current
// free-list shape to w.
func (e *Engine) PrintStats(w io.Writer) {
	s := e.Stats()
	free := e.Free()
	nodes := e.Nodes()
	largest := e.LargestFree()

	fmt.Fprintf(w, "\n=== ALLOCATOR STATISTICS ===\n")
	fmt.Fprintf(w, "Region:             [0x%X, 0x%X) %d bytes\n", e.Bottom(), e.Top(), e.Size())
	fmt.Fprintf(w, "Alloc calls:        %d (failed: %d)\n", s.AllocCalls, s.AllocFailures)
	fmt.Fprintf(w, "Free calls:         %d\n", s.FreeCalls)
	fmt.Fprintf(w, "Bytes allocated:    %d\n", s.BytesAllocated)
	fmt.Fprintf(w, "Bytes freed:        %d\n", s.BytesFreed)
	fmt.Fprintf(w, "Absorbed bytes:     %d\n", s.AbsorbedBytes)
	fmt.Fprintf(w, "Splits:             %d\n", s.SplitCount)
	fmt.Fprintf(w, "Coalesce fwd:       %d\n", s.CoalesceForward)
	fmt.Fprintf(w, "Coalesce back:      %d\n", s.CoalesceBackward)
	if s.AllocCalls > 0 {
		fmt.Fprintf(w, "Avg nodes/search:   %.2f\n", float64(s.NodesVisited)/float64(s.AllocCalls))
	}

	fmt.Fprintf(w, "\nFragmentation:\n")
	fmt.Fprintf(w, "  Used bytes:       %d\n", e.Size()-free)
	fmt.Fprintf(w, "  Free bytes:       %d\n", free)
	fmt.Fprintf(w, "  Free nodes:       %d\n", nodes)
	fmt.Fprintf(w, "  Largest node:     %d\n", largest)
	if free > 0 {
		// Share of free memory unusable by a request the size of the largest node.
		fmt.Fprintf(w, "  External frag:    %.1f%%\n", 100.0*(1-float64(largest)/float64(free)))
	}
	fmt.Fprintf(w, "============================\n\n")
}
