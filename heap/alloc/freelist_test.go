package alloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Fit_Placement(t *testing.T) {
	m := MinNodeSize
	tests := []struct {
		name         string
		start, avail uintptr
		size, align  uintptr
		want         placement
		ok           bool
	}{
		{"exact", 0x1000, 4 * m, 4 * m, 8, placement{addr: 0x1000}, true},
		{"trail kept", 0x1000, 4 * m, 2 * m, 8, placement{addr: 0x1000, trail: 2 * m}, true},
		{"trail absorbed", 0x1000, 4*m + m/2, 4 * m, 1, placement{addr: 0x1000}, true},
		{"lead kept", 0x1000 + m, 0x200, m, 0x100, placement{addr: 0x1100, lead: 0x100 - m, trail: 0x100}, true},
		{"lead absorbed", 0x1000 + m/2, 4 * m, 2 * m, m, placement{addr: 0x1000 + m, trail: m + m/2}, true},
		{"too small", 0x1000, 2 * m, 3 * m, 8, placement{}, false},
		{"too small after padding", 0x1000 + m, 0x40, m, 0x100, placement{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := fit(tt.start, tt.avail, tt.size, tt.align)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Test_Fit_AlignmentWraps verifies an alignment that would carry the address
// past the top of the address space is a miss, not a wrapped address.
func Test_Fit_AlignmentWraps(t *testing.T) {
	top := uintptr(1) << (unsafe.Sizeof(uintptr(0))*8 - 1)
	start := ^uintptr(0) &^ 0xFF
	_, ok := fit(start, 0x80, 0x10, top)
	assert.False(t, ok)
}

// Test_Coalesce_ThreeBlocksAnyOrder frees three adjacent blocks in every
// order and expects the region to end up as one node.
func Test_Coalesce_ThreeBlocksAnyOrder(t *testing.T) {
	orders := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, order := range orders {
		e := newTestEngine(t, 1024)
		var blocks [3]uintptr
		for i := range blocks {
			blocks[i] = e.Allocate(100, 8)
			require.NotZero(t, blocks[i])
		}
		for _, i := range order {
			e.Deallocate(blocks[i], 100, 8)
		}
		assert.Equal(t, []span{{e.Bottom(), 1024}}, spans(e), "free order %v", order)
	}
}

// Test_Coalesce_BridgesBothNeighbors frees A, C, then B between fixed
// blocks; B must merge backward into A and forward into C.
func Test_Coalesce_BridgesBothNeighbors(t *testing.T) {
	e := newTestEngine(t, 1024)
	eff := effective(t, 100)

	x := e.Allocate(64, 8)
	a := e.Allocate(100, 8)
	b := e.Allocate(100, 8)
	c := e.Allocate(100, 8)
	y := e.Allocate(64, 8)
	require.NotZero(t, x)
	require.NotZero(t, y)
	require.Equal(t, a+eff, b)
	require.Equal(t, b+eff, c)

	e.Deallocate(a, 100, 8)
	e.Deallocate(c, 100, 8)
	assert.Equal(t, 3, e.Nodes(), "A and C are not adjacent")

	e.Deallocate(b, 100, 8)
	got := spans(e)
	require.Len(t, got, 2)
	assert.Equal(t, span{a, 3 * eff}, got[0], "A, B and C form one node")

	s := e.Stats()
	assert.Equal(t, 1, s.CoalesceForward)
	assert.Equal(t, 1, s.CoalesceBackward)
}

// Test_Coalesce_RoundTrip verifies alloc+free of one block restores the free
// total while an unrelated block stays live.
func Test_Coalesce_RoundTrip(t *testing.T) {
	e := newTestEngine(t, 4096)
	keep := e.Allocate(200, 16)
	require.NotZero(t, keep)

	before := spans(e)
	for _, size := range []uintptr{1, 17, 64, 1000, 3000} {
		addr := e.Allocate(size, 8)
		require.NotZero(t, addr, "size=%d", size)
		e.Deallocate(addr, size, 8)
		assert.Equal(t, before, spans(e), "size=%d", size)
	}
}
