package heap

import (
	"bytes"
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/verify"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/region"
)

func newTestHeap(t *testing.T, size int) *Heap {
	t.Helper()
	h := &Heap{}
	require.NoError(t, h.InitBytes(make([]byte, size)))
	return h
}

// recoverError runs fn and returns the error it panicked with.
func recoverError(t *testing.T, fn func()) (err error) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		var ok bool
		err, ok = r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
	}()
	fn()
	return nil
}

func TestHeap_ZeroValueIsUninitialized(t *testing.T) {
	var h Heap
	assert.False(t, h.Ready())

	err := recoverError(t, func() { h.Alloc(alloc.Layout{Size: 8, Align: 8}) })
	require.ErrorIs(t, err, alloc.ErrUninitialized)

	// The failed call must not leave the heap claimed.
	err = recoverError(t, func() { h.Used() })
	require.ErrorIs(t, err, alloc.ErrUninitialized)
}

func TestHeap_InitBytes(t *testing.T) {
	h := newTestHeap(t, 4096)
	assert.True(t, h.Ready())
	assert.LessOrEqual(t, h.Size(), 4096)
	assert.Equal(t, h.Size(), h.Free())
	assert.Zero(t, h.Used())

	var empty Heap
	require.ErrorIs(t, empty.InitBytes(nil), alloc.ErrRegionTooSmall)

	err := recoverError(t, func() { _ = h.InitBytes(make([]byte, 4096)) })
	require.ErrorIs(t, err, alloc.ErrAlreadyInitialized)
}

func TestHeap_AllocDealloc(t *testing.T) {
	h := newTestHeap(t, 4096)
	free := h.Free()

	type pair struct{ a, b uint64 }
	l := alloc.LayoutOf[pair]()
	p := h.Alloc(l)
	require.NotNil(t, p)
	assert.Zero(t, uintptr(p)%l.Align)

	v := (*pair)(p)
	v.a, v.b = 1, 2
	assert.Equal(t, uint64(3), v.a+v.b)
	assert.Less(t, h.Free(), free)

	h.Dealloc(p, l)
	assert.Equal(t, free, h.Free())
	assert.Equal(t, h.Size(), h.Used()+h.Free())
}

func TestHeap_Exhaustion(t *testing.T) {
	h := newTestHeap(t, 1024)
	assert.Nil(t, h.Alloc(alloc.Layout{Size: 4096, Align: 8}))
	assert.Nil(t, h.AllocBytes(h.Free()+1, 1))
	assert.Equal(t, 2, h.Stats().AllocFailures)
}

func TestHeap_AllocBytes(t *testing.T) {
	h := newTestHeap(t, 4096)

	b := h.AllocBytes(100, 64)
	require.Len(t, b, 100)
	assert.Zero(t, uintptr(unsafe.Pointer(unsafe.SliceData(b)))%64)
	copy(b, "hello")
	assert.Equal(t, "hello", string(b[:5]))

	h.FreeBytes(b, 64)
	assert.Equal(t, h.Size(), h.Free())

	err := recoverError(t, func() { h.AllocBytes(-1, 8) })
	require.ErrorIs(t, err, ErrNegativeSize)
}

func TestHeap_DeallocNil(t *testing.T) {
	h := newTestHeap(t, 1024)
	err := recoverError(t, func() { h.Dealloc(nil, alloc.Layout{Size: 8, Align: 8}) })
	require.ErrorIs(t, err, ErrNilPointer)
}

// TestHeap_ReentrantCallPanics enters the heap from inside an Inspect
// callback; the nested call must fail immediately.
func TestHeap_ReentrantCallPanics(t *testing.T) {
	h := newTestHeap(t, 1024)

	err := recoverError(t, func() {
		h.Inspect(func(e *alloc.Engine) {
			h.Alloc(alloc.Layout{Size: 8, Align: 8})
		})
	})
	require.ErrorIs(t, err, ErrReentrant)
	assert.EqualError(t, err, "heap: already borrowed")

	// The guard is released once the outer call unwinds.
	p := h.Alloc(alloc.Layout{Size: 8, Align: 8})
	require.NotNil(t, p)
	h.Dealloc(p, alloc.Layout{Size: 8, Align: 8})
}

func TestHeap_ReentrantFromWalk(t *testing.T) {
	h := newTestHeap(t, 1024)

	var nested error
	h.Inspect(func(e *alloc.Engine) {
		e.Walk(func(_, _ uintptr) bool {
			defer func() {
				if r := recover(); r != nil {
					nested, _ = r.(error)
				}
			}()
			_ = h.Free()
			return false
		})
	})
	require.True(t, errors.Is(nested, ErrReentrant), "got %v", nested)
}

func TestHeap_Inspect_Verify(t *testing.T) {
	h := newTestHeap(t, 8192)

	var live [][]byte
	for i := 1; i <= 20; i++ {
		b := h.AllocBytes(i*13, 8)
		require.NotNil(t, b)
		live = append(live, b)
	}
	for i := 0; i < len(live); i += 3 {
		h.FreeBytes(live[i], 8)
	}

	h.Inspect(func(e *alloc.Engine) {
		require.NoError(t, verify.FreeList(e))
	})
}

func TestHeap_PrintStats(t *testing.T) {
	h := newTestHeap(t, 1024)
	b := h.AllocBytes(64, 8)
	require.NotNil(t, b)

	var out bytes.Buffer
	h.PrintStats(&out)
	assert.Contains(t, out.String(), "Alloc calls:        1 (failed: 0)")
}

func TestHeap_WriteImage(t *testing.T) {
	h := newTestHeap(t, 2048)
	a := h.AllocBytes(100, 8)
	_ = h.AllocBytes(200, 8)
	h.FreeBytes(a, 8)

	var img bytes.Buffer
	require.NoError(t, h.WriteImage(&img))
	require.Equal(t, format.ImageHeaderSize+h.Size(), img.Len())

	hdr, nodes, err := format.ImageNodes(img.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint64(h.Size()), hdr.Size)
	assert.Equal(t, uint16(format.WordSize), hdr.WordSize)
	require.Len(t, nodes, 2)
	assert.Equal(t, uint64(uintptr(unsafe.Pointer(unsafe.SliceData(a)))), nodes[0].Addr)

	var free uint64
	for _, n := range nodes {
		free += n.Size
	}
	assert.Equal(t, uint64(h.Free()), free)
	require.NoError(t, verify.Image(img.Bytes()))
}

// TestHeap_InitRawAddress hands the heap a region by address, the way a
// linker-reserved range or a foreign mapping is registered.
func TestHeap_InitRawAddress(t *testing.T) {
	r, err := region.Anonymous(4096)
	require.NoError(t, err)
	defer r.Close()

	var h Heap
	require.NoError(t, h.Init(r.Addr(), uintptr(r.Len())))
	require.True(t, h.Ready())
	require.Equal(t, 4096, h.Size())

	l := alloc.Layout{Size: 100, Align: 8}
	a := h.Alloc(l)
	b := h.Alloc(l)
	c := h.Alloc(l)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)
	assert.Equal(t, r.Pointer(), a)

	h.Dealloc(b, l)
	h.Dealloc(a, l)
	h.Dealloc(c, l)

	assert.Equal(t, h.Size(), h.Free())
	assert.Zero(t, h.Used())
	h.Inspect(func(e *alloc.Engine) {
		assert.Equal(t, 1, e.Nodes())
		require.NoError(t, verify.FreeList(e))
	})
}
