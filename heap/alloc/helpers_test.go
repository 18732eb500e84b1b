package alloc

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/format"
)

// span is a free range as reported by Walk.
type span struct {
	start uintptr
	size  uintptr
}

// newTestEngine returns a ready engine over a fresh size-byte buffer whose
// start is 64-byte aligned. size should be a multiple of 64.
func newTestEngine(t testing.TB, size int) *Engine {
	t.Helper()
	return newAlignedEngine(t, size, 64)
}

// newAlignedEngine is newTestEngine with the region start aligned to base.
func newAlignedEngine(t testing.TB, size int, base uintptr) *Engine {
	t.Helper()
	mem, off := alignedBuffer(size, base)
	e := &Engine{}
	require.NoError(t, e.InitPointer(unsafe.Pointer(&mem[off]), uintptr(size)))
	t.Cleanup(func() { runtime.KeepAlive(mem) })
	return e
}

// alignedBuffer returns a buffer holding size bytes starting at mem[off],
// with &mem[off] aligned to base.
func alignedBuffer(size int, base uintptr) (mem []byte, off int) {
	mem = make([]byte, size+int(base))
	start := uintptr(unsafe.Pointer(&mem[0]))
	aligned, _ := format.AlignUp(start, base)
	return mem, int(aligned - start)
}

// spans snapshots the free list.
func spans(e *Engine) []span {
	var out []span
	e.Walk(func(start, size uintptr) bool {
		out = append(out, span{start, size})
		return true
	})
	return out
}

// effective is EffectiveSize for sizes known not to overflow.
func effective(t testing.TB, size uintptr) uintptr {
	t.Helper()
	n, ok := EffectiveSize(size)
	require.True(t, ok)
	return n
}

// requireViolation asserts fn panics with an error wrapping target.
func requireViolation(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic wrapping %v", target)
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.ErrorIs(t, err, target)
	}()
	fn()
}

func unsafeAt(mem []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&mem[off])
}
