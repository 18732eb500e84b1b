package trace

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/testutil"
)

func newHeap(t *testing.T, size int) *heap.Heap {
	t.Helper()
	return testutil.SetupTestHeap(t, size)
}

func mustParse(t *testing.T, script string) *Trace {
	t.Helper()
	tr, err := Parse(strings.NewReader(script))
	require.NoError(t, err)
	return tr
}

func TestReplay_FullCoalesce(t *testing.T) {
	h := newHeap(t, 1024)
	var stats bytes.Buffer

	res, err := Replay(h, mustParse(t, sample), Options{VerifyEach: true, Stats: &stats})
	require.NoError(t, err)

	assert.Equal(t, 8, res.Ops)
	assert.Equal(t, 3, res.Allocs)
	assert.Equal(t, 3, res.Frees)
	assert.Equal(t, 1, res.Checks)
	assert.Zero(t, res.Failures)
	assert.Zero(t, res.Used)
	assert.Equal(t, res.Size, res.Free)
	assert.Greater(t, res.PeakUsed, 300)
	assert.Empty(t, res.Live)
	assert.Contains(t, stats.String(), "=== ALLOCATOR STATISTICS ===")
}

func TestReplay_CountsFailures(t *testing.T) {
	h := newHeap(t, 1024)
	res, err := Replay(h, mustParse(t, "alloc big 4096\nalloc small 32\ncheck\n"), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, 1, res.Allocs)
	require.Len(t, res.Live, 1)
	assert.Equal(t, "small", res.Live[0].Name)
	assert.Equal(t, uintptr(32), res.Live[0].Size)
}

func TestReplay_ScriptErrors(t *testing.T) {
	h := newHeap(t, 1024)
	_, err := Replay(h, mustParse(t, "alloc a 16\nalloc a 16\n"), Options{})
	require.ErrorIs(t, err, ErrDuplicateName)
	assert.Contains(t, err.Error(), "line 2")

	h = newHeap(t, 1024)
	_, err = Replay(h, mustParse(t, "free ghost\n"), Options{})
	require.ErrorIs(t, err, ErrUnknownName)
}

func TestReplay_LiveSortedByAddress(t *testing.T) {
	h := newHeap(t, 4096)
	res, err := Replay(h, mustParse(t, "alloc z 64\nalloc y 64\nalloc x 64\nfree y\nalloc w 32\n"), Options{})
	require.NoError(t, err)

	require.Len(t, res.Live, 3)
	assert.Equal(t, []string{"z", "w", "x"}, []string{res.Live[0].Name, res.Live[1].Name, res.Live[2].Name},
		"w reuses y's hole between z and x")
}

// TestReplay_TagsNeverZero checks that fill tags skip zero after wrapping,
// so a block zeroed by a stray write is still reported as clobbered.
func TestReplay_TagsNeverZero(t *testing.T) {
	var script strings.Builder
	for i := range 300 {
		fmt.Fprintf(&script, "alloc b%d 16\n", i)
	}
	h := newHeap(t, 64<<10)
	res, err := Replay(h, mustParse(t, script.String()), Options{})
	require.NoError(t, err)
	require.Len(t, res.Live, 300)

	h.Inspect(func(e *alloc.Engine) {
		for _, b := range res.Live {
			first := *(*byte)(e.Pointer(b.Addr))
			assert.NotZero(t, first, "block %s carries tag 0", b.Name)
		}
	})
}
