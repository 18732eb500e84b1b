package trace

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"unsafe"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/verify"
	"github.com/joshuapare/heapkit/internal/logger"
)

var (
	// ErrDuplicateName indicates an alloc of a name that is still live.
	ErrDuplicateName = errors.New("trace: name already allocated")

	// ErrUnknownName indicates a free of a name that is not live.
	ErrUnknownName = errors.New("trace: name not allocated")

	// ErrClobbered indicates a block's contents changed while it was live,
	// meaning some other allocation overlapped it.
	ErrClobbered = errors.New("trace: block contents clobbered")
)

// Options control a replay.
type Options struct {
	// VerifyEach runs the full invariant check after every operation, not
	// only on "check" lines.
	VerifyEach bool

	// Stats receives the statistics report for "stats" lines. Nil skips them.
	Stats io.Writer
}

// Block is a live allocation at the end of a replay.
type Block struct {
	Name  string  `json:"name"`
	Addr  uintptr `json:"addr"`
	Size  uintptr `json:"size"`
	Align uintptr `json:"align"`
}

// Result summarizes a replay.
type Result struct {
	Ops      int     `json:"ops"`
	Allocs   int     `json:"allocs"`
	Failures int     `json:"failures"`
	Frees    int     `json:"frees"`
	Checks   int     `json:"checks"`
	PeakUsed int     `json:"peak_used"`
	Used     int     `json:"used"`
	Free     int     `json:"free"`
	Size     int     `json:"size"`
	Live     []Block `json:"live"`
}

type liveBlock struct {
	Block
	p   unsafe.Pointer
	tag byte
}

// Replay runs t against h, which must be initialized. Allocation failures
// are counted, not returned; script errors (double alloc of a name, free of
// an unknown name), clobbered blocks and failed checks stop the replay.
func Replay(h *heap.Heap, t *Trace, opts Options) (Result, error) {
	var res Result
	live := make(map[string]*liveBlock)
	var seq byte

	for _, op := range t.Ops {
		res.Ops++
		switch op.Kind {
		case OpAlloc:
			if _, ok := live[op.Name]; ok {
				return res, fmt.Errorf("line %d: %w: %s", op.Line, ErrDuplicateName, op.Name)
			}
			l := alloc.Layout{Size: op.Size, Align: op.Align}
			p := h.Alloc(l)
			if p == nil {
				res.Failures++
				logger.Info("trace alloc failed", "line", op.Line, "name", op.Name, "size", op.Size, "align", op.Align)
				break
			}
			res.Allocs++
			// Tag 0 would match fresh zeroed memory; skip it on wrap.
			if seq++; seq == 0 {
				seq = 1
			}
			b := &liveBlock{Block: Block{Name: op.Name, Addr: uintptr(p), Size: op.Size, Align: op.Align}, p: p, tag: seq}
			fill(b)
			live[op.Name] = b
			res.PeakUsed = max(res.PeakUsed, h.Used())

		case OpFree:
			b, ok := live[op.Name]
			if !ok {
				return res, fmt.Errorf("line %d: %w: %s", op.Line, ErrUnknownName, op.Name)
			}
			if !intact(b) {
				return res, fmt.Errorf("line %d: %w: %s at 0x%X", op.Line, ErrClobbered, b.Name, b.Addr)
			}
			h.Dealloc(b.p, alloc.Layout{Size: b.Size, Align: b.Align})
			delete(live, op.Name)
			res.Frees++

		case OpCheck:
			res.Checks++
			if err := check(h, live); err != nil {
				return res, fmt.Errorf("line %d: %w", op.Line, err)
			}

		case OpStats:
			if opts.Stats != nil {
				h.PrintStats(opts.Stats)
			}
		}

		if opts.VerifyEach && op.Kind != OpCheck {
			if err := check(h, live); err != nil {
				return res, fmt.Errorf("line %d: after %s: %w", op.Line, op.Kind, err)
			}
		}
	}

	res.Used, res.Free, res.Size = h.Used(), h.Free(), h.Size()
	for _, b := range live {
		res.Live = append(res.Live, b.Block)
	}
	slices.SortFunc(res.Live, func(a, b Block) int {
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})
	return res, nil
}

// check runs the free-list and partition checks and confirms every live
// block still holds its fill pattern.
func check(h *heap.Heap, live map[string]*liveBlock) error {
	blocks := make([]verify.Block, 0, len(live))
	for _, b := range live {
		if !intact(b) {
			return fmt.Errorf("%w: %s at 0x%X", ErrClobbered, b.Name, b.Addr)
		}
		blocks = append(blocks, verify.Block{Addr: b.Addr, Size: b.Size, Align: b.Align})
	}
	var err error
	h.Inspect(func(e *alloc.Engine) {
		err = verify.AllInvariants(e, blocks)
	})
	return err
}

func fill(b *liveBlock) {
	data := unsafe.Slice((*byte)(b.p), b.Size)
	for i := range data {
		data[i] = b.tag
	}
}

func intact(b *liveBlock) bool {
	for _, c := range unsafe.Slice((*byte)(b.p), b.Size) {
		if c != b.tag {
			return false
		}
	}
	return true
}
