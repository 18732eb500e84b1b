package heap

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/joshuapare/heapkit/internal/format"
)

// WriteImage writes a heap image to w: a header recording the region
// address, size and free-list head, followed by the raw region bytes with
// the free-list nodes in place. heapctl inspect reads it back.
func (h *Heap) WriteImage(w io.Writer) error {
	defer h.borrow()()
	e := &h.engine

	hdr := make([]byte, format.ImageHeaderSize)
	format.PutImageHeader(hdr, format.ImageHeader{
		Version:  format.ImageVersion,
		WordSize: uint16(format.WordSize),
		Base:     uint64(e.Bottom()),
		Size:     uint64(e.Size()),
		Head:     uint64(e.Head()),
	})
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write image header: %w", err)
	}

	body := unsafe.Slice((*byte)(e.Pointer(e.Bottom())), e.Size())
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write image body: %w", err)
	}
	return nil
}
