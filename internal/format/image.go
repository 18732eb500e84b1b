package format

import (
	"bytes"
	"fmt"

	"github.com/joshuapare/heapkit/internal/buf"
)

// ImageHeader is the decoded header of a heap image.
type ImageHeader struct {
	Version  uint16
	WordSize uint16
	Base     uint64 // address of the first region byte when the image was taken
	Size     uint64 // region size in bytes
	Head     uint64 // address of the first free node, 0 when the heap is full
}

// ImageNode is a free node decoded from a heap image.
type ImageNode struct {
	Addr uint64
	Size uint64
	Next uint64
}

// PutImageHeader encodes h into the first ImageHeaderSize bytes of b.
func PutImageHeader(b []byte, h ImageHeader) {
	copy(b[ImageSignatureOffset:], ImageSignature)
	PutU16(b, ImageVersionOffset, h.Version)
	PutU16(b, ImageWordSizeOffset, h.WordSize)
	PutU64(b, ImageBaseOffset, h.Base)
	PutU64(b, ImageSizeOffset, h.Size)
	PutU64(b, ImageHeadOffset, h.Head)
}

// ParseImageHeader decodes and validates the header at the start of b.
func ParseImageHeader(b []byte) (ImageHeader, error) {
	if len(b) < ImageHeaderSize {
		return ImageHeader{}, fmt.Errorf("image header: %w", ErrTruncated)
	}
	if !bytes.Equal(b[ImageSignatureOffset:ImageSignatureOffset+4], ImageSignature) {
		return ImageHeader{}, fmt.Errorf("image header: %w (got %q)", ErrSignatureMismatch, b[:4])
	}
	h := ImageHeader{
		Version:  ReadU16(b, ImageVersionOffset),
		WordSize: ReadU16(b, ImageWordSizeOffset),
		Base:     ReadU64(b, ImageBaseOffset),
		Size:     ReadU64(b, ImageSizeOffset),
		Head:     ReadU64(b, ImageHeadOffset),
	}
	if h.Version != ImageVersion {
		return h, fmt.Errorf("image version %d: %w", h.Version, ErrUnsupported)
	}
	if h.WordSize != 4 && h.WordSize != 8 {
		return h, fmt.Errorf("image word size %d: %w", h.WordSize, ErrUnsupported)
	}
	if uint64(len(b)-ImageHeaderSize) < h.Size {
		return h, fmt.Errorf("image body (%d bytes < %d): %w", len(b)-ImageHeaderSize, h.Size, ErrTruncated)
	}
	return h, nil
}

// ImageNodes walks the free list stored in a heap image and returns its
// nodes in list order. The walk stops with an error on a link that leaves the
// region, a node header that does not fit, or a list longer than the region
// could possibly hold (a cycle).
func ImageNodes(b []byte) (ImageHeader, []ImageNode, error) {
	h, err := ParseImageHeader(b)
	if err != nil {
		return h, nil, err
	}
	region := b[ImageHeaderSize : ImageHeaderSize+int(h.Size)]
	word := int(h.WordSize)
	maxNodes := int(h.Size) / (2 * word)

	var nodes []ImageNode
	for addr := h.Head; addr != 0; {
		if len(nodes) > maxNodes {
			return h, nodes, fmt.Errorf("free list longer than %d nodes (cycle?)", maxNodes)
		}
		if addr < h.Base {
			return h, nodes, fmt.Errorf("node 0x%X below region base 0x%X", addr, h.Base)
		}
		off := int(addr - h.Base)
		if !buf.Has(region, off, 2*word) {
			return h, nodes, fmt.Errorf("node 0x%X header outside region: %w", addr, ErrTruncated)
		}
		n := ImageNode{
			Addr: addr,
			Size: ReadWord(region, off+NodeSizeOffset, word),
			Next: ReadWord(region, off+word, word),
		}
		nodes = append(nodes, n)
		addr = n.Next
	}
	return h, nodes, nil
}
