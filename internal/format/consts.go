// Package format describes the in-memory layout shared by the allocator and
// its tooling: the free-node header that lives inside free memory, alignment
// rules, and the on-disk heap image produced by heapctl. The package is kept
// dependency-free so both the engine and the inspectors can import it.
package format

import "unsafe"

const (
	// WordSize is the native machine word in bytes. Node fields and node
	// addresses are always word sized and word aligned.
	WordSize = int(unsafe.Sizeof(uintptr(0)))

	// NodeSizeOffset is the offset of the size word inside a free node.
	NodeSizeOffset = 0

	// NodeNextOffset is the offset of the next-link word inside a free node.
	// A zero link terminates the list.
	NodeNextOffset = WordSize

	// NodeSize is the footprint of a free node header: size word + next word.
	// It is also the smallest free range that can be tracked.
	NodeSize = 2 * WordSize
)

var (
	// ImageSignature is the four-byte signature at the start of a heap image.
	// Layout (little-endian):
	//   0x00  'H' 'E' 'A' 'P'
	ImageSignature = []byte{'H', 'E', 'A', 'P'}
)

const (
	// ImageVersion is the current heap image layout version.
	ImageVersion = 1

	// ImageHeaderSize is the fixed size of the image header preceding the
	// raw region bytes.
	ImageHeaderSize = 0x20

	ImageSignatureOffset = 0x00 // "HEAP"
	ImageVersionOffset   = 0x04 // uint16
	ImageWordSizeOffset  = 0x06 // uint16, word size of the producing host
	ImageBaseOffset      = 0x08 // uint64, address of the first region byte
	ImageSizeOffset      = 0x10 // uint64, region size in bytes
	ImageHeadOffset      = 0x18 // uint64, address of the first free node (0 = none)
)
