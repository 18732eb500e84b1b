package format

import "encoding/binary"

// Image header fields are little-endian. Node words inside the region keep
// the producing host's layout, which ReadWord and PutWord treat as
// little-endian too; images only move between little-endian hosts.

var le = binary.LittleEndian

func PutU16(b []byte, off int, v uint16) { le.PutUint16(b[off:off+2], v) }
func PutU64(b []byte, off int, v uint64) { le.PutUint64(b[off:off+8], v) }
func ReadU16(b []byte, off int) uint16   { return le.Uint16(b[off : off+2]) }
func ReadU64(b []byte, off int) uint64   { return le.Uint64(b[off : off+8]) }

// ReadWord reads a node word of wordSize bytes (4 or 8) at off.
func ReadWord(b []byte, off, wordSize int) uint64 {
	if wordSize == 4 {
		return uint64(le.Uint32(b[off : off+4]))
	}
	return ReadU64(b, off)
}

// PutWord writes v as a node word of wordSize bytes (4 or 8) at off.
func PutWord(b []byte, off, wordSize int, v uint64) {
	if wordSize == 4 {
		le.PutUint32(b[off:off+4], uint32(v))
		return
	}
	PutU64(b, off, v)
}
