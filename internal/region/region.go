// Package region obtains the byte range a heap manages: an anonymous
// mapping, or a shared file mapping whose contents survive the process.
//
// On linux, darwin and freebsd the range is mapped with mmap; elsewhere it
// falls back to a Go byte slice, written out to the file on Sync and Close.
package region

import (
	"errors"
	"unsafe"
)

var (
	// ErrInvalidSize indicates a non-positive region size.
	ErrInvalidSize = errors.New("region: size must be positive")

	// ErrClosed indicates use of a region after Close.
	ErrClosed = errors.New("region: closed")
)

// Region is a contiguous byte range owned by the caller until Close.
type Region struct {
	data   []byte
	path   string // backing file, empty for anonymous regions
	mapped bool   // data came from mmap and must be unmapped
	sys    sysState
}

// FromBytes wraps an existing Go byte slice as an anonymous region. Close
// only drops the reference.
func FromBytes(b []byte) *Region {
	return &Region{data: b}
}

// Bytes returns the region contents. The slice is invalid after Close.
func (r *Region) Bytes() []byte { return r.data }

// Len returns the region size in bytes.
func (r *Region) Len() int { return len(r.data) }

// Path returns the backing file, or "" for an anonymous region.
func (r *Region) Path() string { return r.path }

// Pointer returns the first byte of the region, or nil after Close.
func (r *Region) Pointer() unsafe.Pointer {
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(r.data))
}

// Addr returns the address of the first byte of the region, 0 after Close.
func (r *Region) Addr() uintptr { return uintptr(r.Pointer()) }
