//go:build !linux && !darwin && !freebsd

package region

import (
	"fmt"
	"os"
)

type sysState struct{}

// Anonymous allocates size bytes of zeroed memory.
func Anonymous(size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	return &Region{data: make([]byte, size)}, nil
}

// MapFile loads up to size bytes of the file at path into memory, creating
// the file when missing. Contents are written back on Sync and Close.
func MapFile(path string, size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	data := make([]byte, size)
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("region: %w", err)
	}
	copy(data, existing)
	r := &Region{data: data, path: path}
	if err := r.Sync(); err != nil {
		return nil, err
	}
	return r, nil
}

// Sync writes a file-backed region to its file.
func (r *Region) Sync() error {
	if r.data == nil {
		return ErrClosed
	}
	if r.path == "" {
		return nil
	}
	if err := os.WriteFile(r.path, r.data, 0o644); err != nil {
		return fmt.Errorf("region: write %s: %w", r.path, err)
	}
	return nil
}

// Close writes back a file-backed region and releases it. Closing twice is
// a no-op.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := r.Sync()
	r.data = nil
	return err
}
