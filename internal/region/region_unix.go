//go:build linux || darwin || freebsd

package region

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/joshuapare/heapkit/internal/logger"
)

type sysState struct {
	f *os.File
}

// Anonymous maps size bytes of private, zeroed memory.
func Anonymous(size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("region: mmap %d anonymous bytes: %w", size, err)
	}
	logger.Debug("region mapped", "kind", "anonymous", "size", size)
	return &Region{data: data, mapped: true}, nil
}

// MapFile maps the file at path with MAP_SHARED, creating it and sizing it
// to size bytes first. Writes to the region reach the file; Sync forces
// them to disk.
func MapFile(path string, size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("region: %w", err)
	}
	if err = f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("region: size %s: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("region: mmap %s: %w", path, err)
	}
	// Advisory only; the kernel may ignore it.
	if adviseErr := unix.Madvise(data, unix.MADV_WILLNEED); adviseErr != nil {
		logger.Warn("madvise failed", "path", path, "error", adviseErr)
	}
	logger.Debug("region mapped", "kind", "file", "path", path, "size", size)
	return &Region{data: data, path: path, mapped: true, sys: sysState{f: f}}, nil
}

// Sync flushes a file-backed region to disk. It is a no-op for anonymous
// regions.
func (r *Region) Sync() error {
	if r.data == nil {
		return ErrClosed
	}
	if r.sys.f == nil {
		return nil
	}
	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("region: msync %s: %w", r.path, err)
	}
	return nil
}

// Close unmaps the region and closes its backing file. Closing twice is a
// no-op.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	var err error
	if r.mapped {
		err = unix.Munmap(r.data)
		if errors.Is(err, unix.EINVAL) {
			// Treat double-unmap as no-op for callers.
			err = nil
		}
	}
	r.data = nil
	if r.sys.f != nil {
		if cerr := r.sys.f.Close(); err == nil {
			err = cerr
		}
		r.sys.f = nil
	}
	if err != nil {
		return fmt.Errorf("region: unmap: %w", err)
	}
	return nil
}
