// Package testutil holds helpers shared by the heap, trace and heapctl tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/internal/region"
)

// SetupTestHeap maps an anonymous region of size bytes and initializes a
// heap over it. The region is unmapped when the test finishes.
//
// Example:
//
//	h := testutil.SetupTestHeap(t, 4096)
//	p := h.Alloc(alloc.LayoutOf[uint64]())
func SetupTestHeap(t *testing.T, size int) *heap.Heap {
	t.Helper()

	r, err := region.Anonymous(size)
	if err != nil {
		t.Fatalf("Failed to map test region: %v", err)
	}
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("Failed to unmap test region: %v", err)
		}
	})

	h := &heap.Heap{}
	if err := h.InitBytes(r.Bytes()); err != nil {
		t.Fatalf("Failed to initialize heap: %v", err)
	}
	return h
}

// WriteTestFile writes content to name inside a per-test temporary
// directory and returns the full path.
func WriteTestFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}
