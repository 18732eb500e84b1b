// Package writer exposes sinks for heap images.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
)

// ImagePerm is the mode of image files written by FileWriter.
const ImagePerm os.FileMode = 0o644

// Sink receives a complete heap image.
type Sink interface {
	WriteImage(buf []byte) error
}

// FileWriter writes heap images to a filesystem path atomically: readers see
// either the previous image or the new one, never a partial write.
type FileWriter struct {
	Path string
}

// WriteImage writes buf to the configured path via temp file + rename.
func (w *FileWriter) WriteImage(buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("write image %s: empty image", w.Path)
	}

	// The temp file must share a filesystem with Path for the rename.
	tmp, err := os.CreateTemp(filepath.Dir(w.Path), "."+filepath.Base(w.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write image %s: %w", w.Path, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	// CreateTemp opens with 0600; images are meant to be shared with inspect.
	if err = tmp.Chmod(ImagePerm); err != nil {
		return fmt.Errorf("write image %s: %w", w.Path, err)
	}
	if _, err = tmp.Write(buf); err != nil {
		return fmt.Errorf("write image %s: %w", w.Path, err)
	}
	// Flush before rename so a crash cannot leave a renamed, empty file.
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync image %s: %w", w.Path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close image %s: %w", w.Path, err)
	}
	if err = os.Rename(tmp.Name(), w.Path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename image into %s: %w", w.Path, err)
	}
	committed = true
	return nil
}
