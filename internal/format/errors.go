package format

import "errors"

var (
	// ErrSignatureMismatch indicates the data does not start with "HEAP".
	ErrSignatureMismatch = errors.New("format: not a heap image")
	// ErrTruncated indicates the buffer ends before the structure it should hold.
	ErrTruncated = errors.New("format: truncated image")
	// ErrUnsupported indicates an image version or word size this build cannot read.
	ErrUnsupported = errors.New("format: unsupported image")
)
