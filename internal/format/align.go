package format

// Alignment utilities shared by the allocator and the image tooling.
// Every alignment passed to these helpers must be a power of two.

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// AlignUp returns n rounded up to the next multiple of align.
// The second result is false when the rounding wraps around.
//
// Example:
//
//	AlignUp(1, 8)  = 8
//	AlignUp(8, 8)  = 8
//	AlignUp(9, 16) = 16
func AlignUp(n, align uintptr) (uintptr, bool) {
	mask := align - 1
	r := (n + mask) &^ mask
	return r, r >= n
}

// AlignDown returns n rounded down to a multiple of align.
func AlignDown(n, align uintptr) uintptr {
	return n &^ (align - 1)
}
