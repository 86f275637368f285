package galloc

import "unsafe"

// Default is the package-level allocator used by the Malloc/Calloc/Free/
// Realloc package functions below. It needs no initialization: a zero
// Allocator, like a zero Default, is ready to use.
var Default Allocator

// Malloc allocates size bytes from the Default allocator. See
// (*Allocator).Malloc.
func Malloc(size int) ([]byte, error) { return Default.Malloc(size) }

// Calloc allocates zeroed memory from the Default allocator. See
// (*Allocator).Calloc.
func Calloc(nmemb, size int) ([]byte, error) { return Default.Calloc(nmemb, size) }

// Free releases memory back to the Default allocator. See
// (*Allocator).Free.
func Free(b []byte) error { return Default.Free(b) }

// Realloc resizes memory previously obtained from the Default allocator.
// See (*Allocator).Realloc.
func Realloc(b []byte, size int) ([]byte, error) { return Default.Realloc(b, size) }

// Close releases the Default allocator's OS resources and resets it to its
// zero value. See (*Allocator).Close.
func Close() error { return Default.Close() }

// UnsafeMalloc, UnsafeCalloc, UnsafeFree and UnsafeRealloc are the
// unsafe.Pointer-based twins of the functions above, operating on the
// Default allocator.
func UnsafeMalloc(size int) (unsafe.Pointer, error) { return Default.UnsafeMalloc(size) }

func UnsafeCalloc(nmemb, size int) (unsafe.Pointer, error) { return Default.UnsafeCalloc(nmemb, size) }

func UnsafeFree(p unsafe.Pointer) error { return Default.UnsafeFree(p) }

func UnsafeRealloc(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	return Default.UnsafeRealloc(p, size)
}
