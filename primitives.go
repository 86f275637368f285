package galloc

import "unsafe"

// unsafeAddrOf returns the address of a mapped region's first byte. Mappings
// obtained from the OS are always non-empty (n > 0 is enforced by callers).
func unsafeAddrOf(b []byte) uintptr { return uintptr(unsafe.Pointer(&b[0])) }

// sliceAt views n bytes starting at addr as a byte slice, for handing raw
// addresses returned by the OS primitives to syscall wrappers that still
// expect a []byte (e.g. unix.Mprotect, unix.Munmap).
func sliceAt(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}
