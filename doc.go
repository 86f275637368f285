// Package galloc implements a general-purpose, single-threaded memory
// allocator backed by two virtual memory sources: a contiguous, growable
// "break" region and independent anonymous mappings for large requests.
//
// The allocator keeps an intrusive, address-ordered, doubly-linked list of
// block headers inside the break region. Allocation is best-fit with
// splitting; freeing marks a block FREE and defers coalescing to the next
// allocation; growth of the topmost block extends the break in place when
// possible, falling back to allocate-copy-free otherwise.
//
// A zero Allocator is ready to use. The package also exposes a Default
// allocator and package-level functions (Malloc, Calloc, Free, Realloc and
// their Unsafe* twins) as a convenience wrapper, mirroring how libc's
// malloc/free/realloc are used without any explicit construction step.
//
// galloc is not safe for concurrent use: there is no internal locking,
// matching the single-threaded contract of the allocator this package
// models.
package galloc

const (
	// mallocAlign is the alignment granularity for every payload size and
	// every returned pointer. Strengthening this is out of scope.
	mallocAlign = 8

	// mmapThreshold is the total-footprint (aligned payload + H) cutoff
	// above which Malloc/Realloc satisfy a request via an independent
	// mapping instead of the break region.
	mmapThreshold = 131072

	// initMemAlloc is the size of the first break extension an Allocator
	// performs (while its block list is still empty, from Malloc, Calloc or
	// Realloc alike), regardless of how small the triggering request is.
	initMemAlloc = 131072
)

// roundup rounds n up to the next multiple of m. m must be a power of 2.
func roundup(n, m uintptr) uintptr { return (n + m - 1) &^ (m - 1) }

// align8 rounds n up to the next multiple of 8, as an int (the public API's
// size currency).
func align8(n int) int { return int(roundup(uintptr(n), mallocAlign)) }
