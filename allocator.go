package galloc

import (
	"math"
	"unsafe"
)

// Stats reports the bookkeeping counters an Allocator keeps on the side.
// After a full alloc/free cycle Allocs and Mmaps are back to zero, while
// Bytes equals the current size of the break region: Free never shrinks the
// break, so freed break-region blocks stay counted. The churn tests check
// exactly this.
type Stats struct {
	Allocs int // live allocations (break-region + mapped)
	Mmaps  int // live independent mappings
	Bytes  int // bytes currently obtained from the OS (break extensions + mappings)
}

// Allocator allocates and frees memory. Its zero value is ready for use and
// is not safe for concurrent use from multiple goroutines: there is no
// internal locking, matching the single-threaded contract this package
// models.
type Allocator struct {
	prim   osPrimitives
	anchor *header
	mapped map[*header]struct{} // live independent (MAPPED) blocks, for Close

	allocs int
	mmaps  int
	bytes  int
}

// Stats returns a snapshot of a's bookkeeping counters.
func (a *Allocator) Stats() Stats {
	return Stats{Allocs: a.allocs, Mmaps: a.mmaps, Bytes: a.bytes}
}

// Close unmaps every live independent mapping still outstanding on a,
// releases the break region's reserved address space, and resets a to its
// zero value. It is not necessary to Close an Allocator before it is
// dropped or the process exits; Close exists for long-running processes
// that construct and discard many Allocator values and do not want each
// one's break-region reservation to sit around for the remainder of the
// process's life.
func (a *Allocator) Close() (err error) {
	for h := range a.mapped {
		total := h.size + H
		if e := a.prim.unmap(addressOf(h), int(total)); e != nil && err == nil {
			err = wrapOSErr("munmap", e)
		}
	}
	if e := a.prim.release(); e != nil && err == nil {
		err = wrapOSErr("release break region", e)
	}
	*a = Allocator{}
	return err
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// reserveInitial performs the first break-region allocation of an Allocator,
// made while its block list is still empty, whichever public entry point
// makes it: a flat initMemAlloc-byte extension (or exactly totalBytes if
// that is already larger), with an excess of more than H bytes left behind
// as a single trailing FREE block. A smaller excess stays inside the
// returned block.
func (a *Allocator) reserveInitial(totalBytes uintptr) (*header, error) {
	reserveSize := uintptr(initMemAlloc)
	if totalBytes > reserveSize {
		reserveSize = totalBytes
	}
	b, err := a.newBreakBlock(nil, reserveSize)
	if err != nil {
		return nil, err
	}
	if reserveSize > totalBytes {
		split(b, totalBytes)
	}
	b.status = statusAlloc
	return b, nil
}

// placeInBreak is the shared best-fit/tail-extend/initial-reservation
// skeleton shared by Malloc and Calloc once the large-mapping branch and the
// zero/overflow edge cases have already been handled by the caller: by this
// point the caller has already decided the request belongs in the break
// region, so placeInBreak never touches a mapping.
func (a *Allocator) placeInBreak(payload, total uintptr) (*header, error) {
	if a.anchor == nil {
		return a.reserveInitial(total)
	}

	a.coalesce()
	if b := a.bestFit(total); b != nil {
		return b, nil
	}

	return a.tailExtend(payload, total)
}

// mallocCore implements the allocate operation end to end and returns the
// new block's header, or nil for a zero-size request.
func (a *Allocator) mallocCore(size int) (*header, error) {
	if size < 0 {
		panic("galloc: negative size")
	}
	size = align8(size)
	if size == 0 {
		return nil, nil
	}

	total := uintptr(size) + H
	var (
		b   *header
		err error
	)
	if total > mmapThreshold {
		b, err = a.newMapped(total)
	} else {
		b, err = a.placeInBreak(uintptr(size), total)
	}
	if err != nil {
		return nil, err
	}
	a.allocs++
	return b, nil
}

// callocCore implements the allocate_zeroed operation end to end, zeroing
// the returned payload on every path (mapped regions are already
// OS-zeroed, so no redundant zeroing happens there).
func (a *Allocator) callocCore(nmemb, size int) (*header, error) {
	if nmemb < 0 || size < 0 {
		panic("galloc: negative size")
	}
	if nmemb == 0 || size == 0 {
		return nil, nil
	}
	if nmemb > math.MaxInt/size {
		return nil, ErrOverflow
	}

	newSize := align8(nmemb * size)
	pagesize := uintptr(a.prim.pagesize())
	total := uintptr(newSize) + H

	if total > pagesize {
		b, err := a.newMapped(total)
		if err != nil {
			return nil, err
		}
		a.allocs++
		return b, nil
	}

	b, err := a.placeInBreak(uintptr(newSize), total)
	if err != nil {
		return nil, err
	}
	zero(b.payload())
	a.allocs++
	return b, nil
}

// freeCore implements the free operation. addr is the payload address; a
// zero addr (nil pointer) is a no-op.
func (a *Allocator) freeCore(addr uintptr) error {
	if addr == 0 {
		return nil
	}

	h := headerFromPayload(addr)
	if h.status == statusFree {
		return nil
	}

	if h.status == statusMapped {
		total := h.size + H
		if err := a.prim.unmap(addressOf(h), int(total)); err != nil {
			return wrapOSErr("munmap", err)
		}
		delete(a.mapped, h)
		a.mmaps--
		a.bytes -= int(total)
		a.allocs--
		return nil
	}

	h.status = statusFree
	a.allocs--
	return nil
}

// reallocCore implements the reallocate operation. addr is the payload
// address being resized (0 delegates to mallocCore).
func (a *Allocator) reallocCore(addr uintptr, size int) (*header, error) {
	size = align8(size)
	if size == 0 {
		return nil, a.freeCore(addr)
	}
	if addr == 0 {
		return a.mallocCore(size)
	}

	h := headerFromPayload(addr)
	if h.status == statusFree {
		return nil, ErrFreedPointer
	}

	if h.status == statusMapped {
		nb, err := a.mallocCore(size)
		if err != nil {
			return nil, err
		}
		if nb != nil {
			copy(nb.payload(), h.payload())
		}
		if err := a.freeCore(addr); err != nil {
			return nil, err
		}
		return nb, nil
	}

	oldSize := h.size
	newSize := uintptr(size)

	if newSize == oldSize {
		return h, nil
	}

	if newSize < oldSize {
		if h.next == nil {
			if err := a.prim.setBreak(h.payloadAddr() + newSize); err != nil {
				return nil, wrapOSErr("set break", err)
			}
			a.bytes -= int(oldSize - newSize)
			h.size = newSize
		} else {
			split(h, newSize+H)
		}
		return h, nil
	}

	// Grow path: merge forward through FREE neighbors for as long as that
	// is still not enough. If this ever reaches the list tail — whether h
	// already was the tail, or became it by absorbing every FREE neighbor
	// up to the end of the heap — the remaining deficit, if any, is made
	// up by extending the break directly, since nothing can block growth
	// at the top of the heap. Only a non-FREE neighbor blocking further
	// merging before the deficit is covered falls back to copy-and-free.
	for h.next != nil && h.next.status == statusFree && h.size < newSize {
		merge(h, h.next)
	}
	if h.size >= newSize {
		split(h, newSize+H)
		return h, nil
	}
	if h.next == nil {
		delta := newSize - h.size
		if err := a.prim.setBreak(h.payloadAddr() + newSize); err != nil {
			return nil, wrapOSErr("set break", err)
		}
		h.size = newSize
		a.bytes += int(delta)
		return h, nil
	}

	nb, err := a.mallocCore(size)
	if err != nil {
		return nil, err
	}
	copy(nb.payload(), h.payload())
	if err := a.freeCore(addr); err != nil {
		return nil, err
	}
	return nb, nil
}

// ---- Public, []byte-based surface -----------------------------------

// Malloc allocates size bytes and returns a byte slice over them. The
// memory is not initialized. Malloc panics for size < 0 and returns
// (nil, nil) for size == 0.
func (a *Allocator) Malloc(size int) (r []byte, err error) {
	logCall("Malloc(%#x)", size)
	h, err := a.mallocCore(size)
	if err != nil || h == nil {
		return nil, err
	}
	return h.payload()[:size], nil
}

// Calloc is like Malloc except the allocated memory is zeroed.
func (a *Allocator) Calloc(nmemb, size int) (r []byte, err error) {
	logCall("Calloc(%#x, %#x)", nmemb, size)
	h, err := a.callocCore(nmemb, size)
	if err != nil || h == nil {
		return nil, err
	}
	return h.payload()[:nmemb*size], nil
}

// Free deallocates memory acquired from Malloc, Calloc, or Realloc. The nil
// slice is a no-op. The block is located through b's capacity, not its
// length, so a zero-length reslice b[:0] of one of those allocations frees
// that allocation.
func (a *Allocator) Free(b []byte) error {
	logCall("Free(%p)", addrOfSlice(b))
	return a.freeCore(addrOfSlice(b))
}

// Realloc changes the size of the allocation backing b. Contents are
// preserved up to min(len(b), size). If size is 0, this is equivalent to
// Free(b); if b has zero capacity (for example nil), this is equivalent to
// Malloc(size). Realloc of a pointer already passed to Free returns
// ErrFreedPointer.
func (a *Allocator) Realloc(b []byte, size int) (r []byte, err error) {
	logCall("Realloc(%p, %#x)", addrOfSlice(b), size)
	h, err := a.reallocCore(addrOfSlice(b), size)
	if err != nil || h == nil {
		return nil, err
	}
	return h.payload()[:size], nil
}

// UsableSize reports the number of payload bytes usable at b, which may be
// larger than the size originally requested.
func (a *Allocator) UsableSize(b []byte) int {
	addr := addrOfSlice(b)
	if addr == 0 {
		return 0
	}
	return int(headerFromPayload(addr).size)
}

func addrOfSlice(b []byte) uintptr {
	b = b[:cap(b)]
	if len(b) == 0 {
		return 0
	}
	return unsafeAddrOf(b)
}

// ---- Public, unsafe.Pointer-based surface -----------------------------

// UnsafeMalloc is like Malloc except it returns an unsafe.Pointer.
func (a *Allocator) UnsafeMalloc(size int) (unsafe.Pointer, error) {
	logCall("UnsafeMalloc(%#x)", size)
	h, err := a.mallocCore(size)
	if err != nil || h == nil {
		return nil, err
	}
	return unsafe.Pointer(h.payloadAddr()), nil
}

// UnsafeCalloc is like Calloc except it returns an unsafe.Pointer.
func (a *Allocator) UnsafeCalloc(nmemb, size int) (unsafe.Pointer, error) {
	logCall("UnsafeCalloc(%#x, %#x)", nmemb, size)
	h, err := a.callocCore(nmemb, size)
	if err != nil || h == nil {
		return nil, err
	}
	return unsafe.Pointer(h.payloadAddr()), nil
}

// UnsafeFree is like Free except its argument is an unsafe.Pointer returned
// from UnsafeMalloc, UnsafeCalloc, or UnsafeRealloc.
func (a *Allocator) UnsafeFree(p unsafe.Pointer) error {
	logCall("UnsafeFree(%p)", p)
	return a.freeCore(uintptr(p))
}

// UnsafeRealloc is like Realloc except its first argument and its result are
// unsafe.Pointer values.
func (a *Allocator) UnsafeRealloc(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	logCall("UnsafeRealloc(%p, %#x)", p, size)
	h, err := a.reallocCore(uintptr(p), size)
	if err != nil || h == nil {
		return nil, err
	}
	return unsafe.Pointer(h.payloadAddr()), nil
}

// UnsafeUsableSize is like UsableSize except its argument is an
// unsafe.Pointer.
func (a *Allocator) UnsafeUsableSize(p unsafe.Pointer) int {
	if p == nil {
		return 0
	}
	return int(headerFromPayload(uintptr(p)).size)
}
