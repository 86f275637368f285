package galloc

import "unsafe"

// header is the intrusive metadata prepended, in-band, to every break-region
// and mapped-region allocation. size is the number of usable payload bytes
// that follow the header, not including the header itself, and is always a
// multiple of 8. prev/next link break-region blocks into a single,
// address-ordered, doubly-linked list; mapped blocks leave both nil and are
// never reachable from the list anchor.
type header struct {
	size   uintptr
	status status
	prev   *header
	next   *header
}

// H is the header size, rounded up to a multiple of 8. On a 64-bit target
// this is 32 bytes: 8 (size) + 4 (status, padded to 8) + 8 (prev) + 8 (next).
var H = roundup(unsafe.Sizeof(header{}), mallocAlign)

func addressOf(h *header) uintptr { return uintptr(unsafe.Pointer(h)) }

func headerAt(addr uintptr) *header { return (*header)(unsafe.Pointer(addr)) }

// payload returns the byte slice view of b's payload. cap is set to size so
// that appends past it, if the caller ever does something ill-advised with
// the slice, do not silently corrupt the next block.
func (b *header) payload() []byte {
	if b.size == 0 {
		return nil
	}
	p := unsafe.Pointer(addressOf(b) + H)
	return unsafe.Slice((*byte)(p), int(b.size))
}

func (b *header) payloadAddr() uintptr { return addressOf(b) + H }

// headerFromPayload recovers the header that precedes a payload address.
func headerFromPayload(addr uintptr) *header { return headerAt(addr - H) }

// end is the address one past b's payload, i.e. where b.next lives if
// b.next != nil, or the current program break if b is the list tail.
func (b *header) end() uintptr { return b.payloadAddr() + b.size }

// appendTail links a newly created block in as the new list tail, following
// prev (which may be nil, meaning the new block becomes the sole block; the
// anchor update is the caller's responsibility).
func appendTail(prev, new *header) {
	new.prev = prev
	new.next = nil
	if prev != nil {
		prev.next = new
	}
}

// insertBetween splices mid in between a and a.next (a must be non-nil).
func insertBetween(a, mid *header) {
	mid.prev = a
	mid.next = a.next
	a.next = mid
	if mid.next != nil {
		mid.next.prev = mid
	}
}
