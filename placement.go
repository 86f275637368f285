package galloc

// newMapped creates one new MAPPED block of totalBytes (payload + H) via an
// independent anonymous mapping. The caller has already decided, against
// whichever threshold applies to it (MMAP_THRESHOLD for Malloc/Realloc,
// pagesize for Calloc), that a mapping rather than the break region is the
// right source — newMapped itself does not re-check a threshold, since the
// break-region's own initial-reservation size (INIT_MEM_ALLOC) equals the
// Malloc threshold and exceeds the Calloc one without that meaning the
// request itself was "large".
func (a *Allocator) newMapped(totalBytes uintptr) (*header, error) {
	addr, err := a.prim.mapAnonymous(int(totalBytes))
	if err != nil {
		return nil, wrapOSErr("mmap", err)
	}
	b := headerAt(addr)
	b.size = totalBytes - H
	b.status = statusMapped
	b.prev = nil
	b.next = nil
	if a.mapped == nil {
		a.mapped = map[*header]struct{}{}
	}
	a.mapped[b] = struct{}{}
	a.mmaps++
	a.bytes += int(totalBytes)
	return b, nil
}

// newBreakBlock extends the break by totalBytes and appends the resulting
// block after prev (nil meaning it becomes the sole, anchor, block).
func (a *Allocator) newBreakBlock(prev *header, totalBytes uintptr) (*header, error) {
	addr, err := a.prim.extendBreak(int(totalBytes))
	if err != nil {
		return nil, wrapOSErr("extend break", err)
	}
	b := headerAt(addr)
	b.size = totalBytes - H
	b.status = statusAlloc
	appendTail(prev, b)
	if prev == nil {
		a.anchor = b
	}
	a.bytes += int(totalBytes)
	return b, nil
}

// split carves a trailing FREE block off b when the remainder strictly
// exceeds one header's worth of space; otherwise b is left oversized, an
// accepted form of internal fragmentation. requestedTotal is the payload+H
// footprint the caller actually needs from b.
func split(b *header, requestedTotal uintptr) {
	remainder := b.size + H - requestedTotal
	if remainder <= H {
		return
	}
	newAddr := addressOf(b) + requestedTotal
	nb := headerAt(newAddr)
	nb.size = remainder - H
	nb.status = statusFree
	insertBetween(b, nb)
	b.size = requestedTotal - H
}

// merge folds b, which must be a.next, into a. b's header ceases to exist.
func merge(a, b *header) {
	a.size += H + b.size
	a.next = b.next
	if a.next != nil {
		a.next.prev = a
	}
}

// coalesce walks the break-region list from the anchor, merging every
// adjacent pair of FREE blocks, until no adjacent FREE pair remains. It must
// run before every best-fit search, or an avoidable miss can send a request
// to a new break extension despite adequate combined free space already
// existing.
func (a *Allocator) coalesce() {
	b := a.anchor
	for b != nil && b.next != nil {
		if b.status == statusFree && b.next.status == statusFree {
			merge(b, b.next)
			continue
		}
		b = b.next
	}
}

// bestFit scans the whole list for the smallest FREE block whose total
// capacity (size+H) is at least requestedTotal, ties broken by earliest
// address. On a hit the block is split to size and marked ALLOC in place;
// on a miss it returns nil and mutates nothing.
func (a *Allocator) bestFit(requestedTotal uintptr) *header {
	var best *header
	for b := a.anchor; b != nil; b = b.next {
		if b.status != statusFree {
			continue
		}
		if b.size+H < requestedTotal {
			continue
		}
		if best == nil || b.size < best.size {
			best = b
		}
	}
	if best == nil {
		return nil
	}
	split(best, requestedTotal)
	best.status = statusAlloc
	return best
}

// tailBlock returns the topmost (highest-address) block of the break-region
// list, or nil if the list is empty.
func (a *Allocator) tailBlock() *header {
	b := a.anchor
	if b == nil {
		return nil
	}
	for b.next != nil {
		b = b.next
	}
	return b
}

// tailExtend runs when bestFit misses. If the tail block is FREE, the break
// is extended by exactly the payload deficit (not deficit+H: the extension
// reuses the tail's existing header) and the tail absorbs it. Otherwise a
// brand new break-region block is appended after the tail.
func (a *Allocator) tailExtend(requestedPayload, requestedTotal uintptr) (*header, error) {
	t := a.tailBlock()
	if t != nil && t.status == statusFree {
		deficit := requestedPayload - t.size
		if _, err := a.prim.extendBreak(int(deficit)); err != nil {
			return nil, wrapOSErr("extend break", err)
		}
		t.size += deficit
		a.bytes += int(deficit)
		t.status = statusAlloc
		return t, nil
	}

	return a.newBreakBlock(t, requestedTotal)
}
