//go:build darwin || dragonfly || freebsd || linux || openbsd || netbsd || solaris

package galloc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// breakReserve is the amount of virtual address space reserved, up front and
// lazily, for a given Allocator's break region. Reservation is PROT_NONE and
// therefore does not consume physical memory or count against RSS; only the
// prefix actually committed via mprotect (osPrimitives.commitThrough) is backed by
// real pages. This lets extendBreak hand out addresses that never move for
// the lifetime of the Allocator, which is required: header pointers already
// returned to callers must stay valid across later break growth.
const breakReserve = 1 << 32

// osPrimitives implements the break-region and mapping primitives on Unix
// targets. Its zero value is valid: the break region is reserved lazily, on
// the first call that needs it.
type osPrimitives struct {
	brkBase   uintptr // base of the reserved region, 0 until first use
	brkSize   uintptr // current logical break offset from brkBase
	brkCommit uintptr // bytes from brkBase already mprotected RW
	pagesizeV int
}

func (p *osPrimitives) reserve() error {
	if p.brkBase != 0 {
		return nil
	}
	b, err := unix.Mmap(-1, 0, breakReserve, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return fmt.Errorf("reserve break region: %w", err)
	}
	p.brkBase = uintptr(unsafeAddrOf(b))
	return nil
}

func (p *osPrimitives) commitThrough(target uintptr) error {
	if target <= p.brkCommit {
		return nil
	}
	ps := uintptr(p.pagesize())
	newCommit := roundup(target, ps)
	if newCommit > breakReserve {
		return fmt.Errorf("break region exhausted: want %d bytes, reserved %d", newCommit, uintptr(breakReserve))
	}
	if err := unix.Mprotect(sliceAt(p.brkBase, int(newCommit)), unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("commit break pages: %w", err)
	}
	p.brkCommit = newCommit
	return nil
}

// extendBreak advances the logical break by n bytes (n >= 0 on this path;
// realloc's shrink goes through setBreak instead, see allocator.go) and
// returns the address of the start of the newly added region.
func (p *osPrimitives) extendBreak(n int) (uintptr, error) {
	if err := p.reserve(); err != nil {
		return 0, err
	}
	old := p.brkBase + p.brkSize
	newSize := p.brkSize + uintptr(n)
	if err := p.commitThrough(newSize); err != nil {
		return 0, err
	}
	p.brkSize = newSize
	return old, nil
}

// setBreak moves the logical break to an absolute address within the
// reserved region, committing new pages if growing past what is committed.
// Shrinking does not decommit: pages already faulted in stay resident, which
// mirrors how most libc brk() implementations behave in practice and keeps
// this primitive simple, at the cost of never returning shrunk pages to the
// OS; shrinking here is purely a logical bookkeeping move, not a
// memory-reclaiming one.
func (p *osPrimitives) setBreak(addr uintptr) error {
	if err := p.reserve(); err != nil {
		return err
	}
	if addr < p.brkBase {
		return fmt.Errorf("setBreak: address %#x below break base %#x", addr, p.brkBase)
	}
	target := addr - p.brkBase
	if err := p.commitThrough(target); err != nil {
		return err
	}
	p.brkSize = target
	return nil
}

// mapAnonymous returns a fresh, private, zero-filled anonymous mapping of
// exactly n bytes, independent of the break region.
func (p *osPrimitives) mapAnonymous(n int) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("mmap anonymous: %w", err)
	}
	return uintptr(unsafeAddrOf(b)), nil
}

// unmap releases a mapping obtained from mapAnonymous.
func (p *osPrimitives) unmap(addr uintptr, n int) error {
	if err := unix.Munmap(sliceAt(addr, n)); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

func (p *osPrimitives) pagesize() int {
	if p.pagesizeV == 0 {
		p.pagesizeV = unix.Getpagesize()
	}
	return p.pagesizeV
}

// release unmaps the entire break-region reservation, including its
// uncommitted PROT_NONE tail, and resets p so a later reserve starts fresh.
// A zero-value p (break region never touched) is a no-op.
func (p *osPrimitives) release() error {
	if p.brkBase == 0 {
		return nil
	}
	if err := unix.Munmap(sliceAt(p.brkBase, breakReserve)); err != nil {
		return fmt.Errorf("munmap break reservation: %w", err)
	}
	*p = osPrimitives{}
	return nil
}
