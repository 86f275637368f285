//go:build windows

package galloc

import (
	"fmt"
	"syscall"
	"unsafe"
)

// breakReserve mirrors primitives_unix.go: a large up-front virtual
// reservation so header pointers handed out early never move when the
// break grows later.
const breakReserve = 1 << 32

var (
	modkernel32       = syscall.NewLazyDLL("kernel32.dll")
	procVirtualAlloc  = modkernel32.NewProc("VirtualAlloc")
	procVirtualFree   = modkernel32.NewProc("VirtualFree")
	procGetSystemInfo = modkernel32.NewProc("GetSystemInfo")
)

const (
	memCommit     = 0x1000
	memReserve    = 0x2000
	memRelease    = 0x8000
	pageNoAccess  = 0x01
	pageReadWrite = 0x04
)

// osPrimitives implements the break-region and mapping primitives on
// Windows, via VirtualAlloc/VirtualFree, the same family of calls the
// teacher's mmap_windows.go already used for CreateFileMapping-backed
// mappings.
type osPrimitives struct {
	brkBase   uintptr
	brkSize   uintptr
	brkCommit uintptr
	pagesizeV int
}

func (p *osPrimitives) reserve() error {
	if p.brkBase != 0 {
		return nil
	}
	addr, _, _ := procVirtualAlloc.Call(0, uintptr(breakReserve), memReserve, pageNoAccess)
	if addr == 0 {
		return fmt.Errorf("VirtualAlloc(MEM_RESERVE) failed")
	}
	p.brkBase = addr
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
	addr, _, _ := procVirtualAlloc.Call(p.brkBase, uintptr(newCommit), memCommit, pageReadWrite)
	if addr == 0 {
		return fmt.Errorf("VirtualAlloc(MEM_COMMIT) failed")
	}
	p.brkCommit = newCommit
	return nil
}

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

// mapAnonymous reserves and commits a fresh region, independent of the
// break, via a direct VirtualAlloc: every mapping here is private and
// anonymous, so there is no need for the CreateFileMapping/MapViewOfFile
// dance that named, shareable mappings require.
func (p *osPrimitives) mapAnonymous(n int) (uintptr, error) {
	addr, _, _ := procVirtualAlloc.Call(0, uintptr(n), memReserve|memCommit, pageReadWrite)
	if addr == 0 {
		return 0, fmt.Errorf("VirtualAlloc failed")
	}
	return addr, nil
}

func (p *osPrimitives) unmap(addr uintptr, n int) error {
	ok, _, _ := procVirtualFree.Call(addr, 0, memRelease)
	if ok == 0 {
		return fmt.Errorf("VirtualFree failed")
	}
	return nil
}

// release frees the entire break-region reservation with a single
// MEM_RELEASE call (size must be 0 for MEM_RELEASE, which frees the whole
// region VirtualAlloc(MEM_RESERVE) originally returned) and resets p so a
// later reserve starts fresh. A zero-value p is a no-op.
func (p *osPrimitives) release() error {
	if p.brkBase == 0 {
		return nil
	}
	ok, _, _ := procVirtualFree.Call(p.brkBase, 0, memRelease)
	if ok == 0 {
		return fmt.Errorf("VirtualFree(MEM_RELEASE) failed")
	}
	*p = osPrimitives{}
	return nil
}

type systemInfo struct {
	_                           uint32
	dwPageSize                  uint32
	lpMinimumApplicationAddress uintptr
	lpMaximumApplicationAddress uintptr
	dwActiveProcessorMask       uintptr
	dwNumberOfProcessors        uint32
	dwProcessorType             uint32
	dwAllocationGranularity     uint32
	wProcessorLevel             uint16
	wProcessorRevision          uint16
}

func (p *osPrimitives) pagesize() int {
	if p.pagesizeV == 0 {
		var si systemInfo
		procGetSystemInfo.Call(uintptr(unsafe.Pointer(&si)))
		p.pagesizeV = int(si.dwPageSize)
	}
	return p.pagesizeV
}
