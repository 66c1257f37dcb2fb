//go:build unix

package hookmgr

import (
	"fmt"
	"unsafe"

	"github.com/apex/log"
	"golang.org/x/sys/unix"
)

const (
	// allocation search range: generated code must stay within rel32 reach
	// of the patch site
	nearRange = 0x7fff0000

	hintStep = 1 << 24
)

type codePage struct {
	base uintptr
	size uintptr
	used uintptr
}

// allocator hands out executable memory for trampolines and capture stubs,
// preferring pages within rel32 range of the target. Pages are bump
// allocated and live as long as the owning Manager; destroyed hooks leave
// their slots behind, which is acceptable at the expected object counts.
//
// Callers already hold the manager lock; the allocator has no lock of its own.
type allocator struct {
	pages []*codePage
}

// alloc returns executable memory of the given size, as close to target as
// the kernel allows. The second result reports whether the block is within
// rel32 range of target.
func (a *allocator) alloc(target, size uintptr) (uintptr, bool, error) {
	for _, p := range a.pages {
		if p.used+size > p.size {
			continue
		}
		addr := p.base + p.used
		if inRel32Range(target, addr) {
			p.used += size
			return addr, true, nil
		}
	}

	if base, err := mmapNear(target); err == nil {
		p := &codePage{base: base, size: pageSize, used: size}
		a.pages = append(a.pages, p)
		return base, inRel32Range(target, base), nil
	}

	// no placement near the target worked, take whatever the kernel gives us
	ptr, err := unix.MmapPtr(-1, 0, nil, pageSize,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, false, fmt.Errorf("%w: mmap: %v", ErrAllocation, err)
	}
	base := uintptr(ptr)
	log.Warnf("code allocation fallback: %#x for target %#x", base, target)
	a.pages = append(a.pages, &codePage{base: base, size: pageSize, used: size})
	return base, inRel32Range(target, base), nil
}

// release unmaps every page owned by the allocator.
func (a *allocator) release() {
	for _, p := range a.pages {
		_ = unix.MunmapPtr(unsafe.Pointer(p.base), p.size)
	}
	a.pages = nil
}

// mmapNear asks the kernel for one RWX page at hint addresses around target.
func mmapNear(target uintptr) (uintptr, error) {
	lo := target - nearRange
	if lo > target { // underflow
		lo = pageSize
	}
	hi := target + nearRange
	if hi < target { // overflow
		hi = ^uintptr(0) - pageSize
	}
	for hint := lo; hint < hi; hint += hintStep {
		if hint == 0 {
			continue
		}
		ptr, err := unix.MmapPtr(-1, 0, unsafe.Pointer(hint), pageSize,
			unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
			unix.MAP_PRIVATE|unix.MAP_ANON)
		if err != nil {
			continue
		}
		base := uintptr(ptr)
		if inRel32Range(target, base) {
			return base, nil
		}
		// kernel ignored the hint and placed us too far away
		_ = unix.MunmapPtr(ptr, pageSize)
	}
	return 0, fmt.Errorf("%w: no executable page within range of %#x", ErrAllocation, target)
}

func inRel32Range(a, b uintptr) bool {
	diff := a - b
	if b > a {
		diff = b - a
	}
	return diff < nearRange
}
