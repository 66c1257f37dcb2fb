package hookmgr

import (
	"sync"
	"unsafe"
)

// Handle names one live hook. Handles are unique for the life of the process
// and are never reused, even after the hook they named is destroyed.
type Handle uint64

// MidCallback is invoked every time a mid-function hook fires. The context
// may be mutated; every field except Rsp is written back before execution
// resumes.
type MidCallback func(ctx *RegisterContext, userData unsafe.Pointer)

type dispatchEntry struct {
	target   uintptr
	callback MidCallback
	userData unsafe.Pointer
}

// store owns every hook object created through a Manager. It is the only
// place hook objects are destroyed. All maps and counters are guarded by mu,
// including on the hook-firing path.
type store struct {
	mu sync.Mutex

	inline map[Handle]*inlineHook
	mid    map[Handle]*midHook
	vt     map[Handle]*vtableHook

	// dispatch entries keyed by target address, plus the handle-to-target
	// index used for cleanup
	dispatch map[uintptr]dispatchEntry
	target   map[Handle]uintptr

	nextInline Handle
	nextMid    Handle
	nextVT     Handle
}

func newStore() *store {
	return &store{
		inline:     make(map[Handle]*inlineHook),
		mid:        make(map[Handle]*midHook),
		vt:         make(map[Handle]*vtableHook),
		dispatch:   make(map[uintptr]dispatchEntry),
		target:     make(map[Handle]uintptr),
		nextInline: 1,
		nextMid:    1,
		nextVT:     1,
	}
}
