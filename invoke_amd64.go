package hookmgr

/*
#include <stdint.h>

typedef uintptr_t (*callfn0)(void);
typedef uintptr_t (*callfn1)(uintptr_t);
typedef uintptr_t (*callfn2)(uintptr_t, uintptr_t);

static uintptr_t rawcall0(uintptr_t addr) {
	return ((callfn0)addr)();
}

static uintptr_t rawcall1(uintptr_t addr, uintptr_t a0) {
	return ((callfn1)addr)(a0);
}

static uintptr_t rawcall2(uintptr_t addr, uintptr_t a0, uintptr_t a1) {
	return ((callfn2)addr)(a0, a1);
}
*/
import "C"

// Call0 transfers control to raw code at addr with no arguments and returns
// the value left in rax. The usual way to invoke a trampoline returned by
// CreateInline. The transfer goes through a C thunk, which puts the calling
// thread in the cgo call state; a mid hook hit along the way can then
// reenter Go through the exported dispatcher.
func Call0(addr uintptr) uintptr {
	return uintptr(C.rawcall0(C.uintptr_t(addr)))
}

// Call1 is Call0 with one integer argument passed in rdi.
func Call1(addr, a0 uintptr) uintptr {
	return uintptr(C.rawcall1(C.uintptr_t(addr), C.uintptr_t(a0)))
}

// Call2 is Call0 with two integer arguments passed in rdi and rsi.
func Call2(addr, a0, a1 uintptr) uintptr {
	return uintptr(C.rawcall2(C.uintptr_t(addr), C.uintptr_t(a0), C.uintptr_t(a1)))
}
