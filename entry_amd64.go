package hookmgr

/*
#include <stdint.h>

extern void hookmgrMidHookDispatch(uintptr_t ctx, uintptr_t target, uintptr_t mgr);

static uintptr_t midHookDispatchEntry(void) {
	return (uintptr_t)hookmgrMidHookDispatch;
}
*/
import "C"

// midHookEntryAddr returns the C-callable address of the dispatcher, the
// value burned into every capture stub's call site.
func midHookEntryAddr() uintptr {
	return uintptr(C.midHookDispatchEntry())
}
