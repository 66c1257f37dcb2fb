package hookmgr

import "C"

import "unsafe"

// hookmgrMidHookDispatch is the C-callable dispatcher every generated capture
// stub calls. Entering Go through a cgo export lands on a runtime-managed
// stack: the stub itself runs on whatever stack the interrupted thread had,
// which the scheduler can neither grow nor unwind, so no Go code may run
// there directly. The export wrapper also picks up threads the runtime has
// never seen, so hooks can fire on foreign host threads.
//
//export hookmgrMidHookDispatch
func hookmgrMidHookDispatch(ctx, target, mgr uintptr) {
	dispatchMid((*nativeContext)(unsafe.Pointer(ctx)), target, (*Manager)(unsafe.Pointer(mgr)))
}

// dispatchMid is the single shared dispatcher for mid-function hooks. It
// runs with the firing thread's registers parked in ctx. The lookup is keyed
// by the target identity the stub embeds at creation time, so multiple mid
// hooks can be live at once; destruction is serialized behind the same lock,
// so a firing either sees a complete dispatch entry or none at all. With no
// matching entry the context is left untouched and execution resumes.
func dispatchMid(ctx *nativeContext, target uintptr, m *Manager) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	e, ok := m.store.dispatch[target]
	if !ok {
		return
	}
	var cc RegisterContext
	toConsumer(ctx, &cc)
	e.callback(&cc, e.userData)
	fromConsumer(&cc, ctx)
}
