// Package hookmgr installs and manages binary hooks in the running process:
// inline hooks at function entries, mid-function hooks at arbitrary
// instruction addresses with full register visibility, and vtable slot
// hooks. Hook objects live in a lock-guarded store keyed by opaque handles
// and are only ever destroyed by an explicit Destroy call; a caller that
// forgets to destroy leaves a live patch in process memory.
//
// Patching rewrites the first instructions of the target with a jump and
// preserves the displaced instruction sequence in a trampoline, so hooked
// code can still run its original semantics.
package hookmgr

import (
	"sync"
	"unsafe"

	"github.com/apex/log"
)

// Manager owns the hook store, the dispatch table and the code allocator.
// Every operation serializes on one lock for its whole duration, including
// the mid-hook firing path.
type Manager struct {
	store *store
	alloc *allocator
}

// live pins every open Manager. Generated capture stubs embed raw Manager
// addresses the collector cannot see, so a Manager must stay reachable until
// Close even when the caller drops its last reference while hooks are still
// installed.
var (
	liveMu sync.Mutex
	live   = make(map[*Manager]struct{})
)

// New creates an empty Manager. The Manager is held alive by a package-level
// registry until Close is called.
func New() *Manager {
	m := &Manager{
		store: newStore(),
		alloc: &allocator{},
	}
	liveMu.Lock()
	live[m] = struct{}{}
	liveMu.Unlock()
	return m
}

// Close destroys every live hook and releases the generated code pages.
// The Manager must not be used afterwards.
func (m *Manager) Close() {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for h, hk := range m.store.inline {
		if hk.enabled {
			if err := hk.disable(); err != nil {
				log.Errorf("close: disable inline %d: %v", h, err)
			}
		}
		delete(m.store.inline, h)
	}
	for h, hk := range m.store.mid {
		if hk.enabled {
			if err := hk.disable(); err != nil {
				log.Errorf("close: disable mid %d: %v", h, err)
			}
		}
		delete(m.store.dispatch, hk.target)
		delete(m.store.target, h)
		delete(m.store.mid, h)
	}
	for h, hk := range m.store.vt {
		if hk.enabled {
			if err := hk.disable(); err != nil {
				log.Errorf("close: disable vtable %d: %v", h, err)
			}
		}
		delete(m.store.vt, h)
	}
	m.alloc.release()

	liveMu.Lock()
	delete(live, m)
	liveMu.Unlock()
}

// CreateInline patches target's first instructions with a transfer to
// destination and returns a handle plus the trampoline entry, the only way
// to invoke the pre-hook behavior. The hook is enabled on return.
func (m *Manager) CreateInline(target, destination uintptr) (Handle, uintptr, error) {
	if target == 0 || destination == 0 {
		return 0, 0, ErrInvalid
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	hk, err := m.buildInline(target, destination)
	if err != nil {
		log.Debugf("create inline at %#x: %v", target, err)
		return 0, 0, err
	}
	if err := hk.enable(); err != nil {
		return 0, 0, err
	}
	hk.enabled = true

	h := m.store.nextInline
	m.store.nextInline++
	m.store.inline[h] = hk
	log.Infof("created inline hook %d at %#x -> %#x", h, target, destination)
	return h, hk.trampoline, nil
}

// EnableInline re-installs the patch for a disabled hook. Enabling an
// already enabled hook is a no-op. The same trampoline is reused; nothing is
// re-derived, so enabling cannot fail with a decode or relocation error.
func (m *Manager) EnableInline(h Handle) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.inline[h]
	if !ok {
		return ErrInvalid
	}
	if hk.enabled {
		return nil
	}
	if err := hk.enable(); err != nil {
		return err
	}
	hk.enabled = true
	return nil
}

// DisableInline restores the original bytes at the target. Disabling an
// already disabled hook is a no-op.
func (m *Manager) DisableInline(h Handle) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.inline[h]
	if !ok {
		return ErrInvalid
	}
	if !hk.enabled {
		return nil
	}
	if err := hk.disable(); err != nil {
		return err
	}
	hk.enabled = false
	return nil
}

// DestroyInline disables and releases the hook. Unknown handles are a no-op,
// mirroring safe-erase semantics.
func (m *Manager) DestroyInline(h Handle) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.inline[h]
	if !ok {
		return
	}
	if hk.enabled {
		if err := hk.disable(); err != nil {
			log.Errorf("destroy inline %d: restore failed: %v", h, err)
		}
	}
	delete(m.store.inline, h)
	log.Infof("destroyed inline hook %d at %#x", h, hk.target)
}

// IsInlineEnabled reports whether the hook is installed and enabled.
// Unknown handles read as false.
func (m *Manager) IsInlineEnabled(h Handle) bool {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.inline[h]
	return ok && hk.enabled
}

// InlineTrampoline returns the trampoline entry for the hook, or zero for
// unknown handles.
func (m *Manager) InlineTrampoline(h Handle) uintptr {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.inline[h]
	if !ok {
		return 0
	}
	return hk.trampoline
}

// CreateMid installs a mid-function hook at target. Every time the address
// executes, callback receives the full register context; mutations to
// everything but Rsp are applied before execution resumes. The dispatch
// entry is registered before the patch goes in and rolled back if patching
// fails, so a dispatch entry exists exactly when its hook object does.
func (m *Manager) CreateMid(target uintptr, callback MidCallback, userData unsafe.Pointer) (Handle, error) {
	if target == 0 || callback == nil {
		return 0, ErrInvalid
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	if _, exists := m.store.dispatch[target]; exists {
		return 0, ErrInvalid
	}
	m.store.dispatch[target] = dispatchEntry{
		target:   target,
		callback: callback,
		userData: userData,
	}

	hk, err := m.buildMid(target)
	if err == nil {
		if werr := hk.enable(); werr != nil {
			err = werr
		}
	}
	if err != nil {
		delete(m.store.dispatch, target)
		log.Debugf("create mid at %#x: %v", target, err)
		return 0, err
	}
	hk.enabled = true

	h := m.store.nextMid
	m.store.nextMid++
	m.store.mid[h] = hk
	m.store.target[h] = target
	log.Infof("created mid hook %d at %#x", h, target)
	return h, nil
}

// EnableMid re-installs the patch for a disabled mid hook.
func (m *Manager) EnableMid(h Handle) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.mid[h]
	if !ok {
		return ErrInvalid
	}
	if hk.enabled {
		return nil
	}
	if err := hk.enable(); err != nil {
		return err
	}
	hk.enabled = true
	return nil
}

// DisableMid restores the original bytes at the target. No firing is
// possible once this returns.
func (m *Manager) DisableMid(h Handle) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.mid[h]
	if !ok {
		return ErrInvalid
	}
	if !hk.enabled {
		return nil
	}
	if err := hk.disable(); err != nil {
		return err
	}
	hk.enabled = false
	return nil
}

// DestroyMid disables the hook, removes its dispatch entry and releases the
// object, all under one continuous lock hold so a concurrent firing can
// never observe a half-torn-down entry. Unknown handles are a no-op.
func (m *Manager) DestroyMid(h Handle) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.mid[h]
	if !ok {
		return
	}
	if hk.enabled {
		if err := hk.disable(); err != nil {
			log.Errorf("destroy mid %d: restore failed: %v", h, err)
		}
	}
	if target, ok := m.store.target[h]; ok {
		delete(m.store.dispatch, target)
		delete(m.store.target, h)
	}
	delete(m.store.mid, h)
	log.Infof("destroyed mid hook %d at %#x", h, hk.target)
}

// IsMidEnabled reports whether the mid hook is installed and enabled.
// Unknown handles read as false.
func (m *Manager) IsMidEnabled(h Handle) bool {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.mid[h]
	return ok && hk.enabled
}

// SetDebug toggles verbose engine logging.
func SetDebug(on bool) {
	if on {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// std is the package-level manager used by the convenience functions below.
var std = New()

// CreateInline installs an inline hook through the default manager.
func CreateInline(target, destination uintptr) (Handle, uintptr, error) {
	return std.CreateInline(target, destination)
}

// CreateMid installs a mid-function hook through the default manager.
func CreateMid(target uintptr, callback MidCallback, userData unsafe.Pointer) (Handle, error) {
	return std.CreateMid(target, callback, userData)
}

// Default returns the package-level manager.
func Default() *Manager {
	return std
}
