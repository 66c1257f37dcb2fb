//go:build unix

package hookmgr

import (
	"unsafe"

	"github.com/apex/log"
)

// vtableHook owns one replaced virtual-table slot. No code is generated;
// enabling and disabling swap a single pointer under the store lock.
type vtableHook struct {
	slot        uintptr // address of the vtable entry
	original    uintptr
	replacement uintptr
	enabled     bool
}

// write swaps the slot pointer. The page is widened to writable once and
// left that way: the slot's prior protection cannot be queried portably, and
// narrowing a data page that the host still writes through would be worse
// than leaving it loose.
func (h *vtableHook) write(fn uintptr) error {
	if err := protectPages(h.slot, unsafe.Sizeof(fn)); err != nil {
		return err
	}
	*(*uintptr)(unsafe.Pointer(h.slot)) = fn
	return nil
}

func (h *vtableHook) enable() error {
	return h.write(h.replacement)
}

func (h *vtableHook) disable() error {
	return h.write(h.original)
}

// CreateVTable replaces entry index of object's virtual table with
// replacement and returns a handle plus the original function pointer. The
// hook is enabled on return.
func (m *Manager) CreateVTable(object uintptr, index uint, replacement uintptr) (Handle, uintptr, error) {
	if object == 0 || replacement == 0 {
		return 0, 0, ErrInvalid
	}
	vtable := *(*uintptr)(unsafe.Pointer(object))
	return m.CreateVTableDirect(vtable, index, replacement)
}

// CreateVTableDirect is CreateVTable for callers that already hold the
// vtable pointer itself. The table must live in non-moving memory, such as a
// loaded image or the heap, never a goroutine stack: the hook records the
// slot address and writes through it on every later transition.
func (m *Manager) CreateVTableDirect(vtable uintptr, index uint, replacement uintptr) (Handle, uintptr, error) {
	if vtable == 0 || replacement == 0 {
		return 0, 0, ErrInvalid
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	slot := vtable + uintptr(index)*unsafe.Sizeof(uintptr(0))
	hk := &vtableHook{
		slot:        slot,
		original:    *(*uintptr)(unsafe.Pointer(slot)),
		replacement: replacement,
	}
	if err := hk.write(replacement); err != nil {
		return 0, 0, err
	}
	hk.enabled = true

	h := m.store.nextVT
	m.store.nextVT++
	m.store.vt[h] = hk
	log.Infof("created vtable hook %d, slot %#x -> %#x", h, slot, replacement)
	return h, hk.original, nil
}

// EnableVTable re-installs the replacement pointer.
func (m *Manager) EnableVTable(h Handle) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.vt[h]
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

// DisableVTable restores the original pointer.
func (m *Manager) DisableVTable(h Handle) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.vt[h]
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

// DestroyVTable restores the slot and releases the hook. Unknown handles are
// a no-op.
func (m *Manager) DestroyVTable(h Handle) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.vt[h]
	if !ok {
		return
	}
	if hk.enabled {
		if err := hk.disable(); err != nil {
			log.Errorf("destroy vtable %d: restore failed: %v", h, err)
		}
	}
	delete(m.store.vt, h)
}

// IsVTableEnabled reports whether the slot currently holds the replacement.
// Unknown handles read as false.
func (m *Manager) IsVTableEnabled(h Handle) bool {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	hk, ok := m.store.vt[h]
	return ok && hk.enabled
}
