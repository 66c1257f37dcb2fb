package hookmgr

import "unsafe"

// Boundary is the foreign-function flavor of the lifecycle API: the same
// operations as Manager, but reporting flat result codes instead of Go
// errors so callers across a language boundary can branch on a plain
// integer. Handles are the same opaque tokens the Manager issues.
type Boundary struct {
	m *Manager
}

// NewBoundary wraps a Manager in the code-returning surface.
func NewBoundary(m *Manager) *Boundary {
	return &Boundary{m: m}
}

func (b *Boundary) CreateInline(target, destination uintptr) (Handle, uintptr, Code) {
	h, tramp, err := b.m.CreateInline(target, destination)
	return h, tramp, CodeOf(err)
}

func (b *Boundary) EnableInline(h Handle) Code {
	return CodeOf(b.m.EnableInline(h))
}

func (b *Boundary) DisableInline(h Handle) Code {
	return CodeOf(b.m.DisableInline(h))
}

func (b *Boundary) DestroyInline(h Handle) {
	b.m.DestroyInline(h)
}

func (b *Boundary) IsInlineEnabled(h Handle) bool {
	return b.m.IsInlineEnabled(h)
}

func (b *Boundary) InlineTrampoline(h Handle) uintptr {
	return b.m.InlineTrampoline(h)
}

func (b *Boundary) CreateMid(target uintptr, callback MidCallback, userData unsafe.Pointer) (Handle, Code) {
	h, err := b.m.CreateMid(target, callback, userData)
	return h, CodeOf(err)
}

func (b *Boundary) EnableMid(h Handle) Code {
	return CodeOf(b.m.EnableMid(h))
}

func (b *Boundary) DisableMid(h Handle) Code {
	return CodeOf(b.m.DisableMid(h))
}

func (b *Boundary) DestroyMid(h Handle) {
	b.m.DestroyMid(h)
}

func (b *Boundary) IsMidEnabled(h Handle) bool {
	return b.m.IsMidEnabled(h)
}
