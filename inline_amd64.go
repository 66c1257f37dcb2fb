//go:build unix

package hookmgr

import (
	"encoding/binary"
	"math"

	"golang.org/x/arch/x86/x86asm"
)

const (
	// bytes of target memory examined when sizing a patch
	scanWindow = 32

	jmpRel32Len = 5
	jmpAbsLen   = 13
)

// inlineHook owns one entry-point redirect: the displaced original bytes,
// the patch that replaces them, and the trampoline that still runs the
// original semantics. The trampoline address is stable for the object's
// lifetime; enable and disable only swap bytes at the target.
type inlineHook struct {
	target      uintptr
	destination uintptr
	original    []byte
	patch       []byte
	trampoline  uintptr
	enabled     bool
}

func (h *inlineHook) enable() error {
	return writeCode(h.target, h.patch)
}

func (h *inlineHook) disable() error {
	return writeCode(h.target, h.original)
}

// decoded is one displaced instruction plus its offset from the patch site.
type decoded struct {
	inst x86asm.Inst
	off  int
}

// decodePatchRegion decodes whole instructions at target until at least
// need bytes are covered.
func decodePatchRegion(target uintptr, need int) ([]decoded, int, error) {
	src := makeSlice(target, scanWindow)
	var insts []decoded
	length := 0
	for length < need {
		if length >= scanWindow {
			return nil, 0, ErrNotEnoughSpace
		}
		inst, err := x86asm.Decode(src[length:], 64)
		if err != nil {
			return nil, 0, ErrDecode
		}
		insts = append(insts, decoded{inst: inst, off: length})
		length += inst.Len
	}
	return insts, length, nil
}

// scratchRegs reports which of rax and r11 the displaced instructions leave
// untouched, so an absolute-jump sequence can borrow one.
func scratchRegs(insts []decoded) (axFree, r11Free bool) {
	axFree, r11Free = true, true
	for _, d := range insts {
		for _, a := range d.inst.Args {
			if a == nil {
				break
			}
			switch a {
			case x86asm.RAX, x86asm.EAX, x86asm.AX, x86asm.AH, x86asm.AL:
				axFree = false
			case x86asm.R11, x86asm.R11L, x86asm.R11W, x86asm.R11B:
				r11Free = false
			}
		}
	}
	return axFree, r11Free
}

// jmpRel32 encodes JMP rel32 from the instruction at from to to.
func jmpRel32(from, to uintptr) []byte {
	rel := int64(to) - int64(from) - jmpRel32Len
	seq := make([]byte, jmpRel32Len)
	seq[0] = 0xe9
	binary.LittleEndian.PutUint32(seq[1:], uint32(int32(rel)))
	return seq
}

// jmpAbs encodes MOVABS scratch, to; JMP scratch. With r11 the sequence is
// 13 bytes, with rax 12.
func jmpAbs(to uintptr, useR11 bool) []byte {
	var seq []byte
	if useR11 {
		seq = append(seq, 0x49, 0xbb)
	} else {
		seq = append(seq, 0x48, 0xb8)
	}
	var addr [8]byte
	binary.LittleEndian.PutUint64(addr[:], uint64(to))
	seq = append(seq, addr[:]...)
	if useR11 {
		seq = append(seq, 0x41, 0xff, 0xe3)
	} else {
		seq = append(seq, 0xff, 0xe0)
	}
	return seq
}

// outOfRel32 reports whether to is unreachable from a five-byte jmp rel32 at
// from. The encoded displacement is relative to the end of the jump, so the
// reachable window shifts by the instruction length on the negative side.
func outOfRel32(from, to uintptr) bool {
	diff := int64(to) - int64(from)
	return diff > math.MaxInt32 || diff < math.MinInt32+jmpRel32Len
}

// relocate copies the displaced instructions to their new home, fixing up
// four-byte IP-relative displacements. Relative branches inside the patched
// region cannot be carried over.
func relocate(insts []decoded, src, dst uintptr) ([]byte, error) {
	out := make([]byte, 0, scanWindow)
	for _, d := range insts {
		raw := make([]byte, d.inst.Len)
		copy(raw, makeSlice(src+uintptr(d.off), uintptr(d.inst.Len)))
		if d.inst.PCRel == 0 {
			out = append(out, raw...)
			continue
		}
		for _, a := range d.inst.Args {
			if _, ok := a.(x86asm.Rel); ok {
				return nil, ErrUnsupported
			}
		}
		if d.inst.PCRel != 4 {
			return nil, ErrUnsupported
		}
		// same instruction length on both sides, so the delta between the
		// old and new instruction start carries over to the displacement
		oldDisp := int32(binary.LittleEndian.Uint32(raw[d.inst.PCRelOff:]))
		delta := int64(src+uintptr(d.off)) - int64(dst+uintptr(len(out)))
		newDisp := int64(oldDisp) + delta
		if newDisp > math.MaxInt32 || newDisp < math.MinInt32 {
			return nil, ErrIPRelative
		}
		binary.LittleEndian.PutUint32(raw[d.inst.PCRelOff:], uint32(int32(newDisp)))
		out = append(out, raw...)
	}
	return out, nil
}

// buildInline constructs a disabled inline hook: trampoline written, patch
// bytes prepared, nothing yet installed at the target.
func (m *Manager) buildInline(target, destination uintptr) (*inlineHook, error) {
	direct := !outOfRel32(target, destination)
	need := jmpRel32Len
	if !direct {
		need = jmpAbsLen
	}

	insts, length, err := decodePatchRegion(target, need)
	if err != nil {
		return nil, err
	}
	axFree, r11Free := scratchRegs(insts)

	tramp, near, err := m.alloc.alloc(target, uintptr(length+jmpAbsLen))
	if err != nil {
		return nil, err
	}

	body, err := relocate(insts, target, tramp)
	if err != nil {
		return nil, err
	}

	// jump from the trampoline back into the unmodified remainder
	resume := target + uintptr(length)
	jmpBackAt := tramp + uintptr(len(body))
	var back []byte
	switch {
	case near && !outOfRel32(jmpBackAt, resume):
		back = jmpRel32(jmpBackAt, resume)
	case r11Free:
		back = jmpAbs(resume, true)
	case axFree:
		back = jmpAbs(resume, false)
	default:
		return nil, ErrUnsupported
	}
	if err := writeCode(tramp, append(body, back...)); err != nil {
		return nil, err
	}

	var patch []byte
	switch {
	case direct:
		patch = jmpRel32(target, destination)
	case r11Free:
		patch = jmpAbs(destination, true)
	case axFree:
		patch = jmpAbs(destination, false)
	default:
		return nil, ErrUnsupported
	}
	for len(patch) < length {
		patch = append(patch, 0x90)
	}

	original := make([]byte, length)
	copy(original, makeSlice(target, uintptr(length)))

	return &inlineHook{
		target:      target,
		destination: destination,
		original:    original,
		patch:       patch,
		trampoline:  tramp,
	}, nil
}
