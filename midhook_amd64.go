//go:build unix

package hookmgr

import (
	"encoding/binary"
	"unsafe"
)

// midHook owns one mid-function patch and its generated capture stub. The
// stub builds a nativeContext on the stack, hands it to the fixed dispatch
// entry point together with its own target identity, restores every register
// from the possibly mutated context (except rsp), then runs the displaced
// instructions and jumps back.
type midHook struct {
	target   uintptr
	original []byte
	patch    []byte
	stub     uintptr
	enabled  bool
}

func (h *midHook) enable() error {
	return writeCode(h.target, h.patch)
}

func (h *midHook) disable() error {
	return writeCode(h.target, h.original)
}

// push order building nativeContext in memory, lowest address last:
// rsp, rbp, rax, rbx, rcx, rdx, rsi, rdi, r8..r15, rflags, xmm spill below.
var capturePushes = []byte{
	0x54,       // push rsp
	0x55,       // push rbp
	0x50,       // push rax
	0x53,       // push rbx
	0x51,       // push rcx
	0x52,       // push rdx
	0x56,       // push rsi
	0x57,       // push rdi
	0x41, 0x50, // push r8
	0x41, 0x51, // push r9
	0x41, 0x52, // push r10
	0x41, 0x53, // push r11
	0x41, 0x54, // push r12
	0x41, 0x55, // push r13
	0x41, 0x56, // push r14
	0x41, 0x57, // push r15
	0x9c, // pushfq
}

var capturePops = []byte{
	0x9d,       // popfq
	0x41, 0x5f, // pop r15
	0x41, 0x5e, // pop r14
	0x41, 0x5d, // pop r13
	0x41, 0x5c, // pop r12
	0x41, 0x5b, // pop r11
	0x41, 0x5a, // pop r10
	0x41, 0x59, // pop r9
	0x41, 0x58, // pop r8
	0x5f,                   // pop rdi
	0x5e,                   // pop rsi
	0x5a,                   // pop rdx
	0x59,                   // pop rcx
	0x5b,                   // pop rbx
	0x58,                   // pop rax
	0x5d,                   // pop rbp
	0x48, 0x83, 0xc4, 0x08, // add rsp, 8 (captured rsp slot, never restored)
}

const xmmSpillSize = 256

// emitXmmSpill appends movups stores (or loads) for xmm0..xmm15 relative to rsp.
func emitXmmSpill(code []byte, load bool) []byte {
	op := byte(0x11)
	if load {
		op = 0x10
	}
	for i := 0; i < 16; i++ {
		if i >= 8 {
			code = append(code, 0x44) // REX.R
		}
		code = append(code, 0x0f, op)
		reg := byte(i%8) << 3
		disp := i * 16
		if disp < 128 {
			code = append(code, 0x44|reg, 0x24, byte(disp))
		} else {
			code = append(code, 0x84|reg, 0x24)
			var d [4]byte
			binary.LittleEndian.PutUint32(d[:], uint32(disp))
			code = append(code, d[:]...)
		}
	}
	return code
}

func appendImm64(code []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(code, b[:]...)
}

// buildMid constructs a disabled mid-function hook: capture stub written,
// patch bytes prepared, nothing yet installed at the target.
func (m *Manager) buildMid(target uintptr) (*midHook, error) {
	insts, length, err := decodePatchRegion(target, jmpRel32Len)
	if err != nil {
		return nil, err
	}

	// prologue and epilogue sizes are fixed, so the stub size is known up front
	var capture []byte
	capture = append(capture, capturePushes...)
	capture = append(capture, 0x48, 0x81, 0xec, 0x00, 0x01, 0x00, 0x00) // sub rsp, 256
	capture = emitXmmSpill(capture, false)
	capture = append(capture, 0x48, 0x89, 0xe7) // mov rdi, rsp (context)
	capture = append(capture, 0x48, 0xbe)       // mov rsi, target
	capture = appendImm64(capture, uint64(target))
	capture = append(capture, 0x48, 0xba) // mov rdx, manager
	capture = appendImm64(capture, uint64(uintptr(unsafe.Pointer(m))))
	capture = append(capture, 0x48, 0x89, 0xe5)       // mov rbp, rsp
	capture = append(capture, 0x48, 0x83, 0xe4, 0xf0) // and rsp, -16
	capture = append(capture, 0x48, 0xb8)             // mov rax, entry
	capture = appendImm64(capture, uint64(midHookEntryAddr()))
	capture = append(capture, 0xff, 0xd0)       // call rax
	capture = append(capture, 0x48, 0x89, 0xec) // mov rsp, rbp
	capture = emitXmmSpill(capture, true)
	capture = append(capture, 0x48, 0x81, 0xc4, 0x00, 0x01, 0x00, 0x00) // add rsp, 256
	capture = append(capture, capturePops...)

	stubSize := len(capture) + length + jmpAbsLen
	stub, near, err := m.alloc.alloc(target, uintptr(stubSize))
	if err != nil {
		return nil, err
	}
	if !near || outOfRel32(target, stub) {
		// the five-byte redirect cannot reach the stub
		return nil, ErrNotEnoughSpace
	}

	body, err := relocate(insts, target, stub+uintptr(len(capture)))
	if err != nil {
		return nil, err
	}
	code := append(capture, body...)

	resume := target + uintptr(length)
	code = append(code, jmpRel32(stub+uintptr(len(code)), resume)...)
	if err := writeCode(stub, code); err != nil {
		return nil, err
	}

	patch := jmpRel32(target, stub)
	for len(patch) < length {
		patch = append(patch, 0x90)
	}

	original := make([]byte, length)
	copy(original, makeSlice(target, uintptr(length)))

	return &midHook{
		target:   target,
		original: original,
		patch:    patch,
		stub:     stub,
	}, nil
}
