package hookmgr

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// Xmm is one 128-bit vector register slot.
type Xmm [16]byte

// F32x4 interprets the slot as four single-precision floats.
func (x *Xmm) F32x4() [4]float32 {
	var v [4]float32
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(x[i*4:]))
	}
	return v
}

// SetF32x4 stores four single-precision floats into the slot.
func (x *Xmm) SetF32x4(v [4]float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(x[i*4:], math.Float32bits(f))
	}
}

// F64x2 interprets the slot as two double-precision floats.
func (x *Xmm) F64x2() [2]float64 {
	return [2]float64{
		math.Float64frombits(binary.LittleEndian.Uint64(x[0:])),
		math.Float64frombits(binary.LittleEndian.Uint64(x[8:])),
	}
}

// SetF64x2 stores two double-precision floats into the slot.
func (x *Xmm) SetF64x2(v [2]float64) {
	binary.LittleEndian.PutUint64(x[0:], math.Float64bits(v[0]))
	binary.LittleEndian.PutUint64(x[8:], math.Float64bits(v[1]))
}

// U64x2 interprets the slot as two 64-bit integers.
func (x *Xmm) U64x2() [2]uint64 {
	return [2]uint64{
		binary.LittleEndian.Uint64(x[0:]),
		binary.LittleEndian.Uint64(x[8:]),
	}
}

// RegisterContext is the register snapshot handed to mid-hook callbacks.
//
// The layout is a wire contract: 16 vector slots followed by 17 eight-byte
// fields in exactly this order, 392 bytes total. Rsp is read-only; writes to
// it are never propagated back because the engine keeps its return-address
// bookkeeping there.
type RegisterContext struct {
	Xmm    [16]Xmm
	Rflags uint64
	R15    uint64
	R14    uint64
	R13    uint64
	R12    uint64
	R11    uint64
	R10    uint64
	R9     uint64
	R8     uint64
	Rdi    uint64
	Rsi    uint64
	Rbp    uint64
	Rdx    uint64
	Rcx    uint64
	Rbx    uint64
	Rax    uint64
	Rsp    uint64
}

// ReturnAddress reads the return address currently on the stack at Rsp.
// Only meaningful when the hook fired at a function entry.
func (c *RegisterContext) ReturnAddress() uint64 {
	return *(*uint64)(unsafe.Pointer(uintptr(c.Rsp)))
}

// Arg returns the index-th integer argument under the System V AMD64
// calling convention: rdi, rsi, rdx, rcx, r8, r9, then the stack.
func (c *RegisterContext) Arg(index int) uint64 {
	switch index {
	case 0:
		return c.Rdi
	case 1:
		return c.Rsi
	case 2:
		return c.Rdx
	case 3:
		return c.Rcx
	case 4:
		return c.R8
	case 5:
		return c.R9
	default:
		// stack arguments start past the return address
		p := (*uint64)(unsafe.Pointer(uintptr(c.Rsp) + uintptr(index-5)*8))
		return *p
	}
}

// SetArg overwrites the index-th integer argument. Stack arguments cannot be
// set through the context and are ignored.
func (c *RegisterContext) SetArg(index int, value uint64) {
	switch index {
	case 0:
		c.Rdi = value
	case 1:
		c.Rsi = value
	case 2:
		c.Rdx = value
	case 3:
		c.Rcx = value
	case 4:
		c.R8 = value
	case 5:
		c.R9 = value
	}
}

// FloatArg returns the low double of the index-th vector register.
func (c *RegisterContext) FloatArg(index int) float64 {
	if index < 0 || index >= len(c.Xmm) {
		return 0
	}
	return c.Xmm[index].F64x2()[0]
}

// SetFloatArg stores a double into the low half of the index-th vector
// register, zeroing the high half.
func (c *RegisterContext) SetFloatArg(index int, value float64) {
	if index < 0 || index >= len(c.Xmm) {
		return
	}
	c.Xmm[index].SetF64x2([2]float64{value, 0})
}
