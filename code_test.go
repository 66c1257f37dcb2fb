package hookmgr

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newCodePage maps one executable page for freshly generated test functions.
func newCodePage(t *testing.T) uintptr {
	t.Helper()
	b, err := unix.Mmap(-1, 0, int(pageSize),
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Munmap(b) })
	return sliceAddr(b)
}

// emitReturnConst writes a relocatable function at addr:
//
//	mov rax, val; nop*7; ret
//
// Fifteen bytes total, enough room for either redirect variant.
func emitReturnConst(t *testing.T, addr uintptr, val uint32) {
	t.Helper()
	code := make([]byte, 0, 16)
	code = append(code, 0x48, 0xc7, 0xc0,
		byte(val), byte(val>>8), byte(val>>16), byte(val>>24))
	for len(code) < 14 {
		code = append(code, 0x90)
	}
	code = append(code, 0xc3)
	require.NoError(t, writeCode(addr, code))
}

// emitReturnArg0 writes a function returning its first integer argument:
//
//	mov rax, rdi; nop*11; ret
func emitReturnArg0(t *testing.T, addr uintptr) {
	t.Helper()
	code := make([]byte, 0, 16)
	code = append(code, 0x48, 0x89, 0xf8)
	for len(code) < 14 {
		code = append(code, 0x90)
	}
	code = append(code, 0xc3)
	require.NoError(t, writeCode(addr, code))
}

// emitUndecodable fills the region with bytes that are not valid 64-bit
// instructions.
func emitUndecodable(t *testing.T, addr uintptr) {
	t.Helper()
	code := make([]byte, 16)
	for i := range code {
		code[i] = 0x06 // push es, invalid in 64-bit mode
	}
	require.NoError(t, writeCode(addr, code))
}

func snapshot(addr uintptr, n int) []byte {
	out := make([]byte, n)
	copy(out, makeSlice(addr, uintptr(n)))
	return out
}
