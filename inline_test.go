package hookmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePatchRegionCoversWholeInstructions(t *testing.T) {
	page := newCodePage(t)
	emitReturnConst(t, page, 42) // mov rax, 42 is seven bytes

	insts, length, err := decodePatchRegion(page, jmpRel32Len)
	require.NoError(t, err)
	assert.Equal(t, 7, length, "five needed bytes round up to the mov")
	assert.Len(t, insts, 1)

	insts, length, err = decodePatchRegion(page, jmpAbsLen)
	require.NoError(t, err)
	assert.Equal(t, 13, length, "mov plus six nops")
	assert.Len(t, insts, 7)
}

func TestDecodePatchRegionErrors(t *testing.T) {
	page := newCodePage(t)
	emitUndecodable(t, page)

	_, _, err := decodePatchRegion(page, jmpRel32Len)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestScratchRegs(t *testing.T) {
	page := newCodePage(t)
	emitReturnConst(t, page, 42) // writes rax

	insts, _, err := decodePatchRegion(page, jmpAbsLen)
	require.NoError(t, err)
	axFree, r11Free := scratchRegs(insts)
	assert.False(t, axFree)
	assert.True(t, r11Free)
}

func TestJmpEncodings(t *testing.T) {
	seq := jmpRel32(0x1000, 0x2000)
	assert.Equal(t, []byte{0xe9, 0xfb, 0x0f, 0x00, 0x00}, seq)

	// backwards jump
	seq = jmpRel32(0x2000, 0x1000)
	assert.Equal(t, []byte{0xe9, 0xfb, 0xef, 0xff, 0xff}, seq)

	assert.Len(t, jmpAbs(0xdead, true), 13)
	assert.Len(t, jmpAbs(0xdead, false), 12)
}

func TestRelocateVerbatim(t *testing.T) {
	page := newCodePage(t)
	emitReturnConst(t, page, 42)

	insts, length, err := decodePatchRegion(page, jmpAbsLen)
	require.NoError(t, err)
	out, err := relocate(insts, page, page+4096)
	require.NoError(t, err)
	assert.Equal(t, snapshot(page, length), out, "position-independent code copies unchanged")
}

func TestRelocateFixesRIPRelativeDisplacement(t *testing.T) {
	page := newCodePage(t)
	// lea rax, [rip+0x10]; nop; nop; ret
	code := []byte{0x48, 0x8d, 0x05, 0x10, 0x00, 0x00, 0x00, 0x90, 0x90, 0xc3}
	require.NoError(t, writeCode(page, code))

	insts, _, err := decodePatchRegion(page, jmpRel32Len)
	require.NoError(t, err)

	dst := page - 0x100
	out, err := relocate(insts, page, dst)
	require.NoError(t, err)
	// moving the instruction back by 0x100 grows the displacement by 0x100
	assert.Equal(t, []byte{0x48, 0x8d, 0x05, 0x10, 0x01, 0x00, 0x00}, out)
}

func TestRelocateRejectsOutOfRangeDisplacement(t *testing.T) {
	page := newCodePage(t)
	code := []byte{0x48, 0x8d, 0x05, 0x10, 0x00, 0x00, 0x00, 0x90, 0x90, 0xc3}
	require.NoError(t, writeCode(page, code))

	insts, _, err := decodePatchRegion(page, jmpRel32Len)
	require.NoError(t, err)

	_, err = relocate(insts, page, page-0x80000000)
	assert.ErrorIs(t, err, ErrIPRelative)
}

func TestRelocateRejectsRelativeBranch(t *testing.T) {
	page := newCodePage(t)
	// jmp rel32 inside the displaced region cannot be carried over
	code := []byte{0xe9, 0x00, 0x01, 0x00, 0x00, 0x90, 0x90, 0xc3}
	require.NoError(t, writeCode(page, code))

	insts, _, err := decodePatchRegion(page, jmpRel32Len)
	require.NoError(t, err)

	_, err = relocate(insts, page, page+4096)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestOutOfRel32(t *testing.T) {
	assert.False(t, outOfRel32(0x1000, 0x2000))
	assert.False(t, outOfRel32(0x2000, 0x1000))
	assert.True(t, outOfRel32(0x1000, 0x1000+0x80000010))

	// the displacement is taken from the end of the five-byte jump, so the
	// backward limit falls jmpRel32Len short of a full int32
	base := uintptr(0x200000000)
	assert.False(t, outOfRel32(base, base-0x80000000+jmpRel32Len))
	assert.True(t, outOfRel32(base, base-0x80000000+jmpRel32Len-1))
	assert.True(t, outOfRel32(base, base-0x80000000))
}
