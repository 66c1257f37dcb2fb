package hookmgr

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInlineRedirects(t *testing.T) {
	m := New()
	defer m.Close()
	page := newCodePage(t)

	target := page
	dest := page + 512
	emitReturnConst(t, target, 1)
	emitReturnConst(t, dest, 2)

	h, tramp, err := m.CreateInline(target, dest)
	require.NoError(t, err)
	require.NotZero(t, h)
	require.NotZero(t, tramp)
	assert.True(t, m.IsInlineEnabled(h))

	assert.Equal(t, uintptr(2), Call0(target), "hooked target runs destination")
	assert.Equal(t, uintptr(1), Call0(tramp), "trampoline keeps original semantics")

	require.NoError(t, m.DisableInline(h))
	assert.False(t, m.IsInlineEnabled(h))
	assert.Equal(t, uintptr(1), Call0(target), "disabled hook restores original code")

	require.NoError(t, m.EnableInline(h))
	assert.Equal(t, uintptr(2), Call0(target))
	assert.Equal(t, tramp, m.InlineTrampoline(h), "trampoline address is stable")
}

func TestCreateDestroyRestoresOriginalBytes(t *testing.T) {
	m := New()
	defer m.Close()
	page := newCodePage(t)

	target := page
	dest := page + 512
	emitReturnConst(t, target, 10)
	emitReturnConst(t, dest, 20)
	before := snapshot(target, 16)

	h, _, err := m.CreateInline(target, dest)
	require.NoError(t, err)
	require.NotEqual(t, before, snapshot(target, 16))

	m.DestroyInline(h)
	assert.Equal(t, before, snapshot(target, 16))
	assert.False(t, m.IsInlineEnabled(h))
}

func TestHandleUniqueness(t *testing.T) {
	m := New()
	defer m.Close()
	page := newCodePage(t)
	dest := page + 2048
	emitReturnConst(t, dest, 0)

	seen := make(map[Handle]bool)
	for i := 0; i < 8; i++ {
		target := page + uintptr(i)*64
		emitReturnConst(t, target, uint32(i))
		h, _, err := m.CreateInline(target, dest)
		require.NoError(t, err)
		require.False(t, seen[h], "handle %d reused", h)
		seen[h] = true
		if i%2 == 0 {
			m.DestroyInline(h)
		}
	}
}

func TestDestroyUnknownIsNoOp(t *testing.T) {
	m := New()
	defer m.Close()
	page := newCodePage(t)
	target := page
	dest := page + 512
	emitReturnConst(t, target, 1)
	emitReturnConst(t, dest, 2)

	m.DestroyInline(12345)
	m.DestroyMid(12345)

	h, _, err := m.CreateInline(target, dest)
	require.NoError(t, err)
	m.DestroyInline(h)
	m.DestroyInline(h) // second destroy of the same handle
	assert.Equal(t, uintptr(1), Call0(target))
}

func TestEnableDisableIdempotent(t *testing.T) {
	m := New()
	defer m.Close()
	page := newCodePage(t)
	target := page
	dest := page + 512
	emitReturnConst(t, target, 1)
	emitReturnConst(t, dest, 2)

	h, _, err := m.CreateInline(target, dest)
	require.NoError(t, err)

	require.NoError(t, m.EnableInline(h)) // already enabled
	patched := snapshot(target, 16)
	require.NoError(t, m.EnableInline(h))
	assert.Equal(t, patched, snapshot(target, 16))

	require.NoError(t, m.DisableInline(h))
	restored := snapshot(target, 16)
	require.NoError(t, m.DisableInline(h))
	assert.Equal(t, restored, snapshot(target, 16))
}

func TestInvalidArguments(t *testing.T) {
	m := New()
	defer m.Close()
	page := newCodePage(t)
	emitReturnConst(t, page, 1)

	h, tramp, err := m.CreateInline(0, page)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Zero(t, h)
	assert.Zero(t, tramp)

	h, tramp, err = m.CreateInline(page, 0)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Zero(t, h)
	assert.Zero(t, tramp)

	mh, err := m.CreateMid(0, func(*RegisterContext, unsafe.Pointer) {}, nil)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Zero(t, mh)

	mh, err = m.CreateMid(page, nil, nil)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Zero(t, mh)
}

func TestUnknownHandleMutatorsFail(t *testing.T) {
	m := New()
	defer m.Close()

	assert.ErrorIs(t, m.EnableInline(999), ErrInvalid)
	assert.ErrorIs(t, m.DisableInline(999), ErrInvalid)
	assert.ErrorIs(t, m.EnableMid(999), ErrInvalid)
	assert.ErrorIs(t, m.DisableMid(999), ErrInvalid)
}

func TestQueryUnknownSafeDefaults(t *testing.T) {
	m := New()
	defer m.Close()

	assert.False(t, m.IsInlineEnabled(999))
	assert.Zero(t, m.InlineTrampoline(999))
	assert.False(t, m.IsMidEnabled(999))
}

func TestTwoInlineHooksIndependent(t *testing.T) {
	m := New()
	defer m.Close()
	page := newCodePage(t)

	t1, t2 := page, page+64
	d1, d2 := page+512, page+576
	emitReturnConst(t, t1, 1)
	emitReturnConst(t, t2, 2)
	emitReturnConst(t, d1, 11)
	emitReturnConst(t, d2, 22)

	h1, _, err := m.CreateInline(t1, d1)
	require.NoError(t, err)
	h2, tramp2, err := m.CreateInline(t2, d2)
	require.NoError(t, err)

	m.DestroyInline(h1)

	assert.False(t, m.IsMidEnabled(h2), "inline handles are not mid handles")
	assert.True(t, m.IsInlineEnabled(h2))
	assert.Equal(t, tramp2, m.InlineTrampoline(h2))
	assert.Equal(t, uintptr(22), Call0(t2))
	assert.Equal(t, uintptr(1), Call0(t1))
}

// closeVTable backs the vtable hook in the close test; slot addresses must
// point at non-moving memory.
var closeVTable [2]uintptr

func TestManagerCloseDestroysEverything(t *testing.T) {
	m := New()
	page := newCodePage(t)
	target := page
	dest := page + 512
	emitReturnConst(t, target, 1)
	emitReturnConst(t, dest, 2)
	before := snapshot(target, 16)

	_, _, err := m.CreateInline(target, dest)
	require.NoError(t, err)

	closeVTable = [2]uintptr{0x1111, 0x2222}
	_, _, err = m.CreateVTableDirect(uintptr(unsafe.Pointer(&closeVTable[0])), 1, 0x3333)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x3333), closeVTable[1])

	m.Close()

	assert.Equal(t, before, snapshot(target, 16))
	assert.Equal(t, uintptr(0x2222), closeVTable[1], "vtable slot restored on close")
}

func TestManagerPinnedUntilClose(t *testing.T) {
	m := New()

	liveMu.Lock()
	_, pinned := live[m]
	liveMu.Unlock()
	require.True(t, pinned, "open manager must be reachable through the registry")

	m.Close()
	liveMu.Lock()
	_, pinned = live[m]
	liveMu.Unlock()
	assert.False(t, pinned)
}
