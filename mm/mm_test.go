package mm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukernel/mm"
	"ukernel/serr"
)

const PGSZ = 4096

func newMemorySet(nframe int) (*mm.Frames, *mm.MemorySet) {
	fr := mm.NewFrames(PGSZ, nframe)
	return fr, mm.NewMemorySet(fr)
}

func TestInsertOverlap(t *testing.T) {
	fr, ms := newMemorySet(16)
	err := ms.Insert(0x10000, 0x12000, mm.PERM_U|mm.PERM_R)
	require.Nil(t, err)
	assert.Equal(t, 14, fr.NFree())

	err = ms.Insert(0x11000, 0x13000, mm.PERM_U|mm.PERM_R)
	assert.True(t, serr.IsErrCode(err, serr.TErrExists))
	assert.Equal(t, 14, fr.NFree())
	_, ok := ms.Translate(mm.Floor(0x12000, PGSZ))
	assert.False(t, ok)

	// Adjacent is fine.
	err = ms.Insert(0x12000, 0x13000, mm.PERM_U|mm.PERM_W)
	assert.Nil(t, err)
}

func TestInsertNomem(t *testing.T) {
	fr, ms := newMemorySet(2)
	err := ms.Insert(0, 3*PGSZ, mm.PERM_U|mm.PERM_R)
	assert.True(t, serr.IsErrCode(err, serr.TErrNomem))
	assert.Equal(t, 2, fr.NFree())
	assert.False(t, ms.Overlaps(0, 3))
}

func TestRemoveSplit(t *testing.T) {
	fr, ms := newMemorySet(16)
	require.Nil(t, ms.Insert(0, 4*PGSZ, mm.PERM_U|mm.PERM_R))

	require.Nil(t, ms.Remove(1, 3))
	assert.Equal(t, 14, fr.NFree())
	_, ok := ms.Translate(0)
	assert.True(t, ok)
	_, ok = ms.Translate(1)
	assert.False(t, ok)
	_, ok = ms.Translate(3)
	assert.True(t, ok)

	// Range with a hole fails and changes nothing.
	err := ms.Remove(0, 4)
	assert.True(t, serr.IsErrCode(err, serr.TErrNotfound))
	assert.Equal(t, 14, fr.NFree())

	require.Nil(t, ms.Remove(3, 4))
	require.Nil(t, ms.Remove(0, 1))
	assert.Equal(t, 16, fr.NFree())
	assert.False(t, ms.Overlaps(0, 4))
}

func TestRemoveAcrossAreas(t *testing.T) {
	_, ms := newMemorySet(16)
	require.Nil(t, ms.Insert(0, 2*PGSZ, mm.PERM_U|mm.PERM_R))
	require.Nil(t, ms.Insert(2*PGSZ, 4*PGSZ, mm.PERM_U|mm.PERM_W))
	assert.True(t, ms.Mapped(0, 4))
	require.Nil(t, ms.Remove(1, 3))
	assert.True(t, ms.Mapped(0, 1))
	assert.True(t, ms.Mapped(3, 4))
	assert.False(t, ms.Overlaps(1, 3))
}

func TestTranslatedByteBufferSplits(t *testing.T) {
	_, ms := newMemorySet(16)
	require.Nil(t, ms.Insert(0, 2*PGSZ, mm.PERM_U|mm.PERM_R|mm.PERM_W))

	bufs, err := ms.TranslatedByteBuffer(PGSZ-10, 16, mm.PERM_U)
	require.Nil(t, err)
	require.Equal(t, 2, len(bufs))
	assert.Equal(t, 10, len(bufs[0]))
	assert.Equal(t, 6, len(bufs[1]))

	data := []byte("0123456789abcdef")
	require.Nil(t, ms.CopyOut(PGSZ-10, data))
	b, err := ms.CopyIn(PGSZ-10, len(data))
	require.Nil(t, err)
	assert.Equal(t, data, b)

	_, err = ms.CopyIn(2*PGSZ-4, 8)
	assert.True(t, serr.IsErrCode(err, serr.TErrFault))
}

func TestTranslatedStr(t *testing.T) {
	_, ms := newMemorySet(16)
	require.Nil(t, ms.Insert(0, 2*PGSZ, mm.PERM_U|mm.PERM_R|mm.PERM_W))
	require.Nil(t, ms.CopyOut(PGSZ-3, []byte("hello\x00")))
	s, err := ms.TranslatedStr(PGSZ - 3)
	require.Nil(t, err)
	assert.Equal(t, "hello", s)
}

func TestUserPermissions(t *testing.T) {
	_, ms := newMemorySet(16)
	require.Nil(t, ms.Insert(0, PGSZ, mm.PERM_U|mm.PERM_R))
	require.Nil(t, ms.Insert(PGSZ, 2*PGSZ, mm.PERM_R|mm.PERM_W))

	_, err := ms.UserLoad(0, 8)
	assert.Nil(t, err)
	err = ms.UserStore(0, []byte{1})
	assert.True(t, serr.IsErrCode(err, serr.TErrFault))
	_, err = ms.UserLoad(PGSZ, 8)
	assert.True(t, serr.IsErrCode(err, serr.TErrFault))

	b, ok := ms.PageBytes(1)
	assert.True(t, ok)
	assert.Equal(t, PGSZ, len(b))
}

func TestDuplicate(t *testing.T) {
	fr, ms := newMemorySet(16)
	require.Nil(t, ms.LoadSegment(0x100, 2*PGSZ, mm.PERM_U|mm.PERM_R|mm.PERM_W, []byte("abc")))
	ms1, err := ms.Duplicate()
	require.Nil(t, err)
	assert.Equal(t, 16-6, fr.NFree())

	require.Nil(t, ms1.CopyOut(0x100, []byte("xyz")))
	b, err := ms.CopyIn(0x100, 3)
	require.Nil(t, err)
	assert.Equal(t, "abc", string(b))
	b, err = ms1.CopyIn(0x100, 3)
	require.Nil(t, err)
	assert.Equal(t, "xyz", string(b))

	ms1.Recycle()
	ms.Recycle()
	assert.Equal(t, 16, fr.NFree())
}

func TestHeapArea(t *testing.T) {
	fr, ms := newMemorySet(16)
	brk := mm.VirtAddr(0x10000)
	require.Nil(t, ms.Insert(brk, brk, mm.PERM_U|mm.PERM_R|mm.PERM_W))
	assert.Equal(t, 16, fr.NFree())

	require.Nil(t, ms.AppendTo(brk, brk+PGSZ+1))
	assert.Equal(t, 14, fr.NFree())
	require.Nil(t, ms.UserStore(brk+PGSZ, []byte{7}))

	require.Nil(t, ms.ShrinkTo(brk, brk+10))
	assert.Equal(t, 15, fr.NFree())
	_, err := ms.UserLoad(brk+PGSZ, 1)
	assert.NotNil(t, err)

	require.Nil(t, ms.ShrinkTo(brk, brk))
	assert.Equal(t, 16, fr.NFree())

	// The empty area survives so the heap can grow again.
	require.Nil(t, ms.AppendTo(brk, brk+1))
	assert.Equal(t, 15, fr.NFree())
}

func TestPermFromPort(t *testing.T) {
	assert.Equal(t, "r--u", mm.PermFromPort(0x1).String())
	assert.Equal(t, "rwxu", mm.PermFromPort(0x7).String())
}

func TestCeilTopOfSpace(t *testing.T) {
	top := mm.VirtAddr(^uint64(0))
	assert.Equal(t, mm.VPN(1<<52), mm.Ceil(top, PGSZ))
	assert.Equal(t, mm.VPN(1<<52-1), mm.Floor(top, PGSZ))
	assert.Equal(t, mm.VPN(2), mm.Ceil(2*PGSZ, PGSZ))
}

func TestHugeRange(t *testing.T) {
	fr, ms := newMemorySet(4)
	start := mm.VirtAddr(0x10000000)
	end := mm.VirtAddr(^uint64(0))
	assert.False(t, ms.Mapped(mm.Floor(start, PGSZ), mm.Ceil(end, PGSZ)))
	assert.NotNil(t, ms.Remove(mm.Floor(start, PGSZ), mm.Ceil(end, PGSZ)))
	err := ms.Insert(start, end, mm.PERM_U|mm.PERM_R)
	assert.True(t, serr.IsErrCode(err, serr.TErrNomem))
	assert.Equal(t, 4, fr.NFree())
	assert.False(t, ms.Mapped(3, 2))
}
