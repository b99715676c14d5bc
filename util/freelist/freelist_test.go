package freelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocRecycle(t *testing.T) {
	fl := NewFreeList[uint64](0, 3)
	for i := uint64(0); i < 3; i++ {
		e, ok := fl.Alloc()
		assert.True(t, ok)
		assert.Equal(t, i, e)
	}
	_, ok := fl.Alloc()
	assert.False(t, ok, "exhausted")
	assert.Equal(t, 3, fl.Len())
	assert.Equal(t, 0, fl.Avail())

	fl.Free(1)
	assert.Equal(t, 2, fl.Len())
	e, ok := fl.Alloc()
	assert.True(t, ok)
	assert.Equal(t, uint64(1), e, "recycled id reused")
}

func TestRecycleOrder(t *testing.T) {
	fl := NewFreeList[int](10, 20)
	a, _ := fl.Alloc()
	b, _ := fl.Alloc()
	fl.Free(a)
	fl.Free(b)
	e, _ := fl.Alloc()
	assert.Equal(t, b, e)
	e, _ = fl.Alloc()
	assert.Equal(t, a, e)
	assert.Equal(t, 8, fl.Avail())
}
