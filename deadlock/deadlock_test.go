package deadlock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ukernel/deadlock"
	"ukernel/serr"
)

func TestBankerUnsafe(t *testing.T) {
	s := deadlock.Snapshot{
		Available:  []int{0},
		Allocation: [][]int{{0}, {0}},
		Need:       [][]int{{1}, {1}},
	}
	assert.True(t, deadlock.IsUnsafe(s))
}

func TestBankerSafe(t *testing.T) {
	s := deadlock.Snapshot{
		Available:  []int{1},
		Allocation: [][]int{{0}, {0}},
		Need:       [][]int{{1}, {1}},
	}
	assert.False(t, deadlock.IsUnsafe(s))
	assert.Equal(t, []int{1}, s.Available)
}

func TestBankerChain(t *testing.T) {
	// Task 0 can finish only after task 1 returns its unit.
	s := deadlock.Snapshot{
		Available:  []int{0, 0},
		Allocation: [][]int{{1, 0}, {0, 1}},
		Need:       [][]int{{0, 1}, {0, 0}},
	}
	assert.False(t, deadlock.IsUnsafe(s))

	// Circular wait.
	s.Need[1] = []int{1, 0}
	assert.True(t, deadlock.IsUnsafe(s))
}

func TestBankerEmpty(t *testing.T) {
	assert.False(t, deadlock.IsUnsafe(deadlock.Snapshot{}))
}

func TestTrackerRefuses(t *testing.T) {
	tr := deadlock.NewTracker()
	tr.SetEnabled(true)
	m0 := tr.AddResource(1)
	m1 := tr.AddResource(1)

	assert.Nil(t, tr.Request(1, m0))
	tr.Grant(1, m0)
	assert.Nil(t, tr.Request(2, m1))
	tr.Grant(2, m1)

	// 1 waits for m1; 2 can still finish.
	assert.Nil(t, tr.Request(1, m1))
	// 2 waiting for m0 would close the cycle.
	err := tr.Request(2, m0)
	assert.True(t, serr.IsErrCode(err, serr.TErrDeadlock))
	assert.Equal(t, int64(serr.RC_DEADLOCK), serr.Rc(err))

	s := tr.Snapshot()
	assert.Equal(t, []int{0, 0}, s.Available)
	assert.Equal(t, [][]int{{1, 0}, {0, 1}}, s.Allocation)
	assert.Equal(t, [][]int{{0, 1}, {0, 0}}, s.Need)

	tr.Release(2, m1)
	tr.Grant(1, m1)
	s = tr.Snapshot()
	assert.Equal(t, []int{0, 0}, s.Available)
	assert.Equal(t, [][]int{{1, 1}, {0, 0}}, s.Allocation)

	tr.Forget(2)
	assert.Equal(t, 1, len(tr.Snapshot().Need))
}

func TestTrackerDisabled(t *testing.T) {
	tr := deadlock.NewTracker()
	assert.False(t, tr.Enabled())
	r := tr.AddResource(0)
	assert.Nil(t, tr.Request(1, r))
	assert.Nil(t, tr.Request(2, r))
	tr.SetEnabled(true)
	assert.NotNil(t, tr.Request(3, r))
}

func TestTrackerNeed(t *testing.T) {
	tr := deadlock.NewTracker()
	tr.SetEnabled(true)
	m0 := tr.AddResource(1)
	m1 := tr.AddResource(1)
	tr.Grant(1, m0)
	tr.Grant(2, m1)
	assert.Nil(t, tr.Request(1, m1))

	// Recorded even though it closes the cycle.
	tr.Need(2, m0)
	s := tr.Snapshot()
	assert.Equal(t, [][]int{{0, 1}, {1, 0}}, s.Need)
	assert.True(t, deadlock.IsUnsafe(s))

	tr.Grant(2, m0)
	assert.Equal(t, [][]int{{0, 1}, {0, 0}}, tr.Snapshot().Need)
}
