package queue_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"ukernel/sched/queue"
)

func TestOrder(t *testing.T) {
	q := queue.NewQueue[uint64, int]()
	keys := rand.Perm(100)
	for _, k := range keys {
		q.Push(uint64(k), k)
	}
	v, ok := q.Peek()
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	assert.Equal(t, 100, q.Len())
	prev := -1
	for i := 0; i < 100; i++ {
		v, ok := q.Pop()
		assert.True(t, ok)
		assert.True(t, v > prev)
		prev = v
	}
	_, ok = q.Pop()
	assert.False(t, ok)
	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestStableTies(t *testing.T) {
	q := queue.NewQueue[int, string]()
	q.Push(1, "a")
	q.Push(0, "x")
	q.Push(1, "b")
	q.Push(1, "c")
	q.Push(0, "y")
	got := make([]string, 0)
	for q.Len() > 0 {
		v, _ := q.Pop()
		got = append(got, v)
	}
	assert.Equal(t, []string{"x", "y", "a", "b", "c"}, got)
}
