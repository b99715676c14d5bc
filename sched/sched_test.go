package sched_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ukernel/param"
	"ukernel/proc"
	"ukernel/sched"
)

func newManager(policy param.Tpolicy) *sched.Manager {
	conf := param.Conf.Copy()
	conf.Sched.POLICY = policy
	return sched.NewManager(conf)
}

// dispatch fetches the next task and requeues it as the processor
// does on yield.
func dispatch(m *sched.Manager) *proc.Task {
	t, ok := m.Fetch()
	if !ok {
		return nil
	}
	g := t.Access()
	m.AdvanceL(g.Get())
	m.AddL(t, g.Get())
	g.Release()
	return t
}

func TestStrideFairness(t *testing.T) {
	m := newManager(param.POLICY_STRIDE)
	lo := proc.NewTask(1, 2)
	hi := proc.NewTask(2, 8)
	m.Add(lo)
	m.Add(hi)
	n := map[proc.Tpid]int{}
	for i := 0; i < 500; i++ {
		n[dispatch(m).Pid()]++
	}
	assert.Equal(t, 2, m.Len())
	assert.InDelta(t, 4.0, float64(n[2])/float64(n[1]), 0.1, "%v", n)
}

func TestStrideTiesFifo(t *testing.T) {
	m := newManager(param.POLICY_STRIDE)
	ts := []*proc.Task{proc.NewTask(1, 16), proc.NewTask(2, 16), proc.NewTask(3, 16)}
	for _, t := range ts {
		m.Add(t)
	}
	got := make([]proc.Tpid, 0)
	for i := 0; i < 6; i++ {
		got = append(got, dispatch(m).Pid())
	}
	assert.Equal(t, []proc.Tpid{1, 2, 3, 1, 2, 3}, got)
}

func TestPrioOrder(t *testing.T) {
	m := newManager(param.POLICY_PRIO)
	m.Add(proc.NewTask(1, 30))
	m.Add(proc.NewTask(2, 5))
	m.Add(proc.NewTask(3, 16))
	m.Add(proc.NewTask(4, 5))

	p, ok := m.Peek()
	assert.True(t, ok)
	assert.Equal(t, proc.Tpid(2), p.Pid())
	assert.Equal(t, 4, m.Len())

	got := make([]proc.Tpid, 0)
	for {
		t, ok := m.Fetch()
		if !ok {
			break
		}
		got = append(got, t.Pid())
	}
	assert.Equal(t, []proc.Tpid{2, 4, 3, 1}, got)
}

func TestValidPrio(t *testing.T) {
	m := newManager(param.POLICY_STRIDE)
	assert.False(t, m.ValidPrio(1))
	assert.False(t, m.ValidPrio(0))
	assert.True(t, m.ValidPrio(2))
	assert.True(t, m.ValidPrio(1<<20))
	assert.False(t, m.ValidPrio(1<<20+1))
}
