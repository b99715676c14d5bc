// Package sched is the task manager: it holds every ready task that is
// not running and picks the next one to dispatch.
package sched

import (
	"fmt"

	db "ukernel/debug"
	"ukernel/excl"
	"ukernel/param"
	"ukernel/proc"
	"ukernel/sched/queue"
)

type Manager struct {
	policy    param.Tpolicy
	bigStride uint64
	minPrio   int64
	maxPrio   int64
	q         *excl.Cell[*queue.Queue[uint64, *proc.Task]]
}

func NewManager(conf *param.Config) *Manager {
	return &Manager{
		policy:    conf.Sched.POLICY,
		bigStride: conf.Sched.BIG_STRIDE,
		minPrio:   conf.Sched.MIN_PRIORITY,
		maxPrio:   conf.Sched.MAX_PRIORITY,
		q:         excl.NewCell("taskmanager", queue.NewQueue[uint64, *proc.Task]()),
	}
}

func (m *Manager) String() string {
	return fmt.Sprintf("{%v ready %d}", m.policy, m.Len())
}

// ValidPrio reports whether prio is a priority a task may set.
func (m *Manager) ValidPrio(prio int64) bool {
	return prio >= m.minPrio && prio <= m.maxPrio
}

// Caller holds task borrow
func (m *Manager) key(in *proc.Inner) uint64 {
	if m.policy == param.POLICY_PRIO {
		return uint64(in.Prio)
	}
	return in.Pass
}

// Stride returns how far a task's pass advances per dispatch.
func (m *Manager) Stride(prio int64) uint64 {
	return m.bigStride / uint64(prio)
}

// Caller holds task borrow
func (m *Manager) AdvanceL(in *proc.Inner) {
	if m.policy == param.POLICY_STRIDE {
		in.Pass += m.Stride(in.Prio)
	}
}

// Add enqueues a ready task.
func (m *Manager) Add(t *proc.Task) {
	g := t.Access()
	defer g.Release()
	m.AddL(t, g.Get())
}

// Caller holds t's borrow, in.
func (m *Manager) AddL(t *proc.Task, in *proc.Inner) {
	k := m.key(in)
	m.q.With(func(q **queue.Queue[uint64, *proc.Task]) {
		(*q).Push(k, t)
	})
	db.DPrintf(db.SCHED, "Add %v key %d", t, k)
}

// Fetch removes and returns the task to dispatch next.
func (m *Manager) Fetch() (*proc.Task, bool) {
	g := m.q.Access()
	defer g.Release()
	t, ok := (*g.Get()).Pop()
	if ok {
		db.DPrintf(db.SCHED, "Fetch %v", t)
	}
	return t, ok
}

// Peek returns the task Fetch would return without removing it.
func (m *Manager) Peek() (*proc.Task, bool) {
	g := m.q.Access()
	defer g.Release()
	return (*g.Get()).Peek()
}

func (m *Manager) Len() int {
	g := m.q.Access()
	defer g.Release()
	return (*g.Get()).Len()
}
