package ksync

import (
	"fmt"

	db "ukernel/debug"
	"ukernel/excl"
	"ukernel/proc"
)

type semState struct {
	count int64
	wq    *WaitQueue
}

type Semaphore struct {
	b  Blocker
	h  Hook
	st *excl.Cell[semState]
}

func NewSemaphore(b Blocker, h Hook, count int64) *Semaphore {
	return &Semaphore{
		b:  b,
		h:  hookOrNull(h),
		st: excl.NewCell("semaphore", semState{count: count, wq: NewWaitQueue()}),
	}
}

func (s *Semaphore) String() string {
	g := s.st.Access()
	defer g.Release()
	return fmt.Sprintf("{count %d waiters %d}", g.Get().count, g.Get().wq.Len())
}

func (s *Semaphore) Count() int64 {
	g := s.st.Access()
	defer g.Release()
	return g.Get().count
}

func (s *Semaphore) Up() {
	cur := s.b.Current()
	g := s.st.Access()
	st := g.Get()
	st.count++
	var t *proc.Task
	var wake bool
	if st.count <= 0 {
		t, wake = st.wq.Pop()
	}
	g.Release()
	s.h.Released(cur)
	if wake {
		s.h.Granted(t)
		db.DPrintf(db.KSYNC, "%v up wakes %v", cur, t)
		s.b.Wakeup(t)
	}
}

func (s *Semaphore) Down() {
	cur := s.b.Current()
	g := s.st.Access()
	st := g.Get()
	st.count--
	if st.count >= 0 {
		g.Release()
		s.h.Granted(cur)
		return
	}
	st.wq.Push(cur)
	g.Release()
	db.DPrintf(db.KSYNC, "%v blocks on semaphore", cur)
	s.b.Block()
}
