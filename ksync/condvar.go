package ksync

import (
	db "ukernel/debug"
	"ukernel/excl"
	"ukernel/proc"
)

type Condvar struct {
	b  Blocker
	wq *excl.Cell[*WaitQueue]
}

func NewCondvar(b Blocker) *Condvar {
	return &Condvar{b: b, wq: excl.NewCell("condvar", NewWaitQueue())}
}

func (cv *Condvar) Len() int {
	g := cv.wq.Access()
	defer g.Release()
	return (*g.Get()).Len()
}

// Signal wakes one waiter, if any.
func (cv *Condvar) Signal() {
	g := cv.wq.Access()
	t, ok := (*g.Get()).Pop()
	g.Release()
	if ok {
		db.DPrintf(db.KSYNC, "signal wakes %v", t)
		cv.b.Wakeup(t)
	}
}

func (cv *Condvar) NotifyOne() {
	cv.Signal()
}

func (cv *Condvar) NotifyAll() {
	g := cv.wq.Access()
	wq := *g.Get()
	ts := make([]*proc.Task, 0, wq.Len())
	for {
		t, ok := wq.Pop()
		if !ok {
			break
		}
		ts = append(ts, t)
	}
	g.Release()
	for _, t := range ts {
		db.DPrintf(db.KSYNC, "notify all wakes %v", t)
		cv.b.Wakeup(t)
	}
}

// Wait registers the caller before releasing m, so a signal sent after
// m is released cannot be lost, then blocks and reacquires m.
func (cv *Condvar) Wait(m Mutex) error {
	cur := cv.b.Current()
	cv.wq.With(func(wq **WaitQueue) { (*wq).Push(cur) })
	if err := m.Unlock(); err != nil {
		cv.wq.With(func(wq **WaitQueue) { (*wq).Remove(cur) })
		return err
	}
	cv.b.Block()
	m.Lock()
	return nil
}
