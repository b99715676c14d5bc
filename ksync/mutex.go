package ksync

import (
	"fmt"

	db "ukernel/debug"
	"ukernel/excl"
	"ukernel/proc"
	"ukernel/serr"
)

type Mutex interface {
	Lock()
	Unlock() error
}

// MutexSpin retries a single owner slot. There is one core, so
// instead of spinning in place it yields until the holder releases.
type MutexSpin struct {
	b     Blocker
	h     Hook
	owner *excl.Cell[*proc.Task]
}

func NewMutexSpin(b Blocker, h Hook) *MutexSpin {
	return &MutexSpin{b: b, h: hookOrNull(h), owner: excl.NewCell[*proc.Task]("mutex-spin", nil)}
}

func (m *MutexSpin) tryLock(cur *proc.Task) bool {
	g := m.owner.Access()
	defer g.Release()
	if *g.Get() != nil {
		return false
	}
	*g.Get() = cur
	return true
}

func (m *MutexSpin) Lock() {
	cur := m.b.Current()
	for !m.tryLock(cur) {
		m.b.Yield()
	}
	m.h.Granted(cur)
}

// Unlock releases m; only the holder may unlock.
func (m *MutexSpin) Unlock() error {
	cur := m.b.Current()
	g := m.owner.Access()
	if err := checkOwner(*g.Get(), cur); err != nil {
		g.Release()
		return err
	}
	*g.Get() = nil
	g.Release()
	m.h.Released(cur)
	return nil
}

func checkOwner(owner, cur *proc.Task) error {
	if owner == nil {
		return serr.NewErr(serr.TErrInval, "unlock of unlocked mutex")
	}
	if owner != cur {
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("%v unlocks mutex held by %v", cur, owner))
	}
	return nil
}

type mutexState struct {
	owner *proc.Task
	wq    *WaitQueue
}

// MutexBlocking queues contending tasks and hands the lock directly
// to the first waiter on unlock.
type MutexBlocking struct {
	b  Blocker
	h  Hook
	st *excl.Cell[mutexState]
}

func NewMutexBlocking(b Blocker, h Hook) *MutexBlocking {
	return &MutexBlocking{
		b:  b,
		h:  hookOrNull(h),
		st: excl.NewCell("mutex-blocking", mutexState{wq: NewWaitQueue()}),
	}
}

func (m *MutexBlocking) String() string {
	g := m.st.Access()
	defer g.Release()
	return fmt.Sprintf("{owner %v waiters %d}", g.Get().owner, g.Get().wq.Len())
}

func (m *MutexBlocking) Lock() {
	cur := m.b.Current()
	g := m.st.Access()
	st := g.Get()
	if st.owner == nil {
		st.owner = cur
		g.Release()
		m.h.Granted(cur)
		return
	}
	st.wq.Push(cur)
	g.Release()
	db.DPrintf(db.KSYNC, "%v blocks on mutex", cur)
	m.b.Block()
	// Unlock handed us the lock.
}

// Unlock hands m to the first waiter, or frees it; only the holder
// may unlock.
func (m *MutexBlocking) Unlock() error {
	cur := m.b.Current()
	g := m.st.Access()
	st := g.Get()
	if err := checkOwner(st.owner, cur); err != nil {
		g.Release()
		return err
	}
	t, ok := st.wq.Pop()
	st.owner = t
	g.Release()
	m.h.Released(cur)
	if ok {
		m.h.Granted(t)
		db.DPrintf(db.KSYNC, "%v hands mutex to %v", cur, t)
		m.b.Wakeup(t)
	}
	return nil
}
