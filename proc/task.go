// Package proc is the task control block: the per-task record, its
// lifecycle state machine, and pid allocation.
package proc

import (
	"fmt"

	"golang.org/x/exp/slices"

	"ukernel/ctxsw"
	db "ukernel/debug"
	"ukernel/excl"
	"ukernel/mm"
	"ukernel/trap"
)

// Tfirst is the time a task was first dispatched; it is undefined until
// then.
type Tfirst struct {
	set bool
	us  uint64
}

func (f Tfirst) IsSet() bool {
	return f.set
}

func (f Tfirst) Us() uint64 {
	if !f.set {
		db.DFatalf("first dispatch time read before dispatch")
	}
	return f.us
}

// ParentRef refers to a task's parent without keeping it alive: it
// holds only the parent's pid and resolves it through the live task
// table.
type ParentRef struct {
	pid    Tpid
	lookup func(Tpid) (*Task, bool)
}

func NewParentRef(pid Tpid, lookup func(Tpid) (*Task, bool)) ParentRef {
	return ParentRef{pid: pid, lookup: lookup}
}

func (pr ParentRef) IsNil() bool {
	return pr.lookup == nil
}

func (pr ParentRef) Pid() Tpid {
	return pr.pid
}

// Upgrade returns the parent if it is still alive.
func (pr ParentRef) Upgrade() (*Task, bool) {
	if pr.lookup == nil {
		return nil, false
	}
	return pr.lookup(pr.pid)
}

func (pr ParentRef) String() string {
	if pr.lookup == nil {
		return "none"
	}
	return pr.pid.String()
}

// Inner holds every mutable field of a task. Access it only through
// Task.Access.
type Inner struct {
	Status     Tstatus
	Cx         *ctxsw.Context
	Mem        *mm.MemorySet
	TrapCx     *trap.Context
	Parent     ParentRef
	Children   []*Task
	ExitCode   int32
	SyscallCnt map[uint64]uint32
	First      Tfirst
	Prio       int64
	Pass       uint64
	HeapBottom uint64
	ProgramBrk uint64
}

type Task struct {
	pid   Tpid
	inner *excl.Cell[Inner]
}

// NewTask returns an UnInit task; Cx, Mem and TrapCx are filled in by
// the caller before MarkReady.
func NewTask(pid Tpid, prio int64) *Task {
	return &Task{
		pid: pid,
		inner: excl.NewCell(fmt.Sprintf("task-%v", pid), Inner{
			Status:     UnInit,
			Children:   make([]*Task, 0),
			SyscallCnt: make(map[uint64]uint32),
			Prio:       prio,
		}),
	}
}

func (t *Task) Pid() Tpid {
	return t.pid
}

func (t *Task) String() string {
	return fmt.Sprintf("task-%v", t.pid)
}

func (t *Task) Access() *excl.Guard[Inner] {
	return t.inner.Access()
}

func (t *Task) With(f func(in *Inner)) {
	t.inner.With(f)
}

func (t *Task) Status() Tstatus {
	g := t.Access()
	defer g.Release()
	return g.Get().Status
}

func (t *Task) Prio() int64 {
	g := t.Access()
	defer g.Release()
	return g.Get().Prio
}

func (t *Task) Pass() uint64 {
	g := t.Access()
	defer g.Release()
	return g.Get().Pass
}

// MarkReady moves a new, yielding or woken task to Ready.
func (in *Inner) MarkReady(pid Tpid) {
	in.setStatus(pid, Ready)
}

// MarkRunning dispatches the task at time nowUs, recording the first
// dispatch.
func (in *Inner) MarkRunning(pid Tpid, nowUs uint64) {
	in.setStatus(pid, Running)
	if !in.First.set {
		in.First = Tfirst{set: true, us: nowUs}
	}
}

func (in *Inner) MarkBlocked(pid Tpid) {
	in.setStatus(pid, Blocked)
}

func (in *Inner) MarkZombie(pid Tpid, code int32) {
	in.setStatus(pid, Zombie)
	in.ExitCode = code
}

func (in *Inner) AddChild(c *Task) {
	in.Children = append(in.Children, c)
}

// RemoveChild drops c from the children, returning false if c is not
// a child.
func (in *Inner) RemoveChild(c *Task) bool {
	i := slices.Index(in.Children, c)
	if i < 0 {
		return false
	}
	in.Children = slices.Delete(in.Children, i, i+1)
	return true
}

// ElapsedMs returns the milliseconds since the first dispatch.
func (in *Inner) ElapsedMs(nowUs uint64) uint64 {
	return (nowUs - in.First.Us()) / 1000
}
