// Package processor owns the single core: the running-task slot and
// the dispatch protocol between tasks.
package processor

import (
	"fmt"
	"runtime"

	"ukernel/ctxsw"
	db "ukernel/debug"
	"ukernel/excl"
	"ukernel/proc"
	"ukernel/sched"
	"ukernel/serr"
	"ukernel/timer"
)

type slot struct {
	cur       *proc.Task
	nblocked  int
	ndispatch uint64
	err       error
}

type Processor struct {
	sw   *ctxsw.Switcher
	m    *sched.Manager
	clk  timer.Clock
	idle *ctxsw.Context
	s    *excl.Cell[slot]
}

func NewProcessor(sw *ctxsw.Switcher, m *sched.Manager, clk timer.Clock) *Processor {
	return &Processor{
		sw:   sw,
		m:    m,
		clk:  clk,
		idle: sw.NewContext("idle", nil),
		s:    excl.NewCell("processor", slot{}),
	}
}

func (p *Processor) String() string {
	g := p.s.Access()
	defer g.Release()
	s := g.Get()
	return fmt.Sprintf("{cur %v blocked %d dispatches %d}", s.cur, s.nblocked, s.ndispatch)
}

// Current returns the running task, or nil when idle.
func (p *Processor) Current() *proc.Task {
	g := p.s.Access()
	defer g.Release()
	return g.Get().cur
}

func (p *Processor) NBlocked() int {
	g := p.s.Access()
	defer g.Release()
	return g.Get().nblocked
}

func (p *Processor) NDispatch() uint64 {
	g := p.s.Access()
	defer g.Release()
	return g.Get().ndispatch
}

// Add makes a new task ready.
func (p *Processor) Add(t *proc.Task) {
	g := t.Access()
	defer g.Release()
	in := g.Get()
	in.MarkReady(t.Pid())
	p.m.AddL(t, in)
}

// Wakeup makes a blocked task ready again. It is enqueued before
// Wakeup returns.
func (p *Processor) Wakeup(t *proc.Task) {
	g := t.Access()
	in := g.Get()
	in.MarkReady(t.Pid())
	p.m.AddL(t, in)
	g.Release()
	p.s.With(func(s *slot) { s.nblocked-- })
	db.DPrintf(db.PROCESSOR, "Wakeup %v", t)
}

// dispatch makes t the running task and returns its context.
func (p *Processor) dispatch(t *proc.Task) *ctxsw.Context {
	g := t.Access()
	in := g.Get()
	in.MarkRunning(t.Pid(), p.clk.NowUs())
	p.m.AdvanceL(in)
	cx := in.Cx
	g.Release()
	p.s.With(func(s *slot) {
		s.cur = t
		s.ndispatch++
	})
	db.DPrintf(db.PROCESSOR, "dispatch %v", t)
	return cx
}

// RunFirstTask dispatches the first ready task from the idle context
// and waits for the core to halt. It returns nil if every task exited,
// and a TErrDeadlock error if tasks remain blocked with nothing ready.
func (p *Processor) RunFirstTask() error {
	t, ok := p.m.Fetch()
	if !ok {
		return serr.NewErr(serr.TErrNotfound, "no task to run")
	}
	cx := p.dispatch(t)
	p.sw.Boot(p.idle, cx)
	g := p.s.Access()
	defer g.Release()
	return g.Get().err
}

func (p *Processor) halt() {
	p.s.With(func(s *slot) {
		s.cur = nil
		if s.nblocked > 0 {
			s.err = serr.NewErr(serr.TErrDeadlock, fmt.Sprintf("nothing left to run, %d blocked", s.nblocked))
		}
		db.DPrintf(db.PROCESSOR, "halt err %v", s.err)
	})
	p.sw.Halt()
}

// Yield requeues the running task and dispatches the next one.
func (p *Processor) Yield() {
	p.Switch(proc.Ready)
}

// Block suspends the running task until Wakeup.
func (p *Processor) Block() {
	p.Switch(proc.Blocked)
}

// Exit makes the running task a zombie with code and dispatches the
// next task. It does not return.
func (p *Processor) Exit(code int32) {
	cur := p.Current()
	cur.With(func(in *proc.Inner) { in.MarkZombie(cur.Pid(), code) })
	p.Switch(proc.Zombie)
}

// Switch moves the running task to status and runs the next ready
// task. Every borrow is released before the raw switch. For Zombie,
// the caller has already marked the task.
func (p *Processor) Switch(status proc.Tstatus) {
	cur := p.Current()
	if cur == nil {
		db.DFatalf("Switch %v with no running task", status)
	}
	g := cur.Access()
	in := g.Get()
	curCx := in.Cx
	switch status {
	case proc.Ready:
		in.MarkReady(cur.Pid())
		p.m.AddL(cur, in)
	case proc.Blocked:
		in.MarkBlocked(cur.Pid())
	case proc.Zombie:
		if in.Status != proc.Zombie {
			db.DFatalf("Switch zombie: %v is %v", cur, in.Status)
		}
	default:
		db.DFatalf("Switch to %v", status)
	}
	g.Release()
	p.s.With(func(s *slot) {
		if status == proc.Blocked {
			s.nblocked++
		}
		s.cur = nil
	})

	next, ok := p.m.Fetch()
	if !ok {
		p.halt()
		runtime.Goexit()
	}
	if next == cur {
		p.dispatch(cur)
		return
	}
	nextCx := p.dispatch(next)
	if status == proc.Zombie {
		p.sw.SwitchAway(nextCx)
		runtime.Goexit()
	}
	p.sw.Switch(curCx, nextCx)
}
