// Package ctxsw is the raw context switch. Each context is a goroutine
// parked on its own channel; a switch wakes the next context and parks
// the current one, so exactly one context runs at a time.
package ctxsw

import (
	"runtime"

	"go.uber.org/atomic"

	db "ukernel/debug"
)

type Context struct {
	name    string
	run     chan struct{}
	entry   func()
	started bool
}

func (c *Context) String() string {
	return c.name
}

type Switcher struct {
	done   chan struct{}
	halted atomic.Bool
}

func NewSwitcher() *Switcher {
	return &Switcher{done: make(chan struct{})}
}

// NewContext returns a context that, on its first switch-in, runs
// entry on a fresh goroutine. entry must not return; a context leaves
// through SwitchAway.
func (sw *Switcher) NewContext(name string, entry func()) *Context {
	return &Context{name: name, run: make(chan struct{}, 1), entry: entry}
}

func (sw *Switcher) resume(c *Context) {
	if !c.started {
		c.started = true
		go sw.trampoline(c)
		return
	}
	c.run <- struct{}{}
}

func (sw *Switcher) trampoline(c *Context) {
	db.DPrintf(db.CTXSW, "start %v", c)
	c.entry()
	db.DFatalf("context %v returned", c)
}

// park blocks the calling goroutine until c is switched to. Once the
// switcher halts, parked contexts never run again.
func (sw *Switcher) park(c *Context) {
	select {
	case <-c.run:
	case <-sw.done:
		db.DPrintf(db.CTXSW, "halt %v", c)
		runtime.Goexit()
	}
}

// Switch saves the calling context in cur and runs next. It returns
// when some later switch runs cur again.
func (sw *Switcher) Switch(cur, next *Context) {
	db.DPrintf(db.CTXSW, "switch %v -> %v", cur, next)
	sw.resume(next)
	sw.park(cur)
}

// SwitchAway runs next without saving the caller, which must not touch
// kernel state afterwards and should exit its goroutine.
func (sw *Switcher) SwitchAway(next *Context) {
	db.DPrintf(db.CTXSW, "switch away -> %v", next)
	sw.resume(next)
}

// Boot runs first from the idle context of the calling goroutine and
// waits until the switcher halts.
func (sw *Switcher) Boot(idle, first *Context) {
	db.DPrintf(db.CTXSW, "boot %v -> %v", idle, first)
	sw.resume(first)
	<-sw.done
}

// Halt stops the core: the booting goroutine returns and parked
// contexts exit.
func (sw *Switcher) Halt() {
	if sw.halted.CompareAndSwap(false, true) {
		db.DPrintf(db.CTXSW, "halted")
		close(sw.done)
	}
}

func (sw *Switcher) Halted() bool {
	return sw.halted.Load()
}
