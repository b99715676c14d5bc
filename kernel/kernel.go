// Package kernel is the kernel context object: it owns every kernel
// singleton and implements task lifecycle, address-space and
// synchronization operations for the syscall layer.
package kernel

import (
	"fmt"

	"github.com/thanhpk/randstr"

	"ukernel/ctxsw"
	db "ukernel/debug"
	"ukernel/deadlock"
	"ukernel/excl"
	"ukernel/loader"
	"ukernel/mm"
	"ukernel/param"
	"ukernel/proc"
	"ukernel/processor"
	"ukernel/sched"
	"ukernel/timer"
	"ukernel/trap"
)

type Kernel struct {
	Id       string
	conf     *param.Config
	frames   *mm.Frames
	pids     *proc.PidAllocator
	m        *sched.Manager
	sw       *ctxsw.Switcher
	p        *processor.Processor
	ld       *loader.CachedLoader
	clk      timer.Clock
	rt       trap.Runtime
	h        trap.Handler
	tracker  *deadlock.Tracker
	tasks    *excl.Cell[map[proc.Tpid]*proc.Task]
	sync     *excl.Cell[syncTable]
	stats    *Stats
	initproc *proc.Task
}

// NewKernel builds a kernel whose tasks run user code with rt. The
// syscall handler is attached with SetHandler before Boot.
func NewKernel(conf *param.Config, ld loader.Loader, clk timer.Clock, rt trap.Runtime) *Kernel {
	k := &Kernel{
		Id:      randstr.Hex(8),
		conf:    conf,
		frames:  mm.NewFrames(conf.MM.PAGE_SIZE, conf.MM.NFRAME),
		pids:    proc.NewPidAllocator(),
		m:       sched.NewManager(conf),
		sw:      ctxsw.NewSwitcher(),
		ld:      loader.NewCachedLoader(ld, conf.Loader.CACHE_SIZE),
		clk:     clk,
		rt:      rt,
		tracker: deadlock.NewTracker(),
		tasks:   excl.NewCell("tasks", make(map[proc.Tpid]*proc.Task)),
		sync:    excl.NewCell("synctable", newSyncTable()),
		stats:   newStats(),
	}
	k.p = processor.NewProcessor(k.sw, k.m, clk)
	db.SetName("ukernel-" + k.Id)
	db.DPrintf(db.KERNEL, "NewKernel %v %v", k.Id, k.frames)
	return k
}

func (k *Kernel) SetHandler(h trap.Handler) {
	k.h = h
}

func (k *Kernel) String() string {
	return fmt.Sprintf("{kernel %v %v %v}", k.Id, k.p, k.m)
}

func (k *Kernel) Conf() *param.Config {
	return k.conf
}

func (k *Kernel) Processor() *processor.Processor {
	return k.p
}

func (k *Kernel) Manager() *sched.Manager {
	return k.m
}

func (k *Kernel) Frames() *mm.Frames {
	return k.frames
}

func (k *Kernel) Tracker() *deadlock.Tracker {
	return k.tracker
}

func (k *Kernel) Clock() timer.Clock {
	return k.clk
}

func (k *Kernel) Stats() *Stats {
	return k.stats
}

func (k *Kernel) InitProc() *proc.Task {
	return k.initproc
}

// Current returns the running task.
func (k *Kernel) Current() *proc.Task {
	cur := k.p.Current()
	if cur == nil {
		db.DFatalf("no current task")
	}
	return cur
}

func (k *Kernel) register(t *proc.Task) {
	k.tasks.With(func(ts *map[proc.Tpid]*proc.Task) { (*ts)[t.Pid()] = t })
}

func (k *Kernel) unregister(t *proc.Task) {
	k.tasks.With(func(ts *map[proc.Tpid]*proc.Task) { delete(*ts, t.Pid()) })
}

// Lookup returns the live (not yet reaped) task with pid.
func (k *Kernel) Lookup(pid proc.Tpid) (*proc.Task, bool) {
	g := k.tasks.Access()
	defer g.Release()
	t, ok := (*g.Get())[pid]
	return t, ok
}

func (k *Kernel) NTask() int {
	g := k.tasks.Access()
	defer g.Release()
	return len(*g.Get())
}

// Boot creates initproc from the configured image.
func (k *Kernel) Boot() error {
	t, err := k.NewTask(k.conf.Boot.INITPROC)
	if err != nil {
		db.DPrintf(db.BOOT, "Boot %v err %v", k.conf.Boot.INITPROC, err)
		return err
	}
	if t.Pid() != proc.INITPID {
		db.DFatalf("initproc has pid %v", t.Pid())
	}
	k.initproc = t
	db.DPrintf(db.BOOT, "Boot initproc %v", t)
	return nil
}

// Run dispatches tasks until every task exited or the remaining ones
// are all blocked.
func (k *Kernel) Run() error {
	err := k.p.RunFirstTask()
	db.DPrintf(db.KERNEL, "Run done %v err %v", k.stats, err)
	return err
}
