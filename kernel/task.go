package kernel

import (
	"encoding/binary"

	db "ukernel/debug"
	"ukernel/mm"
	"ukernel/proc"
	"ukernel/serr"
)

// entry is where a task's context starts: in user code at its sepc.
func (k *Kernel) entry() {
	k.rt.Resume(k)
}

// newTask returns a task for im with a fresh pid and context; the
// caller links and enqueues it.
func (k *Kernel) newTask(im *image, prio int64) *proc.Task {
	t := proc.NewTask(k.pids.Alloc(), prio)
	t.With(func(in *proc.Inner) {
		in.Cx = k.sw.NewContext(t.String(), k.entry)
		in.Mem = im.ms
		in.TrapCx = im.trapCx
		in.HeapBottom = im.heapBottom
		in.ProgramBrk = im.heapBottom
	})
	k.register(t)
	return t
}

// NewTask creates a parentless task from the image at path and makes
// it ready.
func (k *Kernel) NewTask(path string) (*proc.Task, error) {
	im, err := k.loadImage(path)
	if err != nil {
		return nil, err
	}
	t := k.newTask(im, k.conf.Sched.DEFAULT_PRIORITY)
	db.DPrintf(db.TASK, "NewTask %v %v", t, path)
	k.p.Add(t)
	return t, nil
}

func (k *Kernel) link(parent, child *proc.Task) {
	child.With(func(in *proc.Inner) { in.Parent = proc.NewParentRef(parent.Pid(), k.Lookup) })
	parent.With(func(in *proc.Inner) { in.AddChild(child) })
}

// Fork clones the running task. The child gets a copy of the address
// space, including the trap context, with the syscall result set to 0.
func (k *Kernel) Fork() (*proc.Task, error) {
	parent := k.Current()
	g := parent.Access()
	in := g.Get()
	ms, err := in.Mem.Duplicate()
	if err != nil {
		g.Release()
		db.DPrintf(db.TASK_ERR, "Fork %v err %v", parent, err)
		return nil, err
	}
	im := &image{ms: ms, trapCx: k.trapContext(ms), heapBottom: in.HeapBottom}
	brk, prio, pass := in.ProgramBrk, in.Prio, in.Pass
	g.Release()

	im.trapCx.SetResult(0)
	child := k.newTask(im, prio)
	child.With(func(cin *proc.Inner) {
		cin.ProgramBrk = brk
		cin.Pass = pass
	})
	k.link(parent, child)
	db.DPrintf(db.TASK, "Fork %v -> %v", parent, child)
	k.p.Add(child)
	return child, nil
}

// Exec replaces the running task's address space with the image at
// path. Pid, parent and children are unchanged.
func (k *Kernel) Exec(path string) error {
	im, err := k.loadImage(path)
	if err != nil {
		db.DPrintf(db.TASK_ERR, "Exec %v err %v", path, err)
		return err
	}
	cur := k.Current()
	g := cur.Access()
	in := g.Get()
	old := in.Mem
	in.Mem = im.ms
	in.TrapCx = im.trapCx
	in.HeapBottom = im.heapBottom
	in.ProgramBrk = im.heapBottom
	g.Release()
	old.Recycle()
	db.DPrintf(db.TASK, "Exec %v %v", cur, path)
	return nil
}

// Spawn creates a child of the running task from the image at path,
// without duplicating the caller.
func (k *Kernel) Spawn(path string) (*proc.Task, error) {
	im, err := k.loadImage(path)
	if err != nil {
		db.DPrintf(db.TASK_ERR, "Spawn %v err %v", path, err)
		return nil, err
	}
	parent := k.Current()
	child := k.newTask(im, k.conf.Sched.DEFAULT_PRIORITY)
	k.link(parent, child)
	db.DPrintf(db.TASK, "Spawn %v -> %v %v", parent, child, path)
	k.p.Add(child)
	return child, nil
}

// Exit makes the running task a zombie with code, hands its children
// to initproc, and dispatches the next task. It does not return.
func (k *Kernel) Exit(code int32) {
	cur := k.Current()
	g := cur.Access()
	in := g.Get()
	var orphans []*proc.Task
	if cur != k.initproc {
		orphans = in.Children
		in.Children = make([]*proc.Task, 0)
	}
	first := in.First.Us()
	g.Release()
	if len(orphans) > 0 {
		for _, c := range orphans {
			c.With(func(cin *proc.Inner) { cin.Parent = proc.NewParentRef(proc.INITPID, k.Lookup) })
		}
		k.initproc.With(func(iin *proc.Inner) { iin.Children = append(iin.Children, orphans...) })
		db.DPrintf(db.TASK, "Exit %v: %d orphans to initproc", cur, len(orphans))
	}
	k.stats.exited(k.clk.NowUs() - first)
	db.DPrintf(db.TASK, "Exit %v code %d", cur, code)
	k.p.Exit(code)
}

// Waitpid reaps the first zombie child matching pid (any child for
// PID_ANY) and writes its exit code at codeVa unless codeVa is 0. It
// returns TErrNochild if no child matches and TErrChildAlive if none
// of the matching children has exited.
func (k *Kernel) Waitpid(pid proc.Tpid, codeVa uint64) (proc.Tpid, error) {
	cur := k.Current()
	g := cur.Access()
	in := g.Get()
	var zombie *proc.Task
	found := false
	for _, c := range in.Children {
		if pid != proc.PID_ANY && c.Pid() != pid {
			continue
		}
		found = true
		if c.Status() == proc.Zombie {
			zombie = c
			break
		}
	}
	if !found {
		g.Release()
		return 0, serr.NewErr(serr.TErrNochild, pid)
	}
	if zombie == nil {
		g.Release()
		return 0, serr.NewErr(serr.TErrChildAlive, pid)
	}
	zg := zombie.Access()
	zin := zg.Get()
	if codeVa != 0 {
		if err := in.Mem.CopyOut(mm.VirtAddr(codeVa), encodeI32(zin.ExitCode)); err != nil {
			zg.Release()
			g.Release()
			db.DPrintf(db.WAITPID, "Waitpid %v code at %#x err %v", cur, codeVa, err)
			return 0, err
		}
	}
	in.RemoveChild(zombie)
	g.Release()
	ms := zin.Mem
	zin.Mem = nil
	zin.TrapCx = nil
	zg.Release()
	k.reap(zombie, ms)
	db.DPrintf(db.WAITPID, "Waitpid %v reaped %v", cur, zombie)
	return zombie.Pid(), nil
}

// reap releases everything a zombie still holds.
func (k *Kernel) reap(t *proc.Task, ms *mm.MemorySet) {
	ms.Recycle()
	k.tracker.Forget(t.Pid())
	k.unregister(t)
	k.pids.Free(t.Pid())
}

func encodeI32(v int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}
