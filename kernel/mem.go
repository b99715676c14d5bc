package kernel

import (
	"fmt"

	db "ukernel/debug"
	"ukernel/mm"
	"ukernel/proc"
	"ukernel/serr"
	"ukernel/uapi"
)

// Sbrk moves the program break by delta and returns the old break. The
// break never drops below the heap bottom.
func (k *Kernel) Sbrk(delta int64) (uint64, error) {
	cur := k.Current()
	g := cur.Access()
	defer g.Release()
	in := g.Get()
	old := in.ProgramBrk
	brk := int64(old) + delta
	if brk < int64(in.HeapBottom) {
		return 0, serr.NewErr(serr.TErrInval, fmt.Sprintf("brk %#x below heap %#x", brk, in.HeapBottom))
	}
	var err error
	if delta > 0 {
		err = in.Mem.AppendTo(mm.VirtAddr(in.HeapBottom), mm.VirtAddr(brk))
	} else if delta < 0 {
		err = in.Mem.ShrinkTo(mm.VirtAddr(in.HeapBottom), mm.VirtAddr(brk))
	}
	if err != nil {
		db.DPrintf(db.MMAP, "Sbrk %v %d err %v", cur, delta, err)
		return 0, err
	}
	in.ProgramBrk = uint64(brk)
	return old, nil
}

func (k *Kernel) checkRange(start, sz uint64) error {
	if !mm.Aligned(mm.VirtAddr(start), k.conf.MM.PAGE_SIZE) {
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("misaligned %#x", start))
	}
	if start+sz < start {
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("wrapping range %#x+%#x", start, sz))
	}
	return nil
}

// Mmap maps [start, start+sz) for the running task with the
// permissions in port (bit 0 read, bit 1 write, bit 2 execute).
func (k *Kernel) Mmap(start, sz, port uint64) error {
	if err := k.checkRange(start, sz); err != nil {
		return err
	}
	if port&^uapi.PORT_MASK != 0 || port&uapi.PORT_MASK == 0 {
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("port %#x", port))
	}
	if sz == 0 {
		return nil
	}
	cur := k.Current()
	g := cur.Access()
	defer g.Release()
	err := g.Get().Mem.Insert(mm.VirtAddr(start), mm.VirtAddr(start+sz), mm.PermFromPort(port))
	db.DPrintf(db.MMAP, "Mmap %v [%#x, %#x) %#x err %v", cur, start, start+sz, port, err)
	return err
}

// Munmap unmaps [start, start+sz); every page must be a mapped user
// page.
func (k *Kernel) Munmap(start, sz uint64) error {
	if err := k.checkRange(start, sz); err != nil {
		return err
	}
	if sz == 0 {
		return nil
	}
	pgsz := k.conf.MM.PAGE_SIZE
	s, e := mm.Floor(mm.VirtAddr(start), pgsz), mm.Ceil(mm.VirtAddr(start+sz), pgsz)
	cur := k.Current()
	g := cur.Access()
	defer g.Release()
	ms := g.Get().Mem
	if !ms.Mapped(s, e) {
		db.DPrintf(db.MMAP, "Munmap %v [%#x, %#x) not mapped", cur, start, start+sz)
		return serr.NewErr(serr.TErrNotfound, fmt.Sprintf("[%#x, %#x)", start, start+sz))
	}
	for vpn := s; vpn < e; vpn++ {
		if pte, _ := ms.Translate(vpn); pte.Perm&mm.PERM_U == 0 {
			return serr.NewErr(serr.TErrInval, fmt.Sprintf("kernel page %#x", uint64(vpn.Addr(pgsz))))
		}
	}
	err := ms.Remove(s, e)
	db.DPrintf(db.MMAP, "Munmap %v [%#x, %#x) err %v", cur, start, start+sz, err)
	return err
}

// copyOut writes b into the running task's memory at va, page by page.
func (k *Kernel) copyOut(va uint64, b []byte) error {
	cur := k.Current()
	g := cur.Access()
	defer g.Release()
	return g.Get().Mem.CopyOut(mm.VirtAddr(va), b)
}

func (k *Kernel) GetTime(tvVa uint64) error {
	tv := uapi.NewTimeVal(k.clk.NowUs())
	return k.copyOut(tvVa, tv.Marshal())
}

// TaskInfo writes the running task's status, syscall counts, and the
// milliseconds since its first dispatch at tiVa.
func (k *Kernel) TaskInfo(tiVa uint64) error {
	cur := k.Current()
	g := cur.Access()
	in := g.Get()
	ti := &uapi.TaskInfo{
		Status: uint32(in.Status),
		Time:   in.ElapsedMs(k.clk.NowUs()),
	}
	n := min(uint64(k.conf.Syscall.MAX_SYSCALL_NUM), uapi.MAX_SYSCALL_NUM)
	for id, cnt := range in.SyscallCnt {
		if id < n {
			ti.SyscallTimes[id] = cnt
		}
	}
	g.Release()
	return k.copyOut(tiVa, ti.Marshal())
}

// SetPriority sets the running task's priority and returns the old
// one.
func (k *Kernel) SetPriority(prio int64) (int64, error) {
	if !k.m.ValidPrio(prio) {
		return 0, serr.NewErr(serr.TErrInval, fmt.Sprintf("priority %d", prio))
	}
	cur := k.Current()
	g := cur.Access()
	defer g.Release()
	in := g.Get()
	old := in.Prio
	in.Prio = prio
	db.DPrintf(db.SCHED, "SetPriority %v %d -> %d", cur, old, prio)
	return old, nil
}

// CountSyscall bumps the running task's counter for id.
func (k *Kernel) CountSyscall(id uint64) {
	k.Current().With(func(in *proc.Inner) { in.SyscallCnt[id]++ })
}
