package proc

import (
	"fmt"

	db "ukernel/debug"
	"ukernel/excl"
	"ukernel/util/freelist"
)

type Tpid int64

const (
	PID_ANY  Tpid = -1 // waitpid: any child
	INITPID  Tpid = 0
	MAX_PIDS      = 1 << 20
)

func (pid Tpid) String() string {
	return fmt.Sprintf("%d", int64(pid))
}

// PidAllocator hands out pids, reusing those of reaped tasks.
type PidAllocator struct {
	fl *excl.Cell[*freelist.FreeList[Tpid]]
}

func NewPidAllocator() *PidAllocator {
	return &PidAllocator{fl: excl.NewCell("pids", freelist.NewFreeList[Tpid](INITPID, MAX_PIDS))}
}

func (pa *PidAllocator) Alloc() Tpid {
	g := pa.fl.Access()
	defer g.Release()
	pid, ok := (*g.Get()).Alloc()
	if !ok {
		db.DFatalf("out of pids")
	}
	db.DPrintf(db.PID, "alloc %v", pid)
	return pid
}

func (pa *PidAllocator) Free(pid Tpid) {
	g := pa.fl.Access()
	defer g.Release()
	(*g.Get()).Free(pid)
	db.DPrintf(db.PID, "free %v", pid)
}

// Len returns the number of pids in use.
func (pa *PidAllocator) Len() int {
	g := pa.fl.Access()
	defer g.Release()
	return (*g.Get()).Len()
}
