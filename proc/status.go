package proc

import (
	db "ukernel/debug"
	"ukernel/uapi"
)

type Tstatus uint32

const (
	UnInit  Tstatus = uapi.STATUS_UNINIT
	Ready   Tstatus = uapi.STATUS_READY
	Running Tstatus = uapi.STATUS_RUNNING
	Blocked Tstatus = uapi.STATUS_BLOCKED
	Zombie  Tstatus = uapi.STATUS_ZOMBIE
)

func (status Tstatus) String() string {
	switch status {
	case UnInit:
		return "UNINIT"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Zombie:
		return "ZOMBIE"
	default:
		return "unknown status"
	}
}

var transitions = map[Tstatus][]Tstatus{
	UnInit:  {Ready},
	Ready:   {Running},
	Running: {Ready, Blocked, Zombie},
	Blocked: {Ready},
}

func ValidTransition(from, to Tstatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Caller holds borrow
func (in *Inner) setStatus(pid Tpid, to Tstatus) {
	if !ValidTransition(in.Status, to) {
		db.DFatalf("task %v: invalid transition %v -> %v", pid, in.Status, to)
	}
	db.DPrintf(db.TASK, "task %v: %v -> %v", pid, in.Status, to)
	in.Status = to
}
