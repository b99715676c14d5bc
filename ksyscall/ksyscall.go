// Package ksyscall is the kernel's syscall entry: it decodes the
// syscall in the running task's trap context, runs it, and writes the
// result back to x10.
package ksyscall

import (
	db "ukernel/debug"
	"ukernel/kernel"
	"ukernel/proc"
	"ukernel/serr"
	"ukernel/uapi"
)

type Syscalls struct {
	k *kernel.Kernel
}

func NewSyscalls(k *kernel.Kernel) *Syscalls {
	return &Syscalls{k: k}
}

// Trap handles the syscall held in the running task's trap context.
func (sc *Syscalls) Trap() {
	id, args := sc.k.Context().Syscall()
	rc := sc.Dispatch(id, args)
	// Fetch the context again: exec replaces it, and the task may have
	// been switched out and back in.
	sc.k.Context().SetResult(rc)
}

func rc(err error) int64 {
	return serr.Rc(err)
}

// Dispatch counts and runs syscall id for the running task and returns
// its result. exit does not return.
func (sc *Syscalls) Dispatch(id uint64, args [3]uint64) int64 {
	k := sc.k
	k.CountSyscall(id)
	db.DPrintf(db.SYSCALL, "%v %v %#x", k.Current(), uapi.SyscallName(id), args)
	switch id {
	case uapi.SYSCALL_EXIT:
		k.Exit(int32(args[0]))
		db.DFatalf("exit returned")
		return serr.RC_ERR
	case uapi.SYSCALL_YIELD:
		k.Processor().Yield()
		return serr.RC_OK
	case uapi.SYSCALL_GETPID:
		return int64(k.Current().Pid())
	case uapi.SYSCALL_FORK:
		child, err := k.Fork()
		if err != nil {
			return rc(err)
		}
		return int64(child.Pid())
	case uapi.SYSCALL_EXEC:
		return sc.exec(args[0])
	case uapi.SYSCALL_SPAWN:
		return sc.spawn(args[0])
	case uapi.SYSCALL_WAITPID:
		pid, err := k.Waitpid(proc.Tpid(int64(args[0])), args[1])
		if err != nil {
			return rc(err)
		}
		return int64(pid)
	case uapi.SYSCALL_SBRK:
		old, err := k.Sbrk(int64(args[0]))
		if err != nil {
			return rc(err)
		}
		return int64(old)
	case uapi.SYSCALL_MMAP:
		return rc(k.Mmap(args[0], args[1], args[2]))
	case uapi.SYSCALL_MUNMAP:
		return rc(k.Munmap(args[0], args[1]))
	case uapi.SYSCALL_GET_TIME:
		return rc(k.GetTime(args[0]))
	case uapi.SYSCALL_TASK_INFO:
		return rc(k.TaskInfo(args[0]))
	case uapi.SYSCALL_SET_PRIORITY:
		old, err := k.SetPriority(int64(args[0]))
		if err != nil {
			return rc(err)
		}
		return old
	case uapi.SYSCALL_MUTEX_CREATE:
		return int64(k.MutexCreate(args[0] != 0))
	case uapi.SYSCALL_MUTEX_LOCK:
		return rc(k.MutexLock(args[0]))
	case uapi.SYSCALL_MUTEX_UNLOCK:
		return rc(k.MutexUnlock(args[0]))
	case uapi.SYSCALL_SEMAPHORE_CREATE:
		return int64(k.SemaphoreCreate(int64(args[0])))
	case uapi.SYSCALL_SEMAPHORE_UP:
		return rc(k.SemaphoreUp(args[0]))
	case uapi.SYSCALL_SEMAPHORE_DOWN:
		return rc(k.SemaphoreDown(args[0]))
	case uapi.SYSCALL_ENABLE_DEADLOCK_DETECT:
		return rc(k.EnableDeadlockDetect(args[0]))
	case uapi.SYSCALL_CONDVAR_CREATE:
		return int64(k.CondvarCreate())
	case uapi.SYSCALL_CONDVAR_SIGNAL:
		return rc(k.CondvarSignal(args[0]))
	case uapi.SYSCALL_CONDVAR_WAIT:
		return rc(k.CondvarWait(args[0], args[1]))
	default:
		err := serr.NewErr(serr.TErrUnknownSyscall, id)
		db.DPrintf(db.SYSCALL_ERR, "%v %v", k.Current(), err)
		return rc(err)
	}
}

func (sc *Syscalls) path(va uint64) (string, bool) {
	p, err := sc.k.Memory().LoadStr(va)
	if err != nil {
		db.DPrintf(db.SYSCALL_ERR, "path at %#x err %v", va, err)
		return "", false
	}
	return p, true
}

func (sc *Syscalls) exec(va uint64) int64 {
	p, ok := sc.path(va)
	if !ok {
		return serr.RC_ERR
	}
	return rc(sc.k.Exec(p))
}

func (sc *Syscalls) spawn(va uint64) int64 {
	p, ok := sc.path(va)
	if !ok {
		return serr.RC_ERR
	}
	child, err := sc.k.Spawn(p)
	if err != nil {
		return rc(err)
	}
	return int64(child.Pid())
}
