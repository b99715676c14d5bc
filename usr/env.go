package usr

import (
	"encoding/binary"

	db "ukernel/debug"
	"ukernel/trap"
	"ukernel/uapi"
)

// Env is a user program's view of its task: syscall wrappers and
// access to its own memory.
type Env struct {
	rt *Runtime
	m  trap.Machine
}

// Syscall traps into the kernel and returns the result from x10.
func (e *Env) Syscall(id, a0, a1, a2 uint64) int64 {
	e.m.Context().SetSyscall(id, [3]uint64{a0, a1, a2})
	e.m.Ecall()
	rc := e.m.Context().Result()
	if id == uapi.SYSCALL_EXEC && rc == 0 {
		panic(execed{})
	}
	return rc
}

func (e *Env) Load(va uint64, n int) ([]byte, error) {
	return e.m.Memory().Load(va, n)
}

func (e *Env) Store(va uint64, b []byte) error {
	return e.m.Memory().Store(va, b)
}

// Sp returns the user stack pointer.
func (e *Env) Sp() uint64 {
	return e.m.Context().X(trap.X_SP)
}

// scratch returns n bytes of user stack below the stack pointer.
func (e *Env) scratch(n int) uint64 {
	return (e.Sp() - uint64(n)) &^ 0xf
}

func (e *Env) pushStr(s string) uint64 {
	va := e.scratch(len(s) + 1)
	if err := e.Store(va, append([]byte(s), 0)); err != nil {
		db.DFatalf("pushStr %v", err)
	}
	return va
}

func (e *Env) Exit(code int) {
	e.Syscall(uapi.SYSCALL_EXIT, uint64(int64(code)), 0, 0)
	db.DFatalf("exit returned")
}

func (e *Env) Yield() int64 {
	return e.Syscall(uapi.SYSCALL_YIELD, 0, 0, 0)
}

func (e *Env) Getpid() int64 {
	return e.Syscall(uapi.SYSCALL_GETPID, 0, 0, 0)
}

// Fork clones the task. The parent gets the child's pid; the child
// runs child, whose return value is its exit code.
func (e *Env) Fork(child Main) int64 {
	cx := e.m.Context()
	sepc := cx.Sepc()
	label := e.rt.addCont(child)
	cx.SetSepc(label)
	rc := e.Syscall(uapi.SYSCALL_FORK, 0, 0, 0)
	e.m.Context().SetSepc(sepc)
	if rc < 0 {
		e.rt.takeCont(label)
	}
	return rc
}

// ForkRet is the fork result a forked child observes: x10 at its
// first dispatch.
func (e *Env) ForkRet() int64 {
	return e.m.Context().Result()
}

// Exec replaces the program; it returns only on failure.
func (e *Env) Exec(path string) int64 {
	return e.Syscall(uapi.SYSCALL_EXEC, e.pushStr(path), 0, 0)
}

func (e *Env) Spawn(path string) int64 {
	return e.Syscall(uapi.SYSCALL_SPAWN, e.pushStr(path), 0, 0)
}

// Waitpid reaps an exited child (any child for pid -1). It returns
// the child's pid and exit code, -1 if no child matches, or -2 if no
// matching child has exited yet.
func (e *Env) Waitpid(pid int64) (int64, int32) {
	va := e.scratch(4)
	rc := e.Syscall(uapi.SYSCALL_WAITPID, uint64(pid), va, 0)
	if rc < 0 {
		return rc, 0
	}
	b, err := e.Load(va, 4)
	if err != nil {
		db.DFatalf("Waitpid load %v", err)
	}
	return rc, int32(binary.LittleEndian.Uint32(b))
}

// Wait yields until a matching child exits and reaps it.
func (e *Env) Wait(pid int64) (int64, int32) {
	for {
		rc, code := e.Waitpid(pid)
		if rc != -2 {
			return rc, code
		}
		e.Yield()
	}
}

func (e *Env) Sbrk(delta int64) int64 {
	return e.Syscall(uapi.SYSCALL_SBRK, uint64(delta), 0, 0)
}

func (e *Env) Mmap(start, sz, port uint64) int64 {
	return e.Syscall(uapi.SYSCALL_MMAP, start, sz, port)
}

func (e *Env) Munmap(start, sz uint64) int64 {
	return e.Syscall(uapi.SYSCALL_MUNMAP, start, sz, 0)
}

func (e *Env) GetTimeAt(va uint64) int64 {
	return e.Syscall(uapi.SYSCALL_GET_TIME, va, 0, 0)
}

func (e *Env) GetTime() (uapi.TimeVal, int64) {
	va := e.scratch(uapi.TIMEVAL_SZ)
	if rc := e.GetTimeAt(va); rc < 0 {
		return uapi.TimeVal{}, rc
	}
	b, err := e.Load(va, uapi.TIMEVAL_SZ)
	if err != nil {
		return uapi.TimeVal{}, -1
	}
	tv, err := uapi.UnmarshalTimeVal(b)
	if err != nil {
		return uapi.TimeVal{}, -1
	}
	return tv, 0
}

func (e *Env) TaskInfoAt(va uint64) int64 {
	return e.Syscall(uapi.SYSCALL_TASK_INFO, va, 0, 0)
}

func (e *Env) TaskInfo() (*uapi.TaskInfo, int64) {
	va := e.scratch(uapi.TASKINFO_SZ)
	if rc := e.TaskInfoAt(va); rc < 0 {
		return nil, rc
	}
	b, err := e.Load(va, uapi.TASKINFO_SZ)
	if err != nil {
		return nil, -1
	}
	ti, err := uapi.UnmarshalTaskInfo(b)
	if err != nil {
		return nil, -1
	}
	return ti, 0
}

func (e *Env) SetPriority(prio int64) int64 {
	return e.Syscall(uapi.SYSCALL_SET_PRIORITY, uint64(prio), 0, 0)
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (e *Env) MutexCreate(blocking bool) int64 {
	return e.Syscall(uapi.SYSCALL_MUTEX_CREATE, b2u(blocking), 0, 0)
}

func (e *Env) MutexLock(id int64) int64 {
	return e.Syscall(uapi.SYSCALL_MUTEX_LOCK, uint64(id), 0, 0)
}

func (e *Env) MutexUnlock(id int64) int64 {
	return e.Syscall(uapi.SYSCALL_MUTEX_UNLOCK, uint64(id), 0, 0)
}

func (e *Env) SemaphoreCreate(count int64) int64 {
	return e.Syscall(uapi.SYSCALL_SEMAPHORE_CREATE, uint64(count), 0, 0)
}

func (e *Env) SemaphoreUp(id int64) int64 {
	return e.Syscall(uapi.SYSCALL_SEMAPHORE_UP, uint64(id), 0, 0)
}

func (e *Env) SemaphoreDown(id int64) int64 {
	return e.Syscall(uapi.SYSCALL_SEMAPHORE_DOWN, uint64(id), 0, 0)
}

func (e *Env) CondvarCreate() int64 {
	return e.Syscall(uapi.SYSCALL_CONDVAR_CREATE, 0, 0, 0)
}

func (e *Env) CondvarSignal(id int64) int64 {
	return e.Syscall(uapi.SYSCALL_CONDVAR_SIGNAL, uint64(id), 0, 0)
}

func (e *Env) CondvarWait(cid, mid int64) int64 {
	return e.Syscall(uapi.SYSCALL_CONDVAR_WAIT, uint64(cid), uint64(mid), 0)
}

func (e *Env) EnableDeadlockDetect(on bool) int64 {
	return e.Syscall(uapi.SYSCALL_ENABLE_DEADLOCK_DETECT, b2u(on), 0, 0)
}
