// Package uapi is the syscall ABI shared by the kernel and user
// programs: syscall ids and the fixed layouts of records the kernel
// copies into user memory.
package uapi

import (
	"encoding/binary"
	"fmt"
)

const (
	SYSCALL_EXIT                   = 93
	SYSCALL_YIELD                  = 124
	SYSCALL_SET_PRIORITY           = 140
	SYSCALL_GET_TIME               = 169
	SYSCALL_GETPID                 = 172
	SYSCALL_SBRK                   = 214
	SYSCALL_MUNMAP                 = 215
	SYSCALL_FORK                   = 220
	SYSCALL_EXEC                   = 221
	SYSCALL_MMAP                   = 222
	SYSCALL_WAITPID                = 260
	SYSCALL_SPAWN                  = 400
	SYSCALL_TASK_INFO              = 410
	SYSCALL_MUTEX_CREATE           = 463
	SYSCALL_MUTEX_LOCK             = 464
	SYSCALL_MUTEX_UNLOCK           = 466
	SYSCALL_SEMAPHORE_CREATE       = 467
	SYSCALL_SEMAPHORE_UP           = 468
	SYSCALL_ENABLE_DEADLOCK_DETECT = 469
	SYSCALL_SEMAPHORE_DOWN         = 470
	SYSCALL_CONDVAR_CREATE         = 471
	SYSCALL_CONDVAR_SIGNAL         = 472
	SYSCALL_CONDVAR_WAIT           = 473
)

// Number of syscall counters reported by task_info.
const MAX_SYSCALL_NUM = 500

var names = map[uint64]string{
	SYSCALL_EXIT:                   "exit",
	SYSCALL_YIELD:                  "yield",
	SYSCALL_SET_PRIORITY:           "set_priority",
	SYSCALL_GET_TIME:               "get_time",
	SYSCALL_GETPID:                 "getpid",
	SYSCALL_SBRK:                   "sbrk",
	SYSCALL_MUNMAP:                 "munmap",
	SYSCALL_FORK:                   "fork",
	SYSCALL_EXEC:                   "exec",
	SYSCALL_MMAP:                   "mmap",
	SYSCALL_WAITPID:                "waitpid",
	SYSCALL_SPAWN:                  "spawn",
	SYSCALL_TASK_INFO:              "task_info",
	SYSCALL_MUTEX_CREATE:           "mutex_create",
	SYSCALL_MUTEX_LOCK:             "mutex_lock",
	SYSCALL_MUTEX_UNLOCK:           "mutex_unlock",
	SYSCALL_SEMAPHORE_CREATE:       "semaphore_create",
	SYSCALL_SEMAPHORE_UP:           "semaphore_up",
	SYSCALL_ENABLE_DEADLOCK_DETECT: "enable_deadlock_detect",
	SYSCALL_SEMAPHORE_DOWN:         "semaphore_down",
	SYSCALL_CONDVAR_CREATE:         "condvar_create",
	SYSCALL_CONDVAR_SIGNAL:         "condvar_signal",
	SYSCALL_CONDVAR_WAIT:           "condvar_wait",
}

func SyscallName(id uint64) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("syscall-%d", id)
}

// mmap port bits
const (
	PORT_R    = 0x1
	PORT_W    = 0x2
	PORT_X    = 0x4
	PORT_MASK = PORT_R | PORT_W | PORT_X
)

// Task status as reported by task_info.
const (
	STATUS_UNINIT  = 0
	STATUS_READY   = 1
	STATUS_RUNNING = 2
	STATUS_BLOCKED = 3
	STATUS_ZOMBIE  = 4
)

const TIMEVAL_SZ = 16

type TimeVal struct {
	Sec  uint64
	Usec uint64
}

func NewTimeVal(us uint64) TimeVal {
	return TimeVal{Sec: us / 1_000_000, Usec: us % 1_000_000}
}

func (tv TimeVal) Marshal() []byte {
	b := make([]byte, TIMEVAL_SZ)
	binary.LittleEndian.PutUint64(b[0:], tv.Sec)
	binary.LittleEndian.PutUint64(b[8:], tv.Usec)
	return b
}

func UnmarshalTimeVal(b []byte) (TimeVal, error) {
	if len(b) < TIMEVAL_SZ {
		return TimeVal{}, fmt.Errorf("timeval: short buffer %d", len(b))
	}
	return TimeVal{
		Sec:  binary.LittleEndian.Uint64(b[0:]),
		Usec: binary.LittleEndian.Uint64(b[8:]),
	}, nil
}

// TaskInfo layout: u32 status, u32 syscall_times[500], 4 bytes of
// padding, u64 time in ms.
const (
	TASKINFO_TIMES_OFF = 4
	TASKINFO_TIME_OFF  = 2008
	TASKINFO_SZ        = 2016
)

type TaskInfo struct {
	Status       uint32
	SyscallTimes [MAX_SYSCALL_NUM]uint32
	Time         uint64
}

func (ti *TaskInfo) Marshal() []byte {
	b := make([]byte, TASKINFO_SZ)
	binary.LittleEndian.PutUint32(b[0:], ti.Status)
	for i, n := range ti.SyscallTimes {
		binary.LittleEndian.PutUint32(b[TASKINFO_TIMES_OFF+4*i:], n)
	}
	binary.LittleEndian.PutUint64(b[TASKINFO_TIME_OFF:], ti.Time)
	return b
}

func UnmarshalTaskInfo(b []byte) (*TaskInfo, error) {
	if len(b) < TASKINFO_SZ {
		return nil, fmt.Errorf("taskinfo: short buffer %d", len(b))
	}
	ti := &TaskInfo{Status: binary.LittleEndian.Uint32(b[0:])}
	for i := range ti.SyscallTimes {
		ti.SyscallTimes[i] = binary.LittleEndian.Uint32(b[TASKINFO_TIMES_OFF+4*i:])
	}
	ti.Time = binary.LittleEndian.Uint64(b[TASKINFO_TIME_OFF:])
	return ti, nil
}
