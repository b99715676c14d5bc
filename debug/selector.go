package debug

type Tselector string

// ALWAYS
const (
	ALWAYS Tselector = "ALWAYS"
	ERROR            = "ERROR"
	NEVER            = "NEVER"
)

// ERR
const (
	ERR Tselector = "_ERR"
)

// Tests
const (
	TEST  Tselector = "TEST"
	TEST1           = "TEST1"
	USER            = "USER"
)

// Kernel core
const (
	KERNEL    Tselector = "KERNEL"
	BOOT                = "BOOT"
	TASK                = "TASK"
	TASK_ERR            = TASK + ERR
	PID                 = "PID"
	SCHED               = "SCHED"
	PROCESSOR           = "PROCESSOR"
	CTXSW               = "CTXSW"
	EXCL                = "EXCL"
)

// Syscalls
const (
	SYSCALL     Tselector = "SYSCALL"
	SYSCALL_ERR           = SYSCALL + ERR
	WAITPID               = "WAITPID"
	MMAP                  = "MMAP"
)

// Synchronization
const (
	KSYNC    Tselector = "KSYNC"
	DEADLOCK           = "DEADLOCK"
)

// Memory and loading
const (
	MM         Tselector = "MM"
	MM_ERR               = MM + ERR
	FRAME                = "FRAME"
	LOADER               = "LOADER"
	LOADER_ERR           = LOADER + ERR
	PARAM                = "PARAM"
)
