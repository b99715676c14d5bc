// Package trap defines the register file saved when user code traps
// into the kernel and the machine interface user code runs against.
package trap

import (
	"encoding/binary"
	"fmt"

	db "ukernel/debug"
)

const (
	NREG     = 32
	SEPC_OFF = NREG * 8
	SZ       = SEPC_OFF + 8

	X_SP = 2  // user stack pointer
	X_A0 = 10 // first argument and result
	X_A1 = 11
	X_A2 = 12
	X_A7 = 17 // syscall id
)

// Context is a view over the trap-context page of a task's address
// space: x0..x31 followed by sepc, little endian. Because it lives in
// the address space, duplicating the address space duplicates it.
type Context struct {
	b []byte
}

func NewContext(b []byte) *Context {
	if len(b) < SZ {
		db.DFatalf("trap context page too small %d", len(b))
	}
	return &Context{b: b[:SZ]}
}

// Init resets the registers for a fresh image.
func (cx *Context) Init(entry, sp uint64) {
	clear(cx.b)
	cx.SetSepc(entry)
	cx.SetX(X_SP, sp)
}

func (cx *Context) X(i int) uint64 {
	return binary.LittleEndian.Uint64(cx.b[i*8:])
}

func (cx *Context) SetX(i int, v uint64) {
	if i == 0 {
		return
	}
	binary.LittleEndian.PutUint64(cx.b[i*8:], v)
}

func (cx *Context) Sepc() uint64 {
	return binary.LittleEndian.Uint64(cx.b[SEPC_OFF:])
}

func (cx *Context) SetSepc(v uint64) {
	binary.LittleEndian.PutUint64(cx.b[SEPC_OFF:], v)
}

// Syscall returns the syscall id and its three arguments.
func (cx *Context) Syscall() (uint64, [3]uint64) {
	return cx.X(X_A7), [3]uint64{cx.X(X_A0), cx.X(X_A1), cx.X(X_A2)}
}

func (cx *Context) SetSyscall(id uint64, args [3]uint64) {
	cx.SetX(X_A7, id)
	cx.SetX(X_A0, args[0])
	cx.SetX(X_A1, args[1])
	cx.SetX(X_A2, args[2])
}

func (cx *Context) SetResult(rc int64) {
	cx.SetX(X_A0, uint64(rc))
}

func (cx *Context) Result() int64 {
	return int64(cx.X(X_A0))
}

func (cx *Context) String() string {
	return fmt.Sprintf("{sepc %#x sp %#x a0 %#x a7 %d}", cx.Sepc(), cx.X(X_SP), cx.X(X_A0), cx.X(X_A7))
}

// Memory is the current task's address space as user code sees it:
// accesses are checked against the user permissions of each page.
type Memory interface {
	Load(va uint64, n int) ([]byte, error)
	Store(va uint64, b []byte) error
	LoadStr(va uint64) (string, error)
}

// Machine is the core as seen by the user code of the running task.
// Context and Memory always refer to the task running now.
type Machine interface {
	Context() *Context
	Memory() Memory
	// Ecall traps into the kernel with the syscall held in Context. It
	// returns when the task next runs, with the result in x10.
	Ecall()
}

// Runtime executes user code for the running task, starting at the
// task's sepc. Resume does not return: tasks leave through exit.
type Runtime interface {
	Resume(m Machine)
}

// Handler is the kernel's syscall entry.
type Handler interface {
	Trap()
}
