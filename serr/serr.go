// Package serr defines the kernel's error codes and their mapping onto
// the syscall ABI's negative return values.
package serr

import (
	"errors"
	"fmt"
)

type Terror uint32

const (
	TErrNoError Terror = iota
	TErrInval
	TErrNotfound
	TErrExists
	TErrNomem
	TErrFault
	TErrNochild
	TErrChildAlive
	TErrDeadlock
	TErrBadImage
	TErrUnknownSyscall

	TErrError // to propagate non-kernel errors
)

func (err Terror) String() string {
	switch err {
	case TErrNoError:
		return "No error"
	case TErrInval:
		return "invalid argument"
	case TErrNotfound:
		return "not found"
	case TErrExists:
		return "exists"
	case TErrNomem:
		return "out of memory"
	case TErrFault:
		return "bad address"
	case TErrNochild:
		return "no such child"
	case TErrChildAlive:
		return "child still alive"
	case TErrDeadlock:
		return "deadlock"
	case TErrBadImage:
		return "bad image"
	case TErrUnknownSyscall:
		return "unknown syscall"
	case TErrError:
		return "Non-kernel error"
	default:
		return "unknown error"
	}
}

// Syscall return values
const (
	RC_OK       = 0
	RC_ERR      = -1
	RC_RUNNING  = -2
	RC_DEADLOCK = -0xDEAD
)

type Err struct {
	ErrCode Terror
	Obj     string
	Err     error
}

func NewErr(err Terror, obj interface{}) *Err {
	return &Err{
		ErrCode: err,
		Obj:     fmt.Sprintf("%v", obj),
		Err:     nil,
	}
}

func NewErrError(error error) *Err {
	return &Err{
		ErrCode: TErrError,
		Obj:     "",
		Err:     error,
	}
}

func (err *Err) Code() Terror {
	return err.ErrCode
}

func (err *Err) Unwrap() error {
	return err.Err
}

func (err *Err) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("{Err: %q Obj: %q (%v)}", err.ErrCode, err.Obj, err.Err)
	}
	return fmt.Sprintf("{Err: %q Obj: %q}", err.ErrCode, err.Obj)
}

func (err *Err) String() string {
	return err.Error()
}

// Rc maps an error onto the value a syscall returns to user space.
func (err *Err) Rc() int64 {
	switch err.ErrCode {
	case TErrNoError:
		return RC_OK
	case TErrChildAlive:
		return RC_RUNNING
	case TErrDeadlock:
		return RC_DEADLOCK
	default:
		return RC_ERR
	}
}

func IsErr(error error) (*Err, bool) {
	var err *Err
	if errors.As(error, &err) {
		return err, true
	}
	return nil, false
}

func IsErrCode(error error, code Terror) bool {
	if err, ok := IsErr(error); ok {
		return err.ErrCode == code
	}
	return false
}

func IsErrNotfound(error error) bool {
	return IsErrCode(error, TErrNotfound)
}

// Rc maps any error onto a syscall return value; nil maps to 0.
func Rc(error error) int64 {
	if error == nil {
		return RC_OK
	}
	if err, ok := IsErr(error); ok {
		return err.Rc()
	}
	return RC_ERR
}
