// Package timer is the kernel's monotonic clock, in microseconds since
// boot.
package timer

import (
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	db "ukernel/debug"
)

type Clock interface {
	NowUs() uint64
}

// Monotonic reads CLOCK_MONOTONIC relative to its creation.
type Monotonic struct {
	boot int64
}

func monoNs() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		db.DFatalf("ClockGettime: %v", err)
	}
	return ts.Nano()
}

func NewMonotonic() *Monotonic {
	return &Monotonic{boot: monoNs()}
}

func (m *Monotonic) NowUs() uint64 {
	return uint64(monoNs()-m.boot) / 1000
}

// Manual is a clock that moves only when told to.
type Manual struct {
	us atomic.Uint64
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) NowUs() uint64 {
	return m.us.Load()
}

func (m *Manual) Advance(us uint64) {
	m.us.Add(us)
}

func NowMs(c Clock) uint64 {
	return c.NowUs() / 1000
}
