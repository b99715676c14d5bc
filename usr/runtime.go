// Package usr runs user programs on task contexts. Programs are Go
// functions registered by name; a task's image carries the program
// name at its entry point, and the program talks to the kernel only
// through syscalls in its trap context.
package usr

import (
	"fmt"
	"sync"

	db "ukernel/debug"
	"ukernel/trap"
)

// Main is a user program; its return value is the exit code.
type Main func(e *Env) int

// A sepc with CONT_BIT set names a fork continuation instead of an
// address in the image.
const CONT_BIT = uint64(1) << 63

type execed struct{}

type Runtime struct {
	sync.Mutex
	progs map[string]Main
	conts map[uint64]Main
	next  uint64
}

func NewRuntime() *Runtime {
	return &Runtime{
		progs: make(map[string]Main),
		conts: make(map[uint64]Main),
	}
}

func (rt *Runtime) Register(name string, main Main) {
	rt.Lock()
	defer rt.Unlock()
	rt.progs[name] = main
}

func (rt *Runtime) Programs() []string {
	rt.Lock()
	defer rt.Unlock()
	ps := make([]string, 0, len(rt.progs))
	for n := range rt.progs {
		ps = append(ps, n)
	}
	return ps
}

func (rt *Runtime) lookup(name string) (Main, bool) {
	rt.Lock()
	defer rt.Unlock()
	m, ok := rt.progs[name]
	return m, ok
}

func (rt *Runtime) addCont(main Main) uint64 {
	rt.Lock()
	defer rt.Unlock()
	label := CONT_BIT | rt.next
	rt.next++
	rt.conts[label] = main
	return label
}

func (rt *Runtime) takeCont(label uint64) (Main, bool) {
	rt.Lock()
	defer rt.Unlock()
	m, ok := rt.conts[label]
	delete(rt.conts, label)
	return m, ok
}

// Resume runs the running task's program from its sepc. A successful
// exec unwinds the old program and starts over at the new entry.
func (rt *Runtime) Resume(m trap.Machine) {
	for {
		rt.run(m)
	}
}

func (rt *Runtime) run(m trap.Machine) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(execed); ok {
				return
			}
			panic(r)
		}
	}()
	e := &Env{rt: rt, m: m}
	main, err := rt.main(m)
	if err != nil {
		db.DPrintf(db.USER, "%v", err)
		e.Exit(-1)
		return
	}
	e.Exit(main(e))
}

func (rt *Runtime) main(m trap.Machine) (Main, error) {
	sepc := m.Context().Sepc()
	if sepc&CONT_BIT != 0 {
		if main, ok := rt.takeCont(sepc); ok {
			return main, nil
		}
		return nil, fmt.Errorf("no continuation %#x", sepc)
	}
	name, err := m.Memory().LoadStr(sepc)
	if err != nil {
		return nil, fmt.Errorf("entry %#x: %v", sepc, err)
	}
	main, ok := rt.lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown program %q", name)
	}
	return main, nil
}
