// Package test boots kernels for tests: the test supplies initproc as
// a Go function, and every program in usr/apps is loadable by name.
package test

import (
	"flag"
	"testing"

	"ukernel/boot"
	db "ukernel/debug"
	"ukernel/loader"
	"ukernel/param"
	"ukernel/timer"
	"ukernel/usr"
	"ukernel/usr/apps"
)

var policy string
var nframe int

func init() {
	flag.StringVar(&policy, "policy", "", "Scheduling policy (stride or prio)")
	flag.IntVar(&nframe, "nframe", 0, "Number of physical frames")
}

type Tstate struct {
	*boot.Boot
	T    *testing.T
	Rt   *usr.Runtime
	Ld   *loader.MemLoader
	Clk  *timer.Manual
	Conf *param.Config
}

// NewTstate boots a kernel whose initproc is main.
func NewTstate(t *testing.T, main usr.Main) *Tstate {
	return NewTstateConf(t, param.Conf.Copy(), main)
}

func NewTstateConf(t *testing.T, conf *param.Config, main usr.Main) *Tstate {
	if policy != "" {
		conf.Sched.POLICY = param.Tpolicy(policy)
	}
	if nframe != 0 {
		conf.MM.NFRAME = nframe
	}
	rt := usr.NewRuntime()
	apps.Register(rt, "hello")
	rt.Register(conf.Boot.INITPROC, main)
	ts := &Tstate{T: t, Rt: rt, Clk: timer.NewManual(), Conf: conf}
	ts.Ld = boot.Images(rt, conf.MM.PAGE_SIZE)
	b, err := boot.BootUp(conf, ts.Ld, ts.Clk, rt)
	if err != nil {
		db.DFatalf("NewTstate: %v", err)
	}
	ts.Boot = b
	return ts
}

// Register makes main loadable as name in the booted kernel.
func (ts *Tstate) Register(name string, main usr.Main) {
	ts.Rt.Register(name, main)
	ts.Ld.Add(name, loader.BuildImage(name, ts.Conf.MM.PAGE_SIZE))
}

// RunApp boots a kernel that runs program name and returns its exit
// code.
func RunApp(t *testing.T, name string) int32 {
	code := int32(-1)
	ts := NewTstate(t, func(e *usr.Env) int {
		pid := e.Spawn(name)
		if pid < 0 {
			return 1
		}
		_, code = e.Wait(pid)
		return 0
	})
	if err := ts.Run(); err != nil {
		t.Fatalf("RunApp %v: %v", name, err)
	}
	return code
}
