// Package boot wires a kernel together and runs it.
package boot

import (
	db "ukernel/debug"
	"ukernel/kernel"
	"ukernel/ksyscall"
	"ukernel/loader"
	"ukernel/param"
	"ukernel/timer"
	"ukernel/usr"
)

type Boot struct {
	K *kernel.Kernel
}

// The boot processes enters here
func BootUp(conf *param.Config, ld loader.Loader, clk timer.Clock, rt *usr.Runtime) (*Boot, error) {
	k := kernel.NewKernel(conf, ld, clk, rt)
	k.SetHandler(ksyscall.NewSyscalls(k))
	if err := k.Boot(); err != nil {
		return nil, err
	}
	db.DPrintf(db.BOOT, "booted %v", k)
	return &Boot{K: k}, nil
}

// Run runs the kernel until it halts.
func (b *Boot) Run() error {
	return b.K.Run()
}

// Images returns a loader holding an image for every program
// registered with rt.
func Images(rt *usr.Runtime, pgsz uint64) *loader.MemLoader {
	ml := loader.NewMemLoader()
	for _, n := range rt.Programs() {
		ml.Add(n, loader.BuildImage(n, pgsz))
	}
	return ml
}
