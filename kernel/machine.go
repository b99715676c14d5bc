package kernel

import (
	"ukernel/mm"
	"ukernel/trap"
)

// The kernel is the machine user code runs on: Context and Memory
// always resolve to the running task.

func (k *Kernel) Context() *trap.Context {
	cur := k.Current()
	g := cur.Access()
	defer g.Release()
	return g.Get().TrapCx
}

func (k *Kernel) Memory() trap.Memory {
	return &userMem{k: k}
}

func (k *Kernel) Ecall() {
	k.h.Trap()
}

type userMem struct {
	k *Kernel
}

func (um *userMem) mem() *mm.MemorySet {
	cur := um.k.Current()
	g := cur.Access()
	defer g.Release()
	return g.Get().Mem
}

func (um *userMem) Load(va uint64, n int) ([]byte, error) {
	ms := um.mem()
	return ms.UserLoad(mm.VirtAddr(va), n)
}

func (um *userMem) Store(va uint64, b []byte) error {
	ms := um.mem()
	return ms.UserStore(mm.VirtAddr(va), b)
}

func (um *userMem) LoadStr(va uint64) (string, error) {
	ms := um.mem()
	return ms.TranslatedStr(mm.VirtAddr(va))
}
