package kernel

import (
	"ukernel/loader"
	"ukernel/mm"
	"ukernel/serr"
	"ukernel/trap"
)

type image struct {
	ms         *mm.MemorySet
	trapCx     *trap.Context
	heapBottom uint64
}

func (k *Kernel) trapContext(ms *mm.MemorySet) *trap.Context {
	b, ok := ms.PageBytes(mm.Floor(mm.VirtAddr(k.conf.MM.TRAP_CONTEXT), k.conf.MM.PAGE_SIZE))
	if !ok {
		return nil
	}
	return trap.NewContext(b)
}

// newImage builds an address space from img: its segments, a guard
// page, the user stack, an empty heap area on top of the stack, and
// the trap-context page (kernel only).
func (k *Kernel) newImage(img *loader.Image) (*image, error) {
	pgsz := k.conf.MM.PAGE_SIZE
	ms := mm.NewMemorySet(k.frames)
	for _, s := range img.Segments {
		if err := ms.LoadSegment(mm.VirtAddr(s.Vaddr), s.Memsz, s.Perm, s.Data); err != nil {
			ms.Recycle()
			return nil, err
		}
	}
	end := uint64(mm.Ceil(mm.VirtAddr(img.End()), pgsz).Addr(pgsz))
	bottom := end + pgsz
	top := bottom + k.conf.MM.USER_STACK_SIZE
	if top > k.conf.MM.TRAP_CONTEXT {
		ms.Recycle()
		return nil, serr.NewErr(serr.TErrBadImage, img.Name)
	}
	urw := mm.PERM_U | mm.PERM_R | mm.PERM_W
	trapVa := mm.VirtAddr(k.conf.MM.TRAP_CONTEXT)
	for _, r := range []struct {
		start, end mm.VirtAddr
		perm       mm.Tperm
	}{
		{mm.VirtAddr(bottom), mm.VirtAddr(top), urw},
		{mm.VirtAddr(top), mm.VirtAddr(top), urw},
		{trapVa, trapVa + mm.VirtAddr(pgsz), mm.PERM_R | mm.PERM_W},
	} {
		if err := ms.Insert(r.start, r.end, r.perm); err != nil {
			ms.Recycle()
			return nil, err
		}
	}
	cx := k.trapContext(ms)
	cx.Init(img.Entry, top)
	return &image{ms: ms, trapCx: cx, heapBottom: top}, nil
}

func (k *Kernel) loadImage(path string) (*image, error) {
	img, err := k.ld.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return k.newImage(img)
}
