package mm

import (
	"fmt"

	"github.com/dustin/go-humanize"

	db "ukernel/debug"
	"ukernel/excl"
	"ukernel/serr"
	"ukernel/util/freelist"
)

type frameTable struct {
	fl  *freelist.FreeList[PPN]
	mem map[PPN][]byte
}

// Frames is the physical memory available to user address spaces: a
// fixed number of page-sized frames.
type Frames struct {
	pgsz  uint64
	nfram int
	tab   *excl.Cell[frameTable]
}

func NewFrames(pgsz uint64, nframe int) *Frames {
	return &Frames{
		pgsz:  pgsz,
		nfram: nframe,
		tab: excl.NewCell("frames", frameTable{
			fl:  freelist.NewFreeList[PPN](0, PPN(nframe)),
			mem: make(map[PPN][]byte),
		}),
	}
}

func (fr *Frames) PageSize() uint64 {
	return fr.pgsz
}

// Alloc returns a zeroed frame.
func (fr *Frames) Alloc() (PPN, error) {
	g := fr.tab.Access()
	defer g.Release()

	ft := g.Get()
	ppn, ok := ft.fl.Alloc()
	if !ok {
		db.DPrintf(db.MM_ERR, "out of frames (%d)", fr.nfram)
		return 0, serr.NewErr(serr.TErrNomem, "frames")
	}
	ft.mem[ppn] = make([]byte, fr.pgsz)
	db.DPrintf(db.FRAME, "alloc %#x", uint64(ppn))
	return ppn, nil
}

func (fr *Frames) Dealloc(ppn PPN) {
	g := fr.tab.Access()
	defer g.Release()

	ft := g.Get()
	delete(ft.mem, ppn)
	ft.fl.Free(ppn)
	db.DPrintf(db.FRAME, "dealloc %#x", uint64(ppn))
}

// Bytes returns the kernel's view of a frame.
func (fr *Frames) Bytes(ppn PPN) []byte {
	g := fr.tab.Access()
	defer g.Release()

	b, ok := g.Get().mem[ppn]
	if !ok {
		db.DFatalf("frame %#x not allocated", uint64(ppn))
	}
	return b
}

func (fr *Frames) NFree() int {
	g := fr.tab.Access()
	defer g.Release()
	return g.Get().fl.Avail()
}

func (fr *Frames) String() string {
	nfree := fr.NFree()
	return fmt.Sprintf("{frames %d free %v of %v}", fr.nfram,
		humanize.IBytes(uint64(nfree)*fr.pgsz), humanize.IBytes(uint64(fr.nfram)*fr.pgsz))
}
