package mm

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/slices"

	db "ukernel/debug"
	"ukernel/serr"
)

// A MapArea is a contiguous range of pages [start, end) with one
// permission, each page backed by its own frame.
type MapArea struct {
	start  VPN
	end    VPN
	perm   Tperm
	frames map[VPN]PPN
}

func newMapArea(start, end VPN, perm Tperm) *MapArea {
	return &MapArea{start: start, end: end, perm: perm, frames: make(map[VPN]PPN)}
}

func (a *MapArea) String() string {
	return fmt.Sprintf("[%#x, %#x) %v", uint64(a.start), uint64(a.end), a.perm)
}

func (a *MapArea) npages() uint64 {
	return uint64(a.end - a.start)
}

// MemorySet is one task's address space: its areas and the page table
// mapping their pages to frames.
type MemorySet struct {
	fr    *Frames
	pt    map[VPN]PTE
	areas []*MapArea // sorted by start, non-overlapping
}

func NewMemorySet(fr *Frames) *MemorySet {
	return &MemorySet{
		fr:    fr,
		pt:    make(map[VPN]PTE),
		areas: make([]*MapArea, 0),
	}
}

func (ms *MemorySet) PageSize() uint64 {
	return ms.fr.pgsz
}

func (ms *MemorySet) String() string {
	return fmt.Sprintf("{areas %v mapped %v}", ms.areas, humanize.IBytes(uint64(len(ms.pt))*ms.fr.pgsz))
}

// Overlaps reports whether any page in [start, end) is mapped.
func (ms *MemorySet) Overlaps(start, end VPN) bool {
	return ms.overlaps(nil, start, end)
}

func (ms *MemorySet) overlaps(skip *MapArea, start, end VPN) bool {
	for _, a := range ms.areas {
		if a == skip || a.start == a.end {
			continue
		}
		if a.start < end && start < a.end {
			return true
		}
	}
	return false
}

func (ms *MemorySet) Translate(vpn VPN) (PTE, bool) {
	pte, ok := ms.pt[vpn]
	return pte, ok
}

// PageBytes returns the kernel's view of a mapped page, regardless of
// its user permissions.
func (ms *MemorySet) PageBytes(vpn VPN) ([]byte, bool) {
	pte, ok := ms.pt[vpn]
	if !ok {
		return nil, false
	}
	return ms.fr.Bytes(pte.Ppn), true
}

func (ms *MemorySet) insertAreaL(a *MapArea) {
	i := slices.IndexFunc(ms.areas, func(a1 *MapArea) bool { return a1.start > a.start })
	if i < 0 {
		i = len(ms.areas)
	}
	ms.areas = slices.Insert(ms.areas, i, a)
}

func (ms *MemorySet) mapPages(a *MapArea, start, end VPN) error {
	if uint64(end-start) > uint64(ms.fr.NFree()) {
		return serr.NewErr(serr.TErrNomem, fmt.Sprintf("%d pages", end-start))
	}
	for vpn := start; vpn < end; vpn++ {
		ppn, err := ms.fr.Alloc()
		if err != nil {
			ms.unmapPages(a, start, vpn)
			return err
		}
		a.frames[vpn] = ppn
		ms.pt[vpn] = PTE{Ppn: ppn, Perm: a.perm}
	}
	return nil
}

func (ms *MemorySet) unmapPages(a *MapArea, start, end VPN) {
	for vpn := start; vpn < end; vpn++ {
		if ppn, ok := a.frames[vpn]; ok {
			ms.fr.Dealloc(ppn)
			delete(a.frames, vpn)
			delete(ms.pt, vpn)
		}
	}
}

// Insert maps [start, end) with fresh frames. It fails without
// changing the address space if any page is already mapped or memory
// runs out.
func (ms *MemorySet) Insert(start, end VirtAddr, perm Tperm) error {
	pgsz := ms.fr.pgsz
	s, e := Floor(start, pgsz), Ceil(end, pgsz)
	if e < s {
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("[%#x, %#x)", start, end))
	}
	if ms.Overlaps(s, e) {
		db.DPrintf(db.MM_ERR, "Insert [%#x, %#x) overlaps %v", uint64(start), uint64(end), ms.areas)
		return serr.NewErr(serr.TErrExists, fmt.Sprintf("[%#x, %#x)", start, end))
	}
	a := newMapArea(s, e, perm)
	if err := ms.mapPages(a, s, e); err != nil {
		return err
	}
	ms.insertAreaL(a)
	db.DPrintf(db.MM, "Insert %v", a)
	return nil
}

// Mapped reports whether every page in [start, end) is mapped.
func (ms *MemorySet) Mapped(start, end VPN) bool {
	if end < start {
		return false
	}
	cur := start
	for _, a := range ms.areas {
		if cur >= end {
			break
		}
		if a.end <= cur || a.start == a.end {
			continue
		}
		if a.start > cur {
			break
		}
		cur = a.end
	}
	return cur >= end
}

// Remove unmaps [start, end), splitting areas as needed. Every page in
// the range must be mapped.
func (ms *MemorySet) Remove(start, end VPN) error {
	if !ms.Mapped(start, end) {
		db.DPrintf(db.MM_ERR, "Remove [%#x, %#x) not mapped %v", uint64(start), uint64(end), ms.areas)
		return serr.NewErr(serr.TErrNotfound, fmt.Sprintf("[%#x, %#x)", uint64(start), uint64(end)))
	}
	areas := make([]*MapArea, 0, len(ms.areas))
	for _, a := range ms.areas {
		if a.start == a.end || a.end <= start || a.start >= end {
			areas = append(areas, a)
			continue
		}
		s, e := max(a.start, start), min(a.end, end)
		ms.unmapPages(a, s, e)
		if a.start < s {
			left := newMapArea(a.start, s, a.perm)
			for vpn := a.start; vpn < s; vpn++ {
				left.frames[vpn] = a.frames[vpn]
			}
			areas = append(areas, left)
		}
		if e < a.end {
			right := newMapArea(e, a.end, a.perm)
			for vpn := e; vpn < a.end; vpn++ {
				right.frames[vpn] = a.frames[vpn]
			}
			areas = append(areas, right)
		}
	}
	ms.areas = areas
	db.DPrintf(db.MM, "Remove [%#x, %#x) -> %v", uint64(start), uint64(end), ms.areas)
	return nil
}

func (ms *MemorySet) findArea(start VPN) (*MapArea, bool) {
	i := slices.IndexFunc(ms.areas, func(a *MapArea) bool { return a.start == start })
	if i < 0 {
		return nil, false
	}
	return ms.areas[i], true
}

// AppendTo grows the area starting at start so that it covers newEnd.
func (ms *MemorySet) AppendTo(start, newEnd VirtAddr) error {
	pgsz := ms.fr.pgsz
	a, ok := ms.findArea(Floor(start, pgsz))
	if !ok {
		return serr.NewErr(serr.TErrNotfound, fmt.Sprintf("area %#x", start))
	}
	e := Ceil(newEnd, pgsz)
	if e <= a.end {
		return nil
	}
	if ms.overlaps(a, a.end, e) {
		return serr.NewErr(serr.TErrExists, fmt.Sprintf("[%#x, %#x)", uint64(a.end), uint64(e)))
	}
	if err := ms.mapPages(a, a.end, e); err != nil {
		return err
	}
	a.end = e
	return nil
}

// ShrinkTo releases the pages of the area starting at start that lie
// beyond newEnd.
func (ms *MemorySet) ShrinkTo(start, newEnd VirtAddr) error {
	pgsz := ms.fr.pgsz
	a, ok := ms.findArea(Floor(start, pgsz))
	if !ok {
		return serr.NewErr(serr.TErrNotfound, fmt.Sprintf("area %#x", start))
	}
	e := Ceil(newEnd, pgsz)
	if e < a.start {
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("shrink %#x below %#x", newEnd, start))
	}
	if e >= a.end {
		return nil
	}
	ms.unmapPages(a, e, a.end)
	a.end = e
	return nil
}

// LoadSegment maps [va, va+memsz) with perm and copies data to va.
func (ms *MemorySet) LoadSegment(va VirtAddr, memsz uint64, perm Tperm, data []byte) error {
	if uint64(len(data)) > memsz {
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("segment %#x filesz %d > memsz %d", va, len(data), memsz))
	}
	if err := ms.Insert(va, va+VirtAddr(memsz), perm); err != nil {
		return err
	}
	return ms.copyOut(va, data, 0)
}

// Duplicate returns a copy of the address space with its own frames.
func (ms *MemorySet) Duplicate() (*MemorySet, error) {
	n := uint64(0)
	for _, a := range ms.areas {
		n += a.npages()
	}
	if n > uint64(ms.fr.NFree()) {
		return nil, serr.NewErr(serr.TErrNomem, fmt.Sprintf("duplicate %d pages", n))
	}
	ms1 := NewMemorySet(ms.fr)
	for _, a := range ms.areas {
		a1 := newMapArea(a.start, a.end, a.perm)
		if err := ms1.mapPages(a1, a.start, a.end); err != nil {
			ms1.Recycle()
			return nil, err
		}
		for vpn := a.start; vpn < a.end; vpn++ {
			copy(ms.fr.Bytes(a1.frames[vpn]), ms.fr.Bytes(a.frames[vpn]))
		}
		ms1.areas = append(ms1.areas, a1)
	}
	return ms1, nil
}

// Recycle releases every frame of the address space.
func (ms *MemorySet) Recycle() {
	for _, a := range ms.areas {
		ms.unmapPages(a, a.start, a.end)
	}
	ms.areas = ms.areas[:0]
}
