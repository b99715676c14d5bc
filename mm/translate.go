package mm

import (
	"fmt"

	"ukernel/serr"
)

// Longest string TranslatedStr will read.
const MAXSTR = 4096

// TranslatedByteBuffer returns the kernel's views of the user range
// [va, va+n), split at every page boundary. Each page must be mapped
// with at least perm.
func (ms *MemorySet) TranslatedByteBuffer(va VirtAddr, n int, perm Tperm) ([][]byte, error) {
	pgsz := ms.fr.pgsz
	bufs := make([][]byte, 0, 2)
	end := uint64(va) + uint64(n)
	if end < uint64(va) {
		return nil, serr.NewErr(serr.TErrFault, fmt.Sprintf("%#x+%d", uint64(va), n))
	}
	for cur := uint64(va); cur < end; {
		pte, ok := ms.pt[Floor(VirtAddr(cur), pgsz)]
		if !ok || pte.Perm&perm != perm {
			return nil, serr.NewErr(serr.TErrFault, fmt.Sprintf("%#x", cur))
		}
		off := cur % pgsz
		m := min(pgsz-off, end-cur)
		b := ms.fr.Bytes(pte.Ppn)
		bufs = append(bufs, b[off:off+m])
		cur += m
	}
	return bufs, nil
}

func (ms *MemorySet) copyOut(va VirtAddr, data []byte, perm Tperm) error {
	bufs, err := ms.TranslatedByteBuffer(va, len(data), perm)
	if err != nil {
		return err
	}
	for _, b := range bufs {
		n := copy(b, data)
		data = data[n:]
	}
	return nil
}

func (ms *MemorySet) copyIn(va VirtAddr, n int, perm Tperm) ([]byte, error) {
	bufs, err := ms.TranslatedByteBuffer(va, n, perm)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, n)
	for _, b := range bufs {
		data = append(data, b...)
	}
	return data, nil
}

// CopyOut writes data into user memory at va on behalf of the kernel.
func (ms *MemorySet) CopyOut(va VirtAddr, data []byte) error {
	return ms.copyOut(va, data, PERM_U)
}

// CopyIn reads n bytes of user memory at va on behalf of the kernel.
func (ms *MemorySet) CopyIn(va VirtAddr, n int) ([]byte, error) {
	return ms.copyIn(va, n, PERM_U)
}

// TranslatedStr reads a NUL-terminated string from user memory.
func (ms *MemorySet) TranslatedStr(va VirtAddr) (string, error) {
	pgsz := ms.fr.pgsz
	s := make([]byte, 0, 16)
	for cur := uint64(va); len(s) < MAXSTR; {
		n := int(min(pgsz-cur%pgsz, uint64(MAXSTR-len(s))))
		b, err := ms.copyIn(VirtAddr(cur), n, PERM_U)
		if err != nil {
			return "", err
		}
		for _, c := range b {
			if c == 0 {
				return string(s), nil
			}
			s = append(s, c)
		}
		cur += uint64(n)
	}
	return "", serr.NewErr(serr.TErrFault, fmt.Sprintf("string at %#x too long", uint64(va)))
}

// UserLoad and UserStore are accesses made by user code; they need the
// page's user read or write permission.
func (ms *MemorySet) UserLoad(va VirtAddr, n int) ([]byte, error) {
	return ms.copyIn(va, n, PERM_U|PERM_R)
}

func (ms *MemorySet) UserStore(va VirtAddr, data []byte) error {
	return ms.copyOut(va, data, PERM_U|PERM_W)
}
