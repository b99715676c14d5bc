package mm

import (
	"fmt"
	"strings"
)

type VirtAddr uint64
type VPN uint64
type PPN uint64

// Floor returns the page containing va.
func Floor(va VirtAddr, pgsz uint64) VPN {
	return VPN(uint64(va) / pgsz)
}

// Ceil returns the first page at or after va.
func Ceil(va VirtAddr, pgsz uint64) VPN {
	vpn := VPN(uint64(va) / pgsz)
	if uint64(va)%pgsz != 0 {
		vpn++
	}
	return vpn
}

func Aligned(va VirtAddr, pgsz uint64) bool {
	return uint64(va)%pgsz == 0
}

func (vpn VPN) Addr(pgsz uint64) VirtAddr {
	return VirtAddr(uint64(vpn) * pgsz)
}

type Tperm uint8

const (
	PERM_R Tperm = 1 << 1
	PERM_W Tperm = 1 << 2
	PERM_X Tperm = 1 << 3
	PERM_U Tperm = 1 << 4
)

// PermFromPort converts an mmap port mask (bit0 R, bit1 W, bit2 X) into
// user page permissions.
func PermFromPort(port uint64) Tperm {
	perm := PERM_U
	if port&0x1 != 0 {
		perm |= PERM_R
	}
	if port&0x2 != 0 {
		perm |= PERM_W
	}
	if port&0x4 != 0 {
		perm |= PERM_X
	}
	return perm
}

func (p Tperm) String() string {
	var sb strings.Builder
	for _, f := range []struct {
		b Tperm
		c byte
	}{{PERM_R, 'r'}, {PERM_W, 'w'}, {PERM_X, 'x'}, {PERM_U, 'u'}} {
		if p&f.b != 0 {
			sb.WriteByte(f.c)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

type PTE struct {
	Ppn  PPN
	Perm Tperm
}

func (pte PTE) String() string {
	return fmt.Sprintf("{ppn %#x %v}", uint64(pte.Ppn), pte.Perm)
}
