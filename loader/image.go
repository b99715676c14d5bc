package loader

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	db "ukernel/debug"
	"ukernel/mm"
	"ukernel/serr"
)

// Image field numbers. An image is a protobuf-wire message:
//
//	1: entry (varint)
//	2: segment (bytes, repeated): 1 vaddr, 2 perm, 3 data, 4 memsz
//	3: name (bytes)
const (
	fENTRY   protowire.Number = 1
	fSEGMENT protowire.Number = 2
	fNAME    protowire.Number = 3

	fVADDR protowire.Number = 1
	fPERM  protowire.Number = 2
	fDATA  protowire.Number = 3
	fMEMSZ protowire.Number = 4
)

type Segment struct {
	Vaddr uint64
	Perm  mm.Tperm
	Data  []byte
	Memsz uint64
}

func (s *Segment) String() string {
	return fmt.Sprintf("{%#x memsz %d filesz %d %v}", s.Vaddr, s.Memsz, len(s.Data), s.Perm)
}

type Image struct {
	Name     string
	Entry    uint64
	Segments []*Segment
}

func (img *Image) String() string {
	return fmt.Sprintf("{%q entry %#x segs %v}", img.Name, img.Entry, img.Segments)
}

// End returns the first address above every segment.
func (img *Image) End() uint64 {
	end := uint64(0)
	for _, s := range img.Segments {
		end = max(end, s.Vaddr+s.Memsz)
	}
	return end
}

func (img *Image) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fENTRY, protowire.VarintType)
	b = protowire.AppendVarint(b, img.Entry)
	for _, s := range img.Segments {
		var sb []byte
		sb = protowire.AppendTag(sb, fVADDR, protowire.VarintType)
		sb = protowire.AppendVarint(sb, s.Vaddr)
		sb = protowire.AppendTag(sb, fPERM, protowire.VarintType)
		sb = protowire.AppendVarint(sb, uint64(s.Perm))
		sb = protowire.AppendTag(sb, fDATA, protowire.BytesType)
		sb = protowire.AppendBytes(sb, s.Data)
		sb = protowire.AppendTag(sb, fMEMSZ, protowire.VarintType)
		sb = protowire.AppendVarint(sb, s.Memsz)
		b = protowire.AppendTag(b, fSEGMENT, protowire.BytesType)
		b = protowire.AppendBytes(b, sb)
	}
	b = protowire.AppendTag(b, fNAME, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(img.Name))
	return b
}

func badImage(format string, v ...interface{}) error {
	return serr.NewErr(serr.TErrBadImage, fmt.Sprintf(format, v...))
}

// fields calls f for every field in b.
func fields(b []byte, f func(num protowire.Number, typ protowire.Type, v uint64, bs []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return badImage("tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return badImage("field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			if err := f(num, typ, v, nil); err != nil {
				return err
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return badImage("field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			if err := f(num, typ, 0, v); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return badImage("field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func unmarshalSegment(b []byte) (*Segment, error) {
	s := &Segment{}
	err := fields(b, func(num protowire.Number, typ protowire.Type, v uint64, bs []byte) error {
		switch num {
		case fVADDR:
			s.Vaddr = v
		case fPERM:
			s.Perm = mm.Tperm(v)
		case fDATA:
			s.Data = append([]byte(nil), bs...)
		case fMEMSZ:
			s.Memsz = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if uint64(len(s.Data)) > s.Memsz {
		return nil, badImage("segment %v: data larger than memsz", s)
	}
	return s, nil
}

func Unmarshal(b []byte) (*Image, error) {
	img := &Image{Segments: make([]*Segment, 0)}
	err := fields(b, func(num protowire.Number, typ protowire.Type, v uint64, bs []byte) error {
		switch num {
		case fENTRY:
			img.Entry = v
		case fSEGMENT:
			s, err := unmarshalSegment(bs)
			if err != nil {
				return err
			}
			img.Segments = append(img.Segments, s)
		case fNAME:
			img.Name = string(bs)
		}
		return nil
	})
	if err != nil {
		db.DPrintf(db.LOADER_ERR, "Unmarshal err %v", err)
		return nil, err
	}
	if len(img.Segments) == 0 {
		return nil, badImage("%q: no segments", img.Name)
	}
	return img, nil
}

// Base address of the first segment of built images.
const TEXT_BASE = 0x10000

// BuildImage returns an image for the user program called name: a text
// segment holding the NUL-terminated name at the entry point, which is
// how the user runtime finds the program to run, and one page of data.
func BuildImage(name string, pgsz uint64) []byte {
	text := append([]byte(name), 0)
	tsz := uint64(mm.Ceil(mm.VirtAddr(len(text)), pgsz).Addr(pgsz))
	img := &Image{
		Name:  name,
		Entry: TEXT_BASE,
		Segments: []*Segment{
			{Vaddr: TEXT_BASE, Perm: mm.PERM_U | mm.PERM_R | mm.PERM_X, Data: text, Memsz: tsz},
			{Vaddr: TEXT_BASE + tsz, Perm: mm.PERM_U | mm.PERM_R | mm.PERM_W, Memsz: pgsz},
		},
	}
	return img.Marshal()
}
