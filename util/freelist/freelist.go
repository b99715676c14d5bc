// Package freelist is a recycling allocator for integer ids (pids,
// physical page numbers). Freed ids are handed out again, most
// recently freed first. The caller is responsible for concurrency
// control.
package freelist

import (
	"fmt"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"

	db "ukernel/debug"
)

type FreeList[T constraints.Integer] struct {
	next     T
	end      T
	freelist []T
	nNew     int
}

// NewFreeList returns an allocator for ids in [start, end).
func NewFreeList[T constraints.Integer](start, end T) *FreeList[T] {
	return &FreeList[T]{next: start, end: end, freelist: make([]T, 0)}
}

func (fl *FreeList[T]) Alloc() (T, bool) {
	index := len(fl.freelist) - 1
	if index >= 0 {
		e := fl.freelist[index]
		fl.freelist = fl.freelist[:index]
		return e, true
	}
	if fl.next >= fl.end {
		var z T
		return z, false
	}
	e := fl.next
	fl.next++
	fl.nNew++
	return e, true
}

func (fl *FreeList[T]) Free(e T) {
	// Sanity check that e was handed out and is not already free.
	if e >= fl.next {
		db.DFatalf("freelist: free %v never allocated", e)
	}
	if slices.Contains(fl.freelist, e) {
		db.DFatalf("freelist: double free %v", e)
	}
	fl.freelist = append(fl.freelist, e)
}

// Len returns the number of ids currently allocated.
func (fl *FreeList[T]) Len() int {
	return fl.nNew - len(fl.freelist)
}

// Avail returns how many more ids Alloc can hand out.
func (fl *FreeList[T]) Avail() int {
	return int(fl.end-fl.next) + len(fl.freelist)
}

func (fl *FreeList[T]) String() string {
	return fmt.Sprintf("{next %v end %v free %v}", fl.next, fl.end, fl.freelist)
}
