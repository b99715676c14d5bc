// Package excl implements the single-core exclusive-access cell that
// guards every shared kernel singleton. There is one core, so a cell
// is not a lock: a second live borrow is a kernel bug and panics.
// Borrows must be released before a context switch.
package excl

import (
	"fmt"

	"go.uber.org/atomic"

	db "ukernel/debug"
)

type Cell[T any] struct {
	name     string
	borrowed atomic.Bool
	v        T
}

func NewCell[T any](name string, v T) *Cell[T] {
	return &Cell[T]{name: name, v: v}
}

// Guard is a live borrow of a cell. Release it exactly once.
type Guard[T any] struct {
	c *Cell[T]
}

// Access borrows the cell's value, panicking if it is already
// borrowed.
func (c *Cell[T]) Access() *Guard[T] {
	if !c.borrowed.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("excl: %v already borrowed", c.name))
	}
	db.DPrintf(db.EXCL, "borrow %v", c.name)
	return &Guard[T]{c: c}
}

// With runs f with the cell borrowed.
func (c *Cell[T]) With(f func(v *T)) {
	g := c.Access()
	defer g.Release()
	f(g.Get())
}

func (c *Cell[T]) Borrowed() bool {
	return c.borrowed.Load()
}

func (c *Cell[T]) String() string {
	return fmt.Sprintf("{cell %v borrowed %v}", c.name, c.borrowed.Load())
}

func (g *Guard[T]) Get() *T {
	if g.c == nil {
		panic("excl: use of released guard")
	}
	return &g.c.v
}

func (g *Guard[T]) Release() {
	if g.c == nil {
		panic("excl: double release")
	}
	c := g.c
	g.c = nil
	db.DPrintf(db.EXCL, "release %v", c.name)
	c.borrowed.Store(false)
}
