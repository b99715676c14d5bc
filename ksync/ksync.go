// Package ksync implements the kernel's blocking synchronization
// primitives for user tasks: mutexes, semaphores and condition
// variables. A primitive's state is released before its caller
// blocks, and a woken task is made ready before the waker continues.
package ksync

import (
	"golang.org/x/exp/slices"

	"ukernel/proc"
)

// Blocker is the scheduler contract the primitives build on.
type Blocker interface {
	Current() *proc.Task
	// Block suspends the current task until Wakeup.
	Block()
	// Wakeup makes a blocked task ready; it is enqueued on return.
	Wakeup(t *proc.Task)
	Yield()
}

// Hook observes ownership changes of one resource, for deadlock
// accounting.
type Hook interface {
	Granted(t *proc.Task)
	Released(t *proc.Task)
}

type nullHook struct{}

func (nullHook) Granted(t *proc.Task)  {}
func (nullHook) Released(t *proc.Task) {}

func hookOrNull(h Hook) Hook {
	if h == nil {
		return nullHook{}
	}
	return h
}

// WaitQueue is a FIFO list of blocked tasks.
type WaitQueue struct {
	ts []*proc.Task
}

func NewWaitQueue() *WaitQueue {
	return &WaitQueue{ts: make([]*proc.Task, 0)}
}

func (wq *WaitQueue) Push(t *proc.Task) {
	wq.ts = append(wq.ts, t)
}

func (wq *WaitQueue) Pop() (*proc.Task, bool) {
	if len(wq.ts) == 0 {
		return nil, false
	}
	t := wq.ts[0]
	wq.ts = slices.Delete(wq.ts, 0, 1)
	return t, true
}

// Remove drops t from the queue, returning false if t is not waiting.
func (wq *WaitQueue) Remove(t *proc.Task) bool {
	i := slices.Index(wq.ts, t)
	if i < 0 {
		return false
	}
	wq.ts = slices.Delete(wq.ts, i, i+1)
	return true
}

func (wq *WaitQueue) Len() int {
	return len(wq.ts)
}
