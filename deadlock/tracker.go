package deadlock

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	db "ukernel/debug"
	"ukernel/excl"
	"ukernel/proc"
	"ukernel/serr"
)

type Trid int

type state struct {
	enabled   bool
	available []int
	alloc     map[proc.Tpid][]int
	need      map[proc.Tpid][]int
}

// Caller holds borrow
func (st *state) rowL(m map[proc.Tpid][]int, pid proc.Tpid) []int {
	r, ok := m[pid]
	if !ok {
		r = make([]int, len(st.available))
	}
	for len(r) < len(st.available) {
		r = append(r, 0)
	}
	m[pid] = r
	return r
}

// Caller holds borrow
func (st *state) snapshotL() Snapshot {
	pids := maps.Keys(st.need)
	for pid := range st.alloc {
		if _, ok := st.need[pid]; !ok {
			pids = append(pids, pid)
		}
	}
	slices.Sort(pids)
	s := Snapshot{
		Available:  append([]int(nil), st.available...),
		Allocation: make([][]int, len(pids)),
		Need:       make([][]int, len(pids)),
	}
	for i, pid := range pids {
		s.Allocation[i] = append([]int(nil), st.rowL(st.alloc, pid)...)
		s.Need[i] = append([]int(nil), st.rowL(st.need, pid)...)
	}
	return s
}

// Tracker keeps the available, allocation and need bookkeeping for
// every tracked resource. Each update happens under one borrow, so a
// snapshot is never torn.
type Tracker struct {
	st *excl.Cell[state]
}

func NewTracker() *Tracker {
	return &Tracker{st: excl.NewCell("deadlock", state{
		available: make([]int, 0),
		alloc:     make(map[proc.Tpid][]int),
		need:      make(map[proc.Tpid][]int),
	})}
}

func (tr *Tracker) String() string {
	return tr.Snapshot().String()
}

// SetEnabled turns refusal of unsafe requests on or off. Accounting is
// kept either way.
func (tr *Tracker) SetEnabled(on bool) {
	tr.st.With(func(st *state) { st.enabled = on })
	db.DPrintf(db.DEADLOCK, "enabled %v", on)
}

func (tr *Tracker) Enabled() bool {
	g := tr.st.Access()
	defer g.Release()
	return g.Get().enabled
}

// AddResource tracks a new resource with n free units.
func (tr *Tracker) AddResource(n int) Trid {
	g := tr.st.Access()
	defer g.Release()
	st := g.Get()
	st.available = append(st.available, n)
	return Trid(len(st.available) - 1)
}

func (tr *Tracker) Snapshot() Snapshot {
	g := tr.st.Access()
	defer g.Release()
	return g.Get().snapshotL()
}

// Request records that pid wants one unit of rid. When checking is
// enabled and the request could deadlock, it is withdrawn and Request
// returns a TErrDeadlock error.
func (tr *Tracker) Request(pid proc.Tpid, rid Trid) error {
	g := tr.st.Access()
	defer g.Release()
	st := g.Get()
	need := st.rowL(st.need, pid)
	need[rid]++
	if !st.enabled {
		return nil
	}
	if s := st.snapshotL(); IsUnsafe(s) {
		need[rid]--
		db.DPrintf(db.DEADLOCK, "refuse %v res %d: %v", pid, rid, s)
		return serr.NewErr(serr.TErrDeadlock, fmt.Sprintf("pid %v res %d", pid, rid))
	}
	return nil
}

// Need records that pid wants one unit of rid without checking
// safety, for acquisitions that cannot be refused.
func (tr *Tracker) Need(pid proc.Tpid, rid Trid) {
	tr.st.With(func(st *state) { st.rowL(st.need, pid)[rid]++ })
}

// Grant moves one unit of rid from available to pid's allocation.
func (tr *Tracker) Grant(pid proc.Tpid, rid Trid) {
	g := tr.st.Access()
	defer g.Release()
	st := g.Get()
	if need := st.rowL(st.need, pid); need[rid] > 0 {
		need[rid]--
	}
	st.rowL(st.alloc, pid)[rid]++
	st.available[rid]--
}

// Release returns one unit of rid from pid.
func (tr *Tracker) Release(pid proc.Tpid, rid Trid) {
	g := tr.st.Access()
	defer g.Release()
	st := g.Get()
	if alloc := st.rowL(st.alloc, pid); alloc[rid] > 0 {
		alloc[rid]--
	}
	st.available[rid]++
}

// Forget drops pid's rows once it is reaped.
func (tr *Tracker) Forget(pid proc.Tpid) {
	tr.st.With(func(st *state) {
		delete(st.alloc, pid)
		delete(st.need, pid)
	})
}

// Hook returns the ownership observer for rid.
func (tr *Tracker) Hook(rid Trid) *Hook {
	return &Hook{tr: tr, rid: rid}
}

type Hook struct {
	tr  *Tracker
	rid Trid
}

func (h *Hook) Granted(t *proc.Task) {
	h.tr.Grant(t.Pid(), h.rid)
}

func (h *Hook) Released(t *proc.Task) {
	h.tr.Release(t.Pid(), h.rid)
}
