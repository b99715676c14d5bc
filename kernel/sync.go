package kernel

import (
	"fmt"

	db "ukernel/debug"
	"ukernel/deadlock"
	"ukernel/ksync"
	"ukernel/serr"
)

type mutexEnt struct {
	m   ksync.Mutex
	rid deadlock.Trid
}

// relock is the mutex a condvar waiter takes back after waking. The
// waiter must end up holding it, so its demand is recorded but never
// refused.
type relock struct {
	k   *Kernel
	ent *mutexEnt
}

func (r *relock) Lock() {
	r.k.tracker.Need(r.k.Current().Pid(), r.ent.rid)
	r.ent.m.Lock()
}

func (r *relock) Unlock() error {
	return r.ent.m.Unlock()
}

type semEnt struct {
	s   *ksync.Semaphore
	rid deadlock.Trid
}

// syncTable holds the synchronization objects user tasks create. It is
// kernel-wide, so separate processes can share objects by id.
type syncTable struct {
	mutexes  []*mutexEnt
	sems     []*semEnt
	condvars []*ksync.Condvar
}

func newSyncTable() syncTable {
	return syncTable{
		mutexes:  make([]*mutexEnt, 0),
		sems:     make([]*semEnt, 0),
		condvars: make([]*ksync.Condvar, 0),
	}
}

func badId(kind string, id uint64) error {
	return serr.NewErr(serr.TErrNotfound, fmt.Sprintf("%v %d", kind, id))
}

func (k *Kernel) mutex(id uint64) (*mutexEnt, error) {
	g := k.sync.Access()
	defer g.Release()
	st := g.Get()
	if id >= uint64(len(st.mutexes)) {
		return nil, badId("mutex", id)
	}
	return st.mutexes[id], nil
}

func (k *Kernel) semaphore(id uint64) (*semEnt, error) {
	g := k.sync.Access()
	defer g.Release()
	st := g.Get()
	if id >= uint64(len(st.sems)) {
		return nil, badId("semaphore", id)
	}
	return st.sems[id], nil
}

func (k *Kernel) condvar(id uint64) (*ksync.Condvar, error) {
	g := k.sync.Access()
	defer g.Release()
	st := g.Get()
	if id >= uint64(len(st.condvars)) {
		return nil, badId("condvar", id)
	}
	return st.condvars[id], nil
}

func (k *Kernel) MutexCreate(blocking bool) uint64 {
	rid := k.tracker.AddResource(1)
	var m ksync.Mutex
	if blocking {
		m = ksync.NewMutexBlocking(k.p, k.tracker.Hook(rid))
	} else {
		m = ksync.NewMutexSpin(k.p, k.tracker.Hook(rid))
	}
	g := k.sync.Access()
	defer g.Release()
	st := g.Get()
	st.mutexes = append(st.mutexes, &mutexEnt{m: m, rid: rid})
	id := uint64(len(st.mutexes) - 1)
	db.DPrintf(db.KSYNC, "MutexCreate %d blocking %v", id, blocking)
	return id
}

// MutexLock acquires mutex id, blocking if it is held. With deadlock
// detection on, a request that could deadlock is refused with
// TErrDeadlock.
func (k *Kernel) MutexLock(id uint64) error {
	ent, err := k.mutex(id)
	if err != nil {
		return err
	}
	if err := k.tracker.Request(k.Current().Pid(), ent.rid); err != nil {
		return err
	}
	ent.m.Lock()
	return nil
}

func (k *Kernel) MutexUnlock(id uint64) error {
	ent, err := k.mutex(id)
	if err != nil {
		return err
	}
	return ent.m.Unlock()
}

func (k *Kernel) SemaphoreCreate(count int64) uint64 {
	rid := k.tracker.AddResource(int(count))
	s := ksync.NewSemaphore(k.p, k.tracker.Hook(rid), count)
	g := k.sync.Access()
	defer g.Release()
	st := g.Get()
	st.sems = append(st.sems, &semEnt{s: s, rid: rid})
	id := uint64(len(st.sems) - 1)
	db.DPrintf(db.KSYNC, "SemaphoreCreate %d count %d", id, count)
	return id
}

func (k *Kernel) SemaphoreUp(id uint64) error {
	ent, err := k.semaphore(id)
	if err != nil {
		return err
	}
	ent.s.Up()
	return nil
}

func (k *Kernel) SemaphoreDown(id uint64) error {
	ent, err := k.semaphore(id)
	if err != nil {
		return err
	}
	if err := k.tracker.Request(k.Current().Pid(), ent.rid); err != nil {
		return err
	}
	ent.s.Down()
	return nil
}

func (k *Kernel) CondvarCreate() uint64 {
	g := k.sync.Access()
	defer g.Release()
	st := g.Get()
	st.condvars = append(st.condvars, ksync.NewCondvar(k.p))
	return uint64(len(st.condvars) - 1)
}

func (k *Kernel) CondvarSignal(id uint64) error {
	cv, err := k.condvar(id)
	if err != nil {
		return err
	}
	cv.Signal()
	return nil
}

func (k *Kernel) CondvarWait(cid, mid uint64) error {
	cv, err := k.condvar(cid)
	if err != nil {
		return err
	}
	ent, err := k.mutex(mid)
	if err != nil {
		return err
	}
	return cv.Wait(&relock{k: k, ent: ent})
}

// EnableDeadlockDetect turns deadlock refusal on (1) or off (0).
func (k *Kernel) EnableDeadlockDetect(on uint64) error {
	if on > 1 {
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("enable %d", on))
	}
	k.tracker.SetEnabled(on == 1)
	return nil
}
