package ksync_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ukernel/ctxsw"
	"ukernel/ksync"
	"ukernel/param"
	"ukernel/proc"
	"ukernel/processor"
	"ukernel/sched"
	"ukernel/timer"
)

type tstate struct {
	sw *ctxsw.Switcher
	p  *processor.Processor
}

func newTstate() *tstate {
	sw := ctxsw.NewSwitcher()
	return &tstate{sw: sw, p: processor.NewProcessor(sw, sched.NewManager(param.Conf), timer.NewManual())}
}

func (ts *tstate) spawn(pid proc.Tpid, f func()) {
	t := proc.NewTask(pid, 16)
	t.With(func(in *proc.Inner) {
		in.Cx = ts.sw.NewContext(t.String(), func() {
			f()
			ts.p.Exit(0)
		})
	})
	ts.p.Add(t)
}

type countHook struct {
	granted  map[proc.Tpid]int
	released map[proc.Tpid]int
}

func newCountHook() *countHook {
	return &countHook{granted: map[proc.Tpid]int{}, released: map[proc.Tpid]int{}}
}

func (h *countHook) Granted(t *proc.Task)  { h.granted[t.Pid()]++ }
func (h *countHook) Released(t *proc.Task) { h.released[t.Pid()]++ }

func testMutex(t *testing.T, newMutex func(ts *tstate, h ksync.Hook) ksync.Mutex) {
	ts := newTstate()
	h := newCountHook()
	m := newMutex(ts, h)
	holders := 0
	n := 0
	for pid := proc.Tpid(1); pid <= 3; pid++ {
		ts.spawn(pid, func() {
			for i := 0; i < 4; i++ {
				m.Lock()
				holders++
				assert.Equal(t, 1, holders)
				ts.p.Yield()
				n++
				holders--
				assert.Nil(t, m.Unlock())
				ts.p.Yield()
			}
		})
	}
	assert.Nil(t, ts.p.RunFirstTask())
	assert.Equal(t, 12, n)
	for pid := proc.Tpid(1); pid <= 3; pid++ {
		assert.Equal(t, 4, h.granted[pid])
		assert.Equal(t, 4, h.released[pid])
	}
}

func TestMutexBlocking(t *testing.T) {
	testMutex(t, func(ts *tstate, h ksync.Hook) ksync.Mutex {
		return ksync.NewMutexBlocking(ts.p, h)
	})
}

func TestMutexSpin(t *testing.T) {
	testMutex(t, func(ts *tstate, h ksync.Hook) ksync.Mutex {
		return ksync.NewMutexSpin(ts.p, h)
	})
}

func TestMutexWakeOnce(t *testing.T) {
	ts := newTstate()
	m := ksync.NewMutexBlocking(ts.p, nil)
	trace := make([]string, 0)
	ts.spawn(1, func() {
		m.Lock()
		ts.p.Yield() // 2 and 3 block
		assert.Equal(t, 2, ts.p.NBlocked())
		assert.Nil(t, m.Unlock())
		assert.Equal(t, 1, ts.p.NBlocked())
		trace = append(trace, "unlock")
	})
	for _, pid := range []proc.Tpid{2, 3} {
		pid := pid
		ts.spawn(pid, func() {
			m.Lock()
			trace = append(trace, pid.String())
			assert.Nil(t, m.Unlock())
		})
	}
	assert.Nil(t, ts.p.RunFirstTask())
	assert.Equal(t, []string{"unlock", "2", "3"}, trace)
}

func TestUnlockUnlocked(t *testing.T) {
	ts := newTstate()
	ts.spawn(1, func() {
		assert.NotNil(t, ksync.NewMutexBlocking(ts.p, nil).Unlock())
		assert.NotNil(t, ksync.NewMutexSpin(ts.p, nil).Unlock())
	})
	assert.Nil(t, ts.p.RunFirstTask())
}

func testUnlockNotOwner(t *testing.T, newMutex func(ts *tstate, h ksync.Hook) ksync.Mutex) {
	ts := newTstate()
	h := newCountHook()
	m := newMutex(ts, h)
	ts.spawn(1, func() {
		m.Lock()
		ts.p.Yield()
		assert.Nil(t, m.Unlock())
	})
	ts.spawn(2, func() {
		assert.NotNil(t, m.Unlock())
	})
	assert.Nil(t, ts.p.RunFirstTask())
	assert.Equal(t, 1, h.granted[1])
	assert.Equal(t, 1, h.released[1])
	assert.Equal(t, 0, h.released[2])
}

func TestUnlockNotOwner(t *testing.T) {
	testUnlockNotOwner(t, func(ts *tstate, h ksync.Hook) ksync.Mutex {
		return ksync.NewMutexBlocking(ts.p, h)
	})
	testUnlockNotOwner(t, func(ts *tstate, h ksync.Hook) ksync.Mutex {
		return ksync.NewMutexSpin(ts.p, h)
	})
}

func TestSemaphore(t *testing.T) {
	ts := newTstate()
	s := ksync.NewSemaphore(ts.p, nil, 0)
	trace := make([]string, 0)
	ts.spawn(1, func() {
		s.Down()
		trace = append(trace, "consumed")
	})
	ts.spawn(2, func() {
		trace = append(trace, "produce")
		s.Up()
		assert.Equal(t, int64(0), s.Count())
		s.Up()
		assert.Equal(t, int64(1), s.Count())
	})
	assert.Nil(t, ts.p.RunFirstTask())
	assert.Equal(t, []string{"produce", "consumed"}, trace)
	assert.Equal(t, int64(1), s.Count())
}

func TestCondvar(t *testing.T) {
	ts := newTstate()
	m := ksync.NewMutexBlocking(ts.p, nil)
	cv := ksync.NewCondvar(ts.p)
	ready := false
	woken := 0
	for _, pid := range []proc.Tpid{1, 2} {
		ts.spawn(pid, func() {
			m.Lock()
			for !ready {
				assert.Nil(t, cv.Wait(m))
			}
			woken++
			assert.Nil(t, m.Unlock())
		})
	}
	ts.spawn(3, func() {
		m.Lock()
		ready = true
		assert.Equal(t, 2, cv.Len())
		cv.NotifyAll()
		assert.Nil(t, m.Unlock())
	})
	assert.Nil(t, ts.p.RunFirstTask())
	assert.Equal(t, 2, woken)
}

func TestCondvarSignalOne(t *testing.T) {
	ts := newTstate()
	m := ksync.NewMutexSpin(ts.p, nil)
	cv := ksync.NewCondvar(ts.p)
	n := 0
	ts.spawn(1, func() {
		m.Lock()
		assert.Nil(t, cv.Wait(m))
		n++
		assert.Nil(t, m.Unlock())
	})
	ts.spawn(2, func() {
		cv.Signal()
		cv.Signal() // no waiter left
	})
	assert.Nil(t, ts.p.RunFirstTask())
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, cv.Len())
}
