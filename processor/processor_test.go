package processor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukernel/ctxsw"
	"ukernel/param"
	"ukernel/proc"
	"ukernel/processor"
	"ukernel/sched"
	"ukernel/serr"
	"ukernel/timer"
)

type tstate struct {
	sw  *ctxsw.Switcher
	m   *sched.Manager
	clk *timer.Manual
	p   *processor.Processor
}

func newTstate() *tstate {
	ts := &tstate{sw: ctxsw.NewSwitcher(), m: sched.NewManager(param.Conf), clk: timer.NewManual()}
	ts.p = processor.NewProcessor(ts.sw, ts.m, ts.clk)
	return ts
}

func (ts *tstate) spawn(pid proc.Tpid, f func()) *proc.Task {
	t := proc.NewTask(pid, 16)
	t.With(func(in *proc.Inner) {
		in.Cx = ts.sw.NewContext(t.String(), f)
	})
	ts.p.Add(t)
	return t
}

func TestYieldRoundRobin(t *testing.T) {
	ts := newTstate()
	trace := make([]proc.Tpid, 0)
	body := func(pid proc.Tpid) func() {
		return func() {
			for i := 0; i < 3; i++ {
				assert.Equal(t, pid, ts.p.Current().Pid())
				trace = append(trace, pid)
				ts.clk.Advance(1000)
				ts.p.Yield()
			}
			ts.p.Exit(int32(pid))
		}
	}
	t1 := ts.spawn(1, body(1))
	t2 := ts.spawn(2, body(2))
	err := ts.p.RunFirstTask()
	assert.Nil(t, err)
	assert.Equal(t, []proc.Tpid{1, 2, 1, 2, 1, 2}, trace)
	assert.Equal(t, proc.Zombie, t1.Status())
	assert.Equal(t, proc.Zombie, t2.Status())
	t2.With(func(in *proc.Inner) {
		assert.Equal(t, int32(2), in.ExitCode)
		assert.Equal(t, uint64(1000), in.First.Us())
	})
	assert.Nil(t, ts.p.Current())
}

func TestYieldAlone(t *testing.T) {
	ts := newTstate()
	n := 0
	ts.spawn(1, func() {
		for i := 0; i < 5; i++ {
			n++
			ts.p.Yield()
		}
		ts.p.Exit(0)
	})
	assert.Nil(t, ts.p.RunFirstTask())
	assert.Equal(t, 5, n)
	assert.Equal(t, uint64(6), ts.p.NDispatch())
}

func TestBlockWakeup(t *testing.T) {
	ts := newTstate()
	trace := make([]string, 0)
	var sleeper *proc.Task
	sleeper = ts.spawn(1, func() {
		trace = append(trace, "block")
		ts.p.Block()
		trace = append(trace, "woken")
		ts.p.Exit(0)
	})
	ts.spawn(2, func() {
		trace = append(trace, "waker")
		assert.Equal(t, proc.Blocked, sleeper.Status())
		assert.Equal(t, 1, ts.p.NBlocked())
		ts.p.Wakeup(sleeper)
		trace = append(trace, "woke")
		ts.p.Yield()
		trace = append(trace, "done")
		ts.p.Exit(0)
	})
	assert.Nil(t, ts.p.RunFirstTask())
	assert.Equal(t, []string{"block", "waker", "woke", "woken", "done"}, trace)
}

func TestHaltDeadlock(t *testing.T) {
	ts := newTstate()
	ts.spawn(1, func() {
		ts.p.Block()
		t.Error("woken")
	})
	err := ts.p.RunFirstTask()
	require.NotNil(t, err)
	assert.True(t, serr.IsErrCode(err, serr.TErrDeadlock))
}

func TestRunNothing(t *testing.T) {
	ts := newTstate()
	err := ts.p.RunFirstTask()
	assert.True(t, serr.IsErrCode(err, serr.TErrNotfound))
}
