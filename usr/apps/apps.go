// Package apps holds the user programs shipped with the kernel. Each
// returns 0 on success.
package apps

import (
	db "ukernel/debug"
	"ukernel/uapi"
	"ukernel/usr"
)

const INITPROC = "initproc"

// Register adds every program to rt, with an initproc that spawns
// first and then reaps children until none are left.
func Register(rt *usr.Runtime, first string) {
	rt.Register(INITPROC, initproc(first))
	rt.Register("hello", hello)
	rt.Register("forktest", forktest)
	rt.Register("exectest", exectest)
	rt.Register("spawntest", spawntest)
	rt.Register("sbrktest", sbrktest)
	rt.Register("mmaptest", mmaptest)
	rt.Register("stridetest", stridetest)
	rt.Register("semtest", semtest)
	rt.Register("deadlocktest", deadlocktest)
	rt.Register("usertests", usertests)
}

func initproc(first string) usr.Main {
	return func(e *usr.Env) int {
		if pid := e.Spawn(first); pid < 0 {
			db.DPrintf(db.USER, "initproc: spawn %v failed", first)
			return 1
		}
		for {
			pid, code := e.Wait(-1)
			if pid < 0 {
				return 0
			}
			db.DPrintf(db.USER, "initproc: reaped %d code %d", pid, code)
		}
	}
}

func hello(e *usr.Env) int {
	db.DPrintf(db.USER, "hello from %d", e.Getpid())
	return 0
}

const NFORK = 8

func forktest(e *usr.Env) int {
	ppid := e.Getpid()
	for i := 0; i < NFORK; i++ {
		i := i
		pid := e.Fork(func(c *usr.Env) int {
			if c.ForkRet() != 0 || c.Getpid() == ppid {
				return 100
			}
			c.Yield()
			return i
		})
		if pid <= 0 {
			return 1
		}
	}
	codes := map[int32]bool{}
	for i := 0; i < NFORK; i++ {
		pid, code := e.Wait(-1)
		if pid < 0 {
			return 2
		}
		codes[code] = true
	}
	if len(codes) != NFORK || codes[100] {
		return 3
	}
	if pid, _ := e.Waitpid(-1); pid != -1 {
		return 4
	}
	return 0
}

func exectest(e *usr.Env) int {
	if e.Exec("nonexistent") != -1 {
		return 1
	}
	e.Exec("hello")
	return 2
}

func spawntest(e *usr.Env) int {
	pid := e.Spawn("hello")
	if pid < 0 {
		return 1
	}
	if e.Spawn("nonexistent") != -1 {
		return 2
	}
	if wpid, code := e.Wait(pid); wpid != pid || code != 0 {
		return 3
	}
	return 0
}

func sbrktest(e *usr.Env) int {
	brk := e.Sbrk(0)
	if brk < 0 {
		return 1
	}
	if e.Sbrk(-1) != -1 {
		return 2
	}
	if e.Sbrk(8192) != brk {
		return 3
	}
	if err := e.Store(uint64(brk)+8191, []byte{1}); err != nil {
		return 4
	}
	if e.Sbrk(-8192) != brk+8192 {
		return 5
	}
	if _, err := e.Load(uint64(brk), 1); err == nil {
		return 6
	}
	return 0
}

const MMAP_START = 0x10000000

func mmaptest(e *usr.Env) int {
	if e.Mmap(MMAP_START, 4096, uapi.PORT_R|uapi.PORT_W) != 0 {
		return 1
	}
	if err := e.Store(MMAP_START, []byte("mapped")); err != nil {
		return 2
	}
	if e.Mmap(MMAP_START, 4096, uapi.PORT_R) != -1 {
		return 3
	}
	if e.Munmap(MMAP_START, 4096) != 0 {
		return 4
	}
	if _, err := e.Load(MMAP_START, 1); err == nil {
		return 5
	}
	return 0
}

func stridetest(e *usr.Env) int {
	const N = 200
	prios := []int64{2, 4, 8}
	for _, p := range prios {
		p := p
		e.Fork(func(c *usr.Env) int {
			c.SetPriority(p)
			for i := 0; i < N; i++ {
				c.Yield()
			}
			return int(p)
		})
	}
	order := make([]int32, 0)
	for range prios {
		_, code := e.Wait(-1)
		order = append(order, code)
	}
	db.DPrintf(db.USER, "stridetest: exit order %v", order)
	// Higher priority runs more often, so it finishes first.
	if order[0] != 8 || order[2] != 2 {
		return 1
	}
	return 0
}

func semtest(e *usr.Env) int {
	const N = 5
	items := e.SemaphoreCreate(0)
	e.Fork(func(c *usr.Env) int {
		for i := 0; i < N; i++ {
			c.SemaphoreUp(items)
			c.Yield()
		}
		return 0
	})
	for i := 0; i < N; i++ {
		if e.SemaphoreDown(items) != 0 {
			return 1
		}
	}
	e.Wait(-1)
	return 0
}

func deadlocktest(e *usr.Env) int {
	if e.EnableDeadlockDetect(true) != 0 {
		return 1
	}
	m0 := e.MutexCreate(true)
	m1 := e.MutexCreate(true)
	e.MutexLock(m0)
	e.Fork(func(c *usr.Env) int {
		c.MutexLock(m1)
		c.Yield()
		// The parent waits for m1 while holding m0.
		rc := c.MutexLock(m0)
		c.MutexUnlock(m1)
		if rc != -0xDEAD {
			return 1
		}
		return 0
	})
	e.Yield()
	if e.MutexLock(m1) != 0 {
		return 2
	}
	e.MutexUnlock(m1)
	e.MutexUnlock(m0)
	if _, code := e.Wait(-1); code != 0 {
		return 3
	}
	e.EnableDeadlockDetect(false)
	return 0
}

// usertests runs every other program in turn.
func usertests(e *usr.Env) int {
	for _, p := range []string{"hello", "forktest", "exectest", "spawntest", "sbrktest", "mmaptest", "stridetest", "semtest", "deadlocktest"} {
		pid := e.Spawn(p)
		if pid < 0 {
			return 1
		}
		if _, code := e.Wait(pid); code != 0 {
			db.DPrintf(db.USER, "usertests: %v failed %d", p, code)
			return 2
		}
	}
	return 0
}
